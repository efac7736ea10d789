// Package filter implements the post-query pipeline that turns a raw
// index match list into the result groups a caller actually wants:
// negative-match suppression, weed tagging, same-directory/self removal,
// minimum-match enforcement, and group merge/expand/dedup (§4.I).
// Grounded on Database::filterMatch/filterMatches
// (original_source/src/database.cpp).
package filter

import (
	"path"
	"sort"
	"strings"

	"cbird/pkg/index"
	"cbird/pkg/media"
)

// NegativeMatchChecker reports whether two ids are a known "does not
// match" pair (§4.I, backed by pkg/store.IsNegativeMatch).
type NegativeMatchChecker func(a, b media.ID) (bool, error)

// WeedChecker reports whether id is tagged as a weed duplicate
// (§4.I, backed by pkg/store.IsWeed).
type WeedChecker func(id media.ID) (bool, error)

// Pipeline holds the checkers a caller wires up once and reuses across
// queries (§4.I).
type Pipeline struct {
	IsNegativeMatch NegativeMatchChecker
	IsWeed          WeedChecker
}

// FilterGroup applies the single-group stage of the reference's
// filterMatch: negative-match removal, weed tagging, path scoping,
// same-parent removal and the minimum-match floor. group[0] is the
// needle; group[1:] are candidates. Returns false if the group should be
// dropped entirely.
func (p *Pipeline) FilterGroup(params index.SearchParams, group media.Group, pathPrefix string, inPath bool) (media.Group, bool, error) {
	if len(group) == 0 {
		return group, false, nil
	}

	out := group
	if params.FilterSelf && len(out) > 1 {
		out = removeSelf(out)
	}
	if params.NegativeMatch && p.IsNegativeMatch != nil {
		var err error
		out, err = p.removeNegativeMatches(out)
		if err != nil {
			return nil, false, err
		}
	}

	if p.IsWeed != nil {
		for i := range out {
			weed, err := p.IsWeed(out[i].ID)
			if err != nil {
				return nil, false, err
			}
			out[i].IsWeed = weed
		}
	}

	if pathPrefix != "" && len(out) > 1 {
		out = filterByPath(out, pathPrefix, inPath)
	}

	if params.FilterParent && len(out) > 1 {
		out = filterSameParent(out)
	}

	if len(out)-1 < params.MinMatches {
		return out, false, nil
	}
	return out, true, nil
}

// removeSelf drops any candidate whose id matches the needle's, the
// common case of an index returning the needle itself as its own best
// match (§4.I, SearchParams.FilterSelf).
func removeSelf(group media.Group) media.Group {
	needle := group[0]
	out := media.Group{needle}
	for _, m := range group[1:] {
		if m.ID != needle.ID {
			out = append(out, m)
		}
	}
	return out
}

func (p *Pipeline) removeNegativeMatches(group media.Group) (media.Group, error) {
	if len(group) == 0 {
		return group, nil
	}
	needle := group[0]
	out := media.Group{needle}
	for _, m := range group[1:] {
		neg, err := p.IsNegativeMatch(needle.ID, m.ID)
		if err != nil {
			return nil, err
		}
		if !neg {
			out = append(out, m)
		}
	}
	return out, nil
}

// filterByPath keeps the needle plus candidates whose path is (or is
// not, if !inPath) under prefix, matching the reference's XOR-on-inPath
// rule (original_source/src/database.cpp filterMatch).
func filterByPath(group media.Group, prefix string, inPath bool) media.Group {
	out := media.Group{group[0]}
	for _, m := range group[1:] {
		under := strings.HasPrefix(m.Path, prefix)
		if under == inPath {
			out = append(out, m)
		}
	}
	return out
}

// filterSameParent drops candidates that live in the same directory (or
// archive) as the needle, since those are usually re-encodes/renames a
// user already knows about rather than true duplicates found elsewhere.
func filterSameParent(group media.Group) media.Group {
	needleParent := path.Dir(group[0].Path)
	out := media.Group{group[0]}
	for _, m := range group[1:] {
		if path.Dir(m.Path) != needleParent {
			out = append(out, m)
		}
	}
	return out
}

// FilterGroups applies the multi-group stage: de-duplicating groups that
// differ only in which member is the needle (a→b and b→a both reporting
// the same pair), then merging or expanding per params (§4.I).
func (p *Pipeline) FilterGroups(params index.SearchParams, groups []media.Group) []media.Group {
	out := groups
	if params.FilterGroups {
		out = dedupGroups(out)
	}
	switch {
	case params.MergeGroups > 0:
		out = mergeGroups(out, params.MergeGroups)
	case params.ExpandGroups:
		out = expandGroups(out)
	}
	return out
}

// dedupGroups removes groups whose sorted path set was already seen, so
// a→b and b→a collapse to a single result (original_source/src/database.cpp
// filterMatches).
func dedupGroups(groups []media.Group) []media.Group {
	seen := map[string]bool{}
	out := make([]media.Group, 0, len(groups))
	for _, g := range groups {
		key := groupKey(g)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, g)
	}
	return out
}

func groupKey(g media.Group) string {
	paths := append([]string(nil), g.Paths()...)
	sort.Strings(paths)
	return strings.Join(paths, "\x00")
}

// mergeGroups unions any groups that share at least minOverlap members,
// repeatedly, until no further merge applies — turning a→b, b→c into a
// single {a,b,c} cluster (§4.I).
func mergeGroups(groups []media.Group, minOverlap int) []media.Group {
	clusters := make([]map[media.ID]media.Media, len(groups))
	for i, g := range groups {
		clusters[i] = map[media.ID]media.Media{}
		for _, m := range g {
			clusters[i][m.ID] = m
		}
	}

	merged := true
	for merged {
		merged = false
		for i := 0; i < len(clusters); i++ {
			for j := i + 1; j < len(clusters); j++ {
				if overlapCount(clusters[i], clusters[j]) >= minOverlap {
					for id, m := range clusters[j] {
						clusters[i][id] = m
					}
					clusters = append(clusters[:j], clusters[j+1:]...)
					merged = true
					break
				}
			}
			if merged {
				break
			}
		}
	}

	out := make([]media.Group, 0, len(clusters))
	for _, c := range clusters {
		out = append(out, groupFromSet(c))
	}
	return out
}

func overlapCount(a, b map[media.ID]media.Media) int {
	n := 0
	for id := range a {
		if _, ok := b[id]; ok {
			n++
		}
	}
	return n
}

func groupFromSet(set map[media.ID]media.Media) media.Group {
	out := make(media.Group, 0, len(set))
	for _, m := range set {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// expandGroups splits every multi-match group into its constituent
// needle/candidate pairs, the opposite of mergeGroups (§4.I,
// Media::expandGroupList).
func expandGroups(groups []media.Group) []media.Group {
	out := make([]media.Group, 0, len(groups))
	for _, g := range groups {
		if len(g) < 2 {
			out = append(out, g)
			continue
		}
		for _, m := range g[1:] {
			out = append(out, media.Group{g[0], m})
		}
	}
	return out
}
