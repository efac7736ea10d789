package filter

import (
	"testing"

	"github.com/stretchr/testify/require"

	"cbird/pkg/index"
	"cbird/pkg/media"
)

var pathIDs = map[string]media.ID{}

func idFor(path string) media.ID {
	if id, ok := pathIDs[path]; ok {
		return id
	}
	id := media.ID(len(pathIDs) + 1)
	pathIDs[path] = id
	return id
}

func group(paths ...string) media.Group {
	g := make(media.Group, len(paths))
	for i, p := range paths {
		g[i] = media.Media{ID: idFor(p), Path: p}
	}
	return g
}

func TestFilterGroupRemovesSelf(t *testing.T) {
	g := media.Group{
		{ID: 1, Path: "a.jpg"},
		{ID: 1, Path: "a.jpg"},
		{ID: 2, Path: "b.jpg"},
	}
	p := &Pipeline{}
	params := index.DefaultSearchParams()
	params.FilterSelf = true
	params.MinMatches = 1

	out, keep, err := p.FilterGroup(params, g, "", true)
	require.NoError(t, err)
	require.True(t, keep)
	require.Len(t, out, 2)
}

func TestFilterGroupNegativeMatch(t *testing.T) {
	g := media.Group{
		{ID: 1, Path: "a.jpg"},
		{ID: 2, Path: "b.jpg"},
		{ID: 3, Path: "c.jpg"},
	}
	p := &Pipeline{
		IsNegativeMatch: func(a, b media.ID) (bool, error) {
			return (a == 1 && b == 2) || (a == 2 && b == 1), nil
		},
	}
	params := index.DefaultSearchParams()
	params.NegativeMatch = true
	params.MinMatches = 1

	out, keep, err := p.FilterGroup(params, g, "", true)
	require.NoError(t, err)
	require.True(t, keep)
	require.Len(t, out, 2)
	require.Equal(t, media.ID(3), out[1].ID)
}

func TestFilterGroupMarksWeeds(t *testing.T) {
	g := media.Group{{ID: 1, Path: "a.jpg"}, {ID: 2, Path: "b.jpg"}}
	p := &Pipeline{IsWeed: func(id media.ID) (bool, error) { return id == 2, nil }}
	params := index.DefaultSearchParams()
	params.MinMatches = 1

	out, keep, err := p.FilterGroup(params, g, "", true)
	require.NoError(t, err)
	require.True(t, keep)
	require.False(t, out[0].IsWeed)
	require.True(t, out[1].IsWeed)
}

func TestFilterGroupMinMatchesDrops(t *testing.T) {
	g := media.Group{{ID: 1, Path: "a.jpg"}}
	p := &Pipeline{}
	params := index.DefaultSearchParams()
	params.MinMatches = 1

	_, keep, err := p.FilterGroup(params, g, "", true)
	require.NoError(t, err)
	require.False(t, keep)
}

func TestFilterGroupSameParentRemoved(t *testing.T) {
	g := media.Group{
		{ID: 1, Path: "dir/a.jpg"},
		{ID: 2, Path: "dir/b.jpg"},
		{ID: 3, Path: "other/c.jpg"},
	}
	p := &Pipeline{}
	params := index.DefaultSearchParams()
	params.FilterParent = true
	params.MinMatches = 1

	out, keep, err := p.FilterGroup(params, g, "", true)
	require.NoError(t, err)
	require.True(t, keep)
	require.Len(t, out, 2)
	require.Equal(t, media.ID(3), out[1].ID)
}

func TestFilterGroupsDedup(t *testing.T) {
	groups := []media.Group{group("a.jpg", "b.jpg"), group("b.jpg", "a.jpg")}
	p := &Pipeline{}
	params := index.DefaultSearchParams()
	params.FilterGroups = true

	out := p.FilterGroups(params, groups)
	require.Len(t, out, 1)
}

func TestMergeGroupsUnionsOverlap(t *testing.T) {
	groups := []media.Group{group("a.jpg", "b.jpg"), group("b.jpg", "c.jpg")}
	p := &Pipeline{}
	params := index.DefaultSearchParams()
	params.MergeGroups = 1

	out := p.FilterGroups(params, groups)
	require.Len(t, out, 1)
	require.Len(t, out[0], 3)
}

func TestExpandGroupsSplitsPairs(t *testing.T) {
	groups := []media.Group{group("a.jpg", "b.jpg", "c.jpg")}
	p := &Pipeline{}
	params := index.DefaultSearchParams()
	params.ExpandGroups = true

	out := p.FilterGroups(params, groups)
	require.Len(t, out, 2)
	for _, g := range out {
		require.Len(t, g, 2)
		require.Equal(t, "a.jpg", g[0].Path)
	}
}
