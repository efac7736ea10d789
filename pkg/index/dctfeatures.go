package index

import (
	"sort"
	"sync"

	"cbird/pkg/hash"
	"cbird/pkg/media"
)

// DCTFeaturesIndex is the D2 backend: many small DCT hashes per image,
// one per detected keypoint, searched by per-hash Hamming lookup with
// votes tallied per candidate media. Good for cropped images where a
// single whole-image hash would miss (§4.D2). Grounded on the
// reference's DctFeaturesIndex, which keeps a single hamming-tree over
// every (mediaID, hash) pair regardless of which image it came from.
type DCTFeaturesIndex struct {
	mu     sync.RWMutex
	hashes []uint64
	ids    []media.ID
}

// NewDCTFeaturesIndex returns an empty D2 index.
func NewDCTFeaturesIndex() *DCTFeaturesIndex { return &DCTFeaturesIndex{} }

func (x *DCTFeaturesIndex) ID() string     { return AlgoDCTFeatures.String() }
func (x *DCTFeaturesIndex) IsLoaded() bool { return true }
func (x *DCTFeaturesIndex) Count() int     { x.mu.RLock(); defer x.mu.RUnlock(); return len(x.hashes) }

func (x *DCTFeaturesIndex) MemoryUsage() int64 {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return int64(len(x.hashes)) * (8 + 4)
}

// Add flattens each media item's keypoint hash list into the shared
// (hash, mediaID) pool.
func (x *DCTFeaturesIndex) Add(items []media.Media) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, m := range items {
		for _, h := range m.KeypointHashes {
			x.hashes = append(x.hashes, h)
			x.ids = append(x.ids, m.ID)
		}
	}
	return nil
}

func (x *DCTFeaturesIndex) Remove(ids []media.ID) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	remove := make(map[media.ID]bool, len(ids))
	for _, id := range ids {
		remove[id] = true
	}
	for i, id := range x.ids {
		if remove[id] {
			x.ids[i] = 0
			x.hashes[i] = 0
		}
	}
	return nil
}

// candidateTally is the running vote count and cumulative distance for
// one candidate media ID while scanning needle keypoint hashes.
type candidateTally struct {
	matches int
	score   int
}

// maxCandidatesPerHash bounds how many of the closest matches per needle
// hash are tallied, the same "take the first 10" cutoff the reference
// applies to keep a single outlier hash from dominating the vote.
const maxCandidatesPerHash = 10

// Find tallies, for every needle keypoint hash, the closest stored
// hashes within params.DCTThresh, then scores each candidate by vote
// count: more matching keypoints is a stronger signal than a tight
// single match (§4.D2).
func (x *DCTFeaturesIndex) Find(needle media.Media, params SearchParams) ([]Match, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if len(needle.KeypointHashes) == 0 {
		return nil, nil
	}

	tallies := map[media.ID]*candidateTally{}
	maxMatches := 0

	for _, nh := range needle.KeypointHashes {
		type hit struct {
			id    media.ID
			score int
		}
		var hits []hit
		for i, sh := range x.hashes {
			if x.ids[i] == 0 {
				continue
			}
			d := int(hash.Hamm64(nh, sh))
			if d < params.DCTThresh {
				hits = append(hits, hit{id: x.ids[i], score: d})
			}
		}
		sort.Slice(hits, func(i, j int) bool { return hits[i].score < hits[j].score })
		if len(hits) > maxCandidatesPerHash {
			hits = hits[:maxCandidatesPerHash]
		}

		for _, h := range hits {
			t, ok := tallies[h.id]
			if !ok {
				t = &candidateTally{}
				tallies[h.id] = t
			}
			t.matches++
			t.score += h.score
			if h.id != needle.ID && t.matches > maxMatches {
				maxMatches = t.matches
			}
		}
	}

	var results []Match
	for id, t := range tallies {
		if t.matches == 0 {
			continue
		}
		var score int
		switch {
		case id == needle.ID:
			score = -1
		case maxMatches == 1:
			score = 10 * (t.score / t.matches)
		default:
			score = maxMatches - t.matches
		}
		results = append(results, Match{MediaID: id, Score: score})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score < results[j].Score })
	if params.MaxMatches > 0 && len(results) > params.MaxMatches {
		results = results[:params.MaxMatches]
	}
	return results, nil
}

func (x *DCTFeaturesIndex) Slice(ids map[media.ID]bool) Index {
	x.mu.RLock()
	defer x.mu.RUnlock()

	out := NewDCTFeaturesIndex()
	for i, id := range x.ids {
		if ids[id] {
			out.hashes = append(out.hashes, x.hashes[i])
			out.ids = append(out.ids, id)
		}
	}
	return out
}
