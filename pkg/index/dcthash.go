package index

import (
	"math/bits"
	"sort"
	"sync"

	"cbird/pkg/hash"
	"cbird/pkg/media"
)

// DCTHashIndex is the D1 backend: one 64-bit DCT hash per image, searched
// by Hamming distance (§4.D1). Grounded on the reference's DctHashIndex,
// which keeps parallel hash/mediaId arrays and rebuilds a lookup tree
// whenever the arrays mutate.
type DCTHashIndex struct {
	mu      sync.RWMutex
	hashes  []uint64
	ids     []media.ID
	buckets [][]int // buckets[popcount(hash)] -> indices into hashes/ids
}

// NewDCTHashIndex returns an empty D1 index.
func NewDCTHashIndex() *DCTHashIndex {
	return &DCTHashIndex{}
}

func (x *DCTHashIndex) ID() string      { return AlgoDCT.String() }
func (x *DCTHashIndex) IsLoaded() bool  { return true }
func (x *DCTHashIndex) Count() int      { x.mu.RLock(); defer x.mu.RUnlock(); return len(x.hashes) }
func (x *DCTHashIndex) MemoryUsage() int64 {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return int64(len(x.hashes)) * (8 + 4)
}

// Add appends each item's DCTHash, skipping zero hashes the same way the
// reference treats "hash not computed" as absent (§4.D1).
func (x *DCTHashIndex) Add(items []media.Media) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, m := range items {
		if m.DCTHash == 0 {
			continue
		}
		x.hashes = append(x.hashes, m.DCTHash)
		x.ids = append(x.ids, m.ID)
	}
	x.buildBuckets()
	return nil
}

// Remove nullifies matching records in place rather than compacting the
// arrays, mirroring the reference's "mark removed, compact later" policy.
func (x *DCTHashIndex) Remove(ids []media.ID) error {
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
	x.buildBuckets()
	return nil
}

// buildBuckets groups hashes by popcount, so a bounded-distance search
// only has to scan buckets whose popcount could plausibly be within
// threshold of the needle's, instead of the full array. This stands in
// for the reference's balanced BK-tree: same asymptotic idea (prune by a
// cheap pre-filter before the exact Hamming check), simpler structure.
func (x *DCTHashIndex) buildBuckets() {
	x.buckets = make([][]int, 65)
	for i, h := range x.hashes {
		if x.ids[i] == 0 {
			continue
		}
		pc := popcount(h)
		x.buckets[pc] = append(x.buckets[pc], i)
	}
}

func popcount(h uint64) int { return bits.OnesCount64(h) }

// Find returns every record within params.DCTThresh Hamming distance of
// the needle's hash, sorted ascending by score (§4.D1).
func (x *DCTHashIndex) Find(needle media.Media, params SearchParams) ([]Match, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	target := needle.DCTHash
	targetPC := popcount(target)
	thresh := params.DCTThresh
	var results []Match

	lo := targetPC - thresh
	if lo < 0 {
		lo = 0
	}
	hi := targetPC + thresh
	if hi > 64 {
		hi = 64
	}

	for pc := lo; pc <= hi; pc++ {
		for _, i := range x.buckets[pc] {
			if x.ids[i] == 0 {
				continue
			}
			score := int(hash.Hamm64(target, x.hashes[i]))
			if score < thresh {
				results = append(results, Match{MediaID: x.ids[i], Score: score})
			}
		}
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score < results[j].Score })
	if params.MaxMatches > 0 && len(results) > params.MaxMatches {
		results = results[:params.MaxMatches]
	}
	return results, nil
}

// Slice returns a new D1 index containing only records for the given
// media IDs, rebuilding the bucket structure from scratch (§4.D1).
func (x *DCTHashIndex) Slice(ids map[media.ID]bool) Index {
	x.mu.RLock()
	defer x.mu.RUnlock()

	out := NewDCTHashIndex()
	for i, id := range x.ids {
		if ids[id] {
			out.hashes = append(out.hashes, x.hashes[i])
			out.ids = append(out.ids, id)
		}
	}
	out.buildBuckets()
	return out
}
