package index

import (
	"sort"
	"sync"

	"gocv.io/x/gocv"

	"cbird/pkg/media"
)

// cvRecord is one media item's ORB descriptor matrix, kept as a gocv.Mat
// for the lifetime of the index (§4.D3).
type cvRecord struct {
	id          media.ID
	descriptors gocv.Mat
}

// CVFeaturesIndex is the D3 backend: ORB keypoint descriptors matched
// with a brute-force Hamming matcher, the only backend that tolerates
// rotation as well as heavy cropping (§4.D3). The reference implements
// this class of match with OpenCV's feature detectors directly; no
// dedicated file for it survived distillation into the retrieval pack,
// so this backend is grounded on the shared pattern visible in
// dctfeaturesindex.cpp (vote-tally-per-candidate scoring) combined with
// gocv's ORB/BFMatcher bindings, used the way ausocean-av's gocv
// examples manage Mat ownership (construct, defer Close, never let a
// Mat escape without an owner).
type CVFeaturesIndex struct {
	mu      sync.RWMutex
	records []cvRecord
	matcher gocv.BFMatcher
}

// NewCVFeaturesIndex returns an empty D3 index with a Hamming-distance
// brute matcher, the correct metric for ORB's binary descriptors.
func NewCVFeaturesIndex() *CVFeaturesIndex {
	return &CVFeaturesIndex{matcher: gocv.NewBFMatcherWithParams(gocv.NormHamming, false)}
}

func (x *CVFeaturesIndex) ID() string     { return AlgoCVFeatures.String() }
func (x *CVFeaturesIndex) IsLoaded() bool { return true }

func (x *CVFeaturesIndex) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	n := 0
	for _, r := range x.records {
		n += r.descriptors.Rows()
	}
	return n
}

func (x *CVFeaturesIndex) MemoryUsage() int64 {
	x.mu.RLock()
	defer x.mu.RUnlock()
	var n int64
	for _, r := range x.records {
		n += int64(r.descriptors.Total()) * int64(r.descriptors.ElemSize())
	}
	return n
}

// Add is a no-op: ORB descriptors are computed by the processor against
// decoded pixels and arrive via AddDescriptors, since media.Media itself
// carries no image buffer by the time it reaches the index (§4.D3, §4.G).
func (x *CVFeaturesIndex) Add(items []media.Media) error { return nil }

// AddDescriptors stores one media item's ORB descriptor matrix (N x 32
// bytes, one row per keypoint). Takes ownership of descriptors; callers
// must not Close() it afterward.
func (x *CVFeaturesIndex) AddDescriptors(id media.ID, descriptors gocv.Mat) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.records = append(x.records, cvRecord{id: id, descriptors: descriptors})
}

func (x *CVFeaturesIndex) Remove(ids []media.ID) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	remove := make(map[media.ID]bool, len(ids))
	for _, id := range ids {
		remove[id] = true
	}
	kept := x.records[:0]
	for _, r := range x.records {
		if remove[r.id] {
			r.descriptors.Close()
			continue
		}
		kept = append(kept, r)
	}
	x.records = kept
	return nil
}

// Find is a no-op: the needle's ORB descriptor matrix has no home on
// media.Media, so FindDescriptors is the real entry point (§4.D3).
func (x *CVFeaturesIndex) Find(needle media.Media, params SearchParams) ([]Match, error) {
	return nil, nil
}

// FindDescriptors brute-matches the needle's ORB descriptors against
// every stored candidate with KnnMatch, tallying per-candidate the
// number of keypoints whose nearest neighbor falls under params.CVThresh
// Hamming distance (§4.D3).
func (x *CVFeaturesIndex) FindDescriptors(needleDescriptors gocv.Mat, params SearchParams) []Match {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if needleDescriptors.Empty() {
		return nil
	}

	type tally struct {
		id      media.ID
		matches int
	}
	var candidates []tally

	for _, r := range x.records {
		if r.descriptors.Empty() {
			continue
		}
		matchSets := x.matcher.KnnMatch(needleDescriptors, r.descriptors, 1)
		count := 0
		for _, ms := range matchSets {
			for _, m := range ms {
				if int(m.Distance) < params.CVThresh {
					count++
					break
				}
			}
		}
		if count >= params.MinMatches {
			candidates = append(candidates, tally{id: r.id, matches: count})
		}
	}

	results := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		results = append(results, Match{MediaID: c.id, Score: -c.matches})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score < results[j].Score })
	if params.MaxMatches > 0 && len(results) > params.MaxMatches {
		results = results[:params.MaxMatches]
	}
	return results
}

func (x *CVFeaturesIndex) Slice(ids map[media.ID]bool) Index {
	x.mu.RLock()
	defer x.mu.RUnlock()

	out := NewCVFeaturesIndex()
	for _, r := range x.records {
		if ids[r.id] {
			out.records = append(out.records, cvRecord{id: r.id, descriptors: r.descriptors.Clone()})
		}
	}
	return out
}

// Close releases every descriptor Mat and the matcher itself. The
// engine calls this when discarding an index, e.g. after a slice is no
// longer needed (§4.D3).
func (x *CVFeaturesIndex) Close() {
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, r := range x.records {
		r.descriptors.Close()
	}
	x.records = nil
	x.matcher.Close()
}
