package index

import (
	"sort"
	"sync"

	"cbird/pkg/colordesc"
	"cbird/pkg/media"
)

// ColorThreshold is the maximum weighted LUV distance two descriptors
// may have and still count as a match; the reference exposes no
// separate threshold param for color search, unlike dct/cv (§4.D4).
const ColorThreshold = 850.0

// ColorIndex is the D4 backend: a brute-force linear scan over LUV color
// descriptors, the only backend that can recognize arbitrary geometric
// transforms including mirroring (§4.D4). Grounded on the reference's
// ColorDescIndex, which keeps parallel descriptor/mediaId arrays and has
// no secondary structure -- every search is O(n).
type ColorIndex struct {
	mu          sync.RWMutex
	descriptors []colordesc.Descriptor
	ids         []media.ID
}

// NewColorIndex returns an empty D4 index.
func NewColorIndex() *ColorIndex { return &ColorIndex{} }

func (x *ColorIndex) ID() string     { return AlgoColor.String() }
func (x *ColorIndex) IsLoaded() bool { return true }
func (x *ColorIndex) Count() int     { x.mu.RLock(); defer x.mu.RUnlock(); return len(x.ids) }

func (x *ColorIndex) MemoryUsage() int64 {
	x.mu.RLock()
	defer x.mu.RUnlock()
	var n int64
	for _, d := range x.descriptors {
		n += int64(len(d.Colors)) * 8
	}
	return n
}

// Add is a no-op: media.Media has no field for a color descriptor, so
// descriptors arrive through AddWithDescriptors instead.
func (x *ColorIndex) Add(items []media.Media) error {
	// ColorIndex needs descriptors, not present on bare media.Media;
	// pkg/engine's Update calls AddWithDescriptors directly instead.
	return nil
}

// AddWithDescriptors appends descriptors computed by the processor,
// parallel to the given media IDs.
func (x *ColorIndex) AddWithDescriptors(ids []media.ID, descs []colordesc.Descriptor) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.ids = append(x.ids, ids...)
	x.descriptors = append(x.descriptors, descs...)
}

func (x *ColorIndex) Remove(ids []media.ID) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	remove := make(map[media.ID]bool, len(ids))
	for _, id := range ids {
		remove[id] = true
	}
	keptIDs := x.ids[:0]
	keptDescs := x.descriptors[:0]
	for i, id := range x.ids {
		if !remove[id] {
			keptIDs = append(keptIDs, id)
			keptDescs = append(keptDescs, x.descriptors[i])
		}
	}
	x.ids = keptIDs
	x.descriptors = keptDescs
	return nil
}

// Find always returns no matches: the needle's descriptor has no home on
// media.Media, so FindDescriptor is the real entry point used by the
// engine for this backend (§4.D4).
func (x *ColorIndex) Find(needle media.Media, params SearchParams) ([]Match, error) {
	return nil, nil
}

// FindDescriptor scores every stored descriptor against needle and
// returns every match under ColorThreshold, sorted ascending by score.
func (x *ColorIndex) FindDescriptor(needle colordesc.Descriptor, params SearchParams) []Match {
	x.mu.RLock()
	defer x.mu.RUnlock()

	var results []Match
	for i, d := range x.descriptors {
		if x.ids[i] == 0 {
			continue
		}
		dist := colordesc.Distance(needle, d)
		if dist < ColorThreshold {
			results = append(results, Match{MediaID: x.ids[i], Score: int(dist)})
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score < results[j].Score })
	if params.MaxMatches > 0 && len(results) > params.MaxMatches {
		results = results[:params.MaxMatches]
	}
	return results
}

func (x *ColorIndex) Slice(ids map[media.ID]bool) Index {
	x.mu.RLock()
	defer x.mu.RUnlock()

	out := NewColorIndex()
	for i, id := range x.ids {
		if ids[id] {
			out.ids = append(out.ids, id)
			out.descriptors = append(out.descriptors, x.descriptors[i])
		}
	}
	return out
}
