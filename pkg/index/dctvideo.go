package index

import (
	"sort"
	"sync"

	"cbird/pkg/hash"
	"cbird/pkg/media"
)

// radixValue is one stored frame hash with its owning video record index
// (§4.D5).
type radixValue struct {
	recordIdx int
	hash      uint64
}

// radixMap is a direct-mapped, single-level hash table keyed on the low
// bits (after the reserved bit) of a DCT hash: those bits best predict
// nearby frames, so partitioning on them keeps each bucket's linear scan
// small. Grounded verbatim on the reference's RadixMap_t (§4.D5).
type radixMap struct {
	radix     uint
	radixMask uint64
	buckets   [][]radixValue
}

func newRadixMap(radix uint) *radixMap {
	if radix > 26 {
		radix = 26 // @16 bytes/bucket entry, cap memory use
	}
	var mask uint64
	for i := uint(0); i < radix; i++ {
		mask |= 1 << i
	}
	return &radixMap{
		radix:     radix,
		radixMask: mask,
		buckets:   make([][]radixValue, 1<<radix),
	}
}

func (r *radixMap) indexOf(h uint64) uint64 {
	return (h >> 1) & r.radixMask
}

func (r *radixMap) insert(recordIdx int, h uint64) {
	i := r.indexOf(h)
	r.buckets[i] = append(r.buckets[i], radixValue{recordIdx: recordIdx, hash: h})
}

func (r *radixMap) search(h uint64, threshold int) []radixValue {
	bucket := r.buckets[r.indexOf(h)]
	var matches []radixValue
	for _, v := range bucket {
		if int(hash.Hamm64(h, v.hash)) < threshold {
			matches = append(matches, v)
		}
	}
	return matches
}

// videoRecord is one indexed video's frame/hash stream plus its owning
// media ID (§4.D5, §4.B).
type videoRecord struct {
	mediaID media.ID
	frames  []int32
	hashes  []uint64
}

// frameMargin is how many frames of slack two consecutive frame matches
// may drift by and still count as part of the same contiguous run
// (§4.D5).
const frameMargin = 15

// minSetBits is the minimum number of set bits a frame hash must have to
// be considered discriminative; near-blank or near-solid frames (fewer
// than this many bits set, in either polarity) are dropped at index time
// since they would match almost anything (§4.D5).
const minSetBits = 5

// DCTVideoIndex is the D5 backend: a radix-mapped frame-hash table
// searched per-frame, with adjacent frame matches coalesced into
// contiguous runs scored by length (§4.D5).
type DCTVideoIndex struct {
	mu      sync.RWMutex
	records []videoRecord
	radix   *radixMap
}

// NewDCTVideoIndex builds an empty D5 index with the given radix (bits
// of the hash used to bucket frames).
func NewDCTVideoIndex(radix uint) *DCTVideoIndex {
	return &DCTVideoIndex{radix: newRadixMap(radix)}
}

func (x *DCTVideoIndex) ID() string     { return AlgoVideo.String() }
func (x *DCTVideoIndex) IsLoaded() bool { return true }

func (x *DCTVideoIndex) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	n := 0
	for _, r := range x.records {
		n += len(r.hashes)
	}
	return n
}

func (x *DCTVideoIndex) MemoryUsage() int64 {
	x.mu.RLock()
	defer x.mu.RUnlock()
	var n int64
	for _, r := range x.records {
		n += int64(len(r.hashes)) * (8 + 4)
	}
	return n
}

// Add is a no-op for this backend: video frame streams arrive through
// AddVideo, since media.Media alone doesn't carry the per-frame data
// (§4.D5, §4.G).
func (x *DCTVideoIndex) Add(items []media.Media) error { return nil }

// AddVideo incorporates one video's frame/hash stream, dropping
// indiscriminate frames and clearing the reserved low bit of every hash
// before bucketing.
func (x *DCTVideoIndex) AddVideo(id media.ID, frames []int32, hashes []uint64) {
	x.mu.Lock()
	defer x.mu.Unlock()

	keptFrames := make([]int32, 0, len(frames))
	keptHashes := make([]uint64, 0, len(hashes))
	for i, h := range hashes {
		h &^= 1
		bits := popcount(h)
		if bits < minSetBits || (64-bits) < minSetBits {
			continue
		}
		keptFrames = append(keptFrames, frames[i])
		keptHashes = append(keptHashes, h)
	}

	recordIdx := len(x.records)
	x.records = append(x.records, videoRecord{mediaID: id, frames: keptFrames, hashes: keptHashes})
	for _, h := range keptHashes {
		x.radix.insert(recordIdx, h)
	}
}

func (x *DCTVideoIndex) Remove(ids []media.ID) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	remove := make(map[media.ID]bool, len(ids))
	for _, id := range ids {
		remove[id] = true
	}

	var kept []videoRecord
	for _, r := range x.records {
		if !remove[r.mediaID] {
			kept = append(kept, r)
		}
	}
	x.records = kept
	x.rebuildRadix()
	return nil
}

func (x *DCTVideoIndex) rebuildRadix() {
	radix := newRadixMap(x.radix.radix)
	for i, r := range x.records {
		for _, h := range r.hashes {
			radix.insert(i, h)
		}
	}
	x.radix = radix
}

// videoMatch accumulates every distinct (srcFrame, dstFrame) hit found so
// far for one candidate video, the longest contiguous run among them, and
// the total hit count used as a secondary sort signal (§4.D5).
type videoMatch struct {
	recordIdx int
	hits      []frameHit
	bestRun   int
	runLen    int
	lastFrame int32
	haveLast  bool
}

// frameHit is one matched (needle frame, haystack frame) pair.
type frameHit struct {
	srcFrame int32
	dstFrame int32
}

// Find implements the image-vs-video query: needle is a single still
// image (its DCTHash is the query), and for every indexed video Find
// reports the one nearest-matching frame as the result's MatchRange
// (srcIn=0, dstIn=that frame, len=1), the "frame-grab" search described
// in §4.D5. Find never returns an error; it exists to satisfy the Index
// contract, since most callers go through FindFrames directly for
// video-vs-video queries where the needle is itself a frame stream.
func (x *DCTVideoIndex) Find(needle media.Media, params SearchParams) ([]Match, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	thresh := params.DCTThresh
	nh := needle.DCTHash &^ 1

	best := map[int]radixValue{}
	bestDist := map[int]int{}
	for _, v := range x.radix.search(nh, thresh) {
		d := int(hash.Hamm64(nh, v.hash))
		if cur, ok := bestDist[v.recordIdx]; !ok || d < cur {
			bestDist[v.recordIdx] = d
			best[v.recordIdx] = v
		}
	}

	var results []Match
	for idx, v := range best {
		record := x.records[idx]
		frameIdx := indexOfHash(record, v.hash)
		results = append(results, Match{
			MediaID: record.mediaID,
			Score:   bestDist[idx],
			Range:   media.MatchRange{SrcIn: 0, DstIn: int(record.frames[frameIdx]), Len: 1},
		})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score < results[j].Score })
	if params.MaxMatches > 0 && len(results) > params.MaxMatches {
		results = results[:params.MaxMatches]
	}
	return results, nil
}

// FindFrames is the real D5 video-vs-video entry point: needleHashes is
// the query video's frame-hash stream in increasing frame order. The
// hashes are searched as given (AddVideo's discriminative-frame filter is
// not applied to them), and a needle frame is identified by its position
// in needleHashes, not by a frame number. For each needle frame only the
// closest hit per candidate video is kept.
//
// For each candidate video, a run continues across a hit whenever the
// haystack frame advances by at most frameMargin frames since the last
// hit for that candidate; otherwise a new run starts. A candidate must
// clear two independent gates: params.MinFramesMatched total distinct
// frame hits (not just its longest run), and params.MinFramesNear
// percent of those hits falling within frameMargin of their neighbor (a
// locality requirement that rejects a video whose matches are scattered
// evenly across an unrelated runtime rather than clustered around one
// aligned segment). Surviving candidates report a MatchRange spanning
// the minimum to maximum matched needle position.
func (x *DCTVideoIndex) FindFrames(needleHashes []uint64, params SearchParams) []Match {
	x.mu.RLock()
	defer x.mu.RUnlock()

	thresh := params.DCTThresh
	tracking := map[int]*videoMatch{}

	for srcFrame, nh := range needleHashes {
		nh &^= 1
		// keep only the closest hit per candidate video for this needle frame
		closest := map[int]radixValue{}
		for _, h := range x.radix.search(nh, thresh) {
			cur, ok := closest[h.recordIdx]
			if !ok || hash.Hamm64(nh, h.hash) < hash.Hamm64(nh, cur.hash) {
				closest[h.recordIdx] = h
			}
		}
		for _, h := range closest {
			vm, ok := tracking[h.recordIdx]
			if !ok {
				vm = &videoMatch{recordIdx: h.recordIdx}
				tracking[h.recordIdx] = vm
			}
			dstFrame := x.frameOf(h.recordIdx, indexOfHash(x.records[h.recordIdx], h.hash))
			vm.hits = append(vm.hits, frameHit{srcFrame: int32(srcFrame), dstFrame: dstFrame})

			advanced := true
			if vm.haveLast {
				delta := int(dstFrame) - int(vm.lastFrame)
				advanced = delta >= 0 && delta <= frameMargin
			}
			if advanced {
				vm.runLen++
			} else {
				vm.runLen = 1
			}
			if vm.runLen > vm.bestRun {
				vm.bestRun = vm.runLen
			}
			vm.lastFrame = dstFrame
			vm.haveLast = true
		}
	}

	type scored struct {
		Match
		totalHits int
	}
	var candidates []scored
	for idx, vm := range tracking {
		if len(vm.hits) < params.MinFramesMatched {
			continue
		}
		if !nearEnough(vm.hits, params.MinFramesNear) {
			continue
		}
		record := x.records[idx]
		candidates = append(candidates, scored{
			Match: Match{
				MediaID: record.mediaID,
				Score:   len(needleHashes) - vm.bestRun, // lower score == more frames matched
				Range:   matchRangeOf(vm.hits),
			},
			totalHits: len(vm.hits),
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score < candidates[j].Score
		}
		return candidates[i].totalHits > candidates[j].totalHits
	})

	results := make([]Match, len(candidates))
	for i, c := range candidates {
		results[i] = c.Match
	}
	if params.MaxMatches > 0 && len(results) > params.MaxMatches {
		results = results[:params.MaxMatches]
	}
	return results
}

// nearEnough reports whether at least minPercent percent of hits lie
// within frameMargin frames (by dstFrame) of another hit, the locality
// requirement params.MinFramesNear encodes: a genuine clip match clusters
// its hits around one aligned segment rather than scattering them evenly
// across the whole haystack runtime. minPercent<=0 disables the check.
func nearEnough(hits []frameHit, minPercent int) bool {
	if minPercent <= 0 || len(hits) == 0 {
		return true
	}

	frames := make([]int32, len(hits))
	for i, h := range hits {
		frames[i] = h.dstFrame
	}
	sort.Slice(frames, func(i, j int) bool { return frames[i] < frames[j] })

	near := 0
	for i, f := range frames {
		hasNeighbor := (i > 0 && f-frames[i-1] <= frameMargin) ||
			(i < len(frames)-1 && frames[i+1]-f <= frameMargin)
		if hasNeighbor {
			near++
		}
	}

	return near*100 >= minPercent*len(frames)
}

// matchRangeOf spans the minimum to maximum matched needle position, the
// §4.D5 MatchRange contract: SrcIn/DstIn mark the aligned segment's start
// in the needle and candidate respectively, Len its frame count.
func matchRangeOf(hits []frameHit) media.MatchRange {
	minSrc, maxSrc := hits[0].srcFrame, hits[0].srcFrame
	minDst := hits[0].dstFrame
	for _, h := range hits[1:] {
		if h.srcFrame < minSrc {
			minSrc = h.srcFrame
		}
		if h.srcFrame > maxSrc {
			maxSrc = h.srcFrame
		}
		if h.dstFrame < minDst {
			minDst = h.dstFrame
		}
	}
	return media.MatchRange{SrcIn: int(minSrc), DstIn: int(minDst), Len: int(maxSrc-minSrc) + 1}
}

// frameOf returns the haystack frame number at hashIdx within the given
// record.
func (x *DCTVideoIndex) frameOf(recordIdx, hashIdx int) int32 {
	return x.records[recordIdx].frames[hashIdx]
}

// indexOfHash finds the position of a hash within a record's hash slice.
// Radix buckets only carry the hash value and record index, not the
// position, so this recovers it; records are small enough per video
// that a linear scan here is cheap relative to the radix lookup itself.
func indexOfHash(r videoRecord, h uint64) int {
	for i, rh := range r.hashes {
		if rh == h {
			return i
		}
	}
	return 0
}

func (x *DCTVideoIndex) Slice(ids map[media.ID]bool) Index {
	x.mu.RLock()
	defer x.mu.RUnlock()

	out := NewDCTVideoIndex(x.radix.radix)
	for _, r := range x.records {
		if ids[r.mediaID] {
			out.AddVideo(r.mediaID, r.frames, r.hashes)
		}
	}
	return out
}
