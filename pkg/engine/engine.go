// Package engine integrates the scanner, processor, store and index
// backends into the two operations a caller actually wants: Update
// (bring the store in line with what's on disk) and Query (find similar
// media). Grounded on Engine (original_source/src/engine.h/.cpp) for the
// operation shape, and pkg/monitor/monitor.go's Manager for the
// "one struct owns every subsystem" idiom. Engine itself holds no lock;
// the store and each index backend guard their own state.
package engine

import (
	"context"
	"fmt"
	"path/filepath"

	"gocv.io/x/gocv"

	"cbird/pkg/colordesc"
	"cbird/pkg/filter"
	"cbird/pkg/index"
	"cbird/pkg/media"
	"cbird/pkg/processor"
	"cbird/pkg/scanner"
	"cbird/pkg/store"
	"cbird/pkg/template"
	"cbird/pkg/vdx"
)

// Engine owns a managed directory's store and every index backend built
// from it (§4.D). DCT-hash, DCT-features and DCT-video rebuild fully from
// the store on Open, since their source data (DCTHash/KeypointHashes, the
// .vdx sidecars) is persisted; color and CV-features only ever see items
// processed since the Engine was opened, since neither descriptor is
// persisted on media.Media or anywhere else (§4.D4/§4.D3 note) -- both
// repopulate incrementally as Update reprocesses files.
type Engine struct {
	root string

	store            *store.Store
	processor        *processor.Processor
	dispatcher       *scanner.Dispatcher
	dctIndex         *index.DCTHashIndex
	dctFeaturesIndex *index.DCTFeaturesIndex
	cvFeaturesIndex  *index.CVFeaturesIndex
	colorIndex       *index.ColorIndex
	videoIndex       *index.DCTVideoIndex
	templateMatcher  *template.Matcher
	filter           *filter.Pipeline

	scanParams scanner.Params
}

// Options configures an Engine's scan and processing behavior.
type Options struct {
	ScanParams     scanner.Params
	ProcessorOpts  processor.Options
	VideoRadixBits uint
	ImageWorkers   int
	VideoWorkers   int
}

// DefaultOptions mirrors the reference's IndexParams/SearchParams
// defaults for the fields Engine controls directly.
func DefaultOptions(root string) Options {
	videoDir := filepath.Join(root, ".cbird", "video")
	return Options{
		ScanParams:     scanner.DefaultParams(),
		ProcessorOpts:  processor.DefaultOptions(videoDir),
		VideoRadixBits: 10, // SearchParams.VideoRadix default
		ImageWorkers:   0,
		VideoWorkers:   0,
	}
}

// Open opens (or creates) the store at root and rebuilds the in-memory
// index backends from its contents.
func Open(root string, opts Options) (*Engine, error) {
	st, err := store.Open(root)
	if err != nil {
		return nil, fmt.Errorf("engine: open store: %w", err)
	}

	proc := processor.New(opts.ProcessorOpts)

	e := &Engine{
		root:             root,
		store:            st,
		processor:        proc,
		dctIndex:         index.NewDCTHashIndex(),
		dctFeaturesIndex: index.NewDCTFeaturesIndex(),
		cvFeaturesIndex:  index.NewCVFeaturesIndex(),
		colorIndex:       index.NewColorIndex(),
		videoIndex:       index.NewDCTVideoIndex(opts.VideoRadixBits),
		templateMatcher:  template.New(),
		filter: &filter.Pipeline{
			IsNegativeMatch: st.IsNegativeMatch,
			IsWeed:          st.IsWeed,
		},
		scanParams: opts.ScanParams,
	}
	// Jobs carry paths relative to root (scanner.Walk's convention); the
	// processor needs an absolute path to actually open the file. Using
	// ProcessFull here (rather than a thinner wrapper) is what lets
	// Update feed every §4.D backend from one decode pass instead of
	// just the DCT-hash/DCT-video pair.
	absProcess := func(ctx context.Context, relPath string, mediaType media.Type) (any, error) {
		return proc.ProcessFull(ctx, filepath.Join(root, relPath), mediaType)
	}
	e.dispatcher = scanner.NewDispatcher(absProcess, opts.ImageWorkers, opts.VideoWorkers)

	if err := e.rebuildIndices(); err != nil {
		st.Close()
		return nil, err
	}
	return e, nil
}

// rebuildIndices loads every stored Media into the in-memory backends
// whose source data is persisted (DCT hash, DCT features' keypoint
// hashes, both carried directly on media.Media; DCT-video's frame/hash
// stream, reloaded from its .vdx sidecar). Color and CV-features start
// empty on every Open, since neither descriptor survives a restart.
func (e *Engine) rebuildIndices() error {
	all, err := e.store.All()
	if err != nil {
		return fmt.Errorf("engine: load store: %w", err)
	}

	if err := e.dctIndex.Add(all); err != nil {
		return fmt.Errorf("engine: rebuild dct index: %w", err)
	}
	if err := e.dctFeaturesIndex.Add(all); err != nil {
		return fmt.Errorf("engine: rebuild dct-features index: %w", err)
	}

	for _, m := range all {
		if m.Type != media.TypeVideo {
			continue
		}
		vdxPath := filepath.Join(e.store.VideoPath(), filepath.Base(m.Path)+".vdx")
		vi, err := vdx.Load(vdxPath)
		if err != nil {
			continue // sidecar missing/corrupt: video simply isn't searchable until re-scanned
		}
		e.videoIndex.AddVideo(m.ID, vi.Frames, vi.Hashes)
	}
	return nil
}

// Close releases the underlying store.
func (e *Engine) Close() error {
	return e.store.Close()
}

// UpdateResult reports what changed during one Update call.
type UpdateResult struct {
	Added   int
	Failed  int
	Skipped int
}

// Update walks the managed directory, processes every file the store
// doesn't already have, and adds the results to the store and every
// in-memory index (§4.F/§4.G/§4.H "update").
func (e *Engine) Update(ctx context.Context) (UpdateResult, error) {
	known, err := e.store.IndexedFiles()
	if err != nil {
		return UpdateResult{}, fmt.Errorf("engine: list indexed files: %w", err)
	}

	candidates, err := scanner.Walk(e.root, e.scanParams, known)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("engine: walk: %w", err)
	}

	var result UpdateResult
	var jobs []scanner.Job
	for _, c := range candidates {
		if c.Skipped {
			result.Skipped++
			continue
		}
		mt, ok := mediaTypeForPath(c.Path)
		if !ok {
			result.Skipped++
			continue
		}
		jobs = append(jobs, scanner.Job{Candidate: c, Type: mt})
	}

	results := e.dispatcher.Run(ctx, jobs)

	var toAdd []media.Media
	var pending []pendingDescriptor
	for _, r := range results {
		if r.Err != nil {
			result.Failed++
			continue
		}
		full, ok := r.Artifact.(processor.FullResult)
		if !ok {
			result.Failed++
			continue
		}
		id, err := e.store.NextID()
		if err != nil {
			if full.HasDescriptors {
				full.CVDescriptors.Close()
			}
			return result, fmt.Errorf("engine: allocate id: %w", err)
		}
		m := full.Media
		m.ID = id
		m.Path = r.Job.Candidate.Path
		toAdd = append(toAdd, m)
		if full.HasDescriptors {
			pending = append(pending, pendingDescriptor{id: id, color: full.ColorDescriptor, cv: full.CVDescriptors})
		}
	}

	if len(toAdd) == 0 {
		return result, nil
	}

	if err := e.store.Add(toAdd); err != nil {
		closePending(pending)
		return result, fmt.Errorf("engine: add to store: %w", err)
	}
	if err := e.dctIndex.Add(toAdd); err != nil {
		closePending(pending)
		return result, fmt.Errorf("engine: add to dct index: %w", err)
	}
	if err := e.dctFeaturesIndex.Add(toAdd); err != nil {
		closePending(pending)
		return result, fmt.Errorf("engine: add to dct-features index: %w", err)
	}
	for _, p := range pending {
		e.colorIndex.AddWithDescriptors([]media.ID{p.id}, []colordesc.Descriptor{p.color})
		e.cvFeaturesIndex.AddDescriptors(p.id, p.cv) // index takes ownership of p.cv
	}
	for _, m := range toAdd {
		if m.Type != media.TypeVideo {
			continue
		}
		vdxPath := filepath.Join(e.store.VideoPath(), filepath.Base(m.Path)+".vdx")
		if vi, err := vdx.Load(vdxPath); err == nil {
			e.videoIndex.AddVideo(m.ID, vi.Frames, vi.Hashes)
		}
	}

	result.Added = len(toAdd)
	return result, nil
}

func closePending(pending []pendingDescriptor) {
	for _, p := range pending {
		p.cv.Close()
	}
}

// pendingDescriptor carries one added item's D3/D4 descriptors from the
// decode pass in Update through to the index.Add calls that follow, once
// the item has a real store-assigned id; color/CV-features can't be fed
// until then.
type pendingDescriptor struct {
	id    media.ID
	color colordesc.Descriptor
	cv    gocv.Mat
}

func mediaTypeForPath(path string) (media.Type, bool) {
	switch filepath.Ext(path) {
	case ".jpg", ".jpeg", ".png", ".bmp", ".webp", ".gif", ".tif", ".tiff":
		return media.TypeImage, true
	case ".mp4", ".mkv", ".avi", ".mov", ".webm", ".flv":
		return media.TypeVideo, true
	default:
		return 0, false
	}
}

// typeFlag converts a media.Type into the bit SearchParams.QueryTypes
// tests it against.
func typeFlag(t media.Type) index.TypeFlag {
	return index.TypeFlag(1 << (t - 1))
}

// mirrorFlipCodes returns the gocv.Flip codes (1 horizontal, 0 vertical,
// -1 both) selected by mask, in the order the reference tries them.
func mirrorFlipCodes(mask index.MirrorMask) []int {
	var codes []int
	if mask&index.MirrorHorizontal != 0 {
		codes = append(codes, 1)
	}
	if mask&index.MirrorVertical != 0 {
		codes = append(codes, 0)
	}
	if mask&index.MirrorBoth != 0 {
		codes = append(codes, -1)
	}
	return codes
}

// Query searches the requested backend(s) for needle and returns
// filtered result groups, needle first in each group (§4.H/§4.I).
func (e *Engine) Query(needle media.Media, params index.SearchParams) ([]media.Group, error) {
	// Step 2: reject outright when the needle's own type isn't among
	// the types the caller asked to search.
	if params.QueryTypes != 0 && params.QueryTypes&typeFlag(needle.Type) == 0 {
		return nil, nil
	}

	// Step 3: tag the needle's weed status directly, same as every
	// other group member gets from FilterGroup below, so a query whose
	// needle is itself a marked weed reports that on the needle record.
	if needle.ID != 0 {
		if weed, err := e.store.IsWeed(needle.ID); err == nil {
			needle.IsWeed = weed
		}
	}

	needlePath := filepath.Join(e.root, needle.Path)

	matches, err := e.search(needle, needlePath, params)
	if err != nil {
		return nil, fmt.Errorf("engine: search: %w", err)
	}

	// Step 5: color is the only backend that recognizes a mirrored
	// match, so mirrored re-queries only run for AlgoColor (§4.D4/§4.H).
	if params.Algo == index.AlgoColor {
		for _, flipCode := range mirrorFlipCodes(params.MirrorMask) {
			desc, err := e.processor.ExtractMirroredColorDescriptor(needlePath, flipCode)
			if err != nil {
				continue
			}
			matches = append(matches, e.colorIndex.FindDescriptor(desc, params)...)
		}
	}

	group := media.Group{needle}
	for _, m := range matches {
		stored, found, err := e.store.MediaWithID(m.MediaID)
		if err != nil {
			return nil, fmt.Errorf("engine: load match %d: %w", m.MediaID, err)
		}
		if !found {
			continue
		}
		stored.Score = m.Score
		stored.MatchRange = m.Range
		group = append(group, stored)
	}

	filtered, keep, err := e.filter.FilterGroup(params, group, "", true)
	if err != nil {
		return nil, fmt.Errorf("engine: filter: %w", err)
	}
	if !keep {
		return nil, nil
	}

	// Step 6: optionally validate the result set with the ORB
	// affine-transform matcher, for every backend but video (§4.H/§4.J).
	if params.TemplateMatch && params.Algo != index.AlgoVideo && len(filtered) > 1 {
		needleImg := gocv.IMRead(needlePath, gocv.IMReadColor)
		if !needleImg.Empty() {
			loadCandidate := func(m media.Media) (gocv.Mat, bool) {
				img := gocv.IMRead(filepath.Join(e.root, m.Path), gocv.IMReadColor)
				if img.Empty() {
					img.Close()
					return gocv.Mat{}, false
				}
				return img, true
			}
			validated := e.templateMatcher.Match(needle, needleImg, filtered[1:], loadCandidate, params)
			needleImg.Close()
			filtered = append(media.Group{filtered[0]}, validated...)
		}
	}

	groups := e.filter.FilterGroups(params, []media.Group{filtered})
	return groups, nil
}

// search dispatches a query to the single backend params.Algo selects,
// re-deriving the descriptor the backend needs when it isn't already
// part of the stored/needle Media record (§4.D/§4.H).
func (e *Engine) search(needle media.Media, needlePath string, params index.SearchParams) ([]index.Match, error) {
	switch params.Algo {
	case index.AlgoVideo:
		if needle.Type != media.TypeVideo {
			// Image-vs-video frame-grab query: search the single image
			// hash, reporting each matched video's nearest frame (§4.D5).
			return e.videoIndex.Find(needle, params)
		}
		vdxPath := filepath.Join(e.store.VideoPath(), filepath.Base(needle.Path)+".vdx")
		vi, loadErr := vdx.Load(vdxPath)
		if loadErr != nil {
			return nil, fmt.Errorf("load needle video index: %w", loadErr)
		}
		return e.videoIndex.FindFrames(vi.Hashes, params), nil
	case index.AlgoDCTFeatures:
		return e.dctFeaturesIndex.Find(needle, params)
	case index.AlgoCVFeatures:
		cvDescriptors, err := e.processor.ExtractCVDescriptors(needlePath)
		if err != nil {
			return nil, fmt.Errorf("extract needle cv descriptors: %w", err)
		}
		defer cvDescriptors.Close()
		return e.cvFeaturesIndex.FindDescriptors(cvDescriptors, params), nil
	case index.AlgoColor:
		desc, err := e.processor.ExtractColorDescriptor(needlePath)
		if err != nil {
			return nil, fmt.Errorf("extract needle color descriptor: %w", err)
		}
		return e.colorIndex.FindDescriptor(desc, params), nil
	default:
		return e.dctIndex.Find(needle, params)
	}
}

// Store exposes the underlying metadata store for callers (e.g. a CLI
// command implementing -rename/-select-files) that need direct access
// beyond Query/Update.
func (e *Engine) Store() *store.Store { return e.store }
