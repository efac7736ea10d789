// Package index defines the shared search-index contract (§4.D) and the
// SearchParams the engine passes into every backend. Concrete backends
// (dcthash, dctfeatures, cvfeatures, color, dctvideo) live in sibling
// files of this package.
package index

import "cbird/pkg/media"

// Algo selects which index backend a search runs against.
type Algo int

const (
	AlgoDCT Algo = iota
	AlgoDCTFeatures
	AlgoCVFeatures
	AlgoColor
	AlgoVideo
	NumAlgos
)

func (a Algo) String() string {
	switch a {
	case AlgoDCT:
		return "dct"
	case AlgoDCTFeatures:
		return "dct-features"
	case AlgoCVFeatures:
		return "cv-features"
	case AlgoColor:
		return "color"
	case AlgoVideo:
		return "video"
	default:
		return "unknown"
	}
}

// MirrorMask selects which mirrored variants of the needle are also
// searched, since no backend but color recognizes a mirrored match.
type MirrorMask int

const (
	MirrorNone       MirrorMask = 0
	MirrorHorizontal MirrorMask = 1
	MirrorVertical   MirrorMask = 2
	MirrorBoth       MirrorMask = 4
)

// TypeFlag is a bitmask of media.Type selecting which types a search
// considers.
type TypeFlag int

const (
	FlagImage TypeFlag = 1 << (media.TypeImage - 1)
	FlagVideo TypeFlag = 1 << (media.TypeVideo - 1)
	FlagAudio TypeFlag = 1 << (media.TypeAudio - 1)
)

// SearchParams bundles every tunable a query can set, mirroring the
// reference implementation's single combined parameter struct so every
// backend and filter stage reads from one place (§4.D, §6).
type SearchParams struct {
	Algo             Algo
	DCTThresh        int
	CVThresh         int
	MinMatches       int
	MaxMatches       int
	NeedleFeatures   int
	HaystackFeatures int
	MirrorMask       MirrorMask
	MaxThresh        int
	TMThresh         int
	TMScalePct       int
	TemplateMatch    bool
	NegativeMatch    bool
	AutoCrop         bool
	Verbose          bool
	Path             string
	InPath           bool
	InSet            bool
	QueryTypes       TypeFlag
	SkipFrames       int
	MinFramesMatched int
	MinFramesNear    int
	VideoRadix       int
	FilterSelf       bool
	FilterGroups     bool
	FilterParent     bool
	ExpandGroups     bool
	MergeGroups      int
	ProgressInterval int
}

// DefaultSearchParams returns the reference implementation's defaults
// exactly (§4.D, §9); callers mutate a copy.
func DefaultSearchParams() SearchParams {
	return SearchParams{
		Algo:             AlgoDCT,
		DCTThresh:        5,
		CVThresh:         25,
		MinMatches:       1,
		MaxMatches:       5,
		NeedleFeatures:   100,
		HaystackFeatures: 1000,
		MirrorMask:       MirrorNone,
		MaxThresh:        0,
		TMThresh:         7,
		TMScalePct:       200,
		TemplateMatch:    false,
		NegativeMatch:    false,
		AutoCrop:         false,
		Verbose:          false,
		QueryTypes:       FlagImage,
		SkipFrames:       300,
		MinFramesMatched: 30,
		MinFramesNear:    60,
		VideoRadix:       10,
		FilterSelf:       true,
		FilterGroups:     true,
		FilterParent:     false,
		ExpandGroups:     false,
		MergeGroups:      0,
		ProgressInterval: 1000,
	}
}

// Match is one candidate result from a backend's Find, scored and
// optionally carrying the matched sub-range for video results.
type Match struct {
	MediaID media.ID
	Score   int
	Range   media.MatchRange
}

// Index is the contract every search backend implements (§4.D). A
// concrete backend owns an in-memory structure rebuilt from persisted
// records and answers Find queries against it.
type Index interface {
	// ID names the backend (its Algo's String form).
	ID() string

	IsLoaded() bool

	// MemoryUsage estimates resident bytes, used for diagnostics only.
	MemoryUsage() int64

	// Count returns the number of indexed records (not media items --
	// dctvideo and cvfeatures index many records per media item).
	Count() int

	// Add incorporates newly-processed media into the in-memory
	// structure. It does not persist; callers write the records with
	// store.Store.Add separately (§4.E).
	Add(items []media.Media) error

	// Remove drops every record belonging to the given media IDs.
	Remove(ids []media.ID) error

	// Find returns the backend's candidates sorted by ascending score
	// (closer match first), truncated to MaxMatches. The MinMatches
	// floor is applied afterwards by pkg/filter, not by Find.
	Find(needle media.Media, params SearchParams) ([]Match, error)

	// Slice returns a new Index containing only records for the given
	// media IDs, used to build scoped sub-searches without touching
	// the backing store.
	Slice(ids map[media.ID]bool) Index
}
