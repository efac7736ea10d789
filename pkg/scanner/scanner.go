// Package scanner walks a managed directory tree, applies the
// include/exclude/size/symlink policy, and emits one job per candidate
// file for the processor to pick up (§4.F). Grounded on the reference's
// Scanner/IndexParams (original_source/src/scanner.h/.cpp) and the
// teacher's directory-walk shape in pkg/storage/crawler.go.
package scanner

import (
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"cbird/pkg/media"
)

// TypeFlag mirrors media.Type as a bitmask so IndexParams.Types can
// enable more than one kind at once (§4.F).
type TypeFlag int

const (
	TypeImage TypeFlag = 1
	TypeVideo TypeFlag = 2
	TypeAudio TypeFlag = 4
	TypeAll   TypeFlag = TypeImage | TypeVideo | TypeAudio
)

// Known scan-skip reasons, surfaced on Result.Error (§4.F "error
// conditions").
const (
	ErrorOpen        = "open error"
	ErrorLoad        = "format error"
	ErrorTooSmall    = "skip small file"
	ErrorUnsupported = "unsupported file type"
	ErrorNoType      = "unknown file type"
	ErrorDupInode    = "duplicate inode"
	ErrorNoLinks     = "link following disabled"
	ErrorUserFilter  = "skipped by user filter"
)

// Params controls what the walk considers and how aggressively it
// indexes, matching the reference's IndexParams defaults exactly (§4.F).
type Params struct {
	Types TypeFlag

	Recursive       bool
	ExcludePatterns []*regexp.Regexp
	IncludePatterns []*regexp.Regexp
	MinFileSize     int64

	FollowSymlinks bool
	ResolveLinks   bool
	DupInodes      bool
	ModTime        bool

	Autocrop          bool
	NumFeatures       int
	ResizeLongestSide int
	VideoThreshold    int
	RetainData        bool
	RetainImage       bool

	WriteBatchSize int
	EstimateCost   bool

	ShowIgnored bool
	Verbose     bool
	DryRun      bool
}

// DefaultParams mirrors the reference's IndexParams defaults (§4.F).
func DefaultParams() Params {
	return Params{
		Types:             TypeAll,
		Recursive:         true,
		MinFileSize:       1024,
		FollowSymlinks:    false,
		ResolveLinks:      false,
		DupInodes:         false,
		ModTime:           false,
		Autocrop:          true,
		NumFeatures:       400,
		ResizeLongestSide: 400,
		VideoThreshold:    8,
		RetainData:        false,
		RetainImage:       false,
		WriteBatchSize:    1024,
		EstimateCost:      true,
		ShowIgnored:       false,
		Verbose:           false,
		DryRun:            false,
	}
}

// Candidate is one file the walk found worth handing to the processor,
// or a reason it was skipped (§4.F).
type Candidate struct {
	Path  string
	Size  int64
	Inode uint64 // 0 if unknown/unsupported on this platform

	Skipped bool
	Error   string
}

// extByType maps the file extensions the reference recognizes per media
// type (§4.F); kept small and explicit rather than delegating to a MIME
// library, since the set of supported container formats is fixed.
var extByType = map[string]media.Type{
	".jpg": media.TypeImage, ".jpeg": media.TypeImage, ".png": media.TypeImage,
	".bmp": media.TypeImage, ".webp": media.TypeImage, ".gif": media.TypeImage,
	".tif": media.TypeImage, ".tiff": media.TypeImage,
	".mp4": media.TypeVideo, ".mkv": media.TypeVideo, ".avi": media.TypeVideo,
	".mov": media.TypeVideo, ".webm": media.TypeVideo, ".flv": media.TypeVideo,
	".mp3": media.TypeAudio, ".flac": media.TypeAudio, ".wav": media.TypeAudio,
}

func typeOf(path string) (media.Type, bool) {
	t, ok := extByType[filepath.Ext(path)]
	return t, ok
}

func flagFor(t media.Type) TypeFlag { return TypeFlag(1 << (t - 1)) }

// Walk traverses root and sends one Candidate per regular file it finds,
// applying params' filters along the way; already-indexed paths in
// skipPaths are reported as skipped with no error so callers can tell
// "known, unchanged" apart from "newly found".
func Walk(root string, params Params, skipPaths map[string]bool) ([]Candidate, error) {
	var out []Candidate

	walkFn := func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && !params.Recursive {
				return filepath.SkipDir
			}
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}

		if matchesAny(params.ExcludePatterns, rel) {
			if params.ShowIgnored {
				out = append(out, Candidate{Path: rel, Skipped: true, Error: ErrorUserFilter})
			}
			return nil
		}
		if len(params.IncludePatterns) > 0 && !matchesAny(params.IncludePatterns, rel) {
			if params.ShowIgnored {
				out = append(out, Candidate{Path: rel, Skipped: true, Error: ErrorUserFilter})
			}
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			out = append(out, Candidate{Path: rel, Skipped: true, Error: ErrorOpen})
			return nil
		}

		if info.Mode()&os.ModeSymlink != 0 && !params.FollowSymlinks {
			out = append(out, Candidate{Path: rel, Skipped: true, Error: ErrorNoLinks})
			return nil
		}

		if info.Size() < params.MinFileSize {
			out = append(out, Candidate{Path: rel, Skipped: true, Error: ErrorTooSmall})
			return nil
		}

		mediaType, known := typeOf(rel)
		if !known {
			out = append(out, Candidate{Path: rel, Skipped: true, Error: ErrorNoType})
			return nil
		}
		if params.Types&flagFor(mediaType) == 0 {
			out = append(out, Candidate{Path: rel, Skipped: true, Error: ErrorUnsupported})
			return nil
		}

		inode := inodeOf(info)
		if skipPaths[rel] {
			out = append(out, Candidate{Path: rel, Size: info.Size(), Inode: inode, Skipped: true})
			return nil
		}

		out = append(out, Candidate{Path: rel, Size: info.Size(), Inode: inode})
		return nil
	}

	if err := filepath.WalkDir(root, walkFn); err != nil {
		return nil, err
	}

	if !params.DupInodes {
		out = dedupInodes(out)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func matchesAny(patterns []*regexp.Regexp, path string) bool {
	for _, p := range patterns {
		if p.MatchString(path) {
			return true
		}
	}
	return false
}

// dedupInodes marks every Candidate after the first with a given inode
// as a duplicate, the common case of two paths (usually a symlink and
// its target, or a hardlink) resolving to the same file on disk (§4.F).
func dedupInodes(in []Candidate) []Candidate {
	seen := map[uint64]bool{}
	out := make([]Candidate, 0, len(in))
	for _, c := range in {
		if c.Inode != 0 && !c.Skipped {
			if seen[c.Inode] {
				c.Skipped = true
				c.Error = ErrorDupInode
			}
			seen[c.Inode] = true
		}
		out = append(out, c)
	}
	return out
}
