package scanner

import (
	"archive/zip"
	"fmt"
)

// virtualPath builds the "archive:member" addressing scheme used for a
// file found inside a zip container, matching the reference's
// Media::virtualPath (original_source/src/scanner.cpp readZip).
func virtualPath(archivePath, memberName string) string {
	return archivePath + ":" + memberName
}

// ArchivePaths splits a virtual path back into its zip file and member,
// the inverse of virtualPath. ok is false for a plain filesystem path.
func ArchivePaths(virtual string) (archivePath, member string, ok bool) {
	for i := len(virtual) - 1; i >= 0; i-- {
		if virtual[i] == ':' {
			return virtual[:i], virtual[i+1:], true
		}
	}
	return virtual, "", false
}

// WalkZip lists the image/video members of a zip archive as Candidates
// addressed by virtualPath, applying the same type/size filters as Walk.
// Grounded on the reference's readZip (original_source/src/scanner.cpp):
// only one container level is expected, nested archives are not unpacked.
func WalkZip(archivePath string, params Params) ([]Candidate, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("scanner: open archive %s: %w", archivePath, err)
	}
	defer r.Close()

	var out []Candidate
	seen := map[string]bool{}
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		vp := virtualPath(archivePath, f.Name)
		if seen[vp] {
			// quazip notes real-world zips occasionally contain duplicate
			// member names; keep the first and ignore the rest.
			continue
		}
		seen[vp] = true

		if matchesAny(params.ExcludePatterns, f.Name) {
			if params.ShowIgnored {
				out = append(out, Candidate{Path: vp, Skipped: true, Error: ErrorUserFilter})
			}
			continue
		}

		mediaType, known := typeOf(f.Name)
		if !known {
			out = append(out, Candidate{Path: vp, Skipped: true, Error: ErrorNoType})
			continue
		}
		if mediaType != 1 && mediaType != 2 {
			// archives only ever held compressed images/video in the
			// reference tool; audio members are left alone.
			out = append(out, Candidate{Path: vp, Skipped: true, Error: ErrorUnsupported})
			continue
		}
		if params.Types&flagFor(mediaType) == 0 {
			out = append(out, Candidate{Path: vp, Skipped: true, Error: ErrorUnsupported})
			continue
		}
		if f.UncompressedSize64 < uint64ToInt64Clamp(params.MinFileSize) {
			out = append(out, Candidate{Path: vp, Skipped: true, Error: ErrorTooSmall})
			continue
		}

		out = append(out, Candidate{Path: vp, Size: int64(f.UncompressedSize64)})
	}
	return out, nil
}

func uint64ToInt64Clamp(v int64) uint64 {
	if v < 0 {
		return 0
	}
	return uint64(v)
}
