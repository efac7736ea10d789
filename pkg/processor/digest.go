package processor

import (
	"crypto/md5" //nolint:gosec // content fingerprint, not a security boundary
	"io"
	"os"

	"cbird/pkg/media"
)

// Digest returns the MD5 checksum of the file at path, the same
// computation Process uses to fill Media.Digest. Exported so a verify
// pass (pkg/engine) can recompute and compare without re-running the
// whole decode pipeline.
func Digest(path string) (media.Digest, error) {
	return digestFile(path)
}

// digestFile returns the MD5 checksum of the file at path, streamed so
// memory use doesn't scale with file size (§4.G, original_source's
// Media::makeMd5 reads the file in chunks rather than loading it whole).
func digestFile(path string) (media.Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return media.Digest{}, err
	}
	defer f.Close()

	h := md5.New() //nolint:gosec
	if _, err := io.Copy(h, f); err != nil {
		return media.Digest{}, err
	}

	var d media.Digest
	copy(d[:], h.Sum(nil))
	return d, nil
}
