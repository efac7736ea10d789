//go:build unix

package scanner

import (
	"io/fs"
	"syscall"
)

// inodeOf extracts the inode number from a file's stat info, when the
// platform exposes one, so dedupInodes can collapse hardlinks/symlinks
// that resolve to the same underlying file (§4.F).
func inodeOf(info fs.FileInfo) uint64 {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return uint64(st.Ino)
	}
	return 0
}
