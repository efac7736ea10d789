//go:build !unix

package scanner

import "io/fs"

// inodeOf has no portable equivalent outside unix; dedupInodes simply
// does nothing on these platforms (§4.F).
func inodeOf(info fs.FileInfo) uint64 { return 0 }
