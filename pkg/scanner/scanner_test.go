package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name string, size int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
	return path
}

func TestWalkFindsKnownTypes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.jpg", 2048)
	writeFile(t, dir, "b.mp4", 2048)
	writeFile(t, dir, "c.txt", 2048)

	cands, err := Walk(dir, DefaultParams(), nil)
	require.NoError(t, err)

	byPath := map[string]Candidate{}
	for _, c := range cands {
		byPath[c.Path] = c
	}
	require.False(t, byPath["a.jpg"].Skipped)
	require.False(t, byPath["b.mp4"].Skipped)
	require.Equal(t, ErrorNoType, byPath["c.txt"].Error)
}

func TestWalkSkipsTooSmall(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "tiny.jpg", 10)

	params := DefaultParams()
	cands, err := Walk(dir, params, nil)
	require.NoError(t, err)
	require.Len(t, cands, 1)
	require.True(t, cands[0].Skipped)
	require.Equal(t, ErrorTooSmall, cands[0].Error)
}

func TestWalkNonRecursiveSkipsSubdir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "top.jpg", 2048)
	writeFile(t, dir, "sub/nested.jpg", 2048)

	params := DefaultParams()
	params.Recursive = false
	cands, err := Walk(dir, params, nil)
	require.NoError(t, err)
	require.Len(t, cands, 1)
	require.Equal(t, "top.jpg", cands[0].Path)
}

func TestWalkRespectsTypeMask(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.jpg", 2048)
	writeFile(t, dir, "b.mp4", 2048)

	params := DefaultParams()
	params.Types = TypeImage
	cands, err := Walk(dir, params, nil)
	require.NoError(t, err)

	byPath := map[string]Candidate{}
	for _, c := range cands {
		byPath[c.Path] = c
	}
	require.False(t, byPath["a.jpg"].Skipped)
	require.Equal(t, ErrorUnsupported, byPath["b.mp4"].Error)
}

func TestWalkMarksKnownPathsSkipped(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.jpg", 2048)

	cands, err := Walk(dir, DefaultParams(), map[string]bool{"a.jpg": true})
	require.NoError(t, err)
	require.Len(t, cands, 1)
	require.True(t, cands[0].Skipped)
	require.Empty(t, cands[0].Error)
}

func TestDedupInodesMarksDuplicates(t *testing.T) {
	in := []Candidate{
		{Path: "a.jpg", Inode: 42},
		{Path: "b.jpg", Inode: 42},
		{Path: "c.jpg", Inode: 7},
	}
	out := dedupInodes(in)
	require.False(t, out[0].Skipped)
	require.True(t, out[1].Skipped)
	require.Equal(t, ErrorDupInode, out[1].Error)
	require.False(t, out[2].Skipped)
}
