package scanner

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildTestZip(t *testing.T, entries map[string]int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "photos.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := zip.NewWriter(f)
	for name, size := range entries {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write(make([]byte, size))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return path
}

func TestWalkZipListsMembers(t *testing.T) {
	path := buildTestZip(t, map[string]int{"a.jpg": 2048, "notes.txt": 2048})

	cands, err := WalkZip(path, DefaultParams())
	require.NoError(t, err)

	byPath := map[string]Candidate{}
	for _, c := range cands {
		byPath[c.Path] = c
	}
	require.False(t, byPath[path+":a.jpg"].Skipped)
	require.Equal(t, ErrorNoType, byPath[path+":notes.txt"].Error)
}

func TestArchivePathsRoundTrip(t *testing.T) {
	vp := virtualPath("/data/photos.zip", "a.jpg")
	archive, member, ok := ArchivePaths(vp)
	require.True(t, ok)
	require.Equal(t, "/data/photos.zip", archive)
	require.Equal(t, "a.jpg", member)

	_, _, ok = ArchivePaths("/data/plain.jpg")
	require.False(t, ok)
}
