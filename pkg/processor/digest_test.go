package processor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDigestFileDeterministic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.bin")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))

	d1, err := digestFile(path)
	require.NoError(t, err)
	d2, err := digestFile(path)
	require.NoError(t, err)
	require.Equal(t, d1, d2)
	require.False(t, d1.IsZero())
}

func TestDigestFileDiffersOnContent(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.bin")
	b := filepath.Join(dir, "b.bin")
	require.NoError(t, os.WriteFile(a, []byte("hello"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("world"), 0o644))

	da, err := digestFile(a)
	require.NoError(t, err)
	db, err := digestFile(b)
	require.NoError(t, err)
	require.NotEqual(t, da, db)
}

func TestDigestFileMissing(t *testing.T) {
	_, err := digestFile(filepath.Join(t.TempDir(), "missing.bin"))
	require.Error(t, err)
}
