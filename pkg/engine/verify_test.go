package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"cbird/pkg/media"
	"cbird/pkg/processor"
)

func TestVerifyFlagsDigestMismatch(t *testing.T) {
	e := openTestEngine(t)

	path := filepath.Join(e.root, "photo.jpg")
	require.NoError(t, os.WriteFile(path, []byte("original"), 0o600))

	digest, err := processor.Digest(path)
	require.NoError(t, err)

	m := media.Media{ID: 1, Path: "photo.jpg", Type: media.TypeImage, Digest: digest}
	require.NoError(t, e.store.Add([]media.Media{m}))

	report, err := e.Verify()
	require.NoError(t, err)
	require.Equal(t, 1, report.Checked)
	require.Empty(t, report.DigestMismatch)
	require.Empty(t, report.Missing)

	require.NoError(t, os.WriteFile(path, []byte("tampered"), 0o600))

	report, err = e.Verify()
	require.NoError(t, err)
	require.Equal(t, []string{"photo.jpg"}, report.DigestMismatch)
}

func TestVerifyFlagsMissingFile(t *testing.T) {
	e := openTestEngine(t)

	m := media.Media{ID: 1, Path: "gone.jpg", Type: media.TypeImage}
	require.NoError(t, e.store.Add([]media.Media{m}))

	report, err := e.Verify()
	require.NoError(t, err)
	require.Equal(t, []string{"gone.jpg"}, report.Missing)
}
