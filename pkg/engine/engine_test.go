package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"cbird/pkg/index"
	"cbird/pkg/media"
)

func openTestEngine(t *testing.T) *Engine {
	t.Helper()
	root := t.TempDir()
	e, err := Open(root, DefaultOptions(root))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, e.Close()) })
	return e
}

func TestOpenCreatesEmptyEngine(t *testing.T) {
	e := openTestEngine(t)
	count, err := e.Store().Count()
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestUpdateOnEmptyDirAddsNothing(t *testing.T) {
	e := openTestEngine(t)
	result, err := e.Update(context.Background())
	require.NoError(t, err)
	require.Zero(t, result.Added)
	require.Zero(t, result.Failed)
}

func TestMediaTypeForPath(t *testing.T) {
	mt, ok := mediaTypeForPath("a/b.jpg")
	require.True(t, ok)
	require.Equal(t, media.TypeImage, mt)

	mt, ok = mediaTypeForPath("a/b.mkv")
	require.True(t, ok)
	require.Equal(t, media.TypeVideo, mt)

	_, ok = mediaTypeForPath("a/b.txt")
	require.False(t, ok)
}

// TestQueryFindsSeededDuplicate seeds the store and the DCT index
// directly (bypassing the processor, which needs a real image decode)
// to exercise the Query → Find → store lookup → filter pipeline.
func TestQueryFindsSeededDuplicate(t *testing.T) {
	e := openTestEngine(t)

	needle := media.Media{ID: 1, Path: "needle.jpg", Type: media.TypeImage, DCTHash: 0x0F0F0F0F0F0F0F0F}
	dup := media.Media{ID: 2, Path: "dup.jpg", Type: media.TypeImage, DCTHash: 0x0F0F0F0F0F0F0F0E}

	require.NoError(t, e.store.Add([]media.Media{needle, dup}))
	require.NoError(t, e.dctIndex.Add([]media.Media{needle, dup}))

	params := index.DefaultSearchParams()
	params.DCTThresh = 5

	groups, err := e.Query(needle, params)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Equal(t, needle.ID, groups[0][0].ID)

	var found bool
	for _, m := range groups[0][1:] {
		if m.ID == dup.ID {
			found = true
		}
	}
	require.True(t, found)
}

func TestQueryMinMatchesDropsEmptyResult(t *testing.T) {
	e := openTestEngine(t)

	needle := media.Media{ID: 1, Path: "needle.jpg", Type: media.TypeImage, DCTHash: 0xFFFFFFFFFFFFFFFF}
	require.NoError(t, e.store.Add([]media.Media{needle}))
	require.NoError(t, e.dctIndex.Add([]media.Media{needle}))

	params := index.DefaultSearchParams()
	params.MinMatches = 1

	groups, err := e.Query(needle, params)
	require.NoError(t, err)
	require.Empty(t, groups)
}
