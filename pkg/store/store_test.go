package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"cbird/pkg/media"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func TestNextIDMonotonic(t *testing.T) {
	s := openTestStore(t)
	a, err := s.NextID()
	require.NoError(t, err)
	b, err := s.NextID()
	require.NoError(t, err)
	require.True(t, a.Valid())
	require.True(t, b > a)
}

func TestAddAndMediaWithID(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Add([]media.Media{{ID: 1, Path: "a.jpg", Type: media.TypeImage}}))

	got, found, err := s.MediaWithID(1)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "a.jpg", got.Path)
}

func TestAddRejectsInvalidID(t *testing.T) {
	s := openTestStore(t)
	err := s.Add([]media.Media{{Path: "noid.jpg"}})
	require.Error(t, err)
}

func TestRemove(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Add([]media.Media{{ID: 1, Path: "a.jpg"}}))
	require.NoError(t, s.Remove([]media.ID{1}))

	_, found, err := s.MediaWithID(1)
	require.NoError(t, err)
	require.False(t, found)
}

func TestMediaWithPath(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Add([]media.Media{{ID: 1, Path: "a.jpg"}, {ID: 2, Path: "b.jpg"}}))

	got, found, err := s.MediaWithPath("b.jpg")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, media.ID(2), got.ID)

	exists, err := s.MediaExists("missing.jpg")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestIndexedFilesAndAll(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Add([]media.Media{{ID: 1, Path: "a.jpg"}, {ID: 2, Path: "b.jpg"}}))

	files, err := s.IndexedFiles()
	require.NoError(t, err)
	require.True(t, files["a.jpg"])
	require.True(t, files["b.jpg"])

	all, err := s.All()
	require.NoError(t, err)
	require.Len(t, all, 2)

	count, err := s.Count()
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestLastAdded(t *testing.T) {
	s := openTestStore(t)

	zero, err := s.LastAdded()
	require.NoError(t, err)
	require.True(t, zero.IsZero())

	require.NoError(t, s.Add([]media.Media{{ID: 1, Path: "a.jpg"}}))
	after, err := s.LastAdded()
	require.NoError(t, err)
	require.False(t, after.IsZero())
}

func TestNegativeMatchSymmetric(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.AddNegativeMatch(1, 2))

	ok, err := s.IsNegativeMatch(1, 2)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.IsNegativeMatch(2, 1)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.IsNegativeMatch(1, 3)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestWeedTagging(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.AddWeed(5, 1))

	ok, err := s.IsWeed(5)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, s.RemoveWeed(5))
	ok, err = s.IsWeed(5)
	require.NoError(t, err)
	require.False(t, ok)
}
