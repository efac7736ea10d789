package media

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCloneCopiesAttributesMap(t *testing.T) {
	m := Media{ID: 1, Attributes: map[string]string{"a": "1"}}
	clone := m.Clone()
	clone.Attributes["a"] = "2"

	require.Equal(t, "1", m.Attributes["a"])
	require.Equal(t, "2", clone.Attributes["a"])
}

func TestInStore(t *testing.T) {
	require.False(t, Media{}.InStore())
	require.True(t, Media{ID: 1}.InStore())
}

func TestDigestIsZero(t *testing.T) {
	require.True(t, Digest{}.IsZero())
	d := Digest{1}
	require.False(t, d.IsZero())
}

func TestTypeString(t *testing.T) {
	require.Equal(t, "image", TypeImage.String())
	require.Equal(t, "video", TypeVideo.String())
	require.Equal(t, "audio", TypeAudio.String())
}

func TestGroupPathsAndIDs(t *testing.T) {
	g := Group{
		{ID: 1, Path: "a.jpg"},
		{ID: 2, Path: "b.jpg"},
	}
	require.Equal(t, []string{"a.jpg", "b.jpg"}, g.Paths())
	require.Equal(t, []ID{1, 2}, g.IDs())
}
