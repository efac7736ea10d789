package index

import (
	"testing"

	"github.com/stretchr/testify/require"

	"cbird/pkg/colordesc"
	"cbird/pkg/media"
)

func TestColorIndexFindDescriptor(t *testing.T) {
	idx := NewColorIndex()
	near := colordesc.Descriptor{Colors: []colordesc.Color{{L: 100, U: 200, V: 300, Weight: 10}}}
	far := colordesc.Descriptor{Colors: []colordesc.Color{{L: 60000, U: 60000, V: 60000, Weight: 10}}}
	idx.AddWithDescriptors([]media.ID{1, 2}, []colordesc.Descriptor{near, far})

	params := DefaultSearchParams()
	results := idx.FindDescriptor(near, params)
	require.NotEmpty(t, results)
	require.Equal(t, media.ID(1), results[0].MediaID)
	require.Zero(t, results[0].Score)
}

func TestColorIndexRemove(t *testing.T) {
	idx := NewColorIndex()
	d := colordesc.Descriptor{Colors: []colordesc.Color{{L: 100, U: 200, V: 300, Weight: 10}}}
	idx.AddWithDescriptors([]media.ID{1, 2}, []colordesc.Descriptor{d, d})
	require.NoError(t, idx.Remove([]media.ID{1}))
	require.Equal(t, 1, idx.Count())
}

func TestColorIndexSlice(t *testing.T) {
	idx := NewColorIndex()
	d := colordesc.Descriptor{Colors: []colordesc.Color{{L: 100, U: 200, V: 300, Weight: 10}}}
	idx.AddWithDescriptors([]media.ID{1, 2, 3}, []colordesc.Descriptor{d, d, d})

	sliced := idx.Slice(map[media.ID]bool{2: true})
	require.Equal(t, 1, sliced.Count())
}
