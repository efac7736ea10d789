package index

import (
	"testing"

	"github.com/stretchr/testify/require"

	"cbird/pkg/media"
)

// validHashes are all low-bit-zero with a popcount safely inside
// [minSetBits, 64-minSetBits], so AddVideo's discriminative-frame filter
// never drops them.
var validHashes = []uint64{0x1F8, 0x3F8, 0x7F8, 0xFF8, 0x1FF8, 0x3FF8}

func TestDCTVideoIndexFindFramesLongRun(t *testing.T) {
	idx := NewDCTVideoIndex(10)

	frames := []int32{0, 10, 20, 30, 40, 50}
	idx.AddVideo(media.ID(1), frames, validHashes)
	require.Equal(t, 6, idx.Count())

	params := DefaultSearchParams()
	params.MinFramesMatched = 4
	params.DCTThresh = 1

	results := idx.FindFrames(validHashes, params)
	require.Len(t, results, 1)
	require.Equal(t, media.ID(1), results[0].MediaID)
}

func TestDCTVideoIndexDropsIndiscriminateFrames(t *testing.T) {
	idx := NewDCTVideoIndex(10)
	// all-zero and all-one hashes have < minSetBits discriminating bits
	idx.AddVideo(media.ID(1), []int32{0, 30}, []uint64{0, 0xFFFFFFFFFFFFFFFF})
	require.Equal(t, 0, idx.Count())
}

func TestDCTVideoIndexRemove(t *testing.T) {
	idx := NewDCTVideoIndex(10)
	idx.AddVideo(media.ID(1), []int32{0, 30, 60, 90}, validHashes[:4])
	require.Equal(t, 4, idx.Count())

	require.NoError(t, idx.Remove([]media.ID{1}))
	require.Equal(t, 0, idx.Count())
}

func TestDCTVideoIndexSlice(t *testing.T) {
	idx := NewDCTVideoIndex(10)
	idx.AddVideo(media.ID(1), []int32{0, 30}, validHashes[:2])
	idx.AddVideo(media.ID(2), []int32{0, 30}, validHashes[:2])

	sliced := idx.Slice(map[media.ID]bool{2: true})
	require.Equal(t, 2, sliced.Count())
}

func TestRadixMapIndexOfMasksLowBit(t *testing.T) {
	r := newRadixMap(4)
	require.Equal(t, r.indexOf(0b11110), r.indexOf(0b11111))
}
