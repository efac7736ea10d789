package vdx

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleIndex() *VideoIndex {
	return &VideoIndex{
		Frames: []int32{0, 300, 900, 1500, 3000, 300000},
		Hashes: []uint64{0xdeadbeef00000000, 0x10, 0x2, 0xFFFFFFFFFFFFFFFE, 0, 0x8000000000000000},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	want := sampleIndex()
	path := filepath.Join(t.TempDir(), "sample.vdx")

	require.NoError(t, Save(path, want))

	got, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, want.Frames, got.Frames)
	require.Equal(t, want.Hashes, got.Hashes)
}

func TestLoadMasksReservedBit(t *testing.T) {
	dirty := &VideoIndex{
		Frames: []int32{0, 10},
		Hashes: []uint64{0x3, 0x5},
	}
	path := filepath.Join(t.TempDir(), "dirty.vdx")
	require.NoError(t, Save(path, dirty))

	got, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, uint64(0x2), got.Hashes[0])
	require.Equal(t, uint64(0x4), got.Hashes[1])
}

func TestValid(t *testing.T) {
	require.True(t, (&VideoIndex{}).Valid())

	ok := &VideoIndex{Frames: []int32{0, 5, 10}, Hashes: []uint64{1, 2, 3}}
	require.True(t, ok.Valid())

	badStart := &VideoIndex{Frames: []int32{1, 5}, Hashes: []uint64{1, 2}}
	require.False(t, badStart.Valid())

	notIncreasing := &VideoIndex{Frames: []int32{0, 5, 5}, Hashes: []uint64{1, 2, 3}}
	require.False(t, notIncreasing.Valid())

	mismatched := &VideoIndex{Frames: []int32{0, 5}, Hashes: []uint64{1}}
	require.False(t, mismatched.Valid())
}

func TestSaveEmptyIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.vdx")
	require.NoError(t, Save(path, &VideoIndex{}))

	got, err := Load(path)
	require.NoError(t, err)
	require.True(t, got.Empty())
}

func TestVerifyRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v.vdx")
	require.NoError(t, Save(path, sampleIndex()))

	ok, err := Verify(path)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestLoadV1(t *testing.T) {
	// hand-built legacy format: u16 numFrames | u16[] frames | u64[] hashes
	buf := []byte{2, 0}
	buf = append(buf, 0, 0) // frame 0
	buf = append(buf, 10, 0) // frame 10
	buf = append(buf, leU64(0x1234)...)
	buf = append(buf, leU64(0x5678)...)

	path := filepath.Join(t.TempDir(), "legacy.vdx")
	require.NoError(t, os.WriteFile(path, buf, 0o644))

	got, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, []int32{0, 10}, got.Frames)
	require.Equal(t, []uint64{0x1234, 0x5678}, got.Hashes)
}

func TestLoadV1TruncatedRejected(t *testing.T) {
	buf := []byte{5, 0} // claims 5 frames but has no payload
	path := filepath.Join(t.TempDir(), "truncated.vdx")
	require.NoError(t, os.WriteFile(path, buf, 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestPackUnpackFramesRoundTrip(t *testing.T) {
	frames := []int32{0, 1, 2, 300, 301, 16383, 16384, 2000000}
	packed, err := packFrames(frames)
	require.NoError(t, err)

	got, err := unpackFrames(packed, len(frames))
	require.NoError(t, err)
	require.Equal(t, frames, got)
}

func TestPackFramesRejectsNonIncreasing(t *testing.T) {
	_, err := packFrames([]int32{0, 5, 5})
	require.Error(t, err)
}

func leU64(v uint64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
	return b
}
