package colordesc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestColorKeyRoundTrip(t *testing.T) {
	c := compress(50.0, 0.0, 0.0)
	key := c.Key()
	require.Equal(t, uint64(c.L)<<32|uint64(c.U)<<16|uint64(c.V), key)
}

func TestDistanceSelfIsZero(t *testing.T) {
	d := Descriptor{Colors: []Color{
		{L: 100, U: 200, V: 300, Weight: 10},
		{L: 500, U: 600, V: 700, Weight: 20},
	}}
	require.Zero(t, Distance(d, d))
}

func TestDistanceSymmetric(t *testing.T) {
	a := Descriptor{Colors: []Color{{L: 100, U: 200, V: 300, Weight: 10}}}
	b := Descriptor{Colors: []Color{{L: 400, U: 500, V: 600, Weight: 5}}}
	require.InDelta(t, Distance(a, b), Distance(b, a), 1e-9)
}

func TestDistanceEmptyDescriptors(t *testing.T) {
	require.Zero(t, Distance(Descriptor{}, Descriptor{}))
}

func TestClamp16(t *testing.T) {
	require.Equal(t, uint16(0), clamp16(-5))
	require.Equal(t, uint16(65535), clamp16(1e9))
}
