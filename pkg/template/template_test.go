package template

import (
	"image"
	"testing"

	"github.com/stretchr/testify/require"

	"cbird/pkg/media"
)

func TestCacheKeyOrderIndependent(t *testing.T) {
	a := media.Digest{1}
	b := media.Digest{2}
	require.Equal(t, cacheKey(a, b), cacheKey(b, a))
}

func TestMeanPointDistanceIdenticalClouds(t *testing.T) {
	pts := []image.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}}
	require.Zero(t, meanPointDistance(pts, pts))
}

func TestMeanPointDistanceTranslatedClouds(t *testing.T) {
	a := []image.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}}
	b := []image.Point{{X: 5, Y: 5}, {X: 15, Y: 5}, {X: 15, Y: 15}}
	require.Zero(t, meanPointDistance(a, b))
}

func TestMeanPointDistanceEmpty(t *testing.T) {
	require.Equal(t, cacheMiss, meanPointDistance(nil, nil))
}

func TestNewMatcherStartsEmpty(t *testing.T) {
	m := New()
	require.Empty(t, m.cache)
}

func TestSetCacheStoresValue(t *testing.T) {
	m := New()
	m.setCache("k", 5)
	require.Equal(t, 5, m.cache["k"])
}
