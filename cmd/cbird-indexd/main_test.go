package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"cbird/pkg/config"
	"cbird/pkg/log"
	"cbird/pkg/sysload"
)

func TestEngineOptionsAppliesRecommendedWorkers(t *testing.T) {
	env := &config.Env{Roots: []string{"/media"}, ImageWorkers: 8, VideoWorkers: 4}
	load := sysload.New(log.NewLogger(nil), time.Millisecond)

	opts := engineOptions(env, load)

	// With no sample yet, RecommendedWorkers returns the input unchanged.
	require.Equal(t, 8, opts.ImageWorkers)
	require.Equal(t, 4, opts.VideoWorkers)
}
