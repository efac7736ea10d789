package scanner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"cbird/pkg/media"
)

func TestDispatcherRunsAllJobs(t *testing.T) {
	jobs := []Job{
		{Candidate: Candidate{Path: "a.jpg"}, Type: media.TypeImage},
		{Candidate: Candidate{Path: "b.mp4"}, Type: media.TypeVideo},
	}

	d := NewDispatcher(func(ctx context.Context, path string, mediaType media.Type) (any, error) {
		if path == "b.mp4" {
			return media.Media{}, errors.New("decode failed")
		}
		return media.Media{Path: path, Type: mediaType}, nil
	}, 2, 1)

	results := d.Run(context.Background(), jobs)
	require.Len(t, results, 2)

	byPath := map[string]Result{}
	for _, r := range results {
		byPath[r.Job.Candidate.Path] = r
	}
	require.NoError(t, byPath["a.jpg"].Err)
	require.Error(t, byPath["b.mp4"].Err)
}

func TestDispatcherHonorsCancellation(t *testing.T) {
	jobs := []Job{{Candidate: Candidate{Path: "a.jpg"}, Type: media.TypeImage}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := NewDispatcher(func(ctx context.Context, path string, mediaType media.Type) (any, error) {
		return media.Media{Path: path}, nil
	}, 1, 1)

	results := d.Run(ctx, jobs)
	require.Len(t, results, 1)
	require.Error(t, results[0].Err)
}
