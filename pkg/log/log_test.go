package log

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T) *Logger {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	logger := NewLogger(&sync.WaitGroup{})
	logger.Start(ctx)
	return logger
}

func TestLoggerSubscribeReceivesMsg(t *testing.T) {
	logger := newTestLogger(t)
	feed, cancel := logger.Subscribe()
	defer cancel()

	go logger.Info().Src("scanner").Job("job1").Msg("hello")

	select {
	case entry := <-feed:
		require.Equal(t, "hello", entry.Msg)
		require.Equal(t, LevelInfo, entry.Level)
		require.Equal(t, "scanner", entry.Src)
		require.Equal(t, "job1", entry.Job)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for log entry")
	}
}

func TestLoggerMsgf(t *testing.T) {
	logger := newTestLogger(t)
	feed, cancel := logger.Subscribe()
	defer cancel()

	go logger.Error().Msgf("count=%d", 3)

	select {
	case entry := <-feed:
		require.Equal(t, "count=3", entry.Msg)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for log entry")
	}
}

func TestLoggerUnsubscribeStopsDelivery(t *testing.T) {
	logger := newTestLogger(t)
	feed, cancel := logger.Subscribe()
	cancel()

	logger.Info().Msg("after unsubscribe")

	_, ok := <-feed
	require.False(t, ok)
}
