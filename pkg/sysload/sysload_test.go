package sysload

import (
	"context"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/stretchr/testify/require"
)

func TestUpdateSetsStatus(t *testing.T) {
	m := New(nil, time.Millisecond)
	m.cpu = func(context.Context, time.Duration, bool) ([]float64, error) {
		return []float64{42}, nil
	}
	m.ram = func() (*mem.VirtualMemoryStat, error) {
		return &mem.VirtualMemoryStat{UsedPercent: 55}, nil
	}

	require.NoError(t, m.update(context.Background()))
	status := m.Status()
	require.Equal(t, 42, status.CPUPercent)
	require.Equal(t, 55, status.RAMPercent)
}

func TestRecommendedWorkersBacksOffUnderLoad(t *testing.T) {
	m := New(nil, time.Millisecond)

	m.mu.Lock()
	m.status = Status{CPUPercent: 95}
	m.mu.Unlock()
	require.Equal(t, 1, m.RecommendedWorkers(8))

	m.mu.Lock()
	m.status = Status{CPUPercent: 80}
	m.mu.Unlock()
	require.Equal(t, 4, m.RecommendedWorkers(8))

	m.mu.Lock()
	m.status = Status{CPUPercent: 10}
	m.mu.Unlock()
	require.Equal(t, 8, m.RecommendedWorkers(8))
}
