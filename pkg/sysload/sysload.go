// Package sysload polls host CPU/RAM usage so the engine can size
// its worker pools and report progress, adapted from pkg/system/system.go's
// injected-function status loop (cpuFunc/ramFunc as a test seam, a single
// background updater guarded by sync.Once).
package sysload

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"cbird/pkg/log"
)

// Status is a snapshot of host resource usage.
type Status struct {
	CPUPercent int `json:"cpuPercent"`
	RAMPercent int `json:"ramPercent"`
}

type (
	cpuFunc func(context.Context, time.Duration, bool) ([]float64, error)
	ramFunc func() (*mem.VirtualMemoryStat, error)
)

// Monitor periodically samples host load.
type Monitor struct {
	cpu cpuFunc
	ram ramFunc

	status   Status
	duration time.Duration

	log *log.Logger
	mu  sync.Mutex
	o   sync.Once
}

// New returns a Monitor sampling every interval (10s if zero).
func New(logger *log.Logger, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Monitor{
		cpu:      cpu.PercentWithContext,
		ram:      mem.VirtualMemory,
		duration: interval,
		log:      logger,
	}
}

func (m *Monitor) update(ctx context.Context) error {
	cpuUsage, err := m.cpu(ctx, m.duration, false)
	if err != nil {
		return fmt.Errorf("sysload: cpu usage: %w", err)
	}
	ramUsage, err := m.ram()
	if err != nil {
		return fmt.Errorf("sysload: ram usage: %w", err)
	}

	var cpuPct int
	if len(cpuUsage) > 0 {
		cpuPct = int(cpuUsage[0])
	}

	m.mu.Lock()
	m.status = Status{CPUPercent: cpuPct, RAMPercent: int(ramUsage.UsedPercent)}
	m.mu.Unlock()
	return nil
}

// Run updates Status in a loop until ctx is canceled. Only the first call
// runs the loop; a later call blocks until that loop ends, then returns
// without sampling.
func (m *Monitor) Run(ctx context.Context) {
	m.o.Do(func() {
		for {
			if ctx.Err() != nil {
				return
			}
			if err := m.update(ctx); err != nil && m.log != nil {
				m.log.Error().Src("sysload").Msgf("update failed: %v", err)
			}
		}
	})
}

// Status returns the most recent sample.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// RecommendedWorkers scales maxWorkers down as CPU load rises, so a
// scan sharing the host with other work backs off instead of saturating
// it; always returns at least 1. With no sample yet it returns
// maxWorkers unchanged.
func (m *Monitor) RecommendedWorkers(maxWorkers int) int {
	if maxWorkers <= 0 {
		maxWorkers = runtime.NumCPU()
	}
	status := m.Status()
	switch {
	case status.CPUPercent >= 90:
		return 1
	case status.CPUPercent >= 75:
		n := maxWorkers / 2
		if n < 1 {
			n = 1
		}
		return n
	default:
		return maxWorkers
	}
}
