// Package sysres samples process resource usage for the scheduler.
package sysres

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/bft-labs/pacer/internal/domain"
	"github.com/bft-labs/pacer/internal/ports"
)

// Sampler implements ports.ResourceSampler from process memory, CPU time and
// the in-flight counts kept by an Activity tracker.
type Sampler struct {
	activity *Activity
	now      func() time.Time
	cpuTime  func() (time.Duration, bool)
	memory   func() (memoryInfo, error)
	numCPU   int

	mu      sync.Mutex
	lastCPU time.Duration
	lastAt  time.Time
}

// NewSampler creates a Sampler. activity may be nil.
func NewSampler(activity *Activity) *Sampler {
	if activity == nil {
		activity = NewActivity()
	}
	return &Sampler{
		activity: activity,
		now:      time.Now,
		cpuTime:  processCPUTime,
		memory:   readMemory,
		numCPU:   runtime.NumCPU(),
	}
}

// Activity returns the tracker whose counts the sampler reports.
func (s *Sampler) Activity() *Activity {
	return s.activity
}

// Sample reads current usage. CPU percent is measured since the previous
// call, so the first reading reports zero CPU.
func (s *Sampler) Sample(ctx context.Context) (ports.Usage, error) {
	if err := ctx.Err(); err != nil {
		return ports.Usage{}, err
	}

	mem, err := s.memory()
	if err != nil {
		return ports.Usage{}, err
	}

	used := s.activity.Requirement()
	used.MemoryMB = mem.rssMB
	used.CPUPercent = s.cpuPercent()

	return ports.Usage{
		Used:     used,
		Capacity: domain.Requirement{MemoryMB: mem.totalMB},
	}, nil
}

func (s *Sampler) cpuPercent() float64 {
	cpu, ok := s.cpuTime()
	if !ok {
		return 0
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	prevCPU, prevAt := s.lastCPU, s.lastAt
	s.lastCPU, s.lastAt = cpu, now
	if prevAt.IsZero() {
		return 0
	}
	wall := now.Sub(prevAt)
	if wall <= 0 || s.numCPU <= 0 {
		return 0
	}
	pct := float64(cpu-prevCPU) / float64(wall) / float64(s.numCPU) * 100
	if pct < 0 {
		return 0
	}
	return pct
}

// memoryInfo is in megabytes. totalMB is zero when unknown.
type memoryInfo struct {
	rssMB   float64
	totalMB float64
}

const bytesPerMB = 1 << 20
