package app

import (
	"sync"
	"time"

	"github.com/bft-labs/pacer/internal/domain"
)

// Telemetry derives counters and smoothed averages from scheduler events.
// It is read-only with respect to scheduling. Safe for concurrent use.
type Telemetry struct {
	mu          sync.RWMutex
	stats       domain.Stats
	efficiencyN uint64
	sizeSeen    bool
	timeSeen    bool
}

// NewTelemetry creates an empty telemetry recorder.
func NewTelemetry() *Telemetry {
	return &Telemetry{}
}

// ItemSeen counts a first submission.
func (t *Telemetry) ItemSeen() {
	t.mu.Lock()
	t.stats.ItemsSeen++
	t.mu.Unlock()
}

// OnEvent updates counters from e.
func (t *Telemetry) OnEvent(e domain.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch e.Kind {
	case domain.EventBatchCreated, domain.EventEmergencyBatchCreated:
		t.stats.BatchesCreated++
		t.stats.AvgBatchSize = smooth(t.stats.AvgBatchSize, float64(e.Count), t.sizeSeen)
		t.sizeSeen = true
	case domain.EventBatchCompleted:
		t.stats.BatchesProcessed++
		t.stats.AvgProcessingTime = time.Duration(smooth(float64(t.stats.AvgProcessingTime), float64(e.Duration), t.timeSeen))
		t.timeSeen = true
		t.efficiencyN++
		t.stats.Efficiency += (efficiency(e.Estimated, e.Duration) - t.stats.Efficiency) / float64(t.efficiencyN)
	case domain.EventBatchFailed:
		t.stats.BatchesFailed++
	case domain.EventOverflowHandled:
		t.stats.Overflows += uint64(e.Count)
	case domain.EventItemRemoved:
		if e.Reason == domain.ReasonEvicted {
			t.stats.ItemsEvicted++
		}
	case domain.EventGracefulDegradationApplied:
		switch e.Reason {
		case domain.ReasonItemsDeferred:
			t.stats.ItemsDeferred += uint64(e.Count)
		case domain.ReasonBatchesCancelled:
			t.stats.BatchesCancelled += uint64(e.Count)
		}
	}
}

// Snapshot returns a copy of the current stats.
func (t *Telemetry) Snapshot() domain.Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.stats
}

// smooth is two-sample smoothing; the first sample is taken as is.
func smooth(avg, sample float64, seen bool) float64 {
	if !seen {
		return sample
	}
	return (avg + sample) / 2
}

// efficiency is min(1, estimated/actual). Instant completions count as 1.
func efficiency(estimated, actual time.Duration) float64 {
	if actual <= 0 {
		return 1
	}
	e := float64(estimated) / float64(actual)
	if e > 1 {
		return 1
	}
	return e
}
