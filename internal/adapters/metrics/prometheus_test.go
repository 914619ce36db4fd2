package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bft-labs/pacer/internal/domain"
)

// value returns the counter or gauge value of the series name{labels}.
func value(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) (float64, bool) {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
	series:
		for _, m := range f.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue series
				}
			}
			switch {
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue(), true
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue(), true
			case m.GetHistogram() != nil:
				return float64(m.GetHistogram().GetSampleCount()), true
			}
		}
	}
	return 0, false
}

func TestCollector_CountsEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.OnEvent(domain.Event{Kind: domain.EventBatchCreated, Count: 4})
	c.OnEvent(domain.Event{Kind: domain.EventItemRemoved, Reason: domain.ReasonEvicted})
	c.OnEvent(domain.Event{Kind: domain.EventItemRemoved, Reason: domain.ReasonEvicted})
	c.OnEvent(domain.Event{Kind: domain.EventBatchCompleted, Classification: domain.ClassTemporal, Duration: time.Second})

	if got, _ := value(t, reg, "pacer_events_total", map[string]string{"kind": "item_removed", "reason": "evicted"}); got != 2 {
		t.Errorf("evictions = %v, want 2", got)
	}
	if got, _ := value(t, reg, "pacer_events_total", map[string]string{"kind": "batch_created"}); got != 1 {
		t.Errorf("batch_created = %v, want 1", got)
	}
	if got, ok := value(t, reg, "pacer_batch_duration_seconds", map[string]string{"classification": string(domain.ClassTemporal)}); !ok || got != 1 {
		t.Errorf("batch duration samples = %v, want 1", got)
	}
	if got, _ := value(t, reg, "pacer_batch_size_items", nil); got != 1 {
		t.Errorf("batch size samples = %v, want 1", got)
	}
}

func TestCollector_ObserveStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.Observe(domain.Status{
		QueueDepth:    7,
		ActiveBatches: 2,
		Limits:        domain.Limits{MaxBatchSize: 8, MaxConcurrentBatches: 2},
		Resources: domain.Snapshot{
			States: map[domain.ResourceKind]domain.ResourceState{
				domain.ResourceMemory: {Kind: domain.ResourceMemory, Used: 256, Total: 512, Pressure: domain.PressureMedium},
			},
			Overall:   domain.PressureMedium,
			SampledAt: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		},
	})

	tests := []struct {
		name   string
		labels map[string]string
		want   float64
	}{
		{"pacer_queue_depth", nil, 7},
		{"pacer_active_batches", nil, 2},
		{"pacer_limit", map[string]string{"name": "max_batch_size"}, 8},
		{"pacer_limit", map[string]string{"name": "max_concurrent_batches"}, 2},
		{"pacer_resource_utilization_ratio", map[string]string{"resource": "memory"}, 0.5},
		{"pacer_resource_pressure", map[string]string{"resource": "memory"}, float64(domain.PressureMedium)},
		{"pacer_overall_pressure", nil, float64(domain.PressureMedium)},
		{"pacer_resource_sample_fallback", nil, 0},
	}
	for _, tt := range tests {
		got, ok := value(t, reg, tt.name, tt.labels)
		if !ok {
			t.Errorf("%s%v not found", tt.name, tt.labels)
			continue
		}
		if got != tt.want {
			t.Errorf("%s%v = %v, want %v", tt.name, tt.labels, got, tt.want)
		}
	}
}
