// Package metrics exports scheduler events and status as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bft-labs/pacer/internal/domain"
)

const namespace = "pacer"

// Collector implements ports.EventSink and mirrors status snapshots into
// gauges. All metrics are registered on the registry passed to New.
type Collector struct {
	events         *prometheus.CounterVec
	batchDuration  *prometheus.HistogramVec
	batchSize      prometheus.Histogram
	queueDepth     prometheus.Gauge
	batchQueue     prometheus.Gauge
	activeBatches  prometheus.Gauge
	limit          *prometheus.GaugeVec
	pressure       *prometheus.GaugeVec
	utilization    *prometheus.GaugeVec
	overall        prometheus.Gauge
	efficiency     prometheus.Gauge
	fallbackSample prometheus.Gauge
}

// New registers the scheduler metrics on reg.
func New(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Scheduler events by kind and reason.",
		}, []string{"kind", "reason"}),
		batchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Wall time of completed batches.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"classification"}),
		batchSize: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size_items",
			Help:      "Items per created batch.",
			Buckets:   []float64{1, 2, 3, 5, 8, 10, 20, 50},
		}),
		queueDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Items waiting in the work queue.",
		}),
		batchQueue: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "batch_queue_depth",
			Help:      "Composed batches waiting for admission.",
		}),
		activeBatches: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_batches",
			Help:      "Batches currently executing.",
		}),
		limit: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "limit",
			Help:      "Current adjustable limits.",
		}, []string{"name"}),
		pressure: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "resource_pressure",
			Help:      "Pressure per resource (0=LOW, 1=MEDIUM, 2=HIGH, 3=CRITICAL).",
		}, []string{"resource"}),
		utilization: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "resource_utilization_ratio",
			Help:      "Used over total per resource.",
		}, []string{"resource"}),
		overall: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "overall_pressure",
			Help:      "Highest pressure across resources.",
		}),
		efficiency: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "efficiency_ratio",
			Help:      "Mean of estimated over actual batch time, capped at 1.",
		}),
		fallbackSample: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "resource_sample_fallback",
			Help:      "1 when the last resource sample failed or is stale.",
		}),
	}
}

// OnEvent implements ports.EventSink.
func (c *Collector) OnEvent(e domain.Event) {
	c.events.WithLabelValues(string(e.Kind), e.Reason).Inc()

	switch e.Kind {
	case domain.EventBatchCreated, domain.EventEmergencyBatchCreated:
		c.batchSize.Observe(float64(e.Count))
	case domain.EventBatchCompleted:
		c.batchDuration.WithLabelValues(string(e.Classification)).Observe(e.Duration.Seconds())
	}
}

// Observe copies a status snapshot into the gauges.
func (c *Collector) Observe(st domain.Status) {
	c.queueDepth.Set(float64(st.QueueDepth))
	c.batchQueue.Set(float64(st.BatchQueueDepth))
	c.activeBatches.Set(float64(st.ActiveBatches))
	c.limit.WithLabelValues("max_batch_size").Set(float64(st.Limits.MaxBatchSize))
	c.limit.WithLabelValues("max_concurrent_batches").Set(float64(st.Limits.MaxConcurrentBatches))
	c.efficiency.Set(st.Stats.Efficiency)

	c.overall.Set(float64(st.Resources.Overall))
	for kind, rs := range st.Resources.States {
		c.pressure.WithLabelValues(string(kind)).Set(float64(rs.Pressure))
		c.utilization.WithLabelValues(string(kind)).Set(rs.Utilization())
	}
	if st.Resources.Fresh() {
		c.fallbackSample.Set(0)
	} else {
		c.fallbackSample.Set(1)
	}
}
