package app

import (
	"time"

	"github.com/bft-labs/pacer/internal/domain"
	"github.com/bft-labs/pacer/internal/ports"
)

// DegradationConfig configures the degradation controller.
type DegradationConfig struct {
	Enabled bool
	// BatchSizeStep is how far the batch size ceiling moves per tick.
	BatchSizeStep int
	// MinBatchSize is the floor for the ceiling under pressure.
	MinBatchSize int
	// RecoveryFraction: limits recover once every resource uses less than
	// this fraction of its threshold.
	RecoveryFraction float64
	// DeferWindow is how far ready low-priority items are pushed back under
	// critical pressure.
	DeferWindow time.Duration
	// Lookahead matches the composer's readiness window.
	Lookahead time.Duration
	LowCutoff domain.Priority
}

// DegradationController applies graceful degradation after every sample.
// Not safe for concurrent use.
type DegradationController[T any] struct {
	cfg    DegradationConfig
	logger ports.Logger
	emit   func(domain.Event)

	// last is the overall pressure of the previous fresh reading.
	last domain.Pressure
}

// NewDegradationController creates a controller.
func NewDegradationController[T any](cfg DegradationConfig, logger ports.Logger, emit func(domain.Event)) *DegradationController[T] {
	if emit == nil {
		emit = func(domain.Event) {}
	}
	return &DegradationController[T]{cfg: cfg, logger: logger, emit: emit, last: domain.PressureLow}
}

// SetEnabled toggles the controller.
func (d *DegradationController[T]) SetEnabled(enabled bool) {
	d.cfg.Enabled = enabled
}

// Apply runs one degradation pass. Nothing escalates or shrinks on a stale
// or fallback snapshot. Items escalate only when the overall pressure rose
// since the previous fresh reading.
func (d *DegradationController[T]) Apply(now time.Time, snap domain.Snapshot, wq *WorkQueue[T], bq *BatchQueue[T], limits *domain.Limits, configured domain.Limits) {
	if !d.cfg.Enabled || !snap.Fresh() {
		return
	}

	p := snap.Overall
	rose := p > d.last
	d.last = p
	if p >= domain.PressureMedium {
		d.shrinkBatchSize(p, limits, configured)
		if p >= domain.PressureHigh {
			d.shrinkConcurrency(p, limits)
		}
		if p >= domain.PressureCritical {
			d.cancelLowBatches(p, wq, bq)
			d.deferLowItems(now, p, wq)
		}
		if !rose {
			return
		}
		wq.Each(func(it *domain.WorkItem[T]) { d.escalate(now, p, it) })
		bq.Each(func(b *domain.Batch[T]) {
			for _, it := range b.Items {
				d.escalate(now, p, it)
			}
		})
		bq.Refresh()
		return
	}

	if snap.BelowFraction(d.cfg.RecoveryFraction) {
		d.recover(now, p, wq, bq, limits, configured)
	}
}

// targetLevel is the level the action sets justify for an item of priority
// pr under pressure p.
func targetLevel(pr domain.Priority, p domain.Pressure) domain.DegradationLevel {
	switch {
	case p >= domain.PressureCritical && pr >= domain.PriorityMedium:
		return domain.DegradationSevere
	case p >= domain.PressureHigh && pr >= domain.PriorityLow:
		return domain.DegradationSignificant
	case p >= domain.PressureMedium && pr >= domain.PriorityBackground:
		return domain.DegradationModerate
	}
	return domain.DegradationNone
}

// escalate moves it one configured level toward its target.
func (d *DegradationController[T]) escalate(now time.Time, p domain.Pressure, it *domain.WorkItem[T]) {
	if !it.Degradable || it.Critical() {
		return
	}
	cur := it.Degradation.Current()
	target := targetLevel(it.Priority, p)
	if target <= cur {
		return
	}

	next, ok := nextOption(it, cur, target)
	if !ok {
		d.logger.Warn("skipping degradation step",
			ports.Item(it.ID),
			ports.Stringer("from", cur),
			ports.Stringer("target", target),
			ports.Err(domain.ErrInvalidDegradationConfig),
		)
		return
	}
	if err := next.Validate(); err != nil {
		d.logger.Warn("skipping degradation step", ports.Item(it.ID), ports.Err(err))
		return
	}

	it.Degradation.Record(next.Level, p, now)
	d.emit(domain.Event{
		Kind:     domain.EventDegradationApplied,
		ItemID:   it.ID,
		Priority: it.Priority,
		Pressure: p,
		Level:    next.Level,
	})
}

// nextOption returns the lowest configured option above cur and at most target.
func nextOption[T any](it *domain.WorkItem[T], cur, target domain.DegradationLevel) (domain.DegradationOption, bool) {
	for l := cur + 1; l <= target; l++ {
		if o, ok := it.Option(l); ok {
			return o, true
		}
	}
	return domain.DegradationOption{}, false
}

// relax moves it one configured level back toward none.
func (d *DegradationController[T]) relax(now time.Time, p domain.Pressure, it *domain.WorkItem[T]) {
	cur := it.Degradation.Current()
	if cur == domain.DegradationNone {
		return
	}
	prev := domain.DegradationNone
	for l := cur - 1; l > domain.DegradationNone; l-- {
		if _, ok := it.Option(l); ok {
			prev = l
			break
		}
	}
	it.Degradation.Record(prev, p, now)
	d.emit(domain.Event{
		Kind:     domain.EventDegradationApplied,
		ItemID:   it.ID,
		Priority: it.Priority,
		Pressure: p,
		Level:    prev,
	})
}

func (d *DegradationController[T]) shrinkBatchSize(p domain.Pressure, limits *domain.Limits, configured domain.Limits) {
	floor := d.cfg.MinBatchSize
	if configured.MaxBatchSize < floor {
		floor = configured.MaxBatchSize
	}
	if limits.MaxBatchSize <= floor {
		return
	}
	limits.MaxBatchSize -= d.cfg.BatchSizeStep
	if limits.MaxBatchSize < floor {
		limits.MaxBatchSize = floor
	}
	d.emit(domain.Event{
		Kind:     domain.EventGracefulDegradationApplied,
		Pressure: p,
		Count:    limits.MaxBatchSize,
		Reason:   domain.ReasonBatchSizeReduced,
	})
}

func (d *DegradationController[T]) shrinkConcurrency(p domain.Pressure, limits *domain.Limits) {
	if limits.MaxConcurrentBatches <= 1 {
		return
	}
	limits.MaxConcurrentBatches--
	d.emit(domain.Event{
		Kind:     domain.EventGracefulDegradationApplied,
		Pressure: p,
		Count:    limits.MaxConcurrentBatches,
		Reason:   domain.ReasonConcurrencyReduced,
	})
}

// cancelLowBatches drops queued low and background batches. Members more
// urgent than the low cutoff go back to the work queue; the rest are removed.
func (d *DegradationController[T]) cancelLowBatches(p domain.Pressure, wq *WorkQueue[T], bq *BatchQueue[T]) {
	cancelled := bq.RemoveMatching(func(b *domain.Batch[T]) bool {
		return !b.Emergency() && b.Priority >= domain.PriorityLow
	})
	if len(cancelled) == 0 {
		return
	}

	for _, b := range cancelled {
		b.State = domain.BatchCancelled
		for _, it := range b.Items {
			if it.Priority < d.cfg.LowCutoff {
				if _, err := wq.Enqueue(it); err != nil {
					d.logger.Warn("could not requeue item from cancelled batch",
						ports.Item(it.ID), ports.Err(err))
				}
				continue
			}
			d.emit(domain.Event{
				Kind:     domain.EventItemRemoved,
				ItemID:   it.ID,
				BatchID:  b.ID,
				Priority: it.Priority,
				Pressure: p,
				Reason:   domain.ReasonCancelledByPressure,
			})
		}
	}
	d.emit(domain.Event{
		Kind:     domain.EventGracefulDegradationApplied,
		Pressure: p,
		Count:    len(cancelled),
		Reason:   domain.ReasonBatchesCancelled,
	})
}

func (d *DegradationController[T]) deferLowItems(now time.Time, p domain.Pressure, wq *WorkQueue[T]) {
	n := 0
	until := now.Add(d.cfg.DeferWindow)
	wq.Each(func(it *domain.WorkItem[T]) {
		if it.Priority < d.cfg.LowCutoff || !it.ReadyAt(now, d.cfg.Lookahead) {
			return
		}
		it.TargetTime = until
		n++
	})
	if n == 0 {
		return
	}
	d.emit(domain.Event{
		Kind:     domain.EventGracefulDegradationApplied,
		Pressure: p,
		Count:    n,
		Reason:   domain.ReasonItemsDeferred,
	})
}

func (d *DegradationController[T]) recover(now time.Time, p domain.Pressure, wq *WorkQueue[T], bq *BatchQueue[T], limits *domain.Limits, configured domain.Limits) {
	if limits.MaxBatchSize < configured.MaxBatchSize {
		limits.MaxBatchSize += d.cfg.BatchSizeStep
		if limits.MaxBatchSize > configured.MaxBatchSize {
			limits.MaxBatchSize = configured.MaxBatchSize
		}
		d.emit(domain.Event{
			Kind:     domain.EventGracefulDegradationApplied,
			Pressure: p,
			Count:    limits.MaxBatchSize,
			Reason:   domain.ReasonBatchSizeRecovered,
		})
	}
	if limits.MaxConcurrentBatches < configured.MaxConcurrentBatches {
		limits.MaxConcurrentBatches++
		d.emit(domain.Event{
			Kind:     domain.EventGracefulDegradationApplied,
			Pressure: p,
			Count:    limits.MaxConcurrentBatches,
			Reason:   domain.ReasonConcurrencyRecover,
		})
	}

	wq.Each(func(it *domain.WorkItem[T]) { d.relax(now, p, it) })
	bq.Each(func(b *domain.Batch[T]) {
		for _, it := range b.Items {
			d.relax(now, p, it)
		}
	})
	bq.Refresh()
}
