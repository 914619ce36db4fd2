package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bft-labs/pacer/internal/domain"
	"github.com/bft-labs/pacer/internal/ports"
)

// Config contains configuration for the scheduling core.
type Config struct {
	MaxBatchSize         int
	MaxQueueSize         int
	MaxConcurrentBatches int

	// BatchingWindow is the composition tick.
	BatchingWindow time.Duration
	// Lookahead: items due within this window of now are ready for batching.
	Lookahead time.Duration
	// TemporalWindow is the bucket width of temporal grouping.
	TemporalWindow  time.Duration
	ExecuteInterval time.Duration
	SampleInterval  time.Duration
	// StaleAfter marks the resource snapshot stale when no sample succeeded
	// for this long.
	StaleAfter      time.Duration
	MinBatchTimeout time.Duration
	// MaxAttempts bounds retries of items at or below LowPriorityCutoff.
	MaxAttempts int

	HighPriorityThreshold domain.Priority
	LowPriorityCutoff     domain.Priority

	GracefulDegradation bool
	BatchSizeStep       int
	MinBatchSize        int
	RecoveryFraction    float64
	DeferWindow         time.Duration

	Resources map[domain.ResourceKind]ResourceLimit
}

// DefaultConfig returns the default scheduling configuration.
func DefaultConfig() Config {
	return Config{
		MaxBatchSize:          10,
		MaxQueueSize:          1000,
		MaxConcurrentBatches:  3,
		BatchingWindow:        2 * time.Second,
		Lookahead:             2 * time.Second,
		TemporalWindow:        time.Minute,
		ExecuteInterval:       500 * time.Millisecond,
		SampleInterval:        time.Second,
		StaleAfter:            3 * time.Second,
		MinBatchTimeout:       DefaultMinBatchTimeout,
		MaxAttempts:           3,
		HighPriorityThreshold: domain.PriorityHigh,
		LowPriorityCutoff:     domain.PriorityLow,
		GracefulDegradation:   true,
		BatchSizeStep:         2,
		MinBatchSize:          3,
		RecoveryFraction:      0.5,
		DeferWindow:           time.Minute,
		Resources:             DefaultResourceLimits(),
	}
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	switch {
	case c.MaxBatchSize < 1:
		return fmt.Errorf("%w: max batch size must be at least 1", domain.ErrInvalidConfig)
	case c.MaxQueueSize < 0:
		return fmt.Errorf("%w: max queue size must not be negative", domain.ErrInvalidConfig)
	case c.MaxConcurrentBatches < 1:
		return fmt.Errorf("%w: max concurrent batches must be at least 1", domain.ErrInvalidConfig)
	case c.BatchingWindow <= 0 || c.ExecuteInterval <= 0 || c.SampleInterval <= 0:
		return fmt.Errorf("%w: tick intervals must be positive", domain.ErrInvalidConfig)
	case c.Lookahead < 0:
		return fmt.Errorf("%w: lookahead must not be negative", domain.ErrInvalidConfig)
	case c.MaxAttempts < 1:
		return fmt.Errorf("%w: max attempts must be at least 1", domain.ErrInvalidConfig)
	case !c.HighPriorityThreshold.Valid() || !c.LowPriorityCutoff.Valid():
		return fmt.Errorf("%w: priority cutoffs out of range", domain.ErrInvalidConfig)
	case c.BatchSizeStep < 1 || c.MinBatchSize < 1:
		return fmt.Errorf("%w: batch size step and minimum must be at least 1", domain.ErrInvalidConfig)
	case c.RecoveryFraction <= 0 || c.RecoveryFraction > 1:
		return fmt.Errorf("%w: recovery fraction must be in (0,1]", domain.ErrInvalidConfig)
	}
	for kind, lim := range c.Resources {
		if lim.Total < 0 || lim.Admission <= 0 || lim.Admission > 1 {
			return fmt.Errorf("%w: resource %s: admission fraction must be in (0,1]", domain.ErrInvalidConfig, kind)
		}
		if !lim.Pressure.Valid() {
			return fmt.Errorf("%w: resource %s: pressure thresholds must ascend within (0,1]", domain.ErrInvalidConfig, kind)
		}
	}
	return nil
}

// Limits returns the configured adjustable limits.
func (c Config) Limits() domain.Limits {
	return domain.Limits{MaxBatchSize: c.MaxBatchSize, MaxConcurrentBatches: c.MaxConcurrentBatches}
}

// Deps are the collaborators of a Scheduler.
type Deps[T any] struct {
	Dispatcher ports.Dispatcher[T]
	Sampler    ports.ResourceSampler
	Clock      ports.Clock
	Logger     ports.Logger
	Sinks      []ports.EventSink
	// Strategies replaces the default composition passes when non-empty.
	Strategies []Strategy[T]
	// ContextKey replaces the default context-affinity key when non-nil.
	ContextKey func(*domain.WorkItem[T]) string
}

// Scheduler is the single coordinator of the work queue, the batch queue,
// the resource monitor and batch execution. All of that state is guarded
// by one mutex; only batch execution runs outside it.
type Scheduler[T any] struct {
	cfg     Config
	clock   ports.Clock
	sampler ports.ResourceSampler
	logger  ports.Logger
	sinks   []ports.EventSink

	mu         sync.Mutex
	queue      *WorkQueue[T]
	batches    *BatchQueue[T]
	composer   *Composer[T]
	monitor    *ResourceMonitor
	admission  *Admission
	executor   *Executor[T]
	degrade    *DegradationController[T]
	telemetry  *Telemetry
	limits     domain.Limits
	configured domain.Limits
	active     map[string]*domain.Batch[T]
	cancelled  map[string]struct{}
	seq        uint64
	pending    []domain.Event
	changed    chan struct{}

	emitMu sync.Mutex
	wake   chan struct{}
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler. Dispatcher, Sampler, Clock and Logger
// are required.
func NewScheduler[T any](cfg Config, deps Deps[T]) (*Scheduler[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Dispatcher == nil || deps.Sampler == nil || deps.Clock == nil || deps.Logger == nil {
		return nil, fmt.Errorf("%w: dispatcher, sampler, clock and logger are required", domain.ErrInvalidConfig)
	}
	if cfg.Lookahead == 0 {
		cfg.Lookahead = cfg.BatchingWindow
	}

	strategies := deps.Strategies
	if len(strategies) == 0 {
		key := deps.ContextKey
		if key == nil {
			key = (*domain.WorkItem[T]).ContextKey
		}
		strategies = DefaultStrategies(cfg.TemporalWindow, cfg.HighPriorityThreshold, key)
	}

	s := &Scheduler[T]{
		cfg:        cfg,
		clock:      deps.Clock,
		sampler:    deps.Sampler,
		logger:     deps.Logger,
		sinks:      deps.Sinks,
		batches:    NewBatchQueue[T](),
		composer:   NewComposer(strategies),
		monitor:    NewResourceMonitor(cfg.Resources, cfg.StaleAfter, deps.Logger),
		admission:  NewAdmission(),
		executor:   NewExecutor(deps.Dispatcher, deps.Clock, cfg.MinBatchTimeout, deps.Logger),
		telemetry:  NewTelemetry(),
		limits:     cfg.Limits(),
		configured: cfg.Limits(),
		active:     make(map[string]*domain.Batch[T]),
		cancelled:  make(map[string]struct{}),
		changed:    make(chan struct{}),
		wake:       make(chan struct{}, 1),
	}
	s.queue = NewWorkQueue[T](cfg.MaxQueueSize, cfg.LowPriorityCutoff, s.record)
	s.degrade = NewDegradationController[T](DegradationConfig{
		Enabled:          cfg.GracefulDegradation,
		BatchSizeStep:    cfg.BatchSizeStep,
		MinBatchSize:     cfg.MinBatchSize,
		RecoveryFraction: cfg.RecoveryFraction,
		DeferWindow:      cfg.DeferWindow,
		Lookahead:        cfg.Lookahead,
		LowCutoff:        cfg.LowPriorityCutoff,
	}, deps.Logger, s.record)
	return s, nil
}

// Submit validates it and accepts it for scheduling. Critical items are
// wrapped in an emergency batch immediately; everything else enters the
// work queue. Returns the item id, generated when empty.
func (s *Scheduler[T]) Submit(ctx context.Context, it domain.WorkItem[T]) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := it.Validate(); err != nil {
		return "", err
	}
	item := &it
	if item.ID == "" {
		item.ID = uuid.NewString()
	}

	s.mu.Lock()
	if s.known(item.ID) {
		s.mu.Unlock()
		return "", fmt.Errorf("%w: duplicate id %s", domain.ErrInvalidItem, item.ID)
	}
	if !s.monitor.CanEverFit(item.Requirement) {
		s.mu.Unlock()
		return "", fmt.Errorf("%w: item %s exceeds a resource threshold", domain.ErrUnschedulable, item.ID)
	}
	now := s.clock.Now()
	s.seq++
	item.Sequence = s.seq
	item.SubmittedAt = now
	item.Attempts = 0
	item.Degradation = domain.DegradationRecord{}
	s.telemetry.ItemSeen()

	var err error
	if item.Critical() {
		s.pushEmergency(item, now)
	} else {
		_, err = s.queue.Enqueue(item)
	}
	s.unlock()

	if err != nil {
		return "", err
	}
	return item.ID, nil
}

// Cancel removes a pending item or flags an executing one. Flagged items are
// skipped before their sub-group is dispatched and are never re-enqueued.
// Returns false when the id is unknown.
func (s *Scheduler[T]) Cancel(id string) bool {
	s.mu.Lock()
	defer s.unlock()

	if _, ok := s.queue.Remove(id, domain.ReasonCancelled); ok {
		return true
	}
	if it, b, ok := s.batches.RemoveItem(id); ok {
		s.record(domain.Event{
			Kind:     domain.EventItemRemoved,
			ItemID:   it.ID,
			BatchID:  b.ID,
			Priority: it.Priority,
			Reason:   domain.ReasonCancelled,
		})
		return true
	}
	for _, b := range s.active {
		for _, it := range b.Items {
			if it.ID == id {
				s.cancelled[id] = struct{}{}
				return true
			}
		}
	}
	return false
}

// ComposeTick batches every ready item. Returns the number of batches created.
func (s *Scheduler[T]) ComposeTick() int {
	s.mu.Lock()
	defer s.unlock()
	now := s.clock.Now()
	return s.compose(now, func(it *domain.WorkItem[T]) bool {
		return it.ReadyAt(now, s.cfg.Lookahead)
	})
}

func (s *Scheduler[T]) compose(now time.Time, ready func(*domain.WorkItem[T]) bool) int {
	items := s.queue.DequeueMatching(ready)
	if len(items) == 0 {
		return 0
	}
	batches := s.composer.Compose(items, s.limits.MaxBatchSize, now)
	for _, b := range batches {
		s.batches.Push(b)
		s.record(domain.Event{
			Kind:           domain.EventBatchCreated,
			BatchID:        b.ID,
			Priority:       b.Priority,
			Count:          b.Size(),
			Classification: b.Classification,
		})
	}
	s.record(domain.Event{
		Kind:  domain.EventOptimizationApplied,
		Count: len(batches),
	})
	s.poke()
	return len(batches)
}

// ExecuteTick admits queued batches in order while concurrency allows. The
// tick stops at the first batch that does not fit. Returns the number of
// batches started.
func (s *Scheduler[T]) ExecuteTick(ctx context.Context) int {
	s.mu.Lock()
	defer s.unlock()

	now := s.clock.Now()
	snap := s.monitor.Current(now)
	started := 0
	for len(s.active) < s.limits.MaxConcurrentBatches {
		b := s.batches.Peek()
		if b == nil {
			break
		}

		switch s.admission.Decide(snap, b.Requirement, b.Size()) {
		case DecisionWait:
			return started
		case DecisionSplit:
			s.batches.Pop()
			s.split(b, now)
			continue
		case DecisionReject:
			s.batches.Pop()
			s.reject(b)
			continue
		}

		s.batches.Pop()
		s.admission.Reserve(b.Requirement)
		b.State = domain.BatchAdmitted
		s.active[b.ID] = b
		s.record(domain.Event{
			Kind:           domain.EventBatchAdmitted,
			BatchID:        b.ID,
			Priority:       b.Priority,
			Count:          b.Size(),
			Classification: b.Classification,
			Pressure:       snap.Overall,
		})
		started++

		s.wg.Add(1)
		go s.run(ctx, b)
	}
	return started
}

func (s *Scheduler[T]) split(b *domain.Batch[T], now time.Time) {
	s.logger.Info("splitting batch that exceeds resource thresholds",
		ports.Batch(b.ID),
		ports.Int("items", b.Size()),
	)
	for _, part := range s.composer.Split(b, now) {
		s.batches.Push(part)
		s.record(domain.Event{
			Kind:           domain.EventBatchCreated,
			BatchID:        part.ID,
			Priority:       part.Priority,
			Count:          part.Size(),
			Classification: part.Classification,
			Reason:         domain.ReasonSplit,
		})
	}
}

func (s *Scheduler[T]) reject(b *domain.Batch[T]) {
	b.State = domain.BatchFailed
	for _, it := range b.Items {
		s.logger.Error("dropping item that can never fit",
			ports.Item(it.ID),
			ports.Batch(b.ID),
			ports.Stringer("priority", it.Priority),
			ports.Err(fmt.Errorf("%w: item %s", domain.ErrUnschedulable, it.ID)),
		)
		s.record(domain.Event{
			Kind:     domain.EventItemRemoved,
			ItemID:   it.ID,
			BatchID:  b.ID,
			Priority: it.Priority,
			Reason:   domain.ReasonUnschedulable,
		})
	}
}

// run executes an admitted batch. Deliveries already in flight are not
// interrupted by scheduler shutdown; the batch timeout bounds them.
func (s *Scheduler[T]) run(ctx context.Context, b *domain.Batch[T]) {
	defer s.wg.Done()

	s.mu.Lock()
	b.State = domain.BatchExecuting
	s.mu.Unlock()

	res := s.executor.Execute(context.WithoutCancel(ctx), b, s.isCancelled)
	s.finish(b, res)
}

func (s *Scheduler[T]) isCancelled(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.cancelled[id]
	return ok
}

func (s *Scheduler[T]) finish(b *domain.Batch[T], res ExecResult[T]) {
	s.mu.Lock()
	defer s.unlock()

	delete(s.active, b.ID)
	s.admission.Release(b.Requirement)
	now := s.clock.Now()

	for _, it := range res.Skipped {
		s.record(domain.Event{
			Kind:     domain.EventItemRemoved,
			ItemID:   it.ID,
			BatchID:  b.ID,
			Priority: it.Priority,
			Reason:   domain.ReasonCancelled,
		})
	}

	if res.Err == nil {
		b.State = domain.BatchCompleted
		s.record(domain.Event{
			Kind:           domain.EventBatchCompleted,
			BatchID:        b.ID,
			Priority:       b.Priority,
			Count:          len(res.Delivered),
			Classification: b.Classification,
			Duration:       res.Duration,
			Estimated:      b.EstimatedDuration,
			Level:          b.MaxDegradation(),
		})
	} else {
		b.State = domain.BatchFailed
		s.logger.Warn("batch execution failed",
			ports.Batch(b.ID),
			ports.Int("delivered", len(res.Delivered)),
			ports.Int("undelivered", len(res.Undelivered)),
			ports.Err(res.Err),
		)
		s.record(domain.Event{
			Kind:           domain.EventBatchFailed,
			BatchID:        b.ID,
			Priority:       b.Priority,
			Count:          len(res.Undelivered),
			Classification: b.Classification,
			Duration:       res.Duration,
			Err:            res.Err,
		})
		for _, it := range res.Undelivered {
			s.requeue(it, b, now)
		}
	}

	for _, it := range b.Items {
		delete(s.cancelled, it.ID)
	}
	s.poke()
}

// requeue puts an undelivered item back. Critical items go through the
// emergency path. Only items at or below the low cutoff are dropped after
// MaxAttempts; the rest re-enter the priority queue.
func (s *Scheduler[T]) requeue(it *domain.WorkItem[T], b *domain.Batch[T], now time.Time) {
	if _, ok := s.cancelled[it.ID]; ok {
		s.record(domain.Event{
			Kind:     domain.EventItemRemoved,
			ItemID:   it.ID,
			BatchID:  b.ID,
			Priority: it.Priority,
			Reason:   domain.ReasonCancelled,
		})
		return
	}

	it.Attempts++
	if it.Critical() {
		s.pushEmergency(it, now)
		return
	}
	if it.Priority >= s.cfg.LowPriorityCutoff && it.Attempts >= s.cfg.MaxAttempts {
		s.logger.Warn("dropping item after repeated failures",
			ports.Item(it.ID),
			ports.Int("attempts", it.Attempts),
		)
		s.record(domain.Event{
			Kind:     domain.EventItemRemoved,
			ItemID:   it.ID,
			BatchID:  b.ID,
			Priority: it.Priority,
			Reason:   domain.ReasonRetriesExhausted,
		})
		return
	}
	if _, err := s.queue.Enqueue(it); err != nil {
		s.logger.Warn("could not requeue item", ports.Item(it.ID), ports.Err(err))
	}
}

func (s *Scheduler[T]) pushEmergency(it *domain.WorkItem[T], now time.Time) {
	b := s.composer.Emergency(it, now)
	s.batches.Push(b)
	s.record(domain.Event{
		Kind:           domain.EventEmergencyBatchCreated,
		BatchID:        b.ID,
		ItemID:         it.ID,
		Priority:       b.Priority,
		Count:          1,
		Classification: b.Classification,
	})
	s.poke()
}

// SampleTick samples resources and runs graceful degradation on the result.
func (s *Scheduler[T]) SampleTick(ctx context.Context) domain.Snapshot {
	usage, err := s.sampler.Sample(ctx)

	s.mu.Lock()
	defer s.unlock()

	now := s.clock.Now()
	prev := s.monitor.Current(now).Overall
	snap := s.monitor.Observe(now, usage, err)
	if snap.Overall != prev {
		s.logger.Info("resource pressure changed",
			ports.Stringer("from", prev),
			ports.Stringer("to", snap.Overall),
		)
	}
	s.degrade.Apply(now, snap, s.queue, s.batches, &s.limits, s.configured)
	s.poke()
	return snap
}

// Run drives the sample, compose and execute ticks until ctx is done, then
// waits for executing batches to finish. Returns ctx's error.
func (s *Scheduler[T]) Run(ctx context.Context) error {
	s.SampleTick(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.loop(gctx, s.cfg.SampleInterval, nil, func() { s.SampleTick(gctx) })
	})
	g.Go(func() error {
		return s.loop(gctx, s.cfg.BatchingWindow, nil, func() { s.ComposeTick() })
	})
	g.Go(func() error {
		return s.loop(gctx, s.cfg.ExecuteInterval, s.wake, func() { s.ExecuteTick(gctx) })
	})
	err := g.Wait()
	s.wg.Wait()
	return err
}

func (s *Scheduler[T]) loop(ctx context.Context, every time.Duration, wake <-chan struct{}, tick func()) error {
	t := s.clock.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C():
			tick()
		case <-wake:
			tick()
		}
	}
}

// Drain blocks until the work queue, the batch queue and the active set are
// all empty, or ctx is done. Items are only batched and executed while Run
// is active.
func (s *Scheduler[T]) Drain(ctx context.Context) error {
	for {
		s.mu.Lock()
		idle := s.queue.Len() == 0 && s.batches.Len() == 0 && len(s.active) == 0
		ch := s.changed
		s.mu.Unlock()
		if idle {
			return nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Flush batches every pending item regardless of its target time, then
// drains.
func (s *Scheduler[T]) Flush(ctx context.Context) error {
	s.mu.Lock()
	s.compose(s.clock.Now(), func(*domain.WorkItem[T]) bool { return true })
	s.unlock()
	return s.Drain(ctx)
}

// UpdateLimits replaces both the configured and the current limits.
// Degradation starts again from the new values on the next sample.
func (s *Scheduler[T]) UpdateLimits(l domain.Limits) error {
	if l.MaxBatchSize < 1 || l.MaxConcurrentBatches < 1 {
		return fmt.Errorf("%w: limits must be at least 1", domain.ErrInvalidConfig)
	}
	s.mu.Lock()
	defer s.unlock()
	s.configured = l
	s.limits = l
	s.logger.Info("limits updated",
		ports.Int("max_batch_size", l.MaxBatchSize),
		ports.Int("max_concurrent_batches", l.MaxConcurrentBatches),
	)
	s.poke()
	return nil
}

// SetResourceLimits replaces the per-resource configuration used by later
// samples.
func (s *Scheduler[T]) SetResourceLimits(limits map[domain.ResourceKind]ResourceLimit) {
	s.mu.Lock()
	defer s.unlock()
	s.monitor.SetLimits(limits)
}

// SetGracefulDegradation toggles graceful degradation. Disabling it restores
// the configured limits.
func (s *Scheduler[T]) SetGracefulDegradation(enabled bool) {
	s.mu.Lock()
	defer s.unlock()
	s.degrade.SetEnabled(enabled)
	if !enabled {
		s.limits = s.configured
	}
}

// Status returns a point-in-time view of the scheduler.
func (s *Scheduler[T]) Status() domain.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	return domain.Status{
		Stats:            s.telemetry.Snapshot(),
		Limits:           s.limits,
		ConfiguredLimits: s.configured,
		Resources:        s.monitor.Current(now),
		QueueDepth:       s.queue.Len(),
		BatchQueueDepth:  s.batches.Len(),
		ActiveBatches:    len(s.active),
		UpdatedAt:        now,
	}
}

// Stats returns the telemetry counters.
func (s *Scheduler[T]) Stats() domain.Stats {
	return s.telemetry.Snapshot()
}

// known reports whether id is pending, queued in a batch or executing.
func (s *Scheduler[T]) known(id string) bool {
	if _, ok := s.queue.Get(id); ok {
		return true
	}
	found := false
	s.batches.Each(func(b *domain.Batch[T]) {
		for _, it := range b.Items {
			if it.ID == id {
				found = true
			}
		}
	})
	if found {
		return true
	}
	for _, b := range s.active {
		for _, it := range b.Items {
			if it.ID == id {
				return true
			}
		}
	}
	return false
}

// record stamps e and buffers it for delivery. Callers hold s.mu.
func (s *Scheduler[T]) record(e domain.Event) {
	e.At = s.clock.Now()
	s.telemetry.OnEvent(e)
	s.pending = append(s.pending, e)
}

// poke wakes the execute loop without blocking. Callers hold s.mu.
func (s *Scheduler[T]) poke() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// unlock signals Drain waiters, releases s.mu and delivers buffered events.
func (s *Scheduler[T]) unlock() {
	close(s.changed)
	s.changed = make(chan struct{})
	s.mu.Unlock()
	s.flush()
}

// flush delivers buffered events in order. Sinks run without s.mu held and
// may call back into the scheduler; a nested flush leaves its events to
// the flush already in progress.
func (s *Scheduler[T]) flush() {
	for {
		if !s.emitMu.TryLock() {
			return
		}
		s.mu.Lock()
		events := s.pending
		s.pending = nil
		s.mu.Unlock()

		for _, e := range events {
			for _, sink := range s.sinks {
				sink.OnEvent(e)
			}
		}
		s.emitMu.Unlock()

		s.mu.Lock()
		more := len(s.pending) > 0
		s.mu.Unlock()
		if !more {
			return
		}
	}
}
