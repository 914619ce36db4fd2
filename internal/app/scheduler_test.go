package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/pacer/internal/adapters/clock"
	"github.com/bft-labs/pacer/internal/domain"
	"github.com/bft-labs/pacer/internal/ports"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type eventLog struct {
	mu     sync.Mutex
	events []domain.Event
}

func (l *eventLog) OnEvent(e domain.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) Of(kind domain.EventKind) []domain.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.Event
	for _, e := range l.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func (l *eventLog) Removed(reason string) []domain.Event {
	var out []domain.Event
	for _, e := range l.Of(domain.EventItemRemoved) {
		if e.Reason == reason {
			out = append(out, e)
		}
	}
	return out
}

type stubSampler struct {
	mu    sync.Mutex
	usage ports.Usage
	err   error
}

func (s *stubSampler) Sample(context.Context) (ports.Usage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage, s.err
}

func (s *stubSampler) set(u ports.Usage, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage, s.err = u, err
}

func memoryUsage(mb float64) ports.Usage {
	return ports.Usage{Used: domain.Requirement{MemoryMB: mb}}
}

type stubDispatcher struct {
	mu         sync.Mutex
	deliveries []ports.Delivery[string]
	fail       error
	// gate, when set, blocks every dispatch until it is closed.
	gate chan struct{}
}

func (d *stubDispatcher) Dispatch(ctx context.Context, del ports.Delivery[string]) error {
	if d.gate != nil {
		select {
		case <-d.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail != nil {
		return d.fail
	}
	d.deliveries = append(d.deliveries, del)
	return nil
}

func (d *stubDispatcher) Deliveries() []ports.Delivery[string] {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]ports.Delivery[string](nil), d.deliveries...)
}

type harness struct {
	s       *Scheduler[string]
	clock   *clock.Manual
	sampler *stubSampler
	disp    *stubDispatcher
	events  *eventLog
}

func newHarness(t *testing.T, mutate func(*Config)) *harness {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	h := &harness{
		clock:   clock.NewManual(t0),
		sampler: &stubSampler{},
		disp:    &stubDispatcher{},
		events:  &eventLog{},
	}
	s, err := NewScheduler(cfg, Deps[string]{
		Dispatcher: h.disp,
		Sampler:    h.sampler,
		Clock:      h.clock,
		Logger:     nopLogger{},
		Sinks:      []ports.EventSink{h.events},
	})
	require.NoError(t, err)
	h.s = s
	return h
}

func (h *harness) submit(t *testing.T, it domain.WorkItem[string]) string {
	t.Helper()
	id, err := h.s.Submit(context.Background(), it)
	require.NoError(t, err)
	return id
}

// execute runs one execute tick and waits for the started batches.
func (h *harness) execute() int {
	n := h.s.ExecuteTick(context.Background())
	h.s.wg.Wait()
	return n
}

func memoryOnly(total float64) map[domain.ResourceKind]ResourceLimit {
	return map[domain.ResourceKind]ResourceLimit{
		domain.ResourceMemory: {Total: total, Admission: 1, Pressure: domain.DefaultPressureThresholds()},
	}
}

func TestScheduler_SameOwnerItemsFormOneBatch(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.MaxBatchSize = 5 })
	for i := 0; i < 3; i++ {
		h.submit(t, domain.WorkItem[string]{OwnerID: "mia", Priority: domain.PriorityMedium, Payload: "water plants"})
	}

	require.Equal(t, 1, h.s.ComposeTick())

	b := h.s.batches.Peek()
	require.NotNil(t, b)
	assert.Equal(t, 3, b.Size())
	assert.Equal(t, domain.ClassOwnerAffinity, b.Classification)

	created := h.events.Of(domain.EventBatchCreated)
	require.Len(t, created, 1)
	assert.Equal(t, 3, created[0].Count)
	require.Len(t, h.events.Of(domain.EventOptimizationApplied), 1)
	assert.Len(t, h.events.Removed(domain.ReasonBatched), 3)
	assert.Equal(t, 0, h.s.Status().QueueDepth)
}

func TestScheduler_CriticalItemJumpsTheQueue(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.MaxConcurrentBatches = 1 })
	h.submit(t, domain.WorkItem[string]{OwnerID: "leo", Priority: domain.PriorityHigh})
	h.submit(t, domain.WorkItem[string]{OwnerID: "leo", Priority: domain.PriorityHigh})
	require.Equal(t, 1, h.s.ComposeTick())

	id := h.submit(t, domain.WorkItem[string]{OwnerID: "gran", Priority: domain.PriorityCritical, Payload: "medication"})

	emergency := h.events.Of(domain.EventEmergencyBatchCreated)
	require.Len(t, emergency, 1)
	assert.Equal(t, id, emergency[0].ItemID)
	assert.Equal(t, domain.PriorityCritical, emergency[0].Priority)

	head := h.s.batches.Peek()
	require.True(t, head.Emergency())
	assert.Equal(t, emergency[0].BatchID, head.ID)

	h.s.SampleTick(context.Background())
	require.Equal(t, 1, h.execute())

	deliveries := h.disp.Deliveries()
	require.Len(t, deliveries, 1)
	assert.Equal(t, id, deliveries[0].Items[0].ID)
	assert.Equal(t, 1, h.s.Status().BatchQueueDepth)
}

func TestScheduler_OverflowRejectsLowItems(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.MaxQueueSize = 50 })

	var rejected int
	for i := 0; i < 55; i++ {
		_, err := h.s.Submit(context.Background(), domain.WorkItem[string]{Priority: domain.PriorityLow})
		if err != nil {
			require.ErrorIs(t, err, domain.ErrQueueOverflow)
			rejected++
		}
	}

	assert.Equal(t, 5, rejected)
	assert.Equal(t, 50, h.s.Status().QueueDepth)
	assert.Len(t, h.events.Of(domain.EventOverflowHandled), 5)
	assert.Equal(t, uint64(5), h.s.Stats().Overflows)
	for _, it := range h.s.queue.Items() {
		assert.Equal(t, domain.PriorityLow, it.Priority)
	}
}

func TestScheduler_OverflowEvictsLessUrgentItem(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.MaxQueueSize = 2 })
	first := h.submit(t, domain.WorkItem[string]{Priority: domain.PriorityBackground})
	second := h.submit(t, domain.WorkItem[string]{Priority: domain.PriorityBackground})
	urgent := h.submit(t, domain.WorkItem[string]{Priority: domain.PriorityHigh})

	evicted := h.events.Removed(domain.ReasonEvicted)
	require.Len(t, evicted, 1)
	assert.Equal(t, second, evicted[0].ItemID)
	assert.Equal(t, uint64(1), h.s.Stats().ItemsEvicted)

	items := h.s.queue.Items()
	require.Len(t, items, 2)
	assert.Equal(t, urgent, items[0].ID)
	assert.Equal(t, first, items[1].ID)

	_, err := h.s.Submit(context.Background(), domain.WorkItem[string]{Priority: domain.PriorityBackground})
	assert.ErrorIs(t, err, domain.ErrQueueOverflow)
}

func TestScheduler_HighMemoryShrinksLimits(t *testing.T) {
	h := newHarness(t, nil)
	h.sampler.set(memoryUsage(0.85*512), nil)

	snap := h.s.SampleTick(context.Background())
	assert.Equal(t, domain.PressureHigh, snap.Overall)

	st := h.s.Status()
	assert.Equal(t, domain.Limits{MaxBatchSize: 8, MaxConcurrentBatches: 2}, st.Limits)
	assert.Equal(t, domain.Limits{MaxBatchSize: 10, MaxConcurrentBatches: 3}, st.ConfiguredLimits)

	var reasons []string
	for _, e := range h.events.Of(domain.EventGracefulDegradationApplied) {
		reasons = append(reasons, e.Reason)
	}
	assert.Equal(t, []string{domain.ReasonBatchSizeReduced, domain.ReasonConcurrencyReduced}, reasons)

	h.sampler.set(memoryUsage(10), nil)
	h.s.SampleTick(context.Background())
	assert.Equal(t, domain.Limits{MaxBatchSize: 10, MaxConcurrentBatches: 3}, h.s.Status().Limits)
}

func TestScheduler_FailedBatchRequeuesItems(t *testing.T) {
	h := newHarness(t, nil)
	h.disp.fail = errors.New("push gateway down")
	for i := 0; i < 3; i++ {
		h.submit(t, domain.WorkItem[string]{OwnerID: "ana", Priority: domain.PriorityLow})
	}
	h.s.SampleTick(context.Background())
	h.s.ComposeTick()
	require.Equal(t, 1, h.execute())

	failed := h.events.Of(domain.EventBatchFailed)
	require.Len(t, failed, 1)
	assert.ErrorIs(t, failed[0].Err, domain.ErrBatchExecution)
	assert.Equal(t, 3, failed[0].Count)

	st := h.s.Status()
	assert.Equal(t, 3, st.QueueDepth)
	assert.Equal(t, 0, st.ActiveBatches)
	assert.Equal(t, uint64(1), st.Stats.BatchesFailed)
	for _, it := range h.s.queue.Items() {
		assert.Equal(t, 1, it.Attempts)
	}
	assert.Zero(t, h.s.admission.Reserved())

	// Two more failures exhaust the default three attempts of low items.
	for i := 0; i < 2; i++ {
		h.s.ComposeTick()
		h.execute()
	}
	assert.Len(t, h.events.Removed(domain.ReasonRetriesExhausted), 3)
	assert.Equal(t, 0, h.s.Status().QueueDepth)
}

func TestScheduler_FailedHighItemsKeepRetrying(t *testing.T) {
	h := newHarness(t, nil)
	h.disp.fail = errors.New("push gateway down")
	id := h.submit(t, domain.WorkItem[string]{OwnerID: "ana", Priority: domain.PriorityHigh})
	h.s.SampleTick(context.Background())

	for i := 0; i < 4; i++ {
		require.Equal(t, 1, h.s.ComposeTick())
		require.Equal(t, 1, h.execute())
	}

	assert.Empty(t, h.events.Removed(domain.ReasonRetriesExhausted))
	assert.Len(t, h.events.Of(domain.EventBatchFailed), 4)
	it, ok := h.s.queue.Get(id)
	require.True(t, ok)
	assert.Equal(t, 4, it.Attempts)
}

func TestScheduler_CriticalItemsAreNeverDropped(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.MaxAttempts = 1 })
	h.disp.fail = errors.New("speaker offline")
	h.submit(t, domain.WorkItem[string]{Priority: domain.PriorityCritical, Requirement: domain.Requirement{Voice: 1}})
	h.s.SampleTick(context.Background())

	for i := 0; i < 3; i++ {
		require.Equal(t, 1, h.execute())
	}

	assert.Empty(t, h.events.Removed(domain.ReasonRetriesExhausted))
	assert.Len(t, h.events.Of(domain.EventEmergencyBatchCreated), 4)
	assert.Equal(t, 1, h.s.Status().BatchQueueDepth)
}

func TestScheduler_AdmissionKeepsStrictOrder(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.Resources = memoryOnly(100) })
	big := h.submit(t, domain.WorkItem[string]{OwnerID: "a", Priority: domain.PriorityHigh, Requirement: domain.Requirement{MemoryMB: 60}})
	h.submit(t, domain.WorkItem[string]{OwnerID: "b", Priority: domain.PriorityLow, Requirement: domain.Requirement{MemoryMB: 20}})

	h.sampler.set(memoryUsage(50), nil)
	h.s.SampleTick(context.Background())
	require.Equal(t, 2, h.s.ComposeTick())
	require.Equal(t, big, h.s.batches.Peek().Items[0].ID)

	// The head does not fit; the smaller batch behind it must not skip ahead.
	assert.Equal(t, 0, h.execute())
	assert.Empty(t, h.events.Of(domain.EventBatchAdmitted))

	// 30 used + 60 reserved + 20 exceeds 100, so only the head is admitted.
	h.sampler.set(memoryUsage(30), nil)
	h.s.SampleTick(context.Background())
	assert.Equal(t, 1, h.execute())
	assert.Equal(t, 1, h.s.Status().BatchQueueDepth)
}

func TestScheduler_ConcurrencyBound(t *testing.T) {
	h := newHarness(t, func(c *Config) {
		c.MaxConcurrentBatches = 2
		c.MaxBatchSize = 1
	})
	h.disp.gate = make(chan struct{})
	channels := []string{"voice", "push", "avatar", "email", "chime"}
	for _, ch := range channels {
		h.submit(t, domain.WorkItem[string]{OwnerID: ch, Channel: ch, Priority: domain.PriorityMedium})
	}
	h.s.SampleTick(context.Background())
	require.Equal(t, 5, h.s.ComposeTick())

	assert.Equal(t, 2, h.s.ExecuteTick(context.Background()))
	assert.Equal(t, 0, h.s.ExecuteTick(context.Background()))
	assert.Equal(t, 2, h.s.Status().ActiveBatches)

	close(h.disp.gate)
	h.s.wg.Wait()
	for h.s.Status().BatchQueueDepth > 0 {
		assert.LessOrEqual(t, h.execute(), 2)
	}
	assert.Len(t, h.disp.Deliveries(), 5)
	assert.Equal(t, uint64(5), h.s.Stats().BatchesProcessed)
}

func TestScheduler_SplitsAndRejectsOversizedWork(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.Resources = memoryOnly(100) })
	h.submit(t, domain.WorkItem[string]{OwnerID: "a", Priority: domain.PriorityMedium, Requirement: domain.Requirement{MemoryMB: 60}})
	h.submit(t, domain.WorkItem[string]{OwnerID: "a", Priority: domain.PriorityMedium, Requirement: domain.Requirement{MemoryMB: 60}})
	h.s.SampleTick(context.Background())
	require.Equal(t, 1, h.s.ComposeTick())

	assert.Equal(t, 1, h.execute())
	var splits int
	for _, e := range h.events.Of(domain.EventBatchCreated) {
		if e.Reason == domain.ReasonSplit {
			splits++
		}
	}
	assert.Equal(t, 2, splits)
	assert.Equal(t, 1, h.execute())

	_, err := h.s.Submit(context.Background(), domain.WorkItem[string]{Priority: domain.PriorityCritical, Requirement: domain.Requirement{MemoryMB: 150}})
	assert.ErrorIs(t, err, domain.ErrUnschedulable)
	assert.Empty(t, h.events.Of(domain.EventEmergencyBatchCreated))

	// Capacity lowered after acceptance.
	shrunk := h.submit(t, domain.WorkItem[string]{Priority: domain.PriorityHigh, Requirement: domain.Requirement{MemoryMB: 90}})
	h.s.ComposeTick()
	h.s.SetResourceLimits(memoryOnly(50))
	h.s.SampleTick(context.Background())
	assert.Equal(t, 0, h.execute())
	removed := h.events.Removed(domain.ReasonUnschedulable)
	require.Len(t, removed, 1)
	assert.Equal(t, shrunk, removed[0].ItemID)
	assert.Equal(t, 0, h.s.Status().BatchQueueDepth)
}

func TestScheduler_NothingNeedingResourcesRunsBeforeFirstSample(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.Resources = memoryOnly(100) })
	h.sampler.set(ports.Usage{}, errors.New("statm unreadable"))
	h.s.SampleTick(context.Background())

	_, err := h.s.Submit(context.Background(), domain.WorkItem[string]{Priority: domain.PriorityHigh, Requirement: domain.Requirement{MemoryMB: 5000}})
	assert.ErrorIs(t, err, domain.ErrUnschedulable)

	id := h.submit(t, domain.WorkItem[string]{Priority: domain.PriorityHigh, Requirement: domain.Requirement{MemoryMB: 80}})
	require.Equal(t, 1, h.s.ComposeTick())
	for i := 0; i < 3; i++ {
		h.s.SampleTick(context.Background())
		assert.Equal(t, 0, h.execute())
	}
	assert.Empty(t, h.events.Of(domain.EventBatchAdmitted))
	assert.Empty(t, h.disp.Deliveries())
	assert.Equal(t, 1, h.s.Status().BatchQueueDepth)

	h.sampler.set(memoryUsage(10), nil)
	h.s.SampleTick(context.Background())
	require.Equal(t, 1, h.execute())
	deliveries := h.disp.Deliveries()
	require.Len(t, deliveries, 1)
	assert.Equal(t, id, deliveries[0].Items[0].ID)
}

func TestScheduler_Cancel(t *testing.T) {
	h := newHarness(t, nil)

	later := h.submit(t, domain.WorkItem[string]{Priority: domain.PriorityLow, TargetTime: t0.Add(time.Hour)})
	assert.True(t, h.s.Cancel(later))
	assert.False(t, h.s.Cancel(later))
	assert.Equal(t, 0, h.s.Status().QueueDepth)

	a := h.submit(t, domain.WorkItem[string]{OwnerID: "kai", Priority: domain.PriorityMedium})
	b := h.submit(t, domain.WorkItem[string]{OwnerID: "kai", Priority: domain.PriorityMedium})
	h.s.ComposeTick()
	assert.True(t, h.s.Cancel(a))
	assert.Equal(t, 1, h.s.batches.Peek().Size())
	assert.True(t, h.s.Cancel(b))
	assert.Equal(t, 0, h.s.Status().BatchQueueDepth)
	assert.Len(t, h.events.Removed(domain.ReasonCancelled), 3)
}

func TestScheduler_CancelDuringExecutionSkipsLaterChannels(t *testing.T) {
	h := newHarness(t, nil)
	h.disp.gate = make(chan struct{})
	h.submit(t, domain.WorkItem[string]{OwnerID: "zoe", Channel: "voice", Priority: domain.PriorityMedium})
	pushID := h.submit(t, domain.WorkItem[string]{OwnerID: "zoe", Channel: "push", Priority: domain.PriorityMedium})
	h.s.SampleTick(context.Background())
	h.s.ComposeTick()

	require.Equal(t, 1, h.s.ExecuteTick(context.Background()))
	assert.True(t, h.s.Cancel(pushID))
	close(h.disp.gate)
	h.s.wg.Wait()

	deliveries := h.disp.Deliveries()
	require.Len(t, deliveries, 1)
	assert.Equal(t, "voice", deliveries[0].Channel)

	completed := h.events.Of(domain.EventBatchCompleted)
	require.Len(t, completed, 1)
	assert.Equal(t, 1, completed[0].Count)
	removed := h.events.Removed(domain.ReasonCancelled)
	require.Len(t, removed, 1)
	assert.Equal(t, pushID, removed[0].ItemID)
	assert.Empty(t, h.s.cancelled)
}

func TestScheduler_SubmitValidation(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.s.Submit(context.Background(), domain.WorkItem[string]{Priority: domain.Priority(9)})
	assert.ErrorIs(t, err, domain.ErrInvalidItem)

	h.submit(t, domain.WorkItem[string]{ID: "fixed", Priority: domain.PriorityLow})
	_, err = h.s.Submit(context.Background(), domain.WorkItem[string]{ID: "fixed", Priority: domain.PriorityLow})
	assert.ErrorIs(t, err, domain.ErrInvalidItem)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = h.s.Submit(ctx, domain.WorkItem[string]{Priority: domain.PriorityLow})
	assert.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, uint64(1), h.s.Stats().ItemsSeen)
}

func TestScheduler_UpdateLimits(t *testing.T) {
	h := newHarness(t, nil)
	assert.ErrorIs(t, h.s.UpdateLimits(domain.Limits{}), domain.ErrInvalidConfig)

	want := domain.Limits{MaxBatchSize: 4, MaxConcurrentBatches: 1}
	require.NoError(t, h.s.UpdateLimits(want))
	st := h.s.Status()
	assert.Equal(t, want, st.Limits)
	assert.Equal(t, want, st.ConfiguredLimits)
}

func TestScheduler_DisablingDegradationRestoresLimits(t *testing.T) {
	h := newHarness(t, nil)
	h.sampler.set(memoryUsage(500), nil)
	h.s.SampleTick(context.Background())
	require.NotEqual(t, h.s.Status().ConfiguredLimits, h.s.Status().Limits)

	h.s.SetGracefulDegradation(false)
	h.s.SampleTick(context.Background())
	st := h.s.Status()
	assert.Equal(t, st.ConfiguredLimits, st.Limits)
}

func TestScheduler_RunDrainsSubmittedWork(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BatchingWindow = 10 * time.Millisecond
	cfg.ExecuteInterval = 5 * time.Millisecond
	cfg.SampleInterval = 10 * time.Millisecond
	disp := &stubDispatcher{}
	s, err := NewScheduler(cfg, Deps[string]{
		Dispatcher: disp,
		Sampler:    &stubSampler{},
		Clock:      clock.System{},
		Logger:     nopLogger{},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	for i := 0; i < 4; i++ {
		_, err := s.Submit(ctx, domain.WorkItem[string]{OwnerID: "family", Priority: domain.PriorityMedium})
		require.NoError(t, err)
	}
	_, err = s.Submit(ctx, domain.WorkItem[string]{Priority: domain.PriorityLow, TargetTime: time.Now().Add(time.Hour)})
	require.NoError(t, err)

	drainCtx, drainCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer drainCancel()
	require.NoError(t, s.Flush(drainCtx))

	var delivered int
	for _, d := range disp.Deliveries() {
		delivered += len(d.Items)
	}
	assert.Equal(t, 5, delivered)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	tests := map[string]func(*Config){
		"zero batch size":     func(c *Config) { c.MaxBatchSize = 0 },
		"zero concurrency":    func(c *Config) { c.MaxConcurrentBatches = 0 },
		"zero tick":           func(c *Config) { c.ExecuteInterval = 0 },
		"zero attempts":       func(c *Config) { c.MaxAttempts = 0 },
		"bad recovery":        func(c *Config) { c.RecoveryFraction = 1.5 },
		"bad priority cutoff": func(c *Config) { c.LowPriorityCutoff = domain.Priority(7) },
		"bad thresholds": func(c *Config) {
			c.Resources = map[domain.ResourceKind]ResourceLimit{
				domain.ResourceCPU: {Total: 100, Admission: 0.8, Pressure: domain.PressureThresholds{Medium: 0.9, High: 0.5, Critical: 1}},
			}
		},
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), domain.ErrInvalidConfig)
		})
	}
}
