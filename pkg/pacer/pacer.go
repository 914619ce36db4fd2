package pacer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/bft-labs/pacer/internal/adapters/clock"
	"github.com/bft-labs/pacer/internal/adapters/fs"
	httpAdapter "github.com/bft-labs/pacer/internal/adapters/http"
	logAdapter "github.com/bft-labs/pacer/internal/adapters/log"
	"github.com/bft-labs/pacer/internal/adapters/sysres"
	"github.com/bft-labs/pacer/internal/app"
	"github.com/bft-labs/pacer/internal/ports"
)

// Pacer is an adaptive, resource-aware batch scheduler that can be embedded
// in other applications. Use New to create an instance, then Start to begin
// scheduling.
type Pacer[T any] struct {
	config     Config
	lifecycle  *app.Lifecycle
	sched      *app.Scheduler[T]
	hub        *eventHub
	clock      ports.Clock
	statusRepo ports.StatusRepository
	logger     ports.Logger
	plugins    []Plugin[T]

	mu     sync.Mutex
	cancel context.CancelFunc
}

// New creates a Pacer in StateStopped; call Start to begin scheduling.
// Items may be submitted before Start and are held until it runs.
func New[T any](cfg Config, opts ...Option[T]) (*Pacer[T], error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options[T]
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = logAdapter.Nop{}
	}
	clk := o.clock
	if clk == nil {
		clk = clock.System{}
	}
	hub := &eventHub{handler: o.eventHandler, sinks: o.sinks}

	dispatcher := o.dispatcher
	if dispatcher == nil {
		if cfg.DispatchURL == "" {
			return nil, fmt.Errorf("%w: a dispatcher or dispatch URL is required", ErrInvalidConfig)
		}
		client := o.httpClient
		if client == nil {
			client = &http.Client{Timeout: cfg.DispatchTimeout}
		}
		dispatcher = httpAdapter.NewDispatcher[T](httpAdapter.DispatcherConfig{
			URL:           cfg.DispatchURL,
			AuthKey:       cfg.AuthKey,
			DeviceID:      cfg.DeviceID,
			RatePerSecond: cfg.DispatchRate,
			Burst:         cfg.MaxConcurrentBatches,
			Retries:       cfg.DispatchRetries,
		}, client, logger)
	}

	sampler := o.sampler
	if sampler == nil {
		s := sysres.NewSampler(nil)
		dispatcher = sysres.Track(s.Activity(), dispatcher)
		sampler = s
	}

	repo := o.statusRepo
	if repo == nil && cfg.StateDir != "" {
		repo = fs.NewStatusFile(cfg.StateDir)
	}

	sched, err := app.NewScheduler(cfg.core(), app.Deps[T]{
		Dispatcher: dispatcher,
		Sampler:    sampler,
		Clock:      clk,
		Logger:     logger,
		Sinks:      []ports.EventSink{hub},
		Strategies: o.strategies,
		ContextKey: o.contextKey,
	})
	if err != nil {
		return nil, err
	}

	return &Pacer[T]{
		config:     cfg,
		lifecycle:  app.NewLifecycle(logger, hub),
		sched:      sched,
		hub:        hub,
		clock:      clk,
		statusRepo: repo,
		logger:     logger,
		plugins:    o.plugins,
	}, nil
}

// Start begins scheduling in the background and returns once plugins are
// initialized. The provided context bounds the lifetime of scheduling.
func (p *Pacer[T]) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.lifecycle.CanStart() {
		return ErrAlreadyRunning
	}
	if err := p.lifecycle.TransitionTo(app.StateStarting, "Start() called"); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.lifecycle.SetCancel(cancel)

	pluginCfg := PluginConfig[T]{Pacer: p, Logger: p.logger}
	for _, pl := range p.plugins {
		if err := initPlugin(runCtx, pl, pluginCfg); err != nil {
			p.logger.Error("plugin initialization failed",
				ports.String("plugin", pl.Name()),
				ports.Err(err),
			)
			cancel()
			_ = p.lifecycle.TransitionTo(app.StateCrashed, "plugin init failed: "+pl.Name())
			return err
		}
		p.logger.Info("plugin initialized", ports.String("plugin", pl.Name()))
	}

	if p.statusRepo != nil {
		p.loadPreviousStatus(runCtx)
		p.lifecycle.Go(func() { p.statusLoop(runCtx) })
	}

	p.lifecycle.Go(func() {
		if err := p.lifecycle.TransitionTo(app.StateRunning, "scheduler starting"); err != nil {
			p.logger.Error("failed to transition to running", ports.Err(err))
			return
		}
		err := p.sched.Run(runCtx)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			p.logger.Error("scheduler error", ports.Err(err))
			_ = p.lifecycle.TransitionTo(app.StateCrashed, err.Error())
		}
	})

	return nil
}

func initPlugin[T any](ctx context.Context, pl Plugin[T], cfg PluginConfig[T]) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("plugin %s panicked: %v", pl.Name(), r)
		}
	}()
	return pl.Initialize(ctx, cfg)
}

// Stop cancels scheduling, waits for executing batches, persists a final
// status report and shuts plugins down in reverse order. Returns
// ErrShutdownTimeout if batches are still running after app.ShutdownTimeout.
func (p *Pacer[T]) Stop() error {
	p.mu.Lock()
	if !p.lifecycle.CanStop() {
		p.mu.Unlock()
		return ErrNotRunning
	}
	if err := p.lifecycle.TransitionTo(app.StateStopping, "Stop() called"); err != nil {
		p.mu.Unlock()
		return err
	}
	if p.cancel != nil {
		p.cancel()
	}
	p.mu.Unlock()

	err := p.lifecycle.WaitWithTimeout(app.ShutdownTimeout)

	shutdownCtx := context.Background()
	if p.statusRepo != nil {
		p.saveStatus(shutdownCtx)
	}
	for i := len(p.plugins) - 1; i >= 0; i-- {
		pl := p.plugins[i]
		if serr := shutdownPlugin(shutdownCtx, pl); serr != nil {
			p.logger.Error("plugin shutdown failed",
				ports.String("plugin", pl.Name()),
				ports.Err(serr),
			)
		} else {
			p.logger.Info("plugin shutdown complete", ports.String("plugin", pl.Name()))
		}
	}

	if err != nil {
		_ = p.lifecycle.TransitionTo(app.StateCrashed, "shutdown timeout")
	} else {
		_ = p.lifecycle.TransitionTo(app.StateStopped, "graceful shutdown")
	}
	return err
}

func shutdownPlugin[T any](ctx context.Context, pl Plugin[T]) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("plugin %s panicked: %v", pl.Name(), r)
		}
	}()
	return pl.Shutdown(ctx)
}

// Status returns the current lifecycle state.
func (p *Pacer[T]) Status() State {
	return p.lifecycle.State()
}

// Config returns the configuration the instance was created with.
func (p *Pacer[T]) Config() Config {
	return p.config
}

// Submit accepts an item for scheduling and returns its id, generated when
// empty. Critical items bypass batching.
func (p *Pacer[T]) Submit(ctx context.Context, item WorkItem[T]) (string, error) {
	return p.sched.Submit(ctx, item)
}

// Cancel removes a pending item or stops an executing one before its
// channel is dispatched. Returns false when id is unknown.
func (p *Pacer[T]) Cancel(id string) bool {
	return p.sched.Cancel(id)
}

// Drain blocks until no work is pending or executing, or ctx is done.
func (p *Pacer[T]) Drain(ctx context.Context) error {
	return p.sched.Drain(ctx)
}

// Flush batches every pending item regardless of its target time, then
// drains.
func (p *Pacer[T]) Flush(ctx context.Context) error {
	return p.sched.Flush(ctx)
}

// Snapshot returns a point-in-time report of queues, limits, resources and
// telemetry.
func (p *Pacer[T]) Snapshot() Report {
	return p.sched.Status()
}

// UpdateLimits replaces the batch size and concurrency limits.
func (p *Pacer[T]) UpdateLimits(l Limits) error {
	return p.sched.UpdateLimits(l)
}

// SetResourceLimits replaces the per-resource configuration.
func (p *Pacer[T]) SetResourceLimits(limits map[ResourceKind]ResourceLimit) {
	p.sched.SetResourceLimits(limits)
}

// SetGracefulDegradation toggles graceful degradation.
func (p *Pacer[T]) SetGracefulDegradation(enabled bool) {
	p.sched.SetGracefulDegradation(enabled)
}

// Subscribe adds an observer of scheduler events.
func (p *Pacer[T]) Subscribe(sink EventSink) {
	p.hub.subscribe(sink)
}

func (p *Pacer[T]) loadPreviousStatus(ctx context.Context) {
	prev, err := p.statusRepo.Load(ctx)
	if err != nil {
		p.logger.Warn("failed to load previous status", ports.Err(err))
		return
	}
	if prev.UpdatedAt.IsZero() {
		return
	}
	p.logger.Info("previous status loaded",
		ports.Any("updated_at", prev.UpdatedAt),
		ports.Uint64("items_seen", prev.Stats.ItemsSeen),
		ports.Int("queue_depth", prev.QueueDepth),
	)
}

func (p *Pacer[T]) statusLoop(ctx context.Context) {
	t := p.clock.NewTicker(p.config.StatusInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C():
			p.saveStatus(ctx)
		}
	}
}

func (p *Pacer[T]) saveStatus(ctx context.Context) {
	if err := p.statusRepo.Save(ctx, p.sched.Status()); err != nil {
		p.logger.Warn("failed to save status", ports.Err(err))
	}
}
