// Package configwatcher reloads scheduling limits from a TOML file while a
// pacer instance runs. Batch size, concurrency, graceful degradation and the
// memory and CPU capacities can change without a restart.
package configwatcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/pacer/internal/cliconfig"
	"github.com/bft-labs/pacer/pkg/pacer"
)

// Config holds configuration options for the config watcher plugin.
type Config struct {
	// Path is the TOML file to watch. Its directory must exist.
	Path string

	// DebounceDelay is the delay to wait after a file change before reloading.
	// Default: 100 milliseconds
	DebounceDelay time.Duration
}

// DefaultConfig watches the default CLI config file.
func DefaultConfig() Config {
	return Config{
		Path:          cliconfig.DefaultConfigPath(),
		DebounceDelay: 100 * time.Millisecond,
	}
}

// Plugin watches a config file and applies tunable settings on change.
type Plugin[T any] struct {
	path          string
	debounceDelay time.Duration

	mu       sync.Mutex
	pacer    *pacer.Pacer[T]
	logger   pacer.Logger
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	debounce *time.Timer
	reloads  int
}

// New creates a config watcher plugin.
func New[T any](cfg Config) *Plugin[T] {
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = 100 * time.Millisecond
	}
	return &Plugin[T]{
		path:          cfg.Path,
		debounceDelay: cfg.DebounceDelay,
	}
}

// Name returns the plugin identifier.
func (p *Plugin[T]) Name() string {
	return "configwatcher"
}

// Initialize starts watching the config file's directory.
func (p *Plugin[T]) Initialize(ctx context.Context, cfg pacer.PluginConfig[T]) error {
	p.mu.Lock()
	p.pacer = cfg.Pacer
	p.logger = cfg.Logger
	p.mu.Unlock()

	if p.path == "" {
		p.logger.Warn("config watcher disabled: no config path")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(p.path), err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(1)
	go p.watchLoop(watchCtx, watcher)

	p.logger.Info("config watcher started", pacer.String("path", p.path))
	return nil
}

// Shutdown stops watching and cancels a pending reload.
func (p *Plugin[T]) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()

	p.mu.Lock()
	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.mu.Unlock()
	return nil
}

// Reloads returns how many times the file was applied successfully.
func (p *Plugin[T]) Reloads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reloads
}

func (p *Plugin[T]) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer p.wg.Done()
	defer watcher.Close()

	name := filepath.Base(p.path)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			p.scheduleReload(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("config watcher error", pacer.Err(err))
		}
	}
}

func (p *Plugin[T]) scheduleReload(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.debounce = time.AfterFunc(p.debounceDelay, func() {
		if ctx.Err() != nil {
			return
		}
		if err := p.reload(); err != nil {
			p.logger.Warn("config reload failed, keeping current limits",
				pacer.String("path", p.path),
				pacer.Err(err),
			)
		}
	})
}

// reload applies the tunable subset of the file. Fields left out of the file
// keep their current values.
func (p *Plugin[T]) reload() error {
	fc, err := cliconfig.LoadFileConfig(p.path)
	if err != nil {
		return err
	}

	limits := p.pacer.Snapshot().ConfiguredLimits
	if fc.MaxBatchSize > 0 {
		limits.MaxBatchSize = fc.MaxBatchSize
	}
	if fc.MaxConcurrentBatches > 0 {
		limits.MaxConcurrentBatches = fc.MaxConcurrentBatches
	}
	if err := p.pacer.UpdateLimits(limits); err != nil {
		return err
	}
	if fc.GracefulDegradation != nil {
		p.pacer.SetGracefulDegradation(*fc.GracefulDegradation)
	}
	if fc.MemoryMB > 0 || fc.CPUPercent > 0 {
		p.pacer.SetResourceLimits(p.pacer.Config().ResourceTotals(fc.MemoryMB, fc.CPUPercent))
	}

	p.mu.Lock()
	p.reloads++
	p.mu.Unlock()

	p.logger.Info("config reloaded",
		pacer.Int("max_batch_size", limits.MaxBatchSize),
		pacer.Int("max_concurrent_batches", limits.MaxConcurrentBatches),
	)
	return nil
}

var _ pacer.Plugin[string] = (*Plugin[string])(nil)
