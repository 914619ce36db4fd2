package pacer

import (
	"fmt"
	"strings"
	"time"

	"github.com/bft-labs/pacer/internal/app"
)

// Default values for Config fields that are not part of the scheduling core.
const (
	DefaultStatusInterval  = 5 * time.Second
	DefaultDispatchTimeout = 15 * time.Second
	DefaultDispatchRetries = 2
)

// Config holds the configuration of a Pacer instance.
// Start from DefaultConfig; zero numeric fields are filled by SetDefaults.
type Config struct {
	MaxBatchSize         int
	MaxQueueSize         int
	MaxConcurrentBatches int

	// BatchingWindow is how often ready items are composed into batches.
	BatchingWindow time.Duration
	// TemporalWindow is the bucket width for grouping by target time.
	TemporalWindow  time.Duration
	ExecuteInterval time.Duration
	SampleInterval  time.Duration
	MaxAttempts     int

	GracefulDegradation bool
	Resources           map[ResourceKind]ResourceLimit

	// DispatchURL is the base URL of the delivery service. Used only when
	// no Dispatcher is supplied with WithDispatcher.
	DispatchURL     string
	AuthKey         string
	DeviceID        string
	DispatchTimeout time.Duration
	// DispatchRate caps deliveries per second. Zero means unlimited.
	DispatchRate    float64
	DispatchRetries int

	// StateDir holds status.json. Empty disables status persistence unless
	// a repository is supplied with WithStatusRepository.
	StateDir       string
	StatusInterval time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	core := app.DefaultConfig()
	return Config{
		MaxBatchSize:         core.MaxBatchSize,
		MaxQueueSize:         core.MaxQueueSize,
		MaxConcurrentBatches: core.MaxConcurrentBatches,
		BatchingWindow:       core.BatchingWindow,
		TemporalWindow:       core.TemporalWindow,
		ExecuteInterval:      core.ExecuteInterval,
		SampleInterval:       core.SampleInterval,
		MaxAttempts:          core.MaxAttempts,
		GracefulDegradation:  core.GracefulDegradation,
		Resources:            core.Resources,
		DispatchTimeout:      DefaultDispatchTimeout,
		DispatchRetries:      DefaultDispatchRetries,
		StatusInterval:       DefaultStatusInterval,
	}
}

// SetDefaults fills zero-valued fields with their defaults.
func (c *Config) SetDefaults() {
	d := DefaultConfig()
	if c.MaxBatchSize == 0 {
		c.MaxBatchSize = d.MaxBatchSize
	}
	if c.MaxQueueSize == 0 {
		c.MaxQueueSize = d.MaxQueueSize
	}
	if c.MaxConcurrentBatches == 0 {
		c.MaxConcurrentBatches = d.MaxConcurrentBatches
	}
	if c.BatchingWindow == 0 {
		c.BatchingWindow = d.BatchingWindow
	}
	if c.TemporalWindow == 0 {
		c.TemporalWindow = d.TemporalWindow
	}
	if c.ExecuteInterval == 0 {
		c.ExecuteInterval = d.ExecuteInterval
	}
	if c.SampleInterval == 0 {
		c.SampleInterval = d.SampleInterval
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.Resources == nil {
		c.Resources = d.Resources
	}
	if c.DispatchTimeout == 0 {
		c.DispatchTimeout = d.DispatchTimeout
	}
	if c.StatusInterval == 0 {
		c.StatusInterval = d.StatusInterval
	}
	c.DispatchURL = strings.TrimSuffix(c.DispatchURL, "/")
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	if err := c.core().Validate(); err != nil {
		return err
	}
	if c.DispatchRate < 0 || c.DispatchRetries < 0 {
		return fmt.Errorf("%w: dispatch rate and retries must not be negative", ErrInvalidConfig)
	}
	if c.StatusInterval <= 0 {
		return fmt.Errorf("%w: status interval must be positive", ErrInvalidConfig)
	}
	return nil
}

// Limits returns the configured adjustable limits.
func (c Config) Limits() Limits {
	return Limits{MaxBatchSize: c.MaxBatchSize, MaxConcurrentBatches: c.MaxConcurrentBatches}
}

func (c Config) core() app.Config {
	core := app.DefaultConfig()
	core.MaxBatchSize = c.MaxBatchSize
	core.MaxQueueSize = c.MaxQueueSize
	core.MaxConcurrentBatches = c.MaxConcurrentBatches
	core.BatchingWindow = c.BatchingWindow
	core.Lookahead = c.BatchingWindow
	core.TemporalWindow = c.TemporalWindow
	core.ExecuteInterval = c.ExecuteInterval
	core.SampleInterval = c.SampleInterval
	core.StaleAfter = 3 * c.SampleInterval
	core.MaxAttempts = c.MaxAttempts
	core.GracefulDegradation = c.GracefulDegradation
	core.Resources = c.Resources
	return core
}

// ResourceTotals returns a copy of the resource configuration with the
// memory and CPU capacities replaced where the given values are positive.
func (c Config) ResourceTotals(memoryMB, cpuPercent float64) map[ResourceKind]ResourceLimit {
	base := c.Resources
	if base == nil {
		base = DefaultResourceLimits()
	}
	out := make(map[ResourceKind]ResourceLimit, len(base))
	for kind, lim := range base {
		out[kind] = lim
	}
	if lim, ok := out[ResourceMemory]; ok && memoryMB > 0 {
		lim.Total = memoryMB
		out[ResourceMemory] = lim
	}
	if lim, ok := out[ResourceCPU]; ok && cpuPercent > 0 {
		lim.Total = cpuPercent
		out[ResourceCPU] = lim
	}
	return out
}
