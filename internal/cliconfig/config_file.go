package cliconfig

import (
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	Profile              string  `toml:"profile"`
	DispatchURL          string  `toml:"dispatch_url"`
	AuthKey              string  `toml:"auth_key"`
	DeviceID             string  `toml:"device_id"`
	DispatchTimeout      string  `toml:"dispatch_timeout"`
	DispatchRate         float64 `toml:"dispatch_rate"`
	DispatchRetries      int     `toml:"dispatch_retries"`
	ListenAddr           string  `toml:"listen"`
	StateDir             string  `toml:"state_dir"`
	StatusInterval       string  `toml:"status_interval"`
	LogLevel             string  `toml:"log_level"`
	MaxBatchSize         int     `toml:"max_batch_size"`
	MaxQueueSize         int     `toml:"max_queue_size"`
	MaxConcurrentBatches int     `toml:"max_concurrent_batches"`
	BatchingWindow       string  `toml:"batching_window"`
	TemporalWindow       string  `toml:"temporal_window"`
	SampleInterval       string  `toml:"sample_interval"`
	ExecuteInterval      string  `toml:"execute_interval"`
	GracefulDegradation  *bool   `toml:"graceful_degradation"`
	MemoryMB             float64 `toml:"memory_mb"`
	CPUPercent           float64 `toml:"cpu_percent"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.pacer/config.toml, or "" when the home
// directory is unknown.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".pacer", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("profile", fc.Profile, &cfg.Profile)
	s.setString("dispatch-url", fc.DispatchURL, &cfg.DispatchURL)
	s.setString("auth-key", fc.AuthKey, &cfg.AuthKey)
	s.setString("device-id", fc.DeviceID, &cfg.DeviceID)
	s.setString("listen", fc.ListenAddr, &cfg.ListenAddr)
	s.setString("state-dir", fc.StateDir, &cfg.StateDir)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)

	durations := []struct {
		flag  string
		value string
		dst   *time.Duration
	}{
		{"timeout", fc.DispatchTimeout, &cfg.DispatchTimeout},
		{"status-interval", fc.StatusInterval, &cfg.StatusInterval},
		{"batching-window", fc.BatchingWindow, &cfg.BatchingWindow},
		{"temporal-window", fc.TemporalWindow, &cfg.TemporalWindow},
		{"sample-interval", fc.SampleInterval, &cfg.SampleInterval},
		{"execute-interval", fc.ExecuteInterval, &cfg.ExecuteInterval},
	}
	for _, d := range durations {
		if err := s.setDuration(d.flag, d.value, d.dst); err != nil {
			return err
		}
	}

	s.setFloat("dispatch-rate", fc.DispatchRate, &cfg.DispatchRate)
	s.setFloat("memory-mb", fc.MemoryMB, &cfg.MemoryMB)
	s.setFloat("cpu-percent", fc.CPUPercent, &cfg.CPUPercent)

	s.setInt("retries", fc.DispatchRetries, &cfg.DispatchRetries)
	s.setInt("max-batch-size", fc.MaxBatchSize, &cfg.MaxBatchSize)
	s.setInt("max-queue-size", fc.MaxQueueSize, &cfg.MaxQueueSize)
	s.setInt("max-concurrent", fc.MaxConcurrentBatches, &cfg.MaxConcurrentBatches)

	s.setBool("graceful-degradation", fc.GracefulDegradation, &cfg.GracefulDegradation)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
