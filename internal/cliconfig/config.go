package cliconfig

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultListenAddr is the default address of the status API.
const DefaultListenAddr = "127.0.0.1:7070"

// Payload profiles understood by the CLI.
const (
	ProfileReminders = "reminders"
	ProfileRequests  = "requests"
)

// Config holds CLI configuration for pacer.
type Config struct {
	Profile string

	DispatchURL     string
	AuthKey         string
	DeviceID        string
	DispatchTimeout time.Duration
	DispatchRate    float64
	DispatchRetries int

	ListenAddr     string
	StateDir       string
	StatusInterval time.Duration
	LogLevel       string

	MaxBatchSize         int
	MaxQueueSize         int
	MaxConcurrentBatches int
	BatchingWindow       time.Duration
	TemporalWindow       time.Duration
	SampleInterval       time.Duration
	ExecuteInterval      time.Duration
	GracefulDegradation  bool

	// MemoryMB and CPUPercent override the default resource totals when positive.
	MemoryMB   float64
	CPUPercent float64
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Profile:              ProfileReminders,
		DispatchTimeout:      15 * time.Second,
		DispatchRetries:      2,
		ListenAddr:           DefaultListenAddr,
		StatusInterval:       5 * time.Second,
		LogLevel:             "info",
		MaxBatchSize:         10,
		MaxQueueSize:         1000,
		MaxConcurrentBatches: 3,
		BatchingWindow:       2 * time.Second,
		TemporalWindow:       time.Minute,
		SampleInterval:       time.Second,
		ExecuteInterval:      500 * time.Millisecond,
		GracefulDegradation:  true,
	}
}

// Validate checks the configuration for errors and normalizes values.
func (c *Config) Validate() error {
	c.Profile = strings.ToLower(strings.TrimSpace(c.Profile))
	switch c.Profile {
	case ProfileReminders, ProfileRequests:
	case "":
		c.Profile = ProfileReminders
	default:
		return fmt.Errorf("unknown profile %q (want %s or %s)", c.Profile, ProfileReminders, ProfileRequests)
	}

	if c.DispatchURL == "" {
		return fmt.Errorf("dispatch-url is required")
	}
	c.DispatchURL = strings.TrimSuffix(c.DispatchURL, "/")

	if c.MaxBatchSize < 1 {
		return fmt.Errorf("max batch size must be at least 1")
	}
	if c.MaxConcurrentBatches < 1 {
		return fmt.Errorf("max concurrent batches must be at least 1")
	}
	if c.BatchingWindow <= 0 {
		return fmt.Errorf("batching window must be positive")
	}
	if c.SampleInterval <= 0 {
		return fmt.Errorf("sample interval must be positive")
	}
	if c.DispatchRate < 0 {
		return fmt.Errorf("dispatch rate must not be negative")
	}
	return nil
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setFloat sets a float64 value if positive and flag not changed.
func (s *configSetter) setFloat(flag string, value float64, dst *float64) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses an environment value. Non-positive values are ignored.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

func (s *configSetter) setFloatFromString(flag, value string, dst *float64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if f <= 0 {
		return nil
	}
	*dst = f
	return nil
}

// setBoolFromString accepts "true" and "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
