package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (PACER_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("profile", os.Getenv("PACER_PROFILE"), &cfg.Profile)
	s.setString("dispatch-url", os.Getenv("PACER_DISPATCH_URL"), &cfg.DispatchURL)
	s.setString("auth-key", os.Getenv("PACER_AUTH_KEY"), &cfg.AuthKey)
	s.setString("device-id", os.Getenv("PACER_DEVICE_ID"), &cfg.DeviceID)
	s.setString("listen", os.Getenv("PACER_LISTEN"), &cfg.ListenAddr)
	s.setString("state-dir", os.Getenv("PACER_STATE_DIR"), &cfg.StateDir)
	s.setString("log-level", os.Getenv("PACER_LOG_LEVEL"), &cfg.LogLevel)

	if err := s.setDuration("timeout", os.Getenv("PACER_DISPATCH_TIMEOUT"), &cfg.DispatchTimeout); err != nil {
		return err
	}
	if err := s.setDuration("status-interval", os.Getenv("PACER_STATUS_INTERVAL"), &cfg.StatusInterval); err != nil {
		return err
	}
	if err := s.setDuration("batching-window", os.Getenv("PACER_BATCHING_WINDOW"), &cfg.BatchingWindow); err != nil {
		return err
	}
	if err := s.setDuration("temporal-window", os.Getenv("PACER_TEMPORAL_WINDOW"), &cfg.TemporalWindow); err != nil {
		return err
	}
	if err := s.setDuration("sample-interval", os.Getenv("PACER_SAMPLE_INTERVAL"), &cfg.SampleInterval); err != nil {
		return err
	}
	if err := s.setDuration("execute-interval", os.Getenv("PACER_EXECUTE_INTERVAL"), &cfg.ExecuteInterval); err != nil {
		return err
	}

	if err := s.setFloatFromString("dispatch-rate", os.Getenv("PACER_DISPATCH_RATE"), &cfg.DispatchRate); err != nil {
		return err
	}
	if err := s.setFloatFromString("memory-mb", os.Getenv("PACER_MEMORY_MB"), &cfg.MemoryMB); err != nil {
		return err
	}
	if err := s.setFloatFromString("cpu-percent", os.Getenv("PACER_CPU_PERCENT"), &cfg.CPUPercent); err != nil {
		return err
	}

	if err := s.setIntFromString("retries", os.Getenv("PACER_DISPATCH_RETRIES"), &cfg.DispatchRetries); err != nil {
		return err
	}
	if err := s.setIntFromString("max-batch-size", os.Getenv("PACER_MAX_BATCH_SIZE"), &cfg.MaxBatchSize); err != nil {
		return err
	}
	if err := s.setIntFromString("max-queue-size", os.Getenv("PACER_MAX_QUEUE_SIZE"), &cfg.MaxQueueSize); err != nil {
		return err
	}
	if err := s.setIntFromString("max-concurrent", os.Getenv("PACER_MAX_CONCURRENT_BATCHES"), &cfg.MaxConcurrentBatches); err != nil {
		return err
	}

	s.setBoolFromString("graceful-degradation", os.Getenv("PACER_GRACEFUL_DEGRADATION"), &cfg.GracefulDegradation)

	return nil
}
