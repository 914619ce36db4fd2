package cliconfig

import (
	"testing"
	"time"
)

func TestApplyEnvConfig(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		changed  map[string]bool
		initial  Config
		expected Config
		wantErr  bool
	}{
		{
			name: "applies all valid env vars",
			envVars: map[string]string{
				"PACER_DISPATCH_URL":           "http://env.local",
				"PACER_DEVICE_ID":              "kitchen-hub",
				"PACER_BATCHING_WINDOW":        "10s",
				"PACER_DISPATCH_RATE":          "0.5",
				"PACER_MAX_CONCURRENT_BATCHES": "4",
				"PACER_GRACEFUL_DEGRADATION":   "true",
			},
			changed: map[string]bool{},
			initial: Config{},
			expected: Config{
				DispatchURL:          "http://env.local",
				DeviceID:             "kitchen-hub",
				BatchingWindow:       10 * time.Second,
				DispatchRate:         0.5,
				MaxConcurrentBatches: 4,
				GracefulDegradation:  true,
			},
		},
		{
			name: "respects changed flags",
			envVars: map[string]string{
				"PACER_DISPATCH_URL": "http://env.local",
				"PACER_DEVICE_ID":    "env-device",
			},
			changed: map[string]bool{"dispatch-url": true},
			initial: Config{DispatchURL: "http://flag.local"},
			expected: Config{
				DispatchURL: "http://flag.local",
				DeviceID:    "env-device",
			},
		},
		{
			name:    "returns error for invalid duration",
			envVars: map[string]string{"PACER_SAMPLE_INTERVAL": "not-a-duration"},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name:    "returns error for invalid int",
			envVars: map[string]string{"PACER_MAX_BATCH_SIZE": "not-a-number"},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name:    "returns error for invalid float",
			envVars: map[string]string{"PACER_MEMORY_MB": "lots"},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name:     "handles bool '1' as true",
			envVars:  map[string]string{"PACER_GRACEFUL_DEGRADATION": "1"},
			changed:  map[string]bool{},
			expected: Config{GracefulDegradation: true},
		},
		{
			name:     "handles bool 'false' as false",
			envVars:  map[string]string{"PACER_GRACEFUL_DEGRADATION": "false"},
			changed:  map[string]bool{},
			initial:  Config{GracefulDegradation: true},
			expected: Config{GracefulDegradation: false},
		},
		{
			name:     "ignores non-positive ints",
			envVars:  map[string]string{"PACER_MAX_QUEUE_SIZE": "0"},
			changed:  map[string]bool{},
			initial:  Config{MaxQueueSize: 1000},
			expected: Config{MaxQueueSize: 1000},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg := tt.initial
			err := ApplyEnvConfig(&cfg, tt.changed)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ApplyEnvConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if cfg != tt.expected {
				t.Errorf("ApplyEnvConfig() = %+v, want %+v", cfg, tt.expected)
			}
		})
	}
}
