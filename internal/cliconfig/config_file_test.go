package cliconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestApplyFileConfig(t *testing.T) {
	trueVal := true
	falseVal := false

	tests := []struct {
		name       string
		fileConfig FileConfig
		changed    map[string]bool
		initial    Config
		expected   Config
		wantErr    bool
	}{
		{
			name: "applies all valid config values",
			fileConfig: FileConfig{
				Profile:             "requests",
				DispatchURL:         "http://hub.local",
				BatchingWindow:      "5s",
				DispatchRate:        2.5,
				MaxBatchSize:        6,
				GracefulDegradation: &trueVal,
			},
			changed: map[string]bool{},
			initial: Config{},
			expected: Config{
				Profile:             "requests",
				DispatchURL:         "http://hub.local",
				BatchingWindow:      5 * time.Second,
				DispatchRate:        2.5,
				MaxBatchSize:        6,
				GracefulDegradation: true,
			},
		},
		{
			name: "respects changed flags",
			fileConfig: FileConfig{
				DispatchURL: "http://file.local",
				DeviceID:    "file-device",
			},
			changed: map[string]bool{"dispatch-url": true},
			initial: Config{
				DispatchURL: "http://flag.local",
				DeviceID:    "flag-device",
			},
			expected: Config{
				DispatchURL: "http://flag.local", // unchanged because flag was set
				DeviceID:    "file-device",
			},
		},
		{
			name:       "returns error for invalid duration",
			fileConfig: FileConfig{SampleInterval: "soon"},
			changed:    map[string]bool{},
			wantErr:    true,
		},
		{
			name: "ignores zero values",
			fileConfig: FileConfig{
				MaxBatchSize: 0,
				DispatchRate: 0,
			},
			changed: map[string]bool{},
			initial: Config{MaxBatchSize: 10, DispatchRate: 1},
			expected: Config{
				MaxBatchSize: 10,
				DispatchRate: 1,
			},
		},
		{
			name:       "explicit false disables degradation",
			fileConfig: FileConfig{GracefulDegradation: &falseVal},
			changed:    map[string]bool{},
			initial:    Config{GracefulDegradation: true},
			expected:   Config{GracefulDegradation: false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.initial
			err := ApplyFileConfig(&cfg, tt.fileConfig, tt.changed)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ApplyFileConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if cfg != tt.expected {
				t.Errorf("ApplyFileConfig() = %+v, want %+v", cfg, tt.expected)
			}
		})
	}
}

func TestLoadFileConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := strings.TrimSpace(`
profile = "reminders"
dispatch_url = "http://hub.local"
batching_window = "3s"
max_concurrent_batches = 2
memory_mb = 768
graceful_degradation = false
`)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	fc, err := LoadFileConfig(path)
	if err != nil {
		t.Fatalf("LoadFileConfig() error = %v", err)
	}
	if fc.DispatchURL != "http://hub.local" || fc.BatchingWindow != "3s" {
		t.Errorf("LoadFileConfig() = %+v", fc)
	}
	if fc.MaxConcurrentBatches != 2 || fc.MemoryMB != 768 {
		t.Errorf("numeric fields = %d, %v", fc.MaxConcurrentBatches, fc.MemoryMB)
	}
	if fc.GracefulDegradation == nil || *fc.GracefulDegradation {
		t.Error("graceful_degradation should be explicitly false")
	}
}

func TestLoadFileConfig_Errors(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadFileConfig(filepath.Join(dir, "missing.toml")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.toml")
	if err := os.WriteFile(bad, []byte("dispatch_url = [unterminated"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFileConfig(bad); err == nil {
		t.Error("expected parse error")
	}
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "exists")
	if FileExists(path) {
		t.Error("FileExists() = true before creation")
	}
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	if !FileExists(path) {
		t.Error("FileExists() = false after creation")
	}
}

func TestDefaultConfigPath(t *testing.T) {
	p := DefaultConfigPath()
	if p != "" && !strings.HasSuffix(p, filepath.Join(".pacer", "config.toml")) {
		t.Errorf("DefaultConfigPath() = %q", p)
	}
}
