package fs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bft-labs/pacer/internal/domain"
)

func TestStatusFile_LoadMissing(t *testing.T) {
	r := NewStatusFile(t.TempDir())

	st, err := r.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if st.QueueDepth != 0 || !st.UpdatedAt.IsZero() {
		t.Errorf("Load() = %+v, want empty status", st)
	}
}

func TestStatusFile_SaveAndLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	r := NewStatusFile(dir)
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	want := domain.Status{
		Stats:      domain.Stats{ItemsSeen: 12, BatchesCreated: 4, AvgProcessingTime: 1500 * time.Millisecond},
		Limits:     domain.Limits{MaxBatchSize: 8, MaxConcurrentBatches: 2},
		QueueDepth: 3,
		Resources: domain.Snapshot{
			States: map[domain.ResourceKind]domain.ResourceState{
				domain.ResourceMemory: {Kind: domain.ResourceMemory, Used: 300, Total: 512, Threshold: 435.2, Pressure: domain.PressureLow},
			},
			Overall:   domain.PressureLow,
			SampledAt: at,
		},
		UpdatedAt: at,
	}
	if err := r.Save(context.Background(), want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := os.Stat(r.Path() + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp file left behind: %v", err)
	}

	got, err := r.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Stats != want.Stats || got.Limits != want.Limits || got.QueueDepth != 3 {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}
	if !got.UpdatedAt.Equal(at) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, at)
	}
	if got.Resources.States[domain.ResourceMemory].Used != 300 {
		t.Errorf("memory state = %+v", got.Resources.States[domain.ResourceMemory])
	}
}

func TestStatusFile_LoadCorrupt(t *testing.T) {
	dir := t.TempDir()
	r := NewStatusFile(dir)
	if err := os.WriteFile(r.Path(), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := r.Load(context.Background()); err == nil {
		t.Error("Load() = nil error, want decode error")
	}
}
