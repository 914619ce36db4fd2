package statusapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/pacer/pkg/pacer"
)

type noopLogger struct{}

func (noopLogger) Debug(string, ...pacer.LogField) {}
func (noopLogger) Info(string, ...pacer.LogField)  {}
func (noopLogger) Warn(string, ...pacer.LogField)  {}
func (noopLogger) Error(string, ...pacer.LogField) {}

func newTestPlugin(t *testing.T) (*Plugin[pacer.Reminder], *pacer.Pacer[pacer.Reminder]) {
	t.Helper()
	p, err := pacer.NewReminderScheduler(pacer.DefaultConfig(),
		pacer.WithDispatcher[pacer.Reminder](pacer.DispatcherFunc[pacer.Reminder](func(context.Context, pacer.Delivery[pacer.Reminder]) error {
			return nil
		})),
		pacer.WithSampler[pacer.Reminder](pacer.ResourceSamplerFunc(func(context.Context) (pacer.Usage, error) {
			return pacer.Usage{}, nil
		})),
	)
	require.NoError(t, err)

	plugin := New[pacer.Reminder](Config{Addr: "127.0.0.1:0"})
	plugin.attach(pacer.PluginConfig[pacer.Reminder]{Pacer: p, Logger: noopLogger{}})
	return plugin, p
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSubmitAndCancel(t *testing.T) {
	plugin, p := newTestPlugin(t)
	h := plugin.Handler()

	rec := do(t, h, http.MethodPost, "/v1/items",
		`{"id":"r1","owner_id":"mia","priority":"low","channel":"voice","payload":{"title":"Water plants","room":"kitchen"}}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var created map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "r1", created["id"])
	assert.Equal(t, 1, p.Snapshot().QueueDepth)

	rec = do(t, h, http.MethodDelete, "/v1/items/r1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, p.Snapshot().QueueDepth)

	rec = do(t, h, http.MethodDelete, "/v1/items/r1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubmitDefaultsToMediumPriority(t *testing.T) {
	plugin, p := newTestPlugin(t)

	rec := do(t, plugin.Handler(), http.MethodPost, "/v1/items", `{"payload":{"title":"Stretch"}}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	// A critical item would have bypassed the work queue.
	assert.Equal(t, 1, p.Snapshot().QueueDepth)
}

func TestSubmitRejectsBadInput(t *testing.T) {
	plugin, _ := newTestPlugin(t)
	h := plugin.Handler()

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"id":`},
		{"unknown priority", `{"priority":"urgent"}`},
		{"negative duration", `{"priority":"low","estimated_duration":-5}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/v1/items", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), "error")
		})
	}
}

func TestSubmitDuplicateID(t *testing.T) {
	plugin, _ := newTestPlugin(t)
	h := plugin.Handler()

	body := `{"id":"dup","priority":"background"}`
	require.Equal(t, http.StatusAccepted, do(t, h, http.MethodPost, "/v1/items", body).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/v1/items", body).Code)
}

func TestSubmitUnschedulable(t *testing.T) {
	plugin, p := newTestPlugin(t)

	rec := do(t, plugin.Handler(), http.MethodPost, "/v1/items",
		`{"priority":"critical","channel":"voice","requirement":{"voice":3},"payload":{"title":"Call everyone"}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	assert.Zero(t, p.Snapshot().BatchQueueDepth)
}

func TestUpdateLimits(t *testing.T) {
	plugin, p := newTestPlugin(t)
	h := plugin.Handler()

	rec := do(t, h, http.MethodPut, "/v1/limits", `{"max_batch_size":5,"max_concurrent_batches":2}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, pacer.Limits{MaxBatchSize: 5, MaxConcurrentBatches: 2}, p.Snapshot().Limits)

	rec = do(t, h, http.MethodPut, "/v1/limits", `{"max_batch_size":0,"max_concurrent_batches":2}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 5, p.Snapshot().Limits.MaxBatchSize)
}

func TestStatusAndHealth(t *testing.T) {
	plugin, _ := newTestPlugin(t)
	h := plugin.Handler()

	rec := do(t, h, http.MethodGet, "/v1/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var st map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, "Stopped", st["state"])
	assert.Contains(t, st, "limits")
	assert.Contains(t, st, "stats")

	rec = do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetrics(t *testing.T) {
	plugin, _ := newTestPlugin(t)
	h := plugin.Handler()

	require.Equal(t, http.StatusAccepted, do(t, h, http.MethodPost, "/v1/items", `{"priority":"low"}`).Code)

	rec := do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "pacer_queue_depth 1")
	assert.Contains(t, body, `pacer_events_total{kind="item_queued"`)
	assert.Contains(t, body, "go_goroutines")
}

func TestInitializeServesHTTP(t *testing.T) {
	p, err := pacer.New(pacer.DefaultConfig(),
		pacer.WithDispatcher[string](pacer.DispatcherFunc[string](func(context.Context, pacer.Delivery[string]) error {
			return nil
		})),
		pacer.WithSampler[string](pacer.ResourceSamplerFunc(func(context.Context) (pacer.Usage, error) {
			return pacer.Usage{}, nil
		})),
	)
	require.NoError(t, err)

	plugin := New[string](Config{Addr: "127.0.0.1:0"})
	require.NoError(t, plugin.Initialize(context.Background(), pacer.PluginConfig[string]{Pacer: p, Logger: noopLogger{}}))

	resp, err := http.Get(fmt.Sprintf("http://%s/v1/status", plugin.Addr()))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"queue_depth":0`)

	require.NoError(t, plugin.Shutdown(context.Background()))
}
