// Package statusapi serves a local HTTP API for a running pacer instance:
// item submission and cancellation, status, limits and Prometheus metrics.
package statusapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bft-labs/pacer/internal/adapters/metrics"
	"github.com/bft-labs/pacer/pkg/pacer"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Config holds configuration options for the status API plugin.
type Config struct {
	// Addr is the listen address. Default: 127.0.0.1:7070
	Addr string

	// RequestTimeout bounds each request.
	// Default: 10 seconds
	RequestTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:           "127.0.0.1:7070",
		RequestTimeout: 10 * time.Second,
	}
}

// Plugin serves the status API.
type Plugin[T any] struct {
	cfg Config

	mu        sync.Mutex
	pacer     *pacer.Pacer[T]
	logger    pacer.Logger
	registry  *prometheus.Registry
	collector *metrics.Collector
	server    *http.Server
	addr      net.Addr
	wg        sync.WaitGroup
}

// New creates a status API plugin.
func New[T any](cfg Config) *Plugin[T] {
	d := DefaultConfig()
	if cfg.Addr == "" {
		cfg.Addr = d.Addr
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = d.RequestTimeout
	}
	return &Plugin[T]{cfg: cfg}
}

// Name returns the plugin identifier.
func (p *Plugin[T]) Name() string {
	return "statusapi"
}

// Initialize registers metrics, subscribes to scheduler events and starts
// listening.
func (p *Plugin[T]) Initialize(ctx context.Context, cfg pacer.PluginConfig[T]) error {
	p.attach(cfg)

	ln, err := net.Listen("tcp", p.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", p.cfg.Addr, err)
	}

	p.mu.Lock()
	p.addr = ln.Addr()
	p.server = &http.Server{
		Handler:           p.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	srv := p.server
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.logger.Error("status api stopped", pacer.Err(err))
		}
	}()

	p.logger.Info("status api listening", pacer.String("addr", ln.Addr().String()))
	return nil
}

// attach wires the plugin to a Pacer without listening.
func (p *Plugin[T]) attach(cfg pacer.PluginConfig[T]) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	collector := metrics.New(reg)
	cfg.Pacer.Subscribe(collector)

	p.mu.Lock()
	p.pacer = cfg.Pacer
	p.logger = cfg.Logger
	p.registry = reg
	p.collector = collector
	p.mu.Unlock()
}

// Shutdown stops the HTTP server, waiting for in-flight requests.
func (p *Plugin[T]) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	srv := p.server
	p.mu.Unlock()
	if srv == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	p.wg.Wait()
	return err
}

// Addr returns the bound listen address, or nil before Initialize.
func (p *Plugin[T]) Addr() net.Addr {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.addr
}

// Handler returns the chi router with all routes mounted.
func (p *Plugin[T]) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(p.cfg.RequestTimeout))

	r.Get("/healthz", p.handleHealth)
	r.Get("/metrics", p.handleMetrics)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", p.handleStatus)
		r.Put("/limits", p.handleLimits)
		r.Post("/items", p.handleSubmit)
		r.Delete("/items/{id}", p.handleCancel)
	})

	return r
}

type statusResponse struct {
	State string `json:"state"`
	pacer.Report
}

func (p *Plugin[T]) handleHealth(w http.ResponseWriter, r *http.Request) {
	state := p.pacer.Status()
	code := http.StatusOK
	if state != pacer.StateRunning {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{"status": state.String()})
}

func (p *Plugin[T]) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		State:  p.pacer.Status().String(),
		Report: p.pacer.Snapshot(),
	})
}

// handleMetrics refreshes status gauges before each scrape.
func (p *Plugin[T]) handleMetrics(w http.ResponseWriter, r *http.Request) {
	p.collector.Observe(p.pacer.Snapshot())
	promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
}

func (p *Plugin[T]) handleSubmit(w http.ResponseWriter, r *http.Request) {
	// Omitted priorities would decode as critical.
	item := pacer.WorkItem[T]{Priority: pacer.PriorityMedium}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&item); err != nil {
		writeError(w, http.StatusBadRequest, "invalid item: "+err.Error())
		return
	}

	id, err := p.pacer.Submit(r.Context(), item)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, map[string]string{"id": id})
	case errors.Is(err, pacer.ErrInvalidItem):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, pacer.ErrUnschedulable):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, pacer.ErrQueueOverflow):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		p.logger.Error("submit failed", pacer.Err(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (p *Plugin[T]) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !p.pacer.Cancel(id) {
		writeError(w, http.StatusNotFound, "unknown item "+id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (p *Plugin[T]) handleLimits(w http.ResponseWriter, r *http.Request) {
	var limits pacer.Limits
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&limits); err != nil {
		writeError(w, http.StatusBadRequest, "invalid limits: "+err.Error())
		return
	}
	if err := p.pacer.UpdateLimits(limits); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p.logger.Info("limits updated over api",
		pacer.Int("max_batch_size", limits.MaxBatchSize),
		pacer.Int("max_concurrent_batches", limits.MaxConcurrentBatches),
	)
	writeJSON(w, http.StatusOK, limits)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

var _ pacer.Plugin[string] = (*Plugin[string])(nil)
