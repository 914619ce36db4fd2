package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"time"

	"golang.org/x/time/rate"

	"github.com/bft-labs/pacer/internal/domain"
	"github.com/bft-labs/pacer/internal/ports"
)

const deliveriesEndpoint = "/v1/deliveries"

// DispatcherConfig configures the HTTP dispatcher.
type DispatcherConfig struct {
	// URL is the base URL of the delivery service.
	URL      string
	AuthKey  string
	DeviceID string
	// RatePerSecond limits outgoing requests. Zero disables the limit.
	RatePerSecond float64
	Burst         int
	// Retries is how many times a transient failure is retried.
	Retries        int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

// Dispatcher implements ports.Dispatcher by POSTing each delivery as JSON.
type Dispatcher[T any] struct {
	cfg     DispatcherConfig
	client  ports.HTTPClient
	limiter *rate.Limiter
	logger  ports.Logger
}

// NewDispatcher creates an HTTP dispatcher.
func NewDispatcher[T any](cfg DispatcherConfig, client ports.HTTPClient, logger ports.Logger) *Dispatcher[T] {
	if cfg.BackoffInitial <= 0 {
		cfg.BackoffInitial = DefaultBackoffInitial
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = DefaultBackoffMax
	}
	d := &Dispatcher[T]{cfg: cfg, client: client, logger: logger}
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		d.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return d
}

type deliveryItem[T any] struct {
	ID          string          `json:"id"`
	OwnerID     string          `json:"owner_id,omitempty"`
	Priority    domain.Priority `json:"priority"`
	TargetTime  time.Time       `json:"target_time,omitempty"`
	Constraints []string        `json:"constraints,omitempty"`
	Attempts    int             `json:"attempts,omitempty"`
	Payload     T               `json:"payload"`
}

type deliveryRequest[T any] struct {
	BatchID        string                `json:"batch_id"`
	Classification domain.Classification `json:"classification"`
	Channel        string                `json:"channel"`
	Degradation    string                `json:"degradation"`
	Items          []deliveryItem[T]     `json:"items"`
}

// statusError is a non-2xx response.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.code, e.body)
}

func (e *statusError) retryable() bool {
	return e.code >= 500 || e.code == http.StatusTooManyRequests
}

// Dispatch delivers d, retrying server errors and transport failures.
func (d *Dispatcher[T]) Dispatch(ctx context.Context, del ports.Delivery[T]) error {
	body, err := json.Marshal(newRequest(del))
	if err != nil {
		return fmt.Errorf("marshal delivery: %w", err)
	}

	bo := newBackoff(d.cfg.BackoffInitial, d.cfg.BackoffMax)
	for attempt := 0; ; attempt++ {
		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		err := d.post(ctx, body, del)
		if err == nil {
			return nil
		}
		var se *statusError
		if errors.As(err, &se) && !se.retryable() {
			return err
		}
		if ctx.Err() != nil || attempt >= d.cfg.Retries {
			return err
		}

		d.logger.Warn("delivery failed, retrying",
			ports.Batch(del.BatchID),
			ports.String("channel", del.Channel),
			ports.Int("attempt", attempt+1),
			ports.Err(err),
		)
		if werr := bo.Wait(ctx); werr != nil {
			return err
		}
	}
}

func newRequest[T any](del ports.Delivery[T]) deliveryRequest[T] {
	req := deliveryRequest[T]{
		BatchID:        del.BatchID,
		Classification: del.Classification,
		Channel:        del.Channel,
		Degradation:    del.Degradation.String(),
		Items:          make([]deliveryItem[T], len(del.Items)),
	}
	for i, it := range del.Items {
		req.Items[i] = deliveryItem[T]{
			ID:          it.ID,
			OwnerID:     it.OwnerID,
			Priority:    it.Priority,
			TargetTime:  it.TargetTime,
			Constraints: it.Constraints,
			Attempts:    it.Attempts,
			Payload:     it.Payload,
		}
	}
	return req
}

func (d *Dispatcher[T]) post(ctx context.Context, body []byte, del ports.Delivery[T]) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.URL+deliveriesEndpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if d.cfg.AuthKey != "" {
		req.Header.Set("Authorization", "Bearer "+d.cfg.AuthKey)
	}
	req.Header.Set("X-Pacer-Device-Id", d.cfg.DeviceID)
	req.Header.Set("X-Pacer-OSArch", runtime.GOOS+"/"+runtime.GOARCH)
	req.Header.Set("X-Pacer-Batch-Id", del.BatchID)
	req.Header.Set("X-Pacer-Channel", del.Channel)
	req.Header.Set("X-Pacer-Degradation", del.Degradation.String())

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return &statusError{code: resp.StatusCode, body: string(msg)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
