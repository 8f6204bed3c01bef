// Stocksync - Offline-First Inventory Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stocksync

package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/stocksync/internal/logging"
	"github.com/tomtom215/stocksync/internal/metrics"
	"github.com/tomtom215/stocksync/internal/models"
)

// HTTPConfig configures the HTTP remote adapter.
type HTTPConfig struct {
	// BaseURL is the remote store root, e.g. "https://inventory.example.com".
	BaseURL string

	// APIKey is sent as a bearer token on every request.
	APIKey string

	// Timeout bounds each HTTP request. Default: 30s.
	Timeout time.Duration

	// RateLimit is the sustained request rate per second. Default: 10.
	RateLimit float64

	// Burst is the rate limiter burst size. Default: 20.
	Burst int
}

// HTTPAdapter talks to the remote store's REST API with circuit breaker
// protection, client-side rate limiting, and exponential backoff on
// HTTP 429. Push subscriptions are served by a WebSocket companion
// endpoint (see subscriber.go).
//
// Error classification: 401/403 wrap ErrUnauthorized; transport errors,
// 5xx, and an open circuit wrap ErrUnavailable.
//
// Thread safety: safe for concurrent use; each request is independent.
type HTTPAdapter struct {
	baseURL        string
	apiKey         string
	client         *http.Client
	limiter        *rate.Limiter
	cb             *gobreaker.CircuitBreaker[*http.Response]
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewHTTPAdapter creates an HTTP adapter for the remote store.
//
// Circuit breaker configuration follows the standard profile: minimum 10
// requests in the measurement window, trips at a 60% failure rate, 1-minute
// closed-state interval, 2-minute open-state timeout.
func NewHTTPAdapter(cfg HTTPConfig) *HTTPAdapter {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 10
	}
	if cfg.Burst == 0 {
		cfg.Burst = 20
	}

	cbName := "remote-store"
	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0)

	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("from", stateToString(from)).Str("to", stateToString(to)).
				Msg("remote circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, stateToString(from), stateToString(to)).Inc()
		},
	})

	return &HTTPAdapter{
		baseURL:        cfg.BaseURL,
		apiKey:         cfg.APIKey,
		client:         &http.Client{Timeout: cfg.Timeout},
		limiter:        rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
		cb:             cb,
		maxRetries:     5,
		retryBaseDelay: time.Second,
	}
}

// Create implements Adapter.
func (a *HTTPAdapter) Create(ctx context.Context, c models.Collection, e models.Entity) (string, error) {
	body, err := marshalForWire(e)
	if err != nil {
		return "", err
	}

	data, err := a.do(ctx, http.MethodPost, a.collectionURL(c, ""), body, "create")
	if err != nil {
		return "", err
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &created); err != nil {
		return "", fmt.Errorf("decode create response: %w", err)
	}
	if created.ID == "" {
		return "", fmt.Errorf("create response carried no id")
	}
	return created.ID, nil
}

// Update implements Adapter.
func (a *HTTPAdapter) Update(ctx context.Context, c models.Collection, id string, e models.Entity) error {
	body, err := marshalForWire(e)
	if err != nil {
		return err
	}
	_, err = a.do(ctx, http.MethodPut, a.collectionURL(c, id), body, "update")
	return err
}

// Delete implements Adapter. A 404 is treated as success: the entity is
// already gone, which is the state we wanted.
func (a *HTTPAdapter) Delete(ctx context.Context, c models.Collection, id string) error {
	_, err := a.do(ctx, http.MethodDelete, a.collectionURL(c, id), nil, "delete")
	if err != nil && errors404(err) {
		return nil
	}
	return err
}

// GetAll implements Adapter.
func (a *HTTPAdapter) GetAll(ctx context.Context, c models.Collection) ([]models.Entity, error) {
	data, err := a.do(ctx, http.MethodGet, a.collectionURL(c, ""), nil, "get_all")
	if err != nil {
		return nil, err
	}

	var entities []models.Entity
	if err := json.Unmarshal(data, &entities); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return entities, nil
}

// Subscribe implements Adapter via the WebSocket companion endpoint.
func (a *HTTPAdapter) Subscribe(ctx context.Context, c models.Collection) (<-chan []models.Entity, func(), error) {
	sub := newWSSubscriber(a.baseURL, a.apiKey, c)
	return sub.start(ctx)
}

// do performs one logical request: rate limit, circuit breaker, 429
// backoff, status classification. It returns the response body.
func (a *HTTPAdapter) do(ctx context.Context, method, url string, body []byte, operation string) ([]byte, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := a.cb.Execute(func() (*http.Response, error) {
		return a.doWithRateLimitRetry(ctx, method, url, body)
	})
	if err != nil {
		if gobreakerRejected(err) {
			metrics.RemoteRequests.WithLabelValues(operation, "rejected").Inc()
			return nil, fmt.Errorf("%w: circuit open: %v", ErrUnavailable, err)
		}
		metrics.RemoteRequests.WithLabelValues(operation, "transient").Inc()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.RemoteRequests.WithLabelValues(operation, "transient").Inc()
		return nil, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		metrics.RemoteRequests.WithLabelValues(operation, "success").Inc()
		return data, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		metrics.RemoteRequests.WithLabelValues(operation, "auth_failure").Inc()
		return nil, fmt.Errorf("%w (HTTP %d)", ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		metrics.RemoteRequests.WithLabelValues(operation, "transient").Inc()
		return nil, fmt.Errorf("%w: HTTP 404: %s", ErrUnavailable, notFoundMarker)
	default:
		metrics.RemoteRequests.WithLabelValues(operation, "transient").Inc()
		return nil, fmt.Errorf("%w: HTTP %d", ErrUnavailable, resp.StatusCode)
	}
}

// doWithRateLimitRetry performs the HTTP request with exponential backoff
// on HTTP 429 (1s, 2s, 4s, 8s, 16s), honoring Retry-After when present.
// Any response other than 429 is returned to the circuit breaker as-is;
// the breaker counts transport errors only, so remote 4xx/5xx status
// classification stays out of its failure statistics.
func (a *HTTPAdapter) doWithRateLimitRetry(ctx context.Context, method, url string, body []byte) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= a.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		} else {
			reader = http.NoBody
		}

		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if a.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+a.apiKey)
		}

		resp, err := a.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("http request: %w", err)
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		_ = resp.Body.Close()

		if attempt == a.maxRetries {
			lastErr = fmt.Errorf("rate limit exceeded after %d retries (HTTP 429)", a.maxRetries)
			break
		}

		delay := a.retryBaseDelay * time.Duration(1<<uint(attempt))
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if parsed, err := time.ParseDuration(retryAfter + "s"); err == nil {
				delay = parsed
			}
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, lastErr
}

func (a *HTTPAdapter) collectionURL(c models.Collection, id string) string {
	if id == "" {
		return fmt.Sprintf("%s/api/v1/%s", a.baseURL, c)
	}
	return fmt.Sprintf("%s/api/v1/%s/%s", a.baseURL, c, id)
}

// marshalForWire strips local bookkeeping before transmission: the remote
// store must never see temp ids or offline flags as domain data.
func marshalForWire(e models.Entity) ([]byte, error) {
	wire := e.Clone()
	wire.OfflineCreated = false
	wire.SyncStatus = ""
	wire.Deleted = false

	data, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("marshal entity: %w", err)
	}
	return data, nil
}

// notFoundMarker lets Delete recognize 404s without a second sentinel in
// the public taxonomy (a 404 on delete is a success, anywhere else it is
// transient).
const notFoundMarker = "entity not found"

func errors404(err error) bool {
	return err != nil && strings.Contains(err.Error(), notFoundMarker)
}

func gobreakerRejected(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func stateToString(s gobreaker.State) string {
	switch s {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	}
	return "unknown"
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	}
	return -1
}
