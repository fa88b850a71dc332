package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = gobreaker.ErrOpenState

// BreakerConfig configures a CircuitBreakerClient.
type BreakerConfig struct {
	Name         string
	MaxRequests  uint32        // probes allowed while half-open
	Interval     time.Duration // closed-state counter reset period
	Timeout      time.Duration // open duration before half-open
	FailureRatio float64
	MinRequests  uint32
}

// DefaultBreakerConfig trips at a 50% failure ratio over at least 5 calls and
// stays open for 30s.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:         name,
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

// BreakerMetrics exports breaker state.
type BreakerMetrics struct {
	state *prometheus.GaugeVec
}

// NewBreakerMetrics registers the circuit_breaker_state gauge with reg.
func NewBreakerMetrics(reg prometheus.Registerer) *BreakerMetrics {
	m := &BreakerMetrics{state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=half-open, 2=open).",
	}, []string{"name"})}
	reg.MustRegister(m.state)
	return m
}

func (m *BreakerMetrics) set(name string, s gobreaker.State) {
	if m == nil {
		return
	}
	v := map[gobreaker.State]float64{
		gobreaker.StateClosed:   0,
		gobreaker.StateHalfOpen: 1,
		gobreaker.StateOpen:     2,
	}[s]
	m.state.WithLabelValues(name).Set(v)
}

// CircuitBreakerClient guards a Client. Transport errors and 5xx responses
// count as failures; refused destinations do not.
type CircuitBreakerClient struct {
	client  *Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
}

// NewCircuitBreakerClient wraps client. metrics may be nil.
func NewCircuitBreakerClient(client *Client, cfg BreakerConfig, metrics *BreakerMetrics, logger *slog.Logger) *CircuitBreakerClient {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrBlockedAddress)
		},
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.Requests >= cfg.MinRequests &&
				float64(c.TotalFailures)/float64(c.Requests) >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			metrics.set(name, to)
		},
	}
	metrics.set(cfg.Name, gobreaker.StateClosed)
	return &CircuitBreakerClient{
		client:  client,
		breaker: gobreaker.NewCircuitBreaker[*http.Response](settings),
	}
}

// Do sends req through the breaker.
func (c *CircuitBreakerClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	return c.breaker.Execute(func() (*http.Response, error) {
		resp, err := c.client.Do(ctx, req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
			_ = resp.Body.Close()
			return nil, &StatusError{URL: req.URL.Redacted(), Code: resp.StatusCode}
		}
		return resp, nil
	})
}

// State reports the breaker state.
func (c *CircuitBreakerClient) State() gobreaker.State {
	return c.breaker.State()
}

// StatusError is a non-2xx response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.Code)
}

// ErrTooLarge is returned by Fetch when the body exceeds its limit.
var ErrTooLarge = errors.New("httpclient: response body too large")

// Fetched is a downloaded resource.
type Fetched struct {
	Data        []byte
	ContentType string
}

// Fetch GETs url and returns at most maxBytes of body. Non-2xx responses
// yield a *StatusError.
func (c *CircuitBreakerClient) Fetch(ctx context.Context, url string, maxBytes int64) (*Fetched, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: req.URL.Redacted(), Code: resp.StatusCode}
	}
	if resp.ContentLength > maxBytes {
		return nil, ErrTooLarge
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, ErrTooLarge
	}
	return &Fetched{Data: data, ContentType: resp.Header.Get("Content-Type")}, nil
}
