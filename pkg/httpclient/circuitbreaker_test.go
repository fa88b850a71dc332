package httpclient

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newBreakerClient(t *testing.T, reg prometheus.Registerer) *CircuitBreakerClient {
	t.Helper()
	cfg := fastConfig()
	cfg.MaxRetries = 0
	bcfg := DefaultBreakerConfig("logo-fetch")
	bcfg.MinRequests = 2
	bcfg.Timeout = time.Hour
	var m *BreakerMetrics
	if reg != nil {
		m = NewBreakerMetrics(reg)
	}
	return NewCircuitBreakerClient(New(cfg), bcfg, m, testLogger())
}

func TestBreaker_OpensAfterFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	c := newBreakerClient(t, reg)

	for i := 0; i < 2; i++ {
		_, err := c.Fetch(context.Background(), srv.URL, 1024)
		var se *StatusError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, http.StatusInternalServerError, se.Code)
	}

	assert.Equal(t, gobreaker.StateOpen, c.State())
	_, err := c.Fetch(context.Background(), srv.URL, 1024)
	assert.ErrorIs(t, err, ErrCircuitOpen)

	expected := `
# HELP circuit_breaker_state Circuit breaker state (0=closed, 1=half-open, 2=open).
# TYPE circuit_breaker_state gauge
circuit_breaker_state{name="logo-fetch"} 2
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "circuit_breaker_state"))
}

func TestBreaker_ClientErrorsDoNotTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newBreakerClient(t, nil)
	for i := 0; i < 5; i++ {
		_, err := c.Fetch(context.Background(), srv.URL, 1024)
		var se *StatusError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, http.StatusNotFound, se.Code)
	}
	assert.Equal(t, gobreaker.StateClosed, c.State())
}

func TestFetch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("pngbytes"))
	}))
	defer srv.Close()

	got, err := newBreakerClient(t, nil).Fetch(context.Background(), srv.URL, 1024)
	require.NoError(t, err)
	assert.Equal(t, []byte("pngbytes"), got.Data)
	assert.Equal(t, "image/png", got.ContentType)
}

func TestFetch_TooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer srv.Close()

	_, err := newBreakerClient(t, nil).Fetch(context.Background(), srv.URL, 16)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestFetch_BadURL(t *testing.T) {
	_, err := newBreakerClient(t, nil).Fetch(context.Background(), "://nope", 16)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "build request")
}

func TestBreaker_BlockedAddressDoesNotTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	cfg := fastConfig()
	cfg.MaxRetries = 0
	cfg.PublicOnly = true
	bcfg := DefaultBreakerConfig("logo-fetch")
	bcfg.MinRequests = 2
	c := NewCircuitBreakerClient(New(cfg), bcfg, nil, testLogger())

	for i := 0; i < 4; i++ {
		_, err := c.Fetch(context.Background(), srv.URL, 16)
		assert.ErrorIs(t, err, ErrBlockedAddress)
	}
	assert.Equal(t, gobreaker.StateClosed, c.State())
}
