package middleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestRateLimiter_BurstThenReject(t *testing.T) {
	l := NewRateLimiter(1, 2, time.Minute)
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))

	assert.True(t, l.Allow("10.0.0.2"), "buckets are per IP")

	now = now.Add(time.Second)
	assert.True(t, l.Allow("10.0.0.1"), "refilled after one second")
}

func TestRateLimiter_Sweep(t *testing.T) {
	l := NewRateLimiter(5, 5, time.Minute)
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }

	l.Allow("a")
	now = now.Add(30 * time.Second)
	l.Allow("b")
	now = now.Add(45 * time.Second)

	assert.Equal(t, 1, l.Sweep())
}

func TestRateLimiter_Middleware(t *testing.T) {
	l := NewRateLimiter(0.001, 1, time.Minute)
	h := l.Middleware(testLogger())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/brands/x/logo", nil)
		req.RemoteAddr = "192.0.2.7:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusCreated, do().Code)

	rec := do()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Equal(t, "RATE_LIMITED", errorCode(t, rec))
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"remote addr", nil, "203.0.113.9:4000", "203.0.113.9"},
		{"forwarding headers ignored", map[string]string{"X-Forwarded-For": "198.51.100.1", "X-Real-IP": "198.51.100.2"}, "203.0.113.9:4000", "203.0.113.9"},
		{"remote without port", nil, "unix-socket", "unix-socket"},
		{"ipv6", nil, "[2001:db8::1]:443", "2001:db8::1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(req))
		})
	}
}

func TestTrustedProxies_ClientIP(t *testing.T) {
	proxies, err := ParseTrustedProxies([]string{"10.0.0.0/8", " 192.0.2.10 ", ""})
	require.NoError(t, err)

	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"untrusted peer keeps its address", map[string]string{"X-Forwarded-For": "198.51.100.1"}, "203.0.113.9:4000", "203.0.113.9"},
		{"rightmost untrusted hop", map[string]string{"X-Forwarded-For": "1.2.3.4, 198.51.100.1, 10.0.0.5"}, "10.0.0.2:1", "198.51.100.1"},
		{"bare address trusted", map[string]string{"X-Forwarded-For": "198.51.100.7"}, "192.0.2.10:80", "198.51.100.7"},
		{"junk stops the walk", map[string]string{"X-Forwarded-For": "198.51.100.1, junk, 10.0.0.5"}, "10.0.0.2:1", "10.0.0.5"},
		{"all hops trusted", map[string]string{"X-Forwarded-For": "10.1.1.1, 10.0.0.5"}, "10.0.0.2:1", "10.1.1.1"},
		{"x-real-ip from trusted peer", map[string]string{"X-Real-IP": " 198.51.100.2 "}, "10.0.0.2:1", "198.51.100.2"},
		{"no headers", nil, "10.0.0.2:1", "10.0.0.2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, proxies.ClientIP(req))
		})
	}
}

func TestTrustedProxies_NilTrustsNobody(t *testing.T) {
	var proxies *TrustedProxies
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.2:1"
	req.Header.Set("X-Forwarded-For", "198.51.100.1")

	assert.Equal(t, "10.0.0.2", proxies.ClientIP(req))
}

func TestParseTrustedProxies_Invalid(t *testing.T) {
	_, err := ParseTrustedProxies([]string{"10.0.0.0/33"})
	assert.ErrorContains(t, err, "invalid proxy CIDR")

	_, err = ParseTrustedProxies([]string{"proxy.internal"})
	assert.ErrorContains(t, err, "invalid proxy address")
}

func TestRateLimiter_RotatedForwardedForSharesBucket(t *testing.T) {
	l := NewRateLimiter(0.001, 1, time.Minute)
	h := l.Middleware(testLogger())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	do := func(xff string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/brands/x/logo", nil)
		req.RemoteAddr = "203.0.113.50:5555"
		req.Header.Set("X-Forwarded-For", xff)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusCreated, do("198.51.100.1"))
	assert.Equal(t, http.StatusTooManyRequests, do("198.51.100.2"))
}

func TestRateLimiter_BehindTrustedProxy(t *testing.T) {
	proxies, err := ParseTrustedProxies([]string{"10.0.0.0/8"})
	require.NoError(t, err)
	l := NewRateLimiter(0.001, 1, time.Minute).WithTrustedProxies(proxies)
	h := l.Middleware(testLogger())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	do := func(xff string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/brands/x/logo", nil)
		req.RemoteAddr = "10.0.0.2:5555"
		req.Header.Set("X-Forwarded-For", xff)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusCreated, do("198.51.100.1"))
	assert.Equal(t, http.StatusCreated, do("198.51.100.2"), "distinct clients behind the proxy")
	assert.Equal(t, http.StatusTooManyRequests, do("1.2.3.4, 198.51.100.1"), "spoofed left hops are ignored")
}
