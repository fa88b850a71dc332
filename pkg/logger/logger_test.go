package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func lastLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	return out
}

func spanContext(t *testing.T) context.Context {
	t.Helper()
	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	return trace.ContextWithSpanContext(context.Background(), sc)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel(" WARN "))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("info"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNewWithWriter_ServiceField(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter("brand-catalog", "info", &buf).Info("started")

	out := lastLine(t, &buf)
	assert.Equal(t, "brand-catalog", out["service"])
	assert.Equal(t, "started", out["msg"])
	assert.NotContains(t, out, "source")
}

func TestNewWithWriter_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("svc", "error", &buf)

	l.Info("dropped")
	assert.Zero(t, buf.Len())

	l.Error("kept")
	assert.Equal(t, "kept", lastLine(t, &buf)["msg"])
}

func TestNewWithWriter_DebugAddsSource(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter("svc", "debug", &buf).Debug("trace me")

	assert.Contains(t, lastLine(t, &buf), "source")
}

func TestWithContext_Fields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("svc", "info", &buf)

	ctx := WithRequestID(spanContext(t), "req-123")
	ctx = WithSubject(ctx, "admin-1")
	WithContext(ctx, l).Info("hello")

	out := lastLine(t, &buf)
	assert.Equal(t, "req-123", out["request_id"])
	assert.Equal(t, "admin-1", out["subject"])
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", out["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", out["span_id"])
}

func TestWithContext_Empty(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("svc", "info", &buf)

	got := WithContext(context.Background(), l)
	assert.Same(t, l, got)

	got.Info("plain")
	out := lastLine(t, &buf)
	for _, k := range []string{"request_id", "subject", "trace_id", "span_id"} {
		assert.NotContains(t, out, k)
	}
}

func TestContextAccessors(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RequestIDFromContext(ctx))
	assert.Empty(t, SubjectFromContext(ctx))
	assert.Same(t, slog.Default(), FromContext(ctx))

	l := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	assert.Same(t, l, FromContext(NewContext(ctx, l)))
}
