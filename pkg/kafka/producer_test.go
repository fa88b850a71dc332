package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func newTestProducer(w messageWriter, reg prometheus.Registerer) *Producer {
	var m *Metrics
	if reg != nil {
		m = NewMetrics(reg)
	}
	return &Producer{
		writer:  w,
		metrics: m,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

type brandPayload struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

func TestNewEvent(t *testing.T) {
	e, err := NewEvent("brand.created", "brand", "b-1", "brandcatalog", brandPayload{Name: "Acme", Slug: "acme"})
	require.NoError(t, err)

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, 1, e.Version)
	assert.JSONEq(t, `{"name":"Acme","slug":"acme"}`, string(e.Data))
	assert.Nil(t, e.Metadata)

	e.With("actor", "admin-1").With("empty", "")
	assert.Equal(t, map[string]string{"actor": "admin-1"}, e.Metadata)
}

func TestNewEvent_Unmarshalable(t *testing.T) {
	_, err := NewEvent("brand.created", "brand", "b-1", "brandcatalog", func() {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "brand.created")
}

func TestDecode(t *testing.T) {
	_, err := Decode([]byte("{"), nil)
	require.Error(t, err)

	_, err = Decode([]byte(`{"event_type":"brand.created","data":"oops"}`), &brandPayload{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "brand.created payload")
}

func TestPublish_WritesKeyedMessage(t *testing.T) {
	w := &fakeWriter{}
	reg := prometheus.NewRegistry()
	p := newTestProducer(w, reg)

	e, err := NewEvent("brand.updated", "brand", "b-42", "brandcatalog", brandPayload{Name: "Acme"})
	require.NoError(t, err)
	require.NoError(t, p.Publish(context.Background(), "brand.events", e))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "brand.events", msg.Topic)
	assert.Equal(t, []byte("b-42"), msg.Key)
	assert.Equal(t, "brand.updated", headerCarrier{headers: &msg.Headers}.Get("event_type"))

	var got brandPayload
	decoded, err := Decode(msg.Value, &got)
	require.NoError(t, err)
	assert.Equal(t, e.ID, decoded.ID)
	assert.Equal(t, "Acme", got.Name)

	assert.Equal(t, 1.0, testutil.ToFloat64(p.metrics.published.WithLabelValues("brand.events", "brand.updated")))
}

func TestPublish_Error(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	p := newTestProducer(w, prometheus.NewRegistry())

	e, _ := NewEvent("brand.deleted", "brand", "b-1", "brandcatalog", nil)
	err := p.Publish(context.Background(), "brand.events", e)

	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "leader not available"))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.metrics.failed.WithLabelValues("brand.events", "brand.deleted")))
}

func TestPublish_InjectsTraceContext(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	tp := sdktrace.NewTracerProvider()
	ctx, span := tp.Tracer("test").Start(context.Background(), "create brand")
	defer span.End()

	w := &fakeWriter{}
	p := newTestProducer(w, nil)
	e, _ := NewEvent("brand.created", "brand", "b-1", "brandcatalog", nil)
	require.NoError(t, p.Publish(ctx, "brand.events", e))

	tp2 := headerCarrier{headers: &w.msgs[0].Headers}.Get("traceparent")
	assert.Contains(t, tp2, span.SpanContext().TraceID().String())
}

func TestHeaderCarrier(t *testing.T) {
	headers := []kafka.Header{{Key: "a", Value: []byte("1")}}
	c := headerCarrier{headers: &headers}

	c.Set("a", "2")
	c.Set("b", "3")

	assert.Equal(t, "2", c.Get("a"))
	assert.Equal(t, "3", c.Get("b"))
	assert.Equal(t, "", c.Get("missing"))
	assert.ElementsMatch(t, []string{"a", "b"}, c.Keys())
}

func TestPing_NoBrokers(t *testing.T) {
	p := newTestProducer(&fakeWriter{}, nil)
	assert.EqualError(t, p.Ping(context.Background()), "kafka: no brokers configured")
}

func TestClose(t *testing.T) {
	w := &fakeWriter{}
	require.NoError(t, newTestProducer(w, nil).Close())
	assert.True(t, w.closed)
}
