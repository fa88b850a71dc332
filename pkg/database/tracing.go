package database

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/utafrali/brandcatalog/pkg/database"

// QueryTracer is a pgx.QueryTracer that opens an OpenTelemetry client span per
// statement and logs statements slower than its threshold.
type QueryTracer struct {
	slow   time.Duration
	logger *slog.Logger
}

var _ pgx.QueryTracer = (*QueryTracer)(nil)

// NewQueryTracer creates a tracer. A zero threshold or nil logger disables
// slow query logging.
func NewQueryTracer(slow time.Duration, logger *slog.Logger) *QueryTracer {
	return &QueryTracer{slow: slow, logger: logger}
}

type queryStartKey struct{}

type queryStart struct {
	sql   string
	start time.Time
}

// TraceQueryStart implements pgx.QueryTracer.
func (t *QueryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	op := operation(data.SQL)
	ctx, _ = otel.Tracer(tracerName).Start(ctx, "db."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", op),
			attribute.String("db.statement", data.SQL),
		),
	)
	return context.WithValue(ctx, queryStartKey{}, queryStart{sql: data.SQL, start: time.Now()})
}

// TraceQueryEnd implements pgx.QueryTracer.
func (t *QueryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	span := trace.SpanFromContext(ctx)
	if data.Err != nil {
		span.RecordError(data.Err)
		span.SetStatus(codes.Error, data.Err.Error())
	} else {
		span.SetAttributes(attribute.Int64("db.rows_affected", data.CommandTag.RowsAffected()))
	}
	span.End()

	qs, ok := ctx.Value(queryStartKey{}).(queryStart)
	if !ok || t.slow <= 0 || t.logger == nil {
		return
	}
	if elapsed := time.Since(qs.start); elapsed >= t.slow {
		attrs := []any{
			slog.String("statement", qs.sql),
			slog.Duration("duration", elapsed),
		}
		if data.Err != nil {
			attrs = append(attrs, slog.String("error", data.Err.Error()))
		}
		t.logger.WarnContext(ctx, "slow query", attrs...)
	}
}

// operation returns the leading SQL keyword, e.g. "SELECT".
func operation(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "query"
	}
	return strings.ToUpper(fields[0])
}
