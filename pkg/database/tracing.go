package database

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/Maharab24/Bottle-Collection/pkg/database"

type slowQueryLog struct {
	threshold time.Duration
	logger    *slog.Logger
}

var slowQueries atomic.Pointer[slowQueryLog]

// SetSlowQueryLogging makes TraceQuery warn about operations that take at
// least threshold. A zero threshold or nil logger turns it off.
func SetSlowQueryLogging(threshold time.Duration, logger *slog.Logger) {
	if threshold <= 0 || logger == nil {
		slowQueries.Store(nil)
		return
	}
	slowQueries.Store(&slowQueryLog{threshold: threshold, logger: logger})
}

// TraceQuery opens a client span around one storage operation on system
// ("postgresql", "redis", "file") and returns the func that closes it:
//
//	ctx, end := database.TraceQuery(ctx, "postgresql", "LoadSlot", loadSQL)
//	defer func() { end(err) }()
func TraceQuery(ctx context.Context, system, operation, statement string) (context.Context, func(error)) {
	attrs := []attribute.KeyValue{
		attribute.String("db.system", system),
		attribute.String("db.operation", operation),
		attribute.String("db.statement", statement),
	}
	ctx, span := otel.Tracer(tracerName).Start(ctx, "db."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
	start := time.Now()

	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		if s := slowQueries.Load(); s != nil {
			s.check(ctx, time.Since(start), attrs, err)
		}
	}
}

func (s *slowQueryLog) check(ctx context.Context, took time.Duration, attrs []attribute.KeyValue, err error) {
	if took < s.threshold {
		return
	}
	fields := make([]slog.Attr, 0, len(attrs)+2)
	for _, a := range attrs {
		fields = append(fields, slog.String(string(a.Key), a.Value.AsString()))
	}
	fields = append(fields, slog.Duration("duration", took))
	if err != nil {
		fields = append(fields, slog.String("error", err.Error()))
	}
	s.logger.LogAttrs(ctx, slog.LevelWarn, "slow query detected", fields...)
}
