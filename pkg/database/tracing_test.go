package database

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// captureSpans installs an in-memory tracer provider for the test.
func captureSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return rec
}

func onlySpan(t *testing.T, rec *tracetest.SpanRecorder) sdktrace.ReadOnlySpan {
	t.Helper()
	ended := rec.Ended()
	require.Len(t, ended, 1)
	return ended[0]
}

func attrValue(span sdktrace.ReadOnlySpan, key string) string {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value.AsString()
		}
	}
	return ""
}

func TestTraceQuery(t *testing.T) {
	tests := []struct {
		name       string
		system     string
		operation  string
		statement  string
		err        error
		wantStatus codes.Code
	}{
		{"postgres load", "postgresql", "LoadSlot", "SELECT value FROM cart_slots WHERE key = $1", nil, codes.Unset},
		{"redis save fails", "redis", "SaveSlot", "SET bottleCart", errors.New("connection refused"), codes.Error},
		{"file read", "file", "LoadSlot", "read", nil, codes.Unset},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := captureSpans(t)

			_, end := TraceQuery(context.Background(), tt.system, tt.operation, tt.statement)
			end(tt.err)

			span := onlySpan(t, rec)
			assert.Equal(t, "db."+tt.operation, span.Name())
			assert.Equal(t, trace.SpanKindClient, span.SpanKind())
			assert.Equal(t, tt.wantStatus, span.Status().Code)
			assert.Equal(t, tt.system, attrValue(span, "db.system"))
			assert.Equal(t, tt.operation, attrValue(span, "db.operation"))
			assert.Equal(t, tt.statement, attrValue(span, "db.statement"))
			if tt.err != nil {
				assert.NotEmpty(t, span.Events())
			}
		})
	}
}

func TestTraceQuery_NestsUnderCaller(t *testing.T) {
	rec := captureSpans(t)

	ctx, parent := otel.Tracer("test").Start(context.Background(), "PUT /api/v1/cart/items/{id}")
	inner, end := TraceQuery(ctx, "postgresql", "SaveSlot", "INSERT")
	end(nil)
	parent.End()

	ended := rec.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, parent.SpanContext().SpanID(), ended[0].Parent().SpanID())
	assert.Equal(t, ended[0].SpanContext().SpanID(), trace.SpanContextFromContext(inner).SpanID())
}

func TestSlowQueryLogging(t *testing.T) {
	captureSpans(t)
	t.Cleanup(func() { SetSlowQueryLogging(0, nil) })

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	t.Run("over threshold", func(t *testing.T) {
		buf.Reset()
		SetSlowQueryLogging(time.Nanosecond, logger)
		_, end := TraceQuery(context.Background(), "postgresql", "SaveSlot", "INSERT INTO cart_slots")
		time.Sleep(time.Millisecond)
		end(errors.New("unique constraint violation"))

		var line map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
		assert.Equal(t, "slow query detected", line["msg"])
		assert.Equal(t, "WARN", line["level"])
		assert.Equal(t, "SaveSlot", line["db.operation"])
		assert.Equal(t, "unique constraint violation", line["error"])
	})

	t.Run("under threshold", func(t *testing.T) {
		buf.Reset()
		SetSlowQueryLogging(time.Hour, logger)
		_, end := TraceQuery(context.Background(), "postgresql", "Ping", "SELECT 1")
		end(nil)
		assert.Zero(t, buf.Len())
	})

	t.Run("disabled", func(t *testing.T) {
		buf.Reset()
		SetSlowQueryLogging(time.Nanosecond, nil)
		assert.Nil(t, slowQueries.Load())
		_, end := TraceQuery(context.Background(), "redis", "LoadSlot", "GET bottleCart")
		assert.NotPanics(t, func() { end(nil) })
		assert.Zero(t, buf.Len())
	})
}
