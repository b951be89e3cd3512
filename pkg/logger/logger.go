// Package logger builds the structured slog loggers used across the
// storefront and carries request-scoped values through context.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

// Format selects the slog handler.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Options configures Build.
type Options struct {
	Service string
	Level   string
	Format  Format
	Writer  io.Writer
}

// Build returns a logger tagged with the service name. Records logged with a
// context also pick up its correlation id, origin and span.
func Build(o Options) *slog.Logger {
	w := o.Writer
	if w == nil {
		w = os.Stdout
	}
	lvl := ParseLevel(o.Level)
	opts := &slog.HandlerOptions{Level: lvl}

	var h slog.Handler
	switch o.Format {
	case FormatText:
		h = slog.NewTextHandler(w, opts)
	default:
		opts.AddSource = lvl == slog.LevelDebug
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(ctxHandler{Handler: h}).With(slog.String("service", o.Service))
}

// New returns a JSON logger on stdout.
func New(service, level string) *slog.Logger {
	return Build(Options{Service: service, Level: level})
}

// NewWithWriter returns a JSON logger writing to w.
func NewWithWriter(service, level string, w io.Writer) *slog.Logger {
	return Build(Options{Service: service, Level: level, Writer: w})
}

// NewText returns a key=value logger for command line tools.
func NewText(service, level string, w io.Writer) *slog.Logger {
	return Build(Options{Service: service, Level: level, Format: FormatText, Writer: w})
}

// ParseLevel accepts debug, info, warn (or warning) and error in any case.
// Anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

type ctxKey int

const (
	correlationKey ctxKey = iota
	originKey
	loggerKey
)

func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey, id)
}

func CorrelationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey).(string)
	return id
}

// WithOrigin records the id of the browsing context serving the request.
func WithOrigin(ctx context.Context, origin string) context.Context {
	return context.WithValue(ctx, originKey, origin)
}

func OriginFromContext(ctx context.Context) string {
	id, _ := ctx.Value(originKey).(string)
	return id
}

// NewContext stores l in ctx for FromContext.
func NewContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext returns the logger stored by NewContext, or slog.Default.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

// WithContext binds ctx to l, so records logged without a context still
// carry the request fields held by ctx.
func WithContext(ctx context.Context, l *slog.Logger) *slog.Logger {
	h, ok := l.Handler().(ctxHandler)
	if !ok {
		h = ctxHandler{Handler: l.Handler()}
	}
	h.bound = ctx
	return slog.New(h)
}

// ctxHandler appends request fields found in the record's context, falling
// back to the bound context for each field that is missing.
type ctxHandler struct {
	slog.Handler
	bound context.Context
}

func (h ctxHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(requestAttrs(ctx, h.bound)...)
	return h.Handler.Handle(ctx, r)
}

func (h ctxHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return ctxHandler{Handler: h.Handler.WithAttrs(attrs), bound: h.bound}
}

func (h ctxHandler) WithGroup(name string) slog.Handler {
	return ctxHandler{Handler: h.Handler.WithGroup(name), bound: h.bound}
}

func requestAttrs(ctxs ...context.Context) []slog.Attr {
	var attrs []slog.Attr
	var corr, org, span bool
	for _, ctx := range ctxs {
		if ctx == nil {
			continue
		}
		if id := CorrelationIDFromContext(ctx); id != "" && !corr {
			attrs = append(attrs, slog.String("correlation_id", id))
			corr = true
		}
		if id := OriginFromContext(ctx); id != "" && !org {
			attrs = append(attrs, slog.String("origin", id))
			org = true
		}
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() && !span {
			attrs = append(attrs,
				slog.String("trace_id", sc.TraceID().String()),
				slog.String("span_id", sc.SpanID().String()),
			)
			span = true
		}
	}
	return attrs
}
