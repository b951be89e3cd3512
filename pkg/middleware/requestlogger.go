package middleware

import (
	"log/slog"
	"net/http"

	"github.com/Maharab24/Bottle-Collection/pkg/logger"
)

// RequestLogger puts a logger bound to the request context into that
// context, so handlers calling logger.FromContext get the correlation id,
// the span and origin (the browsing context this process represents).
// Mount it after RequestLogging and Tracing.
func RequestLogger(base *slog.Logger, origin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if origin != "" {
				ctx = logger.WithOrigin(ctx, origin)
			}
			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
