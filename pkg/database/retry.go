package database

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// Backoff spaces repeated connection attempts. Delay n (1-based) is
// Base<<(n-1), moved up or down by at most Jitter of itself.
type Backoff struct {
	Attempts int
	Base     time.Duration
	Jitter   float64
}

// DefaultBackoff makes three attempts, waiting about 1s then 2s.
var DefaultBackoff = Backoff{Attempts: 3, Base: time.Second, Jitter: 0.25}

func (b Backoff) delay(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	d := b.Base << (n - 1)
	if b.Jitter <= 0 {
		return d
	}
	spread := float64(d) * b.Jitter
	return d + time.Duration(spread*(2*rand.Float64()-1)) // #nosec G404 -- jitter only
}

// Retry calls fn until it succeeds, fails with an error transient rejects,
// or the attempts are used up. A nil transient retries every error.
func (b Backoff) Retry(ctx context.Context, logger *slog.Logger, what string, transient func(error) bool, fn func(context.Context) error) error {
	attempts := max(b.Attempts, 1)
	var err error
	for n := 1; ; n++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if transient != nil && !transient(err) {
			return err
		}
		if n == attempts {
			break
		}

		wait := b.delay(n)
		if logger != nil {
			logger.WarnContext(ctx, what+" failed, retrying",
				slog.Int("attempt", n),
				slog.Int("max_attempts", attempts),
				slog.Duration("backoff", wait),
				slog.String("error", err.Error()),
			)
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("%s: %w", what, ctx.Err())
		case <-t.C:
		}
	}
	return fmt.Errorf("%s after %d attempts: %w", what, attempts, err)
}

// Transient reports whether err looks like a lost or refused connection
// rather than a problem with the statement itself.
func Transient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08 is connection exception; 57P03 is cannot_connect_now.
		return strings.HasPrefix(pgErr.Code, "08") || pgErr.Code == "57P03"
	}
	var connErr *pgconn.ConnectError
	var netErr net.Error
	switch {
	case errors.As(err, &connErr), errors.As(err, &netErr):
		return true
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return true
	}
	return pgconn.SafeToRetry(err) || pgconn.Timeout(err)
}
