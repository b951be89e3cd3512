// Package pgnotify announces cart changes with PostgreSQL LISTEN/NOTIFY.
package pgnotify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Maharab24/Bottle-Collection/internal/notify"
	"github.com/Maharab24/Bottle-Collection/pkg/database"
)

// Channel is the NOTIFY channel shared by every storefront process.
const Channel = "cart_changed"

const notifySQL = `SELECT pg_notify($1, $2)`

type acquireFunc func(ctx context.Context) (*pgxpool.Conn, error)

// Transport sends pg_notify after each write and holds one pooled
// connection in LISTEN mode while Listen runs.
type Transport struct {
	db      database.DBTX
	acquire acquireFunc
	key     string
	origin  string
	logger  *slog.Logger

	ready     chan struct{}
	readyOnce sync.Once
}

// New creates a transport on pool for slot key.
func New(pool *pgxpool.Pool, key, origin string, logger *slog.Logger) *Transport {
	return newTransport(pool, pool.Acquire, key, origin, logger)
}

func newTransport(db database.DBTX, acquire acquireFunc, key, origin string, logger *slog.Logger) *Transport {
	return &Transport{
		db:      db,
		acquire: acquire,
		key:     key,
		origin:  origin,
		logger:  logger.With(slog.String("transport", "postgres"), slog.String("channel", Channel)),
		ready:   make(chan struct{}),
	}
}

// Ready is closed once LISTEN has been issued.
func (t *Transport) Ready() <-chan struct{} { return t.ready }

func (t *Transport) Announce(ctx context.Context, c notify.Change) (err error) {
	payload, err := notify.Encode(t.key, c)
	if err != nil {
		return fmt.Errorf("encode change: %w", err)
	}

	ctx, end := database.TraceQuery(ctx, "postgresql", "NotifyCartChanged", notifySQL)
	defer func() { end(err) }()

	if _, err = t.db.Exec(ctx, notifySQL, Channel, string(payload)); err != nil {
		return fmt.Errorf("notify cart change: %w", err)
	}
	return nil
}

func (t *Transport) Listen(ctx context.Context, fn notify.Listener) error {
	conn, err := t.acquire(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("acquire listen connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+Channel); err != nil {
		return fmt.Errorf("listen %s: %w", Channel, err)
	}
	t.readyOnce.Do(func() { close(t.ready) })
	t.logger.Info("listening for cart changes")

	deliver := notify.FromOthers(t.origin, fn)
	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("wait for notification: %w", err)
		}
		t.handle(n.Payload, deliver)
	}
}

func (t *Transport) handle(payload string, deliver notify.Listener) {
	c, key, err := notify.Decode([]byte(payload))
	if err != nil {
		t.logger.Warn("ignoring malformed cart change", slog.String("error", err.Error()))
		return
	}
	if key != t.key {
		return
	}
	deliver(c)
}

// Close is a no-op; the pool is owned by the slot.
func (t *Transport) Close() error { return nil }
