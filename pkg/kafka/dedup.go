package kafka

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Deduplicator remembers event ids that have already been handled.
type Deduplicator interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

type mark struct {
	id string
	at time.Time
}

// WindowDedup is an in-memory Deduplicator that forgets ids once they are
// older than its window. Ids are kept in mark order, so expiry only ever
// trims the front of the queue.
type WindowDedup struct {
	window time.Duration
	now    func() time.Time

	mu    sync.Mutex
	seen  map[string]time.Time
	queue []mark
}

// NewWindowDedup returns a deduplicator remembering ids for window.
func NewWindowDedup(window time.Duration) *WindowDedup {
	return &WindowDedup{
		window: window,
		now:    time.Now,
		seen:   make(map[string]time.Time),
	}
}

func (d *WindowDedup) Seen(_ context.Context, eventID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.expire(d.now())
	_, ok := d.seen[eventID]
	return ok, nil
}

func (d *WindowDedup) Mark(_ context.Context, eventID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	d.expire(now)
	if _, ok := d.seen[eventID]; ok {
		return nil
	}
	d.seen[eventID] = now
	d.queue = append(d.queue, mark{id: eventID, at: now})
	return nil
}

// Len reports how many ids are currently remembered.
func (d *WindowDedup) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.expire(d.now())
	return len(d.seen)
}

// expire drops ids marked more than window ago. Callers hold d.mu.
func (d *WindowDedup) expire(now time.Time) {
	cut := 0
	for cut < len(d.queue) && now.Sub(d.queue[cut].at) > d.window {
		delete(d.seen, d.queue[cut].id)
		cut++
	}
	if cut == 0 {
		return
	}
	d.queue = append(d.queue[:0], d.queue[cut:]...)
}

// Dedupe wraps inner so an event whose id was already handled is dropped.
// An id is marked only once inner returns nil. When the deduplicator cannot
// answer, the event is handled anyway.
func Dedupe(d Deduplicator, inner Handler, logger *slog.Logger) Handler {
	return func(ctx context.Context, event *Event) error {
		if event.EventID == "" {
			return inner(ctx, event)
		}

		dup, err := d.Seen(ctx, event.EventID)
		switch {
		case err != nil:
			logger.WarnContext(ctx, "dedup lookup failed",
				slog.String("event_id", event.EventID),
				slog.String("error", err.Error()),
			)
		case dup:
			logger.DebugContext(ctx, "dropping repeated event",
				slog.String("event_id", event.EventID),
				slog.String("event_type", event.EventType),
			)
			return nil
		}

		if err := inner(ctx, event); err != nil {
			return err
		}
		if err := d.Mark(ctx, event.EventID); err != nil {
			logger.WarnContext(ctx, "dedup mark failed",
				slog.String("event_id", event.EventID),
				slog.String("error", err.Error()),
			)
		}
		return nil
	}
}
