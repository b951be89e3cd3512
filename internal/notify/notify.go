// Package notify carries "cart changed" notices between the components of
// one process and across processes sharing the same cart slot.
package notify

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Source tells a listener which path a change arrived on.
type Source int

const (
	// SourceLocal is a write made by this process.
	SourceLocal Source = iota
	// SourceRemote is a write made by another process.
	SourceRemote
)

func (s Source) String() string {
	switch s {
	case SourceLocal:
		return "local"
	case SourceRemote:
		return "remote"
	default:
		return fmt.Sprintf("source(%d)", int(s))
	}
}

// Change is a payload-free notice that the cart slot was rewritten.
// Listeners re-read the slot to learn the new state.
type Change struct {
	Origin string
	Source Source
	At     time.Time
}

// Listener receives changes.
type Listener func(Change)

type subscription struct {
	id int
	fn Listener
}

// Bus fans a change out to every subscriber, synchronously and in
// subscription order, on the publisher's goroutine.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   []subscription
	logger *slog.Logger
}

// NewBus creates an empty bus.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{logger: logger}
}

// Subscribe registers fn and returns a cancel func. Cancel is idempotent.
func (b *Bus) Subscribe(fn Listener) (cancel func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs = append(b.subs, subscription{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.unsubscribe(id) })
	}
}

func (b *Bus) unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish delivers c to all current subscribers. A panicking listener is
// recovered and logged; the remaining listeners still run.
func (b *Bus) Publish(c Change) {
	b.mu.RLock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, s := range subs {
		b.deliver(s, c)
	}
}

func (b *Bus) deliver(s subscription, c Change) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("cart change listener panicked",
				slog.Int("subscription", s.id),
				slog.String("source", c.Source.String()),
				slog.Any("panic", r),
			)
		}
	}()
	s.fn(c)
}

// Len returns the number of active subscriptions.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
