package view

import (
	"context"
	"sync"

	"github.com/Maharab24/Bottle-Collection/internal/notify"
)

// HeaderBadge shows the number of distinct cart lines.
type HeaderBadge struct {
	store  CartStore
	cancel func()

	mu       sync.Mutex
	count    int
	watchers map[int]func(int)
	nextID   int
}

// NewHeaderBadge reads the current count and subscribes to change notices.
func NewHeaderBadge(ctx context.Context, store CartStore) *HeaderBadge {
	b := &HeaderBadge{
		store:    store,
		count:    store.Read(ctx).DistinctCount(),
		watchers: make(map[int]func(int)),
	}
	b.cancel = store.Subscribe(func(notify.Change) {
		b.reload(context.Background())
	})
	return b
}

func (b *HeaderBadge) reload(ctx context.Context) {
	n := b.store.Read(ctx).DistinctCount()

	b.mu.Lock()
	b.count = n
	watchers := make([]func(int), 0, len(b.watchers))
	for _, fn := range b.watchers {
		watchers = append(watchers, fn)
	}
	b.mu.Unlock()

	for _, fn := range watchers {
		fn(n)
	}
}

// Count returns the number of distinct lines.
func (b *HeaderBadge) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Watch calls fn with the new count after every change notice. fn runs on
// the notifying goroutine and must not block.
func (b *HeaderBadge) Watch(fn func(count int)) (cancel func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.watchers[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.watchers, id)
			b.mu.Unlock()
		})
	}
}

// Close unsubscribes the badge and drops all watchers.
func (b *HeaderBadge) Close() {
	b.cancel()
	b.mu.Lock()
	clear(b.watchers)
	b.mu.Unlock()
}
