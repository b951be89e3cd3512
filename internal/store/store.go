// Package store is the single point of access to the persisted cart. Every
// mutation is a read-modify-write of the whole slot followed by a change
// notice to local subscribers and, through the transport, to other
// processes.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Maharab24/Bottle-Collection/internal/domain"
	"github.com/Maharab24/Bottle-Collection/internal/notify"
	"github.com/Maharab24/Bottle-Collection/internal/repository"
	apperrors "github.com/Maharab24/Bottle-Collection/pkg/errors"
	"github.com/Maharab24/Bottle-Collection/pkg/tracing"
)

const tracerName = "github.com/Maharab24/Bottle-Collection/internal/store"

// Store reads and writes the cart slot.
//
// Mutations within one process are serialized. Across processes there is no
// locking: the last write wins.
type Store struct {
	slot      repository.Slot
	bus       *notify.Bus
	transport notify.Transport
	origin    string
	logger    *slog.Logger
	metrics   *Metrics
	now       func() time.Time

	mu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithTransport sets the cross-process transport. Without one, changes are
// only delivered within this process.
func WithTransport(t notify.Transport) Option {
	return func(s *Store) { s.transport = t }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// New creates a store over slot. origin identifies this process in change
// notices.
func New(slot repository.Slot, bus *notify.Bus, origin string, logger *slog.Logger, opts ...Option) *Store {
	s := &Store{
		slot:      slot,
		bus:       bus,
		transport: notify.Nop{},
		origin:    origin,
		logger:    logger.With(slog.String("slot", slot.Key())),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Origin returns the identifier this store stamps on its change notices.
func (s *Store) Origin() string { return s.origin }

// Read returns the persisted cart. It never fails: an absent, unreadable or
// malformed slot yields an empty cart and the problem is logged.
func (s *Store) Read(ctx context.Context) domain.Cart {
	cart := s.load(ctx)
	s.metrics.lines(cart.DistinctCount())
	return cart
}

func (s *Store) load(ctx context.Context) domain.Cart {
	data, err := s.slot.Load(ctx)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return domain.NewCart()
		}
		s.metrics.slotError("load")
		s.logger.ErrorContext(ctx, "failed to load cart slot, treating as empty",
			slog.String("error", err.Error()),
		)
		return domain.NewCart()
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		s.metrics.slotError("decode")
		s.logger.WarnContext(ctx, "malformed cart slot, treating as empty",
			slog.String("error", err.Error()),
			slog.Int("bytes", len(data)),
		)
		return domain.NewCart()
	}
	return cart
}

// Write replaces the persisted cart with cart and notifies subscribers.
func (s *Store) Write(ctx context.Context, cart domain.Cart) error {
	s.mu.Lock()
	err := s.persist(ctx, cart.Normalize())
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.metrics.mutation("write")
	s.notify(ctx)
	return nil
}

// MergeAdd adds delta units of id. An existing line keeps its first
// snapshot. A non-positive delta leaves the cart untouched and sends no
// notice.
func (s *Store) MergeAdd(ctx context.Context, id string, snap domain.Snapshot, delta int) (domain.Cart, error) {
	if delta <= 0 || id == "" {
		return s.Read(ctx), nil
	}
	return s.mutate(ctx, "merge_add", func(c domain.Cart) domain.Cart {
		return c.MergeAdd(id, snap, delta)
	})
}

// SetQuantity replaces the quantity of id; q <= 0 removes the line. An
// unknown id leaves the lines as they are but the cart is still rewritten
// and announced.
func (s *Store) SetQuantity(ctx context.Context, id string, q int) (domain.Cart, error) {
	return s.mutate(ctx, "set_quantity", func(c domain.Cart) domain.Cart {
		return c.SetQuantity(id, q)
	})
}

// Remove deletes the line for id if present. Like SetQuantity it always
// rewrites and announces.
func (s *Store) Remove(ctx context.Context, id string) (domain.Cart, error) {
	return s.mutate(ctx, "remove", func(c domain.Cart) domain.Cart {
		return c.Remove(id)
	})
}

// mutate applies fn to the current cart under the store lock, persists the
// result and announces it.
func (s *Store) mutate(ctx context.Context, op string, fn func(domain.Cart) domain.Cart) (domain.Cart, error) {
	ctx, span := tracing.Tracer(tracerName).Start(ctx, "cart."+op)
	defer span.End()

	s.mu.Lock()
	cur := s.load(ctx)
	next := fn(cur)
	err := s.persist(ctx, next)
	s.mu.Unlock()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return cur, err
	}
	span.SetAttributes(attribute.Int("cart.lines", next.DistinctCount()))

	s.metrics.mutation(op)
	s.metrics.lines(next.DistinctCount())
	s.logger.DebugContext(ctx, "cart updated",
		slog.String("op", op),
		slog.Int("lines", next.DistinctCount()),
		slog.Int("units", next.UnitCount()),
	)
	s.notify(ctx)
	return next, nil
}

func (s *Store) persist(ctx context.Context, cart domain.Cart) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := s.slot.Save(ctx, data); err != nil {
		s.metrics.slotError("save")
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

// notify publishes a local change and then announces it to other
// processes. Announce failures are logged; the write itself succeeded.
func (s *Store) notify(ctx context.Context) {
	c := notify.Change{Origin: s.origin, Source: notify.SourceLocal, At: s.now()}

	s.metrics.notification(notify.SourceLocal)
	s.bus.Publish(c)

	if err := s.transport.Announce(ctx, c); err != nil {
		s.logger.WarnContext(ctx, "failed to announce cart change",
			slog.String("error", err.Error()),
		)
	}
}

// Subscribe registers fn for cart changes from this process and from
// others. The returned func cancels the subscription.
func (s *Store) Subscribe(fn notify.Listener) (cancel func()) {
	return s.bus.Subscribe(fn)
}

// Run forwards remote changes from the transport to subscribers until ctx
// is cancelled.
func (s *Store) Run(ctx context.Context) error {
	return s.transport.Listen(ctx, func(c notify.Change) {
		c.Source = notify.SourceRemote
		s.metrics.notification(notify.SourceRemote)
		s.logger.DebugContext(ctx, "remote cart change", slog.String("origin", c.Origin))
		s.bus.Publish(c)
	})
}

// Ping checks the slot backend.
func (s *Store) Ping(ctx context.Context) error {
	return s.slot.Ping(ctx)
}

// Close releases the transport and the slot.
func (s *Store) Close() error {
	return errors.Join(s.transport.Close(), s.slot.Close())
}
