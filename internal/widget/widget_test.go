package widget

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Maharab24/Bottle-Collection/internal/domain"
	"github.com/Maharab24/Bottle-Collection/internal/notify"
	"github.com/Maharab24/Bottle-Collection/internal/repository/memory"
	"github.com/Maharab24/Bottle-Collection/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newStore() *store.Store {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return store.New(memory.NewSlot("bottleCart"), notify.NewBus(logger), "ctx-test", logger)
}

func product(id string, stock int) domain.Product {
	return domain.Product{
		ID:       id,
		Name:     "Bottle " + id,
		Img:      id + ".png",
		Price:    decimal.RequireFromString("10.00"),
		Shipping: decimal.RequireFromString("2.00"),
		Stock:    stock,
	}
}

type failingAdder struct{ err error }

func (f failingAdder) MergeAdd(context.Context, string, domain.Snapshot, int) (domain.Cart, error) {
	return domain.NewCart(), f.err
}

func TestWidget_QuantityBoundedByStock(t *testing.T) {
	w := New(product("p1", 2), newStore())
	defer w.Close()

	assert.False(t, w.CanDecrement())
	assert.False(t, w.Decrement())
	assert.Equal(t, 0, w.Quantity())

	assert.True(t, w.Increment())
	assert.True(t, w.Increment())
	assert.False(t, w.CanIncrement())
	assert.False(t, w.Increment())
	assert.Equal(t, 2, w.Quantity())

	assert.True(t, w.Decrement())
	assert.Equal(t, 1, w.Quantity())
}

func TestWidget_OutOfStockCannotSelect(t *testing.T) {
	w := New(product("p1", 0), newStore())
	defer w.Close()

	assert.False(t, w.CanIncrement())
	assert.False(t, w.Increment())
	assert.False(t, w.CanAdd())
	assert.Equal(t, SelectLabel, w.ButtonLabel())
}

func TestWidget_AddToCartNothingSelected(t *testing.T) {
	s := newStore()
	w := New(product("p1", 5), s)
	defer w.Close()

	err := w.AddToCart(context.Background())
	require.ErrorIs(t, err, ErrNothingSelected)
	assert.True(t, s.Read(context.Background()).IsEmpty())
	assert.False(t, w.Acknowledged())
}

func TestWidget_AddToCartMergesAndResets(t *testing.T) {
	ctx := context.Background()
	s := newStore()
	w := New(product("p1", 5), s)
	defer w.Close()

	for i := 0; i < 3; i++ {
		w.Increment()
	}
	assert.Equal(t, AddLabel, w.ButtonLabel())
	require.NoError(t, w.AddToCart(ctx))

	assert.Equal(t, 0, w.Quantity())
	assert.True(t, w.Acknowledged())

	cart := s.Read(ctx)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 3, cart.Items[0].Quantity)
	assert.Equal(t, "30.00", cart.Subtotal().StringFixed(2))
	assert.Equal(t, "6.00", cart.ShippingTotal().StringFixed(2))
	assert.Equal(t, "36.00", cart.Total().StringFixed(2))
}

func TestWidget_CartMayExceedStock(t *testing.T) {
	ctx := context.Background()
	s := newStore()
	w := New(product("p1", 2), s)
	defer w.Close()

	for round := 0; round < 2; round++ {
		w.Increment()
		w.Increment()
		require.NoError(t, w.AddToCart(ctx))
	}

	line, ok := s.Read(ctx).Find("p1")
	require.True(t, ok)
	assert.Equal(t, 4, line.Quantity, "merge is not capped by stock")
}

func TestWidget_TwoWidgetsTwoLines(t *testing.T) {
	ctx := context.Background()
	s := newStore()
	board := NewBoard([]domain.Product{product("p1", 5), product("p2", 5)}, s)
	defer board.Close()

	for _, w := range board.All() {
		w.Increment()
		require.NoError(t, w.AddToCart(ctx))
	}

	assert.Equal(t, 2, s.Read(ctx).DistinctCount())
}

func TestWidget_AckClearsAfterDuration(t *testing.T) {
	w := New(product("p1", 5), newStore(), WithAckDuration(20*time.Millisecond))
	defer w.Close()

	w.Increment()
	require.NoError(t, w.AddToCart(context.Background()))
	assert.True(t, w.Acknowledged())

	assert.Eventually(t, func() bool { return !w.Acknowledged() }, time.Second, 5*time.Millisecond)
}

func TestWidget_ReAddRestartsAck(t *testing.T) {
	ctx := context.Background()
	w := New(product("p1", 5), newStore(), WithAckDuration(150*time.Millisecond))
	defer w.Close()

	w.Increment()
	require.NoError(t, w.AddToCart(ctx))
	time.Sleep(100 * time.Millisecond)

	w.Increment()
	require.NoError(t, w.AddToCart(ctx))
	time.Sleep(80 * time.Millisecond)

	// 180ms after the first add, 80ms after the second.
	assert.True(t, w.Acknowledged())
	assert.Eventually(t, func() bool { return !w.Acknowledged() }, time.Second, 5*time.Millisecond)
}

func TestWidget_StoreFailureKeepsSelection(t *testing.T) {
	boom := errors.New("disk full")
	w := New(product("p1", 5), failingAdder{err: boom})
	defer w.Close()

	w.Increment()
	err := w.AddToCart(context.Background())

	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, w.Quantity())
	assert.False(t, w.Acknowledged())
}

func TestWidget_ListenerMayReadWidgetDuringAdd(t *testing.T) {
	st := newStore()
	w := New(product("p1", 5), st, WithAckDuration(time.Hour))
	defer w.Close()

	seen := make(chan int, 1)
	cancel := st.Subscribe(func(notify.Change) {
		seen <- w.Quantity()
	})
	defer cancel()

	w.Increment()
	w.Increment()
	done := make(chan error, 1)
	go func() { done <- w.AddToCart(context.Background()) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("AddToCart blocked on a listener reading the widget")
	}
	assert.Equal(t, 0, <-seen)
	assert.True(t, w.Acknowledged())
	line, ok := st.Read(context.Background()).Find("p1")
	require.True(t, ok)
	assert.Equal(t, 2, line.Quantity)
}

func TestWidget_Close(t *testing.T) {
	w := New(product("p1", 5), newStore(), WithAckDuration(time.Hour))

	w.Increment()
	require.NoError(t, w.AddToCart(context.Background()))
	w.Close()
	w.Close()

	assert.False(t, w.Acknowledged())
	assert.False(t, w.Increment())
	assert.ErrorIs(t, w.AddToCart(context.Background()), ErrClosed)
}

func TestBoard_OrderAndLookup(t *testing.T) {
	products := []domain.Product{product("p2", 1), product("p1", 1), product("p2", 9)}
	board := NewBoard(products, newStore())
	defer board.Close()

	require.Equal(t, 2, board.Len())
	all := board.All()
	assert.Equal(t, "p2", all[0].Product().ID)
	assert.Equal(t, 1, all[0].Product().Stock)
	assert.Equal(t, "p1", all[1].Product().ID)

	w, ok := board.Get("p1")
	require.True(t, ok)
	assert.Equal(t, "p1", w.Product().ID)

	_, ok = board.Get("missing")
	assert.False(t, ok)
}
