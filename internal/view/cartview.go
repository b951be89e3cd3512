package view

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/Maharab24/Bottle-Collection/internal/domain"
	"github.com/Maharab24/Bottle-Collection/internal/notify"
	apperrors "github.com/Maharab24/Bottle-Collection/pkg/errors"
)

// Line is a cart line with its computed total.
type Line struct {
	domain.LineItem
	LineTotal decimal.Decimal
}

// Summary is what the cart page renders.
type Summary struct {
	Lines         []Line
	Subtotal      decimal.Decimal
	ShippingTotal decimal.Decimal
	Total         decimal.Decimal
	Empty         bool
}

// Summarize computes the page model for cart.
func Summarize(cart domain.Cart) Summary {
	lines := make([]Line, 0, len(cart.Items))
	for _, item := range cart.Items {
		lines = append(lines, Line{LineItem: item, LineTotal: item.LineTotal()})
	}
	return Summary{
		Lines:         lines,
		Subtotal:      cart.Subtotal(),
		ShippingTotal: cart.ShippingTotal(),
		Total:         cart.Total(),
		Empty:         cart.IsEmpty(),
	}
}

// CartView mirrors the persisted cart for the cart page.
type CartView struct {
	store  CartStore
	cancel func()

	mu   sync.RWMutex
	cart domain.Cart
}

// NewCartView loads the cart and subscribes to change notices.
func NewCartView(ctx context.Context, store CartStore) *CartView {
	v := &CartView{store: store, cart: store.Read(ctx)}
	v.cancel = store.Subscribe(func(notify.Change) {
		v.reload(context.Background())
	})
	return v
}

func (v *CartView) reload(ctx context.Context) {
	cart := v.store.Read(ctx)
	v.mu.Lock()
	v.cart = cart
	v.mu.Unlock()
}

// Snapshot returns the current page model.
func (v *CartView) Snapshot() Summary {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return Summarize(v.cart)
}

func (v *CartView) quantity(id string) (int, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	line, ok := v.cart.Find(id)
	if !ok {
		return 0, apperrors.NotFound("cart line", id)
	}
	return line.Quantity, nil
}

// Increment adds one unit to the line for id.
func (v *CartView) Increment(ctx context.Context, id string) error {
	q, err := v.quantity(id)
	if err != nil {
		return err
	}
	_, err = v.store.SetQuantity(ctx, id, q+1)
	return err
}

// Decrement removes one unit from the line for id; the line disappears when
// it reaches zero.
func (v *CartView) Decrement(ctx context.Context, id string) error {
	q, err := v.quantity(id)
	if err != nil {
		return err
	}
	_, err = v.store.SetQuantity(ctx, id, q-1)
	return err
}

// Remove deletes the line for id.
func (v *CartView) Remove(ctx context.Context, id string) error {
	_, err := v.store.Remove(ctx, id)
	return err
}

// Close unsubscribes the view.
func (v *CartView) Close() {
	v.cancel()
}
