// Package widget holds the per-product quantity selector that feeds the cart.
package widget

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Maharab24/Bottle-Collection/internal/domain"
)

// DefaultAckDuration is how long the "added" acknowledgment stays visible.
const DefaultAckDuration = 3 * time.Second

// Labels shown on the add button and after a successful add.
const (
	AddLabel     = "Add to Cart"
	SelectLabel  = "Select Quantity"
	AddedMessage = "Product added to your cart successfully!"
)

var (
	// ErrNothingSelected is returned by AddToCart when the quantity is zero.
	ErrNothingSelected = errors.New("no quantity selected")
	// ErrClosed is returned by AddToCart after Close.
	ErrClosed = errors.New("widget closed")
)

// Adder merges units of a product into the cart.
type Adder interface {
	MergeAdd(ctx context.Context, id string, snap domain.Snapshot, delta int) (domain.Cart, error)
}

// Option configures a Widget.
type Option func(*Widget)

// WithAckDuration overrides DefaultAckDuration. Non-positive values are
// ignored.
func WithAckDuration(d time.Duration) Option {
	return func(w *Widget) {
		if d > 0 {
			w.ackDuration = d
		}
	}
}

// Widget tracks the quantity a shopper has selected for one product. The
// selected quantity always stays within [0, product.Stock].
type Widget struct {
	product     domain.Product
	cart        Adder
	ackDuration time.Duration

	mu       sync.Mutex
	quantity int
	acked    bool
	ackTimer *time.Timer
	ackGen   uint64
	closed   bool
}

// New creates a widget for product backed by cart.
func New(product domain.Product, cart Adder, opts ...Option) *Widget {
	w := &Widget{
		product:     product,
		cart:        cart,
		ackDuration: DefaultAckDuration,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Product returns the product this widget sells.
func (w *Widget) Product() domain.Product { return w.product }

// Quantity returns the currently selected quantity.
func (w *Widget) Quantity() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.quantity
}

// Increment raises the quantity by one unless it is already at stock. It
// reports whether the quantity changed.
func (w *Widget) Increment() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || w.quantity >= w.product.Stock {
		return false
	}
	w.quantity++
	return true
}

// Decrement lowers the quantity by one unless it is already zero. It reports
// whether the quantity changed.
func (w *Widget) Decrement() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || w.quantity <= 0 {
		return false
	}
	w.quantity--
	return true
}

// CanIncrement reports whether the increment control is enabled.
func (w *Widget) CanIncrement() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.closed && w.quantity < w.product.Stock
}

// CanDecrement reports whether the decrement control is enabled.
func (w *Widget) CanDecrement() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.closed && w.quantity > 0
}

// CanAdd reports whether the add control is enabled.
func (w *Widget) CanAdd() bool {
	return w.CanDecrement()
}

// ButtonLabel returns the add button text for the current quantity.
func (w *Widget) ButtonLabel() string {
	if w.CanAdd() {
		return AddLabel
	}
	return SelectLabel
}

// AddToCart merges the selected quantity into the cart, resets the selection
// to zero and shows the acknowledgment. The combined cart quantity is not
// checked against stock. The store is called without w.mu held, so cart
// listeners may read the widget; a failed merge puts the selection back.
func (w *Widget) AddToCart(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	qty := w.quantity
	if qty <= 0 {
		w.mu.Unlock()
		return ErrNothingSelected
	}
	w.quantity = 0
	w.mu.Unlock()

	_, err := w.cart.MergeAdd(ctx, w.product.ID, w.product.Snapshot(), qty)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		if !w.closed {
			w.quantity = min(w.quantity+qty, w.product.Stock)
		}
		return fmt.Errorf("add %s to cart: %w", w.product.ID, err)
	}
	if !w.closed {
		w.showAck()
	}
	return nil
}

// showAck raises the acknowledgment and (re)starts its timer. Caller holds
// w.mu.
func (w *Widget) showAck() {
	if w.ackTimer != nil {
		w.ackTimer.Stop()
	}
	w.acked = true
	w.ackGen++
	gen := w.ackGen
	w.ackTimer = time.AfterFunc(w.ackDuration, func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		// A newer add restarted the timer.
		if gen == w.ackGen {
			w.acked = false
			w.ackTimer = nil
		}
	})
}

// Acknowledged reports whether the "added" message is currently shown.
func (w *Widget) Acknowledged() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.acked
}

// Close cancels any pending acknowledgment. Later calls are no-ops.
func (w *Widget) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	w.acked = false
	w.ackGen++
	if w.ackTimer != nil {
		w.ackTimer.Stop()
		w.ackTimer = nil
	}
}
