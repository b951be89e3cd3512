package widget

import (
	"github.com/Maharab24/Bottle-Collection/internal/domain"
)

// Board holds one widget per catalog product, in catalog order.
type Board struct {
	widgets []*Widget
	byID    map[string]*Widget
}

// NewBoard creates a widget for every product.
func NewBoard(products []domain.Product, cart Adder, opts ...Option) *Board {
	b := &Board{
		widgets: make([]*Widget, 0, len(products)),
		byID:    make(map[string]*Widget, len(products)),
	}
	for _, p := range products {
		if _, dup := b.byID[p.ID]; dup {
			continue
		}
		w := New(p, cart, opts...)
		b.widgets = append(b.widgets, w)
		b.byID[p.ID] = w
	}
	return b
}

// Get returns the widget for a product id.
func (b *Board) Get(id string) (*Widget, bool) {
	w, ok := b.byID[id]
	return w, ok
}

// All returns the widgets in catalog order.
func (b *Board) All() []*Widget {
	out := make([]*Widget, len(b.widgets))
	copy(out, b.widgets)
	return out
}

// Len returns the number of widgets.
func (b *Board) Len() int { return len(b.widgets) }

// Close closes every widget.
func (b *Board) Close() {
	for _, w := range b.widgets {
		w.Close()
	}
}
