package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrNotASequence is returned when a persisted cart decodes to a JSON value
// other than an array.
var ErrNotASequence = errors.New("cart is not a sequence")

// LineItem is one product's presence in the cart. Name, Img, Price and
// Shipping are a snapshot taken when the product was first added and are never
// refreshed from the catalog afterwards.
type LineItem struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Img      string          `json:"img"`
	Price    decimal.Decimal `json:"price"`
	Shipping decimal.Decimal `json:"shipping"`
	Quantity int             `json:"quantity"`
}

// Snapshot holds the product attributes frozen into a new line item.
type Snapshot struct {
	Name     string
	Img      string
	Price    decimal.Decimal
	Shipping decimal.Decimal
}

// LineTotal returns price * quantity.
func (l LineItem) LineTotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// ShippingTotal returns shipping * quantity.
func (l LineItem) ShippingTotal() decimal.Decimal {
	return l.Shipping.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is an insertion-ordered collection of line items with at most one
// line per ID and no line with a non-positive quantity.
//
// Every mutating method returns a new Cart and leaves the receiver untouched.
type Cart struct {
	Items []LineItem
}

// NewCart returns an empty cart.
func NewCart() Cart {
	return Cart{Items: []LineItem{}}
}

// Len returns the number of distinct lines.
func (c Cart) Len() int {
	return len(c.Items)
}

// IsEmpty reports whether the cart has no lines.
func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// DistinctCount returns the number of distinct line items. This is the value
// shown by the header badge.
func (c Cart) DistinctCount() int {
	return len(c.Items)
}

// UnitCount returns the total number of units across all lines.
func (c Cart) UnitCount() int {
	var n int
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}

// Subtotal returns the sum of price * quantity over all lines.
func (c Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// ShippingTotal returns the sum of shipping * quantity over all lines.
func (c Cart) ShippingTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.ShippingTotal())
	}
	return total
}

// Total returns Subtotal + ShippingTotal.
func (c Cart) Total() decimal.Decimal {
	return c.Subtotal().Add(c.ShippingTotal())
}

// IndexOf returns the index of the line with the given ID, or -1.
func (c Cart) IndexOf(id string) int {
	for i := range c.Items {
		if c.Items[i].ID == id {
			return i
		}
	}
	return -1
}

// Find returns the line with the given ID.
func (c Cart) Find(id string) (LineItem, bool) {
	if i := c.IndexOf(id); i >= 0 {
		return c.Items[i], true
	}
	return LineItem{}, false
}

// MergeAdd increments the quantity of an existing line by delta, keeping the
// fields captured when that line was created, or appends a new line with
// quantity delta. A non-positive delta leaves the cart unchanged.
func (c Cart) MergeAdd(id string, snap Snapshot, delta int) Cart {
	out := c.clone()
	if delta <= 0 || id == "" {
		return out
	}

	if i := out.IndexOf(id); i >= 0 {
		out.Items[i].Quantity += delta
		return out
	}

	out.Items = append(out.Items, LineItem{
		ID:       id,
		Name:     snap.Name,
		Img:      snap.Img,
		Price:    snap.Price,
		Shipping: snap.Shipping,
		Quantity: delta,
	})
	return out
}

// SetQuantity replaces the quantity of the line with the given ID. A
// non-positive quantity removes the line. Unknown IDs are ignored.
func (c Cart) SetQuantity(id string, quantity int) Cart {
	if quantity <= 0 {
		return c.Remove(id)
	}

	out := c.clone()
	if i := out.IndexOf(id); i >= 0 {
		out.Items[i].Quantity = quantity
	}
	return out
}

// Remove deletes the line with the given ID if present.
func (c Cart) Remove(id string) Cart {
	out := Cart{Items: make([]LineItem, 0, len(c.Items))}
	for _, item := range c.Items {
		if item.ID != id {
			out.Items = append(out.Items, item)
		}
	}
	return out
}

// Normalize restores the cart invariants on data of unknown provenance:
// lines without an ID or with a non-positive quantity are dropped, and
// duplicate IDs are folded into the first occurrence.
func (c Cart) Normalize() Cart {
	out := Cart{Items: make([]LineItem, 0, len(c.Items))}
	for _, item := range c.Items {
		if item.ID == "" || item.Quantity <= 0 {
			continue
		}
		if i := out.IndexOf(item.ID); i >= 0 {
			out.Items[i].Quantity += item.Quantity
			continue
		}
		out.Items = append(out.Items, item)
	}
	return out
}

// Equal reports whether two carts hold the same lines in the same order.
func (c Cart) Equal(other Cart) bool {
	if len(c.Items) != len(other.Items) {
		return false
	}
	for i := range c.Items {
		a, b := c.Items[i], other.Items[i]
		if a.ID != b.ID || a.Name != b.Name || a.Img != b.Img || a.Quantity != b.Quantity ||
			!a.Price.Equal(b.Price) || !a.Shipping.Equal(b.Shipping) {
			return false
		}
	}
	return true
}

func (c Cart) clone() Cart {
	items := make([]LineItem, len(c.Items))
	copy(items, c.Items)
	return Cart{Items: items}
}

// wireLineItem is the persisted shape of a line item. Money is written as a
// bare JSON number rather than decimal's default quoted string.
type wireLineItem struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Img      string      `json:"img"`
	Price    json.Number `json:"price"`
	Shipping json.Number `json:"shipping"`
	Quantity int         `json:"quantity"`
}

// MarshalJSON encodes the cart as a bare JSON array of line items.
func (c Cart) MarshalJSON() ([]byte, error) {
	wire := make([]wireLineItem, len(c.Items))
	for i, item := range c.Items {
		wire[i] = wireLineItem{
			ID:       item.ID,
			Name:     item.Name,
			Img:      item.Img,
			Price:    json.Number(item.Price.String()),
			Shipping: json.Number(item.Shipping.String()),
			Quantity: item.Quantity,
		}
	}
	return json.Marshal(wire)
}

// UnmarshalJSON decodes a JSON array of line items. Values that are not an
// array yield ErrNotASequence. Individual elements that fail to decode are
// skipped, and the result is normalized.
func (c *Cart) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return ErrNotASequence
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return fmt.Errorf("decode cart array: %w", err)
	}

	items := make([]LineItem, 0, len(raw))
	for _, elem := range raw {
		var item LineItem
		if err := json.Unmarshal(elem, &item); err != nil {
			continue
		}
		items = append(items, item)
	}

	*c = Cart{Items: items}.Normalize()
	return nil
}
