package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// lowStockThreshold is the stock level at or below which a product is shown
// with a remaining-count warning instead of "In Stock".
const lowStockThreshold = 5

// Product is a read-only catalog entry.
type Product struct {
	ID           string          `json:"id" validate:"required"`
	Name         string          `json:"name" validate:"required,max=500"`
	Category     string          `json:"category"`
	Seller       string          `json:"seller"`
	Price        decimal.Decimal `json:"price" validate:"gte=0"`
	Shipping     decimal.Decimal `json:"shipping" validate:"gte=0"`
	Stock        int             `json:"stock" validate:"gte=0"`
	Ratings      float64         `json:"ratings" validate:"gte=0,lte=5"`
	RatingsCount int             `json:"ratingsCount" validate:"gte=0"`
	Img          string          `json:"img"`
}

// Snapshot returns the attributes copied into a cart line when this product
// is added.
func (p Product) Snapshot() Snapshot {
	return Snapshot{
		Name:     p.Name,
		Img:      p.Img,
		Price:    p.Price,
		Shipping: p.Shipping,
	}
}

// InStock reports whether the product has more than a handful of units left.
func (p Product) InStock() bool {
	return p.Stock > lowStockThreshold
}

// StockLabel returns the availability text shown next to the product.
func (p Product) StockLabel() string {
	if p.InStock() {
		return "In Stock"
	}
	return fmt.Sprintf("Only %d left", p.Stock)
}

// CheckMoney returns an error if price or shipping is negative.
func (p Product) CheckMoney() error {
	if p.Price.IsNegative() {
		return fmt.Errorf("product %s: price must not be negative", p.ID)
	}
	if p.Shipping.IsNegative() {
		return fmt.Errorf("product %s: shipping must not be negative", p.ID)
	}
	return nil
}

// FormatMoney renders an amount in the storefront currency with two decimals.
func FormatMoney(amount decimal.Decimal) string {
	return "$" + amount.StringFixed(2)
}
