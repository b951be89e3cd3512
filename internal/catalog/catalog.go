// Package catalog loads the read-only product listing shown by the storefront.
package catalog

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Maharab24/Bottle-Collection/internal/domain"
	"github.com/Maharab24/Bottle-Collection/pkg/slug"
	"github.com/Maharab24/Bottle-Collection/pkg/validator"
)

//go:embed bottles.json
var defaultCatalog []byte

// Source produces the raw catalog document, a JSON array of product records.
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
	String() string
}

// Catalog is an immutable, ordered set of products indexed by id.
type Catalog struct {
	products []domain.Product
	byID     map[string]int
}

// New builds a catalog from already validated products. Later duplicates of
// an id are ignored.
func New(products []domain.Product) *Catalog {
	c := &Catalog{
		products: make([]domain.Product, 0, len(products)),
		byID:     make(map[string]int, len(products)),
	}
	for _, p := range products {
		if _, dup := c.byID[p.ID]; dup {
			continue
		}
		c.byID[p.ID] = len(c.products)
		c.products = append(c.products, p)
	}
	return c
}

// Empty returns a catalog with no products.
func Empty() *Catalog { return New(nil) }

// All returns the products in catalog order.
func (c *Catalog) All() []domain.Product {
	out := make([]domain.Product, len(c.products))
	copy(out, c.products)
	return out
}

// Get returns the product with the given id.
func (c *Catalog) Get(id string) (domain.Product, bool) {
	i, ok := c.byID[id]
	if !ok {
		return domain.Product{}, false
	}
	return c.products[i], true
}

// Category is a product category with its URL slug.
type Category struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Categories returns the distinct categories in order of first appearance.
// Products without a category are not listed.
func (c *Catalog) Categories() []Category {
	seen := make(map[string]bool)
	var out []Category
	for _, p := range c.products {
		s := slug.Generate(p.Category)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, Category{Name: p.Category, Slug: s})
	}
	return out
}

// InCategory returns the products whose category slug matches categorySlug.
// An empty slug returns every product.
func (c *Catalog) InCategory(categorySlug string) []domain.Product {
	if categorySlug == "" {
		return c.All()
	}
	var out []domain.Product
	for _, p := range c.products {
		if slug.Generate(p.Category) == categorySlug {
			out = append(out, p)
		}
	}
	return out
}

// Len returns the number of products.
func (c *Catalog) Len() int { return len(c.products) }

// Load fetches the catalog once. Fetch and decode failures are logged and
// produce an empty catalog; there is no retry.
func Load(ctx context.Context, src Source, logger *slog.Logger) *Catalog {
	data, err := src.Fetch(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "catalog fetch failed",
			slog.String("source", src.String()),
			slog.String("error", err.Error()),
		)
		return Empty()
	}

	products, err := Decode(data, logger)
	if err != nil {
		logger.ErrorContext(ctx, "catalog decode failed",
			slog.String("source", src.String()),
			slog.String("error", err.Error()),
		)
		return Empty()
	}

	c := New(products)
	logger.InfoContext(ctx, "catalog loaded",
		slog.String("source", src.String()),
		slog.Int("products", c.Len()),
	)
	return c
}

// Decode parses a JSON array of product records. Records that fail to decode
// or validate, and repeated ids, are skipped with a warning. A document that
// is not an array is an error.
func Decode(data []byte, logger *slog.Logger) ([]domain.Product, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("catalog is not a JSON array: %w", err)
	}

	products := make([]domain.Product, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for i, rec := range raw {
		var p domain.Product
		if err := json.Unmarshal(rec, &p); err != nil {
			logger.Warn("skipping undecodable catalog record",
				slog.Int("index", i),
				slog.String("error", err.Error()),
			)
			continue
		}
		if err := validator.Validate(p); err != nil {
			logger.Warn("skipping invalid catalog record",
				slog.Int("index", i),
				slog.String("id", p.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if seen[p.ID] {
			logger.Warn("skipping duplicate catalog record",
				slog.Int("index", i),
				slog.String("id", p.ID),
			)
			continue
		}
		seen[p.ID] = true
		products = append(products, p)
	}
	return products, nil
}
