package http

import (
	"context"
	"log/slog"

	"github.com/Maharab24/Bottle-Collection/internal/catalog"
	"github.com/Maharab24/Bottle-Collection/internal/domain"
	"github.com/Maharab24/Bottle-Collection/internal/view"
	"github.com/Maharab24/Bottle-Collection/internal/widget"
)

// CartStore is the part of the cart store the HTTP layer writes through.
type CartStore interface {
	Read(ctx context.Context) domain.Cart
	MergeAdd(ctx context.Context, id string, snap domain.Snapshot, delta int) (domain.Cart, error)
	SetQuantity(ctx context.Context, id string, q int) (domain.Cart, error)
	Remove(ctx context.Context, id string) (domain.Cart, error)
}

// Badge reports the live distinct-line count.
type Badge interface {
	Count() int
	Watch(fn func(count int)) (cancel func())
}

// Handler serves the storefront pages, the JSON API and the badge stream.
// It renders the components of one browsing context: the product widgets,
// the cart view and the header badge.
type Handler struct {
	catalog *catalog.Catalog
	store   CartStore
	board   *widget.Board
	cart    *view.CartView
	badge   Badge
	pages   *pages
	logger  *slog.Logger
}

// NewHandler creates a storefront handler.
func NewHandler(
	cat *catalog.Catalog,
	store CartStore,
	board *widget.Board,
	cart *view.CartView,
	badge Badge,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		catalog: cat,
		store:   store,
		board:   board,
		cart:    cart,
		badge:   badge,
		pages:   mustParsePages(),
		logger:  logger,
	}
}
