package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/Maharab24/Bottle-Collection/internal/domain"
	"github.com/Maharab24/Bottle-Collection/internal/view"
	apperrors "github.com/Maharab24/Bottle-Collection/pkg/errors"
	"github.com/Maharab24/Bottle-Collection/pkg/httputil"
	"github.com/Maharab24/Bottle-Collection/pkg/pagination"
	"github.com/Maharab24/Bottle-Collection/pkg/validator"
)

// --- Request DTOs ---

// AddItemRequest is the JSON request body for adding a product to the cart.
// Name, image and prices are taken from the catalog, never from the client.
type AddItemRequest struct {
	ProductID string `json:"product_id" validate:"required,max=100"`
	Quantity  int    `json:"quantity" validate:"required,gte=1"`
}

// UpdateQuantityRequest is the JSON request body for replacing a line's
// quantity. Zero removes the line.
type UpdateQuantityRequest struct {
	Quantity int `json:"quantity" validate:"gte=0"`
}

// --- Response DTOs ---

// CartLineResponse is one cart line with its computed total.
type CartLineResponse struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Img       string          `json:"img"`
	Price     decimal.Decimal `json:"price"`
	Shipping  decimal.Decimal `json:"shipping"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// CartResponse is the cart with its order summary.
type CartResponse struct {
	Items         []CartLineResponse `json:"items"`
	DistinctCount int                `json:"distinct_count"`
	UnitCount     int                `json:"unit_count"`
	Subtotal      decimal.Decimal    `json:"subtotal"`
	ShippingTotal decimal.Decimal    `json:"shipping_total"`
	Total         decimal.Decimal    `json:"total"`
}

// BadgeResponse is the header badge count.
type BadgeResponse struct {
	Count int `json:"count"`
}

func toCartResponse(cart domain.Cart) CartResponse {
	s := view.Summarize(cart)
	items := make([]CartLineResponse, 0, len(s.Lines))
	for _, l := range s.Lines {
		items = append(items, CartLineResponse{
			ID:        l.ID,
			Name:      l.Name,
			Img:       l.Img,
			Price:     l.Price,
			Shipping:  l.Shipping,
			Quantity:  l.Quantity,
			LineTotal: l.LineTotal,
		})
	}
	return CartResponse{
		Items:         items,
		DistinctCount: cart.DistinctCount(),
		UnitCount:     cart.UnitCount(),
		Subtotal:      s.Subtotal,
		ShippingTotal: s.ShippingTotal,
		Total:         s.Total,
	}
}

// --- Catalog ---

// ListProducts handles GET /api/v1/products?category=&page=&per_page=
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products := h.catalog.All()
	if c := r.URL.Query().Get("category"); c != "" {
		products = h.catalog.InCategory(c)
	}
	httputil.WriteJSON(w, http.StatusOK, pagination.Paginate(products, pagination.FromRequest(r)))
}

// GetProduct handles GET /api/v1/products/{id}
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, ok := h.catalog.Get(id)
	if !ok {
		httputil.WriteError(w, r, apperrors.NotFound("product", id), h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, p)
}

// ListCategories handles GET /api/v1/categories
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	httputil.WriteData(w, http.StatusOK, h.catalog.Categories())
}

// --- Cart ---

// GetCart handles GET /api/v1/cart
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	httputil.WriteData(w, http.StatusOK, toCartResponse(h.store.Read(r.Context())))
}

// GetBadge handles GET /api/v1/cart/badge
func (h *Handler) GetBadge(w http.ResponseWriter, r *http.Request) {
	httputil.WriteData(w, http.StatusOK, BadgeResponse{Count: h.badge.Count()})
}

// AddItem handles POST /api/v1/cart/items
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		h.writeDecodeError(w, r, err)
		return
	}

	p, ok := h.catalog.Get(req.ProductID)
	if !ok {
		httputil.WriteError(w, r, apperrors.NotFound("product", req.ProductID), h.logger)
		return
	}
	// Same ceiling as the widget's selector: one add takes at most the stock.
	if req.Quantity > p.Stock {
		httputil.WriteError(w, r, apperrors.InvalidInput(
			fmt.Sprintf("quantity %d exceeds stock of %d for %s", req.Quantity, p.Stock, p.ID)), h.logger)
		return
	}

	cart, err := h.store.MergeAdd(r.Context(), p.ID, p.Snapshot(), req.Quantity)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, toCartResponse(cart))
}

// UpdateItemQuantity handles PUT /api/v1/cart/items/{id}
func (h *Handler) UpdateItemQuantity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateQuantityRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		h.writeDecodeError(w, r, err)
		return
	}

	if _, ok := h.store.Read(r.Context()).Find(id); !ok {
		httputil.WriteError(w, r, apperrors.NotFound("cart line", id), h.logger)
		return
	}

	cart, err := h.store.SetQuantity(r.Context(), id, req.Quantity)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, toCartResponse(cart))
}

// RemoveItem handles DELETE /api/v1/cart/items/{id}
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	cart, err := h.store.Remove(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, toCartResponse(cart))
}

// writeDecodeError reports validation failures with their fields and any
// other body problem as INVALID_INPUT.
func (h *Handler) writeDecodeError(w http.ResponseWriter, r *http.Request, err error) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		httputil.WriteError(w, r, valErr, h.logger)
		return
	}
	httputil.WriteBadRequest(w, r, "invalid request body: "+err.Error())
}
