package http

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Maharab24/Bottle-Collection/internal/domain"
	"github.com/Maharab24/Bottle-Collection/pkg/pagination"
)

func TestListProducts(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/products", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var page pagination.Result[domain.Product]
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&page))
	assert.Equal(t, 2, page.TotalCount)
	assert.Equal(t, 1, page.TotalPages)
	require.Len(t, page.Data, 2)
	assert.Equal(t, "b-001", page.Data[0].ID)
}

func TestListProducts_CategoryAndPaging(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/products?category=steel", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	env := decode[[]domain.Product](t, rec)
	require.Len(t, env.Data, 1)
	assert.Equal(t, "b-002", env.Data[0].ID)

	rec = f.do(t, http.MethodGet, "/api/v1/products?page=2&per_page=1", nil)
	env = decode[[]domain.Product](t, rec)
	require.Len(t, env.Data, 1)
	assert.Equal(t, "b-002", env.Data[0].ID)
}

func TestGetProduct(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/products/b-002", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Steel Flask", decode[domain.Product](t, rec).Data.Name)

	rec = f.do(t, http.MethodGet, "/api/v1/products/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decode[domain.Product](t, rec).Error.Code)
}

func TestListCategories(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/categories", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	env := decode[[]map[string]string](t, rec)
	require.Len(t, env.Data, 2)
	assert.Equal(t, "glass", env.Data[0]["slug"])
}

func TestAddItem_TotalsAndBadge(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequest{ProductID: "b-001", Quantity: 3})
	require.Equal(t, http.StatusOK, rec.Code)

	cart := decode[CartResponse](t, rec).Data
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "Amber Apothecary", cart.Items[0].Name)
	assert.Equal(t, 3, cart.Items[0].Quantity)
	assertMoney(t, "30.00", cart.Items[0].LineTotal)
	assertMoney(t, "30.00", cart.Subtotal)
	assertMoney(t, "6.00", cart.ShippingTotal)
	assertMoney(t, "36.00", cart.Total)

	f.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequest{ProductID: "b-002", Quantity: 1})
	f.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequest{ProductID: "b-001", Quantity: 1})

	rec = f.do(t, http.MethodGet, "/api/v1/cart/badge", nil)
	assert.Equal(t, 2, decode[BadgeResponse](t, rec).Data.Count)

	rec = f.do(t, http.MethodGet, "/api/v1/cart", nil)
	cart = decode[CartResponse](t, rec).Data
	assert.Equal(t, 2, cart.DistinctCount)
	assert.Equal(t, 5, cart.UnitCount)
	assert.Equal(t, 4, cart.Items[0].Quantity)
}

func TestAddItem_Validation(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequest{ProductID: "b-001", Quantity: 0})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	env := decode[CartResponse](t, rec)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	assert.Contains(t, env.Error.Fields, "quantity")

	rec = f.do(t, http.MethodPost, "/api/v1/cart/items", `{"product_id":"b-001","quantity":1,"price":0}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", decode[CartResponse](t, rec).Error.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/cart/items", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.True(t, f.store.Read(context.Background()).IsEmpty())
}

func TestAddItem_QuantityAboveStock(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequest{ProductID: "b-002", Quantity: 99})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	env := decode[CartResponse](t, rec)
	assert.Equal(t, "INVALID_INPUT", env.Error.Code)
	assert.Contains(t, env.Error.Message, "exceeds stock of 3")
	assert.True(t, f.store.Read(context.Background()).IsEmpty())

	rec = f.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequest{ProductID: "b-002", Quantity: 3})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, decode[CartResponse](t, rec).Data.Items[0].Quantity)
}

func TestAddItem_UnknownProduct(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequest{ProductID: "nope", Quantity: 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.True(t, f.store.Read(context.Background()).IsEmpty())
}

func TestAddItem_RejectsNonJSONContentType(t *testing.T) {
	f := newFixture(t)

	req := newRequest(http.MethodPost, "/api/v1/cart/items", `product_id=b-001`)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := serve(f, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestUpdateItemQuantity(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequest{ProductID: "b-001", Quantity: 1})

	rec := f.do(t, http.MethodPut, "/api/v1/cart/items/b-001", UpdateQuantityRequest{Quantity: 7})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 7, decode[CartResponse](t, rec).Data.Items[0].Quantity)

	rec = f.do(t, http.MethodPut, "/api/v1/cart/items/b-001", UpdateQuantityRequest{Quantity: 0})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[CartResponse](t, rec).Data.Items)
	assert.True(t, f.store.Read(context.Background()).IsEmpty())
}

func TestUpdateItemQuantity_Errors(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPut, "/api/v1/cart/items/b-001", UpdateQuantityRequest{Quantity: 2})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	f.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequest{ProductID: "b-001", Quantity: 1})
	rec = f.do(t, http.MethodPut, "/api/v1/cart/items/b-001", UpdateQuantityRequest{Quantity: -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRemoveItem(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequest{ProductID: "b-001", Quantity: 1})
	f.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequest{ProductID: "b-002", Quantity: 1})

	rec := f.do(t, http.MethodDelete, "/api/v1/cart/items/b-001", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cart := decode[CartResponse](t, rec).Data
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "b-002", cart.Items[0].ID)

	// Removing an absent line is not an error.
	rec = f.do(t, http.MethodDelete, "/api/v1/cart/items/b-001", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
