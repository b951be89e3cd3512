// Package view keeps the cart page and header badge in step with the
// persisted cart. Both re-read the store on every change notice, whether it
// came from this process or another one.
package view

import (
	"context"

	"github.com/Maharab24/Bottle-Collection/internal/domain"
	"github.com/Maharab24/Bottle-Collection/internal/notify"
)

// CartStore is the part of store.Store the views depend on.
type CartStore interface {
	Read(ctx context.Context) domain.Cart
	SetQuantity(ctx context.Context, id string, q int) (domain.Cart, error)
	Remove(ctx context.Context, id string) (domain.Cart, error)
	Subscribe(fn notify.Listener) (cancel func())
}
