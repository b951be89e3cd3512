package repository

import "context"

// DefaultSlotKey is the name under which the cart is persisted.
const DefaultSlotKey = "bottleCart"

// Slot is a single named key in durable storage holding the serialized cart.
// The bytes are opaque to the slot; decoding and tolerance of malformed
// content belong to the caller.
type Slot interface {
	// Key returns the slot name.
	Key() string

	// Load returns the stored bytes, or an apperrors NotFound error when
	// nothing has been written yet.
	Load(ctx context.Context) ([]byte, error)

	// Save replaces the stored bytes in a single step.
	Save(ctx context.Context, data []byte) error

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases backend resources owned by the slot.
	Close() error
}
