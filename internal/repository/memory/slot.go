package memory

import (
	"context"
	"sync"

	apperrors "github.com/Maharab24/Bottle-Collection/pkg/errors"
)

// Slot is an in-process slot used by tests and the "memory" backend.
type Slot struct {
	mu    sync.RWMutex
	key   string
	data  []byte
	saved bool
}

// NewSlot creates an empty slot named key.
func NewSlot(key string) *Slot {
	return &Slot{key: key}
}

// NewSlotWith creates a slot preloaded with raw bytes, which need not be a
// valid cart.
func NewSlotWith(key string, data []byte) *Slot {
	s := NewSlot(key)
	s.data = append([]byte(nil), data...)
	s.saved = true
	return s
}

func (s *Slot) Key() string { return s.key }

func (s *Slot) Load(_ context.Context) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.saved {
		return nil, apperrors.NotFound("cart slot", s.key)
	}
	return append([]byte(nil), s.data...), nil
}

func (s *Slot) Save(_ context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = append([]byte(nil), data...)
	s.saved = true
	return nil
}

func (s *Slot) Ping(_ context.Context) error { return nil }

func (s *Slot) Close() error { return nil }
