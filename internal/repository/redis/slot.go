package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/Maharab24/Bottle-Collection/pkg/database"
	apperrors "github.com/Maharab24/Bottle-Collection/pkg/errors"
)

// Slot stores the cart under a single Redis string key with no expiry.
type Slot struct {
	client *redis.Client
	key    string
	owned  bool
}

// NewSlot creates a slot on an existing client. The caller keeps ownership
// of the client.
func NewSlot(client *redis.Client, key string) *Slot {
	return &Slot{client: client, key: key}
}

// NewOwnedSlot is like NewSlot but Close also closes the client.
func NewOwnedSlot(client *redis.Client, key string) *Slot {
	return &Slot{client: client, key: key, owned: true}
}

func (s *Slot) Key() string { return s.key }

// Client exposes the underlying client so the pub/sub transport can share it.
func (s *Slot) Client() *redis.Client { return s.client }

func (s *Slot) Load(ctx context.Context) (data []byte, err error) {
	ctx, end := database.TraceQuery(ctx, "redis", "LoadSlot", "GET "+s.key)
	defer func() { end(err) }()

	data, err = s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperrors.NotFound("cart slot", s.key)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get slot: %w", err)
	}
	return data, nil
}

func (s *Slot) Save(ctx context.Context, data []byte) (err error) {
	ctx, end := database.TraceQuery(ctx, "redis", "SaveSlot", "SET "+s.key)
	defer func() { end(err) }()

	if err = s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set slot: %w", err)
	}
	return nil
}

func (s *Slot) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Slot) Close() error {
	if s.owned {
		return s.client.Close()
	}
	return nil
}
