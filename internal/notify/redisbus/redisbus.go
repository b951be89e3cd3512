// Package redisbus announces cart changes over Redis pub/sub.
package redisbus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/Maharab24/Bottle-Collection/internal/notify"
)

// Channel returns the pub/sub channel used for slot key.
func Channel(key string) string {
	return key + ":changed"
}

// Transport publishes a notice on Channel(key) after every write and
// subscribes to the same channel for other processes' notices.
type Transport struct {
	client  *redis.Client
	key     string
	channel string
	origin  string
	logger  *slog.Logger

	ready     chan struct{}
	readyOnce sync.Once
}

// New creates a transport for slot key on client. origin identifies this
// process; notices carrying it are ignored.
func New(client *redis.Client, key, origin string, logger *slog.Logger) *Transport {
	return &Transport{
		client:  client,
		key:     key,
		channel: Channel(key),
		origin:  origin,
		logger:  logger.With(slog.String("transport", "redis"), slog.String("channel", Channel(key))),
		ready:   make(chan struct{}),
	}
}

// Ready is closed once the subscription is confirmed by the server.
func (t *Transport) Ready() <-chan struct{} { return t.ready }

func (t *Transport) Announce(ctx context.Context, c notify.Change) error {
	payload, err := notify.Encode(t.key, c)
	if err != nil {
		return fmt.Errorf("encode change: %w", err)
	}
	if err := t.client.Publish(ctx, t.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish cart change: %w", err)
	}
	return nil
}

func (t *Transport) Listen(ctx context.Context, fn notify.Listener) error {
	sub := t.client.Subscribe(ctx, t.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe %s: %w", t.channel, err)
	}
	t.readyOnce.Do(func() { close(t.ready) })
	t.logger.Info("subscribed to cart changes")

	deliver := notify.FromOthers(t.origin, fn)
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			c, key, err := notify.Decode([]byte(msg.Payload))
			if err != nil {
				t.logger.Warn("ignoring malformed cart change", slog.String("error", err.Error()))
				continue
			}
			if key != t.key {
				continue
			}
			deliver(c)
		}
	}
}

// Close is a no-op; the client is owned by the slot.
func (t *Transport) Close() error { return nil }
