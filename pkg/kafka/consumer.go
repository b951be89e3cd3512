package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// Handler processes one event. A returned error makes the consumer retry.
type Handler func(ctx context.Context, event *Event) error

// ConsumerConfig holds Kafka consumer configuration.
type ConsumerConfig struct {
	Brokers  []string
	GroupID  string
	Topic    string
	MinBytes int
	MaxBytes int
	// StartOffset applies when the group has no committed offset yet;
	// kafka.LastOffset skips history, kafka.FirstOffset replays it.
	StartOffset int64
	// Attempts bounds handler calls per message; 0 means 3.
	Attempts int
	Metrics  *Metrics
}

// Consumer reads one topic as a member of one group. Every fetched message
// is committed once handled, skipped or not.
type Consumer struct {
	reader   *kafka.Reader
	handler  Handler
	attempts int
	topic    string
	group    string
	metrics  *Metrics
	logger   *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

func NewConsumer(cfg ConsumerConfig, handler Handler, logger *slog.Logger) *Consumer {
	offset := cfg.StartOffset
	if offset == 0 {
		offset = kafka.FirstOffset
	}
	attempts := cfg.Attempts
	if attempts <= 0 {
		attempts = 3
	}
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     cfg.Brokers,
			GroupID:     cfg.GroupID,
			Topic:       cfg.Topic,
			MinBytes:    cfg.MinBytes,
			MaxBytes:    cfg.MaxBytes,
			StartOffset: offset,
		}),
		handler:  handler,
		attempts: attempts,
		topic:    cfg.Topic,
		group:    cfg.GroupID,
		metrics:  cfg.Metrics,
		logger:   logger.With(slog.String("topic", cfg.Topic), slog.String("group", cfg.GroupID)),
	}
}

// Start consumes until ctx is cancelled and then closes the reader. Fetch
// and commit errors are logged and do not stop the loop.
func (c *Consumer) Start(ctx context.Context) error {
	defer func() { _ = c.Close() }()
	c.logger.Info("kafka consumer started")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if ctx.Err() != nil {
			c.logger.Info("kafka consumer stopped")
			return nil
		}
		if err != nil {
			c.logger.Error("kafka fetch failed", slog.String("error", err.Error()))
			continue
		}

		c.process(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("kafka commit failed",
				slog.Int64("offset", msg.Offset),
				slog.String("error", err.Error()),
			)
		}
	}
}

// process decodes msg and hands it to the handler, retrying with a linear
// delay. Messages that cannot be decoded or keep failing are dropped.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	event, err := DecodeEvent(msg.Value)
	if err != nil {
		c.logger.Error("dropping undecodable kafka message",
			slog.Int64("offset", msg.Offset),
			slog.String("error", err.Error()),
		)
		c.metrics.consumed(c.topic, c.group, false)
		return
	}

	ctx = extractTrace(ctx, msg)
	start := time.Now()
	err = c.handle(ctx, event)
	c.metrics.observe(c.topic, c.group, time.Since(start))
	c.metrics.consumed(c.topic, c.group, err == nil)

	if err != nil {
		c.logger.Error("dropping kafka message after failed attempts",
			slog.String("event_id", event.EventID),
			slog.String("event_type", event.EventType),
			slog.Int64("offset", msg.Offset),
			slog.String("error", err.Error()),
		)
	}
}

func (c *Consumer) handle(ctx context.Context, event *Event) error {
	var err error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		if err = c.handler(ctx, event); err == nil {
			return nil
		}
		if attempt == c.attempts {
			break
		}
		c.logger.Warn("kafka handler failed",
			slog.String("event_id", event.EventID),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)
		t := time.NewTimer(time.Duration(attempt) * retryStep)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return fmt.Errorf("%d attempts: %w", c.attempts, err)
}

// retryStep is the delay added per failed attempt.
var retryStep = 100 * time.Millisecond

// Close closes the reader. Later calls return the first result.
func (c *Consumer) Close() error {
	c.closeOnce.Do(func() {
		if c.reader != nil {
			c.closeErr = c.reader.Close()
		}
	})
	return c.closeErr
}

// TopicPrefix is the prefix of every storefront topic.
const TopicPrefix = "storefront"

// Topic builds a topic name such as "storefront.cart.changed".
func Topic(domain, action string) string {
	return TopicPrefix + "." + domain + "." + action
}
