// Package kafkabus announces cart changes on a Kafka topic. Every process
// reads the topic with its own consumer group so each sees every notice.
package kafkabus

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/Maharab24/Bottle-Collection/internal/notify"
	"github.com/Maharab24/Bottle-Collection/pkg/kafka"
)

// EventType is the event type of a change notice.
const EventType = "cart.changed"

// Config configures the transport.
type Config struct {
	Brokers []string
	Topic   string
	Key     string
	Origin  string
	// Metrics is optional.
	Metrics *kafka.Metrics
}

// DefaultTopic is the topic used when Config.Topic is empty.
var DefaultTopic = kafka.Topic("cart", "changed")

type publisher interface {
	Publish(ctx context.Context, topic string, event *kafka.Event) error
	Close() error
}

// Transport publishes one event per write and consumes the topic from the
// latest offset.
type Transport struct {
	cfg      Config
	producer publisher
	dedup    kafka.Deduplicator
	logger   *slog.Logger
}

// New creates a transport. No broker connection is made until the first
// Announce or Listen.
func New(cfg Config, logger *slog.Logger) *Transport {
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	logger = logger.With(slog.String("transport", "kafka"), slog.String("topic", cfg.Topic))
	return &Transport{
		cfg:      cfg,
		producer: kafka.NewProducer(producerConfig(cfg), logger),
		dedup:    kafka.NewWindowDedup(10 * time.Minute),
		logger:   logger,
	}
}

func producerConfig(cfg Config) kafka.ProducerConfig {
	pc := kafka.DefaultProducerConfig(cfg.Brokers)
	pc.Metrics = cfg.Metrics
	return pc
}

// GroupID returns the consumer group of this process.
func (t *Transport) GroupID() string {
	return "storefront-" + t.cfg.Origin
}

func (t *Transport) Announce(ctx context.Context, c notify.Change) error {
	event, err := kafka.NewEvent(EventType, t.cfg.Key, c.Origin, nil)
	if err != nil {
		return fmt.Errorf("build change event: %w", err)
	}
	if !c.At.IsZero() {
		event.Timestamp = c.At.UTC()
	}
	return t.producer.Publish(ctx, t.cfg.Topic, event.Correlate(ctx))
}

func (t *Transport) Listen(ctx context.Context, fn notify.Listener) error {
	consumer := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:     t.cfg.Brokers,
		GroupID:     t.GroupID(),
		Topic:       t.cfg.Topic,
		MinBytes:    1,
		MaxBytes:    1 << 20,
		StartOffset: kafkago.LastOffset,
		Metrics:     t.cfg.Metrics,
	}, t.handler(fn), t.logger)

	return consumer.Start(ctx)
}

// handler converts events into remote changes, dropping duplicates,
// events for other slots and events this process published.
func (t *Transport) handler(fn notify.Listener) kafka.Handler {
	deliver := notify.FromOthers(t.cfg.Origin, fn)
	inner := func(_ context.Context, event *kafka.Event) error {
		if event.EventType != EventType || event.AggregateID != t.cfg.Key {
			return nil
		}
		deliver(notify.Change{Origin: event.Source, Source: notify.SourceRemote, At: event.Timestamp})
		return nil
	}
	return kafka.Dedupe(t.dedup, inner, t.logger)
}

func (t *Transport) Close() error {
	return t.producer.Close()
}
