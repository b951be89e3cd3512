package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// ProducerConfig holds Kafka producer configuration.
type ProducerConfig struct {
	Brokers      []string
	BatchSize    int
	BatchTimeout time.Duration
	Async        bool
	Metrics      *Metrics
}

// DefaultProducerConfig flushes every message almost immediately; change
// notices are tiny and latency matters more than throughput.
func DefaultProducerConfig(brokers []string) ProducerConfig {
	return ProducerConfig{
		Brokers:      brokers,
		BatchSize:    1,
		BatchTimeout: 5 * time.Millisecond,
	}
}

// Producer publishes events. Messages are keyed by aggregate ID, so events
// for one aggregate land on one partition in order.
type Producer struct {
	writer  *kafka.Writer
	brokers []string
	metrics *Metrics
	logger  *slog.Logger
}

// NewProducer creates a producer. It connects lazily on the first Publish.
func NewProducer(cfg ProducerConfig, logger *slog.Logger) *Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Producer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Balancer:               &kafka.Hash{},
			BatchSize:              cfg.BatchSize,
			BatchTimeout:           cfg.BatchTimeout,
			Async:                  cfg.Async,
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		},
		brokers: cfg.Brokers,
		metrics: cfg.Metrics,
		logger:  logger,
	}
}

// message builds the wire message for event, carrying the type, source,
// correlation ID and trace context as headers.
func message(ctx context.Context, topic string, event *Event) (kafka.Message, error) {
	data, err := event.Marshal()
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal %s event: %w", event.EventType, err)
	}
	headers := []kafka.Header{
		{Key: "event_type", Value: []byte(event.EventType)},
		{Key: "source", Value: []byte(event.Source)},
	}
	if event.CorrelationID != "" {
		headers = append(headers, kafka.Header{Key: "correlation_id", Value: []byte(event.CorrelationID)})
	}
	msg := kafka.Message{Topic: topic, Key: []byte(event.AggregateID), Value: data, Headers: headers}
	injectTrace(ctx, &msg)
	return msg, nil
}

func (p *Producer) Publish(ctx context.Context, topic string, event *Event) error {
	msg, err := message(ctx, topic, event)
	if err != nil {
		return err
	}

	err = p.writer.WriteMessages(ctx, msg)
	p.metrics.publish(topic, err)
	if err != nil {
		p.logger.ErrorContext(ctx, "kafka publish failed",
			slog.String("topic", topic),
			slog.String("event_type", event.EventType),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "kafka event published",
		slog.String("topic", topic),
		slog.String("event_id", event.EventID),
		slog.String("aggregate_id", event.AggregateID),
	)
	return nil
}

// Ping checks broker connectivity.
func (p *Producer) Ping(ctx context.Context) error {
	return PingBrokers(ctx, p.brokers)
}

// ErrNoBrokers is returned when a broker list is empty.
var ErrNoBrokers = errors.New("kafka: no brokers configured")

// PingBrokers succeeds when any broker in the list answers a metadata
// request.
func PingBrokers(ctx context.Context, brokers []string) error {
	if len(brokers) == 0 {
		return ErrNoBrokers
	}
	errs := make([]error, 0, len(brokers))
	for _, addr := range brokers {
		if err := pingBroker(ctx, addr); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", addr, err))
			continue
		}
		return nil
	}
	return fmt.Errorf("kafka brokers unreachable: %w", errors.Join(errs...))
}

func pingBroker(ctx context.Context, addr string) error {
	conn, err := kafka.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()
	_, err = conn.Brokers()
	return err
}

// Close flushes pending messages and closes the writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
