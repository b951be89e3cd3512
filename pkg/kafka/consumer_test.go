package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConsumer(t *testing.T, attempts int, h Handler) (*Consumer, *Metrics) {
	t.Helper()
	m := NewMetrics(prometheus.NewRegistry())
	return &Consumer{
		handler:  h,
		attempts: attempts,
		topic:    "storefront.cart.changed",
		group:    "storefront-tab-1",
		metrics:  m,
		logger:   testLogger(),
	}, m
}

func encodedEvent(t *testing.T) kafka.Message {
	t.Helper()
	event, err := NewEvent("cart.changed", "bottleCart", "tab-1", nil)
	require.NoError(t, err)
	data, err := event.Marshal()
	require.NoError(t, err)
	return kafka.Message{Topic: "storefront.cart.changed", Value: data}
}

func counts(m *Metrics) (processed, failed float64) {
	return testutil.ToFloat64(m.processed.WithLabelValues("storefront.cart.changed", "storefront-tab-1")),
		testutil.ToFloat64(m.failed.WithLabelValues("storefront.cart.changed", "storefront-tab-1"))
}

func TestConsumer_ProcessSuccess(t *testing.T) {
	var got *Event
	c, m := newTestConsumer(t, 3, func(_ context.Context, e *Event) error {
		got = e
		return nil
	})

	c.process(context.Background(), encodedEvent(t))

	require.NotNil(t, got)
	assert.Equal(t, "tab-1", got.Source)
	processed, failed := counts(m)
	assert.Equal(t, 1.0, processed)
	assert.Zero(t, failed)
	assert.Equal(t, 1, testutil.CollectAndCount(m.duration))
}

func TestConsumer_RetriesUntilSuccess(t *testing.T) {
	prev := retryStep
	retryStep = time.Millisecond
	t.Cleanup(func() { retryStep = prev })

	calls := 0
	c, m := newTestConsumer(t, 3, func(context.Context, *Event) error {
		calls++
		if calls < 3 {
			return errors.New("slot busy")
		}
		return nil
	})

	c.process(context.Background(), encodedEvent(t))

	assert.Equal(t, 3, calls)
	processed, _ := counts(m)
	assert.Equal(t, 1.0, processed)
}

func TestConsumer_DropsAfterAttempts(t *testing.T) {
	prev := retryStep
	retryStep = time.Millisecond
	t.Cleanup(func() { retryStep = prev })

	calls := 0
	c, m := newTestConsumer(t, 2, func(context.Context, *Event) error {
		calls++
		return errors.New("nope")
	})

	c.process(context.Background(), encodedEvent(t))

	assert.Equal(t, 2, calls)
	processed, failed := counts(m)
	assert.Zero(t, processed)
	assert.Equal(t, 1.0, failed)
}

func TestConsumer_HandleStopsOnCancel(t *testing.T) {
	c, _ := newTestConsumer(t, 5, func(context.Context, *Event) error { return errors.New("nope") })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.handle(ctx, &Event{EventID: "e-1"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConsumer_DropsBadPayload(t *testing.T) {
	calls := 0
	c, m := newTestConsumer(t, 3, func(context.Context, *Event) error {
		calls++
		return nil
	})

	c.process(context.Background(), kafka.Message{Value: []byte("not json")})

	assert.Zero(t, calls)
	_, failed := counts(m)
	assert.Equal(t, 1.0, failed)
}

func TestConsumer_NilMetrics(t *testing.T) {
	c := &Consumer{attempts: 1, logger: testLogger(), handler: func(context.Context, *Event) error { return nil }}
	assert.NotPanics(t, func() { c.process(context.Background(), encodedEvent(t)) })
	assert.NoError(t, c.Close())
}

func TestNewConsumer_Defaults(t *testing.T) {
	c := NewConsumer(ConsumerConfig{Brokers: []string{"localhost:19092"}, GroupID: "g", Topic: Topic("cart", "changed")}, nil, testLogger())
	assert.Equal(t, 3, c.attempts)
	assert.Equal(t, "storefront.cart.changed", c.topic)
	_ = c.Close()
}
