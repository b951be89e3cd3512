package kafka

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts produced and consumed messages. A nil *Metrics records
// nothing.
type Metrics struct {
	published     *prometheus.CounterVec
	publishErrors *prometheus.CounterVec
	processed     *prometheus.CounterVec
	failed        *prometheus.CounterVec
	duration      *prometheus.HistogramVec
}

// NewMetrics registers the kafka collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		published: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kafka_producer_messages_published_total",
			Help: "Messages written to Kafka, by topic",
		}, []string{"topic"}),
		publishErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kafka_producer_publish_errors_total",
			Help: "Failed Kafka writes, by topic",
		}, []string{"topic"}),
		processed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kafka_consumer_messages_processed_total",
			Help: "Messages handled successfully, by topic and consumer group",
		}, []string{"topic", "consumer_group"}),
		failed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kafka_consumer_messages_failed_total",
			Help: "Messages skipped as undecodable or after exhausting retries",
		}, []string{"topic", "consumer_group"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kafka_consumer_processing_duration_seconds",
			Help:    "Time spent in the message handler, retries included",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		}, []string{"topic", "consumer_group"}),
	}
}

func (m *Metrics) publish(topic string, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.publishErrors.WithLabelValues(topic).Inc()
		return
	}
	m.published.WithLabelValues(topic).Inc()
}

func (m *Metrics) consumed(topic, group string, ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.processed.WithLabelValues(topic, group).Inc()
		return
	}
	m.failed.WithLabelValues(topic, group).Inc()
}

func (m *Metrics) observe(topic, group string, d time.Duration) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(topic, group).Observe(d.Seconds())
}
