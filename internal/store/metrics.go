package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Maharab24/Bottle-Collection/internal/notify"
)

// Metrics holds the cart store's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	mutations     *prometheus.CounterVec
	notifications *prometheus.CounterVec
	slotErrors    *prometheus.CounterVec
	distinctLines prometheus.Gauge
}

// NewMetrics creates the store collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		mutations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cart_mutations_total",
			Help: "Cart writes performed by this process, by operation",
		}, []string{"op"}),
		notifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cart_notifications_total",
			Help: "Cart change notifications delivered to subscribers, by source",
		}, []string{"source"}),
		slotErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cart_slot_errors_total",
			Help: "Failed or unreadable cart slot accesses, by kind",
		}, []string{"kind"}),
		distinctLines: f.NewGauge(prometheus.GaugeOpts{
			Name: "cart_distinct_lines",
			Help: "Distinct cart lines seen at the last read",
		}),
	}
}

func (m *Metrics) mutation(op string) {
	if m != nil {
		m.mutations.WithLabelValues(op).Inc()
	}
}

func (m *Metrics) notification(src notify.Source) {
	if m != nil {
		m.notifications.WithLabelValues(src.String()).Inc()
	}
}

func (m *Metrics) slotError(kind string) {
	if m != nil {
		m.slotErrors.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) lines(n int) {
	if m != nil {
		m.distinctLines.Set(float64(n))
	}
}
