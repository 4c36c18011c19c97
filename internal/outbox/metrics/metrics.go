package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks outbox relay throughput. Methods are safe on a nil receiver.
type Metrics struct {
	Appended  *prometheus.CounterVec
	Published *prometheus.CounterVec
	Failures  *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		Appended: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "marketroles_outbox_appended_total",
			Help: "Entries appended to the outbox",
		}, []string{"category"}),
		Published: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "marketroles_outbox_published_total",
			Help: "Outbox entries published to Kafka",
		}, []string{"category"}),
		Failures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "marketroles_outbox_publish_failures_total",
			Help: "Failed attempts to publish outbox entries",
		}, []string{"category"}),
	}
}

func (m *Metrics) IncAppended(category string) {
	if m == nil {
		return
	}
	m.Appended.WithLabelValues(category).Inc()
}

func (m *Metrics) IncPublished(category string) {
	if m == nil {
		return
	}
	m.Published.WithLabelValues(category).Inc()
}

func (m *Metrics) IncFailures(category string) {
	if m == nil {
		return
	}
	m.Failures.WithLabelValues(category).Inc()
}
