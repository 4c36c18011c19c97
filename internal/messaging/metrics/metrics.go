package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics covers inbound market documents. Methods are safe on a nil receiver.
type Metrics struct {
	Documents       *prometheus.CounterVec
	DocumentErrors  *prometheus.CounterVec
	ReceiveDuration *prometheus.HistogramVec
}

func New() *Metrics {
	return &Metrics{
		Documents: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "marketroles_inbound_documents_total",
			Help: "Inbound market documents, by kind and outcome",
		}, []string{"kind", "outcome"}),
		DocumentErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "marketroles_inbound_document_errors_total",
			Help: "Validation errors found in inbound documents, by code",
		}, []string{"code"}),
		ReceiveDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "marketroles_inbound_document_duration_seconds",
			Help:    "Time to parse and process an inbound document",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
	}
}

func (m *Metrics) IncDocument(kind, outcome string) {
	if m == nil {
		return
	}
	m.Documents.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) IncDocumentError(code string) {
	if m == nil {
		return
	}
	m.DocumentErrors.WithLabelValues(code).Inc()
}

func (m *Metrics) ObserveReceive(kind string, start time.Time) {
	if m == nil {
		return
	}
	m.ReceiveDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}
