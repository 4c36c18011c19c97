package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts business transactions per process. Methods are safe on a nil
// receiver.
type Metrics struct {
	Transactions *prometheus.CounterVec
	Rejections   *prometheus.CounterVec
	Effectuated  *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		Transactions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "marketroles_transactions_total",
			Help: "Business transactions handled, by process and outcome",
		}, []string{"process", "outcome"}),
		Rejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "marketroles_transaction_rejections_total",
			Help: "Validation errors in rejected transactions, by process and code",
		}, []string{"process", "code"}),
		Effectuated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "marketroles_business_processes_effectuated_total",
			Help: "Business processes effectuated, by process",
		}, []string{"process"}),
	}
}

func (m *Metrics) IncAccepted(process string) {
	if m == nil {
		return
	}
	m.Transactions.WithLabelValues(process, "accepted").Inc()
}

func (m *Metrics) IncRejected(process string, codes ...string) {
	if m == nil {
		return
	}
	m.Transactions.WithLabelValues(process, "rejected").Inc()
	for _, code := range codes {
		m.Rejections.WithLabelValues(process, code).Inc()
	}
}

func (m *Metrics) IncEffectuated(process string) {
	if m == nil {
		return
	}
	m.Effectuated.WithLabelValues(process).Inc()
}
