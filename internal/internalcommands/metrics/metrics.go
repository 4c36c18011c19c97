package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks internal command execution. Methods are safe on a nil receiver.
type Metrics struct {
	Processed       *prometheus.CounterVec
	Failed          *prometheus.CounterVec
	Parked          *prometheus.CounterVec
	HandlerDuration *prometheus.HistogramVec
}

func New() *Metrics {
	return &Metrics{
		Processed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "marketroles_internal_commands_processed_total",
			Help: "Internal commands executed successfully",
		}, []string{"type"}),
		Failed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "marketroles_internal_commands_failed_total",
			Help: "Failed internal command attempts",
		}, []string{"type"}),
		Parked: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "marketroles_internal_commands_parked_total",
			Help: "Internal commands parked after their last attempt or with an unknown type",
		}, []string{"type"}),
		HandlerDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "marketroles_internal_command_duration_seconds",
			Help:    "Duration of internal command handlers",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"type"}),
	}
}

func (m *Metrics) IncProcessed(commandType string) {
	if m == nil {
		return
	}
	m.Processed.WithLabelValues(commandType).Inc()
}

func (m *Metrics) IncFailed(commandType string) {
	if m == nil {
		return
	}
	m.Failed.WithLabelValues(commandType).Inc()
}

func (m *Metrics) IncParked(commandType string) {
	if m == nil {
		return
	}
	m.Parked.WithLabelValues(commandType).Inc()
}

// ObserveHandler records handler duration. Call with time.Now() taken before the handler ran.
func (m *Metrics) ObserveHandler(commandType string, start time.Time) {
	if m == nil {
		return
	}
	m.HandlerDuration.WithLabelValues(commandType).Observe(time.Since(start).Seconds())
}
