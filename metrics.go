package neograph

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors of the mapper. A nil *Metrics is valid and records
// nothing, so instrumentation is optional everywhere it is accepted.
type Metrics struct {
	QueriesTotal            *prometheus.CounterVec
	QueryDuration           *prometheus.HistogramVec
	MaterializationFailures *prometheus.CounterVec
	ConflictsTotal          *prometheus.CounterVec
}

// NewMetrics creates the collectors. Call Register to expose them.
func NewMetrics() *Metrics {
	return &Metrics{
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "neograph",
				Subsystem: "query",
				Name:      "executed_total",
				Help:      "Total number of executed queries",
			},
			[]string{"operation", "status"},
		),
		QueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "neograph",
				Subsystem: "query",
				Name:      "duration_seconds",
				Help:      "Query round trip duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		MaterializationFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "neograph",
				Subsystem: "materialize",
				Name:      "failures_total",
				Help:      "Graph elements skipped because they could not be materialized",
			},
			[]string{"kind"},
		),
		ConflictsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "neograph",
				Subsystem: "write",
				Name:      "conflicts_total",
				Help:      "Writes refused because matching elements already existed",
			},
			[]string{"operation"},
		),
	}
}

// Register registers every collector with reg. Collectors that are already registered are
// tolerated so the same Metrics can be shared by several managers.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	if m == nil {
		return nil
	}
	for _, c := range []prometheus.Collector{m.QueriesTotal, m.QueryDuration, m.MaterializationFailures, m.ConflictsTotal} {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			return err
		}
	}
	return nil
}

func (m *Metrics) observeQuery(operation string, started time.Time, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.QueriesTotal.WithLabelValues(operation, status).Inc()
	m.QueryDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

func (m *Metrics) materializationFailed(kind Kind) {
	if m == nil {
		return
	}
	m.MaterializationFailures.WithLabelValues(kind.String()).Inc()
}

func (m *Metrics) conflict(operation string) {
	if m == nil {
		return
	}
	m.ConflictsTotal.WithLabelValues(operation).Inc()
}
