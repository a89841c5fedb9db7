// Package metrics provides Prometheus metrics for user-admin.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder holds the user-admin collectors registered on one registry.
type Recorder struct {
	// OperationsTotal counts admin operations by outcome code.
	OperationsTotal *prometheus.CounterVec

	// OperationDuration measures end-to-end operation latency.
	OperationDuration *prometheus.HistogramVec

	// OrphanedRecordsTotal counts records left in one store after the paired write failed.
	OrphanedRecordsTotal *prometheus.CounterVec
}

// NewRecorder registers the collectors on reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)

	return &Recorder{
		OperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "user_admin",
				Name:      "operations_total",
				Help:      "Total number of admin user operations",
			},
			[]string{"operation", "outcome"},
		),
		OperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "user_admin",
				Name:      "operation_duration_seconds",
				Help:      "Duration of admin user operations in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		OrphanedRecordsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "user_admin",
				Name:      "orphaned_records_total",
				Help:      "Records left without a counterpart after a partial failure",
			},
			[]string{"store"},
		),
	}
}

// RecordOperation records one finished operation.
func (r *Recorder) RecordOperation(operation, outcome string, seconds float64) {
	r.OperationsTotal.WithLabelValues(operation, outcome).Inc()
	r.OperationDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordOrphan records a partial failure that left store ahead of its counterpart.
func (r *Recorder) RecordOrphan(store string) {
	r.OrphanedRecordsTotal.WithLabelValues(store).Inc()
}
