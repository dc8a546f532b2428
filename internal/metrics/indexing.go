package metrics

import "github.com/prometheus/client_golang/prometheus"

// Operation status label values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Indexing Prometheus metrics.
var (
	BackendOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "searchsync",
			Name:      "backend_operations_total",
			Help:      "Total number of search backend operations",
		},
		[]string{"backend", "operation", "status"},
	)

	BackendOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "searchsync",
			Name:      "backend_operation_duration_seconds",
			Help:      "Search backend operation duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"backend", "operation"},
	)

	SkippedObjectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "searchsync",
			Name:      "skipped_objects_total",
			Help:      "Objects not dispatched to backends",
		},
		[]string{"reason"}, // "not_indexable" / "opted_out" / "not_live"
	)

	ReindexedObjectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "searchsync",
			Name:      "reindexed_objects_total",
			Help:      "Objects written by bulk reindexing",
		},
		[]string{"backend", "model", "status"},
	)
)

var indexingMetricsRegistered bool

// RegisterIndexingMetrics registers Prometheus indexing metrics. Must be called once from main.
func RegisterIndexingMetrics() {
	if indexingMetricsRegistered {
		return
	}
	prometheus.MustRegister(BackendOperationsTotal)
	prometheus.MustRegister(BackendOperationDuration)
	prometheus.MustRegister(SkippedObjectsTotal)
	prometheus.MustRegister(ReindexedObjectsTotal)
	indexingMetricsRegistered = true
}
