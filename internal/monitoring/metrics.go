package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"handler", "method", "status_code"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"handler", "method", "status_code"},
	)
)

var (
	CartMutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_mutations_total",
			Help: "Optimistic cart mutations by operation and outcome",
		},
		[]string{"op", "outcome"},
	)

	CartRollbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_rollbacks_total",
			Help: "Optimistic mutations reverted after the cart service rejected them",
		},
		[]string{"op"},
	)

	CartReconcileDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cart_reconcile_duration_seconds",
			Help:    "Duration of full-cart fetch plus merge",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	CartPersistFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_persist_failures_total",
			Help: "Failed snapshot writes by backend",
		},
		[]string{"backend"},
	)

	CartSnapshotRepairsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_snapshot_repairs_total",
			Help: "Repairs applied while rehydrating snapshots",
		},
		[]string{"kind"},
	)

	CartItemsAddedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cart_items_added_total",
			Help: "Optimistic adds confirmed by the cart service",
		},
	)
)

func RecordMutation(op, outcome string) {
	CartMutationsTotal.WithLabelValues(op, outcome).Inc()
}

func RecordRollback(op string) {
	CartRollbacksTotal.WithLabelValues(op).Inc()
}

func ObserveReconcile(d time.Duration) {
	CartReconcileDuration.Observe(d.Seconds())
}

func RecordPersistFailure(backend string) {
	CartPersistFailuresTotal.WithLabelValues(backend).Inc()
}

func RecordSnapshotRepair(kind string, n int) {
	CartSnapshotRepairsTotal.WithLabelValues(kind).Add(float64(n))
}

func RecordItemAdded() {
	CartItemsAddedTotal.Inc()
}
