package metrics

import "github.com/prometheus/client_golang/prometheus"

// Refinement and backend Prometheus metrics.
var (
	BackendQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_queries_total",
			Help:      "Backend queries by source, refinement phase and outcome",
		},
		[]string{"source", "phase", "status"}, // status: ok / network / malformed / canceled
	)

	BackendQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_query_duration_seconds",
			Help:      "Backend query duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		},
		[]string{"source"},
	)

	BackendCoalescedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_coalesced_total",
			Help:      "Backend queries served by an identical in-flight call",
		},
	)

	RefinementPublishesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refinement_publishes_total",
			Help:      "Phase results offered to the sink",
		},
		[]string{"phase", "outcome"}, // outcome: published / regressed
	)

	RefinementSequencesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refinement_sequences_total",
			Help:      "Finished refinement sequences",
		},
		[]string{"outcome"}, // outcome: completed / superseded / canceled
	)

	SnapshotStoreTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_store_total",
			Help:      "View snapshot store operations",
		},
		[]string{"op", "result"}, // op: save / load / delete; result: ok / miss / error
	)

	ViewsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "views_active",
			Help:      "Open views",
		},
	)
)

var registered bool

// Register registers all searchfront metrics with the default registry.
// Must be called once from main.
func Register() {
	if registered {
		return
	}
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpInFlight)
	prometheus.MustRegister(BackendQueriesTotal)
	prometheus.MustRegister(BackendQueryDuration)
	prometheus.MustRegister(BackendCoalescedTotal)
	prometheus.MustRegister(RefinementPublishesTotal)
	prometheus.MustRegister(RefinementSequencesTotal)
	prometheus.MustRegister(SnapshotStoreTotal)
	prometheus.MustRegister(ViewsActive)
	registered = true
}
