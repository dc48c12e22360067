package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HeartbeatsSentTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hera_heartbeats_sent_total",
			Help: "Total number of heartbeat frames written to the peer link.",
		},
	)

	HeartbeatFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hera_heartbeat_failures_total",
			Help: "Total number of heartbeat sends that failed.",
		},
	)

	HeartbeatsSkippedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hera_heartbeats_skipped_total",
			Help: "Total number of heartbeat ticks with no open peer channel.",
		},
	)

	LinkConnectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hera_link_connects_total",
			Help: "Total number of peer connection attempts by outcome.",
		},
		[]string{"outcome"},
	)

	LinkConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hera_link_connected",
			Help: "Whether a peer channel is currently open.",
		},
	)

	LateRepliesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hera_link_late_replies_total",
			Help: "Total number of replies discarded because no caller was waiting.",
		},
	)

	DispatchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hera_dispatch_requests_total",
			Help: "Total number of requests dispatched to the peer by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	DispatchDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hera_dispatch_duration_seconds",
			Help:    "Time spent waiting on the peer per operation.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"operation"},
	)

	PushRejectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hera_push_rejections_total",
			Help: "Total number of job update pushes rejected by a saturated pool.",
		},
	)

	GraphViolationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hera_graph_violations_total",
			Help: "Total number of operations refused by a dependency graph check.",
		},
		[]string{"violation"},
	)
)

// Register registers all custom Hera metrics with the default Prometheus registry.
func Register() {
	prometheus.MustRegister(
		HeartbeatsSentTotal,
		HeartbeatFailuresTotal,
		HeartbeatsSkippedTotal,
		LinkConnectsTotal,
		LinkConnected,
		LateRepliesTotal,
		DispatchRequestsTotal,
		DispatchDurationSeconds,
		PushRejectionsTotal,
		GraphViolationsTotal,
	)
}
