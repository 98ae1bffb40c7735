// Package metrics provides Prometheus instrumentation for the agent.
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// APIRequestsTotal counts outbound calls to the risk backend by
	// operation and outcome (ok, or the error kind).
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Name:      "api_requests_total",
			Help:      "Total outbound API requests by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	// APIRequestDuration observes outbound request latency by operation.
	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sentinel",
			Name:      "api_request_duration_seconds",
			Help:      "Outbound API request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// BehaviorSubmissionsTotal counts behavior samples submitted by
	// trigger (scheduled, manual) and result.
	BehaviorSubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Name:      "behavior_submissions_total",
			Help:      "Total behavior samples submitted by trigger and result.",
		},
		[]string{"trigger", "result"},
	)

	// RiskAssessmentsTotal counts applied risk assessments by level.
	RiskAssessmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Name:      "risk_assessments_total",
			Help:      "Total risk assessments applied by level.",
		},
		[]string{"level"},
	)

	// SnapshotUpdatesTotal counts wholesale dashboard snapshot swaps.
	SnapshotUpdatesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Name:      "snapshot_updates_total",
			Help:      "Total dashboard snapshot replacements.",
		},
	)

	// StaleResponsesDroppedTotal counts responses discarded because a
	// newer snapshot had already been applied.
	StaleResponsesDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Name:      "stale_responses_dropped_total",
			Help:      "Total out-of-order responses dropped by the coordinator.",
		},
	)

	// MonitorTicksSkippedTotal counts scheduler ticks suppressed while
	// the failure breaker is open.
	MonitorTicksSkippedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Name:      "monitor_ticks_skipped_total",
			Help:      "Total scheduled submissions skipped during backend failure backoff.",
		},
	)

	// ActiveWebSocketClients tracks connected stream consumers.
	ActiveWebSocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "sentinel",
			Name:      "active_websocket_clients",
			Help:      "Number of currently connected WebSocket clients.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		APIRequestsTotal,
		APIRequestDuration,
		BehaviorSubmissionsTotal,
		RiskAssessmentsTotal,
		SnapshotUpdatesTotal,
		StaleResponsesDroppedTotal,
		MonitorTicksSkippedTotal,
		ActiveWebSocketClients,
	)
}

// Handler returns the Prometheus metrics HTTP handler for /metrics.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
