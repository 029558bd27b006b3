// Package observability holds Prometheus collectors and OpenTelemetry setup.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts Redis errors by command name.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookclub_redis_errors_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bookclub_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// WebSocketConnectionsTotal is the gauge of total WebSocket connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bookclub_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookclub_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})

	// ActiveListeners tracks open snapshot listeners per collection kind.
	ActiveListeners = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bookclub_active_listeners",
		Help: "Number of open snapshot listeners by collection",
	}, []string{"collection"})

	// SnapshotDeliveries counts snapshots pushed to listeners.
	SnapshotDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookclub_snapshot_deliveries_total",
		Help: "Total number of snapshots delivered to listeners",
	}, []string{"collection"})

	// ChangeNotices counts change notices published by collection kind.
	ChangeNotices = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookclub_change_notices_total",
		Help: "Total number of collection change notices published",
	}, []string{"collection"})

	// DroppedDocuments counts records excluded during mapping because a
	// required field was missing or had the wrong type.
	DroppedDocuments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookclub_dropped_documents_total",
		Help: "Total number of malformed documents dropped during mapping",
	}, []string{"collection"})

	// CounterRepairs counts threads whose stored counters were reconciled.
	CounterRepairs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookclub_counter_repairs_total",
		Help: "Total number of thread counters corrected by reconciliation",
	}, []string{"counter"})
)
