package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatsync_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	WebsocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatsync_websocket_connections",
			Help: "Open websocket connections",
		},
	)

	// Синхронизация
	ActiveSubscriptions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chatsync_active_subscriptions",
			Help: "Subscriptions not yet released or failed",
		},
		[]string{"kind"}, // rooms, room, messages, users
	)

	SnapshotsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_snapshots_published_total",
			Help: "Snapshots delivered to subscription callbacks",
		},
		[]string{"kind"},
	)

	SubscriptionFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_subscription_failures_total",
			Help: "Subscriptions that ended with a transport error",
		},
		[]string{"kind"},
	)

	MaterializeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatsync_materialize_duration_seconds",
			Help:    "Time to turn one change batch into a snapshot",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		},
		[]string{"kind"},
	)

	UserLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_user_lookups_total",
			Help: "User lookups made while resolving references",
		},
		[]string{"outcome"}, // hit, miss
	)

	DirectRoomResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_direct_room_resolutions_total",
			Help: "createDirectRoom calls by outcome",
		},
		[]string{"outcome"}, // existing, created
	)

	MessagesWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_messages_written_total",
			Help: "Message writes by operation",
		},
		[]string{"op", "type"}, // op: send, update
	)

	// Хранилище
	StoreLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatsync_store_latency_seconds",
			Help:    "SQL document store operation latency",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		},
		[]string{"op"},
	)
)
