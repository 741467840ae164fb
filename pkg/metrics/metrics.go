package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records bearer token validations by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "longevity_auth_attempts_total",
			Help: "Total number of bearer token validations",
		},
		[]string{"result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "longevity_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// HTTPInFlight is the number of requests currently being served.
	HTTPInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "longevity_http_in_flight_requests",
			Help: "Number of HTTP requests being served",
		},
	)

	// RateLimited counts requests rejected by the rate limiter, by route.
	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "longevity_rate_limited_requests_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
		[]string{"path"},
	)

	// RecommendationReconciles counts controller runs by kind and outcome
	// (skipped|cached|generated|unpersisted|failed).
	RecommendationReconciles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "longevity_recommendation_reconciles_total",
			Help: "Total number of recommendation reconcile runs",
		},
		[]string{"kind", "outcome"},
	)

	// RecommendationCacheLookups counts cache row lookups (hit|miss|stale|error).
	RecommendationCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "longevity_recommendation_cache_lookups_total",
			Help: "Total number of recommendation cache lookups",
		},
		[]string{"kind", "result"},
	)

	// RecommendationGeneration measures generator latency by result (success|failure).
	RecommendationGeneration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "longevity_recommendation_generation_seconds",
			Help:    "Recommendation generator latency",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
		},
		[]string{"kind", "result"},
	)

	// ActiveControllers tracks the number of live recommendation controllers.
	ActiveControllers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "longevity_recommendation_controllers",
			Help: "Number of live recommendation controllers",
		},
	)

	// RealtimeConnections tracks open WebSocket connections.
	RealtimeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "longevity_realtime_connections",
			Help: "Number of open realtime connections",
		},
	)

	// RealtimeDropped counts clients disconnected because their send buffer was full.
	RealtimeDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "longevity_realtime_dropped_clients_total",
			Help: "Total number of realtime clients dropped for backpressure",
		},
	)
)
