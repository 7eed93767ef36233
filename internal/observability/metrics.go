package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ChatRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_request_duration_seconds",
			Help:    "Chat message processing duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"intent", "type"},
	)

	ChatMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_total",
			Help: "Total number of chat messages processed",
		},
		[]string{"intent", "type"},
	)

	LadderStepTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_ladder_step_total",
			Help: "Relaxation ladder step that produced the answer",
		},
		[]string{"step"},
	)

	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_cache_hits_total",
			Help: "Total number of response cache hits",
		},
		[]string{"backend"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_cache_misses_total",
			Help: "Total number of response cache misses",
		},
		[]string{"backend"},
	)

	CatalogQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalog_query_duration_seconds",
			Help:    "Catalog query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.2, 0.5, 1},
		},
		[]string{"backend", "status"},
	)

	CHWriteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ch_write_duration_seconds",
			Help:    "ClickHouse analytics write duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"table", "status"},
	)

	IndexingLag = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "indexing_lag_seconds",
			Help: "Age of the last applied product change event in seconds",
		},
	)

	IndexingEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexing_events_total",
			Help: "Total number of product change events processed",
		},
		[]string{"operation", "status"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	SlowQueryCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slow_chat_total",
			Help: "Total number of slow chat messages",
		},
		[]string{"severity", "intent"},
	)

	FallbackCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_fallback_total",
			Help: "Total number of popularity fallbacks and backend degradations",
		},
		[]string{"level"},
	)

	ActiveConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "active_connections",
			Help: "Number of open connections to backend systems",
		},
		[]string{"backend"},
	)

	RejectedRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_rejected_requests_total",
			Help: "Requests rejected before reaching the chat engine",
		},
		[]string{"reason"},
	)
)
