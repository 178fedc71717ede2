package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grove_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "grove_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Business metrics
	TopicsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "grove_topics_created_total",
			Help: "Total topics created",
		},
	)

	TopicsForked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "grove_topics_forked_total",
			Help: "Total topics created by forking an ancestor path",
		},
	)

	MessagesCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grove_messages_created_total",
			Help: "Total messages created",
		},
		[]string{"role"},
	)

	MessagesDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grove_messages_deleted_total",
			Help: "Total messages deleted",
		},
		[]string{"mode"}, // "cascade" or "reparent"
	)

	TreeQueries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "grove_tree_queries_total",
			Help: "Total tree visualization queries",
		},
	)

	BranchQueries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "grove_branch_queries_total",
			Help: "Total branch read queries",
		},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grove_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)

	BlockedRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grove_blocked_requests_total",
			Help: "Total blocked requests",
		},
		[]string{"reason"},
	)
)
