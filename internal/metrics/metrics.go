// Package metrics содержит Prometheus-метрики агрегатора.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Refreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wrestlenews_refreshes_total",
			Help: "Refresh cycles by outcome",
		},
		[]string{"outcome"},
	)

	RefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wrestlenews_refresh_duration_seconds",
			Help:    "Duration of refresh cycles",
			Buckets: prometheus.DefBuckets,
		},
	)

	SourceFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wrestlenews_source_fetches_total",
			Help: "Source fetch attempts by source and status",
		},
		[]string{"source", "status"},
	)

	RejectedPayloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wrestlenews_rejected_payloads_total",
			Help: "Raw payloads rejected by the normalizer",
		},
		[]string{"source"},
	)

	HeldArticles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wrestlenews_held_articles",
			Help: "Articles currently held in the feed",
		},
	)

	BreakingEmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wrestlenews_breaking_emitted_total",
			Help: "Breaking articles handed to the dispatcher",
		},
	)

	StoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wrestlenews_store_operations_total",
			Help: "Persistent store operations by operation and status",
		},
		[]string{"operation", "status"},
	)

	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wrestlenews_notifications_total",
			Help: "Dispatcher publish results by driver and status",
		},
		[]string{"driver", "status"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wrestlenews_http_requests_total",
			Help: "HTTP requests by method, route and status code",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wrestlenews_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)
