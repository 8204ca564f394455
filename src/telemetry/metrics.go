// Package telemetry holds the Prometheus metrics exposed on GET /metrics.
//
// All metrics are registered against the default registry. HTTP metrics are
// labelled by the gin route template (c.FullPath()), never the raw URL, so
// slugs and request ids do not blow up label cardinality.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "agentblog"

// HTTP metrics, labelled by method, route template and status code
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Histogram of HTTP request latencies, by method and route template.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Workflow outcomes.
//
// KeyRequestsTotal outcome: requested, duplicate, approved, rejected.
// CommentsTotal outcome: submitted, approved, rejected.
var (
	KeyRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "key_requests_total",
			Help:      "Key request workflow transitions, by outcome.",
		},
		[]string{"outcome"},
	)

	CommentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "comments_total",
			Help:      "Comment workflow transitions, by outcome.",
		},
		[]string{"outcome"},
	)

	ArticlesPublishedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_published_total",
			Help:      "Total number of published articles.",
		},
	)

	KeyUsageFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "key_usage_failures_total",
			Help:      "Comments stored whose key usage counter could not be updated.",
		},
	)
)

// Relay metrics.
//
// RelayEventsTotal result: forwarded, malformed, oversized.
var (
	RelayEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "events_total",
			Help:      "Lines received from producers, by result.",
		},
		[]string{"result"},
	)

	RelayDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "viewer_drops_total",
			Help:      "Events skipped for a viewer whose buffer was full.",
		},
	)

	RelayProducers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "producers",
			Help:      "Currently connected TCP producers.",
		},
	)

	RelayViewers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "viewers",
			Help:      "Currently connected viewers, by transport.",
		},
		[]string{"transport"},
	)

	RelayBusErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "bus_errors_total",
			Help:      "Failed Redis commands issued by the relay bus, by command.",
		},
		[]string{"command"},
	)
)
