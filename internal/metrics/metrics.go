// Package metrics defines the Prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SubscriptionsCreated counts subscriptions created through the API.
	SubscriptionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "abbo_subscriptions_created_total",
		Help: "Number of subscriptions created.",
	})

	// SubscriptionsDeleted counts soft-deleted subscriptions.
	SubscriptionsDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "abbo_subscriptions_deleted_total",
		Help: "Number of subscriptions deleted.",
	})

	// RenewalsAdvanced counts renewal dates advanced by the renewal worker.
	RenewalsAdvanced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "abbo_renewals_advanced_total",
		Help: "Number of renewal dates advanced past their due date.",
	})

	// SubscriptionsExported counts rows appended by the export worker.
	SubscriptionsExported = promauto.NewCounter(prometheus.CounterOpts{
		Name: "abbo_subscriptions_exported_total",
		Help: "Number of subscription rows exported to the backup sheet.",
	})

	// HTTPRequests counts handled HTTP requests by method, path and status.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "abbo_http_requests_total",
		Help: "Number of HTTP requests handled.",
	}, []string{"method", "path", "status"})

	// HTTPDuration observes request latency per path.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "abbo_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"path"})
)
