// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// SessionsTotal tracks total sessions created.
	SessionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sessions_total",
			Help: "Total sessions created",
		},
	)

	// MessagesTotal tracks messages appended, by role.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_total",
			Help: "Total messages appended",
		},
		[]string{"role"},
	)

	// GenerateDuration tracks model generation latency.
	GenerateDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_generate_duration_seconds",
			Help:    "Model generation duration",
			Buckets: []float64{.5, 1, 2, 5, 10, 20, 30, 45, 60, 90, 120},
		},
		[]string{"provider", "model", "status"},
	)

	// TokensTotal tracks estimated tokens processed.
	TokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_tokens_total",
			Help: "Estimated tokens processed",
		},
		[]string{"provider", "direction"},
	)

	// StoreWrites tracks document store write operations.
	StoreWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docstore_writes_total",
			Help: "Document store write operations",
		},
		[]string{"collection", "op", "status"},
	)

	// StoreFlushDuration tracks collection flush latency.
	StoreFlushDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docstore_flush_duration_seconds",
			Help:    "Collection flush duration",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"collection"},
	)

	// CollectionDocuments tracks documents per collection.
	CollectionDocuments = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "docstore_collection_documents",
			Help: "Number of documents per collection",
		},
		[]string{"collection"},
	)

	// EventsPublished tracks lifecycle events published to NATS.
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Lifecycle events published",
		},
		[]string{"type", "status"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordGenerate records metrics for one model generation.
func RecordGenerate(provider, model, status string, duration float64, tokensIn, tokensOut int) {
	GenerateDuration.WithLabelValues(provider, model, status).Observe(duration)
	TokensTotal.WithLabelValues(provider, "in").Add(float64(tokensIn))
	TokensTotal.WithLabelValues(provider, "out").Add(float64(tokensOut))
}

// RecordStoreWrite records one document store mutation.
func RecordStoreWrite(collection, op, status string) {
	StoreWrites.WithLabelValues(collection, op, status).Inc()
}
