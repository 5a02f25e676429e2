// Package metrics holds the Prometheus collectors for the service.
package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "review_responder",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "review_responder",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		},
		[]string{"method", "path"},
	)

	generations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "review_responder",
			Subsystem: "generation",
			Name:      "total",
			Help:      "Response generations by outcome.",
		},
		[]string{"outcome"},
	)

	generationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "review_responder",
			Subsystem: "generation",
			Name:      "duration_seconds",
			Help:      "End-to-end duration of a generation pipeline run.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 8), // 250ms to ~32s
		},
	)

	gateRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "review_responder",
			Subsystem: "lifecycle",
			Name:      "gate_rejections_total",
			Help:      "Requests rejected by a lifecycle gate.",
		},
		[]string{"gate"},
	)

	sentimentFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "review_responder",
			Subsystem: "sentiment",
			Name:      "fallbacks_total",
			Help:      "Sentiment classifications served by the keyword heuristic.",
		},
	)

	providerFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "review_responder",
			Subsystem: "provider",
			Name:      "fallbacks_total",
			Help:      "LLM calls answered by the fallback provider.",
		},
	)

	batchItems = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "review_responder",
			Subsystem: "batch",
			Name:      "items_total",
			Help:      "Batch items processed by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	Registry.MustRegister(
		httpRequests,
		httpDuration,
		generations,
		generationDuration,
		gateRejections,
		sentimentFallbacks,
		providerFallbacks,
		batchItems,
	)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(Registry, promhttp.HandlerOpts{}))
}

// Middleware records request counts and latency per route.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
		}
		path := c.Route().Path
		httpRequests.WithLabelValues(c.Method(), path, strconv.Itoa(status)).Inc()
		httpDuration.WithLabelValues(c.Method(), path).Observe(time.Since(start).Seconds())
		return err
	}
}

func RecordGeneration(success bool, d time.Duration) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	generations.WithLabelValues(outcome).Inc()
	generationDuration.Observe(d.Seconds())
}

func RecordGateRejection(gate string) { gateRejections.WithLabelValues(gate).Inc() }

func RecordSentimentFallback() { sentimentFallbacks.Inc() }

func RecordProviderFallback() { providerFallbacks.Inc() }

func RecordBatchItem(success bool) {
	if success {
		batchItems.WithLabelValues("success").Inc()
		return
	}
	batchItems.WithLabelValues("failure").Inc()
}
