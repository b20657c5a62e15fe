package observability

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce       sync.Once
	httpRequestsTotal  *prometheus.CounterVec
	httpLatencySeconds *prometheus.HistogramVec
	evaluationsTotal   *prometheus.CounterVec
	notificationsTotal *prometheus.CounterVec
	uploadsTotal       *prometheus.CounterVec
	uploadLatency      prometheus.Histogram
	eventsPublished    *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the grading service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grader_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "grader_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"method", "route"})

		evaluationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grader_evaluations_total",
			Help: "Evaluations by variant and outcome kind.",
		}, []string{"variant", "outcome"})

		notificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grader_notifications_total",
			Help: "Notification e-mails by delivery status.",
		}, []string{"status"})

		uploadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grader_uploads_total",
			Help: "Answer image uploads by outcome.",
		}, []string{"outcome"})

		uploadLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "grader_upload_latency_seconds",
			Help:    "Time spent validating and storing uploads.",
			Buckets: prometheus.DefBuckets,
		})

		eventsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grader_events_published_total",
			Help: "Evaluation events published by transport and status.",
		}, []string{"transport", "status"})

		prometheus.MustRegister(httpRequestsTotal, httpLatencySeconds, evaluationsTotal, notificationsTotal, uploadsTotal, uploadLatency, eventsPublished)
	})
}

// HTTPRequests exposes the request counter.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the request latency histogram.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// Evaluations exposes the evaluation outcome counter.
func Evaluations() *prometheus.CounterVec {
	RegisterMetrics()
	return evaluationsTotal
}

// Notifications exposes the notification delivery counter.
func Notifications() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsTotal
}

// Uploads exposes the upload outcome counter.
func Uploads() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadsTotal
}

// UploadLatency exposes the upload latency histogram.
func UploadLatency() prometheus.Histogram {
	RegisterMetrics()
	return uploadLatency
}

// EventsPublished exposes the event publishing counter.
func EventsPublished() *prometheus.CounterVec {
	RegisterMetrics()
	return eventsPublished
}

// MetricsHandler serves the default registry, which also carries the llm and grading collectors.
func MetricsHandler() fiber.Handler {
	RegisterMetrics()
	return adaptor.HTTPHandler(promhttp.Handler())
}
