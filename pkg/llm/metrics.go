package llm

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gema",
		Subsystem: "llm",
		Name:      "request_duration_seconds",
		Help:      "Duration of model completion requests",
	}, []string{"provider", "model"})

	requestFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gema",
		Subsystem: "llm",
		Name:      "request_failures_total",
		Help:      "Number of failed model completion requests",
	}, []string{"provider", "model"})
)

func observe(provider, model string, start time.Time) {
	requestDuration.WithLabelValues(provider, model).Observe(time.Since(start).Seconds())
}

func fail(span trace.Span, provider, model string, err error) *UpstreamError {
	requestFailures.WithLabelValues(provider, model).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return upstream(provider, model, err)
}
