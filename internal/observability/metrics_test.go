package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRegisterMetricsIsIdempotent(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()
	require.NotNil(t, Evaluations())
	require.NotNil(t, HTTPRequests())
}

func TestMetricsHandlerExposesCollectors(t *testing.T) {
	Evaluations().WithLabelValues("text", "success").Inc()
	before := testutil.ToFloat64(Evaluations().WithLabelValues("text", "success"))
	Evaluations().WithLabelValues("text", "success").Inc()
	require.Equal(t, before+1, testutil.ToFloat64(Evaluations().WithLabelValues("text", "success")))

	app := fiber.New()
	app.Get("/metrics", MetricsHandler())

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `grader_evaluations_total{outcome="success",variant="text"}`)
}
