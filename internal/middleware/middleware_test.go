package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestCorrelationIDPropagatesIncomingHeader(t *testing.T) {
	var logs bytes.Buffer
	app := fiber.New()
	app.Use(CorrelationID(zerolog.New(&logs)))
	app.Get("/", func(c *fiber.Ctx) error {
		zerolog.Ctx(c.UserContext()).Info().Msg("handled")
		return c.SendString(CorrelationIDFromContext(c.UserContext()))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-42")
	resp, err := app.Test(req)
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "req-42", string(body))
	require.Equal(t, "req-42", resp.Header.Get(HeaderCorrelationID))
	require.Contains(t, logs.String(), `"correlation_id":"req-42"`)
}

func TestCorrelationIDGeneratesAndTruncates(t *testing.T) {
	app := fiber.New()
	app.Use(CorrelationID(zerolog.Nop()))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString(GetCorrelationID(c)) })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	require.Len(t, resp.Header.Get(HeaderCorrelationID), 36)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderCorrelationID, strings.Repeat("a", 300))
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Len(t, resp.Header.Get(HeaderCorrelationID), maxCorrelationIDLen)
}

func TestObservabilityLogsAPIRoutesOnly(t *testing.T) {
	var logs bytes.Buffer
	app := fiber.New()
	Register(app, Config{Logger: func() *zerolog.Logger { l := zerolog.New(&logs); return &l }()})
	app.Get("/api/v1/health", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	app.Get("/metrics", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	_, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	require.NotContains(t, logs.String(), "request completed")

	_, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	require.NoError(t, err)
	require.Contains(t, logs.String(), `"route":"/api/v1/health"`)
	require.Contains(t, logs.String(), "request completed")
}

func TestLatencyBucket(t *testing.T) {
	require.Equal(t, "<=250ms", latencyBucket(0))
	require.Equal(t, ">30s", latencyBucket(time.Minute))
}

func TestRateLimitRejectsAfterMax(t *testing.T) {
	app := fiber.New()
	app.Use(RateLimit("test", 2, time.Minute))
	app.Post("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/", nil))
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `"error_kind":"rate_limited"`)
}
