package router_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-grader-api/internal/config"
	"github.com/noah-isme/gema-grader-api/internal/dto"
	"github.com/noah-isme/gema-grader-api/internal/handler"
	"github.com/noah-isme/gema-grader-api/internal/router"
	"github.com/noah-isme/gema-grader-api/pkg/grading"
)

type evaluationStub struct{ variant grading.Variant }

func (e *evaluationStub) Evaluate(_ context.Context, variant grading.Variant, _ dto.EvaluationRequest) (dto.EvaluationResponse, error) {
	e.variant = variant
	return dto.EvaluationResponse{ID: "eval-1", Variant: string(variant)}, nil
}

func (e *evaluationStub) Transcribe(context.Context, dto.TranscriptionRequest) (dto.TranscriptionResponse, error) {
	return dto.TranscriptionResponse{}, nil
}

func TestRegisterWiresRoutes(t *testing.T) {
	svc := &evaluationStub{}
	app := fiber.New()
	router.Register(app, config.Config{AppName: "GEMA Grader API"}, router.Dependencies{
		EvaluationHandler: handler.NewEvaluationHandler(svc, zerolog.New(io.Discard)),
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "GEMA Grader API", resp.Header.Get("X-Application"))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/evaluations/diagram", strings.NewReader(`{"path":"a.png"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, grading.VariantDiagram, svc.variant)
}

func TestRegisterSkipsMissingHandlers(t *testing.T) {
	app := fiber.New()
	router.Register(app, config.Config{}, router.Dependencies{})

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/uploads", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
