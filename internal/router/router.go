package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-grader-api/internal/config"
	"github.com/noah-isme/gema-grader-api/internal/handler"
	"github.com/noah-isme/gema-grader-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	EvaluationHandler   *handler.EvaluationHandler
	UploadHandler       *handler.UploadHandler
	NotificationHandler *handler.NotificationHandler
	HealthProbes        map[string]handler.HealthProbe
	// RateLimiter guards every route registered after health. Optional.
	RateLimiter fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes))

	if deps.RateLimiter != nil {
		api.Use(deps.RateLimiter)
	}

	if deps.EvaluationHandler != nil {
		deps.EvaluationHandler.Register(api)
	}

	if deps.UploadHandler != nil {
		deps.UploadHandler.Register(api.Group("/uploads"))
	}

	if deps.NotificationHandler != nil {
		deps.NotificationHandler.Register(api.Group("/notifications"))
	}
}
