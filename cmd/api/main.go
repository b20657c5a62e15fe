package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grader-api/internal/bootstrap"
	"github.com/noah-isme/gema-grader-api/internal/config"
	"github.com/noah-isme/gema-grader-api/internal/database"
	"github.com/noah-isme/gema-grader-api/internal/dto"
	"github.com/noah-isme/gema-grader-api/internal/handler"
	"github.com/noah-isme/gema-grader-api/internal/middleware"
	"github.com/noah-isme/gema-grader-api/internal/router"
	"github.com/noah-isme/gema-grader-api/internal/service"
	cloud "github.com/noah-isme/gema-grader-api/pkg/cloudinary"
	"github.com/noah-isme/gema-grader-api/pkg/mailer"
	"github.com/noah-isme/gema-grader-api/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := bootstrap.NewLogger(cfg, os.Stdout)
	ctx := context.Background()

	pipeline, err := bootstrap.NewPipeline(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build grading pipeline")
	}

	probes := map[string]handler.HealthProbe{}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable; notification dedupe and redis events disabled")
		} else {
			defer redisClient.Close()
			probes["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
		}
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable; nats events disabled")
		} else {
			defer natsConn.Drain()
			probes["nats"] = func(context.Context) error {
				if !natsConn.IsConnected() {
					return errors.New("nats disconnected")
				}
				return nil
			}
		}
	}

	var sender service.MailSender
	smtpSender, err := mailer.NewSMTPSender(mailer.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	}, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("smtp relay disabled")
	} else {
		sender = smtpSender
	}

	fileStorage, err := newFileStorage(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to prepare upload storage")
	}

	validate := dto.NewValidator()

	events := service.NewEventPublisher(redisClient, natsConn, cfg.EventsChannel, logger)
	notificationService := service.NewNotificationService(sender, redisClient, validate, logger)
	evaluationService := service.NewEvaluationService(pipeline, events, notificationService, validate, logger)
	uploadService := service.NewUploadService(fileStorage, cfg.UploadMaxSizeMB, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    (cfg.UploadMaxSizeMB + 1) * 1024 * 1024,
		ReadTimeout:  30 * time.Second,
		// Grading makes up to three sequential model calls.
		WriteTimeout: 3 * time.Minute,
	})

	var limiter fiber.Handler
	if cfg.RateLimitMax > 0 {
		limiter = middleware.RateLimit("api", cfg.RateLimitMax, cfg.RateLimitWindow)
	}

	middleware.Register(app, middleware.Config{Logger: &logger, AccessLog: cfg.AppEnv == "development"})
	router.Register(app, cfg, router.Dependencies{
		EvaluationHandler:   handler.NewEvaluationHandler(evaluationService, logger),
		UploadHandler:       handler.NewUploadHandler(uploadService, logger),
		NotificationHandler: handler.NewNotificationHandler(notificationService, logger),
		HealthProbes:        probes,
		RateLimiter:         limiter,
	})

	go func() {
		logger.Info().Str("address", cfg.HTTPAddress()).Str("provider", cfg.AIProvider).Msg("grading api listening")
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(app, logger)
}

func newFileStorage(cfg config.Config, logger zerolog.Logger) (service.FileStorage, error) {
	if cfg.CloudinaryEnabled() {
		return cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
	}
	return storage.NewLocal(cfg.UploadDir, logger)
}

func waitForShutdown(app *fiber.App, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
