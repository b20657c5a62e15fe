package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grader-api/internal/dto"
	"github.com/noah-isme/gema-grader-api/internal/service"
	"github.com/noah-isme/gema-grader-api/internal/utils"
)

// NotificationHandler exposes the e-mail notification endpoint.
type NotificationHandler struct {
	service service.NotificationService
	logger  zerolog.Logger
}

// NewNotificationHandler constructs a notification handler.
func NewNotificationHandler(service service.NotificationService, logger zerolog.Logger) *NotificationHandler {
	return &NotificationHandler{
		service: service,
		logger:  logger.With().Str("component", "notification_handler").Logger(),
	}
}

// Register wires notification routes.
func (h *NotificationHandler) Register(router fiber.Router) {
	router.Post("/email", h.sendEmail)
}

func (h *NotificationHandler) sendEmail(c *fiber.Ctx) error {
	var payload dto.EmailNotificationRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.FailWithKind(c, fiber.StatusBadRequest, kindInvalidPayload, "invalid payload", fiber.Map{"error": err.Error()})
	}

	response, err := h.service.Send(c.UserContext(), payload)
	if err != nil {
		switch {
		case isValidationError(err):
			return utils.FailWithKind(c, fiber.StatusBadRequest, kindInvalidPayload, "invalid payload", validationDetails(err))
		case errors.Is(err, service.ErrNotificationEmpty):
			return utils.FailWithKind(c, fiber.StatusBadRequest, "empty_body", err.Error(), nil)
		case errors.Is(err, service.ErrNotificationDuplicate):
			return utils.FailWithKind(c, fiber.StatusTooManyRequests, "duplicate", "duplicate notification", nil)
		case errors.Is(err, service.ErrMailerUnavailable):
			return utils.FailWithKind(c, fiber.StatusServiceUnavailable, "mailer_unavailable", "mail relay not configured", nil)
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to send notification")
			return utils.FailWithKind(c, fiber.StatusBadGateway, "delivery_failed", "failed to send notification", nil)
		}
	}

	return utils.SendSuccess(c, "notification sent", response)
}
