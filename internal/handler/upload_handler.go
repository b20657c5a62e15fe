package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grader-api/internal/service"
	"github.com/noah-isme/gema-grader-api/internal/utils"
)

// UploadHandler accepts answer images for later grading.
type UploadHandler struct {
	service service.UploadService
	logger  zerolog.Logger
}

// NewUploadHandler constructs an upload handler.
func NewUploadHandler(service service.UploadService, logger zerolog.Logger) *UploadHandler {
	return &UploadHandler{
		service: service,
		logger:  logger.With().Str("component", "upload_handler").Logger(),
	}
}

// Register wires upload routes.
func (h *UploadHandler) Register(router fiber.Router) {
	router.Post("", h.upload)
}

func (h *UploadHandler) upload(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return utils.FailWithKind(c, fiber.StatusBadRequest, "missing_file", "file is required", nil)
	}

	result, err := h.service.Upload(c.UserContext(), file)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUploadTooLarge):
			return utils.FailWithKind(c, fiber.StatusRequestEntityTooLarge, "too_large", err.Error(), nil)
		case errors.Is(err, service.ErrUploadTypeNotAllowed):
			return utils.FailWithKind(c, fiber.StatusBadRequest, "unsupported_type", err.Error(), nil)
		case errors.Is(err, service.ErrUploadMissing):
			return utils.FailWithKind(c, fiber.StatusBadRequest, "missing_file", err.Error(), nil)
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("upload failed")
			return utils.FailWithKind(c, fiber.StatusInternalServerError, "upload_failed", "upload failed", nil)
		}
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "upload successful", result)
}
