package handler

import (
	"errors"
	"net/http"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grader-api/internal/dto"
	"github.com/noah-isme/gema-grader-api/internal/service"
	"github.com/noah-isme/gema-grader-api/internal/utils"
	"github.com/noah-isme/gema-grader-api/pkg/grading"
	"github.com/noah-isme/gema-grader-api/pkg/llm"
	"github.com/noah-isme/gema-grader-api/pkg/prompt"
)

const maxRawTextDetail = 4000

// EvaluationHandler exposes grading and transcription endpoints.
type EvaluationHandler struct {
	service service.EvaluationService
	logger  zerolog.Logger
}

// NewEvaluationHandler constructs an evaluation handler.
func NewEvaluationHandler(service service.EvaluationService, logger zerolog.Logger) *EvaluationHandler {
	return &EvaluationHandler{
		service: service,
		logger:  logger.With().Str("component", "evaluation_handler").Logger(),
	}
}

// Register wires evaluation routes.
func (h *EvaluationHandler) Register(router fiber.Router) {
	router.Post("/evaluations/:variant", h.evaluate)
	router.Post("/transcriptions", h.transcribe)
}

func (h *EvaluationHandler) evaluate(c *fiber.Ctx) error {
	variant, ok := grading.ParseVariant(c.Params("variant"))
	if !ok {
		return utils.FailWithKind(c, fiber.StatusNotFound, "unknown_variant", "unknown evaluation variant", fiber.Map{"variant": c.Params("variant")})
	}

	var payload dto.EvaluationRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.FailWithKind(c, fiber.StatusBadRequest, kindInvalidPayload, "invalid payload", fiber.Map{"error": err.Error()})
	}

	response, err := h.service.Evaluate(c.UserContext(), variant, payload)
	if err != nil {
		return h.fail(c, err)
	}

	return utils.SendSuccess(c, "evaluation completed", response)
}

func (h *EvaluationHandler) transcribe(c *fiber.Ctx) error {
	var payload dto.TranscriptionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.FailWithKind(c, fiber.StatusBadRequest, kindInvalidPayload, "invalid payload", fiber.Map{"error": err.Error()})
	}

	response, err := h.service.Transcribe(c.UserContext(), payload)
	if err != nil {
		return h.fail(c, err)
	}

	return utils.SendSuccess(c, "transcription completed", response)
}

func (h *EvaluationHandler) fail(c *fiber.Ctx, err error) error {
	if isValidationError(err) {
		return utils.FailWithKind(c, fiber.StatusBadRequest, string(grading.KindMissingContext), "invalid payload", validationDetails(err))
	}

	kind := grading.KindOf(err)
	status := statusForKind(kind)
	logger := requestLogger(h.logger, c)

	var details fiber.Map
	var (
		missing   *prompt.MissingContextError
		malformed *llm.MalformedResponseError
		gradeErr  *grading.Error
	)
	switch {
	case errors.As(err, &missing):
		details = fiber.Map{"field": missing.Field}
	case errors.As(err, &malformed):
		details = fiber.Map{"raw_text": truncate(malformed.Text, maxRawTextDetail)}
	}
	if errors.As(err, &gradeErr) {
		if details == nil {
			details = fiber.Map{}
		}
		details["state"] = string(gradeErr.State)
	}

	if status >= fiber.StatusInternalServerError {
		logger.Error().Err(err).Str("error_kind", string(kind)).Msg("grading request failed")
	}

	return utils.FailWithKind(c, status, string(kind), messageForKind(kind, err), details)
}

func statusForKind(kind grading.Kind) int {
	switch kind {
	case grading.KindMissingContext:
		return fiber.StatusBadRequest
	case grading.KindNotFound:
		return fiber.StatusNotFound
	case grading.KindIO:
		return fiber.StatusUnprocessableEntity
	case grading.KindUpstream, grading.KindMalformed:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func messageForKind(kind grading.Kind, err error) string {
	switch kind {
	case grading.KindMissingContext, grading.KindNotFound, grading.KindIO:
		return unwrapMessage(err)
	case grading.KindUpstream:
		return "model request failed"
	case grading.KindMalformed:
		return "model returned an unreadable result"
	default:
		return http.StatusText(fiber.StatusInternalServerError)
	}
}

// unwrapMessage drops the pipeline prefix so clients see the underlying cause.
func unwrapMessage(err error) string {
	var gradeErr *grading.Error
	if errors.As(err, &gradeErr) && gradeErr.Err != nil {
		return gradeErr.Err.Error()
	}
	return err.Error()
}

// truncate cuts s to at most limit bytes without splitting a UTF-8 sequence.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
