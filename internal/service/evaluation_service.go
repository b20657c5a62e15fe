package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grader-api/internal/dto"
	"github.com/noah-isme/gema-grader-api/internal/middleware"
	"github.com/noah-isme/gema-grader-api/internal/observability"
	"github.com/noah-isme/gema-grader-api/pkg/grading"
	"github.com/noah-isme/gema-grader-api/pkg/imageref"
)

// Grader is the subset of the grading pipeline the service drives.
type Grader interface {
	Run(ctx context.Context, sub grading.Submission) (grading.Outcome, error)
	Transcribe(ctx context.Context, src imageref.Source, opts grading.TranscribeOptions) (grading.Transcription, error)
}

// EvaluationService grades submissions and reports the outcome.
type EvaluationService interface {
	Evaluate(ctx context.Context, variant grading.Variant, req dto.EvaluationRequest) (dto.EvaluationResponse, error)
	Transcribe(ctx context.Context, req dto.TranscriptionRequest) (dto.TranscriptionResponse, error)
}

const evaluationComponent = "evaluation_service"

type evaluationService struct {
	grader    Grader
	events    EventPublisher
	notifier  NotificationService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewEvaluationService constructs an evaluation service. events and notifier may be nil.
func NewEvaluationService(grader Grader, events EventPublisher, notifier NotificationService, validate *validator.Validate, logger zerolog.Logger) EvaluationService {
	return &evaluationService{
		grader:    grader,
		events:    events,
		notifier:  notifier,
		validator: validate,
		logger:    logger.With().Str("component", evaluationComponent).Logger(),
	}
}

func (s *evaluationService) Evaluate(ctx context.Context, variant grading.Variant, req dto.EvaluationRequest) (dto.EvaluationResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.EvaluationResponse{}, err
	}

	id := uuid.NewString()
	logger := contextLogger(ctx, s.logger, evaluationComponent).With().
		Str("evaluation_id", id).
		Str("variant", string(variant)).
		Logger()

	submission := grading.Submission{
		Variant: variant,
		Answer:  imageref.Parse(req.Path),
		Context: grading.EvaluationContext{
			Question:   req.AssignQue,
			GradeLevel: string(req.StudentClass),
			MaxMarks:   float64(req.AssignmentMaxMarks),
			Reference:  imageref.Parse(req.ExpectedOutputPath),
			Notes:      req.Notes,
		},
	}

	outcome, err := s.grader.Run(ctx, submission)
	s.report(ctx, id, submission, outcome, err)
	if err != nil {
		logger.Warn().Err(err).Str("error_kind", string(grading.KindOf(err))).Msg("evaluation failed")
		return dto.EvaluationResponse{}, err
	}

	logger.Info().
		Float64("score", outcome.Result.Score).
		Float64("max_marks", submission.Context.MaxMarks).
		Msg("evaluation completed")

	resp := dto.EvaluationResponse{
		ID:            id,
		Variant:       string(variant),
		Result:        outcome.Result,
		RawStage1Text: outcome.Stage1Text,
		RefinedText:   outcome.RefinedText,
	}

	if req.NotifyEmail != "" && s.notifier != nil {
		if err := s.notifier.NotifyEvaluation(ctx, req.NotifyEmail, variant, submission.Context.MaxMarks, outcome.Result); err != nil {
			logger.Warn().Err(err).Str("to", maskEmailAddress(req.NotifyEmail)).Msg("evaluation notification failed")
		} else {
			resp.Notified = true
		}
	}

	return resp, nil
}

func (s *evaluationService) report(ctx context.Context, id string, sub grading.Submission, outcome grading.Outcome, err error) {
	event := EvaluationEvent{
		ID:            id,
		Variant:       string(sub.Variant),
		Outcome:       "success",
		MaxMarks:      sub.Context.MaxMarks,
		CorrelationID: middleware.CorrelationIDFromContext(ctx),
	}
	if err != nil {
		event.Outcome = "failed"
		event.ErrorKind = string(grading.KindOf(err))
	} else {
		score := outcome.Result.Score
		event.Score = &score
	}

	label := event.Outcome
	if event.ErrorKind != "" {
		label = event.ErrorKind
	}
	observability.Evaluations().WithLabelValues(event.Variant, label).Inc()

	if s.events == nil {
		return
	}
	if pubErr := s.events.Publish(context.WithoutCancel(ctx), event); pubErr != nil {
		logger := contextLogger(ctx, s.logger, evaluationComponent)
		logger.Warn().Err(pubErr).Str("evaluation_id", id).Msg("evaluation event not published")
	}
}

func (s *evaluationService) Transcribe(ctx context.Context, req dto.TranscriptionRequest) (dto.TranscriptionResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.TranscriptionResponse{}, err
	}

	opts := grading.TranscribeOptions{
		Refine:         boolOr(req.Refine, true),
		Format:         boolOr(req.Format, true),
		ProblemContext: req.Context,
		Detail:         req.Detail,
	}

	transcription, err := s.grader.Transcribe(ctx, imageref.Parse(req.Path), opts)
	if err != nil {
		logger := contextLogger(ctx, s.logger, evaluationComponent)
		logger.Warn().
			Err(err).
			Str("error_kind", string(grading.KindOf(err))).
			Msg("transcription failed")
		return dto.TranscriptionResponse{}, err
	}

	return dto.NewTranscriptionResponse(transcription), nil
}

func boolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}
