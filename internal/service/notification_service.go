package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-grader-api/internal/dto"
	"github.com/noah-isme/gema-grader-api/internal/observability"
	"github.com/noah-isme/gema-grader-api/pkg/grading"
	"github.com/noah-isme/gema-grader-api/pkg/mailer"
)

const (
	notificationStatusSent = "sent"
	defaultDedupeTTL       = 5 * time.Minute
	notificationComponent  = "notification_service"
)

var (
	// ErrNotificationDuplicate indicates the same e-mail was sent recently.
	ErrNotificationDuplicate = errors.New("duplicate notification")
	// ErrMailerUnavailable indicates no SMTP relay is configured.
	ErrMailerUnavailable = errors.New("mail relay unavailable")
	// ErrNotificationEmpty indicates the body was empty after sanitization.
	ErrNotificationEmpty = errors.New("notification body empty after sanitization")
)

// MailSender delivers a composed message.
type MailSender interface {
	Send(ctx context.Context, msg mailer.Message) error
}

// NotificationService sends e-mail notifications through the SMTP relay.
type NotificationService interface {
	Send(ctx context.Context, req dto.EmailNotificationRequest) (dto.EmailNotificationResponse, error)
	NotifyEvaluation(ctx context.Context, to string, variant grading.Variant, maxMarks float64, result grading.Result) error
}

type notificationService struct {
	sender    MailSender
	cache     *redis.Client
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	htmlPol   *bluemonday.Policy
	markdown  goldmark.Markdown
	dedupeTTL time.Duration
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewNotificationService constructs a notification service. A nil sender makes every send fail with ErrMailerUnavailable.
func NewNotificationService(sender MailSender, cache *redis.Client, validate *validator.Validate, logger zerolog.Logger) NotificationService {
	return &notificationService{
		sender:    sender,
		cache:     cache,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		htmlPol:   bluemonday.UGCPolicy(),
		markdown:  goldmark.New(goldmark.WithExtensions(extension.GFM)),
		dedupeTTL: defaultDedupeTTL,
		logger:    logger.With().Str("component", notificationComponent).Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/gema-grader-api/internal/service/notification"),
	}
}

func (s *notificationService) Send(ctx context.Context, req dto.EmailNotificationRequest) (dto.EmailNotificationResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.EmailNotificationResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "notifications.email", trace.WithAttributes(
		attribute.String("notification.to", maskEmailAddress(req.To)),
	))
	defer span.End()

	subject := strings.TrimSpace(s.sanitizer.Sanitize(req.Subject))
	body := strings.TrimSpace(s.sanitizer.Sanitize(req.Body))
	if body == "" {
		return dto.EmailNotificationResponse{}, ErrNotificationEmpty
	}

	checksum := computeChecksum(strings.ToLower(strings.TrimSpace(req.To)), subject, body)
	span.SetAttributes(attribute.String("notification.checksum", checksum))

	key := fmt.Sprintf("notification:dedupe:%s", checksum)
	claimed := false
	if s.cache != nil {
		ok, err := s.cache.SetNX(ctx, key, 1, s.dedupeTTL).Result()
		if err != nil {
			s.logger.Warn().Err(err).Msg("notification dedupe check failed")
		} else if !ok {
			observability.Notifications().WithLabelValues("duplicate").Inc()
			span.SetStatus(codes.Error, "duplicate")
			return dto.EmailNotificationResponse{}, ErrNotificationDuplicate
		}
		claimed = ok
	}

	msg, err := s.render(req.To, subject, body)
	if err == nil {
		err = s.deliver(ctx, msg)
	}
	if err != nil {
		if claimed {
			s.release(ctx, key)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "delivery failed")
		return dto.EmailNotificationResponse{}, err
	}

	reference := uuid.NewString()
	logger := contextLogger(ctx, s.logger, notificationComponent)
	logger.Info().
		Str("reference_id", reference).
		Str("to", maskEmailAddress(req.To)).
		Msg("notification e-mail sent")

	return dto.EmailNotificationResponse{ReferenceID: reference, Status: notificationStatusSent}, nil
}

// NotifyEvaluation e-mails a markdown summary of a graded submission.
func (s *notificationService) NotifyEvaluation(ctx context.Context, to string, variant grading.Variant, maxMarks float64, result grading.Result) error {
	subject := fmt.Sprintf("Your %s submission was graded: %s/%s", variant, formatMarks(result.Score), formatMarks(maxMarks))
	msg, err := s.render(to, subject, evaluationSummary(result, maxMarks))
	if err != nil {
		return err
	}
	return s.deliver(ctx, msg)
}

// release drops a dedupe claim so a failed send can be retried.
func (s *notificationService) release(ctx context.Context, key string) {
	if err := s.cache.Del(context.WithoutCancel(ctx), key).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("notification dedupe release failed")
	}
}

func (s *notificationService) deliver(ctx context.Context, msg mailer.Message) error {
	if s.sender == nil {
		observability.Notifications().WithLabelValues("unavailable").Inc()
		return ErrMailerUnavailable
	}

	if err := s.sender.Send(ctx, msg); err != nil {
		observability.Notifications().WithLabelValues("failed").Inc()
		if errors.Is(err, mailer.ErrNotConfigured) {
			return ErrMailerUnavailable
		}
		logger := contextLogger(ctx, s.logger, notificationComponent)
		logger.Error().Err(err).Str("to", maskEmailAddress(msg.To)).Msg("notification delivery failed")
		return fmt.Errorf("deliver notification: %w", err)
	}

	observability.Notifications().WithLabelValues(notificationStatusSent).Inc()
	return nil
}

func (s *notificationService) render(to, subject, markdown string) (mailer.Message, error) {
	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(markdown), &buf); err != nil {
		return mailer.Message{}, fmt.Errorf("render notification body: %w", err)
	}

	return mailer.Message{
		To:      strings.TrimSpace(to),
		Subject: subject,
		Text:    markdown,
		HTML:    s.htmlPol.Sanitize(buf.String()),
	}, nil
}

func evaluationSummary(result grading.Result, maxMarks float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Score:** %s / %s\n", formatMarks(result.Score), formatMarks(maxMarks))
	writeSection(&b, "Feedback", result.Feedback)
	writeSection(&b, "Areas of improvement", result.AreaOfImprovement)
	writeSection(&b, "Further reading", result.ScholarlyReferences)
	return b.String()
}

func writeSection(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n## %s\n\n", title)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", strings.TrimSpace(item))
	}
}
