package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grader-api/internal/observability"
)

// EventEvaluationCompleted is emitted after every evaluation attempt.
const EventEvaluationCompleted = "evaluation.completed"

// EvaluationEvent is the broker payload describing one evaluation attempt.
type EvaluationEvent struct {
	Type          string    `json:"type"`
	ID            string    `json:"id"`
	Variant       string    `json:"variant"`
	Outcome       string    `json:"outcome"`
	ErrorKind     string    `json:"error_kind,omitempty"`
	Score         *float64  `json:"score,omitempty"`
	MaxMarks      float64   `json:"max_marks"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Source        string    `json:"source"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// EventPublisher fans evaluation events out to the configured brokers.
type EventPublisher interface {
	Publish(ctx context.Context, event EvaluationEvent) error
}

type brokerPublisher struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	nodeID       string
	logger       zerolog.Logger
}

// NewEventPublisher builds a publisher over redis pub/sub and NATS. Either connection may be nil.
func NewEventPublisher(redisClient *redis.Client, natsConn *nats.Conn, channelBase string, logger zerolog.Logger) EventPublisher {
	channel := strings.TrimSpace(channelBase)
	subject := ""
	if channel != "" {
		subject = strings.ReplaceAll(channel, ":", ".")
	}

	return &brokerPublisher{
		redis:        redisClient,
		redisChannel: channel,
		nats:         natsConn,
		natsSubject:  subject,
		nodeID:       uuid.NewString(),
		logger:       logger.With().Str("component", "event_publisher").Logger(),
	}
}

func (p *brokerPublisher) Publish(ctx context.Context, event EvaluationEvent) error {
	if event.Type == "" {
		event.Type = EventEvaluationCompleted
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	event.Source = p.nodeID

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	var firstErr error
	if p.redis != nil && p.redisChannel != "" {
		err := p.redis.Publish(ctx, p.redisChannel, payload).Err()
		p.record("redis", err)
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if p.nats != nil && p.natsSubject != "" {
		err := p.nats.Publish(p.natsSubject, payload)
		p.record("nats", err)
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

func (p *brokerPublisher) record(transport string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		p.logger.Warn().Err(err).Str("transport", transport).Msg("failed to publish evaluation event")
	}
	observability.EventsPublished().WithLabelValues(transport, status).Inc()
}
