package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// HeaderCorrelationID carries the request correlation identifier.
	HeaderCorrelationID = "X-Correlation-ID"
	headerRequestID     = "X-Request-ID"
	localsCorrelationID = "correlation_id"
	maxCorrelationIDLen = 128
)

type correlationIDKey struct{}

// CorrelationID tags every request with an identifier and binds a request-scoped logger to the user context,
// which services pick up through zerolog.Ctx(ctx).
func CorrelationID(base zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := sanitizeCorrelationID(c.Get(HeaderCorrelationID))
		if id == "" {
			id = sanitizeCorrelationID(c.Get(headerRequestID))
		}
		if id == "" {
			id = uuid.NewString()
		}

		c.Locals(localsCorrelationID, id)
		c.Set(HeaderCorrelationID, id)

		scoped := base.With().Str("correlation_id", id).Logger()
		ctx := context.WithValue(c.UserContext(), correlationIDKey{}, id)
		c.SetUserContext(scoped.WithContext(ctx))

		return c.Next()
	}
}

func sanitizeCorrelationID(raw string) string {
	id := strings.TrimSpace(raw)
	if len(id) > maxCorrelationIDLen {
		id = id[:maxCorrelationIDLen]
	}
	return id
}

// CorrelationIDFromContext extracts the correlation identifier from context, if present.
func CorrelationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(correlationIDKey{}).(string); ok {
		return id
	}
	return ""
}

// GetCorrelationID returns the correlation identifier bound to the active request.
func GetCorrelationID(c *fiber.Ctx) string {
	if c == nil {
		return ""
	}
	if id, ok := c.Locals(localsCorrelationID).(string); ok {
		return id
	}
	return CorrelationIDFromContext(c.UserContext())
}
