package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/noah-isme/gema-grader-api/internal/utils"
)

// RateLimit caps requests per client IP. Each grading request fans out to paid model calls.
func RateLimit(identifier string, max int, window time.Duration) fiber.Handler {
	if max <= 0 {
		max = 30
	}
	if window <= 0 {
		window = time.Minute
	}

	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			return identifier + ":" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return utils.FailWithKind(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests", fiber.Map{"retry_after": c.GetRespHeader(fiber.HeaderRetryAfter)})
		},
	})
}
