package middleware

import (
	"math"
	"strconv"

	"github.com/labstack/echo/v4"

	"jobhub/internal/infrastructure/ratelimit"
	"jobhub/pkg/errors"
	"jobhub/pkg/logger"
	"jobhub/pkg/response"
)

// RateLimit throttles action per authenticated user. Requests without a uid
// are keyed by client IP.
func RateLimit(limiter *ratelimit.RateLimiter, action string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key, ok := c.Get("uid").(string)
			if !ok || key == "" {
				key = "ip:" + c.RealIP()
			}

			allowed, retryAfter := limiter.Allow(key, action)
			if !allowed {
				logger.Warn("RATE LIMIT: %s blocked for %s (retry in %v)", key, action, retryAfter)

				seconds := int(math.Ceil(retryAfter.Seconds()))
				c.Response().Header().Set("Retry-After", strconv.Itoa(seconds))
				return response.ErrorWithData(c, errors.TooManyRequests("Rate limit exceeded"), map[string]interface{}{
					"retry_after": seconds,
				})
			}

			return next(c)
		}
	}
}
