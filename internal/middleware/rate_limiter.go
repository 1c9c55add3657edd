package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"stockledger/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// CounterStore is a keyed counter that expires each key after its window.
// infra.RedisCounter implements it.
type CounterStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// LoginRateLimiter limits login attempts to 20 per minute per IP.
func LoginRateLimiter(counter CounterStore) gin.HandlerFunc {
	return limit(counter, "login:", 20, time.Minute, "too many login attempts, try again in a minute")
}

// RateLimiter is the general fixed-window limiter, keyed by client IP.
func RateLimiter(counter CounterStore, max int, window time.Duration) gin.HandlerFunc {
	return limit(counter, "api:", max, window, "too many requests, try again shortly")
}

func limit(counter CounterStore, prefix string, max int, window time.Duration, msg string) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, ttl, err := counter.Incr(c.Request.Context(), prefix+c.ClientIP(), window)
		if err != nil {
			// Fail open: a Redis outage must not take the API down with it.
			log.Warn().Err(err).Str("request_id", c.GetString(RequestIDKey)).Msg("rate limiter unavailable")
			c.Next()
			return
		}
		if n > int64(max) {
			if ttl <= 0 {
				ttl = window
			}
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(ttl.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New(msg))
			return
		}
		c.Next()
	}
}
