package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hundredk/challenge-tracker/internal/cache"
	"github.com/hundredk/challenge-tracker/internal/metrics"
	"github.com/hundredk/challenge-tracker/pkg/logger"
)

// RateLimiter applies fixed-window limits backed by the shared cache.
type RateLimiter struct {
	cache   cache.Cache
	enabled bool
	log     *logger.Logger
}

// NewRateLimiter creates a rate limiter. A disabled limiter passes everything.
func NewRateLimiter(c cache.Cache, enabled bool, log *logger.Logger) *RateLimiter {
	return &RateLimiter{cache: c, enabled: enabled, log: log}
}

// Limit allows limit requests per window for each user, or each client IP
// on unauthenticated routes. Cache failures let the request through.
func (rl *RateLimiter) Limit(scope string, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.enabled || rl.cache == nil || limit <= 0 {
			c.Next()
			return
		}

		subject := c.ClientIP()
		if userID, ok := UserID(c); ok {
			subject = userID.String()
		}
		key := fmt.Sprintf("rate_limit:%s:%s", scope, subject)

		count, err := cache.FixedWindow(c.Request.Context(), rl.cache, key, window)
		if err != nil {
			rl.log.Warn().Err(err).Str("scope", scope).Msg("Rate limiter unavailable, allowing request")
			c.Next()
			return
		}

		if count > int64(limit) {
			retryAfter := window
			if ttl, err := rl.cache.TTL(c.Request.Context(), key); err == nil && ttl > 0 {
				retryAfter = ttl
			}
			metrics.RecordRateLimited(scope)

			c.Header("Retry-After", strconv.Itoa(int(retryAfter.Seconds()+0.5)))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Too many requests",
				"retry_after": int(retryAfter.Seconds() + 0.5),
				"timestamp":   time.Now().UTC(),
			})
			return
		}
		c.Next()
	}
}
