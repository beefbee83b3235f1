package middleware

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/macroplate/backend/internal/ratelimit"
)

// quotaExceededMessage is the hint shown to anonymous callers who used up
// their free requests.
const quotaExceededMessage = "Rate limit exceeded. Please sign up or log in to continue using AI features."

// RateLimit gates the expensive AI endpoints. Runs after OptionalAuth so
// authenticated callers pass through uncounted. The store failing entirely
// fails open: serving an extra request beats dropping one.
func RateLimit(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, authenticated := UserID(c)
		key := ratelimit.ClientKey(c.Request)

		res, err := limiter.Allow(c.Request.Context(), key, authenticated)

		var quotaErr *ratelimit.QuotaExceededError
		if errors.As(err, &quotaErr) {
			c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("X-RateLimit-Reset", strconv.FormatInt(quotaErr.ResetAt.Unix(), 10))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":         quotaExceededMessage,
				"limit":         quotaErr.Limit,
				"reset_at":      quotaErr.ResetAt.UTC(),
				"requires_auth": true,
			})
			return
		}
		if err != nil {
			// Both stores down; let the request through.
			c.Next()
			return
		}

		if !authenticated {
			c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			c.Header("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
		}
		c.Next()
	}
}
