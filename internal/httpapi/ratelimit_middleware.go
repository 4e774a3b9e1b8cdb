package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/merl-labs/clob/internal/ratelimit"
)

// RateLimitMiddleware throttles each authenticated trader independently,
// grounded on internal/api/middleware/security.go's
// SecurityMiddleware.RateLimiter: same rate-limit headers on every
// response, same 429 on exhaustion. It must run after AuthMiddleware so
// "trader" is already set in the request context.
func RateLimitMiddleware(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		traderHex, _ := c.Get("trader")
		trader, err := parseTraderKey(traderHex.(string))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid trader claim"})
			return
		}

		decision, err := limiter.Allow(c.Request.Context(), trader)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "rate limiter unavailable"})
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(decision.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(decision.ResetUnix, 10))

		if !decision.Allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
