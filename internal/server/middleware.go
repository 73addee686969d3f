package server

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"bidding-gateway/internal/auth"
	"bidding-gateway/internal/biddingerrors"
	"bidding-gateway/internal/metrics"
	"bidding-gateway/internal/ratelimit"
	"bidding-gateway/services/bidding/helpers"
	"bidding-gateway/utils"

	"github.com/gin-gonic/gin"
)

// RequestLoggerMiddleware logs incoming requests with timing
func RequestLoggerMiddleware(c *gin.Context) {
	start := time.Now()

	c.Next() // process request

	utils.Info("HTTP Request", map[string]any{
		"method":  c.Request.Method,
		"path":    c.Request.URL.Path,
		"status":  c.Writer.Status(),
		"latency": time.Since(start).String(),
	})
}

// AuthMiddleware verifies the bearer token and stores the identity under helpers.IdentityKey
func AuthMiddleware(verifier auth.Verifier, timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.TokenFromRequest(c.Request)
		if token == "" {
			utils.JSONError(c, http.StatusUnauthorized, biddingerrors.ErrUnauthenticated, "authentication required")
			c.Abort()
			return
		}

		ctx := c.Request.Context()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		identity, err := verifier.VerifyToken(ctx, token)
		if err != nil {
			utils.JSONError(c, http.StatusUnauthorized, fmt.Errorf("verify token: %w", err), "authentication required")
			utils.Warn("AuthMiddleware: token rejected", map[string]any{
				"path":  c.Request.URL.Path,
				"error": err.Error(),
			})
			c.Abort()
			return
		}

		c.Set(helpers.IdentityKey, identity)
		c.Next()
	}
}

// RateLimitMiddleware charges one action of class to the caller's identity.
// It must run after AuthMiddleware; requests without an identity pass through.
func RateLimitMiddleware(limiter *ratelimit.Limiter, class ratelimit.Class, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := helpers.IdentityFromContext(c)
		if !ok {
			c.Next()
			return
		}

		decision := limiter.Allow(identity.UserID, class)
		if !decision.Allowed {
			m.RateLimited(string(class))
			retryAfter := int(math.Ceil(decision.RetryAfter.Seconds()))
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			utils.JSONError(c, http.StatusTooManyRequests, biddingerrors.ErrRateLimited, "too many requests")
			utils.Warn("RateLimitMiddleware: request throttled", map[string]any{
				"user_id":     identity.UserID,
				"class":       string(class),
				"retry_after": decision.RetryAfter.String(),
			})
			c.Abort()
			return
		}

		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		c.Next()
	}
}
