package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/makebelieve-sk/Messenger-sub000/internal/cache"
	apierrors "github.com/makebelieve-sk/Messenger-sub000/internal/errors"
	"github.com/makebelieve-sk/Messenger-sub000/internal/logger"
	"go.uber.org/zap"
)

// RedisRateLimitMiddleware creates a distributed rate limiter backed by
// Redis so the limit holds across gateway instances. With no Redis
// client the middleware degrades to a pass-through.
func RedisRateLimitMiddleware(redisClient *cache.RedisClient, maxRequests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if redisClient == nil {
			c.Next()
			return
		}

		clientIP := c.ClientIP()
		key := fmt.Sprintf("rate_limit:%s", clientIP)
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		count, err := redisClient.IncrBy(ctx, key, 1)
		if err != nil {
			// A broken limiter fails open: pushing notifications is
			// best-effort anyway
			logger.Log.Warn("Rate limit check failed, allowing request",
				zap.String("client_ip", clientIP),
				zap.Error(err))
			c.Next()
			return
		}

		// First request in this window starts the clock
		if count == 1 {
			if err := redisClient.Expire(ctx, key, window); err != nil {
				logger.Log.Warn("Failed to set rate limit expiration",
					zap.String("client_ip", clientIP),
					zap.Error(err))
			}
		}

		if count > int64(maxRequests) {
			logger.Log.Warn("Rate limit exceeded",
				zap.String("client_ip", clientIP),
				zap.Int("max_requests", maxRequests),
				zap.Int64("current_requests", count))
			apiErr := apierrors.RateLimited("rate limit exceeded, retry later")
			c.AbortWithStatusJSON(apiErr.Status, apiErr)
			return
		}

		c.Next()
	}
}
