package middleware

import (
	"moviestream_backend/internal/metrics"
	"moviestream_backend/internal/ratelimit"
	"moviestream_backend/pkg/apperrors"

	"github.com/gin-gonic/gin"
)

// RateLimitMiddleware ограничивает частоту по пользователю, а без auth - по IP.
func RateLimitMiddleware(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := GetUserID(c)
		if key == "" {
			key = "ip:" + c.ClientIP()
		}
		if !limiter.Allow(key) {
			metrics.RecordRateLimited(c.FullPath())
			c.Header("Retry-After", "60")
			apperrors.HandleError(c, apperrors.ErrRateLimited)
			return
		}
		c.Next()
	}
}
