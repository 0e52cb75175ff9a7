package server

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	obslogger "github.com/smallbiznis/rentbook/internal/observability/logger"
	"github.com/smallbiznis/rentbook/internal/ratelimit"
	"go.uber.org/zap"
)

const contextTenancyIDKey = "tenancy_id"

// TenancyContext exposes the tenancy path id to the request logger.
func TenancyContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := strings.TrimSpace(c.Param("id")); id != "" {
			c.Set(contextTenancyIDKey, id)
		}
		c.Next()
	}
}

type writeLimiter interface {
	Allow(ctx context.Context, clientKey string) (ratelimit.Result, error)
}

// RateLimitWrites throttles mutating requests per client IP. Reads pass
// through, and so does every request while the limiter store is failing.
func RateLimitWrites(limiter writeLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil || !isWriteMethod(c.Request.Method) {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		res, err := limiter.Allow(ctx, c.ClientIP())
		if err != nil {
			obslogger.FromContext(ctx).Warn("rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !res.Allowed {
			seconds := int(math.Ceil(res.RetryAfter.Seconds()))
			if seconds < 1 {
				seconds = 1
			}
			c.Header("Retry-After", strconv.Itoa(seconds))
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}

func isWriteMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}
