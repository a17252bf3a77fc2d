package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/orderflow/internal/observability/logger"
	"go.uber.org/zap"
)

// CORS allows browser clients on any origin.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		if c.Request.Method == http.MethodOptions {
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, X-Request-Id")
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// allowIntake spends one token of the customer's intake budget. It aborts
// the request and returns false when the budget is exhausted or the limiter
// is unreachable.
func (s *Server) allowIntake(c *gin.Context, customerID string) bool {
	if s.intakeLimiter == nil || !s.intakeLimiter.Enabled() {
		return true
	}

	ctx := c.Request.Context()
	endpoint := normalizeEndpoint(c)

	result, err := s.intakeLimiter.AllowCustomer(ctx, customerID)
	if err != nil {
		logger.FromContext(ctx).Warn("order intake rate limit check failed", zap.Error(err))
		AbortWithError(c, ErrServiceUnavailable)
		return false
	}
	if result.Allowed {
		return true
	}

	logger.FromContext(ctx).Warn("order intake rate limit exceeded",
		zap.String("endpoint", endpoint),
		zap.String("customer_id", customerID),
	)
	s.obsMetrics.RecordRateLimitDenied(ctx, endpoint)

	retryAfter := int(result.RetryAfter.Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}
	c.Header("Retry-After", strconv.Itoa(retryAfter))
	AbortWithError(c, ErrRateLimited)
	return false
}

func normalizeEndpoint(c *gin.Context) string {
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
