package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	billingdomain "github.com/smallbiznis/orderflow/internal/billing/domain"
	inventorydomain "github.com/smallbiznis/orderflow/internal/inventory/domain"
	notificationdomain "github.com/smallbiznis/orderflow/internal/notification/domain"
	orderdomain "github.com/smallbiznis/orderflow/internal/order/domain"
	queuedomain "github.com/smallbiznis/orderflow/internal/queue/domain"
	pkgdb "github.com/smallbiznis/orderflow/pkg/db"
)

// ValidationError is a 400 raised by the HTTP layer itself, for query
// parameters and path values.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Field   string `json:"field,omitempty"`
	OrderID string `json:"orderId,omitempty"`
}

var (
	ErrNotFound           = errors.New("not_found")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, payload)
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func newValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

func mapError(err error) (int, errorResponse) {
	if err == nil {
		return http.StatusInternalServerError, errorResponse{Error: "Internal server error"}
	}

	var orderErr *orderdomain.ValidationError
	if errors.As(err, &orderErr) {
		return http.StatusBadRequest, errorResponse{Error: orderErr.Message, Field: orderErr.Field}
	}

	var reqErr *ValidationError
	if errors.As(err, &reqErr) {
		return http.StatusBadRequest, errorResponse{Error: reqErr.Message, Field: reqErr.Field}
	}

	var pubErr *orderdomain.PublishError
	if errors.As(err, &pubErr) {
		return http.StatusInternalServerError, errorResponse{
			Error:   "Failed to publish order event",
			Message: pubErr.Err.Error(),
			OrderID: pubErr.OrderID,
		}
	}

	switch {
	case errors.Is(err, orderdomain.ErrInvalidID):
		return http.StatusBadRequest, errorResponse{Error: "Invalid order id", Field: "id"}
	case errors.Is(err, queuedomain.ErrEmptyQueueName):
		return http.StatusBadRequest, errorResponse{Error: "Queue name is required", Field: "name"}
	case isNotFoundError(err):
		return http.StatusNotFound, errorResponse{Error: "Not found", Message: err.Error()}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorResponse{Error: "Too many requests", Message: "rate_limited"}
	case errors.Is(err, ErrServiceUnavailable), pkgdb.IsTransient(err):
		return http.StatusServiceUnavailable, errorResponse{Error: "Service unavailable"}
	default:
		return http.StatusInternalServerError, errorResponse{Error: "Internal server error", Message: err.Error()}
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, orderdomain.ErrNotFound),
		errors.Is(err, inventorydomain.ErrProductNotFound),
		errors.Is(err, billingdomain.ErrNotFound),
		errors.Is(err, notificationdomain.ErrNotFound):
		return true
	default:
		return false
	}
}

func classifyErrorForLog(err error) string {
	var (
		orderErr *orderdomain.ValidationError
		reqErr   *ValidationError
		pubErr   *orderdomain.PublishError
	)
	switch {
	case errors.As(err, &orderErr), errors.As(err, &reqErr), errors.Is(err, orderdomain.ErrInvalidID):
		return "validation"
	case errors.As(err, &pubErr):
		return "publish"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case isNotFoundError(err):
		return "not_found"
	case errors.Is(err, ErrServiceUnavailable), pkgdb.IsTransient(err):
		return "unavailable"
	default:
		return "internal"
	}
}
