package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/rentbook/internal/audit/domain"
	propertydomain "github.com/smallbiznis/rentbook/internal/property/domain"
	rentdomain "github.com/smallbiznis/rentbook/internal/rent/domain"
	tenancydomain "github.com/smallbiznis/rentbook/internal/tenancy/domain"
	tenantdomain "github.com/smallbiznis/rentbook/internal/tenant/domain"
	"gorm.io/gorm"
)

// retryAfterSeconds is sent with 503 responses for store outages.
const retryAfterSeconds = "5"

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Code    string            `json:"code,omitempty"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
	ErrRateLimited        = errors.New("rate_limited")
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
		if status == http.StatusServiceUnavailable {
			c.Header("Retry-After", retryAfterSeconds)
		}
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Code:    conflictErrorCode(err),
			Message: conflictErrorMessage(err),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, rentdomain.ErrStoreUnavailable),
		errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog feeds the request logger the same type and code the
// client sees.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	code := payload.Code
	if code == "" && len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	if code == "" {
		code = http.StatusText(status)
	}
	return payload.Type, code
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, rentdomain.ErrInvalidScheduleInput):
		return true
	case isPropertyValidationError(err),
		isTenantValidationError(err),
		isTenancyValidationError(err),
		isRentRecordValidationError(err),
		isAuditValidationError(err):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, tenancydomain.ErrPropertyOccupied),
		errors.Is(err, tenancydomain.ErrPropertyInactive),
		errors.Is(err, tenancydomain.ErrNotActive),
		errors.Is(err, rentdomain.ErrInvalidTransition):
		return true
	default:
		return false
	}
}

func conflictErrorCode(err error) string {
	for _, known := range []error{
		tenancydomain.ErrPropertyOccupied,
		tenancydomain.ErrPropertyInactive,
		tenancydomain.ErrNotActive,
		rentdomain.ErrInvalidTransition,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return "conflict"
}

func conflictErrorMessage(err error) string {
	switch {
	case errors.Is(err, tenancydomain.ErrPropertyOccupied):
		return "property already has an active tenancy"
	case errors.Is(err, tenancydomain.ErrPropertyInactive):
		return "property is inactive"
	case errors.Is(err, tenancydomain.ErrNotActive):
		return "tenancy is not active"
	case errors.Is(err, rentdomain.ErrInvalidTransition):
		return "rent record is already paid"
	default:
		return "conflict"
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, propertydomain.ErrNotFound),
		errors.Is(err, tenantdomain.ErrNotFound),
		errors.Is(err, tenancydomain.ErrNotFound),
		errors.Is(err, rentdomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	var scheduleErr *rentdomain.ScheduleInputError
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.As(err, &scheduleErr):
		return scheduleErr.Code
	case errors.Is(err, rentdomain.ErrInvalidScheduleInput):
		return rentdomain.ErrInvalidScheduleInput.Error()
	default:
		return err.Error()
	}
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	default:
		return "invalid value"
	}
}

func isAuditValidationError(err error) bool {
	switch err {
	case auditdomain.ErrInvalidPageToken,
		auditdomain.ErrInvalidTimeRange,
		auditdomain.ErrInvalidAction:
		return true
	default:
		return false
	}
}
