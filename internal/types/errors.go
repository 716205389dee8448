package types

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Complete error code constants.
// All handlers MUST use these constants instead of hardcoded strings.
const (
	// Origin validation (403)
	ErrCodeOriginUntrusted ErrorCode = "origin_untrusted"

	// Rate limiting (429)
	ErrCodeRateLimited ErrorCode = "rate_limit_exceeded"

	// Admin access (403)
	ErrCodeAdminUnauthorized ErrorCode = "admin_unauthorized"

	// Allowance / metering (429)
	ErrCodeAllowanceExceeded   ErrorCode = "allowance_exceeded"
	ErrCodeFeatureUnavailable  ErrorCode = "allowance_feature_unavailable"

	// Webhook processing (401/400)
	ErrCodeWebhookUnauthorized ErrorCode = "webhook_unauthorized"
	ErrCodeWebhookMalformed    ErrorCode = "webhook_malformed"

	// Validation (400)
	ErrCodeValidationInvalidJSON   ErrorCode = "validation_invalid_json"
	ErrCodeValidationMissingField  ErrorCode = "validation_missing_required_field"
	ErrCodeValidationUnknownTier   ErrorCode = "validation_unknown_tier"
	ErrCodeValidationUnknownFeature ErrorCode = "validation_unknown_feature"

	// Not Found (404)
	ErrCodeNotFoundPlan ErrorCode = "not_found_plan"

	// Checkout (400/502)
	ErrCodeCheckoutUnavailable ErrorCode = "checkout_unavailable"

	// Upstream providers (502/503/429)
	ErrCodeUpstreamBilling     ErrorCode = "upstream_billing_unavailable"
	ErrCodeUpstreamRateLimited ErrorCode = "upstream_rate_limited"
	ErrCodeUpstreamUnavailable ErrorCode = "upstream_unavailable"

	// Internal (500). Persistence degradation is deliberately NOT surfaced
	// to callers; it is logged and the in-memory path is used instead.
	ErrCodeInternalPersistence ErrorCode = "internal_persistence_degraded"
	ErrCodeInternalUnexpected  ErrorCode = "internal_unexpected_error"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Used by the API layer to translate AppErrors into HTTP responses.
// Returns 500 for unrecognized error codes as a safe default.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case c == ErrCodeOriginUntrusted, c == ErrCodeAdminUnauthorized:
		return http.StatusForbidden // 403
	case c == ErrCodeRateLimited, c == ErrCodeAllowanceExceeded, c == ErrCodeFeatureUnavailable:
		return http.StatusTooManyRequests // 429
	case c == ErrCodeWebhookUnauthorized:
		return http.StatusUnauthorized // 401
	case c == ErrCodeWebhookMalformed:
		return http.StatusBadRequest // 400
	case c == ErrCodeCheckoutUnavailable:
		return http.StatusBadRequest // 400
	case c == ErrCodeUpstreamRateLimited:
		return http.StatusTooManyRequests // 429
	case c == ErrCodeUpstreamUnavailable:
		return http.StatusServiceUnavailable // 503
	case c == ErrCodeUpstreamBilling:
		return http.StatusBadGateway // 502
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest // 400
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound // 404
	case strings.HasPrefix(s, "internal_"):
		return http.StatusInternalServerError // 500
	default:
		return http.StatusInternalServerError // 500
	}
}

// AppError is the standard application error type used throughout the core.
// All domain and handler errors should be expressed as AppError to enable
// consistent error formatting, HTTP status mapping, and error chain support.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a copy of the error with the provided details merged in.
// This is useful for adding context without mutating the original error.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error. This is the standard constructor for domain errors.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError with the given code, message,
// underlying error, and structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}
