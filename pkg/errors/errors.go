package errors

import (
	"errors"
	"fmt"
)

// Kind classifies an API failure so callers can react differently to
// transport problems, bad payloads, session loss, and business rejections.
type Kind string

const (
	KindTransport    Kind = "transport"
	KindMalformed    Kind = "malformed"
	KindUnauthorized Kind = "unauthorized"
	KindBusiness     Kind = "business"
)

// APIError represents a failed API call
type APIError struct {
	Kind    Kind   `json:"kind"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	cause   error
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying cause, if any
func (e *APIError) Unwrap() error {
	return e.cause
}

// Common error codes
const (
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeEmailNotVerified   = "EMAIL_NOT_VERIFIED"
	ErrCodeAccountSuspended   = "ACCOUNT_SUSPENDED"
	ErrCodeEmailTaken         = "EMAIL_TAKEN"
	ErrCodeInvalidRole        = "INVALID_ROLE"
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeNetworkError       = "NETWORK_ERROR"
	ErrCodeMalformedResponse  = "MALFORMED_RESPONSE"
	ErrCodeInternalError      = "INTERNAL_ERROR"
)

// ErrNoSession signals that a refresh was requested with no refresh token
// stored. There is no session to refresh; callers treat it as unauthenticated
// without clearing anything.
var ErrNoSession = &APIError{
	Kind:    KindUnauthorized,
	Code:    ErrCodeUnauthorized,
	Message: "no session to refresh",
	Status:  401,
}

// Transport wraps a network-level failure (connection refused, timeout).
// Transport errors never mutate stored credentials.
func Transport(err error) *APIError {
	return &APIError{
		Kind:    KindTransport,
		Code:    ErrCodeNetworkError,
		Message: "network error",
		cause:   err,
	}
}

// Malformed wraps a response body that could not be decoded
func Malformed(err error) *APIError {
	return &APIError{
		Kind:    KindMalformed,
		Code:    ErrCodeMalformedResponse,
		Message: "malformed response from server",
		cause:   err,
	}
}

// Unauthorized builds a post-retry authorization failure
func Unauthorized(message string) *APIError {
	if message == "" {
		message = "authentication required"
	}
	return &APIError{
		Kind:    KindUnauthorized,
		Code:    ErrCodeUnauthorized,
		Message: message,
		Status:  401,
	}
}

// Business builds an error from a structured non-2xx response body
func Business(status int, code, message string) *APIError {
	return &APIError{
		Kind:    KindBusiness,
		Code:    code,
		Message: message,
		Status:  status,
	}
}

// KindOf returns the classification of err, or KindTransport when err is not
// an *APIError (unknown failures are treated as retryable).
func KindOf(err error) Kind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindTransport
}

// IsUnauthorized reports whether err is a session-loss failure
func IsUnauthorized(err error) bool {
	return KindOf(err) == KindUnauthorized
}

// MessageOf returns a user-displayable message for err
func MessageOf(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
