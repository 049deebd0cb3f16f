package errors

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrTypeConnection represents connection-level failures (DNS, refused, timeout)
	ErrTypeConnection ErrorType = "connection"
	// ErrTypeValidation represents validation errors (HTTP 422 from the provider)
	ErrTypeValidation ErrorType = "validation"
	// ErrTypeConfig represents missing or invalid configuration
	ErrTypeConfig ErrorType = "config"
	// ErrTypeAuth represents authentication errors (HTTP 401)
	ErrTypeAuth ErrorType = "authentication"
	// ErrTypeForbidden represents authorization errors (HTTP 403)
	ErrTypeForbidden ErrorType = "authorization"
	// ErrTypeNotFound represents resource not found errors (HTTP 404)
	ErrTypeNotFound ErrorType = "not_found"
	// ErrTypeTransient represents provider-side failures worth retrying later (5xx)
	ErrTypeTransient ErrorType = "transient"
	// ErrTypeInvariant represents local invariant violations, raised before any network call
	ErrTypeInvariant ErrorType = "invariant"
	// ErrTypeInternal represents internal system errors
	ErrTypeInternal ErrorType = "internal"
	// ErrTypeTimeout represents timeout errors
	ErrTypeTimeout ErrorType = "timeout"
)

// AppError represents a structured application error
type AppError struct {
	Type    ErrorType              `json:"type"`
	Message string                 `json:"message"`
	Code    string                 `json:"code,omitempty"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	parts := []string{string(e.Type), e.Message}

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("code=%s", e.Code))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause=%v", e.Cause))
	}

	if len(e.Context) > 0 {
		contextParts := make([]string, 0, len(e.Context))
		for k, v := range e.Context {
			contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, v))
		}
		parts = append(parts, fmt.Sprintf("context={%s}", strings.Join(contextParts, ", ")))
	}

	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithCode adds an error code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// ConnectionError creates a new connection error
func ConnectionError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeConnection,
		Message: msg,
		Cause:   cause,
	}
}

// ValidationError creates a new validation error
func ValidationError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeValidation,
		Message: msg,
	}
}

// ConfigError creates a new configuration error
func ConfigError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeConfig,
		Message: msg,
	}
}

// AuthError creates a new authentication error
func AuthError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeAuth,
		Message: msg,
	}
}

// ForbiddenError creates a new authorization error
func ForbiddenError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeForbidden,
		Message: msg,
	}
}

// NotFoundError creates a new not found error
func NotFoundError(resource string) *AppError {
	return &AppError{
		Type:    ErrTypeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}

// TransientError creates a new transient provider error
func TransientError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeTransient,
		Message: msg,
		Cause:   cause,
	}
}

// InvariantError creates a new local invariant error
func InvariantError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeInvariant,
		Message: msg,
	}
}

// InternalError creates a new internal error
func InternalError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeInternal,
		Message: msg,
		Cause:   cause,
	}
}

// TimeoutError creates a new timeout error
func TimeoutError(operation string) *AppError {
	return &AppError{
		Type:    ErrTypeTimeout,
		Message: fmt.Sprintf("timeout during %s", operation),
	}
}

// FromStatusCode classifies a non-2xx provider response into the error taxonomy.
// The body, when non-empty, is carried in the message so provider-supplied
// validation detail reaches the user.
func FromStatusCode(status int, body string) *AppError {
	detail := strings.TrimSpace(body)
	switch {
	case status == http.StatusUnauthorized:
		return AuthError("authentication rejected by provider, please log in again").WithCode("401")
	case status == http.StatusForbidden:
		return ForbiddenError("access denied by provider").WithCode("403")
	case status == http.StatusNotFound:
		return NotFoundError("remote resource").WithCode("404")
	case status == http.StatusUnprocessableEntity:
		msg := "provider rejected the record"
		if detail != "" {
			msg = fmt.Sprintf("%s: %s", msg, detail)
		}
		return ValidationError(msg).WithCode("422")
	case status >= 500:
		return TransientError(fmt.Sprintf("provider error (HTTP %d), try again later", status), nil).WithCode(fmt.Sprintf("%d", status))
	default:
		return InternalError(fmt.Sprintf("unexpected provider response (HTTP %d)", status), nil).WithCode(fmt.Sprintf("%d", status))
	}
}

// AsAppError converts any error to an AppError, wrapping foreign errors
// as internal so callers can always classify.
func AsAppError(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return InternalError(err.Error(), err)
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	if err == nil {
		return false
	}

	appErr, ok := err.(*AppError)
	if !ok {
		return false
	}

	return appErr.Type == errType
}

// GetType returns the error type if it's an AppError, otherwise returns ErrTypeInternal
func GetType(err error) ErrorType {
	if err == nil {
		return ""
	}

	appErr, ok := err.(*AppError)
	if !ok {
		return ErrTypeInternal
	}

	return appErr.Type
}
