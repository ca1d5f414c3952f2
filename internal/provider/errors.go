package provider

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes shared by all sources
const (
	CodeNotFound          = "NOT_FOUND"
	CodeUnconfigured      = "UNCONFIGURED"
	CodeUpstreamFailure   = "UPSTREAM_FAILURE"
	CodeUnexpected        = "UNEXPECTED"
	CodeUnsupportedAction = "UNSUPPORTED_ACTION"
	CodeInvalidRequest    = "INVALID_REQUEST"
)

// Sentinels for errors.Is matching against a ProviderError code.
var (
	ErrNotFound          = &ProviderError{Code: CodeNotFound}
	ErrUnconfigured      = &ProviderError{Code: CodeUnconfigured}
	ErrUpstreamFailure   = &ProviderError{Code: CodeUpstreamFailure}
	ErrUnexpected        = &ProviderError{Code: CodeUnexpected}
	ErrUnsupportedAction = &ProviderError{Code: CodeUnsupportedAction}
	ErrInvalidRequest    = &ProviderError{Code: CodeInvalidRequest}
)

// ProviderError represents an error from a provider
type ProviderError struct {
	Provider   string
	Code       string
	Message    string
	Err        error
	Status     int // Upstream HTTP status, when one was received
	Retry      bool
	RetryAfter int // Seconds to wait before retry
}

func (e *ProviderError) Error() string {
	if e.Message == "" && e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Is matches another ProviderError by code so the sentinels work with errors.Is.
func (e *ProviderError) Is(target error) bool {
	t, ok := target.(*ProviderError)
	if !ok {
		return false
	}
	return t.Code == e.Code && (t.Provider == "" || t.Provider == e.Provider)
}

// HTTPStatus maps the error code to the status a caller should surface.
func (e *ProviderError) HTTPStatus() int {
	switch e.Code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnconfigured:
		return http.StatusPreconditionFailed
	case CodeUpstreamFailure:
		return http.StatusServiceUnavailable
	case CodeUnsupportedAction:
		return http.StatusNotImplemented
	case CodeInvalidRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// NotFound reports an unknown or unloaded source.
func NotFound(name string) *ProviderError {
	return &ProviderError{
		Provider: name,
		Code:     CodeNotFound,
		Message:  fmt.Sprintf("metadata source not found: %s", name),
	}
}

// Unconfigured reports a source that cannot build its transport.
func Unconfigured(name, msg string) *ProviderError {
	return &ProviderError{
		Provider: name,
		Code:     CodeUnconfigured,
		Message:  fmt.Sprintf("%s is not configured: %s", name, msg),
	}
}

// UpstreamFailure reports an error status returned by the external service.
func UpstreamFailure(name string, status int) *ProviderError {
	msg := fmt.Sprintf("%s service returned an error: %d", name, status)
	if status == http.StatusUnauthorized {
		msg += ", check that the API key is correct"
	}
	return &ProviderError{
		Provider:   name,
		Code:       CodeUpstreamFailure,
		Message:    msg,
		Status:     status,
		Retry:      status == http.StatusTooManyRequests || status >= 500,
		RetryAfter: retryAfter(status),
	}
}

// RequestFailed reports a transport level failure talking to the external
// service.
func RequestFailed(name string, err error) *ProviderError {
	return &ProviderError{
		Provider:   name,
		Code:       CodeUpstreamFailure,
		Message:    fmt.Sprintf("%s request failed: %v", name, err),
		Err:        err,
		Retry:      true,
		RetryAfter: 30,
	}
}

// UnsupportedAction reports a custom action the source does not implement.
func UnsupportedAction(name, action string) *ProviderError {
	return &ProviderError{
		Provider: name,
		Code:     CodeUnsupportedAction,
		Message:  fmt.Sprintf("source %q does not support action %q", name, action),
	}
}

// InvalidRequest reports missing or malformed caller input.
func InvalidRequest(name, msg string) *ProviderError {
	return &ProviderError{
		Provider: name,
		Code:     CodeInvalidRequest,
		Message:  msg,
	}
}

// IsUpstreamStatus reports whether err is an upstream failure with the given
// HTTP status.
func IsUpstreamStatus(err error, status int) bool {
	var perr *ProviderError
	return errors.As(err, &perr) && perr.Code == CodeUpstreamFailure && perr.Status == status
}

// normalizeError converts any provider failure into a ProviderError. Errors
// that are already classified keep their code.
func normalizeError(name, op string, err error) *ProviderError {
	var perr *ProviderError
	if errors.As(err, &perr) {
		if perr.Provider == "" {
			clone := *perr
			clone.Provider = name
			return &clone
		}
		return perr
	}
	return &ProviderError{
		Provider: name,
		Code:     CodeUnexpected,
		Message:  fmt.Sprintf("%s %s failed with an internal error", name, op),
		Err:      err,
	}
}

func retryAfter(status int) int {
	switch {
	case status == http.StatusTooManyRequests:
		return 10
	case status >= 500:
		return 30
	default:
		return 0
	}
}
