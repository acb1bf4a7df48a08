package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	fleeterrors "github.com/jrsteele09/fleet-console/internal/errors"
)

// APIError is a non-2xx answer from the fleet API.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code,omitempty"`
	Message    string `json:"message,omitempty"` // Empty when the backend sent none
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Code != "" {
		return fmt.Sprintf("fleet api %d %s: %s", e.StatusCode, e.Code, msg)
	}
	return fmt.Sprintf("fleet api %d: %s", e.StatusCode, msg)
}

// Is maps status codes onto the shared sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case fleeterrors.ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case fleeterrors.ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case fleeterrors.ErrInvalidRequest:
		return e.StatusCode == http.StatusBadRequest || e.StatusCode == http.StatusUnprocessableEntity
	}
	return false
}

// errorEnvelope covers both {error:{code,message}} and {message} bodies.
type errorEnvelope struct {
	Error   *APIError `json:"error"`
	Message string    `json:"message"`
}

func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}

	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return apiErr
	}
	if env.Error != nil {
		apiErr.Code = env.Error.Code
		apiErr.Message = env.Error.Message
	}
	if apiErr.Message == "" {
		apiErr.Message = env.Message
	}
	return apiErr
}

// UserMessage returns the backend's message carried by err, or fallback.
func UserMessage(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

// StatusCode returns the upstream status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
