package errors

import (
	"errors"
	"fmt"
)

// Common error types for the fleet console
var (
	// Token errors
	ErrMalformedToken = errors.New("malformed token")
	ErrEmptyToken     = errors.New("empty token")

	// Session errors
	ErrNoSession          = errors.New("no session")
	ErrSessionSuperseded  = errors.New("session superseded")
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionStoreFailed = errors.New("session store failed")

	// Upstream API errors
	ErrUnauthorized   = errors.New("unauthorized")
	ErrRefreshFailed  = errors.New("refresh failed")
	ErrInvalidRequest = errors.New("invalid request")

	// General errors
	ErrNotFound = errors.New("not found")
	ErrInternal = errors.New("internal error")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
