package errors

import (
	"errors"
	"fmt"
)

// Common error types for the account shell
var (
	// Authentication errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPackageExpired     = errors.New("package expired")
	ErrTransient          = errors.New("identity service unavailable")
	ErrMalformedResponse  = errors.New("malformed identity response")

	// Token errors
	ErrInvalidToken  = errors.New("invalid token")
	ErrRefreshFailed = errors.New("token refresh failed")
	ErrCorruptValue  = errors.New("corrupt stored value")

	// Session errors
	ErrSessionNotFound = errors.New("session not found")
	ErrUnmounted       = errors.New("session controller unmounted")

	// General errors
	ErrInvalidRequest = errors.New("invalid request")
	ErrInternal       = errors.New("internal error")
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
