// Package errs defines the error taxonomy shared by the recurring core.
//
// Validation, not-found and unauthorized errors are reported to the caller
// with no side effects. Everything else is treated as an infrastructure
// failure and propagated wrapped.
package errs

import (
	"errors"
	"fmt"
)

var errValidation = errors.New("validation error")
var errNotFound = errors.New("not found")
var errUnauthorized = errors.New("unauthorized")

// ValidationError reports a missing or malformed required field.
func ValidationError(field, reason string) error {
	return fmt.Errorf("%w: %s %s", errValidation, field, reason)
}

// NotFoundError reports a referenced entity that does not exist for this user.
func NotFoundError(resource, id string) error {
	return fmt.Errorf("%w: %s %s", errNotFound, resource, id)
}

// UnauthorizedError reports a request with no resolvable user identity.
func UnauthorizedError(reason string) error {
	return fmt.Errorf("%w: %s", errUnauthorized, reason)
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, errValidation)
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, errNotFound)
}

// IsUnauthorized reports whether err is an unauthorized error.
func IsUnauthorized(err error) bool {
	return errors.Is(err, errUnauthorized)
}
