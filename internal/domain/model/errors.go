package model

import (
	"errors"
	"fmt"
)

// Errors surfaced by the bridge core. Callers match them with errors.Is.
var (
	// ErrNotFound is returned for unknown device IDs, devices with no
	// linked entity, and linked entities that vanished from the platform.
	// The HTTP layer renders it as a Hue type-3 error array.
	ErrNotFound = errors.New("bridge: resource not found")

	// ErrMalformedRequest is returned for unparsable or wrong-typed Hue
	// payloads. No state mutation is attempted.
	ErrMalformedRequest = errors.New("bridge: malformed request")
)

// ValidationError rejects a bad create/update on the device registry:
// duplicate entity link, unsupported category, or nonexistent entity.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("bridge: validation failed: %s", e.Reason)
}

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}
