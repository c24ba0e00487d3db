package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the referenced record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation means the mutation input was malformed. Nothing was applied.
	ErrValidation = errors.New("validation failed")
	// ErrTransient marks network, timeout and other infrastructure faults that
	// may succeed on a later attempt.
	ErrTransient = errors.New("transient store failure")
)

// NotFound builds the error returned when id is absent from c.
func NotFound(c Collection, id string) error {
	return fmt.Errorf("%s %q: %w", c, id, ErrNotFound)
}

// Invalid builds a validation error.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Transient marks err as a retryable infrastructure failure.
func Transient(err error) error {
	if err == nil || errors.Is(err, ErrTransient) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

func IsNotFound(err error) bool   { return errors.Is(err, ErrNotFound) }
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }
func IsTransient(err error) bool  { return errors.Is(err, ErrTransient) }
