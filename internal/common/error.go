package common

import (
	"fmt"
	"time"
)

// ValidationError reports user-correctable input. Field names follow the
// stored attribute names ("title", "cover_image", ...).
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s is %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NotFoundError reports a stale or unknown identifier.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrorNotFound
}

// StorageError wraps an object-storage backend failure. It is surfaced to the
// caller as is and never retried internally.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

// TimeoutError is returned when a polled condition did not converge within
// the attempt budget.
type TimeoutError struct {
	Attempts int
	Elapsed  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("condition not met after %d attempts (%s)", e.Attempts, e.Elapsed)
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}
