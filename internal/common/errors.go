// Package common defines shared constants and sentinel errors used across
// bookshelf components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors.
	ErrValidation  = errors.New("validation error")
	ErrStorage     = errors.New("storage error")
	ErrTimeout     = errors.New("convergence timeout")
	ErrUnsupported = errors.New("unsupported backend")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired = errors.New("token expired")
)
