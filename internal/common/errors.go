// Package common defines shared constants and sentinel errors used across
// newsflow components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")

	// Intake pipeline errors.
	ErrRejected = errors.New("article rejected")
	ErrCapacity = errors.New("intake queue full")

	// Authority errors. ErrUntrustedSigner covers every verification
	// failure: unregistered signer, bad signature, tampered payload.
	ErrUntrustedSigner = errors.New("untrusted signer")

	// Service-level errors (generic/internal flow control).
	ErrInternal     = errors.New("internal error")
	ErrUnauthorized = errors.New("unauthorized")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
)
