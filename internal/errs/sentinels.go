// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import (
	"errors"

	"github.com/scmc-ops/hoscad/internal/model"
)

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates optimistic concurrency failure (updated_at token mismatch).
	ErrConflict = errors.New("conflict")

	// ErrValidation indicates malformed or out-of-range caller input.
	ErrValidation = errors.New("validation")

	// ErrUnauthorized indicates failed authentication/authorization.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., username taken).
	ErrAlreadyExists = errors.New("already exists")
)

// ConflictError is returned when a caller's expected updated_at token does
// not match the stored one. It carries the current record so the transport
// layer can hand the winner back to the losing client.
type ConflictError struct {
	Current *model.Unit
}

func (e *ConflictError) Error() string {
	return "conflict: unit modified by another dispatcher"
}

// Unwrap lets errors.Is(err, ErrConflict) match.
func (e *ConflictError) Unwrap() error { return ErrConflict }
