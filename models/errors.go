// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import "errors"

var (
	ErrValidation  = errors.New("validation failed")
	ErrRateLimited = errors.New("rate limit exceeded")
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("concurrent modification")
	ErrInternal    = errors.New("internal error")
)

// ValidationError carries the field and reason shown to the caller.
// It matches ErrValidation with errors.Is.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Invalid builds a ValidationError
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
