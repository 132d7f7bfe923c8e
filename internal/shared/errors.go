package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates rejected caller input.
	ErrValidation = errors.New("validation failed")
	// ErrResourceExhausted indicates a time or memory budget was reached.
	// Reported distinctly so operators can tell an oversized request from a
	// broken system.
	ErrResourceExhausted = errors.New("resource budget exhausted")
)
