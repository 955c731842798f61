package domain

import (
	"errors"
	"net/http"
)

// HTTPError defines errors that can be mapped to HTTP status codes.
// Implementing this interface enables extensible error handling in the
// transport layer without switching on concrete types there.
type HTTPError interface {
	error
	StatusCode() int
}

type (
	// NotFoundError indicates a resource was not found. Most delete-style
	// operations degrade to a no-op instead of returning this; it is used
	// where the caller asked to read something that must exist.
	NotFoundError struct {
		Message string
	}

	// ValidationError indicates a mismatch between a part's declared
	// variant/state and its populated fields, or invalid caller input.
	// Codec validation errors are fatal to the operation and never
	// auto-corrected: silently coercing would hide upstream protocol drift.
	ValidationError struct {
		Message string
	}

	// ConflictError indicates a resource already exists.
	ConflictError struct {
		Message      string
		ResourceType string
		ResourceID   string
	}
)

func (e *NotFoundError) Error() string   { return e.Message }
func (e *ValidationError) Error() string { return e.Message }
func (e *ConflictError) Error() string   { return e.Message }

func (e *NotFoundError) StatusCode() int   { return http.StatusNotFound }
func (e *ValidationError) StatusCode() int { return http.StatusBadRequest }
func (e *ConflictError) StatusCode() int   { return http.StatusConflict }

// Sentinel errors - use with errors.Is()
var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")
)

// Is allows errors.Is() to match typed errors against the sentinels.
func (e *NotFoundError) Is(target error) bool   { return target == ErrNotFound }
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }
func (e *ConflictError) Is(target error) bool   { return target == ErrConflict }
