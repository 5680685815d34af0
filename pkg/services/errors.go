// Package services implements the session & context store: durable
// decisions, progress entries, active contexts, patterns, custom data,
// links, and attention samples, persisted in PostgreSQL.
//
// Writes are serialized per workspace; readers always see committed state.
package services

import (
	"database/sql"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an entity is not found.
	ErrNotFound = errors.New("entity not found")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrIllegalTransition is returned when a progress status transition
	// is not in the allowed state machine. No state is mutated.
	ErrIllegalTransition = errors.New("illegal status transition")

	// ErrStorageUnavailable is returned when the underlying storage cannot
	// be reached. Non-fatal for the broker and event bus.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// ValidationError wraps field-specific validation errors.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// NewValidationError creates a new validation error.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// storageErr classifies a database error: sql.ErrNoRows maps to ErrNotFound,
// everything else surfaces as ErrStorageUnavailable with the operation named.
func storageErr(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w: %v", op, ErrStorageUnavailable, err)
}
