package config

import (
	"errors"
	"fmt"
)

// ErrBackendNotFound is returned when a backend name is not configured.
var ErrBackendNotFound = errors.New("backend not found")

// LoadError wraps a configuration file loading failure.
type LoadError struct {
	File string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load %s: %v", e.File, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// NewLoadError creates a LoadError for a config file.
func NewLoadError(file string, err error) error {
	return &LoadError{File: file, Err: err}
}

// ValidationError describes an invalid configuration value.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Message)
}

// NewValidationError creates a ValidationError.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
