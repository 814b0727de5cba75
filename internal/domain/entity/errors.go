package entity

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain layer operations.
var (
	// ErrNotFound indicates that a requested entity was not found
	ErrNotFound = errors.New("entity not found")

	// ErrInvalidInput indicates that the provided input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrValidationFailed indicates that validation checks have failed
	ErrValidationFailed = errors.New("validation failed")

	// ErrCacheMissing indicates the RSS artifact has not been materialised yet.
	ErrCacheMissing = errors.New("rss cache not yet generated")

	// ErrUnknownTool indicates the agent loop received a tool call for a name
	// not present in the registry.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrMaterialiseTimeout indicates an on-demand cache materialisation run
	// exceeded its wall-clock budget.
	ErrMaterialiseTimeout = errors.New("cache materialisation timed out")
)

// ToolFailure wraps a handler error so the agent loop can distinguish it from
// transport/provider failures while still embedding the original message in a
// tool-role turn.
type ToolFailure struct {
	ToolName string
	Err      error
}

func (e *ToolFailure) Error() string {
	return fmt.Sprintf("tool %q failed: %v", e.ToolName, e.Err)
}

func (e *ToolFailure) Unwrap() error { return e.Err }

// ValidationError represents a validation error with detailed field information.
// It implements the error interface and provides context about which field failed validation.
type ValidationError struct {
	Field   string
	Message string
}

// Error returns a formatted error message for the validation error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}
