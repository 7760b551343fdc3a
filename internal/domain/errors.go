package domain

import (
	"errors"
	"fmt"
)

var (
	ErrTurnInProgress    = errors.New("a reply is still being generated")
	ErrPersonaForbidden  = errors.New("persona not available for this role")
	ErrPersonaNotFound   = errors.New("persona not found")
	ErrWorkspaceNotFound = errors.New("workspace not found")
	ErrNotInChat         = errors.New("chat is not open")
	ErrRecordNotFound    = errors.New("record not found")
	ErrToolLoop          = errors.New("tool call nesting limit reached")
)

// ConfigurationError reports a missing or invalid setting that makes every
// remote call fail.
type ConfigurationError struct {
	Setting string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("configuration error: %s: %s", e.Setting, e.Message)
	}
	return fmt.Sprintf("configuration error: %s is not set", e.Setting)
}

// StreamError wraps a failure while consuming a streamed turn.
type StreamError struct {
	Err error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("stream interrupted: %v", e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

// ToolExecutionError wraps a handler failure. It is converted into result
// text and never propagated out of a turn.
type ToolExecutionError struct {
	Tool string
	Err  error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %s failed: %v", e.Tool, e.Err)
}

func (e *ToolExecutionError) Unwrap() error {
	return e.Err
}

// ValidationError is a user-facing rejection of bad input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError builds a ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// IsConfigurationError reports whether err carries a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// IsValidationError reports whether err carries a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
