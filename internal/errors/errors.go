package errors

import (
	"errors"
	"fmt"
	"time"
)

// ToolserverError is the base interface for all toolserver errors.
type ToolserverError interface {
	error
	IsToolserverError() bool
}

// Compile-time verification that all error types implement ToolserverError.
var (
	_ ToolserverError = (*ToolDefinitionError)(nil)
	_ ToolserverError = (*ToolExecutionError)(nil)
	_ ToolserverError = (*RetryableToolError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrToolNotFound indicates a lookup did not match any cataloged tool.
	ErrToolNotFound = errors.New("tool not found in catalog")

	// ErrMultipleVersions indicates a version-less lookup matched more than
	// one installed toolkit version, so the caller must specify one.
	ErrMultipleVersions = errors.New("multiple toolkit versions found, version required")

	// ErrServerStopped indicates the protocol server has reached its terminal state.
	ErrServerStopped = errors.New("server stopped")
)

// ToolDefinitionError indicates a tool failed registration-time validation.
// It is fatal at startup and is never surfaced to a remote caller.
type ToolDefinitionError struct {
	Tool   string
	Reason string
	Err    error
}

func (e *ToolDefinitionError) Error() string {
	if e.Tool == "" {
		return fmt.Sprintf("invalid tool definition: %s", e.Reason)
	}

	return fmt.Sprintf("invalid tool definition for %s: %s", e.Tool, e.Reason)
}

func (e *ToolDefinitionError) Unwrap() error {
	return e.Err
}

// IsToolserverError implements ToolserverError.
func (e *ToolDefinitionError) IsToolserverError() bool { return true }

// ToolExecutionError is a non-retryable failure raised by a tool body.
//
// Message is safe to show to the remote caller; DeveloperMessage retains
// detail for logs only.
type ToolExecutionError struct {
	Message          string
	DeveloperMessage string
	Err              error
}

func (e *ToolExecutionError) Error() string {
	return e.Message
}

func (e *ToolExecutionError) Unwrap() error {
	return e.Err
}

// IsToolserverError implements ToolserverError.
func (e *ToolExecutionError) IsToolserverError() bool { return true }

// RetryableToolError is a tool failure carrying caller guidance indicating
// the call may succeed if retried after the given delay.
type RetryableToolError struct {
	Message                 string
	DeveloperMessage        string
	AdditionalPromptContent string
	RetryAfter              time.Duration
}

func (e *RetryableToolError) Error() string {
	return e.Message
}

// IsToolserverError implements ToolserverError.
func (e *RetryableToolError) IsToolserverError() bool { return true }
