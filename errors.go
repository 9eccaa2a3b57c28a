package toolserver

import "github.com/wagiedev/toolserver-go/internal/errors"

// Re-export error types from the internal package.
type (
	// ToolserverError is the interface implemented by all library errors.
	ToolserverError = errors.ToolserverError

	// ToolDefinitionError reports a tool descriptor that failed a
	// registration rule.
	ToolDefinitionError = errors.ToolDefinitionError

	// ToolExecutionError is returned by handlers to separate the
	// user-facing message from developer detail.
	ToolExecutionError = errors.ToolExecutionError

	// RetryableToolError is returned by handlers when the caller may
	// retry, optionally after a delay and with extra prompt context.
	RetryableToolError = errors.RetryableToolError
)

// Sentinel errors for lookup and lifecycle failures.
var (
	// ErrToolNotFound is returned when a lookup matches no cataloged tool.
	ErrToolNotFound = errors.ErrToolNotFound

	// ErrMultipleVersions is returned when an unversioned lookup matches
	// more than one installed version.
	ErrMultipleVersions = errors.ErrMultipleVersions

	// ErrServerStopped is returned when a message arrives after shutdown.
	ErrServerStopped = errors.ErrServerStopped
)
