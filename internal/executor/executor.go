// Package executor runs cataloged tools: it validates raw call arguments
// against the tool's input model, invokes the handler, classifies any
// failure, and serializes the result into a uniform ToolCallOutput.
package executor

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/wagiedev/toolserver-go/internal/errors"
	"github.com/wagiedev/toolserver-go/internal/schema"
)

// User-facing error messages. Developer detail travels separately and is
// never shown to the remote caller.
const (
	msgInputDeserialization = "Error in tool input deserialization"
	msgOutputSerialization  = "Failed to serialize tool output"
)

// Run executes one tool call and always returns a ToolCallOutput with
// exactly one of Value and Error populated.
//
// The handler runs inline on the caller's goroutine; the executor spawns no
// concurrency of its own. A nil ToolContext is replaced with a fresh one,
// and an execution id is generated when the context does not carry one.
func Run(
	ctx context.Context,
	log *slog.Logger,
	fn schema.Handler,
	def *schema.ToolDefinition,
	input *schema.CompiledInput,
	output *schema.CompiledOutput,
	tc *schema.ToolContext,
	raw map[string]any,
) *schema.ToolCallOutput {
	log = log.With("component", "executor")

	if tc == nil {
		tc = &schema.ToolContext{}
	}

	if tc.ExecutionID == "" {
		tc.ExecutionID = ulid.Make().String()
	}

	start := time.Now()
	out := &schema.ToolCallOutput{ExecutionID: tc.ExecutionID}

	log.Debug("Executing tool", "tool", def.FullyQualifiedName, "execution_id", tc.ExecutionID)

	args, err := input.Deserialize(raw)
	if err != nil {
		log.Debug("Tool input failed validation", "tool", def.FullyQualifiedName, "error", err)

		out.Error = &schema.ToolCallError{
			Message:          msgInputDeserialization,
			DeveloperMessage: err.Error(),
		}
	} else {
		value, err := invoke(ctx, fn, tc, args)
		if err != nil {
			out.Error = classify(log, def, err)
		} else {
			serialized, err := output.Serialize(value)
			if err != nil {
				log.Debug("Tool output failed serialization", "tool", def.FullyQualifiedName, "error", err)

				out.Error = &schema.ToolCallError{
					Message:          msgOutputSerialization,
					DeveloperMessage: err.Error(),
				}
			} else {
				out.Value = serialized
			}
		}
	}

	out.Duration = time.Since(start)
	out.Logs = collectLogs(log, def, tc)

	return out
}

// invoke calls the handler, converting a panic into an ordinary error so a
// misbehaving tool cannot take down the dispatch loop.
func invoke(ctx context.Context, fn schema.Handler, tc *schema.ToolContext, args map[string]any) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	return fn(ctx, tc, args)
}

// classify maps a handler error onto the tool error taxonomy: retryable,
// explicit non-retryable, or wrapped generic failure.
func classify(log *slog.Logger, def *schema.ToolDefinition, err error) *schema.ToolCallError {
	if retryable, ok := stderrors.AsType[*errors.RetryableToolError](err); ok {
		log.Debug("Tool raised retryable error", "tool", def.FullyQualifiedName, "retry_after", retryable.RetryAfter)

		return &schema.ToolCallError{
			Message:                 retryable.Message,
			DeveloperMessage:        retryable.DeveloperMessage,
			CanRetry:                true,
			RetryAfterMs:            retryable.RetryAfter.Milliseconds(),
			AdditionalPromptContent: retryable.AdditionalPromptContent,
		}
	}

	if execErr, ok := stderrors.AsType[*errors.ToolExecutionError](err); ok {
		log.Debug("Tool raised execution error", "tool", def.FullyQualifiedName, "error", execErr.DeveloperMessage)

		return &schema.ToolCallError{
			Message:          execErr.Message,
			DeveloperMessage: execErr.DeveloperMessage,
		}
	}

	log.Debug("Tool raised uncaught error", "tool", def.FullyQualifiedName, "error", err)

	return &schema.ToolCallError{
		Message:          fmt.Sprintf("Error in execution of %s", def.Name),
		DeveloperMessage: fmt.Sprintf("%T: %v", err, err),
	}
}

// collectLogs assembles the call's log entries. A deprecation warning, when
// the tool declares one, always precedes the tool's own log output.
func collectLogs(log *slog.Logger, def *schema.ToolDefinition, tc *schema.ToolContext) []schema.LogEntry {
	logs := tc.Logs()

	if def.DeprecationMessage == "" {
		return logs
	}

	log.Warn("Deprecated tool was called",
		"tool", def.FullyQualifiedName,
		"message", def.DeprecationMessage,
	)

	return append([]schema.LogEntry{{Level: "warning", Message: def.DeprecationMessage}}, logs...)
}
