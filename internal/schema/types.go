package schema

import (
	"context"
	"strings"
	"sync"
	"time"
)

// NameSeparator joins a toolkit name and a tool name into a fully-qualified
// catalog name, e.g. "Math.Add".
const NameSeparator = "."

// ValueType is the wire type of a parameter or output value.
type ValueType string

const (
	TypeString  ValueType = "string"
	TypeInteger ValueType = "integer"
	TypeNumber  ValueType = "number"
	TypeBoolean ValueType = "boolean"
	TypeJSON    ValueType = "json"
	TypeArray   ValueType = "array"
)

// Handler is the invocable body of a tool. Arguments have already been
// validated against the tool's input schema when the handler runs.
type Handler func(ctx context.Context, tc *ToolContext, args map[string]any) (any, error)

// Param describes one declared tool parameter.
type Param struct {
	// Name is the argument name on the wire.
	Name string
	// Type is the declared wire type. Required for every non-context parameter.
	Type ValueType
	// Inner is the element type when Type is TypeArray.
	Inner ValueType
	// Description is required for every non-context parameter.
	Description string
	// Required marks the parameter as mandatory. A parameter with a
	// Default is never required regardless of this flag.
	Required bool
	// Default is substituted when the caller omits the argument.
	Default any
	// Enum constrains a string parameter to a closed value set.
	Enum []string
	// Context marks the parameter as the implicit execution-context slot.
	// At most one parameter may set it.
	Context bool
}

// Output describes a tool's declared return value.
type Output struct {
	// Type is the wire type of the returned value. Empty means the tool
	// returns nothing.
	Type ValueType
	// Inner is the element type when Type is TypeArray.
	Inner ValueType
	// Description documents the returned value.
	Description string
	// Optional marks the value as nullable (the tool may return nothing).
	Optional bool
}

// AuthRequirement declares the authorization a tool needs before it can run.
type AuthRequirement struct {
	ProviderID   string
	ProviderType string
	ID           string
	Scopes       []string
}

// Hints carry behavioral metadata surfaced as MCP tool annotations.
type Hints struct {
	ReadOnly    bool
	Destructive bool
	Idempotent  bool
	OpenWorld   bool
}

// Tool is the registration descriptor supplied by a tool author. It is an
// explicit, ahead-of-time replacement for signature introspection: every
// parameter and the output are declared as data.
type Tool struct {
	Name        string
	Description string
	Params      []Param
	Output      Output
	Execute     Handler

	// Deprecated, when non-empty, appends a warning log entry with this
	// message to every call result.
	Deprecated string

	RequiresAuth     *AuthRequirement
	RequiresSecrets  []string
	RequiresMetadata []string

	Hints *Hints
}

// Toolkit is a named, versioned grouping of tools.
type Toolkit struct {
	Name        string
	Version     string
	Description string
}

// FullyQualifiedName identifies one tool implementation. Name fields compare
// case-insensitively; an absent version resolves to the only installed
// version of the toolkit.
type FullyQualifiedName struct {
	ToolkitName    string
	Name           string
	ToolkitVersion string
}

func (f FullyQualifiedName) String() string {
	s := f.ToolkitName + NameSeparator + f.Name
	if f.ToolkitVersion != "" {
		s += "@" + f.ToolkitVersion
	}

	return s
}

// EqualsIgnoringVersion reports whether two names refer to the same
// toolkit+tool pair regardless of version.
func (f FullyQualifiedName) EqualsIgnoringVersion(other FullyQualifiedName) bool {
	return strings.EqualFold(f.ToolkitName, other.ToolkitName) &&
		strings.EqualFold(f.Name, other.Name)
}

// ToolkitDefinition is the toolkit slice of a ToolDefinition.
type ToolkitDefinition struct {
	Name        string
	Description string
	Version     string
}

// InputDefinition lists a tool's declared non-context parameters plus the
// name of its context parameter, if any.
type InputDefinition struct {
	Parameters       []Param
	ContextParamName string
}

// OutputDefinition describes a tool's declared output and the result modes
// it can produce ("value", "error", "null").
type OutputDefinition struct {
	Description    string
	AvailableModes []string
	Value          *Output
}

// ToolDefinition is the immutable descriptor created at registration time.
// It is owned by the catalog and never mutated afterward.
type ToolDefinition struct {
	Name               string
	FullyQualifiedName string
	Description        string
	Toolkit            ToolkitDefinition
	Input              InputDefinition
	Output             OutputDefinition
	Requirements       Requirements
	DeprecationMessage string
	Hints              *Hints
}

// Requirements are the declared runtime needs of a tool.
type Requirements struct {
	Authorization *AuthRequirement
	Secrets       []SecretRequirement
	Metadata      []MetadataRequirement
}

// SecretRequirement names one secret key a tool needs at call time.
type SecretRequirement struct {
	Key string
}

// MetadataRequirement names one metadata key a tool needs at call time.
type MetadataRequirement struct {
	Key string
}

// FQN returns the definition's parsed fully-qualified name.
func (d *ToolDefinition) FQN() FullyQualifiedName {
	return FullyQualifiedName{
		ToolkitName:    d.Toolkit.Name,
		Name:           d.Name,
		ToolkitVersion: d.Toolkit.Version,
	}
}

// LogEntry is one log line accumulated during a tool call.
type LogEntry struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// ToolContext is passed to every tool invocation. It carries resolved
// secrets and metadata, the calling user, and collects tool log output.
type ToolContext struct {
	ExecutionID   string
	UserID        string
	Authorization *AuthContext

	mu       sync.Mutex
	secrets  map[string]string
	metadata map[string]string
	logs     []LogEntry
}

// AuthContext is the materialized authorization for a call.
type AuthContext struct {
	Token    string
	UserInfo map[string]any
}

// SetSecret stores a resolved secret value on the context.
func (c *ToolContext) SetSecret(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.secrets == nil {
		c.secrets = make(map[string]string, 4)
	}

	c.secrets[strings.ToLower(key)] = value
}

// Secret returns a secret by key, case-insensitively.
func (c *ToolContext) Secret(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.secrets[strings.ToLower(key)]

	return v, ok
}

// SetMetadata stores a metadata value on the context.
func (c *ToolContext) SetMetadata(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.metadata == nil {
		c.metadata = make(map[string]string, 4)
	}

	c.metadata[strings.ToLower(key)] = value
}

// Metadata returns a metadata value by key, case-insensitively.
func (c *ToolContext) Metadata(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.metadata[strings.ToLower(key)]

	return v, ok
}

// Log appends a log entry to the call's accumulated output.
func (c *ToolContext) Log(level, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logs = append(c.logs, LogEntry{Level: level, Message: message})
}

// Logs returns a copy of the accumulated log entries in append order.
func (c *ToolContext) Logs() []LogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]LogEntry, len(c.logs))
	copy(out, c.logs)

	return out
}

// ToolCallError is the structured failure half of a ToolCallOutput.
type ToolCallError struct {
	Message                 string `json:"message"`
	DeveloperMessage        string `json:"developer_message,omitempty"`
	CanRetry                bool   `json:"can_retry"`
	RetryAfterMs            int64  `json:"retry_after_ms,omitempty"`
	AdditionalPromptContent string `json:"additional_prompt_content,omitempty"`
}

// ToolCallOutput is the uniform result envelope produced by the executor.
// Exactly one of Value and Error is populated.
type ToolCallOutput struct {
	ExecutionID string
	Value       any
	Error       *ToolCallError
	Logs        []LogEntry
	Duration    time.Duration
}
