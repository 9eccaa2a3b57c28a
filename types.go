package toolserver

import (
	"github.com/wagiedev/toolserver-go/internal/catalog"
	"github.com/wagiedev/toolserver-go/internal/protocol"
	"github.com/wagiedev/toolserver-go/internal/schema"
	"github.com/wagiedev/toolserver-go/internal/server"
)

// Re-export the tool declaration types from the internal schema package.
type (
	// Tool is the registration descriptor for one tool: its name,
	// parameters, output, and handler, declared as data.
	Tool = schema.Tool

	// Param describes one declared tool parameter.
	Param = schema.Param

	// Output describes a tool's declared return value.
	Output = schema.Output

	// Toolkit is a named, versioned grouping of tools.
	Toolkit = schema.Toolkit

	// ValueType is the wire type of a parameter or output value.
	ValueType = schema.ValueType

	// Handler is the invocable body of a tool.
	Handler = schema.Handler

	// Hints carry behavioral metadata surfaced as MCP tool annotations.
	Hints = schema.Hints

	// AuthRequirement declares the authorization a tool needs.
	AuthRequirement = schema.AuthRequirement

	// ToolContext is passed to every tool invocation. It carries resolved
	// secrets and metadata and collects tool log output.
	ToolContext = schema.ToolContext

	// ToolCallOutput is the uniform result envelope of one tool call.
	ToolCallOutput = schema.ToolCallOutput

	// ToolCallError is the structured failure half of a ToolCallOutput.
	ToolCallError = schema.ToolCallError

	// ToolDefinition is the immutable descriptor derived at registration.
	ToolDefinition = schema.ToolDefinition

	// FullyQualifiedName identifies one tool implementation.
	FullyQualifiedName = schema.FullyQualifiedName
)

// Supported parameter and output value types.
const (
	TypeString  = schema.TypeString
	TypeInteger = schema.TypeInteger
	TypeNumber  = schema.TypeNumber
	TypeBoolean = schema.TypeBoolean
	TypeJSON    = schema.TypeJSON
	TypeArray   = schema.TypeArray
)

// Re-export the catalog and server surface.
type (
	// Catalog holds registered tools keyed by fully-qualified name.
	Catalog = catalog.Catalog

	// CatalogConfig configures which tools and toolkits are disabled.
	CatalogConfig = catalog.Config

	// MaterializedTool is the catalog's record for one registered tool.
	MaterializedTool = catalog.MaterializedTool

	// Server dispatches protocol requests against a tool catalog.
	Server = server.Server

	// ServerOptions configure a Server.
	ServerOptions = server.Options

	// SecretSource resolves a secret key to its value at call time.
	SecretSource = server.SecretSource

	// Middleware is interposed on every inbound and outbound message.
	Middleware = protocol.Middleware
)
