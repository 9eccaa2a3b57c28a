package server

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/wagiedev/toolserver-go/internal/catalog"
	"github.com/wagiedev/toolserver-go/internal/schema"
)

// mcpNameSeparator joins toolkit and tool names on the wire. The protocol
// restricts tool names to [a-zA-Z0-9_-], so the catalog's dot separator is
// swapped for an underscore in both directions.
const mcpNameSeparator = "_"

// Tool is the wire representation of a tool in a tools/list result.
type Tool struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	InputSchema *jsonschema.Schema `json:"inputSchema"`
	Annotations *ToolAnnotations   `json:"annotations,omitempty"`
}

// ToolAnnotations carries the behavioral hints clients use to decide how to
// present and gate a tool. These are hints, never guarantees.
type ToolAnnotations struct {
	Title           string `json:"title,omitempty"`
	ReadOnlyHint    bool   `json:"readOnlyHint"`
	DestructiveHint bool   `json:"destructiveHint"`
	IdempotentHint  bool   `json:"idempotentHint"`
	OpenWorldHint   bool   `json:"openWorldHint"`
}

// ContentBlock is one element of a tools/call result's content array. Only
// text blocks are produced; structured values are serialized to JSON text.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// CallToolResult is the wire representation of a tools/call result.
type CallToolResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

// wireTool converts a materialized catalog entry to its wire representation.
// The wire name is versionless: the advertised name must parse back through
// tools/call name resolution, which splits on the separator only.
func wireTool(t *catalog.MaterializedTool) Tool {
	def := t.Definition

	ann := wireAnnotations(def.Hints)
	ann.Title = def.Name

	return Tool{
		Name:        def.Toolkit.Name + mcpNameSeparator + def.Name,
		Description: def.Description,
		InputSchema: t.Input.Schema,
		Annotations: ann,
	}
}

// wireAnnotations maps catalog hints onto wire annotations. A tool that
// declares no hints is presented as idempotent and otherwise conservative.
func wireAnnotations(h *schema.Hints) *ToolAnnotations {
	if h == nil {
		return &ToolAnnotations{IdempotentHint: true}
	}

	return &ToolAnnotations{
		ReadOnlyHint:    h.ReadOnly,
		DestructiveHint: h.Destructive,
		IdempotentHint:  h.Idempotent,
		OpenWorldHint:   h.OpenWorld,
	}
}

// wireContent converts a tool's output value into content blocks. A nil
// value yields an empty array, scalars become plain text, and everything
// else is rendered as JSON text.
func wireContent(value any) []ContentBlock {
	if value == nil {
		return []ContentBlock{}
	}

	switch v := value.(type) {
	case string:
		return []ContentBlock{{Type: "text", Text: v}}
	case bool, float64, int, int64:
		return []ContentBlock{{Type: "text", Text: fmt.Sprint(v)}}
	}

	data, err := json.Marshal(value)
	if err != nil {
		return []ContentBlock{{Type: "text", Text: fmt.Sprint(value)}}
	}

	return []ContentBlock{{Type: "text", Text: string(data)}}
}
