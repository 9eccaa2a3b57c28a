package schema

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/wagiedev/toolserver-go/internal/errors"
)

// identifierPattern matches valid tool, toolkit, and parameter names.
var identifierPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// authScopedMetadataKeys are metadata keys that only make sense for tools
// with an authorization requirement.
var authScopedMetadataKeys = map[string]bool{
	"client_id": true,
	"tenant_id": true,
}

// wireTypes is the closed set of supported parameter/output types.
var wireTypes = map[ValueType]bool{
	TypeString:  true,
	TypeInteger: true,
	TypeNumber:  true,
	TypeBoolean: true,
	TypeJSON:    true,
	TypeArray:   true,
}

// DeriveDefinition validates a tool descriptor and produces its immutable
// ToolDefinition. Every rule violation is reported here, at registration
// time, as a ToolDefinitionError; call time never re-checks them.
func DeriveDefinition(t Tool, tk Toolkit) (*ToolDefinition, error) {
	if t.Name == "" {
		return nil, &errors.ToolDefinitionError{Reason: "tool has no name"}
	}

	if !identifierPattern.MatchString(t.Name) {
		return nil, &errors.ToolDefinitionError{Tool: t.Name, Reason: fmt.Sprintf("%q is not a valid tool name", t.Name)}
	}

	if strings.TrimSpace(t.Description) == "" {
		return nil, &errors.ToolDefinitionError{Tool: t.Name, Reason: "tool is missing a description"}
	}

	input, err := deriveInput(t)
	if err != nil {
		return nil, err
	}

	output, err := deriveOutput(t)
	if err != nil {
		return nil, err
	}

	reqs, err := deriveRequirements(t)
	if err != nil {
		return nil, err
	}

	toolkitDef := ToolkitDefinition{
		Name:        tk.Name,
		Description: tk.Description,
		Version:     tk.Version,
	}

	def := &ToolDefinition{
		Name:               t.Name,
		Description:        t.Description,
		Toolkit:            toolkitDef,
		Input:              *input,
		Output:             *output,
		Requirements:       *reqs,
		DeprecationMessage: t.Deprecated,
		Hints:              t.Hints,
	}
	def.FullyQualifiedName = def.FQN().String()

	return def, nil
}

// deriveInput builds the input parameter list, applying the registration
// rules for parameter types, descriptions, enums, and the context slot.
func deriveInput(t Tool) (*InputDefinition, error) {
	params := make([]Param, 0, len(t.Params))
	contextName := ""

	for _, p := range t.Params {
		if p.Context {
			if contextName != "" {
				return nil, &errors.ToolDefinitionError{
					Tool:   t.Name,
					Reason: "only one context parameter is supported",
				}
			}

			contextName = p.Name

			continue
		}

		if p.Name == "" || !identifierPattern.MatchString(p.Name) {
			return nil, &errors.ToolDefinitionError{
				Tool:   t.Name,
				Reason: fmt.Sprintf("parameter %q is not a valid identifier", p.Name),
			}
		}

		if p.Type == "" {
			return nil, &errors.ToolDefinitionError{
				Tool:   t.Name,
				Reason: fmt.Sprintf("parameter %s has no declared type", p.Name),
			}
		}

		if !wireTypes[p.Type] {
			return nil, &errors.ToolDefinitionError{
				Tool:   t.Name,
				Reason: fmt.Sprintf("unsupported type %q for parameter %s", p.Type, p.Name),
			}
		}

		if strings.TrimSpace(p.Description) == "" {
			return nil, &errors.ToolDefinitionError{
				Tool:   t.Name,
				Reason: fmt.Sprintf("parameter %s is missing a description", p.Name),
			}
		}

		if p.Type == TypeArray {
			if p.Inner == "" || !wireTypes[p.Inner] || p.Inner == TypeArray {
				return nil, &errors.ToolDefinitionError{
					Tool:   t.Name,
					Reason: fmt.Sprintf("array parameter %s needs a valid element type", p.Name),
				}
			}
		} else if p.Inner != "" {
			return nil, &errors.ToolDefinitionError{
				Tool:   t.Name,
				Reason: fmt.Sprintf("parameter %s declares an element type but is not an array", p.Name),
			}
		}

		if len(p.Enum) > 0 {
			enumBase := p.Type
			if p.Type == TypeArray {
				enumBase = p.Inner
			}

			if enumBase != TypeString {
				return nil, &errors.ToolDefinitionError{
					Tool:   t.Name,
					Reason: fmt.Sprintf("enum values are only supported for string parameters (parameter %s)", p.Name),
				}
			}
		}

		// A parameter with a default is never required.
		if p.Default != nil {
			p.Required = false
		}

		params = append(params, p)
	}

	return &InputDefinition{Parameters: params, ContextParamName: contextName}, nil
}

// deriveOutput builds the output descriptor and its available result modes.
func deriveOutput(t Tool) (*OutputDefinition, error) {
	out := t.Output

	if out.Type == "" {
		if strings.TrimSpace(out.Description) == "" {
			return nil, &errors.ToolDefinitionError{
				Tool:   t.Name,
				Reason: "tool must declare an output type or an output description",
			}
		}

		return &OutputDefinition{
			Description:    out.Description,
			AvailableModes: []string{"null"},
		}, nil
	}

	if !wireTypes[out.Type] {
		return nil, &errors.ToolDefinitionError{
			Tool:   t.Name,
			Reason: fmt.Sprintf("unsupported output type %q", out.Type),
		}
	}

	if out.Type == TypeArray && (out.Inner == "" || !wireTypes[out.Inner] || out.Inner == TypeArray) {
		return nil, &errors.ToolDefinitionError{
			Tool:   t.Name,
			Reason: "array output needs a valid element type",
		}
	}

	desc := out.Description
	if desc == "" {
		desc = "No description provided."
	}

	modes := []string{"value", "error"}
	if out.Optional {
		modes = append(modes, "null")
	}

	value := out
	value.Description = desc

	return &OutputDefinition{
		Description:    desc,
		AvailableModes: modes,
		Value:          &value,
	}, nil
}

// deriveRequirements validates secret and metadata keys, de-duplicating
// case-insensitively the way the catalog compares them.
func deriveRequirements(t Tool) (*Requirements, error) {
	reqs := &Requirements{Authorization: t.RequiresAuth}

	seen := make(map[string]bool, len(t.RequiresSecrets))

	for _, key := range t.RequiresSecrets {
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			return nil, &errors.ToolDefinitionError{
				Tool:   t.Name,
				Reason: "secrets must have a non-empty key",
			}
		}

		if seen[key] {
			continue
		}

		seen[key] = true

		reqs.Secrets = append(reqs.Secrets, SecretRequirement{Key: key})
	}

	seen = make(map[string]bool, len(t.RequiresMetadata))

	for _, key := range t.RequiresMetadata {
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			return nil, &errors.ToolDefinitionError{
				Tool:   t.Name,
				Reason: "metadata must have a non-empty key",
			}
		}

		if authScopedMetadataKeys[key] && t.RequiresAuth == nil {
			return nil, &errors.ToolDefinitionError{
				Tool: t.Name,
				Reason: fmt.Sprintf(
					"metadata key %q requires an auth requirement, but none was provided", key),
			}
		}

		if seen[key] {
			continue
		}

		seen[key] = true

		reqs.Metadata = append(reqs.Metadata, MetadataRequirement{Key: key})
	}

	return reqs, nil
}

// CompiledInput is the call-time validation model derived from an
// InputDefinition: a JSON schema plus its resolved validator.
type CompiledInput struct {
	Schema *jsonschema.Schema

	resolved *jsonschema.Resolved
	params   []Param
}

// CompiledOutput is the call-time serialization model for a tool's output.
type CompiledOutput struct {
	Schema *jsonschema.Schema

	resolved *jsonschema.Resolved
	hasValue bool
	optional bool
}

// CompileInput turns an input definition into its JSON schema and resolved
// validation model.
func CompileInput(toolName string, def InputDefinition) (*CompiledInput, error) {
	properties := make(map[string]*jsonschema.Schema, len(def.Parameters))
	required := make([]string, 0, len(def.Parameters))

	for _, p := range def.Parameters {
		properties[p.Name] = paramSchema(p)

		if p.Required {
			required = append(required, p.Name)
		}
	}

	s := &jsonschema.Schema{
		Type:       "object",
		Properties: properties,
		Required:   required,
	}

	resolved, err := s.Resolve(nil)
	if err != nil {
		return nil, &errors.ToolDefinitionError{
			Tool:   toolName,
			Reason: "could not resolve input schema",
			Err:    err,
		}
	}

	return &CompiledInput{Schema: s, resolved: resolved, params: def.Parameters}, nil
}

// CompileOutput turns an output definition into its JSON schema and resolved
// validation model. The schema is a single-field object named "result".
func CompileOutput(toolName string, def OutputDefinition) (*CompiledOutput, error) {
	if def.Value == nil {
		return &CompiledOutput{}, nil
	}

	resultSchema := paramSchema(Param{
		Type:        def.Value.Type,
		Inner:       def.Value.Inner,
		Description: def.Value.Description,
	})

	s := &jsonschema.Schema{
		Type:       "object",
		Properties: map[string]*jsonschema.Schema{"result": resultSchema},
	}
	if !def.Value.Optional {
		s.Required = []string{"result"}
	}

	resolved, err := s.Resolve(nil)
	if err != nil {
		return nil, &errors.ToolDefinitionError{
			Tool:   toolName,
			Reason: "could not resolve output schema",
			Err:    err,
		}
	}

	return &CompiledOutput{
		Schema:   s,
		resolved: resolved,
		hasValue: true,
		optional: def.Value.Optional,
	}, nil
}

// paramSchema maps one declared parameter to its JSON schema node.
func paramSchema(p Param) *jsonschema.Schema {
	s := &jsonschema.Schema{Description: p.Description}

	switch p.Type {
	case TypeString:
		s.Type = "string"
	case TypeInteger:
		s.Type = "integer"
	case TypeNumber:
		s.Type = "number"
	case TypeBoolean:
		s.Type = "boolean"
	case TypeJSON:
		s.Type = "object"
	case TypeArray:
		s.Type = "array"
		s.Items = paramSchema(Param{Type: p.Inner, Enum: p.Enum})
	}

	if len(p.Enum) > 0 && p.Type != TypeArray {
		enum := make([]any, len(p.Enum))
		for i, v := range p.Enum {
			enum[i] = v
		}

		s.Enum = enum
	}

	return s
}

// Deserialize validates raw call arguments against the input schema.
// Unknown argument names are dropped, defaults are substituted for absent
// optional parameters, and the result is the validated argument map.
func (c *CompiledInput) Deserialize(raw map[string]any) (map[string]any, error) {
	args := make(map[string]any, len(c.params))

	for _, p := range c.params {
		v, ok := raw[p.Name]
		if !ok {
			if p.Default != nil {
				args[p.Name] = p.Default
			}

			continue
		}

		args[p.Name] = v
	}

	if err := c.resolved.Validate(args); err != nil {
		return nil, fmt.Errorf("validate input: %w", err)
	}

	return args, nil
}

// Serialize checks a tool's return value against the output schema and
// normalizes it to plain JSON values.
func (c *CompiledOutput) Serialize(value any) (any, error) {
	if value == nil {
		if !c.hasValue || c.optional {
			return nil, nil
		}

		return nil, fmt.Errorf("tool returned no value but output is not optional")
	}

	if !c.hasValue {
		return nil, fmt.Errorf("tool returned a value but declares no output")
	}

	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal output: %w", err)
	}

	var normalized any
	if err := json.Unmarshal(data, &normalized); err != nil {
		return nil, fmt.Errorf("normalize output: %w", err)
	}

	if err := c.resolved.Validate(map[string]any{"result": normalized}); err != nil {
		return nil, fmt.Errorf("validate output: %w", err)
	}

	return normalized, nil
}
