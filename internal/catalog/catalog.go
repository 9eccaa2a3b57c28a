package catalog

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/wagiedev/toolserver-go/internal/errors"
	"github.com/wagiedev/toolserver-go/internal/schema"
)

// disabledToolPattern matches well-formed entries in the disabled-tools
// configuration: "ToolkitName.ToolName". Malformed entries are ignored.
var disabledToolPattern = regexp.MustCompile(`^[a-zA-Z]+\.[a-zA-Z]+$`)

// Config is the construction-time configuration for a Catalog.
//
// Both fields are comma-separated lists. Entries are trimmed and compared
// case-insensitively; malformed entries are silently dropped.
type Config struct {
	// DisabledTools lists "Toolkit.Tool" pairs to exclude from the catalog.
	DisabledTools string
	// DisabledToolkits lists toolkit names to exclude wholesale.
	DisabledToolkits string
}

// MaterializedTool is the catalog's record for one registered tool: its
// immutable definition, the invocable handler, and the derived input/output
// validation models.
type MaterializedTool struct {
	Definition *schema.ToolDefinition
	Handler    schema.Handler
	Input      *schema.CompiledInput
	Output     *schema.CompiledOutput
}

// Name returns the tool's bare name.
func (t *MaterializedTool) Name() string {
	return t.Definition.Name
}

// Version returns the tool's toolkit version, which may be empty.
func (t *MaterializedTool) Version() string {
	return t.Definition.Toolkit.Version
}

// RequiresAuth reports whether the tool declares an authorization requirement.
func (t *MaterializedTool) RequiresAuth() bool {
	return t.Definition.Requirements.Authorization != nil
}

// fqnKey is the normalized map key for case-insensitive lookups.
type fqnKey struct {
	toolkit string
	name    string
	version string
}

func keyFor(fqn schema.FullyQualifiedName) fqnKey {
	return fqnKey{
		toolkit: strings.ToLower(fqn.ToolkitName),
		name:    strings.ToLower(fqn.Name),
		version: strings.ToLower(fqn.ToolkitVersion),
	}
}

// Catalog holds every registered tool for a worker, keyed by fully-qualified
// name. Registration happens during startup, before serving begins; the
// catalog is treated as read-only afterward, so lookups take no lock.
type Catalog struct {
	log *slog.Logger

	tools            map[fqnKey]*MaterializedTool
	disabledTools    map[string]bool
	disabledToolkits map[string]bool
}

// New creates a Catalog, parsing the disabled-tool and disabled-toolkit sets
// from the configuration.
func New(log *slog.Logger, cfg Config) *Catalog {
	c := &Catalog{
		log:              log.With("component", "catalog"),
		tools:            make(map[fqnKey]*MaterializedTool, 16),
		disabledTools:    make(map[string]bool),
		disabledToolkits: make(map[string]bool),
	}

	for _, entry := range strings.Split(cfg.DisabledTools, ",") {
		entry = strings.TrimSpace(entry)
		if !disabledToolPattern.MatchString(entry) {
			continue
		}

		c.disabledTools[strings.ToLower(entry)] = true
	}

	for _, entry := range strings.Split(cfg.DisabledToolkits, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		c.disabledToolkits[strings.ToLower(entry)] = true
	}

	return c
}

// Register adds a tool to the catalog under the given toolkit.
//
// The tool descriptor is validated and its schemas derived here; any rule
// violation returns a ToolDefinitionError. Tools belonging to a disabled
// toolkit, or whose toolkit.tool pair is disabled, are silently skipped.
//
// Register is not safe for concurrent use; registration is expected to
// happen from a single goroutine during startup.
func (c *Catalog) Register(t schema.Tool, tk schema.Toolkit) error {
	if t.Execute == nil {
		return &errors.ToolDefinitionError{Tool: t.Name, Reason: "tool has no handler"}
	}

	if strings.TrimSpace(tk.Name) == "" {
		return &errors.ToolDefinitionError{Tool: t.Name, Reason: "a toolkit name must be provided"}
	}

	def, err := schema.DeriveDefinition(t, tk)
	if err != nil {
		return err
	}

	fqn := def.FQN()

	pair := strings.ToLower(fqn.ToolkitName + schema.NameSeparator + fqn.Name)
	if c.disabledTools[pair] {
		c.log.Info("Tool is disabled and will not be cataloged", "tool", def.FullyQualifiedName)

		return nil
	}

	if c.disabledToolkits[strings.ToLower(fqn.ToolkitName)] {
		c.log.Info("Toolkit is disabled and will not be cataloged", "toolkit", fqn.ToolkitName)

		return nil
	}

	key := keyFor(fqn)
	if _, exists := c.tools[key]; exists {
		return &errors.ToolDefinitionError{
			Tool:   def.FullyQualifiedName,
			Reason: "tool already exists in the catalog",
		}
	}

	input, err := schema.CompileInput(t.Name, def.Input)
	if err != nil {
		return err
	}

	output, err := schema.CompileOutput(t.Name, def.Output)
	if err != nil {
		return err
	}

	c.tools[key] = &MaterializedTool{
		Definition: def,
		Handler:    t.Execute,
		Input:      input,
		Output:     output,
	}

	c.log.Debug("Tool cataloged", "tool", def.FullyQualifiedName)

	return nil
}

// RegisterToolkit registers every tool in a toolkit, stopping at the first
// definition error.
func (c *Catalog) RegisterToolkit(tk schema.Toolkit, tools ...schema.Tool) error {
	for _, t := range tools {
		if err := c.Register(t, tk); err != nil {
			return err
		}
	}

	return nil
}

// Lookup resolves a fully-qualified name to its catalog entry.
//
// With a version, only an exact match succeeds. Without one, the lookup
// succeeds only if exactly one version of the toolkit+tool is registered;
// otherwise it fails with ErrMultipleVersions.
func (c *Catalog) Lookup(fqn schema.FullyQualifiedName) (*MaterializedTool, error) {
	if fqn.ToolkitVersion != "" {
		tool, ok := c.tools[keyFor(fqn)]
		if !ok {
			return nil, fmt.Errorf("%w: %s@%s", errors.ErrToolNotFound, fqn.ToolkitName+schema.NameSeparator+fqn.Name, fqn.ToolkitVersion)
		}

		return tool, nil
	}

	var matches []*MaterializedTool

	for key, tool := range c.tools {
		if key.toolkit == strings.ToLower(fqn.ToolkitName) && key.name == strings.ToLower(fqn.Name) {
			matches = append(matches, tool)
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", errors.ErrToolNotFound, fqn.String())
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("%w: %s", errors.ErrMultipleVersions, fqn.String())
	}
}

// LookupByName resolves a textual tool name, optionally qualified by a
// toolkit name using the given separator (e.g. "Math.Add" or, on the MCP
// wire, "Math_Add"). A bare tool name matches the first tool with that name,
// filtered by version when one is given.
func (c *Catalog) LookupByName(name, version, separator string) (*MaterializedTool, error) {
	if toolkitName, toolName, found := strings.Cut(name, separator); found {
		return c.Lookup(schema.FullyQualifiedName{
			ToolkitName:    toolkitName,
			Name:           toolName,
			ToolkitVersion: version,
		})
	}

	for key, tool := range c.tools {
		if key.name != strings.ToLower(name) {
			continue
		}

		if version != "" && key.version != strings.ToLower(version) {
			continue
		}

		return tool, nil
	}

	return nil, fmt.Errorf("%w: %s", errors.ErrToolNotFound, name)
}

// List returns every cataloged tool definition, sorted by toolkit name then
// tool name for stable display.
func (c *Catalog) List() []schema.ToolDefinition {
	defs := make([]schema.ToolDefinition, 0, len(c.tools))
	for _, tool := range c.Tools() {
		defs = append(defs, *tool.Definition)
	}

	return defs
}

// Tools returns every catalog entry in the same stable order as List.
func (c *Catalog) Tools() []*MaterializedTool {
	tools := make([]*MaterializedTool, 0, len(c.tools))
	for _, tool := range c.tools {
		tools = append(tools, tool)
	}

	sort.Slice(tools, func(i, j int) bool {
		a, b := tools[i].Definition, tools[j].Definition
		if !strings.EqualFold(a.Toolkit.Name, b.Toolkit.Name) {
			return strings.ToLower(a.Toolkit.Name) < strings.ToLower(b.Toolkit.Name)
		}

		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	})

	return tools
}

// Len returns the number of cataloged tools.
func (c *Catalog) Len() int {
	return len(c.tools)
}

// IsEmpty reports whether the catalog has no tools.
func (c *Catalog) IsEmpty() bool {
	return len(c.tools) == 0
}
