package catalog

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/toolserver-go/internal/errors"
	"github.com/wagiedev/toolserver-go/internal/schema"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func noopHandler(_ context.Context, _ *schema.ToolContext, _ map[string]any) (any, error) {
	return "ok", nil
}

func testTool(name string) schema.Tool {
	return schema.Tool{
		Name:        name,
		Description: "A test tool.",
		Output:      schema.Output{Type: schema.TypeString, Description: "A result"},
		Execute:     noopHandler,
	}
}

func newCatalog(t *testing.T, cfg Config) *Catalog {
	t.Helper()

	return New(testLogger(), cfg)
}

func TestRegister(t *testing.T) {
	tk := schema.Toolkit{Name: "Test", Version: "1.0.0"}

	t.Run("registers a valid tool", func(t *testing.T) {
		c := newCatalog(t, Config{})

		require.NoError(t, c.Register(testTool("Probe"), tk))
		require.Equal(t, 1, c.Len())
		require.False(t, c.IsEmpty())
	})

	t.Run("rejects tool without handler", func(t *testing.T) {
		c := newCatalog(t, Config{})

		tool := testTool("Probe")
		tool.Execute = nil

		err := c.Register(tool, tk)
		require.Error(t, err)
		require.Contains(t, err.Error(), "no handler")
	})

	t.Run("rejects empty toolkit name", func(t *testing.T) {
		c := newCatalog(t, Config{})

		err := c.Register(testTool("Probe"), schema.Toolkit{Name: "  "})
		require.Error(t, err)
		require.Contains(t, err.Error(), "toolkit name")
	})

	t.Run("rejects duplicate registration", func(t *testing.T) {
		c := newCatalog(t, Config{})

		require.NoError(t, c.Register(testTool("Probe"), tk))

		err := c.Register(testTool("Probe"), tk)
		require.Error(t, err)
		require.Contains(t, err.Error(), "already exists")
	})

	t.Run("duplicate detection is case-insensitive", func(t *testing.T) {
		c := newCatalog(t, Config{})

		require.NoError(t, c.Register(testTool("Probe"), tk))

		err := c.Register(testTool("probe"), schema.Toolkit{Name: "test", Version: "1.0.0"})
		require.Error(t, err)
	})

	t.Run("same tool under two versions is allowed", func(t *testing.T) {
		c := newCatalog(t, Config{})

		require.NoError(t, c.Register(testTool("Probe"), schema.Toolkit{Name: "Test", Version: "1.0.0"}))
		require.NoError(t, c.Register(testTool("Probe"), schema.Toolkit{Name: "Test", Version: "2.0.0"}))
		require.Equal(t, 2, c.Len())
	})
}

func TestDisabledSets(t *testing.T) {
	tk := schema.Toolkit{Name: "Math", Version: "1.0.0"}

	t.Run("disabled tool is silently skipped", func(t *testing.T) {
		c := newCatalog(t, Config{DisabledTools: "Math.Add"})

		require.NoError(t, c.Register(testTool("Add"), tk))
		require.NoError(t, c.Register(testTool("Multiply"), tk))
		require.Equal(t, 1, c.Len())
	})

	t.Run("matching is case-insensitive and trims spaces", func(t *testing.T) {
		c := newCatalog(t, Config{DisabledTools: " math.ADD , Other.Thing "})

		require.NoError(t, c.Register(testTool("Add"), tk))
		require.True(t, c.IsEmpty())
	})

	t.Run("malformed entries are ignored", func(t *testing.T) {
		c := newCatalog(t, Config{DisabledTools: "Add,Math.Add.Extra,Math.%dd"})

		require.NoError(t, c.Register(testTool("Add"), tk))
		require.Equal(t, 1, c.Len())
	})

	t.Run("disabled toolkit skips every tool", func(t *testing.T) {
		c := newCatalog(t, Config{DisabledToolkits: "math"})

		require.NoError(t, c.Register(testTool("Add"), tk))
		require.NoError(t, c.Register(testTool("Multiply"), tk))
		require.True(t, c.IsEmpty())

		require.NoError(t, c.Register(testTool("Probe"), schema.Toolkit{Name: "Other"}))
		require.Equal(t, 1, c.Len())
	})
}

func TestLookup(t *testing.T) {
	c := newCatalog(t, Config{})

	require.NoError(t, c.Register(testTool("Add"), schema.Toolkit{Name: "Math", Version: "1.0.0"}))
	require.NoError(t, c.Register(testTool("Add"), schema.Toolkit{Name: "Math", Version: "2.0.0"}))
	require.NoError(t, c.Register(testTool("Greet"), schema.Toolkit{Name: "Hello", Version: "1.0.0"}))

	t.Run("versioned lookup is exact", func(t *testing.T) {
		tool, err := c.Lookup(schema.FullyQualifiedName{ToolkitName: "Math", Name: "Add", ToolkitVersion: "2.0.0"})
		require.NoError(t, err)
		require.Equal(t, "2.0.0", tool.Version())
	})

	t.Run("versioned lookup misses unknown version", func(t *testing.T) {
		_, err := c.Lookup(schema.FullyQualifiedName{ToolkitName: "Math", Name: "Add", ToolkitVersion: "3.0.0"})
		require.ErrorIs(t, err, errors.ErrToolNotFound)
	})

	t.Run("unversioned lookup needs exactly one match", func(t *testing.T) {
		_, err := c.Lookup(schema.FullyQualifiedName{ToolkitName: "Math", Name: "Add"})
		require.ErrorIs(t, err, errors.ErrMultipleVersions)

		tool, err := c.Lookup(schema.FullyQualifiedName{ToolkitName: "Hello", Name: "Greet"})
		require.NoError(t, err)
		require.Equal(t, "Greet", tool.Name())
	})

	t.Run("lookup is case-insensitive", func(t *testing.T) {
		tool, err := c.Lookup(schema.FullyQualifiedName{ToolkitName: "hello", Name: "GREET"})
		require.NoError(t, err)
		require.Equal(t, "Greet", tool.Name())
	})

	t.Run("unknown tool fails", func(t *testing.T) {
		_, err := c.Lookup(schema.FullyQualifiedName{ToolkitName: "Math", Name: "Subtract"})
		require.ErrorIs(t, err, errors.ErrToolNotFound)
	})
}

func TestLookupByName(t *testing.T) {
	c := newCatalog(t, Config{})

	require.NoError(t, c.Register(testTool("Greet"), schema.Toolkit{Name: "Hello", Version: "1.0.0"}))

	t.Run("resolves underscore-separated wire names", func(t *testing.T) {
		tool, err := c.LookupByName("Hello_Greet", "", "_")
		require.NoError(t, err)
		require.Equal(t, "Greet", tool.Name())
	})

	t.Run("resolves dot-separated names", func(t *testing.T) {
		tool, err := c.LookupByName("Hello.Greet", "", ".")
		require.NoError(t, err)
		require.Equal(t, "Greet", tool.Name())
	})

	t.Run("bare name falls back to any toolkit", func(t *testing.T) {
		tool, err := c.LookupByName("Greet", "", "_")
		require.NoError(t, err)
		require.Equal(t, "Greet", tool.Name())
	})

	t.Run("bare name honors version filter", func(t *testing.T) {
		_, err := c.LookupByName("Greet", "9.9.9", "_")
		require.ErrorIs(t, err, errors.ErrToolNotFound)
	})

	t.Run("unknown name fails", func(t *testing.T) {
		_, err := c.LookupByName("Hello_Wave", "", "_")
		require.ErrorIs(t, err, errors.ErrToolNotFound)
	})
}

func TestListOrdering(t *testing.T) {
	c := newCatalog(t, Config{})

	require.NoError(t, c.Register(testTool("Zeta"), schema.Toolkit{Name: "beta"}))
	require.NoError(t, c.Register(testTool("Alpha"), schema.Toolkit{Name: "beta"}))
	require.NoError(t, c.Register(testTool("Omega"), schema.Toolkit{Name: "Acme"}))

	defs := c.List()
	require.Len(t, defs, 3)
	require.Equal(t, "Acme.Omega", defs[0].FullyQualifiedName)
	require.Equal(t, "beta.Alpha", defs[1].FullyQualifiedName)
	require.Equal(t, "beta.Zeta", defs[2].FullyQualifiedName)
}
