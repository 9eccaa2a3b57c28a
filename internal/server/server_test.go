package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/toolserver-go/internal/catalog"
	"github.com/wagiedev/toolserver-go/internal/errors"
	"github.com/wagiedev/toolserver-go/internal/protocol"
	"github.com/wagiedev/toolserver-go/internal/schema"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testServer(t *testing.T) *Server {
	t.Helper()

	cat := catalog.New(testLogger(), catalog.Config{})

	err := cat.RegisterToolkit(
		schema.Toolkit{Name: "Math", Version: "1.0.0"},
		schema.Tool{
			Name:        "Add",
			Description: "Adds two numbers.",
			Params: []schema.Param{
				{Name: "a", Type: schema.TypeNumber, Description: "First addend", Required: true},
				{Name: "b", Type: schema.TypeNumber, Description: "Second addend", Required: true},
			},
			Output: schema.Output{Type: schema.TypeNumber, Description: "The sum"},
			Execute: func(_ context.Context, _ *schema.ToolContext, args map[string]any) (any, error) {
				return args["a"].(float64) + args["b"].(float64), nil
			},
		},
		schema.Tool{
			Name:        "Fail",
			Description: "Always fails.",
			Output:      schema.Output{Type: schema.TypeString, Description: "Never produced"},
			Execute: func(_ context.Context, _ *schema.ToolContext, _ map[string]any) (any, error) {
				return nil, fmt.Errorf("secret internal detail")
			},
		},
		schema.Tool{
			Name:        "Whoami",
			Description: "Returns the calling user id.",
			Output:      schema.Output{Type: schema.TypeString, Description: "The user id"},
			Execute: func(_ context.Context, tc *schema.ToolContext, _ map[string]any) (any, error) {
				return tc.UserID, nil
			},
		},
	)
	require.NoError(t, err)

	return New(cat, Options{Name: "test-server", Version: "9.9.9", Logger: testLogger(), UserID: "user-1"})
}

func handle(t *testing.T, s *Server, line string) any {
	t.Helper()

	return s.HandleMessage(context.Background(), line)
}

func requireResponse(t *testing.T, msg any) *protocol.Response {
	t.Helper()

	resp, ok := msg.(*protocol.Response)
	require.True(t, ok, "expected *protocol.Response, got %T", msg)

	return resp
}

func requireErrorResponse(t *testing.T, msg any) *protocol.ErrorResponse {
	t.Helper()

	resp, ok := msg.(*protocol.ErrorResponse)
	require.True(t, ok, "expected *protocol.ErrorResponse, got %T", msg)

	return resp
}

func TestInitialize(t *testing.T) {
	s := testServer(t)

	resp := requireResponse(t, handle(t, s,
		`{"jsonrpc":"2.0","id":"init-1","method":"initialize","params":{"clientInfo":{"name":"client"}}}`))

	require.Equal(t, "init-1", resp.ID)

	result := resp.Result.(map[string]any)
	require.Equal(t, ProtocolVersion, result["protocolVersion"])

	info := result["serverInfo"].(map[string]any)
	require.Equal(t, "test-server", info["name"])
	require.Equal(t, "9.9.9", info["version"])

	require.Contains(t, result["capabilities"].(map[string]any), "tools")
	require.Equal(t, StateInitialized, s.State())
}

func TestListTools(t *testing.T) {
	s := testServer(t)

	resp := requireResponse(t, handle(t, s, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`))

	tools := resp.Result.(map[string]any)["tools"].([]Tool)
	require.Len(t, tools, 3)
	require.Equal(t, "Math_Add", tools[0].Name)
	require.NotNil(t, tools[0].InputSchema)
	require.Equal(t, "Adds two numbers.", tools[0].Description)

	t.Run("advertised names are versionless and wire-safe", func(t *testing.T) {
		for _, tool := range tools {
			require.NotContains(t, tool.Name, "@")
			require.Regexp(t, `^[a-zA-Z0-9_-]+$`, tool.Name)
		}
	})

	t.Run("advertised name resolves through tools/call", func(t *testing.T) {
		call := fmt.Sprintf(
			`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":%q,"arguments":{"a":2,"b":2}}}`,
			tools[0].Name,
		)

		resp := requireResponse(t, handle(t, s, call))

		result := resp.Result.(CallToolResult)
		require.False(t, result.IsError)
		require.Equal(t, "4", result.Content[0].Text)
	})
}

func TestCallTool(t *testing.T) {
	t.Run("successful call returns text content", func(t *testing.T) {
		s := testServer(t)

		resp := requireResponse(t, handle(t, s,
			`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"Math_Add","arguments":{"a":5,"b":3}}}`))

		require.Equal(t, float64(3), resp.ID)

		result := resp.Result.(CallToolResult)
		require.False(t, result.IsError)
		require.Len(t, result.Content, 1)
		require.Equal(t, "text", result.Content[0].Type)
		require.Equal(t, "8", result.Content[0].Text)
	})

	t.Run("arguments under input are accepted", func(t *testing.T) {
		s := testServer(t)

		resp := requireResponse(t, handle(t, s,
			`{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"Math_Add","input":{"a":1,"b":2}}}`))

		result := resp.Result.(CallToolResult)
		require.Equal(t, "3", result.Content[0].Text)
	})

	t.Run("tool failure becomes an isError result", func(t *testing.T) {
		s := testServer(t)

		resp := requireResponse(t, handle(t, s,
			`{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":"Math_Fail","arguments":{}}}`))

		result := resp.Result.(CallToolResult)
		require.True(t, result.IsError)
		require.Equal(t, "Error in execution of Fail", result.Content[0].Text)
		require.NotContains(t, result.Content[0].Text, "secret internal detail")
	})

	t.Run("unknown tool is an invalid-params error", func(t *testing.T) {
		s := testServer(t)

		resp := requireErrorResponse(t, handle(t, s,
			`{"jsonrpc":"2.0","id":6,"method":"tools/call","params":{"name":"Math_Nope","arguments":{}}}`))

		require.Equal(t, protocol.CodeInvalidParams, resp.Error.Code)
		require.Contains(t, resp.Error.Message, "Math_Nope")

		// The connection keeps serving after a failed lookup.
		requireResponse(t, handle(t, s, `{"jsonrpc":"2.0","id":7,"method":"ping"}`))
		require.Equal(t, StateServing, s.State())
	})

	t.Run("missing tool name is an invalid-params error", func(t *testing.T) {
		s := testServer(t)

		resp := requireErrorResponse(t, handle(t, s,
			`{"jsonrpc":"2.0","id":8,"method":"tools/call","params":{}}`))

		require.Equal(t, protocol.CodeInvalidParams, resp.Error.Code)
	})

	t.Run("calls are attributed to the configured user", func(t *testing.T) {
		s := testServer(t)

		resp := requireResponse(t, handle(t, s,
			`{"jsonrpc":"2.0","id":9,"method":"tools/call","params":{"name":"Math_Whoami","arguments":{}}}`))

		result := resp.Result.(CallToolResult)
		require.Equal(t, "user-1", result.Content[0].Text)
	})
}

func TestAuxiliaryMethods(t *testing.T) {
	s := testServer(t)

	t.Run("ping", func(t *testing.T) {
		resp := requireResponse(t, handle(t, s, `{"jsonrpc":"2.0","id":1,"method":"ping"}`))
		require.Equal(t, map[string]any{"pong": true}, resp.Result)
	})

	t.Run("cancel is acknowledged", func(t *testing.T) {
		resp := requireResponse(t, handle(t, s, `{"jsonrpc":"2.0","id":2,"method":"$/cancelRequest","params":{"id":1}}`))
		require.Equal(t, map[string]any{"ok": true}, resp.Result)
	})

	t.Run("resources list is empty", func(t *testing.T) {
		resp := requireResponse(t, handle(t, s, `{"jsonrpc":"2.0","id":3,"method":"resources/list"}`))
		require.Equal(t, map[string]any{"resources": []any{}}, resp.Result)
	})

	t.Run("prompts list is empty", func(t *testing.T) {
		resp := requireResponse(t, handle(t, s, `{"jsonrpc":"2.0","id":4,"method":"prompts/list"}`))
		require.Equal(t, map[string]any{"prompts": []any{}}, resp.Result)
	})

	t.Run("unknown method", func(t *testing.T) {
		resp := requireErrorResponse(t, handle(t, s, `{"jsonrpc":"2.0","id":5,"method":"bogus/method"}`))
		require.Equal(t, protocol.CodeMethodNotFound, resp.Error.Code)
		require.Equal(t, "Method not found: bogus/method", resp.Error.Message)
	})
}

func TestSilentMessages(t *testing.T) {
	s := testServer(t)

	t.Run("notifications are never answered", func(t *testing.T) {
		require.Nil(t, handle(t, s, `{"jsonrpc":"2.0","method":"notifications/initialized"}`))
		require.Nil(t, handle(t, s, `{"jsonrpc":"2.0","method":"notifications/cancelled","params":{"requestId":1}}`))
	})

	t.Run("malformed input is dropped", func(t *testing.T) {
		require.Nil(t, handle(t, s, `{"not json`))
		require.Nil(t, handle(t, s, "   "))
	})

	t.Run("request without id is dropped", func(t *testing.T) {
		require.Nil(t, handle(t, s, `{"jsonrpc":"2.0","method":"tools/list"}`))
	})

	t.Run("connection still serves afterwards", func(t *testing.T) {
		requireResponse(t, handle(t, s, `{"jsonrpc":"2.0","id":1,"method":"ping"}`))
	})
}

func TestLifecycle(t *testing.T) {
	t.Run("states advance through the handshake", func(t *testing.T) {
		s := testServer(t)
		require.Equal(t, StateCreated, s.State())

		handle(t, s, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`)
		require.Equal(t, StateInitialized, s.State())

		handle(t, s, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
		require.Equal(t, StateServing, s.State())
	})

	t.Run("shutdown is idempotent", func(t *testing.T) {
		s := testServer(t)

		s.Shutdown()
		s.Shutdown()
		require.Equal(t, StateStopped, s.State())

		select {
		case <-s.Done():
		default:
			t.Fatal("Done channel should be closed")
		}
	})

	t.Run("stopped server drops messages", func(t *testing.T) {
		s := testServer(t)
		s.Shutdown()

		require.Nil(t, handle(t, s, `{"jsonrpc":"2.0","id":1,"method":"ping"}`))
	})
}

func TestRunConnection(t *testing.T) {
	t.Run("serves lines until input closes", func(t *testing.T) {
		s := testServer(t)

		lines := make(chan string, 4)
		lines <- `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`
		lines <- `{"jsonrpc":"2.0","id":2,"method":"ping"}`
		close(lines)

		var sent []string
		err := s.RunConnection(context.Background(), lines, func(line string) error {
			sent = append(sent, line)

			return nil
		})

		require.NoError(t, err)
		require.Len(t, sent, 2)
		require.Contains(t, sent[0], `"protocolVersion":"2024-11-05"`)
		require.Contains(t, sent[1], `"pong":true`)
		require.Equal(t, StateStopped, s.State())
	})

	t.Run("shutdown request stops after the acknowledgement", func(t *testing.T) {
		s := testServer(t)

		lines := make(chan string, 4)
		lines <- `{"jsonrpc":"2.0","id":1,"method":"shutdown"}`
		lines <- `{"jsonrpc":"2.0","id":2,"method":"ping"}`

		var sent []string
		err := s.RunConnection(context.Background(), lines, func(line string) error {
			sent = append(sent, line)

			return nil
		})

		require.NoError(t, err)
		require.Len(t, sent, 1)
		require.Contains(t, sent[0], `"ok":true`)
		require.Equal(t, StateStopped, s.State())
	})

	t.Run("cancelled context stops the loop", func(t *testing.T) {
		s := testServer(t)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		done := make(chan error, 1)
		go func() {
			done <- s.RunConnection(ctx, make(chan string), func(string) error { return nil })
		}()

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("RunConnection did not return after cancellation")
		}

		require.Equal(t, StateStopped, s.State())
	})

	t.Run("stopped server refuses a new connection", func(t *testing.T) {
		s := testServer(t)
		s.Shutdown()

		err := s.RunConnection(context.Background(), make(chan string), func(string) error { return nil })
		require.ErrorIs(t, err, errors.ErrServerStopped)
	})
}
