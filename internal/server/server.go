package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/wagiedev/toolserver-go/internal/catalog"
	"github.com/wagiedev/toolserver-go/internal/errors"
	"github.com/wagiedev/toolserver-go/internal/executor"
	"github.com/wagiedev/toolserver-go/internal/protocol"
	"github.com/wagiedev/toolserver-go/internal/schema"
)

// ProtocolVersion is the MCP protocol revision this server speaks.
const ProtocolVersion = "2024-11-05"

// SecretSource resolves a secret key to its value at call time. A typical
// implementation is os.LookupEnv.
type SecretSource func(key string) (string, bool)

// Options configure a Server. The zero value is usable.
type Options struct {
	// Name and Version identify the server in the initialize handshake.
	Name    string
	Version string

	// Logger receives all server logging. Defaults to a discard logger.
	Logger *slog.Logger

	// EnableLogging installs the request/response logging middleware.
	EnableLogging bool
	// LogBodies includes request parameters in middleware log output.
	LogBodies bool

	// Middleware is appended to the processor chain after any built-ins.
	Middleware []protocol.Middleware

	// Secrets resolves tool secret requirements at call time.
	Secrets SecretSource

	// UserID attributes tool calls to a caller. A random id is generated
	// when unset.
	UserID string
}

// Server dispatches protocol requests against a tool catalog. Messages on a
// connection are handled one at a time, in arrival order; a request is fully
// processed and its response handed to the transport before the next line is
// read.
type Server struct {
	log       *slog.Logger
	catalog   *catalog.Catalog
	processor *protocol.Processor
	handlers  map[string]handlerFunc

	name    string
	version string
	userID  string
	secrets SecretSource

	mu    sync.Mutex
	state State

	pendingShutdown atomic.Bool
	shutdownOnce    sync.Once
	done            chan struct{}
}

type handlerFunc func(ctx context.Context, req *protocol.Request) any

// New creates a Server over the given catalog.
func New(cat *catalog.Catalog, opts Options) *Server {
	if opts.Name == "" {
		opts.Name = "toolserver"
	}

	if opts.Version == "" {
		opts.Version = "0.1.0"
	}

	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	userID := opts.UserID
	if userID == "" {
		userID = uuid.NewString()
	}

	var middleware []protocol.Middleware
	if opts.EnableLogging {
		middleware = append(middleware, protocol.NewLoggingMiddleware(log, opts.LogBodies).Process)
	}

	middleware = append(middleware, opts.Middleware...)

	s := &Server{
		log:       log.With("component", "mcp_server"),
		catalog:   cat,
		processor: protocol.NewProcessor(log, middleware...),
		name:      opts.Name,
		version:   opts.Version,
		userID:    userID,
		secrets:   opts.Secrets,
		state:     StateCreated,
		done:      make(chan struct{}),
	}

	s.handlers = map[string]handlerFunc{
		protocol.MethodInitialize:    s.handleInitialize,
		protocol.MethodPing:          s.handlePing,
		protocol.MethodListTools:     s.handleListTools,
		protocol.MethodCallTool:      s.handleCallTool,
		protocol.MethodShutdown:      s.handleShutdown,
		protocol.MethodCancel:        s.handleCancel,
		protocol.MethodListResources: s.handleListResources,
		protocol.MethodListPrompts:   s.handleListPrompts,
	}

	return s
}

// State returns the server's current lifecycle state.
func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

func (s *Server) setState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = st
}

// Shutdown transitions the server to Stopped and releases Done. It is
// idempotent and safe to call from any goroutine.
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(func() {
		s.setState(StateShuttingDown)
		s.log.Info("Server shutting down")
		s.setState(StateStopped)
		close(s.done)
	})
}

// Done is closed when the server has stopped.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// RunConnection serves one connection: it reads lines from the channel,
// handles each message, and writes responses via send. It returns when the
// input channel closes, the context is cancelled, or the server shuts down.
func (s *Server) RunConnection(ctx context.Context, lines <-chan string, send func(string) error) error {
	if s.State() == StateStopped {
		return errors.ErrServerStopped
	}

	connID := ulid.Make().String()
	s.log.Info("Serving connection", "connection_id", connID, "user_id", s.userID)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Connection cancelled")
			s.Shutdown()

			return nil

		case <-s.done:
			return nil

		case line, ok := <-lines:
			if !ok {
				s.log.Info("End of input, closing connection")
				s.Shutdown()

				return nil
			}

			resp := s.HandleMessage(ctx, line)
			if resp == nil {
				continue
			}

			processed := s.processor.ProcessResponse(resp)

			data, err := json.Marshal(processed)
			if err != nil {
				s.log.Error("Failed to encode response", "error", err)

				continue
			}

			if err := send(string(data)); err != nil {
				s.log.Error("Failed to write response", "error", err)
				s.Shutdown()

				return err
			}

			if s.pendingShutdown.Load() {
				s.Shutdown()

				return nil
			}
		}
	}
}

// HandleMessage processes one raw message and returns the response to write,
// or nil when the message produces no response (notifications, malformed
// input, or a stopped server).
func (s *Server) HandleMessage(ctx context.Context, raw any) any {
	if st := s.State(); st == StateShuttingDown || st == StateStopped {
		s.log.Debug("Dropping message, server is stopping")

		return nil
	}

	switch msg := s.processor.ProcessRequest(raw).(type) {
	case nil:
		return nil

	case *protocol.InitializeRequest:
		return s.dispatch(ctx, &msg.Request)

	case *protocol.Request:
		return s.dispatch(ctx, msg)

	case map[string]any:
		s.handleUntyped(msg)

		return nil

	default:
		return nil
	}
}

// dispatch routes one typed request to its handler, recovering from handler
// panics so a single request can never kill the connection.
func (s *Server) dispatch(ctx context.Context, req *protocol.Request) (resp any) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Handler panicked", "method", req.Method, "panic", r)
			resp = protocol.NewErrorResponse(req.ID, protocol.CodeInternalError, "Internal error")
		}
	}()

	h, ok := s.handlers[req.Method]
	if !ok {
		s.log.Warn("Unknown method", "method", req.Method)

		return protocol.NewErrorResponse(req.ID, protocol.CodeMethodNotFound, "Method not found: "+req.Method)
	}

	if req.Method != protocol.MethodInitialize && s.State() != StateServing {
		s.setState(StateServing)
	}

	return h(ctx, req)
}

// handleUntyped absorbs messages that are not typed requests: notifications
// are logged and everything else is dropped. Neither is ever answered.
func (s *Server) handleUntyped(msg map[string]any) {
	method, _ := msg["method"].(string)

	switch {
	case method == protocol.NotificationPrefix+"cancelled":
		s.log.Info("Notification received", "method", method)
	case strings.HasPrefix(method, protocol.NotificationPrefix):
		s.log.Debug("Notification received", "method", method)
	case method != "":
		s.log.Debug("Ignoring request without id", "method", method)
	default:
		s.log.Debug("Ignoring message without method")
	}
}

func (s *Server) handleInitialize(_ context.Context, req *protocol.Request) any {
	if s.State() == StateCreated {
		s.setState(StateInitialized)
	}

	s.log.Info("Connection initialized", "client", clientName(req.Params))

	return protocol.NewResponse(req.ID, map[string]any{
		"protocolVersion": ProtocolVersion,
		"capabilities": map[string]any{
			"tools":     map[string]any{},
			"resources": map[string]any{},
			"prompts":   map[string]any{},
		},
		"serverInfo": map[string]any{
			"name":    s.name,
			"version": s.version,
		},
		"instructions": fmt.Sprintf("%s serves %d tools over MCP.", s.name, s.catalog.Len()),
	})
}

func (s *Server) handlePing(_ context.Context, req *protocol.Request) any {
	return protocol.NewResponse(req.ID, map[string]any{"pong": true})
}

// handleShutdown acknowledges the request and arranges for the connection to
// stop after the acknowledgement is written.
func (s *Server) handleShutdown(_ context.Context, req *protocol.Request) any {
	s.log.Info("Shutdown requested")
	s.pendingShutdown.Store(true)

	return protocol.NewResponse(req.ID, map[string]any{"ok": true})
}

func (s *Server) handleCancel(_ context.Context, req *protocol.Request) any {
	// Dispatch is serialized, so there is never an in-flight request to
	// cancel by the time this is read. Acknowledge and move on.
	s.log.Info("Cancel requested", "params", req.Params)

	return protocol.NewResponse(req.ID, map[string]any{"ok": true})
}

func (s *Server) handleListResources(_ context.Context, req *protocol.Request) any {
	return protocol.NewResponse(req.ID, map[string]any{"resources": []any{}})
}

func (s *Server) handleListPrompts(_ context.Context, req *protocol.Request) any {
	return protocol.NewResponse(req.ID, map[string]any{"prompts": []any{}})
}

func (s *Server) handleListTools(_ context.Context, req *protocol.Request) any {
	entries := s.catalog.Tools()
	tools := make([]Tool, 0, len(entries))

	for _, entry := range entries {
		tools = append(tools, wireTool(entry))
	}

	s.log.Debug("Listed tools", "count", len(tools))

	return protocol.NewResponse(req.ID, map[string]any{"tools": tools})
}

func (s *Server) handleCallTool(ctx context.Context, req *protocol.Request) any {
	name, _ := req.Params["name"].(string)
	if name == "" {
		return protocol.NewErrorResponse(req.ID, protocol.CodeInvalidParams, "Missing tool name")
	}

	args, ok := req.Params["arguments"].(map[string]any)
	if !ok {
		// Some clients send the arguments under "input".
		args, _ = req.Params["input"].(map[string]any)
	}

	tool, err := s.catalog.LookupByName(name, "", mcpNameSeparator)
	if err != nil {
		s.log.Warn("Requested tool is not cataloged", "tool", name, "error", err)

		return protocol.NewErrorResponse(req.ID, protocol.CodeInvalidParams, "Tool not found: "+name)
	}

	tc := &schema.ToolContext{UserID: s.userID}
	s.resolveSecrets(tool, tc)

	out := executor.Run(ctx, s.log, tool.Handler, tool.Definition, tool.Input, tool.Output, tc, args)
	s.emitToolLogs(tool, out)

	if out.Error != nil {
		s.log.Error("Tool call failed",
			"tool", name,
			"execution_id", out.ExecutionID,
			"error", out.Error.Message,
			"developer_message", out.Error.DeveloperMessage,
		)

		return protocol.NewResponse(req.ID, CallToolResult{
			Content: errorContent(out.Error),
			IsError: true,
		})
	}

	s.log.Debug("Tool call succeeded",
		"tool", name,
		"execution_id", out.ExecutionID,
		"duration_ms", out.Duration.Milliseconds(),
	)

	return protocol.NewResponse(req.ID, CallToolResult{Content: wireContent(out.Value)})
}

// resolveSecrets copies each secret the tool requires from the configured
// source onto the call context. Missing keys are left unresolved; the tool
// decides whether that is fatal.
func (s *Server) resolveSecrets(tool *catalog.MaterializedTool, tc *schema.ToolContext) {
	if s.secrets == nil {
		return
	}

	for _, req := range tool.Definition.Requirements.Secrets {
		value, ok := s.secrets(req.Key)
		if !ok {
			s.log.Warn("Required secret is not available", "tool", tool.Definition.FullyQualifiedName, "key", req.Key)

			continue
		}

		tc.SetSecret(req.Key, value)
	}
}

// emitToolLogs forwards the log entries accumulated during a call to the
// server logger at their recorded levels.
func (s *Server) emitToolLogs(tool *catalog.MaterializedTool, out *schema.ToolCallOutput) {
	for _, entry := range out.Logs {
		attrs := []any{"tool", tool.Definition.FullyQualifiedName, "execution_id", out.ExecutionID}

		switch entry.Level {
		case "error":
			s.log.Error(entry.Message, attrs...)
		case "warning":
			s.log.Warn(entry.Message, attrs...)
		case "debug":
			s.log.Debug(entry.Message, attrs...)
		default:
			s.log.Info(entry.Message, attrs...)
		}
	}
}

// errorContent renders a tool call error for the caller. The sanitized
// message always leads; retry guidance is appended when the tool offered it.
// Developer detail never leaves the server.
func errorContent(callErr *schema.ToolCallError) []ContentBlock {
	text := callErr.Message

	if callErr.CanRetry {
		payload, err := json.Marshal(map[string]any{
			"message":                   callErr.Message,
			"can_retry":                 true,
			"retry_after_ms":            callErr.RetryAfterMs,
			"additional_prompt_content": callErr.AdditionalPromptContent,
		})
		if err == nil {
			text = string(payload)
		}
	}

	return []ContentBlock{{Type: "text", Text: text}}
}

func clientName(params map[string]any) string {
	info, _ := params["clientInfo"].(map[string]any)
	name, _ := info["name"].(string)
	if name == "" {
		return "unknown"
	}

	return name
}
