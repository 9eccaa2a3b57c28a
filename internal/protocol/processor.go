package protocol

import (
	"encoding/json"
	"log/slog"
	"strings"
	"time"
)

// Direction tells middleware which way a message is traveling.
type Direction string

const (
	DirectionRequest  Direction = "request"
	DirectionResponse Direction = "response"
)

// Middleware is interposed on every inbound and outbound message. It may
// transform the message; an error is logged and the middleware is skipped,
// never aborting the chain for the remaining middleware or the dispatch.
type Middleware func(msg any, direction Direction) (any, error)

// Processor converts raw transport lines into typed protocol messages and
// threads them through an ordered middleware chain.
type Processor struct {
	log        *slog.Logger
	middleware []Middleware
}

// NewProcessor creates a Processor with the given middleware, in order.
// Nil entries are dropped.
func NewProcessor(log *slog.Logger, middleware ...Middleware) *Processor {
	p := &Processor{log: log.With("component", "message_processor")}

	for _, mw := range middleware {
		if mw != nil {
			p.middleware = append(p.middleware, mw)
		}
	}

	return p
}

// AddMiddleware appends a middleware to the end of the chain.
func (p *Processor) AddMiddleware(mw Middleware) {
	if mw != nil {
		p.middleware = append(p.middleware, mw)
	}
}

// ProcessRequest parses and processes an inbound message.
func (p *Processor) ProcessRequest(msg any) any {
	return p.Process(msg, DirectionRequest)
}

// ProcessResponse processes an outbound message.
func (p *Processor) ProcessResponse(msg any) any {
	return p.Process(msg, DirectionResponse)
}

// Process converts a raw line into a typed message, then runs the
// middleware chain. It never fails:
//
//   - whitespace-only input yields nil (nothing to dispatch)
//   - malformed JSON is logged and the original string passes through
//   - notification methods stay as raw maps (shapes are open-ended)
//   - a middleware error is logged and that middleware's output discarded
func (p *Processor) Process(msg any, direction Direction) any {
	if raw, ok := msg.(string); ok {
		msg = p.parseLine(raw)
		if msg == nil {
			return nil
		}
	}

	result := msg

	for _, mw := range p.middleware {
		transformed, err := mw(result, direction)
		if err != nil {
			p.log.Warn("Middleware failed, skipping", "direction", direction, "error", err)

			continue
		}

		result = transformed
	}

	return result
}

// parseLine turns one transport line into a typed message.
func (p *Processor) parseLine(raw string) any {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		p.log.Warn("Failed to parse message as JSON", "error", err, "message", truncate(raw, 100))

		return raw
	}

	method, _ := parsed["method"].(string)
	_, hasID := parsed["id"]

	switch {
	case method == MethodInitialize && hasID:
		p.log.Debug("Parsed initialize request")

		return &InitializeRequest{Request: requestFrom(parsed, method)}

	case strings.HasPrefix(method, NotificationPrefix):
		p.log.Debug("Received notification", "method", method)

		return parsed

	case method != "" && hasID:
		p.log.Debug("Parsed method request", "method", method)

		req := requestFrom(parsed, method)

		return &req
	}

	return parsed
}

// requestFrom builds a Request from decoded JSON, stamping the arrival time.
func requestFrom(parsed map[string]any, method string) Request {
	version, _ := parsed["jsonrpc"].(string)
	if version == "" {
		version = JSONRPCVersion
	}

	params, _ := parsed["params"].(map[string]any)

	return Request{
		JSONRPC:    version,
		ID:         parsed["id"],
		Method:     method,
		Params:     params,
		ReceivedAt: time.Now(),
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[:n] + "..."
}
