package protocol

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// LoggingMiddleware logs every request and its eventual response, including
// the round-trip duration correlated by request id.
type LoggingMiddleware struct {
	log       *slog.Logger
	logBodies bool

	mu     sync.Mutex
	starts map[string]time.Time
}

// NewLoggingMiddleware creates the middleware. When logBodies is set,
// request parameters are included in the log output.
func NewLoggingMiddleware(log *slog.Logger, logBodies bool) *LoggingMiddleware {
	return &LoggingMiddleware{
		log:       log.With("component", "mcp_logging"),
		logBodies: logBodies,
		starts:    make(map[string]time.Time, 8),
	}
}

// Process implements Middleware. The message is always returned unmodified.
func (m *LoggingMiddleware) Process(msg any, direction Direction) (any, error) {
	if direction == DirectionRequest {
		m.logRequest(msg)
	} else {
		m.logResponse(msg)
	}

	return msg, nil
}

func (m *LoggingMiddleware) logRequest(msg any) {
	var req *Request

	switch v := msg.(type) {
	case *InitializeRequest:
		req = &v.Request
	case *Request:
		req = v
	default:
		m.log.Debug("Ignoring non-request message", "type", fmt.Sprintf("%T", msg))

		return
	}

	start := req.ReceivedAt
	if start.IsZero() {
		start = time.Now()
	}

	m.mu.Lock()
	m.starts[idKey(req.ID)] = start
	m.mu.Unlock()

	if m.logBodies {
		m.log.Info("Request received", "method", req.Method, "id", req.ID, "params", req.Params)

		return
	}

	m.log.Info("Request received", "method", req.Method, "id", req.ID)
}

func (m *LoggingMiddleware) logResponse(msg any) {
	switch v := msg.(type) {
	case *Response:
		m.log.Info("Request completed", "id", v.ID, "duration_ms", m.durationMs(v.ID))
	case *ErrorResponse:
		m.log.Error("Request failed",
			"id", v.ID,
			"code", v.Error.Code,
			"error", v.Error.Message,
			"duration_ms", m.durationMs(v.ID),
		)
	default:
		m.log.Debug("Ignoring non-response message", "type", fmt.Sprintf("%T", msg))
	}
}

// durationMs computes and forgets the round trip for a request id.
func (m *LoggingMiddleware) durationMs(id any) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := idKey(id)

	start, ok := m.starts[key]
	if !ok {
		return 0
	}

	delete(m.starts, key)

	return time.Since(start).Milliseconds()
}

// idKey normalizes a request id for map keying. Ids may be strings or
// numbers on the wire, and the two spaces must not collide: the numeric id 1
// and the string id "1" identify different requests.
func idKey(id any) string {
	return fmt.Sprintf("%T:%v", id, id)
}
