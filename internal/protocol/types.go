package protocol

import "time"

// JSONRPCVersion is the protocol version stamped on every message.
const JSONRPCVersion = "2.0"

// Supported request methods.
const (
	MethodInitialize    = "initialize"
	MethodPing          = "ping"
	MethodListTools     = "tools/list"
	MethodCallTool      = "tools/call"
	MethodShutdown      = "shutdown"
	MethodCancel        = "$/cancelRequest"
	MethodListResources = "resources/list"
	MethodListPrompts   = "prompts/list"
)

// NotificationPrefix marks methods that are notifications and are never
// answered. Their shapes are open-ended and deliberately not validated.
const NotificationPrefix = "notifications/"

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Request is a JSON-RPC request. ReceivedAt is stamped when the request is
// parsed off the transport and is used to compute round-trip duration.
type Request struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      any            `json:"id,omitempty"`
	Method  string         `json:"method"`
	Params  map[string]any `json:"params,omitempty"`

	ReceivedAt time.Time `json:"-"`
}

// InitializeRequest is the first request of a connection.
type InitializeRequest struct {
	Request
}

// Response is a successful JSON-RPC response correlated to a request id.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id"`
	Result  any    `json:"result"`
}

// ErrorResponse is a failed JSON-RPC response correlated to a request id.
type ErrorResponse struct {
	JSONRPC string       `json:"jsonrpc"`
	ID      any          `json:"id"`
	Error   *ErrorDetail `json:"error"`
}

// ErrorDetail is the error member of an ErrorResponse.
type ErrorDetail struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// NewResponse builds a successful response for the given request id.
func NewResponse(id, result any) *Response {
	return &Response{JSONRPC: JSONRPCVersion, ID: id, Result: result}
}

// NewErrorResponse builds an error response for the given request id.
func NewErrorResponse(id any, code int, message string) *ErrorResponse {
	return &ErrorResponse{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error:   &ErrorDetail{Code: code, Message: message},
	}
}
