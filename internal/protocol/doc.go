// Package protocol defines the JSON-RPC 2.0 message envelope used over the
// stdio transport, plus the message processor that parses raw transport
// lines and threads them through a middleware chain before dispatch.
//
// The Processor handles:
//   - Parsing raw lines into typed Request/InitializeRequest messages
//   - Passing notification methods through as untyped maps
//   - Running each message through an ordered middleware chain
//   - Tolerating malformed input without ever raising
package protocol
