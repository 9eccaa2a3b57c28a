// Package server implements the MCP-facing protocol server: the connection
// lifecycle state machine, per-method request dispatch against a tool
// catalog, and conversion between catalog types and their wire shapes.
//
// Dispatch is serialized per connection. Each line is parsed, handled, and
// its response written before the next line is read, so tool handlers never
// run concurrently on one connection.
package server
