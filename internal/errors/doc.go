// Package errors defines error types for the toolserver.
//
// This package provides structured error types for the failure scenarios of
// tool registration and execution. All error types support error unwrapping
// and can be checked using errors.Is, errors.As, and errors.AsType.
package errors
