// Package tools provides the tool registry and execution framework.
//
// This file defines sentinel error types for registration and dispatch.
package tools

import "fmt"

// DuplicateToolError is returned when a registration reuses an
// existing tool name. Tool names are unique keys for the lifetime of
// the process.
type DuplicateToolError struct {
	ToolName string
}

// Error implements the error interface.
func (e *DuplicateToolError) Error() string {
	return fmt.Sprintf("tool %q is already registered", e.ToolName)
}

// UnknownToolError is returned when a call targets a tool that is not
// present in the registry. This indicates a capability mismatch, not a
// transient execution failure.
type UnknownToolError struct {
	ToolName string
}

// Error implements the error interface.
func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool: %s", e.ToolName)
}

// ToolNotPermittedError is synthesized when a requested tool exists in
// the registry but sits outside the run's allow-list. The tool is
// never invoked; the error is reported back to the model as a result.
type ToolNotPermittedError struct {
	ToolName string
}

// Error implements the error interface.
func (e *ToolNotPermittedError) Error() string {
	return fmt.Sprintf("tool %q not permitted", e.ToolName)
}
