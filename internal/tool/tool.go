// Package tool provides the tool framework for model tool execution.
package tool

import (
	"context"
	"encoding/json"
)

// Tool defines the interface for all tools.
type Tool interface {
	// Name returns the tool identifier used in model tool calls.
	Name() string

	// Description returns the tool description shown to the model.
	Description() string

	// Parameters returns the JSON Schema for tool parameters.
	Parameters() json.RawMessage

	// Execute executes the tool with the given input.
	Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error)
}

// Context provides execution context to tools.
type Context struct {
	SessionID string
	Owner     string
	CallID    string
}

// Result represents the output of a tool execution. IsError marks failures
// that are reported back to the model as a failed tool result rather than
// aborting the turn.
type Result struct {
	Title    string         `json:"title,omitempty"`
	Output   string         `json:"output"`
	Metadata map[string]any `json:"metadata,omitempty"`
	IsError  bool           `json:"isError,omitempty"`
}

// ErrorResult builds a failed Result from an error message.
func ErrorResult(msg string) *Result {
	return &Result{Output: msg, IsError: true}
}

// BaseTool is a function-backed Tool implementation, convenient for tests
// and simple tools.
type BaseTool struct {
	name        string
	description string
	parameters  json.RawMessage
	execute     func(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error)
}

// NewBaseTool creates a new function-backed tool.
func NewBaseTool(name, description string, params json.RawMessage, execute func(context.Context, json.RawMessage, *Context) (*Result, error)) *BaseTool {
	return &BaseTool{
		name:        name,
		description: description,
		parameters:  params,
		execute:     execute,
	}
}

func (t *BaseTool) Name() string                { return t.name }
func (t *BaseTool) Description() string         { return t.description }
func (t *BaseTool) Parameters() json.RawMessage { return t.parameters }

func (t *BaseTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	return t.execute(ctx, input, toolCtx)
}
