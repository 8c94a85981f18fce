// Package provider abstracts AI model providers behind a single completion
// interface.
package provider

import (
	"context"
	"encoding/json"

	"github.com/relay-ai/relay/pkg/types"
)

// ToolDef describes a tool offered to the model.
type ToolDef struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// Request is a single completion request. Messages carry the full
// conversation history including tool results.
type Request struct {
	Model     string
	System    string
	Messages  []types.Message
	Tools     []ToolDef
	MaxTokens int64
}

// Response is the model's reply to one completion request. ToolCalls is
// non-empty when the model wants tools executed before it can answer.
type Response struct {
	Text         string
	ToolCalls    []types.ToolCall
	FinishReason string
}

// Provider is a model provider capable of completions.
type Provider interface {
	// ID returns the provider identifier, e.g. "anthropic".
	ID() string

	// Models returns the models this provider offers.
	Models() []types.Model

	// Complete performs a single non-streaming completion.
	Complete(ctx context.Context, req *Request) (*Response, error)
}
