package mcp

import (
	"context"
	"encoding/json"

	"github.com/relay-ai/relay/internal/tool"
)

// ToolSource adapts a Client into a tool.Source so MCP tools merge into the
// registry alongside builtins.
type ToolSource struct {
	client *Client
}

// NewToolSource creates a tool source backed by the given client.
func NewToolSource(client *Client) *ToolSource {
	return &ToolSource{client: client}
}

// Tools returns the currently connected servers' tools.
func (s *ToolSource) Tools(context.Context) []tool.Tool {
	infos := s.client.Tools()
	tools := make([]tool.Tool, len(infos))
	for i, info := range infos {
		tools[i] = &remoteTool{client: s.client, info: info}
	}
	return tools
}

// remoteTool executes on a connected MCP server.
type remoteTool struct {
	client *Client
	info   ToolInfo
}

func (t *remoteTool) Name() string                { return t.info.Name }
func (t *remoteTool) Description() string         { return t.info.Description }
func (t *remoteTool) Parameters() json.RawMessage { return t.info.InputSchema }

func (t *remoteTool) Execute(ctx context.Context, input json.RawMessage, _ *tool.Context) (*tool.Result, error) {
	output, err := t.client.ExecuteTool(ctx, t.info.Name, input)
	if err != nil {
		return nil, err
	}
	return &tool.Result{Output: output}, nil
}
