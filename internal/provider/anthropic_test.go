package provider

import (
	"encoding/json"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relay-ai/relay/pkg/types"
)

// toolHistory is a conversation where a tool call was resolved and the user
// then sent a follow-up message.
func toolHistory() []types.Message {
	return []types.Message{
		{Role: types.RoleUser, Type: types.MessageTypeText, Content: "look this up"},
		{
			Role: types.RoleAssistant, Type: types.MessageTypeText,
			ToolCalls: []types.ToolCall{{ID: "c1", Name: "webfetch", Arguments: json.RawMessage(`{"url":"https://example.com"}`)}},
		},
		{Role: types.RoleTool, Type: types.MessageTypeToolResult, Content: "page text", ToolCallID: "c1", ToolName: "webfetch"},
		{Role: types.RoleUser, Type: types.MessageTypeText, Content: "and summarize it"},
	}
}

func TestBuildAnthropicMessagesToolResultAdjacency(t *testing.T) {
	out := buildAnthropicMessages(toolHistory())
	require.Len(t, out, 4)

	assert.Equal(t, anthropic.MessageParamRoleUser, out[0].Role)

	assert.Equal(t, anthropic.MessageParamRoleAssistant, out[1].Role)
	require.Len(t, out[1].Content, 1)
	require.NotNil(t, out[1].Content[0].OfToolUse)
	assert.Equal(t, "c1", out[1].Content[0].OfToolUse.ID)

	// The tool result must ride in the user message directly after the
	// tool_use; the Messages API rejects any other placement.
	assert.Equal(t, anthropic.MessageParamRoleUser, out[2].Role)
	require.Len(t, out[2].Content, 1)
	require.NotNil(t, out[2].Content[0].OfToolResult)
	assert.Equal(t, "c1", out[2].Content[0].OfToolResult.ToolUseID)

	assert.Equal(t, anthropic.MessageParamRoleUser, out[3].Role)
	require.Len(t, out[3].Content, 1)
	require.NotNil(t, out[3].Content[0].OfText)
	assert.Equal(t, "and summarize it", out[3].Content[0].OfText.Text)
}

func TestBuildAnthropicMessagesAssistantTextWithToolUse(t *testing.T) {
	out := buildAnthropicMessages([]types.Message{{
		Role: types.RoleAssistant, Type: types.MessageTypeText, Content: "let me check",
		ToolCalls: []types.ToolCall{{ID: "c9", Name: "echo", Arguments: json.RawMessage(`{}`)}},
	}})
	require.Len(t, out, 1)
	require.Len(t, out[0].Content, 2)
	require.NotNil(t, out[0].Content[0].OfText)
	assert.Equal(t, "let me check", out[0].Content[0].OfText.Text)
	require.NotNil(t, out[0].Content[1].OfToolUse)
	assert.Equal(t, "echo", out[0].Content[1].OfToolUse.Name)
}
