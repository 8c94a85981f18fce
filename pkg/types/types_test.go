package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPendingToolCalls(t *testing.T) {
	asst := func(calls ...ToolCall) Message {
		return Message{Role: RoleAssistant, Type: MessageTypeText, ToolCalls: calls}
	}
	result := func(callID string) Message {
		return Message{Role: RoleTool, Type: MessageTypeToolResult, ToolCallID: callID}
	}

	tests := []struct {
		name     string
		messages []Message
		want     []string
	}{
		{
			name:     "empty history",
			messages: nil,
			want:     nil,
		},
		{
			name: "no assistant message",
			messages: []Message{
				{Role: RoleUser, Type: MessageTypeText, Content: "hi"},
			},
			want: nil,
		},
		{
			name: "assistant without tool calls",
			messages: []Message{
				{Role: RoleUser, Type: MessageTypeText},
				asst(),
			},
			want: nil,
		},
		{
			name: "all calls unresolved",
			messages: []Message{
				{Role: RoleUser, Type: MessageTypeText},
				asst(ToolCall{ID: "c1", Name: "webfetch"}, ToolCall{ID: "c2", Name: "webfetch"}),
			},
			want: []string{"c1", "c2"},
		},
		{
			name: "partially resolved",
			messages: []Message{
				{Role: RoleUser, Type: MessageTypeText},
				asst(ToolCall{ID: "c1"}, ToolCall{ID: "c2"}),
				result("c1"),
			},
			want: []string{"c2"},
		},
		{
			name: "fully resolved",
			messages: []Message{
				asst(ToolCall{ID: "c1"}),
				result("c1"),
			},
			want: nil,
		},
		{
			name: "earlier assistant calls do not count",
			messages: []Message{
				asst(ToolCall{ID: "c1"}),
				result("c1"),
				asst(),
			},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pending := PendingToolCalls(tt.messages)
			var ids []string
			for _, tc := range pending {
				ids = append(ids, tc.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}
