package types

import "encoding/json"

// MessageRole identifies the author of a message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)

// MessageType identifies the payload kind of a message.
type MessageType string

const (
	MessageTypeText       MessageType = "text"
	MessageTypeToolResult MessageType = "tool_result"
)

// ToolCall is a tool invocation requested by an assistant message.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Message is a single entry in a session's conversation history.
type Message struct {
	ID        string      `json:"id"`
	SessionID string      `json:"sessionID"`
	Role      MessageRole `json:"role"`
	Type      MessageType `json:"type"`
	Content   string      `json:"content"`

	// ToolCalls is set on assistant messages that request tool execution.
	ToolCalls []ToolCall `json:"toolCalls,omitempty"`

	// ToolCallID, ToolName and IsError are set on tool-role result messages.
	ToolCallID string `json:"toolCallID,omitempty"`
	ToolName   string `json:"toolName,omitempty"`
	IsError    bool   `json:"isError,omitempty"`

	Time MessageTime `json:"time"`
}

// MessageTime contains timestamps for a message, in Unix milliseconds.
type MessageTime struct {
	Created int64 `json:"created"`
}

// PendingToolCalls returns the tool calls of the trailing assistant message
// that have no matching tool-role result yet. A session has pending tools
// exactly when this is non-empty.
func PendingToolCalls(messages []Message) []ToolCall {
	last := -1
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleAssistant {
			last = i
			break
		}
	}
	if last < 0 || len(messages[last].ToolCalls) == 0 {
		return nil
	}

	resolved := make(map[string]bool)
	for _, m := range messages[last+1:] {
		if m.Role == RoleTool && m.ToolCallID != "" {
			resolved[m.ToolCallID] = true
		}
	}

	var pending []ToolCall
	for _, tc := range messages[last].ToolCalls {
		if !resolved[tc.ID] {
			pending = append(pending, tc)
		}
	}
	return pending
}
