package types

// TurnResponse is the result of processing a message or continue request.
// Responses for new messages carry the full conversation history; continue
// responses carry only the messages appended by that call.
type TurnResponse struct {
	SessionID       string    `json:"sessionID"`
	Reply           string    `json:"reply"`
	Completed       bool      `json:"completed"`
	MaxTurnsReached bool      `json:"maxTurnsReached,omitempty"`
	TurnCount       int       `json:"turnCount"`
	HasPendingTools bool      `json:"hasPendingTools"`
	ToolCalls       []string  `json:"toolCalls,omitempty"`
	Messages        []Message `json:"messages"`

	// Pending is true when a concurrent request with the same request ID
	// is still in flight and no final response exists yet.
	Pending bool `json:"pending,omitempty"`
}

// PingResponse is the result of a system ping run.
type PingResponse struct {
	SessionID string `json:"sessionID"`
	Reply     string `json:"reply"`
	TurnCount int    `json:"turnCount"`
}

// Model describes a model offered by a provider.
type Model struct {
	ID         string `json:"id"`
	ProviderID string `json:"providerID"`
	Name       string `json:"name"`
	Default    bool   `json:"default,omitempty"`
}
