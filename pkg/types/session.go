// Package types provides the core data types for the relay server.
package types

// SessionStatus describes the lifecycle state of a session.
type SessionStatus string

const (
	// SessionStatusProcessing means a turn is in flight or tool calls are
	// still unresolved.
	SessionStatusProcessing SessionStatus = "processing"
	// SessionStatusCompleted means the last orchestration finished with a
	// final assistant reply.
	SessionStatusCompleted SessionStatus = "completed"
	// SessionStatusError means the last orchestration failed; partial
	// progress is preserved in the message history.
	SessionStatusError SessionStatus = "error"
)

// SessionSource identifies which entry point created a session.
type SessionSource string

const (
	// SourceChat is a session created by a user-facing message.
	SourceChat SessionSource = "chat"
	// SourcePing is a session created by the system ping endpoint.
	SourcePing SessionSource = "ping"
)

// Session represents a conversation session.
type Session struct {
	ID              string        `json:"id"`
	Owner           string        `json:"owner"`
	Status          SessionStatus `json:"status"`
	Source          SessionSource `json:"source"`
	TurnCount       int           `json:"turnCount"`
	HasPendingTools bool          `json:"hasPendingTools"`
	ProviderID      string        `json:"providerID"`
	ModelID         string        `json:"modelID"`
	Title           string        `json:"title,omitempty"`
	Error           string        `json:"error,omitempty"`
	Time            SessionTime   `json:"time"`
}

// SessionTime contains timestamps for a session, in Unix milliseconds.
type SessionTime struct {
	Created      int64  `json:"created"`
	LastActivity int64  `json:"lastActivity"`
	Completed    *int64 `json:"completed,omitempty"`
}
