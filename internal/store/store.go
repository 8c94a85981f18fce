// Package store persists sessions and their message histories.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/relay-ai/relay/pkg/types"
)

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("not found")

// SessionPatch is a merge patch applied to session metadata. Nil fields are
// left untouched.
type SessionPatch struct {
	Status          *types.SessionStatus
	TurnCount       *int
	HasPendingTools *bool
	ProviderID      *string
	ModelID         *string
	Title           *string
	Error           *string
	LastActivity    *int64
	Completed       *int64
}

// ListFilter narrows List results. Zero values mean no constraint.
type ListFilter struct {
	Source types.SessionSource
	Status types.SessionStatus
	Limit  int
	Offset int
}

// Store persists sessions and messages.
//
// Update replaces the full message history and applies the metadata patch in
// a single transaction. Writes are last-writer-wins: two concurrent updates
// to the same session do not conflict, the later one overwrites.
type Store interface {
	Create(ctx context.Context, session *types.Session) error
	Get(ctx context.Context, id string) (*types.Session, error)
	Messages(ctx context.Context, id string) ([]types.Message, error)
	Update(ctx context.Context, id string, messages []types.Message, patch SessionPatch) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, owner string, filter ListFilter) ([]*types.Session, error)

	// FindRecentPending returns the newest not-completed session created by
	// owner from the given source within the window, or ErrNotFound.
	FindRecentPending(ctx context.Context, owner string, source types.SessionSource, window time.Duration) (*types.Session, error)
}
