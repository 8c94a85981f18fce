package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/relay-ai/relay/pkg/types"
)

// MemoryStore is an in-memory Store used in tests and ephemeral setups.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*types.Session
	messages map[string][]types.Message
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*types.Session),
		messages: make(map[string][]types.Message),
	}
}

func (s *MemoryStore) Create(_ context.Context, session *types.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *session
	s.sessions[session.ID] = &clone
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*types.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *session
	return &clone, nil
}

func (s *MemoryStore) Messages(_ context.Context, id string) ([]types.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.Message(nil), s.messages[id]...), nil
}

func (s *MemoryStore) Update(_ context.Context, id string, messages []types.Message, patch SessionPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}

	if patch.Status != nil {
		session.Status = *patch.Status
	}
	if patch.TurnCount != nil {
		session.TurnCount = *patch.TurnCount
	}
	if patch.HasPendingTools != nil {
		session.HasPendingTools = *patch.HasPendingTools
	}
	if patch.ProviderID != nil {
		session.ProviderID = *patch.ProviderID
	}
	if patch.ModelID != nil {
		session.ModelID = *patch.ModelID
	}
	if patch.Title != nil {
		session.Title = *patch.Title
	}
	if patch.Error != nil {
		session.Error = *patch.Error
	}
	if patch.LastActivity != nil {
		session.Time.LastActivity = *patch.LastActivity
	}
	if patch.Completed != nil {
		completed := *patch.Completed
		session.Time.Completed = &completed
	}

	s.messages[id] = append([]types.Message(nil), messages...)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(s.sessions, id)
	delete(s.messages, id)
	return nil
}

func (s *MemoryStore) List(_ context.Context, owner string, filter ListFilter) ([]*types.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sessions []*types.Session
	for _, session := range s.sessions {
		if session.Owner != owner {
			continue
		}
		if filter.Source != "" && session.Source != filter.Source {
			continue
		}
		if filter.Status != "" && session.Status != filter.Status {
			continue
		}
		clone := *session
		sessions = append(sessions, &clone)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].Time.Created > sessions[j].Time.Created
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(sessions) {
			return nil, nil
		}
		sessions = sessions[filter.Offset:]
	}
	if filter.Limit > 0 && len(sessions) > filter.Limit {
		sessions = sessions[:filter.Limit]
	}
	return sessions, nil
}

func (s *MemoryStore) FindRecentPending(_ context.Context, owner string, source types.SessionSource, window time.Duration) (*types.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := time.Now().Add(-window).UnixMilli()
	var newest *types.Session
	for _, session := range s.sessions {
		if session.Owner != owner || session.Source != source {
			continue
		}
		if session.Status == types.SessionStatusCompleted {
			continue
		}
		if session.Time.Created <= cutoff {
			continue
		}
		if newest == nil || session.Time.Created > newest.Time.Created {
			newest = session
		}
	}
	if newest == nil {
		return nil, ErrNotFound
	}
	clone := *newest
	return &clone, nil
}
