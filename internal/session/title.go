package session

import (
	"context"
	"time"

	"github.com/relay-ai/relay/internal/event"
	"github.com/relay-ai/relay/internal/logging"
	"github.com/relay-ai/relay/internal/provider"
	"github.com/relay-ai/relay/internal/store"
	"github.com/relay-ai/relay/pkg/types"
)

const titleSystemPrompt = `You are a title generator. Generate a short title (max 50 characters) summarizing the user's message. Output only the title, no quotes, no punctuation at the end.`

const titleTimeout = 30 * time.Second

// generateTitle asks the small model for a session title. Fire-and-forget:
// failures are logged and the session keeps its empty title.
func (s *Service) generateTitle(sessionID, userContent string) {
	ctx, cancel := context.WithTimeout(context.Background(), titleTimeout)
	defer cancel()

	model, err := s.providers.SmallModel()
	if err != nil {
		return
	}
	p, err := s.providers.Get(model.ProviderID)
	if err != nil {
		return
	}

	resp, err := p.Complete(ctx, &provider.Request{
		Model:  model.ID,
		System: titleSystemPrompt,
		Messages: []types.Message{{
			Role:    types.RoleUser,
			Type:    types.MessageTypeText,
			Content: userContent,
		}},
	})
	if err != nil {
		logging.Warn().
			Str("sessionID", sessionID).
			Err(err).
			Msg("title generation failed")
		return
	}

	title := resp.Text
	if title == "" {
		return
	}
	if len(title) > 100 {
		title = title[:97] + "..."
	}

	// Re-read so the title update does not clobber messages written by a
	// concurrent turn.
	messages, err := s.store.Messages(ctx, sessionID)
	if err != nil {
		return
	}
	if err := s.store.Update(ctx, sessionID, messages, store.SessionPatch{Title: &title}); err != nil {
		logging.Warn().
			Str("sessionID", sessionID).
			Err(err).
			Msg("failed to store title")
		return
	}

	if updated, err := s.store.Get(ctx, sessionID); err == nil {
		s.bus.Publish(event.Event{Type: event.SessionUpdated, Data: event.SessionData{Session: updated}})
	}
}
