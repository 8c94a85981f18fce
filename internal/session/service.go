package session

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/relay-ai/relay/internal/dedup"
	"github.com/relay-ai/relay/internal/event"
	"github.com/relay-ai/relay/internal/logging"
	"github.com/relay-ai/relay/internal/provider"
	"github.com/relay-ai/relay/internal/store"
	"github.com/relay-ai/relay/internal/tool"
	"github.com/relay-ai/relay/pkg/types"
)

// PendingReuseWindow is how far back a new message without an explicit
// session ID looks for a not-yet-completed session to attach to.
const PendingReuseWindow = 600 * time.Second

// Service orchestrates sessions: it resolves which session a request
// targets, runs turns against the provider, and persists the outcome.
type Service struct {
	store     store.Store
	cache     *dedup.Cache
	providers *provider.Registry
	runner    *Runner
	bus       *event.Bus
	config    *types.Config
}

// NewService creates the orchestrator. All dependencies are required.
func NewService(st store.Store, cache *dedup.Cache, providers *provider.Registry, tools *tool.Registry, bus *event.Bus, config *types.Config) (*Service, error) {
	if st == nil || cache == nil || providers == nil || tools == nil || bus == nil || config == nil {
		return nil, errors.New("session: all dependencies are required")
	}
	return &Service{
		store:     st,
		cache:     cache,
		providers: providers,
		runner:    NewRunner(providers, tools),
		bus:       bus,
		config:    config,
	}, nil
}

// NewMessageInput is a request to process a user message.
type NewMessageInput struct {
	Owner      string
	Content    string
	SessionID  string
	ProviderID string
	ModelID    string
	MaxTurns   int
	RequestID  string
}

// PingInput is a request to run a system ping session to completion.
type PingInput struct {
	Content    string
	ProviderID string
	ModelID    string
}

// ProcessNewMessage runs one single-turn exchange for a user message.
//
// Order matters: the dedup cache is consulted before anything else so a
// retried request replays the original outcome; the user message is
// persisted before the provider is called so it survives any failure; the
// pending cache entry is written before the turn so concurrent retries see
// it.
func (s *Service) ProcessNewMessage(ctx context.Context, input NewMessageInput) (*types.TurnResponse, error) {
	if entry, ok := s.cache.Get(input.RequestID); ok {
		if entry.Pending {
			return &types.TurnResponse{SessionID: entry.SessionID, Pending: true}, nil
		}
		return entry.Response, nil
	}

	session, history, err := s.lookupSession(ctx, input)
	if err != nil {
		return nil, err
	}

	// Model resolution happens before a session is created so that a
	// configuration failure leaves no state behind.
	providerID, modelID, err := s.resolveModel(input.ProviderID, input.ModelID, session)
	if err != nil {
		return nil, err
	}

	created := false
	if session == nil {
		session, err = s.createSession(ctx, input.Owner, types.SourceChat)
		if err != nil {
			return nil, err
		}
		created = true
	}

	// Tool calls left pending by an earlier single-turn run are resolved
	// before the new user message is spliced in, so each tool result sits
	// directly after the assistant message that requested it.
	resolved := s.runner.ResolvePending(ctx, session.ID, session.Owner, history)
	history = append(history, resolved...)

	userMsg := types.Message{
		ID:        ulid.Make().String(),
		SessionID: session.ID,
		Role:      types.RoleUser,
		Type:      types.MessageTypeText,
		Content:   input.Content,
		Time:      types.MessageTime{Created: time.Now().UnixMilli()},
	}
	history = append(history, userMsg)

	// Durability before the provider call.
	now := time.Now().UnixMilli()
	status := types.SessionStatusProcessing
	patch := store.SessionPatch{
		Status:       &status,
		ProviderID:   &providerID,
		ModelID:      &modelID,
		LastActivity: &now,
	}
	if err := s.store.Update(ctx, session.ID, history, patch); err != nil {
		return nil, WrapError(KindUnexpected, "failed to persist user message", err)
	}
	for i := range resolved {
		s.bus.Publish(event.Event{Type: event.MessageAppended, Data: event.MessageData{SessionID: session.ID, Message: &resolved[i]}})
	}
	s.bus.Publish(event.Event{Type: event.MessageAppended, Data: event.MessageData{SessionID: session.ID, Message: &userMsg}})

	s.cache.PutPending(input.RequestID, session.ID)

	maxTurns := input.MaxTurns
	if maxTurns <= 0 {
		maxTurns = s.config.MaxTurns
	}

	run, runErr := s.runner.Run(ctx, RunInput{
		SessionID:  session.ID,
		Owner:      session.Owner,
		ProviderID: providerID,
		ModelID:    modelID,
		Messages:   history,
		MaxTurns:   maxTurns,
		TurnsUsed:  session.TurnCount,
		SingleTurn: true,
	})

	history = append(history, run.Appended...)
	turnCount := session.TurnCount + run.TurnsConsumed

	if runErr != nil {
		s.persistFailure(ctx, session.ID, history, turnCount, run, runErr)
		return nil, runErr
	}

	if err := s.persistOutcome(ctx, session.ID, history, turnCount, run); err != nil {
		return nil, err
	}

	if created {
		go s.generateTitle(session.ID, input.Content)
	}

	response := &types.TurnResponse{
		SessionID:       session.ID,
		Reply:           run.FinalText,
		Completed:       run.Completed,
		MaxTurnsReached: run.MaxTurnsReached,
		TurnCount:       turnCount,
		HasPendingTools: run.HasPendingTools,
		ToolCalls:       run.ToolCalls,
		Messages:        history,
	}
	s.cache.PutResponse(input.RequestID, response)
	s.bus.Publish(event.Event{Type: event.TurnCompleted, Data: event.TurnData{
		SessionID:     session.ID,
		TurnsConsumed: run.TurnsConsumed,
		Completed:     run.Completed,
	}})

	return response, nil
}

// ProcessContinue resolves pending tool calls on a session and runs one
// more exchange. Continuing an already completed session is a no-op that
// returns its current state.
func (s *Service) ProcessContinue(ctx context.Context, sessionID, owner string) (*types.TurnResponse, error) {
	session, err := s.getOwned(ctx, sessionID, owner)
	if err != nil {
		return nil, err
	}

	history, err := s.store.Messages(ctx, sessionID)
	if err != nil {
		return nil, WrapError(KindUnexpected, "failed to load messages", err)
	}

	if session.Status == types.SessionStatusCompleted && !session.HasPendingTools {
		return &types.TurnResponse{
			SessionID: session.ID,
			Reply:     lastAssistantText(history),
			Completed: true,
			TurnCount: session.TurnCount,
		}, nil
	}

	providerID, modelID, err := s.resolveModel("", "", session)
	if err != nil {
		return nil, err
	}

	run, runErr := s.runner.Run(ctx, RunInput{
		SessionID:  session.ID,
		Owner:      session.Owner,
		ProviderID: providerID,
		ModelID:    modelID,
		Messages:   history,
		MaxTurns:   s.config.MaxTurns,
		TurnsUsed:  session.TurnCount,
		SingleTurn: true,
	})

	history = append(history, run.Appended...)
	turnCount := session.TurnCount + run.TurnsConsumed

	if runErr != nil {
		s.persistFailure(ctx, session.ID, history, turnCount, run, runErr)
		return nil, runErr
	}

	if err := s.persistOutcome(ctx, session.ID, history, turnCount, run); err != nil {
		return nil, err
	}

	s.bus.Publish(event.Event{Type: event.TurnCompleted, Data: event.TurnData{
		SessionID:     session.ID,
		TurnsConsumed: run.TurnsConsumed,
		Completed:     run.Completed,
	}})

	// Continue responses carry only the delta.
	return &types.TurnResponse{
		SessionID:       session.ID,
		Reply:           run.FinalText,
		Completed:       run.Completed,
		MaxTurnsReached: run.MaxTurnsReached,
		TurnCount:       turnCount,
		HasPendingTools: run.HasPendingTools,
		ToolCalls:       run.ToolCalls,
		Messages:        run.Appended,
	}, nil
}

// ProcessPing creates a system-owned session and runs it to completion.
// Pings bypass the dedup cache.
func (s *Service) ProcessPing(ctx context.Context, input PingInput) (*types.PingResponse, error) {
	providerID, modelID, err := s.resolveModel(input.ProviderID, input.ModelID, nil)
	if err != nil {
		return nil, err
	}

	session, err := s.createSession(ctx, s.config.PingOwner, types.SourcePing)
	if err != nil {
		return nil, err
	}

	now := time.Now().UnixMilli()
	userMsg := types.Message{
		ID:        ulid.Make().String(),
		SessionID: session.ID,
		Role:      types.RoleUser,
		Type:      types.MessageTypeText,
		Content:   input.Content,
		Time:      types.MessageTime{Created: now},
	}
	history := []types.Message{userMsg}
	status := types.SessionStatusProcessing
	patch := store.SessionPatch{
		Status:       &status,
		ProviderID:   &providerID,
		ModelID:      &modelID,
		LastActivity: &now,
	}
	if err := s.store.Update(ctx, session.ID, history, patch); err != nil {
		return nil, WrapError(KindUnexpected, "failed to persist user message", err)
	}

	run, runErr := s.runner.Run(ctx, RunInput{
		SessionID:  session.ID,
		Owner:      session.Owner,
		ProviderID: providerID,
		ModelID:    modelID,
		Messages:   history,
		MaxTurns:   s.config.MaxTurns,
		SingleTurn: false,
	})

	history = append(history, run.Appended...)
	if runErr != nil {
		s.persistFailure(ctx, session.ID, history, run.TurnsConsumed, run, runErr)
		return nil, runErr
	}

	if err := s.persistOutcome(ctx, session.ID, history, run.TurnsConsumed, run); err != nil {
		return nil, err
	}

	go s.generateTitle(session.ID, input.Content)

	return &types.PingResponse{
		SessionID: session.ID,
		Reply:     run.FinalText,
		TurnCount: run.TurnsConsumed,
	}, nil
}

// Get returns a session and its messages, owner-verified.
func (s *Service) Get(ctx context.Context, sessionID, owner string) (*types.Session, []types.Message, error) {
	session, err := s.getOwned(ctx, sessionID, owner)
	if err != nil {
		return nil, nil, err
	}
	messages, err := s.store.Messages(ctx, sessionID)
	if err != nil {
		return nil, nil, WrapError(KindUnexpected, "failed to load messages", err)
	}
	return session, messages, nil
}

// List returns the owner's sessions.
func (s *Service) List(ctx context.Context, owner string, filter store.ListFilter) ([]*types.Session, error) {
	sessions, err := s.store.List(ctx, owner, filter)
	if err != nil {
		return nil, WrapError(KindUnexpected, "failed to list sessions", err)
	}
	return sessions, nil
}

// Delete removes a session, owner-verified.
func (s *Service) Delete(ctx context.Context, sessionID, owner string) error {
	session, err := s.getOwned(ctx, sessionID, owner)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, sessionID); err != nil {
		return WrapError(KindUnexpected, "failed to delete session", err)
	}
	s.bus.Publish(event.Event{Type: event.SessionDeleted, Data: event.SessionData{Session: session}})
	return nil
}

// lookupSession finds the existing session a new message targets: the
// explicitly named one, or a recent unfinished one for the owner. A nil
// session with nil error means a new session is needed.
func (s *Service) lookupSession(ctx context.Context, input NewMessageInput) (session *types.Session, history []types.Message, err error) {
	if input.SessionID != "" {
		session, err = s.getOwned(ctx, input.SessionID, input.Owner)
		if err != nil {
			return nil, nil, err
		}
	} else {
		session, err = s.store.FindRecentPending(ctx, input.Owner, types.SourceChat, PendingReuseWindow)
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, nil
		}
		if err != nil {
			return nil, nil, WrapError(KindUnexpected, "failed to query sessions", err)
		}
	}

	history, err = s.store.Messages(ctx, session.ID)
	if err != nil {
		return nil, nil, WrapError(KindUnexpected, "failed to load messages", err)
	}
	return session, history, nil
}

func (s *Service) createSession(ctx context.Context, owner string, source types.SessionSource) (*types.Session, error) {
	now := time.Now().UnixMilli()
	session := &types.Session{
		ID:     ulid.Make().String(),
		Owner:  owner,
		Status: types.SessionStatusProcessing,
		Source: source,
		Time:   types.SessionTime{Created: now, LastActivity: now},
	}
	if err := s.store.Create(ctx, session); err != nil {
		return nil, WrapError(KindUnexpected, "failed to create session", err)
	}
	s.bus.Publish(event.Event{Type: event.SessionCreated, Data: event.SessionData{Session: session}})
	return session, nil
}

// resolveModel picks provider and model. A session that already ran a turn
// keeps its model; otherwise the request wins, then the configured default.
func (s *Service) resolveModel(providerID, modelID string, session *types.Session) (string, string, error) {
	if session != nil && session.ProviderID != "" && session.ModelID != "" {
		// The pinned provider may have been removed from the config since
		// the session last ran; that must fail here, before any persistence.
		if _, err := s.providers.Get(session.ProviderID); err != nil {
			return "", "", WrapError(KindConfigurationMissing, "session provider not available", err)
		}
		return session.ProviderID, session.ModelID, nil
	}
	if providerID != "" && modelID != "" {
		if _, err := s.providers.GetModel(providerID, modelID); err != nil {
			return "", "", WrapError(KindConfigurationMissing, "requested model not available", err)
		}
		return providerID, modelID, nil
	}
	model, err := s.providers.DefaultModel()
	if err != nil {
		return "", "", WrapError(KindConfigurationMissing, "no default model configured", err)
	}
	return model.ProviderID, model.ID, nil
}

func (s *Service) getOwned(ctx context.Context, sessionID, owner string) (*types.Session, error) {
	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NewError(KindNotFound, "session not found")
		}
		return nil, WrapError(KindUnexpected, "failed to load session", err)
	}
	if session.Owner != owner {
		return nil, NewError(KindAccessDenied, "session belongs to another owner")
	}
	return session, nil
}

// persistOutcome writes the post-run state. A run that answered is
// completed; an exhausted turn budget also closes the session; anything
// else stays processing with its tools pending.
func (s *Service) persistOutcome(ctx context.Context, sessionID string, history []types.Message, turnCount int, run *RunResult) error {
	now := time.Now().UnixMilli()
	status := types.SessionStatusProcessing
	patch := store.SessionPatch{
		TurnCount:       &turnCount,
		HasPendingTools: &run.HasPendingTools,
		LastActivity:    &now,
	}
	if run.Completed || run.MaxTurnsReached {
		status = types.SessionStatusCompleted
		patch.Completed = &now
	}
	patch.Status = &status

	if err := s.store.Update(ctx, sessionID, history, patch); err != nil {
		return WrapError(KindUnexpected, "failed to persist turn", err)
	}
	updated, err := s.store.Get(ctx, sessionID)
	if err == nil {
		s.bus.Publish(event.Event{Type: event.SessionUpdated, Data: event.SessionData{Session: updated}})
	}
	return nil
}

// persistFailure writes partial progress with status error. A failure to
// persist here is logged, not returned; the original error wins.
func (s *Service) persistFailure(ctx context.Context, sessionID string, history []types.Message, turnCount int, run *RunResult, cause error) {
	now := time.Now().UnixMilli()
	status := types.SessionStatusError
	errText := cause.Error()
	patch := store.SessionPatch{
		Status:          &status,
		TurnCount:       &turnCount,
		HasPendingTools: &run.HasPendingTools,
		Error:           &errText,
		LastActivity:    &now,
	}
	if err := s.store.Update(ctx, sessionID, history, patch); err != nil {
		logging.Error().
			Str("sessionID", sessionID).
			Err(err).
			Msg("failed to persist partial progress")
	}
}

func lastAssistantText(messages []types.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == types.RoleAssistant && messages[i].Content != "" {
			return messages[i].Content
		}
	}
	return ""
}
