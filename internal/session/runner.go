package session

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/oklog/ulid/v2"

	"github.com/relay-ai/relay/internal/logging"
	"github.com/relay-ai/relay/internal/provider"
	"github.com/relay-ai/relay/internal/tool"
	"github.com/relay-ai/relay/pkg/types"
)

const (
	// MaxRetries bounds retry attempts per provider call.
	MaxRetries = 3

	defaultSystemPrompt = `You are a helpful assistant. Answer the user's questions directly and concisely. Use the available tools when they help you answer accurately.`
)

// Runner drives the model-call / tool-execution loop for one orchestration
// request.
type Runner struct {
	providers *provider.Registry
	tools     *tool.Registry
}

// NewRunner creates a runner over the given registries.
func NewRunner(providers *provider.Registry, tools *tool.Registry) *Runner {
	return &Runner{providers: providers, tools: tools}
}

// RunInput describes one run. Messages is the full history including the
// triggering user message; TurnsUsed counts provider calls already consumed
// by earlier runs against the same session.
type RunInput struct {
	SessionID  string
	Owner      string
	ProviderID string
	ModelID    string
	Messages   []types.Message
	MaxTurns   int
	TurnsUsed  int

	// SingleTurn stops after one provider call even if the model requested
	// tools, leaving them pending for a later continue.
	SingleTurn bool
}

// RunResult is what a run produced. Appended holds only the messages added
// by this run, in order; on failure it carries the partial progress made
// before the error.
type RunResult struct {
	Appended        []types.Message
	TurnsConsumed   int
	Completed       bool
	MaxTurnsReached bool
	HasPendingTools bool
	FinalText       string
	ToolCalls       []string
}

// Run executes the loop: resolve any tool calls left pending by an earlier
// single-turn run, then alternate provider calls and tool execution until
// the model answers without tools, the turn budget runs out, or SingleTurn
// stops the loop.
func (r *Runner) Run(ctx context.Context, input RunInput) (*RunResult, error) {
	p, err := r.providers.Get(input.ProviderID)
	if err != nil {
		return &RunResult{}, WrapError(KindConfigurationMissing, "provider not available", err)
	}

	history := append([]types.Message(nil), input.Messages...)
	result := &RunResult{}

	appendMsg := func(m types.Message) {
		history = append(history, m)
		result.Appended = append(result.Appended, m)
	}

	toolCtx := &tool.Context{SessionID: input.SessionID, Owner: input.Owner}

	// Resolve tool calls left unresolved by a previous run.
	for _, m := range r.ResolvePending(ctx, input.SessionID, input.Owner, history) {
		appendMsg(m)
	}

	toolDefs := r.toolDefs(ctx)

	for {
		if input.TurnsUsed+result.TurnsConsumed >= input.MaxTurns {
			result.MaxTurnsReached = true
			break
		}

		resp, err := r.complete(ctx, p, &provider.Request{
			Model:    input.ModelID,
			System:   defaultSystemPrompt,
			Messages: history,
			Tools:    toolDefs,
		})
		if err != nil {
			result.HasPendingTools = len(types.PendingToolCalls(history)) > 0
			return result, WrapError(KindProviderFailure, "completion failed", err)
		}
		result.TurnsConsumed++

		assistant := types.Message{
			ID:        ulid.Make().String(),
			SessionID: input.SessionID,
			Role:      types.RoleAssistant,
			Type:      types.MessageTypeText,
			Content:   resp.Text,
			ToolCalls: resp.ToolCalls,
			Time:      types.MessageTime{Created: time.Now().UnixMilli()},
		}
		appendMsg(assistant)

		if len(resp.ToolCalls) == 0 {
			result.Completed = true
			result.FinalText = resp.Text
			break
		}

		for _, tc := range resp.ToolCalls {
			result.ToolCalls = append(result.ToolCalls, tc.Name)
		}

		if input.SingleTurn {
			break
		}

		for _, tc := range resp.ToolCalls {
			appendMsg(r.executeTool(ctx, tc, toolCtx))
		}
	}

	result.HasPendingTools = len(types.PendingToolCalls(history)) > 0
	return result, nil
}

// ResolvePending executes the tool calls left unresolved by the trailing
// assistant message and returns their result messages in request order.
// Callers splicing new user input into a history with pending calls must
// append these results first so every tool result stays adjacent to the
// assistant message that requested it; provider APIs reject the history
// otherwise.
func (r *Runner) ResolvePending(ctx context.Context, sessionID, owner string, history []types.Message) []types.Message {
	pending := types.PendingToolCalls(history)
	if len(pending) == 0 {
		return nil
	}
	toolCtx := &tool.Context{SessionID: sessionID, Owner: owner}
	results := make([]types.Message, 0, len(pending))
	for _, tc := range pending {
		results = append(results, r.executeTool(ctx, tc, toolCtx))
	}
	return results
}

// executeTool runs one tool call. Failures become error-flagged tool result
// messages; the loop keeps going and the model sees the failure.
func (r *Runner) executeTool(ctx context.Context, tc types.ToolCall, toolCtx *tool.Context) types.Message {
	callCtx := *toolCtx
	callCtx.CallID = tc.ID

	res := r.tools.Invoke(ctx, tc.Name, tc.Arguments, &callCtx)

	logging.Debug().
		Str("sessionID", toolCtx.SessionID).
		Str("tool", tc.Name).
		Bool("isError", res.IsError).
		Msg("tool executed")

	return types.Message{
		ID:         ulid.Make().String(),
		SessionID:  toolCtx.SessionID,
		Role:       types.RoleTool,
		Type:       types.MessageTypeToolResult,
		Content:    res.Output,
		ToolCallID: tc.ID,
		ToolName:   tc.Name,
		IsError:    res.IsError,
		Time:       types.MessageTime{Created: time.Now().UnixMilli()},
	}
}

func (r *Runner) toolDefs(ctx context.Context) []provider.ToolDef {
	available := r.tools.Available(ctx)
	defs := make([]provider.ToolDef, len(available))
	for i, t := range available {
		defs[i] = provider.ToolDef{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		}
	}
	return defs
}

// complete calls the provider with exponential backoff on transport errors.
func (r *Runner) complete(ctx context.Context, p provider.Provider, req *provider.Request) (*provider.Response, error) {
	var resp *provider.Response
	operation := func() error {
		var err error
		resp, err = p.Complete(ctx, req)
		return err
	}

	if err := backoff.Retry(operation, newRetryBackoff(ctx)); err != nil {
		return nil, err
	}
	return resp, nil
}

func newRetryBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 1 * time.Second
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 2 * time.Minute
	b.RandomizationFactor = 0.5
	return backoff.WithContext(backoff.WithMaxRetries(b, MaxRetries), ctx)
}
