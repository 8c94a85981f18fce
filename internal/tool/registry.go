package tool

import (
	"context"
	"fmt"
	"sync"

	"github.com/relay-ai/relay/internal/logging"
)

// Source supplies tools whose set can change at runtime, such as a
// connected MCP server.
type Source interface {
	Tools(ctx context.Context) []Tool
}

// Registry manages tool registration and lookup. Statically registered
// tools are merged with all sources at call time, so callers never know a
// tool's origin.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	sources []Source
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool to the registry, replacing any previous tool with
// the same name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// AddSource attaches a dynamic tool source.
func (r *Registry) AddSource(source Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources = append(r.sources, source)
}

// Get retrieves a tool by name, consulting sources after static tools.
func (r *Registry) Get(ctx context.Context, name string) (Tool, bool) {
	r.mu.RLock()
	if t, ok := r.tools[name]; ok {
		r.mu.RUnlock()
		return t, true
	}
	sources := append([]Source(nil), r.sources...)
	r.mu.RUnlock()

	for _, source := range sources {
		for _, t := range source.Tools(ctx) {
			if t.Name() == name {
				return t, true
			}
		}
	}
	return nil, false
}

// Available returns all tools currently offered, static tools first.
// Source tools never shadow a static tool with the same name.
func (r *Registry) Available(ctx context.Context) []Tool {
	r.mu.RLock()
	tools := make([]Tool, 0, len(r.tools))
	seen := make(map[string]bool, len(r.tools))
	for _, t := range r.tools {
		tools = append(tools, t)
		seen[t.Name()] = true
	}
	sources := append([]Source(nil), r.sources...)
	r.mu.RUnlock()

	for _, source := range sources {
		for _, t := range source.Tools(ctx) {
			if !seen[t.Name()] {
				tools = append(tools, t)
				seen[t.Name()] = true
			}
		}
	}
	return tools
}

// Invoke executes the named tool. It never returns an error: unknown tools,
// panics and execution failures all surface as an error Result so the turn
// loop can report them to the model and keep going.
func (r *Registry) Invoke(ctx context.Context, name string, input []byte, toolCtx *Context) (result *Result) {
	defer func() {
		if rec := recover(); rec != nil {
			logging.Error().
				Str("tool", name).
				Interface("panic", rec).
				Msg("tool panicked")
			result = ErrorResult(fmt.Sprintf("tool %s panicked: %v", name, rec))
		}
	}()

	t, ok := r.Get(ctx, name)
	if !ok {
		return ErrorResult(fmt.Sprintf("unknown tool: %s", name))
	}

	res, err := t.Execute(ctx, input, toolCtx)
	if err != nil {
		logging.Warn().
			Str("tool", name).
			Err(err).
			Msg("tool execution failed")
		return ErrorResult(err.Error())
	}
	if res == nil {
		return ErrorResult(fmt.Sprintf("tool %s returned no result", name))
	}
	return res
}
