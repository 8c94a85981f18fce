package tool

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoTool(name string) Tool {
	return NewBaseTool(name, "echoes input", json.RawMessage(`{"type":"object"}`),
		func(_ context.Context, input json.RawMessage, _ *Context) (*Result, error) {
			return &Result{Output: string(input)}, nil
		})
}

type staticSource struct {
	tools []Tool
}

func (s *staticSource) Tools(context.Context) []Tool { return s.tools }

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register(echoTool("echo"))

	got, ok := r.Get(context.Background(), "echo")
	require.True(t, ok)
	assert.Equal(t, "echo", got.Name())

	_, ok = r.Get(context.Background(), "missing")
	assert.False(t, ok)
}

func TestRegistryMergesSources(t *testing.T) {
	r := NewRegistry()
	r.Register(echoTool("builtin"))
	r.AddSource(&staticSource{tools: []Tool{echoTool("remote"), echoTool("builtin")}})

	available := r.Available(context.Background())
	names := make(map[string]int)
	for _, tl := range available {
		names[tl.Name()]++
	}
	assert.Equal(t, 1, names["builtin"], "static tool must not be shadowed or duplicated")
	assert.Equal(t, 1, names["remote"])

	got, ok := r.Get(context.Background(), "remote")
	require.True(t, ok)
	assert.Equal(t, "remote", got.Name())
}

func TestInvokeUnknownTool(t *testing.T) {
	r := NewRegistry()

	res := r.Invoke(context.Background(), "nope", nil, &Context{})
	require.NotNil(t, res)
	assert.True(t, res.IsError)
	assert.Contains(t, res.Output, "unknown tool")
}

func TestInvokeExecutionError(t *testing.T) {
	r := NewRegistry()
	r.Register(NewBaseTool("fail", "always fails", json.RawMessage(`{"type":"object"}`),
		func(context.Context, json.RawMessage, *Context) (*Result, error) {
			return nil, errors.New("boom")
		}))

	res := r.Invoke(context.Background(), "fail", nil, &Context{})
	assert.True(t, res.IsError)
	assert.Equal(t, "boom", res.Output)
}

func TestInvokeRecoversPanic(t *testing.T) {
	r := NewRegistry()
	r.Register(NewBaseTool("panic", "panics", json.RawMessage(`{"type":"object"}`),
		func(context.Context, json.RawMessage, *Context) (*Result, error) {
			panic("kaboom")
		}))

	res := r.Invoke(context.Background(), "panic", nil, &Context{})
	require.NotNil(t, res)
	assert.True(t, res.IsError)
	assert.Contains(t, res.Output, "kaboom")
}

func TestInvokeSuccess(t *testing.T) {
	r := NewRegistry()
	r.Register(echoTool("echo"))

	res := r.Invoke(context.Background(), "echo", []byte(`{"a":1}`), &Context{SessionID: "s1"})
	assert.False(t, res.IsError)
	assert.Equal(t, `{"a":1}`, res.Output)
}
