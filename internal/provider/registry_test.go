package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relay-ai/relay/pkg/types"
)

type stubProvider struct {
	id     string
	models []types.Model
}

func (p *stubProvider) ID() string            { return p.id }
func (p *stubProvider) Models() []types.Model { return p.models }
func (p *stubProvider) Complete(context.Context, *Request) (*Response, error) {
	return &Response{Text: "ok", FinishReason: "stop"}, nil
}

func TestParseModelString(t *testing.T) {
	tests := []struct {
		input      string
		providerID string
		modelID    string
	}{
		{"anthropic/claude-sonnet-4-5", "anthropic", "claude-sonnet-4-5"},
		{"openai/gpt-4o", "openai", "gpt-4o"},
		{"bare-model", "", "bare-model"},
		{"a/b/c", "a", "b/c"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			providerID, modelID := ParseModelString(tt.input)
			assert.Equal(t, tt.providerID, providerID)
			assert.Equal(t, tt.modelID, modelID)
		})
	}
}

func TestRegistryGetModel(t *testing.T) {
	r := NewRegistry(&types.Config{})
	r.Register(&stubProvider{
		id: "anthropic",
		models: []types.Model{
			{ID: "claude-sonnet-4-5", ProviderID: "anthropic", Default: true},
		},
	})

	model, err := r.GetModel("anthropic", "claude-sonnet-4-5")
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet-4-5", model.ID)

	_, err = r.GetModel("anthropic", "missing")
	assert.Error(t, err)

	_, err = r.GetModel("missing", "claude-sonnet-4-5")
	assert.Error(t, err)
}

func TestDefaultModelFromConfig(t *testing.T) {
	r := NewRegistry(&types.Config{Model: "openai/gpt-4o"})
	r.Register(&stubProvider{
		id:     "openai",
		models: []types.Model{{ID: "gpt-4o", ProviderID: "openai"}},
	})

	model, err := r.DefaultModel()
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", model.ID)
}

func TestDefaultModelFallsBackToProviderDefault(t *testing.T) {
	r := NewRegistry(&types.Config{})
	r.Register(&stubProvider{
		id: "anthropic",
		models: []types.Model{
			{ID: "claude-haiku-4-5", ProviderID: "anthropic"},
			{ID: "claude-sonnet-4-5", ProviderID: "anthropic", Default: true},
		},
	})

	model, err := r.DefaultModel()
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet-4-5", model.ID)
}

func TestDefaultModelNoneAvailable(t *testing.T) {
	r := NewRegistry(&types.Config{})
	_, err := r.DefaultModel()
	assert.Error(t, err)
}

func TestSmallModel(t *testing.T) {
	r := NewRegistry(&types.Config{
		Model:      "anthropic/claude-sonnet-4-5",
		SmallModel: "anthropic/claude-haiku-4-5",
	})
	r.Register(&stubProvider{
		id: "anthropic",
		models: []types.Model{
			{ID: "claude-sonnet-4-5", ProviderID: "anthropic", Default: true},
			{ID: "claude-haiku-4-5", ProviderID: "anthropic"},
		},
	})

	model, err := r.SmallModel()
	require.NoError(t, err)
	assert.Equal(t, "claude-haiku-4-5", model.ID)
}

func TestInitializeProviders(t *testing.T) {
	cfg := &types.Config{
		Provider: map[string]types.ProviderConfig{
			"anthropic": {APIKey: "sk-a"},
			"openai":    {APIKey: "sk-o", Disabled: true},
		},
	}

	r := InitializeProviders(cfg)

	_, err := r.Get("anthropic")
	assert.NoError(t, err)
	_, err = r.Get("openai")
	assert.Error(t, err, "disabled providers are not registered")
}
