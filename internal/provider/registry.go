package provider

import (
	"fmt"
	"strings"
	"sync"

	"github.com/relay-ai/relay/pkg/types"
)

// Registry manages all available providers.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	config    *types.Config
}

// NewRegistry creates a new provider registry.
func NewRegistry(config *types.Config) *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		config:    config,
	}
}

// Register adds a provider to the registry.
func (r *Registry) Register(provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[provider.ID()] = provider
}

// Get retrieves a provider by ID.
func (r *Registry) Get(providerID string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, ok := r.providers[providerID]
	if !ok {
		return nil, fmt.Errorf("provider not found: %s", providerID)
	}
	return provider, nil
}

// List returns all available providers.
func (r *Registry) List() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	providers := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		providers = append(providers, p)
	}
	return providers
}

// GetModel retrieves a specific model from a provider.
func (r *Registry) GetModel(providerID, modelID string) (*types.Model, error) {
	provider, err := r.Get(providerID)
	if err != nil {
		return nil, err
	}

	for _, model := range provider.Models() {
		if model.ID == modelID {
			return &model, nil
		}
	}

	return nil, fmt.Errorf("model not found: %s/%s", providerID, modelID)
}

// AllModels returns all models from all providers.
func (r *Registry) AllModels() []types.Model {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var models []types.Model
	for _, p := range r.providers {
		models = append(models, p.Models()...)
	}
	return models
}

// DefaultModel returns the configured default model, or each registered
// provider's default as a fallback.
func (r *Registry) DefaultModel() (*types.Model, error) {
	if r.config != nil && r.config.Model != "" {
		providerID, modelID := ParseModelString(r.config.Model)
		return r.GetModel(providerID, modelID)
	}

	for _, model := range r.AllModels() {
		if model.Default {
			return &model, nil
		}
	}
	return nil, fmt.Errorf("no models available")
}

// SmallModel returns the model used for background work such as title
// generation, falling back to the default model.
func (r *Registry) SmallModel() (*types.Model, error) {
	if r.config != nil && r.config.SmallModel != "" {
		providerID, modelID := ParseModelString(r.config.SmallModel)
		return r.GetModel(providerID, modelID)
	}
	return r.DefaultModel()
}

// ParseModelString parses "provider/model" format.
func ParseModelString(s string) (providerID, modelID string) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return "", s
}

// InitializeProviders creates and registers all providers with configured
// API keys.
func InitializeProviders(config *types.Config) *Registry {
	registry := NewRegistry(config)

	if cfg, ok := config.Provider["anthropic"]; ok && cfg.APIKey != "" && !cfg.Disabled {
		registry.Register(NewAnthropicProvider(cfg))
	}
	if cfg, ok := config.Provider["openai"]; ok && cfg.APIKey != "" && !cfg.Disabled {
		registry.Register(NewOpenAIProvider(cfg))
	}

	return registry
}
