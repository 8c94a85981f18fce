// Package config loads relay configuration from layered jsonc files and
// environment variables.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"

	"github.com/relay-ai/relay/pkg/types"
	"github.com/tidwall/jsonc"
)

// DefaultMaxTurns bounds provider invocations per orchestration call when
// neither config nor request specifies one.
const DefaultMaxTurns = 12

// Load loads configuration from multiple sources (priority order, later wins):
// 1. Global config (~/.config/relay/)
// 2. Project config (relay.json / relay.jsonc in directory)
// 3. RELAY_CONFIG file
// 4. RELAY_CONFIG_CONTENT inline JSON
// 5. Environment variables
func Load(directory string) (*types.Config, error) {
	config := &types.Config{
		Provider: make(map[string]types.ProviderConfig),
	}

	loaded := make(map[string]bool)
	loadOnce := func(path string) {
		abs, err := filepath.Abs(path)
		if err != nil {
			return
		}
		if loaded[abs] {
			return
		}
		if loadConfigFile(path, config) == nil {
			loaded[abs] = true
		}
	}

	if home := os.Getenv("HOME"); home != "" {
		globalDir := filepath.Join(home, ".config", "relay")
		loadOnce(filepath.Join(globalDir, "relay.json"))
		loadOnce(filepath.Join(globalDir, "relay.jsonc"))
	}

	if directory != "" {
		loadOnce(filepath.Join(directory, "relay.json"))
		loadOnce(filepath.Join(directory, "relay.jsonc"))
	}

	if configPath := os.Getenv("RELAY_CONFIG"); configPath != "" {
		loadOnce(configPath)
	}

	if content := os.Getenv("RELAY_CONFIG_CONTENT"); content != "" {
		var inline types.Config
		if err := json.Unmarshal(jsonc.ToJSON([]byte(content)), &inline); err == nil {
			mergeConfig(config, &inline)
		}
	}

	applyEnvOverrides(config)
	applyDefaults(config)

	return config, nil
}

// loadConfigFile loads a single jsonc config file with env interpolation.
func loadConfigFile(path string, config *types.Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	data = jsonc.ToJSON(data)
	data = interpolate(data)

	var fileConfig types.Config
	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return err
	}

	mergeConfig(config, &fileConfig)
	return nil
}

var envPattern = regexp.MustCompile(`\{env:([^}]+)\}`)

// interpolate replaces {env:VAR_NAME} placeholders with environment values.
func interpolate(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		name := envPattern.FindSubmatch(match)[1]
		return []byte(os.Getenv(string(name)))
	})
}

// mergeConfig merges source config into target.
func mergeConfig(target, source *types.Config) {
	if source.Schema != "" {
		target.Schema = source.Schema
	}
	if source.Model != "" {
		target.Model = source.Model
	}
	if source.SmallModel != "" {
		target.SmallModel = source.SmallModel
	}
	if source.MaxTurns > 0 {
		target.MaxTurns = source.MaxTurns
	}
	if source.PingOwner != "" {
		target.PingOwner = source.PingOwner
	}
	if source.PingSecret != "" {
		target.PingSecret = source.PingSecret
	}
	if source.DataDir != "" {
		target.DataDir = source.DataDir
	}
	if source.LogLevel != "" {
		target.LogLevel = source.LogLevel
	}
	if source.Server.Hostname != "" {
		target.Server.Hostname = source.Server.Hostname
	}
	if source.Server.Port != 0 {
		target.Server.Port = source.Server.Port
	}

	if source.Provider != nil {
		if target.Provider == nil {
			target.Provider = make(map[string]types.ProviderConfig)
		}
		for k, v := range source.Provider {
			target.Provider[k] = v
		}
	}

	if source.MCP != nil {
		if target.MCP == nil {
			target.MCP = make(map[string]types.MCPConfig)
		}
		for k, v := range source.MCP {
			target.MCP[k] = v
		}
	}
}

// applyEnvOverrides applies environment variable overrides.
func applyEnvOverrides(config *types.Config) {
	providerEnvMap := map[string]string{
		"anthropic": "ANTHROPIC_API_KEY",
		"openai":    "OPENAI_API_KEY",
	}
	for provider, envVar := range providerEnvMap {
		if apiKey := os.Getenv(envVar); apiKey != "" {
			p := config.Provider[provider]
			if p.APIKey == "" {
				p.APIKey = apiKey
				config.Provider[provider] = p
			}
		}
	}

	if model := os.Getenv("RELAY_MODEL"); model != "" {
		config.Model = model
	}
	if model := os.Getenv("RELAY_SMALL_MODEL"); model != "" {
		config.SmallModel = model
	}
	if secret := os.Getenv("RELAY_PING_SECRET"); secret != "" {
		config.PingSecret = secret
	}
	if dir := os.Getenv("RELAY_DATA_DIR"); dir != "" {
		config.DataDir = dir
	}
	if level := os.Getenv("RELAY_LOG_LEVEL"); level != "" {
		config.LogLevel = level
	}
}

// applyDefaults fills values every component expects to be set.
func applyDefaults(config *types.Config) {
	if config.MaxTurns <= 0 {
		config.MaxTurns = DefaultMaxTurns
	}
	if config.PingOwner == "" {
		config.PingOwner = "system"
	}
	if config.Server.Port == 0 {
		config.Server.Port = 4747
	}
	if config.DataDir == "" {
		if home := os.Getenv("HOME"); home != "" {
			config.DataDir = filepath.Join(home, ".local", "share", "relay")
		} else {
			config.DataDir = "."
		}
	}
}
