package types

// Config is the root configuration for the relay server.
type Config struct {
	Schema string `json:"$schema,omitempty"`

	// Model is the default model in "provider/model" form, used when a
	// request does not name one.
	Model string `json:"model,omitempty"`
	// SmallModel is a cheaper model used for background work such as
	// session title generation. Falls back to Model when empty.
	SmallModel string `json:"smallModel,omitempty"`

	Provider map[string]ProviderConfig `json:"provider,omitempty"`
	MCP      map[string]MCPConfig      `json:"mcp,omitempty"`

	// MaxTurns bounds provider invocations per orchestration call.
	MaxTurns int `json:"maxTurns,omitempty"`

	// PingOwner is the synthetic owner assigned to ping sessions.
	PingOwner string `json:"pingOwner,omitempty"`
	// PingSecret is the bearer token required by the ping endpoint.
	PingSecret string `json:"pingSecret,omitempty"`

	Server ServerConfig `json:"server,omitempty"`

	// DataDir is where the SQLite database lives.
	DataDir string `json:"dataDir,omitempty"`

	LogLevel string `json:"logLevel,omitempty"`
}

// ProviderConfig configures a single AI provider.
type ProviderConfig struct {
	APIKey   string `json:"apiKey,omitempty"`
	BaseURL  string `json:"baseURL,omitempty"`
	Disabled bool   `json:"disabled,omitempty"`
}

// MCPConfig configures a single MCP server connection.
type MCPConfig struct {
	// Type is "local" (spawned command), "remote" (streamable HTTP) or
	// "sse". Defaults by shape: Command set means local, URL set means remote.
	Type        string            `json:"type,omitempty"`
	Command     []string          `json:"command,omitempty"`
	URL         string            `json:"url,omitempty"`
	Environment map[string]string `json:"environment,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Enabled     *bool             `json:"enabled,omitempty"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Hostname string `json:"hostname,omitempty"`
	Port     int    `json:"port,omitempty"`
}
