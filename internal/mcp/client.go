// Package mcp manages MCP server connections and exposes their tools as a
// tool source.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/relay-ai/relay/internal/logging"
	"github.com/relay-ai/relay/pkg/types"
)

// Status describes a server's connection state.
type Status string

const (
	StatusConnected Status = "connected"
	StatusFailed    Status = "failed"
	StatusDisabled  Status = "disabled"
)

// ServerStatus is the reportable state of one configured server.
type ServerStatus struct {
	Name      string `json:"name"`
	Status    Status `json:"status"`
	ToolCount int    `json:"toolCount"`
	Error     string `json:"error,omitempty"`
}

// ToolInfo is a tool advertised by a connected server.
type ToolInfo struct {
	Name        string
	Description string
	InputSchema json.RawMessage
}

const connectTimeout = 5 * time.Second

// Client manages MCP server connections using the official MCP SDK.
type Client struct {
	mu        sync.RWMutex
	servers   map[string]*mcpServer
	sdkClient *sdkmcp.Client
}

type mcpServer struct {
	name    string
	session *sdkmcp.ClientSession
	tools   []ToolInfo
	status  Status
	err     string
}

// NewClient creates a new MCP client.
func NewClient() *Client {
	return &Client{
		servers: make(map[string]*mcpServer),
		sdkClient: sdkmcp.NewClient(&sdkmcp.Implementation{
			Name:    "relay",
			Version: "1.0.0",
		}, nil),
	}
}

// Connect connects all servers in the config. Individual failures are
// logged and recorded, not fatal.
func (c *Client) Connect(ctx context.Context, configs map[string]types.MCPConfig) {
	for name, cfg := range configs {
		if err := c.AddServer(ctx, name, cfg); err != nil {
			logging.Warn().
				Str("server", name).
				Err(err).
				Msg("mcp server connection failed")
		}
	}
}

// AddServer adds and connects to a single MCP server.
func (c *Client) AddServer(ctx context.Context, name string, cfg types.MCPConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.servers[name]; ok {
		return fmt.Errorf("server already exists: %s", name)
	}

	if cfg.Enabled != nil && !*cfg.Enabled {
		c.servers[name] = &mcpServer{name: name, status: StatusDisabled}
		return nil
	}

	server, err := c.connectServer(ctx, name, cfg)
	if err != nil {
		c.servers[name] = &mcpServer{name: name, status: StatusFailed, err: err.Error()}
		return err
	}

	c.servers[name] = server
	return nil
}

func (c *Client) connectServer(ctx context.Context, name string, cfg types.MCPConfig) (*mcpServer, error) {
	server := &mcpServer{name: name}

	switch transportType(cfg) {
	case "remote":
		httpClient := httpClientWithHeaders(cfg.Headers)
		transports := []struct {
			name      string
			transport sdkmcp.Transport
		}{
			{name: "streamable", transport: &sdkmcp.StreamableClientTransport{Endpoint: cfg.URL, HTTPClient: httpClient}},
			{name: "sse", transport: &sdkmcp.SSEClientTransport{Endpoint: cfg.URL, HTTPClient: httpClient}},
		}

		var lastErr error
		for _, candidate := range transports {
			session, err := c.connectWithTransport(ctx, candidate.transport, server)
			if err != nil {
				lastErr = fmt.Errorf("%s transport: %w", candidate.name, err)
				continue
			}
			server.session = session
			server.status = StatusConnected
			return server, nil
		}
		return nil, lastErr

	case "local":
		if len(cfg.Command) == 0 {
			return nil, fmt.Errorf("empty command")
		}

		connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()

		cmd := exec.Command(cfg.Command[0], cfg.Command[1:]...)
		cmd.Env = os.Environ()
		for k, v := range cfg.Environment {
			cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
		}

		session, err := c.connectWithTransport(connectCtx, &sdkmcp.CommandTransport{Command: cmd}, server)
		if err != nil {
			return nil, err
		}
		server.session = session
		server.status = StatusConnected
		return server, nil

	default:
		return nil, fmt.Errorf("cannot determine transport for server %s", name)
	}
}

// transportType resolves the transport from explicit config or shape.
func transportType(cfg types.MCPConfig) string {
	switch cfg.Type {
	case "remote", "sse":
		return "remote"
	case "local", "stdio":
		return "local"
	}
	if cfg.URL != "" {
		return "remote"
	}
	if len(cfg.Command) > 0 {
		return "local"
	}
	return ""
}

func (c *Client) connectWithTransport(ctx context.Context, transport sdkmcp.Transport, server *mcpServer) (*sdkmcp.ClientSession, error) {
	session, err := c.sdkClient.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	listCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	result, err := session.ListTools(listCtx, nil)
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}

	server.tools = make([]ToolInfo, 0, len(result.Tools))
	for _, t := range result.Tools {
		info := ToolInfo{Name: t.Name, Description: t.Description}
		if t.InputSchema != nil {
			if data, err := json.Marshal(t.InputSchema); err == nil {
				info.InputSchema = data
			}
		}
		if info.InputSchema == nil {
			info.InputSchema = json.RawMessage(`{"type":"object"}`)
		}
		server.tools = append(server.tools, info)
	}

	return session, nil
}

func httpClientWithHeaders(headers map[string]string) *http.Client {
	client := &http.Client{}
	if len(headers) == 0 {
		return client
	}
	client.Transport = &headerRoundTripper{headers: headers, next: http.DefaultTransport}
	return client
}

type headerRoundTripper struct {
	headers map[string]string
	next    http.RoundTripper
}

func (h *headerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	cloned := req.Clone(req.Context())
	for k, v := range h.headers {
		cloned.Header.Set(k, v)
	}
	return h.next.RoundTrip(cloned)
}

// Tools returns all tools from all connected servers, names prefixed with
// the server name so different servers cannot collide.
func (c *Client) Tools() []ToolInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var all []ToolInfo
	for name, server := range c.servers {
		if server.status != StatusConnected {
			continue
		}
		for _, t := range server.tools {
			all = append(all, ToolInfo{
				Name:        sanitizeToolName(name) + "_" + sanitizeToolName(t.Name),
				Description: t.Description,
				InputSchema: t.InputSchema,
			})
		}
	}
	return all
}

// ExecuteTool executes a prefixed tool on the owning server and returns the
// concatenated text content.
func (c *Client) ExecuteTool(ctx context.Context, toolName string, args json.RawMessage) (string, error) {
	c.mu.RLock()
	var target *mcpServer
	var original string
	for name, server := range c.servers {
		if server.status != StatusConnected {
			continue
		}
		prefix := sanitizeToolName(name) + "_"
		if !strings.HasPrefix(toolName, prefix) {
			continue
		}
		stripped := strings.TrimPrefix(toolName, prefix)
		for _, t := range server.tools {
			if sanitizeToolName(t.Name) == stripped {
				target = server
				original = t.Name
				break
			}
		}
		if target != nil {
			break
		}
	}
	c.mu.RUnlock()

	if target == nil || target.session == nil {
		return "", fmt.Errorf("no server found for tool: %s", toolName)
	}

	var argsMap map[string]any
	if len(args) > 0 {
		if err := json.Unmarshal(args, &argsMap); err != nil {
			return "", fmt.Errorf("failed to parse arguments: %w", err)
		}
	}

	result, err := target.session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      original,
		Arguments: argsMap,
	})
	if err != nil {
		return "", err
	}

	var output strings.Builder
	for _, content := range result.Content {
		if textContent, ok := content.(*sdkmcp.TextContent); ok {
			output.WriteString(textContent.Text)
		}
	}

	if result.IsError {
		if output.Len() > 0 {
			return "", fmt.Errorf("tool error: %s", output.String())
		}
		return "", fmt.Errorf("tool execution failed")
	}

	return output.String(), nil
}

// Status returns the state of all configured servers.
func (c *Client) Status() []ServerStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var status []ServerStatus
	for name, server := range c.servers {
		status = append(status, ServerStatus{
			Name:      name,
			Status:    server.status,
			ToolCount: len(server.tools),
			Error:     server.err,
		})
	}
	return status
}

// Close disconnects all servers.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, server := range c.servers {
		if server.session != nil {
			server.session.Close()
		}
	}
	c.servers = make(map[string]*mcpServer)
	return nil
}

// sanitizeToolName replaces non-alphanumeric chars with underscore.
func sanitizeToolName(name string) string {
	var result strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			result.WriteRune(r)
		} else {
			result.WriteRune('_')
		}
	}
	return result.String()
}
