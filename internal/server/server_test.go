package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relay-ai/relay/internal/dedup"
	"github.com/relay-ai/relay/internal/event"
	"github.com/relay-ai/relay/internal/provider"
	"github.com/relay-ai/relay/internal/session"
	"github.com/relay-ai/relay/internal/store"
	"github.com/relay-ai/relay/internal/tool"
	"github.com/relay-ai/relay/pkg/types"
)

// scriptedProvider replays canned responses in order. Title generation
// requests are answered out of band so they never consume the script.
type scriptedProvider struct {
	mu     sync.Mutex
	script []*provider.Response
	calls  int
}

func (p *scriptedProvider) ID() string { return "fake" }

func (p *scriptedProvider) Models() []types.Model {
	return []types.Model{{ID: "model-1", ProviderID: "fake", Name: "Fake Model", Default: true}}
}

func (p *scriptedProvider) Complete(_ context.Context, req *provider.Request) (*provider.Response, error) {
	if strings.Contains(req.System, "title generator") {
		return &provider.Response{Text: "A Title", FinishReason: "stop"}, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if len(p.script) == 0 {
		return &provider.Response{Text: "done", FinishReason: "stop"}, nil
	}
	resp := p.script[0]
	p.script = p.script[1:]
	return resp, nil
}

func (p *scriptedProvider) turnCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func newTestServer(t *testing.T, script ...*provider.Response) (*httptest.Server, *scriptedProvider) {
	t.Helper()

	p := &scriptedProvider{script: script}
	providers := provider.NewRegistry(&types.Config{Model: "fake/model-1"})
	providers.Register(p)

	bus := event.NewBus()
	t.Cleanup(func() { bus.Close() })

	appConfig := &types.Config{
		Model:      "fake/model-1",
		MaxTurns:   12,
		PingOwner:  "system",
		PingSecret: "hunter2",
	}

	svc, err := session.NewService(store.NewMemoryStore(), dedup.New(0), providers, tool.NewRegistry(), bus, appConfig)
	require.NoError(t, err)

	srv := New(DefaultConfig(), appConfig, svc, bus)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	return ts, p
}

func doJSON(t *testing.T, ts *httptest.Server, method, path, owner string, body any, headers map[string]string) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if owner != "" {
		req.Header.Set("X-Relay-Owner", owner)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func toolCallResponse(id, name, args string) *provider.Response {
	return &provider.Response{
		ToolCalls:    []types.ToolCall{{ID: id, Name: name, Arguments: json.RawMessage(args)}},
		FinishReason: "tool_use",
	}
}

func TestHealthz(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := ts.Client().Get(ts.URL + "/healthz")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[map[string]string](t, resp)
	assert.Equal(t, "ok", body["status"])
}

func TestSessionRoutesRequireOwner(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := doJSON(t, ts, http.MethodPost, "/session/message", "", map[string]string{"content": "hi"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decodeBody[ErrorResponse](t, resp)
	assert.Equal(t, ErrCodeInvalidRequest, body.Error.Code)
}

func TestNewMessageEndToEnd(t *testing.T) {
	ts, _ := newTestServer(t, &provider.Response{Text: "hello back", FinishReason: "stop"})

	resp := doJSON(t, ts, http.MethodPost, "/session/message", "alice", map[string]string{"content": "hello"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	turn := decodeBody[types.TurnResponse](t, resp)
	assert.True(t, turn.Completed)
	assert.Equal(t, "hello back", turn.Reply)
	assert.NotEmpty(t, turn.SessionID)
	assert.Len(t, turn.Messages, 2)
}

func TestNewMessageValidation(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := doJSON(t, ts, http.MethodPost, "/session/message", "alice", map[string]string{}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/session/message", strings.NewReader("{not json"))
	require.NoError(t, err)
	req.Header.Set("X-Relay-Owner", "alice")
	raw, err := ts.Client().Do(req)
	require.NoError(t, err)
	raw.Body.Close()
	assert.Equal(t, http.StatusBadRequest, raw.StatusCode)
}

func TestNewMessageIdempotencyHeader(t *testing.T) {
	ts, p := newTestServer(t, &provider.Response{Text: "once", FinishReason: "stop"})
	headers := map[string]string{"X-Request-ID": "req-1"}

	first := decodeBody[types.TurnResponse](t,
		doJSON(t, ts, http.MethodPost, "/session/message", "alice", map[string]string{"content": "hi"}, headers))
	second := decodeBody[types.TurnResponse](t,
		doJSON(t, ts, http.MethodPost, "/session/message", "alice", map[string]string{"content": "hi"}, headers))

	assert.Equal(t, first.SessionID, second.SessionID)
	assert.Equal(t, first.Reply, second.Reply)
	assert.Equal(t, 1, p.turnCalls())
}

func TestGetSessionAndOwnership(t *testing.T) {
	ts, _ := newTestServer(t, &provider.Response{Text: "x", FinishReason: "stop"})

	turn := decodeBody[types.TurnResponse](t,
		doJSON(t, ts, http.MethodPost, "/session/message", "alice", map[string]string{"content": "hi"}, nil))

	resp := doJSON(t, ts, http.MethodGet, "/session/"+turn.SessionID, "alice", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	detail := decodeBody[sessionDetail](t, resp)
	assert.Equal(t, turn.SessionID, detail.Session.ID)
	assert.Len(t, detail.Messages, 2)

	resp = doJSON(t, ts, http.MethodGet, "/session/"+turn.SessionID, "mallory", nil, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	body := decodeBody[ErrorResponse](t, resp)
	assert.Equal(t, "access_denied", body.Error.Code)

	resp = doJSON(t, ts, http.MethodGet, "/session/missing", "alice", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	body = decodeBody[ErrorResponse](t, resp)
	assert.Equal(t, "not_found", body.Error.Code)
}

func TestListSessions(t *testing.T) {
	ts, _ := newTestServer(t,
		&provider.Response{Text: "a", FinishReason: "stop"},
		&provider.Response{Text: "b", FinishReason: "stop"},
	)

	doJSON(t, ts, http.MethodPost, "/session/message", "alice", map[string]string{"content": "one"}, nil).Body.Close()
	doJSON(t, ts, http.MethodPost, "/session/message", "bob", map[string]string{"content": "two"}, nil).Body.Close()

	resp := doJSON(t, ts, http.MethodGet, "/session", "alice", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sessions := decodeBody[[]*types.Session](t, resp)
	require.Len(t, sessions, 1)
	assert.Equal(t, "alice", sessions[0].Owner)

	resp = doJSON(t, ts, http.MethodGet, "/session?limit=bogus", "alice", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestContinueEndpoint(t *testing.T) {
	ts, _ := newTestServer(t,
		toolCallResponse("c1", "lookup", `{}`),
		&provider.Response{Text: "resolved", FinishReason: "stop"},
	)

	turn := decodeBody[types.TurnResponse](t,
		doJSON(t, ts, http.MethodPost, "/session/message", "alice", map[string]string{"content": "go"}, nil))
	require.True(t, turn.HasPendingTools)

	resp := doJSON(t, ts, http.MethodPost, "/session/"+turn.SessionID+"/continue", "alice", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	cont := decodeBody[types.TurnResponse](t, resp)
	assert.True(t, cont.Completed)
	assert.Equal(t, "resolved", cont.Reply)
}

func TestDeleteSession(t *testing.T) {
	ts, _ := newTestServer(t, &provider.Response{Text: "x", FinishReason: "stop"})

	turn := decodeBody[types.TurnResponse](t,
		doJSON(t, ts, http.MethodPost, "/session/message", "alice", map[string]string{"content": "hi"}, nil))

	resp := doJSON(t, ts, http.MethodDelete, "/session/"+turn.SessionID, "alice", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, ts, http.MethodGet, "/session/"+turn.SessionID, "alice", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestPingAuth(t *testing.T) {
	ts, _ := newTestServer(t, &provider.Response{Text: "pong", FinishReason: "stop"})

	resp := doJSON(t, ts, http.MethodPost, "/ping", "", map[string]string{"content": "probe"}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, ts, http.MethodPost, "/ping", "", map[string]string{"content": "probe"},
		map[string]string{"Authorization": "Bearer wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, ts, http.MethodPost, "/ping", "", map[string]string{"content": "probe"},
		map[string]string{"Authorization": "Bearer hunter2"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ping := decodeBody[types.PingResponse](t, resp)
	assert.Equal(t, "pong", ping.Reply)
	assert.Equal(t, 1, ping.TurnCount)
}

func TestEventStreamSendsConnected(t *testing.T) {
	ts, _ := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/event", nil)
	require.NoError(t, err)

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	var dataLine string
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: ") {
			dataLine = strings.TrimSpace(strings.TrimPrefix(line, "data: "))
			break
		}
	}

	var evt wireEvent
	require.NoError(t, json.Unmarshal([]byte(dataLine), &evt))
	assert.Equal(t, event.EventType("server.connected"), evt.Type)
}
