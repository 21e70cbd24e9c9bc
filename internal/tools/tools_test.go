package tools

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/domocarroll/dannicraft/internal/bridge"
	"github.com/domocarroll/dannicraft/internal/config"
	"github.com/domocarroll/dannicraft/internal/connection"
	"github.com/domocarroll/dannicraft/internal/fishing"
)

// fakeClient is a connected bridge client whose casts block until cancelled.
type fakeClient struct {
	mu    sync.Mutex
	items []bridge.Item
	chats []string
}

func (c *fakeClient) Connect(ctx context.Context) error { return nil }
func (c *fakeClient) Events() <-chan bridge.Event       { return nil }
func (c *fakeClient) Detach()                           {}
func (c *fakeClient) Quit(reason string) error          { return nil }
func (c *fakeClient) IsConnected() bool                 { return true }
func (c *fakeClient) Username() string                  { return "danni_bot" }
func (c *fakeClient) Version() string                   { return "1.21.4" }

func (c *fakeClient) Chat(ctx context.Context, message string) error {
	c.mu.Lock()
	c.chats = append(c.chats, message)
	c.mu.Unlock()
	return nil
}

func (c *fakeClient) Equip(ctx context.Context, item bridge.Item, destination string) error {
	return nil
}

func (c *fakeClient) Fish(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (c *fakeClient) Inventory(ctx context.Context) ([]bridge.Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]bridge.Item(nil), c.items...), nil
}

func (c *fakeClient) ConfigureMovements(ctx context.Context, version string) error { return nil }

func (c *fakeClient) chatLines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.chats...)
}

// fakeManager is a connection.Manager with a fixed outcome.
type fakeManager struct {
	state  connection.State
	client bridge.Client
	result connection.Result
	cfg    config.ServerConfig
	checks int
}

func (m *fakeManager) Connect(ctx context.Context) error { return nil }
func (m *fakeManager) AttemptReconnect()                 {}
func (m *fakeManager) Cleanup()                          {}
func (m *fakeManager) State() connection.State           { return m.state }
func (m *fakeManager) IsConnected() bool                 { return m.state == connection.StateConnected }
func (m *fakeManager) Config() config.ServerConfig       { return m.cfg }

func (m *fakeManager) Client() bridge.Client { return m.client }

func (m *fakeManager) CheckConnectionAndReconnect(ctx context.Context) connection.Result {
	m.checks++
	return m.result
}

func connectedManager(client *fakeClient) *fakeManager {
	m := &fakeManager{
		state:  connection.StateConnected,
		result: connection.Result{Connected: true},
		cfg: config.ServerConfig{
			Host:     "mc.example.net",
			Port:     25565,
			Username: "danniCRAFT",
			Auth:     config.AuthOffline,
		},
	}
	if client != nil {
		m.client = client
	}
	return m
}

func disconnectedManager() *fakeManager {
	m := connectedManager(nil)
	m.state = connection.StateDisconnected
	m.result = connection.Result{Message: "Cannot connect to Minecraft server."}
	return m
}

func newSessions(t *testing.T) *fishing.Sessions {
	t.Helper()
	opts := fishing.DefaultOptions()
	opts.CastDelay = time.Millisecond
	s := fishing.NewSessions(opts)
	t.Cleanup(s.Close)
	return s
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content type = %T, want mcp.TextContent", res.Content[0])
	}
	return text.Text
}

func TestFishStart_NotConnected(t *testing.T) {
	conn := disconnectedManager()
	tool := NewFishStartTool(conn, newSessions(t))

	res, err := tool.Handle(context.Background(), callRequest("fish-start", nil))
	if err != nil {
		t.Fatalf("Handle error: %v", err)
	}
	if !res.IsError {
		t.Error("expected an error result")
	}
	if got := resultText(t, res); !strings.Contains(got, "Cannot connect") {
		t.Errorf("text = %q, want diagnostic", got)
	}
	if conn.checks != 1 {
		t.Errorf("connection checks = %d, want 1", conn.checks)
	}
}

func TestFishTools_Flow(t *testing.T) {
	client := &fakeClient{items: []bridge.Item{{Name: "fishing_rod"}}}
	conn := connectedManager(client)
	sessions := newSessions(t)
	ctx := context.Background()

	start := NewFishStartTool(conn, sessions)
	stop := NewFishStopTool(conn, sessions)
	status := NewFishStatusTool(conn, sessions)

	res, _ := stop.Handle(ctx, callRequest("fish-stop", nil))
	if got := resultText(t, res); got != "I'm not currently fishing." {
		t.Errorf("stop before start = %q", got)
	}

	res, _ = start.Handle(ctx, callRequest("fish-start", map[string]any{"announce": true}))
	if got := resultText(t, res); !strings.Contains(got, "Announcements: on") {
		t.Errorf("start text = %q, want announcements on", got)
	}

	res, _ = start.Handle(ctx, callRequest("fish-start", nil))
	if got := resultText(t, res); !strings.HasPrefix(got, "I'm already fishing.") {
		t.Errorf("second start = %q, want already fishing", got)
	}

	res, _ = status.Handle(ctx, callRequest("fish-status", nil))
	if got := resultText(t, res); !strings.HasPrefix(got, "Fishing in progress...") {
		t.Errorf("status = %q", got)
	}

	res, _ = stop.Handle(ctx, callRequest("fish-stop", nil))
	if got := resultText(t, res); !strings.HasPrefix(got, "Fishing session complete.") {
		t.Errorf("stop = %q, want summary", got)
	}

	if snap := sessions.Get("danniCRAFT").Snapshot(); snap.StartedAt.IsZero() {
		t.Error("session should be keyed by the configured username")
	}

	res, _ = status.Handle(ctx, callRequest("fish-status", nil))
	if got := resultText(t, res); got != "I'm not currently fishing. Use fish-start to begin." {
		t.Errorf("status after stop = %q", got)
	}
}

func TestFishStart_NoRod(t *testing.T) {
	client := &fakeClient{items: []bridge.Item{{Name: "cod"}}}
	tool := NewFishStartTool(connectedManager(client), newSessions(t))

	res, _ := tool.Handle(context.Background(), callRequest("fish-start", nil))
	if got := resultText(t, res); got != "I don't have a fishing rod in my inventory. Please provide one." {
		t.Errorf("text = %q", got)
	}
}

func TestFishTools_SurviveDisconnect(t *testing.T) {
	// The server knows the bot as danni_bot; the configured name is danniCRAFT.
	client := &fakeClient{items: []bridge.Item{{Name: "fishing_rod"}}}
	conn := connectedManager(client)
	sessions := newSessions(t)
	ctx := context.Background()

	res, _ := NewFishStartTool(conn, sessions).Handle(ctx, callRequest("fish-start", nil))
	if got := resultText(t, res); !strings.HasPrefix(got, "Fishing session started.") {
		t.Fatalf("start = %q", got)
	}

	// The handle is cleared after the bot drops.
	conn.state = connection.StateDisconnected
	conn.client = nil

	res, _ = NewFishStatusTool(conn, sessions).Handle(ctx, callRequest("fish-status", nil))
	if got := resultText(t, res); !strings.HasPrefix(got, "Fishing in progress...") {
		t.Errorf("status while disconnected = %q, want in progress", got)
	}

	res, _ = NewBotStatusTool(conn, sessions).Handle(ctx, callRequest("bot-status", nil))
	if got := resultText(t, res); !strings.Contains(got, "Fishing: active") {
		t.Errorf("bot-status while disconnected = %q, want fishing active", got)
	}

	res, _ = NewFishStopTool(conn, sessions).Handle(ctx, callRequest("fish-stop", nil))
	if got := resultText(t, res); !strings.HasPrefix(got, "Fishing session complete.") {
		t.Errorf("stop while disconnected = %q, want summary", got)
	}

	if active := sessions.Active(); len(active) != 0 {
		t.Errorf("active sessions = %v, want none", active)
	}
	for _, line := range client.chatLines() {
		if strings.Contains(line, "Session complete") {
			t.Error("farewell should not be said without a connection")
		}
	}
}

func TestBotStatus(t *testing.T) {
	tests := []struct {
		name string
		conn *fakeManager
		want []string
	}{
		{
			name: "connected",
			conn: connectedManager(&fakeClient{}),
			want: []string{"Connection: connected", "Server: mc.example.net:25565", "Username: danni_bot", "Fishing: idle"},
		},
		{
			name: "realm",
			conn: func() *fakeManager {
				m := disconnectedManager()
				m.cfg.Realm = "Survival"
				m.cfg.Auth = config.AuthMicrosoft
				return m
			}(),
			want: []string{"Connection: disconnected", "Realm: Survival", "Username: danniCRAFT", "browser login"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tool := NewBotStatusTool(tt.conn, newSessions(t))
			res, _ := tool.Handle(context.Background(), callRequest("bot-status", nil))
			got := resultText(t, res)
			for _, want := range tt.want {
				if !strings.Contains(got, want) {
					t.Errorf("status %q missing %q", got, want)
				}
			}
		})
	}
}

func TestSendChat(t *testing.T) {
	tests := []struct {
		name      string
		conn      func(*fakeClient) *fakeManager
		args      map[string]any
		wantError bool
		wantText  string
		wantChat  bool
	}{
		{
			name:     "sends",
			conn:     connectedManager,
			args:     map[string]any{"message": "hello world"},
			wantText: "Sent: hello world",
			wantChat: true,
		},
		{
			name:      "missing message",
			conn:      connectedManager,
			args:      map[string]any{},
			wantError: true,
		},
		{
			name:      "blank message",
			conn:      connectedManager,
			args:      map[string]any{"message": "   "},
			wantError: true,
			wantText:  "message must not be empty",
		},
		{
			name:      "not connected",
			conn:      func(*fakeClient) *fakeManager { return disconnectedManager() },
			args:      map[string]any{"message": "hi"},
			wantError: true,
			wantText:  "Cannot connect",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{}
			tool := NewSendChatTool(tt.conn(client))

			res, err := tool.Handle(context.Background(), callRequest("send-chat", tt.args))
			if err != nil {
				t.Fatalf("Handle error: %v", err)
			}
			if res.IsError != tt.wantError {
				t.Errorf("IsError = %v, want %v", res.IsError, tt.wantError)
			}
			if got := resultText(t, res); !strings.Contains(got, tt.wantText) {
				t.Errorf("text = %q, want %q", got, tt.wantText)
			}
			if sent := len(client.chatLines()) > 0; sent != tt.wantChat {
				t.Errorf("chat sent = %v, want %v", sent, tt.wantChat)
			}
		})
	}
}

func TestDefinitions(t *testing.T) {
	conn := disconnectedManager()
	sessions := newSessions(t)

	defs := []mcp.Tool{
		NewFishStartTool(conn, sessions).Definition(),
		NewFishStopTool(conn, sessions).Definition(),
		NewFishStatusTool(conn, sessions).Definition(),
		NewBotStatusTool(conn, sessions).Definition(),
		NewSendChatTool(conn).Definition(),
	}
	want := []string{"fish-start", "fish-stop", "fish-status", "bot-status", "send-chat"}

	for i, def := range defs {
		if def.Name != want[i] {
			t.Errorf("tool %d name = %s, want %s", i, def.Name, want[i])
		}
		if def.Description == "" {
			t.Errorf("tool %s has no description", def.Name)
		}
	}

	if _, ok := defs[0].InputSchema.Properties["announce"]; !ok {
		t.Error("fish-start should declare announce")
	}
	if len(defs[4].InputSchema.Required) != 1 || defs[4].InputSchema.Required[0] != "message" {
		t.Errorf("send-chat required = %v, want [message]", defs[4].InputSchema.Required)
	}
}

func TestLoggingLevel(t *testing.T) {
	tests := []struct {
		level connection.Level
		want  mcp.LoggingLevel
	}{
		{connection.LevelInfo, mcp.LoggingLevelInfo},
		{connection.LevelWarn, mcp.LoggingLevelWarning},
		{connection.LevelError, mcp.LoggingLevelError},
	}

	for _, tt := range tests {
		if got := loggingLevel(tt.level); got != tt.want {
			t.Errorf("loggingLevel(%s) = %s, want %s", tt.level, got, tt.want)
		}
	}
}
