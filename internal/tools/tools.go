package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/domocarroll/dannicraft/internal/bridge"
	"github.com/domocarroll/dannicraft/internal/config"
	"github.com/domocarroll/dannicraft/internal/connection"
	"github.com/domocarroll/dannicraft/internal/fishing"
)

const noClientText = "danniCRAFT is not in a world right now. Try again in a moment."

// liveClient ensures a connected handle. On failure it returns the tool result to send.
func liveClient(ctx context.Context, conn connection.Manager) (bridge.Client, *mcp.CallToolResult) {
	res := conn.CheckConnectionAndReconnect(ctx)
	if !res.Connected {
		return nil, mcp.NewToolResultError(res.Message)
	}

	client := conn.Client()
	if client == nil {
		return nil, mcp.NewToolResultError(noClientText)
	}
	return client, nil
}

// sessionKey is the identity fishing state is keyed by. It comes from the
// configuration, so it stays the same across reconnects and while no client
// exists, even when the server assigns a different in-game name.
func sessionKey(conn connection.Manager) string {
	return conn.Config().Username
}

// inGameName is the name the server knows the bot by, falling back to the
// configured one while disconnected.
func inGameName(conn connection.Manager) string {
	if client := conn.Client(); client != nil {
		if name := client.Username(); name != "" {
			return name
		}
	}
	return conn.Config().Username
}

// FishStartTool starts a fishing session.
type FishStartTool struct {
	conn     connection.Manager
	sessions *fishing.Sessions
}

// NewFishStartTool creates the fish-start tool.
func NewFishStartTool(conn connection.Manager, sessions *fishing.Sessions) *FishStartTool {
	return &FishStartTool{conn: conn, sessions: sessions}
}

func (t *FishStartTool) Definition() mcp.Tool {
	return mcp.NewTool("fish-start",
		mcp.WithDescription("Start fishing. danniCRAFT will continuously fish until stopped. Requires a fishing rod in inventory."),
		mcp.WithBoolean("announce",
			mcp.Description("Whether to announce catches in chat (default: false, reduces spam)"),
		),
	)
}

func (t *FishStartTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	client, failure := liveClient(ctx, t.conn)
	if failure != nil {
		return failure, nil
	}

	announce := req.GetBool("announce", false)

	text, _ := t.sessions.Get(sessionKey(t.conn)).Start(ctx, client, announce)
	return mcp.NewToolResultText(text), nil
}

// FishStopTool stops the current fishing session.
type FishStopTool struct {
	conn     connection.Manager
	sessions *fishing.Sessions
}

// NewFishStopTool creates the fish-stop tool.
func NewFishStopTool(conn connection.Manager, sessions *fishing.Sessions) *FishStopTool {
	return &FishStopTool{conn: conn, sessions: sessions}
}

func (t *FishStopTool) Definition() mcp.Tool {
	return mcp.NewTool("fish-stop",
		mcp.WithDescription("Stop the current fishing session and get a summary of catches."),
	)
}

// Handle stops the session even while disconnected; the farewell line is
// only said when a connected client is available.
func (t *FishStopTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var bot fishing.Bot
	if client := t.conn.Client(); client != nil && t.conn.IsConnected() {
		bot = client
	}

	text, _ := t.sessions.Get(sessionKey(t.conn)).Stop(ctx, bot)
	return mcp.NewToolResultText(text), nil
}

// FishStatusTool reports on the current fishing session.
type FishStatusTool struct {
	conn     connection.Manager
	sessions *fishing.Sessions
}

// NewFishStatusTool creates the fish-status tool.
func NewFishStatusTool(conn connection.Manager, sessions *fishing.Sessions) *FishStatusTool {
	return &FishStatusTool{conn: conn, sessions: sessions}
}

func (t *FishStatusTool) Definition() mcp.Tool {
	return mcp.NewTool("fish-status",
		mcp.WithDescription("Get the current status of the fishing session, including catches and treasures found."),
	)
}

func (t *FishStatusTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(t.sessions.Get(sessionKey(t.conn)).Status()), nil
}

// BotStatusTool reports the connection state.
type BotStatusTool struct {
	conn     connection.Manager
	sessions *fishing.Sessions
}

// NewBotStatusTool creates the bot-status tool.
func NewBotStatusTool(conn connection.Manager, sessions *fishing.Sessions) *BotStatusTool {
	return &BotStatusTool{conn: conn, sessions: sessions}
}

func (t *BotStatusTool) Definition() mcp.Tool {
	return mcp.NewTool("bot-status",
		mcp.WithDescription("Show whether danniCRAFT is connected, to which server, and whether it is fishing."),
	)
}

func (t *BotStatusTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(statusReport(t.conn, t.sessions)), nil
}

func statusReport(conn connection.Manager, sessions *fishing.Sessions) string {
	cfg := conn.Config()

	var b strings.Builder
	fmt.Fprintf(&b, "Connection: %s\n", conn.State())
	if cfg.Realm != "" {
		fmt.Fprintf(&b, "Realm: %s\n", cfg.Realm)
	} else {
		fmt.Fprintf(&b, "Server: %s:%d\n", cfg.Host, cfg.Port)
	}
	fmt.Fprintf(&b, "Username: %s\n", inGameName(conn))
	fmt.Fprintf(&b, "Auth: %s\n", cfg.Auth)
	if cfg.Version != "" {
		fmt.Fprintf(&b, "Version: %s\n", cfg.Version)
	}

	fishingState := "idle"
	if sessions.Get(sessionKey(conn)).IsActive() {
		fishingState = "active"
	}
	fmt.Fprintf(&b, "Fishing: %s", fishingState)

	if cfg.Auth == config.AuthMicrosoft && conn.State() != connection.StateConnected {
		b.WriteString("\n\nMicrosoft auth may be waiting for browser login.")
	}
	return b.String()
}

// SendChatTool says a line in game chat.
type SendChatTool struct {
	conn connection.Manager
}

// NewSendChatTool creates the send-chat tool.
func NewSendChatTool(conn connection.Manager) *SendChatTool {
	return &SendChatTool{conn: conn}
}

func (t *SendChatTool) Definition() mcp.Tool {
	return mcp.NewTool("send-chat",
		mcp.WithDescription("Send a message in game chat as danniCRAFT."),
		mcp.WithString("message",
			mcp.Required(),
			mcp.Description("The message to send"),
		),
	)
}

func (t *SendChatTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	message, err := req.RequireString("message")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return mcp.NewToolResultError("message must not be empty"), nil
	}

	client, failure := liveClient(ctx, t.conn)
	if failure != nil {
		return failure, nil
	}

	if err := client.Chat(ctx, message); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Couldn't send the message: %v", err)), nil
	}
	return mcp.NewToolResultText("Sent: " + message), nil
}
