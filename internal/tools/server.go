package tools

import (
	"context"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/domocarroll/dannicraft/internal/connection"
	"github.com/domocarroll/dannicraft/internal/fishing"
	"github.com/domocarroll/dannicraft/internal/version"
)

// ServerName is the name reported to MCP clients.
const ServerName = "dannicraft"

const instructions = `danniCRAFT is a Minecraft bot with a calm, curious personality.
Use fish-start to begin an automated fishing session (a fishing rod must be in the bot's inventory),
fish-status to check progress and fish-stop to end it and get a summary.
bot-status reports the connection; send-chat speaks in game chat.
Chat from other players arrives as notifications/message.`

// NewMCPServer creates the MCP server without any tools.
func NewMCPServer() *server.MCPServer {
	return server.NewMCPServer(
		ServerName,
		version.Version,
		server.WithToolCapabilities(true),
		server.WithLogging(),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)
}

// Register adds every tool to s.
func Register(s *server.MCPServer, conn connection.Manager, sessions *fishing.Sessions) {
	fishStart := NewFishStartTool(conn, sessions)
	s.AddTool(fishStart.Definition(), fishStart.Handle)

	fishStop := NewFishStopTool(conn, sessions)
	s.AddTool(fishStop.Definition(), fishStop.Handle)

	fishStatus := NewFishStatusTool(conn, sessions)
	s.AddTool(fishStatus.Definition(), fishStatus.Handle)

	botStatus := NewBotStatusTool(conn, sessions)
	s.AddTool(botStatus.Definition(), botStatus.Handle)

	sendChat := NewSendChatTool(conn)
	s.AddTool(sendChat.Definition(), sendChat.Handle)
}

// Serve runs the MCP server over the given stdio streams until ctx is done.
func Serve(ctx context.Context, s *server.MCPServer, in io.Reader, out io.Writer, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	stdio := server.NewStdioServer(s)
	stdio.SetErrorLogger(slog.NewLogLogger(logger.Handler(), slog.LevelError))

	logger.Info("mcp server listening on stdio", "name", ServerName, "version", version.Version)
	return stdio.Listen(ctx, in, out)
}
