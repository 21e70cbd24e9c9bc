package tools

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/domocarroll/dannicraft/internal/connection"
)

const notificationMethod = "notifications/message"

// Notifier forwards bot log lines and inbound chat to connected MCP clients.
type Notifier struct {
	srv *server.MCPServer
}

// NewNotifier creates a Notifier for s.
func NewNotifier(s *server.MCPServer) *Notifier {
	return &Notifier{srv: s}
}

// Callbacks returns connection callbacks that forward to MCP clients.
func (n *Notifier) Callbacks() connection.Callbacks {
	return connection.Callbacks{
		OnLog:         n.Log,
		OnChatMessage: n.Chat,
	}
}

// Log sends a bot log line.
func (n *Notifier) Log(level connection.Level, message string) {
	n.srv.SendNotificationToAllClients(notificationMethod, map[string]any{
		"level":  loggingLevel(level),
		"logger": ServerName,
		"data":   message,
	})
}

// Chat sends a chat line from another player.
func (n *Notifier) Chat(username, message string) {
	n.srv.SendNotificationToAllClients(notificationMethod, map[string]any{
		"level":  mcp.LoggingLevelInfo,
		"logger": "chat",
		"data": map[string]any{
			"username": username,
			"message":  message,
		},
	})
}

func loggingLevel(level connection.Level) mcp.LoggingLevel {
	switch level {
	case connection.LevelError:
		return mcp.LoggingLevelError
	case connection.LevelWarn:
		return mcp.LoggingLevelWarning
	default:
		return mcp.LoggingLevelInfo
	}
}
