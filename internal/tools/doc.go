// Package tools exposes the bot's actions as MCP tools.
//
// Tools:
//   - fish-start, fish-stop, fish-status: the fishing action loop
//   - bot-status: connection state and server details
//   - send-chat: say something in game chat
//
// Tools that act in the world first ask the connection manager for a live
// handle; when none can be had, the manager's diagnostic is returned as an
// error result.
package tools
