package connection

import (
	"fmt"

	"github.com/domocarroll/dannicraft/internal/bridge"
)

// transition applies one lifecycle event from handle h.
type transition func(m *manager, h *handle, ev bridge.Event)

// transitions maps each lifecycle event to its handler.
var transitions = map[bridge.EventType]transition{
	bridge.EventLogin:  (*manager).onLogin,
	bridge.EventSpawn:  (*manager).onSpawn,
	bridge.EventChat:   (*manager).onChat,
	bridge.EventKicked: (*manager).onKicked,
	bridge.EventError:  (*manager).onError,
	bridge.EventEnd:    (*manager).onEnd,
	bridge.EventRealms: (*manager).onRealms,
}

func (m *manager) onLogin(h *handle, ev bridge.Event) {
	m.log(LevelInfo, "Bot logged in successfully")
}

// onSpawn marks the handle connected. Movement setup and the greeting run
// once per handle; later spawns (respawns) only update the state.
func (m *manager) onSpawn(h *handle, ev bridge.Event) {
	if !m.setStateFor(h, StateConnected) {
		return
	}
	m.log(LevelInfo, "Bot spawned in world")

	h.spawnOnce.Do(func() {
		ver := ev.Version
		if ver == "" {
			ver = h.client.Version()
		}
		if err := h.client.ConfigureMovements(h.ctx, ver); err != nil {
			m.log(LevelWarn, fmt.Sprintf("Failed to configure movements: %v", err))
		}
		if err := h.client.Chat(h.ctx, Greeting); err != nil {
			m.log(LevelWarn, fmt.Sprintf("Failed to send greeting: %v", err))
		}
		m.log(LevelInfo, fmt.Sprintf("danniCRAFT connected successfully. Username: %s, Server: %s",
			h.client.Username(), m.cfg.Server.ServerLabel()))
	})
}

func (m *manager) onChat(h *handle, ev bridge.Event) {
	if ev.Username == h.client.Username() {
		return
	}
	if m.callbacks.OnChatMessage != nil {
		m.callbacks.OnChatMessage(ev.Username, ev.Message)
	}
}

func (m *manager) onKicked(h *handle, ev bridge.Event) {
	m.log(LevelError, "Bot was kicked from server: "+ev.Reason)
	m.setStateFor(h, StateDisconnected)

	if err := h.client.Quit("kicked"); err != nil && !quitDone(err) {
		m.log(LevelWarn, fmt.Sprintf("Error quitting after kick: %v", err))
	}
}

// onError only treats refused and timed-out connections as fatal. Other
// errors may be recovered by the bridge.
func (m *manager) onError(h *handle, ev bridge.Event) {
	code := ev.Code
	if code == "" {
		code = bridge.CodeUnknown
	}
	m.log(LevelError, fmt.Sprintf("Bot error [%s]: %s", code, ev.Message))

	switch code {
	case bridge.CodeConnRefused, bridge.CodeTimedOut:
		m.setStateFor(h, StateDisconnected)
	}
}

// onEnd clears the handle only if it is still the current one; a handle
// superseded by a later reconnect must not touch the new connection.
func (m *manager) onEnd(h *handle, ev bridge.Event) {
	m.log(LevelInfo, "Bot disconnected: "+ev.Reason)

	m.mu.Lock()
	current := m.current == h
	if current {
		if m.state == StateConnected || (m.state == StateConnecting && !m.reconnecting) {
			m.state = StateDisconnected
		}
		m.current = nil
	}
	m.mu.Unlock()

	if !current {
		return
	}

	h.detach()
	m.log(LevelInfo, "Bot instance cleaned up after disconnect")
}

func (m *manager) onRealms(h *handle, ev bridge.Event) {
	m.logger.Debug("realm list received", "count", len(ev.Realms))
}
