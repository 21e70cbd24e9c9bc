package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/domocarroll/dannicraft/internal/bridge"
	"github.com/domocarroll/dannicraft/internal/config"
)

// Manager owns the bot's connection to the game server.
type Manager interface {
	// Connect creates a new client handle, replacing any previous one, and dials it.
	Connect(ctx context.Context) error

	// AttemptReconnect schedules one reconnect after the configured delay.
	// It is a no-op while a reconnect is pending or a connection is in progress.
	AttemptReconnect()

	// CheckConnectionAndReconnect makes sure a connected handle exists,
	// reconnecting and waiting for it if needed.
	CheckConnectionAndReconnect(ctx context.Context) Result

	// Cleanup cancels any pending reconnect and quits the client. Failures are logged.
	Cleanup()

	// State returns the current connection state.
	State() State

	// Client returns the current handle, or nil. Callers must not keep it
	// across a reconnect.
	Client() bridge.Client

	// IsConnected reports whether State is connected.
	IsConnected() bool

	// Config returns the server configuration.
	Config() config.ServerConfig
}

// handle is one client instance and its event pump.
type handle struct {
	client    bridge.Client
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	spawnOnce sync.Once
}

func newHandle(parent context.Context, client bridge.Client) *handle {
	ctx, cancel := context.WithCancel(parent)
	return &handle{
		client: client,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// detach removes the manager's listeners from the handle.
func (h *handle) detach() {
	h.client.Detach()
	h.cancel()
}

// manager implements the Manager interface.
type manager struct {
	cfg       ManagerConfig
	callbacks Callbacks
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	state        State
	current      *handle
	reconnecting bool
	timer        *time.Timer
	closed       bool
}

// NewManager creates a new Connection Manager in the disconnected state.
func NewManager(cfg ManagerConfig, callbacks Callbacks, logger *slog.Logger) Manager {
	if logger == nil {
		logger = slog.Default()
	}

	def := DefaultManagerConfig()
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = def.ReconnectDelay
	}
	if cfg.EnsureMargin <= 0 {
		cfg.EnsureMargin = def.EnsureMargin
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.Dial == nil {
		cfg.Dial = bridge.NewClient
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &manager{
		cfg:       cfg,
		callbacks: callbacks,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		state:     StateDisconnected,
	}
}

// Connect builds bridge options from the server config and starts a new handle.
func (m *manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.reconnecting = false
	m.mu.Unlock()

	srv := m.cfg.Server
	if err := srv.Validate(); err != nil {
		if errors.Is(err, config.ErrRealmRequiresMicrosoft) {
			m.log(LevelError, "Realm connection requires --auth microsoft")
		} else {
			m.log(LevelError, fmt.Sprintf("Invalid server configuration: %v", err))
		}
		m.setState(StateDisconnected)
		return err
	}

	opts := m.bridgeOptions()

	if srv.Realm != "" {
		m.log(LevelInfo, fmt.Sprintf("Looking for Realm matching %q...", srv.Realm))
		opts.Bot.Host = ""
		opts.Bot.Port = 0
		opts.Bot.Realms = true
		opts.PickRealm = m.realmPicker(srv.Realm)
		m.log(LevelInfo, "Microsoft auth enabled for Realm connection. Browser login may be required on first run.")
	} else {
		m.log(LevelInfo, fmt.Sprintf("Connecting to %s:%d with %s auth...", srv.Host, srv.Port, srv.Auth))
		if srv.Auth == config.AuthMicrosoft {
			m.log(LevelInfo, "Microsoft auth enabled. You may need to complete login in your browser on first run.")
		}
	}

	client := m.cfg.Dial(opts, m.logger.With("component", "bridge"))
	h := newHandle(m.ctx, client)

	m.mu.Lock()
	prev := m.current
	m.current = h
	m.state = StateConnecting
	m.mu.Unlock()

	if prev != nil {
		m.retire(prev, "Reconnecting...")
	}

	go m.pump(h)

	if err := client.Connect(ctx); err != nil {
		m.connectFailed(h, err)
		return fmt.Errorf("connect bridge: %w", err)
	}

	return nil
}

func (m *manager) bridgeOptions() bridge.Options {
	srv := m.cfg.Server
	br := m.cfg.Bridge

	return bridge.Options{
		URL: br.URL,
		Bot: bridge.CreateBotParams{
			Host:     srv.Host,
			Port:     srv.Port,
			Username: srv.Username,
			Auth:     srv.Auth,
			Version:  srv.Version,
		},
		HandshakeTimeout: br.HandshakeTimeout,
		CommandTimeout:   br.CommandTimeout,
		WriteTimeout:     br.WriteTimeout,
		PingTimeout:      br.PingTimeout,
		BufferSize:       br.BufferSize,
	}
}

// connectFailed routes a dial failure through the error transition. A handle
// that never connected cannot recover, so it is dropped.
func (m *manager) connectFailed(h *handle, err error) {
	m.dispatch(h, bridge.Event{
		Type:       bridge.EventError,
		Code:       bridge.ErrorCode(err),
		Message:    err.Error(),
		ReceivedAt: time.Now(),
	})

	m.mu.Lock()
	if m.current == h {
		m.current = nil
		m.state = StateDisconnected
	}
	m.mu.Unlock()

	h.detach()
}

// pump applies the handle's events in delivery order.
func (m *manager) pump(h *handle) {
	defer close(h.done)

	events := h.client.Events()
	for {
		select {
		case <-h.ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			m.dispatch(h, ev)
		}
	}
}

func (m *manager) dispatch(h *handle, ev bridge.Event) {
	if h.ctx.Err() != nil {
		return
	}

	fn, ok := transitions[ev.Type]
	if !ok {
		m.logger.Debug("unhandled bridge event", "event", ev.Type)
		return
	}
	fn(m, h, ev)
}

// AttemptReconnect schedules a reconnect.
func (m *manager) AttemptReconnect() {
	m.mu.Lock()
	if m.closed || m.reconnecting || m.state == StateConnecting {
		m.mu.Unlock()
		return
	}

	m.reconnecting = true
	m.state = StateConnecting
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(m.cfg.ReconnectDelay, m.reconnect)
	m.mu.Unlock()

	m.log(LevelInfo, fmt.Sprintf("Attempting to reconnect to Minecraft server in %s...", m.cfg.ReconnectDelay))
}

// reconnect runs when the reconnect timer fires.
func (m *manager) reconnect() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	old := m.current
	m.current = nil
	m.mu.Unlock()

	// Cleared above, so Connect does not retire it a second time.
	if old != nil {
		m.retire(old, "Reconnecting...")
	}

	m.log(LevelInfo, "Creating new bot instance...")

	// Failures are reported through the log callback by Connect itself.
	if err := m.Connect(m.ctx); err != nil {
		m.logger.Debug("reconnect failed", "error", err)
	}
}

// retire detaches a superseded handle and asks it to quit.
func (m *manager) retire(h *handle, reason string) {
	h.detach()

	if err := h.client.Quit(reason); err != nil {
		if !quitDone(err) {
			m.log(LevelWarn, fmt.Sprintf("Error while cleaning up old bot: %v", err))
		}
		return
	}
	m.log(LevelInfo, "Old bot instance cleaned up")
}

// CheckConnectionAndReconnect ensures a connected handle.
func (m *manager) CheckConnectionAndReconnect(ctx context.Context) Result {
	switch m.State() {
	case StateConnected:
		return Result{Connected: true}
	case StateConnecting:
		return Result{Message: connectingMessage}
	}

	m.AttemptReconnect()

	deadline := time.NewTimer(m.cfg.ReconnectDelay + m.cfg.EnsureMargin)
	defer deadline.Stop()

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if m.State() == StateConnected {
			return Result{Connected: true}
		}

		select {
		case <-ctx.Done():
			return Result{Message: unavailableMessage}
		case <-deadline.C:
			if m.State() == StateConnected {
				return Result{Connected: true}
			}
			return Result{Message: unavailableMessage}
		case <-ticker.C:
		}
	}
}

// Cleanup shuts the manager down.
func (m *manager) Cleanup() {
	m.mu.Lock()
	m.closed = true
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	h := m.current
	m.mu.Unlock()

	if h != nil {
		if err := h.client.Quit("danniCRAFT signing off..."); err != nil && !quitDone(err) {
			m.log(LevelWarn, fmt.Sprintf("Error during cleanup: %v", err))
		}
	}

	m.cancel()
}

func (m *manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *manager) Client() bridge.Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	return m.current.client
}

func (m *manager) IsConnected() bool {
	return m.State() == StateConnected
}

func (m *manager) Config() config.ServerConfig {
	return m.cfg.Server
}

func (m *manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// setStateFor changes the state only if h is still the current handle.
func (m *manager) setStateFor(h *handle, s State) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != h {
		return false
	}
	m.state = s
	return true
}

// log writes to the manager's logger and then to the log callback.
func (m *manager) log(level Level, message string) {
	switch level {
	case LevelError:
		m.logger.Error(message)
	case LevelWarn:
		m.logger.Warn(message)
	default:
		m.logger.Info(message)
	}

	if m.callbacks.OnLog != nil {
		m.callbacks.OnLog(level, message)
	}
}

// quitDone reports whether a quit failure only means the handle was already gone.
func quitDone(err error) bool {
	return errors.Is(err, bridge.ErrAlreadyClosed) || errors.Is(err, bridge.ErrNotConnected)
}
