package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Client is a single bot handle on the protocol bridge.
type Client interface {
	// Connect dials the bridge and asks it to create the bot.
	Connect(ctx context.Context) error

	// Events returns the lifecycle event channel. It is closed once the
	// bridge connection is gone.
	Events() <-chan Event

	// Detach stops event delivery. Events raised afterwards are dropped.
	Detach()

	// Quit asks the bot to leave the server and closes the bridge connection.
	Quit(reason string) error

	// IsConnected reports whether the bridge connection is open.
	IsConnected() bool

	// Username is the in-game name, as reported by the server once logged in.
	Username() string

	// Version is the protocol version advertised by the server at spawn.
	Version() string

	Chat(ctx context.Context, message string) error
	Equip(ctx context.Context, item Item, destination string) error
	Fish(ctx context.Context) error
	Inventory(ctx context.Context) ([]Item, error)
	ConfigureMovements(ctx context.Context, version string) error
}

// client implements the Client interface.
type client struct {
	opts   Options
	logger *slog.Logger

	conn *websocket.Conn

	events   chan Event
	readDone chan struct{}

	detached   chan struct{}
	detachOnce sync.Once

	// Write serialization
	writeMu sync.Mutex

	// Command/response correlation
	pendingMu sync.Mutex
	pending   map[string]chan Response

	// State
	mu         sync.RWMutex
	connected  bool
	closed     bool
	quitReason string
	stale      bool
	lastPongAt time.Time
	username   string
	version    string
}

// NewClient creates a new bridge client. Zero-valued timeouts fall back to DefaultOptions.
func NewClient(opts Options, logger *slog.Logger) Client {
	if logger == nil {
		logger = slog.Default()
	}

	def := DefaultOptions()
	if opts.HandshakeTimeout == 0 {
		opts.HandshakeTimeout = def.HandshakeTimeout
	}
	if opts.CommandTimeout == 0 {
		opts.CommandTimeout = def.CommandTimeout
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = def.WriteTimeout
	}
	if opts.PingTimeout == 0 {
		opts.PingTimeout = def.PingTimeout
	}
	if opts.BufferSize < 1 {
		opts.BufferSize = def.BufferSize
	}

	return &client{
		opts:     opts,
		logger:   logger,
		events:   make(chan Event, opts.BufferSize),
		readDone: make(chan struct{}),
		detached: make(chan struct{}),
		pending:  make(map[string]chan Response),
		username: opts.Bot.Username,
		version:  opts.Bot.Version,
	}
}

// Connect dials the bridge and sends create_bot.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrAlreadyClosed
	}
	if c.conn != nil {
		c.mu.Unlock()
		return errors.New("client already connected")
	}
	c.mu.Unlock()

	if c.opts.Bot.Realms && c.opts.PickRealm == nil {
		return ErrNoRealmPicker
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: c.opts.HandshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, c.opts.URL, nil)
	if err != nil {
		return classifyDialError(err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.lastPongAt = time.Now()
	c.mu.Unlock()

	conn.SetPongHandler(func(string) error {
		c.touch()
		return nil
	})

	go c.readLoop()
	go c.heartbeatLoop()

	c.logger.Debug("bridge connected", "url", c.opts.URL)

	if _, err := c.do(ctx, "create_bot", c.opts.Bot, c.opts.CommandTimeout); err != nil {
		c.closeConn("create_bot failed")
		return fmt.Errorf("create bot: %w", err)
	}

	return nil
}

// Events returns the lifecycle event channel.
func (c *client) Events() <-chan Event {
	return c.events
}

// Detach stops event delivery.
func (c *client) Detach() {
	c.detachOnce.Do(func() { close(c.detached) })
}

// Quit sends quit and closes the bridge connection.
func (c *client) Quit(reason string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrAlreadyClosed
	}
	c.closed = true
	c.quitReason = reason
	conn := c.conn
	connected := c.connected
	c.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}

	var writeErr error
	if connected {
		writeErr = c.writeFrame(Command{
			ID:     uuid.NewString(),
			Type:   "command",
			Action: "quit",
			Params: map[string]string{"reason": reason},
		})
	}

	c.writeMu.Lock()
	conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason),
		time.Now().Add(time.Second),
	)
	c.writeMu.Unlock()

	return errors.Join(writeErr, conn.Close())
}

// IsConnected returns the current connection state.
func (c *client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected && !c.closed
}

func (c *client) Username() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.username
}

func (c *client) Version() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// Chat sends a chat line as the bot.
func (c *client) Chat(ctx context.Context, message string) error {
	_, err := c.do(ctx, "chat", map[string]string{"message": message}, c.opts.CommandTimeout)
	return err
}

// Equip moves an inventory item to destination ("hand", "off-hand", ...).
func (c *client) Equip(ctx context.Context, item Item, destination string) error {
	_, err := c.do(ctx, "equip", map[string]any{
		"item":        item.Name,
		"slot":        item.Slot,
		"destination": destination,
	}, c.opts.CommandTimeout)
	return err
}

// Fish casts the equipped rod and blocks until something is caught. It has no
// default timeout; cancelling ctx aborts the cast on the bridge.
func (c *client) Fish(ctx context.Context) error {
	_, err := c.do(ctx, "fish", nil, 0)
	return err
}

// Inventory returns the bot's inventory in slot order.
func (c *client) Inventory(ctx context.Context) ([]Item, error) {
	resp, err := c.do(ctx, "inventory", nil, c.opts.CommandTimeout)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Items []Item `json:"items"`
	}
	if err := json.Unmarshal(resp.Data, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal inventory: %w", err)
	}
	return payload.Items, nil
}

// ConfigureMovements sets up pathfinding for the given protocol version.
func (c *client) ConfigureMovements(ctx context.Context, version string) error {
	_, err := c.do(ctx, "set_movements", map[string]string{"version": version}, c.opts.CommandTimeout)
	return err
}

// do sends a command and waits for its response. A zero timeout waits on ctx only.
func (c *client) do(ctx context.Context, action string, params any, timeout time.Duration) (Response, error) {
	if !c.IsConnected() {
		return Response{}, ErrNotConnected
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	id := uuid.NewString()
	ch := make(chan Response, 1)

	c.pendingMu.Lock()
	if c.pending == nil {
		c.pendingMu.Unlock()
		return Response{}, ErrNotConnected
	}
	c.pending[id] = ch
	c.pendingMu.Unlock()

	if err := c.writeFrame(Command{ID: id, Type: "command", Action: action, Params: params}); err != nil {
		c.forget(id)
		return Response{}, fmt.Errorf("send %s: %w", action, err)
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return Response{}, fmt.Errorf("%s: %w", action, ErrNotConnected)
		}
		if !resp.Success {
			return resp, &CommandError{Action: action, Message: resp.Message}
		}
		return resp, nil

	case <-ctx.Done():
		c.forget(id)
		// Best effort: the bridge may already have finished.
		c.writeFrame(Command{
			ID:     uuid.NewString(),
			Type:   "command",
			Action: "cancel",
			Params: map[string]string{"id": id},
		})
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Response{}, fmt.Errorf("%s: %w", action, ErrTimeout)
		}
		return Response{}, fmt.Errorf("%s interrupted: %w", action, ctx.Err())
	}
}

func (c *client) forget(id string) {
	c.pendingMu.Lock()
	if c.pending != nil {
		delete(c.pending, id)
	}
	c.pendingMu.Unlock()
}

// writeFrame serializes v onto the socket.
func (c *client) writeFrame(v any) error {
	c.mu.RLock()
	conn := c.conn
	connected := c.connected
	c.mu.RUnlock()
	if conn == nil || !connected {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	return conn.WriteJSON(v)
}

// readLoop dispatches bridge frames until the socket fails or is closed. It is
// the only sender on the events channel.
func (c *client) readLoop() {
	defer c.finish()

	for {
		_, data, err := c.conn.ReadMessage()
		receivedAt := time.Now()

		if err != nil {
			c.mu.RLock()
			reason := c.quitReason
			stale := c.stale
			c.mu.RUnlock()
			if stale {
				c.emit(Event{
					Type:       EventError,
					Code:       CodeTimedOut,
					Message:    "bridge heartbeat timed out",
					ReceivedAt: receivedAt,
				})
			}
			if reason == "" {
				reason = err.Error()
			}
			c.emit(Event{Type: EventEnd, Reason: reason, ReceivedAt: receivedAt})
			return
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("malformed bridge frame", "error", err)
			continue
		}

		switch msg.Type {
		case "response":
			c.resolve(msg)
		case "event":
			c.handleEvent(msg, receivedAt)
		case "pong":
			c.touch()
		default:
			c.logger.Debug("ignoring bridge frame", "type", msg.Type)
		}
	}
}

// finish runs once the read loop exits.
func (c *client) finish() {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	c.pendingMu.Lock()
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.pending = nil
	c.pendingMu.Unlock()

	close(c.readDone)
	close(c.events)
}

func (c *client) resolve(msg inbound) {
	if msg.ID == "" {
		return
	}

	c.pendingMu.Lock()
	ch, ok := c.pending[msg.ID]
	if ok {
		delete(c.pending, msg.ID)
	}
	c.pendingMu.Unlock()

	if ok {
		ch <- Response{ID: msg.ID, Success: msg.Success, Message: msg.Message, Data: msg.Data}
	}
}

func (c *client) handleEvent(msg inbound, receivedAt time.Time) {
	var data eventData
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.logger.Warn("malformed event payload", "event", msg.Event, "error", err)
			return
		}
	}

	ev := Event{
		Type:       EventType(msg.Event),
		Username:   data.Username,
		Version:    data.Version,
		Message:    data.Message,
		Reason:     formatReason(data.Reason),
		Code:       data.Code,
		Realms:     data.Realms,
		ReceivedAt: receivedAt,
	}

	switch ev.Type {
	case EventLogin, EventSpawn:
		c.mu.Lock()
		if ev.Username != "" {
			c.username = ev.Username
		}
		if ev.Version != "" {
			c.version = ev.Version
		}
		c.mu.Unlock()
	case EventError:
		if ev.Code == "" {
			ev.Code = CodeUnknown
		}
	}

	c.emit(ev)

	if ev.Type == EventRealms {
		c.answerRealms(ev.Realms, receivedAt)
	}
}

// answerRealms runs the picker and replies with pick_realm. A picker failure
// is surfaced as a REALM_NOT_FOUND error event.
func (c *client) answerRealms(realms []Realm, receivedAt time.Time) {
	picker := c.opts.PickRealm
	if picker == nil {
		picker = func([]Realm) (Realm, error) { return Realm{}, ErrNoRealmPicker }
	}

	params := PickRealmParams{}
	realm, err := picker(realms)
	if err != nil {
		params.Error = err.Error()
	} else {
		params.ID = realm.ID
	}

	if werr := c.writeFrame(Command{ID: uuid.NewString(), Type: "command", Action: "pick_realm", Params: params}); werr != nil {
		c.logger.Warn("failed to answer realm selection", "error", werr)
	}

	if err != nil {
		c.emit(Event{Type: EventError, Code: CodeRealmNotFound, Message: err.Error(), ReceivedAt: receivedAt})
	}
}

// emit delivers ev unless the client has been detached.
func (c *client) emit(ev Event) {
	select {
	case <-c.detached:
		return
	default:
	}

	select {
	case c.events <- ev:
	case <-c.detached:
	}
}

func (c *client) touch() {
	c.mu.Lock()
	c.lastPongAt = time.Now()
	c.mu.Unlock()
}

// heartbeatLoop pings the bridge and tears the socket down when it goes quiet.
func (c *client) heartbeatLoop() {
	interval := c.opts.PingTimeout / 3
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.readDone:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, []byte("keepalive"), time.Now().Add(c.opts.WriteTimeout))
			c.writeMu.Unlock()
			if err != nil {
				c.logger.Debug("failed to send ping", "error", err)
			}

			c.mu.RLock()
			lastPong := c.lastPongAt
			c.mu.RUnlock()

			if time.Since(lastPong) > c.opts.PingTimeout {
				c.logger.Warn("bridge heartbeat timed out",
					"last_pong", lastPong,
					"timeout", c.opts.PingTimeout,
				)
				c.mu.Lock()
				c.stale = true
				c.mu.Unlock()
				c.closeConn("heartbeat timeout")
				return
			}
		}
	}
}

// closeConn drops the socket without sending quit; the read loop then emits end.
func (c *client) closeConn(reason string) {
	c.mu.Lock()
	if c.quitReason == "" {
		c.quitReason = reason
	}
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

// classifyDialError maps dial failures onto the codes the connection manager
// treats as transient.
func classifyDialError(err error) error {
	code := CodeUnknown

	var netErr net.Error
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		code = CodeConnRefused
	case errors.Is(err, context.DeadlineExceeded):
		code = CodeTimedOut
	case errors.As(err, &netErr) && netErr.Timeout():
		code = CodeTimedOut
	}

	return &Error{Code: code, Message: err.Error(), Err: err}
}
