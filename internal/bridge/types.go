package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Errors
var (
	ErrNotConnected  = errors.New("not connected")
	ErrAlreadyClosed = errors.New("already closed")
	ErrTimeout       = errors.New("command timeout")
	ErrNoRealmPicker = errors.New("bridge requested a realm but no picker is installed")
)

// Error codes carried by error events.
const (
	CodeConnRefused   = "ECONNREFUSED"
	CodeTimedOut      = "ETIMEDOUT"
	CodeRealmNotFound = "REALM_NOT_FOUND"
	CodeUnknown       = "Unknown error"
)

// EventType names a lifecycle event.
type EventType string

const (
	EventLogin  EventType = "login"
	EventSpawn  EventType = "spawn"
	EventChat   EventType = "chat"
	EventKicked EventType = "kicked"
	EventError  EventType = "error"
	EventEnd    EventType = "end"
	EventRealms EventType = "realms"
)

// Event is a lifecycle event emitted by a Client.
type Event struct {
	Type       EventType
	Username   string  // login, spawn, chat
	Version    string  // spawn
	Message    string  // chat, error
	Reason     string  // kicked, end
	Code       string  // error
	Realms     []Realm // realms
	ReceivedAt time.Time
}

// Realm is one entry of the account's Realm list.
type Realm struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Owner string `json:"owner,omitempty"`
	State string `json:"state,omitempty"`
}

// RealmPicker chooses the Realm to join from the account's list.
type RealmPicker func(realms []Realm) (Realm, error)

// Item is an inventory slot.
type Item struct {
	Slot      int    `json:"slot"`
	Name      string `json:"name"`
	Count     int    `json:"count"`
	Enchanted bool   `json:"enchanted,omitempty"`
}

// Error is a failure reported with a code, either by the bridge or while dialing it.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CommandError is returned when the bridge answers a command with success=false.
type CommandError struct {
	Action  string
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Action, e.Message)
}

// ErrorCode extracts the code of an *Error, or CodeUnknown.
func ErrorCode(err error) string {
	var be *Error
	if errors.As(err, &be) && be.Code != "" {
		return be.Code
	}
	return CodeUnknown
}

// Command is a frame sent to the bridge.
type Command struct {
	ID     string `json:"id"`
	Type   string `json:"type"` // always "command"
	Action string `json:"action"`
	Params any    `json:"params,omitempty"`
}

// inbound is any frame received from the bridge.
type inbound struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"` // "response", "event", "pong"
	Event   string          `json:"event,omitempty"`
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Response is the bridge's answer to a Command.
type Response struct {
	ID      string
	Success bool
	Message string
	Data    json.RawMessage
}

// eventData is the union of event payload fields.
type eventData struct {
	Username string          `json:"username"`
	Version  string          `json:"version"`
	Message  string          `json:"message"`
	Code     string          `json:"code"`
	Reason   json.RawMessage `json:"reason"`
	Realms   []Realm         `json:"realms"`
}

// CreateBotParams are the parameters of the create_bot command.
type CreateBotParams struct {
	Host     string `json:"host,omitempty"`
	Port     int    `json:"port,omitempty"`
	Username string `json:"username"`
	Auth     string `json:"auth"`
	Version  string `json:"version,omitempty"`
	Realms   bool   `json:"realms,omitempty"`
}

// PickRealmParams answer a realms event.
type PickRealmParams struct {
	ID    int64  `json:"id,omitempty"`
	Error string `json:"error,omitempty"`
}

// Options configures a Client.
type Options struct {
	URL string // bridge WebSocket URL

	Bot       CreateBotParams
	PickRealm RealmPicker // required when Bot.Realms is set

	HandshakeTimeout time.Duration
	CommandTimeout   time.Duration // default timeout for short commands
	WriteTimeout     time.Duration
	PingTimeout      time.Duration // max time without pong before the bridge is considered stale
	BufferSize       int           // event channel buffer size
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		HandshakeTimeout: 10 * time.Second,
		CommandTimeout:   15 * time.Second,
		WriteTimeout:     5 * time.Second,
		PingTimeout:      60 * time.Second,
		BufferSize:       256,
	}
}

// formatReason renders a kick/end reason, which the bridge sends either as a
// plain string or as a chat component object.
func formatReason(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
