package connection

import (
	"errors"
	"log/slog"
	"time"

	"github.com/domocarroll/dannicraft/internal/bridge"
	"github.com/domocarroll/dannicraft/internal/config"
	"github.com/domocarroll/dannicraft/internal/version"
)

// State is the connection status reported by the manager.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

// Level is the severity passed to the log callback.
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Greeting is said once per bot instance after it spawns.
const Greeting = "I sense something intriguing about this world... danniCRAFT, ready to assist."

// Errors
var (
	ErrRealmNotFound = errors.New("realm not found")
	ErrClosed        = errors.New("connection manager closed")
)

// Callbacks receive observable events from the manager. Both are invoked
// synchronously and outside the manager's lock.
type Callbacks struct {
	OnLog         func(level Level, message string)
	OnChatMessage func(username, message string)
}

// Result is the outcome of CheckConnectionAndReconnect.
type Result struct {
	Connected bool
	Message   string // set when Connected is false
}

// DialFunc creates a new, unconnected bridge client.
type DialFunc func(opts bridge.Options, logger *slog.Logger) bridge.Client

// ManagerConfig configures the connection manager.
type ManagerConfig struct {
	Server config.ServerConfig
	Bridge config.BridgeConfig

	ReconnectDelay time.Duration
	EnsureMargin   time.Duration // added to ReconnectDelay when waiting for a reconnect
	PollInterval   time.Duration

	Dial DialFunc // defaults to bridge.NewClient
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Server: config.ServerConfig{
			Host:     config.DefaultHost,
			Port:     config.DefaultPort,
			Username: config.DefaultUsername,
			Auth:     config.DefaultAuth,
		},
		Bridge: config.BridgeConfig{
			URL: config.DefaultBridgeURL,
		},
		ReconnectDelay: config.DefaultReconnectDelay,
		EnsureMargin:   config.DefaultEnsureMargin,
		PollInterval:   config.DefaultPollInterval,
	}
}

// NewManagerConfig builds a ManagerConfig from the loaded configuration.
func NewManagerConfig(cfg *config.Config) ManagerConfig {
	return ManagerConfig{
		Server:         cfg.Server,
		Bridge:         cfg.Bridge,
		ReconnectDelay: cfg.Connection.ReconnectDelay,
		EnsureMargin:   cfg.Connection.EnsureMargin,
		PollInterval:   cfg.Connection.PollInterval,
	}
}

// unavailableMessage is returned when no connection could be established in time.
var unavailableMessage = "Cannot connect to Minecraft server.\n\n" +
	"Please ensure:\n" +
	"1. Minecraft server/Realm is accessible\n" +
	"2. Server version is compatible (tested with: " + version.SupportedMinecraftVersion + ")\n" +
	"3. For Realms: Use --auth microsoft --realm \"RealmName\"\n" +
	"4. Complete browser login if prompted\n\n" +
	"For setup instructions, visit: https://github.com/domocarroll/danniCRAFT"

const connectingMessage = "danniCRAFT is connecting to the Minecraft server. Please wait a moment and try again."
