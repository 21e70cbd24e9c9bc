package config

import "time"

// Auth modes accepted by the game server.
const (
	AuthMicrosoft = "microsoft"
	AuthOffline   = "offline"
)

// Config is the root configuration for a bot instance.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Bridge     BridgeConfig     `yaml:"bridge"`
	Connection ConnectionConfig `yaml:"connection"`
	Fishing    FishingConfig    `yaml:"fishing"`
	Database   DBConfig         `yaml:"database"`
	Health     HealthConfig     `yaml:"health"`
}

// ServerConfig describes the Minecraft server or Realm to join.
type ServerConfig struct {
	Host     string `yaml:"host"`     // ignored when Realm is set
	Port     int    `yaml:"port"`     // ignored when Realm is set
	Username string `yaml:"username"` // ignored for Microsoft auth
	Auth     string `yaml:"auth"`     // "microsoft" or "offline"
	Version  string `yaml:"version"`  // empty = auto-detect
	Realm    string `yaml:"realm"`    // partial, case-insensitive Realm name
}

// BridgeConfig holds settings for the protocol bridge WebSocket.
type BridgeConfig struct {
	URL              string        `yaml:"url"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	CommandTimeout   time.Duration `yaml:"command_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	PingTimeout      time.Duration `yaml:"ping_timeout"`
	BufferSize       int           `yaml:"buffer_size"`
}

// ConnectionConfig holds connection manager settings.
type ConnectionConfig struct {
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	EnsureMargin   time.Duration `yaml:"ensure_margin"` // added to ReconnectDelay when waiting for a reconnect
	PollInterval   time.Duration `yaml:"poll_interval"`
}

// FishingConfig holds fishing loop settings.
type FishingConfig struct {
	CastDelay              time.Duration `yaml:"cast_delay"`
	CastTimeout            time.Duration `yaml:"cast_timeout"`
	ErrorPause             time.Duration `yaml:"error_pause"`
	MaxErrorPause          time.Duration `yaml:"max_error_pause"`
	MaxConsecutiveFailures int           `yaml:"max_consecutive_failures"`
}

// DBConfig holds the optional PostgreSQL catch log connection.
type DBConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Host          string        `yaml:"host"`
	Port          int           `yaml:"port"`
	Name          string        `yaml:"name"`
	User          string        `yaml:"user"`
	Password      string        `yaml:"password"`
	SSLMode       string        `yaml:"ssl_mode"`
	MaxConns      int           `yaml:"max_conns"`
	MinConns      int           `yaml:"min_conns"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// HealthConfig holds the health endpoint settings.
type HealthConfig struct {
	Disabled bool `yaml:"disabled"`
	Port     int  `yaml:"port"`
}

// ServerLabel returns the Realm name if set, otherwise the host.
func (s ServerConfig) ServerLabel() string {
	if s.Realm != "" {
		return s.Realm
	}
	return s.Host
}
