package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultHost                   = "localhost"
	DefaultPort                   = 25565
	DefaultUsername               = "danniCRAFT"
	DefaultAuth                   = AuthOffline
	DefaultBridgeURL              = "ws://127.0.0.1:3001/bot"
	DefaultHandshakeTimeout       = 10 * time.Second
	DefaultCommandTimeout         = 15 * time.Second
	DefaultWriteTimeout           = 5 * time.Second
	DefaultPingTimeout            = 60 * time.Second
	DefaultBridgeBufferSize       = 256
	DefaultReconnectDelay         = 2 * time.Second
	DefaultEnsureMargin           = 5 * time.Second
	DefaultPollInterval           = 100 * time.Millisecond
	DefaultCastDelay              = 500 * time.Millisecond
	DefaultCastTimeout            = 2 * time.Minute
	DefaultErrorPause             = 1 * time.Second
	DefaultMaxErrorPause          = 30 * time.Second
	DefaultMaxConsecutiveFailures = 10
	DefaultDBPort                 = 5432
	DefaultDBSSLMode              = "prefer"
	DefaultMaxConns               = 4
	DefaultMinConns               = 1
	DefaultBatchSize              = 100
	DefaultFlushInterval          = 5 * time.Second
	DefaultHealthPort             = 8080
)

// ApplyDefaults fills zero-valued fields with their defaults.
func (c *Config) ApplyDefaults() {
	// Server defaults
	if c.Server.Host == "" {
		c.Server.Host = DefaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.Username == "" {
		c.Server.Username = DefaultUsername
	}
	if c.Server.Auth == "" {
		c.Server.Auth = DefaultAuth
	}

	// Bridge defaults
	if c.Bridge.URL == "" {
		c.Bridge.URL = DefaultBridgeURL
	}
	if c.Bridge.HandshakeTimeout == 0 {
		c.Bridge.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Bridge.CommandTimeout == 0 {
		c.Bridge.CommandTimeout = DefaultCommandTimeout
	}
	if c.Bridge.WriteTimeout == 0 {
		c.Bridge.WriteTimeout = DefaultWriteTimeout
	}
	if c.Bridge.PingTimeout == 0 {
		c.Bridge.PingTimeout = DefaultPingTimeout
	}
	if c.Bridge.BufferSize == 0 {
		c.Bridge.BufferSize = DefaultBridgeBufferSize
	}

	// Connection defaults
	if c.Connection.ReconnectDelay == 0 {
		c.Connection.ReconnectDelay = DefaultReconnectDelay
	}
	if c.Connection.EnsureMargin == 0 {
		c.Connection.EnsureMargin = DefaultEnsureMargin
	}
	if c.Connection.PollInterval == 0 {
		c.Connection.PollInterval = DefaultPollInterval
	}

	// Fishing defaults
	if c.Fishing.CastDelay == 0 {
		c.Fishing.CastDelay = DefaultCastDelay
	}
	if c.Fishing.CastTimeout == 0 {
		c.Fishing.CastTimeout = DefaultCastTimeout
	}
	if c.Fishing.ErrorPause == 0 {
		c.Fishing.ErrorPause = DefaultErrorPause
	}
	if c.Fishing.MaxErrorPause == 0 {
		c.Fishing.MaxErrorPause = DefaultMaxErrorPause
	}
	if c.Fishing.MaxConsecutiveFailures == 0 {
		c.Fishing.MaxConsecutiveFailures = DefaultMaxConsecutiveFailures
	}

	// Database defaults
	applyDBDefaults(&c.Database)

	// Health defaults
	if c.Health.Port == 0 {
		c.Health.Port = DefaultHealthPort
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
	if db.BatchSize == 0 {
		db.BatchSize = DefaultBatchSize
	}
	if db.FlushInterval == 0 {
		db.FlushInterval = DefaultFlushInterval
	}
}
