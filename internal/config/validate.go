package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrRealmRequiresMicrosoft is returned when a Realm is requested without Microsoft auth.
var ErrRealmRequiresMicrosoft = errors.New("realm connection requires --auth microsoft")

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return err
	}

	if !strings.HasPrefix(c.Bridge.URL, "ws://") && !strings.HasPrefix(c.Bridge.URL, "wss://") {
		return fmt.Errorf("bridge.url must be a ws:// or wss:// URL, got %q", c.Bridge.URL)
	}
	if c.Bridge.BufferSize < 1 {
		return errors.New("bridge.buffer_size must be >= 1")
	}

	if c.Connection.PollInterval <= 0 {
		return errors.New("connection.poll_interval must be > 0")
	}

	if c.Fishing.MaxConsecutiveFailures < 1 {
		return errors.New("fishing.max_consecutive_failures must be >= 1")
	}
	if c.Fishing.MaxErrorPause < c.Fishing.ErrorPause {
		return fmt.Errorf("fishing.max_error_pause (%v) cannot be below error_pause (%v)",
			c.Fishing.MaxErrorPause, c.Fishing.ErrorPause)
	}

	if c.Database.Enabled {
		if err := c.Database.validate("database"); err != nil {
			return err
		}
	}

	if c.Health.Port < 0 || c.Health.Port > 65535 {
		return fmt.Errorf("health.port must be between 0 and 65535, got %d", c.Health.Port)
	}

	return nil
}

// Validate checks the server section on its own. The connection manager
// calls it again at the start of every Connect.
func (s ServerConfig) Validate() error {
	switch s.Auth {
	case AuthMicrosoft, AuthOffline:
	default:
		return fmt.Errorf("server.auth must be %q or %q, got %q", AuthMicrosoft, AuthOffline, s.Auth)
	}
	if s.Realm != "" && s.Auth != AuthMicrosoft {
		return ErrRealmRequiresMicrosoft
	}
	if s.Realm == "" {
		if s.Host == "" {
			return errors.New("server.host is required")
		}
		if s.Port < 1 || s.Port > 65535 {
			return fmt.Errorf("server.port must be between 1 and 65535, got %d", s.Port)
		}
	}
	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	if db.BatchSize < 1 {
		return fmt.Errorf("%s.batch_size must be >= 1", prefix)
	}
	return nil
}
