package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/domocarroll/dannicraft/internal/config"
)

// Schema creates the catch log tables if they do not exist.
const Schema = `
CREATE TABLE IF NOT EXISTS fishing_sessions (
	session_id  UUID PRIMARY KEY,
	bot         TEXT NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	ended_at    TIMESTAMPTZ NOT NULL,
	catches     INTEGER NOT NULL,
	treasures   INTEGER NOT NULL,
	stop_reason TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS fishing_catches (
	session_id  UUID NOT NULL,
	seq         INTEGER NOT NULL,
	bot         TEXT NOT NULL,
	item        TEXT NOT NULL,
	kind        TEXT NOT NULL,
	caught_at   TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (session_id, seq)
);
`

// Connect creates a connection pool and verifies it with a ping.
func Connect(ctx context.Context, cfg config.DBConfig) (*pgxpool.Pool, error) {
	connStr := BuildConnString(cfg)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// Migrate applies Schema.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
