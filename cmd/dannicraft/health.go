package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/domocarroll/dannicraft/internal/connection"
	"github.com/domocarroll/dannicraft/internal/fishing"
)

// stateSource is the part of the connection manager the health check reads.
type stateSource interface {
	State() connection.State
}

// pinger is satisfied by *pgxpool.Pool.
type pinger interface {
	Ping(ctx context.Context) error
}

// newHealthHandler creates the HTTP handler for health checks. db may be nil
// when the catch log is disabled.
func newHealthHandler(conn stateSource, sessions *fishing.Sessions, db pinger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string         `json:"status"`
			Connection string         `json:"connection"`
			Fishing    []string       `json:"fishing"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Connection: string(conn.State()),
			Fishing:    sessions.Active(),
			Components: make(map[string]any),
		}
		if health.Fishing == nil {
			health.Fishing = []string{}
		}

		switch conn.State() {
		case connection.StateDisconnected:
			health.Status = "unhealthy"
		case connection.StateConnecting:
			health.Status = "degraded"
		}

		if db != nil {
			if err := db.Ping(ctx); err != nil {
				if health.Status == "healthy" {
					health.Status = "degraded"
				}
				health.Components["catch_log"] = map[string]string{
					"status": "disconnected",
					"error":  err.Error(),
				}
			} else {
				health.Components["catch_log"] = "connected"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	return mux
}
