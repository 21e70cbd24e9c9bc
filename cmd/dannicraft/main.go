// dannicraft runs the danniCRAFT Minecraft bot as an MCP server on stdio.
// Usage: dannicraft --config configs/dannicraft.example.yaml --realm "Survival" --auth microsoft
//
// The bot itself is driven through a protocol bridge reachable over WebSocket
// (see --bridge-url). Logs go to stderr; stdout carries the MCP transport.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/domocarroll/dannicraft/internal/catchlog"
	"github.com/domocarroll/dannicraft/internal/config"
	"github.com/domocarroll/dannicraft/internal/connection"
	"github.com/domocarroll/dannicraft/internal/database"
	"github.com/domocarroll/dannicraft/internal/fishing"
	"github.com/domocarroll/dannicraft/internal/tools"
	"github.com/domocarroll/dannicraft/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults only when empty)")
	host := flag.String("host", config.DefaultHost, "Minecraft server host")
	port := flag.Int("port", config.DefaultPort, "Minecraft server port")
	username := flag.String("username", config.DefaultUsername, "bot username (ignored for microsoft auth)")
	authMode := flag.String("auth", config.DefaultAuth, "auth mode: microsoft or offline")
	mcVersion := flag.String("version", "", "Minecraft version (empty = auto-detect)")
	realm := flag.String("realm", "", "Realm name to join (partial, case-insensitive; requires --auth microsoft)")
	bridgeURL := flag.String("bridge-url", config.DefaultBridgeURL, "protocol bridge WebSocket URL")
	debug := flag.Bool("debug", false, "enable debug logging")
	showVersion := flag.Bool("print-version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("dannicraft " + version.String())
		return
	}

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	logger.Info("starting dannicraft",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	cfg, err := config.LoadWithDefaults(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Explicitly set flags win over the file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "host":
			cfg.Server.Host = *host
		case "port":
			cfg.Server.Port = *port
		case "username":
			cfg.Server.Username = *username
		case "auth":
			cfg.Server.Auth = *authMode
		case "version":
			cfg.Server.Version = *mcVersion
		case "realm":
			cfg.Server.Realm = *realm
		case "bridge-url":
			cfg.Bridge.URL = *bridgeURL
		}
	})

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"server", cfg.Server.ServerLabel(),
		"auth", cfg.Server.Auth,
		"bridge_url", cfg.Bridge.URL,
		"catch_log", cfg.Database.Enabled,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Optional catch log
	fishingOpts := fishing.NewOptions(cfg.Fishing)
	fishingOpts.Logger = logger

	var (
		pool   *pgxpool.Pool
		writer *catchlog.Writer
	)
	if cfg.Database.Enabled {
		logger.Info("connecting to database",
			"host", cfg.Database.Host,
			"port", cfg.Database.Port,
			"database", cfg.Database.Name,
		)

		pool, err = database.Connect(ctx, cfg.Database)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		if err := database.Migrate(ctx, pool); err != nil {
			logger.Error("failed to migrate catch log schema", "error", err)
			os.Exit(1)
		}

		writer = catchlog.NewWriter(catchlog.NewWriterConfig(cfg.Database), pool, logger)
		if err := writer.Start(ctx); err != nil {
			logger.Error("failed to start catch log writer", "error", err)
			os.Exit(1)
		}
		fishingOpts.Recorder = writer

		logger.Info("catch log enabled")
	}

	srv := tools.NewMCPServer()
	notifier := tools.NewNotifier(srv)

	manager := connection.NewManager(connection.NewManagerConfig(cfg), notifier.Callbacks(), logger)
	sessions := fishing.NewSessions(fishingOpts)
	tools.Register(srv, manager, sessions)

	// A failed first connect is not fatal; tools reconnect on demand.
	if err := manager.Connect(ctx); err != nil {
		logger.Warn("initial connection failed", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// Stdin closing means the MCP client went away.
		defer cancel()
		err := tools.Serve(gctx, srv, os.Stdin, os.Stdout, logger)
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("mcp server: %w", err)
		}
		return nil
	})

	if !cfg.Health.Disabled {
		var db pinger
		if pool != nil {
			db = pool
		}

		healthServer := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Health.Port),
			Handler:           newHealthHandler(manager, sessions, db),
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			logger.Info("starting health server", "port", cfg.Health.Port)
			if err := healthServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("health server: %w", err)
			}
			return nil
		})

		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			return healthServer.Shutdown(shutdownCtx)
		})
	}

	logger.Info("dannicraft running", "server", cfg.Server.ServerLabel())

	if err := g.Wait(); err != nil {
		logger.Error("shutting down after error", "error", err)
	}

	logger.Info("shutting down...")

	// Stop fishing loops before the bot goes away so their sessions are recorded.
	sessions.Close()

	if writer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := writer.Stop(shutdownCtx); err != nil {
			logger.Warn("catch log writer did not stop cleanly", "error", err)
		}
		shutdownCancel()
		stats := writer.Stats()
		logger.Info("catch log flushed",
			"inserts", stats.Inserts,
			"sessions", stats.Sessions,
			"dropped", stats.Dropped,
		)
	}

	manager.Cleanup()

	logger.Info("dannicraft stopped")
}
