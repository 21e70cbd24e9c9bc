// bridgeprobe connects danniCRAFT through the protocol bridge and prints
// connection logs and chat to the console. Useful for checking a server or
// Realm before wiring the bot into an MCP client.
// Usage: go run ./cmd/bridgeprobe --config configs/dannicraft.example.yaml --inventory
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/domocarroll/dannicraft/internal/config"
	"github.com/domocarroll/dannicraft/internal/connection"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults only when empty)")
	realm := flag.String("realm", "", "Realm name override")
	inventory := flag.Bool("inventory", false, "print the bot inventory once connected")
	say := flag.String("say", "", "chat line to send once connected")
	wait := flag.Duration("wait", 2*time.Minute, "how long to wait for the bot to spawn (covers browser login)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	cfg, err := config.LoadWithDefaults(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *realm != "" {
		cfg.Server.Realm = *realm
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	callbacks := connection.Callbacks{
		OnLog: func(level connection.Level, message string) {
			fmt.Printf("%s [%s] %s\n", time.Now().Format("15:04:05"), level, message)
		},
		OnChatMessage: func(username, message string) {
			fmt.Printf("%s <%s> %s\n", time.Now().Format("15:04:05"), username, message)
		},
	}

	manager := connection.NewManager(connection.NewManagerConfig(cfg), callbacks, logger)
	defer manager.Cleanup()

	if err := manager.Connect(ctx); err != nil {
		logger.Warn("initial connection failed, waiting for reconnect", "error", err)
	}

	if err := waitConnected(ctx, manager, *wait); err != nil {
		logger.Error("bot did not spawn", "error", err, "state", manager.State())
		if ctx.Err() == nil {
			os.Exit(1)
		}
		return
	}

	client := manager.Client()
	if client == nil {
		logger.Error("connected but no bot instance available")
		os.Exit(1)
	}

	if *inventory {
		items, err := client.Inventory(ctx)
		if err != nil {
			logger.Error("failed to read inventory", "error", err)
		} else {
			fmt.Printf("Inventory (%d items):\n", len(items))
			for _, item := range items {
				marker := ""
				if item.Enchanted {
					marker = " (enchanted)"
				}
				fmt.Printf("  slot %2d: %s x%d%s\n", item.Slot, item.Name, item.Count, marker)
			}
		}
	}

	if *say != "" {
		if err := client.Chat(ctx, *say); err != nil {
			logger.Error("failed to send chat", "error", err)
		}
	}

	// Stats printer
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logger.Info("connection status", "state", manager.State())
		}
	}
}

// waitConnected polls until the bot has spawned, asking the manager to
// reconnect whenever it falls back to disconnected.
func waitConnected(ctx context.Context, manager connection.Manager, limit time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		switch manager.State() {
		case connection.StateConnected:
			return nil
		case connection.StateDisconnected:
			if res := manager.CheckConnectionAndReconnect(ctx); res.Connected {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
