// dope server — runs the meta-broker, attention engine, session store, and
// the HTTP command surface.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dope-context/dope/pkg/api"
	"github.com/dope-context/dope/pkg/attention"
	"github.com/dope-context/dope/pkg/broker"
	"github.com/dope-context/dope/pkg/commands"
	"github.com/dope-context/dope/pkg/config"
	"github.com/dope-context/dope/pkg/database"
	"github.com/dope-context/dope/pkg/events"
	"github.com/dope-context/dope/pkg/mcp"
	"github.com/dope-context/dope/pkg/registry"
	"github.com/dope-context/dope/pkg/services"
	"github.com/dope-context/dope/pkg/syncindex"
	"github.com/dope-context/dope/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "."),
		"Path to configuration directory")
	flag.Parse()

	// Load .env file from config directory
	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", envPath, "error", err)
	}

	httpPort := getEnv("HTTP_PORT", "8080")
	slog.Info("Starting dope", "version", version.Full(), "http_port", httpPort, "config_dir", *configDir)

	ctx := context.Background()

	// 1. Configuration
	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}
	stats := cfg.Stats()
	slog.Info("Configuration loaded", "backends", stats.Backends, "roles", stats.Roles)

	// 2. Database
	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		slog.Error("Failed to load database config", "error", err)
		os.Exit(1)
	}
	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			slog.Error("Error closing database client", "error", err)
		}
	}()
	slog.Info("Connected to PostgreSQL database")

	// 3. Event bus, persisting publisher, cross-process listener
	bus := events.NewBus(cfg.Events.SubscriberQueueSize)
	defer bus.Close()
	publisher := events.NewPublisher(bus, dbClient.DB(), cfg.Events.ReplayBufferSize)
	listener := events.NewListener(bus, dbConfig, publisher.Origin())
	listener.Start(ctx)
	defer listener.Stop()
	slog.Info("Event infrastructure initialized")

	// 4. Store services
	store := services.NewStore(dbClient, publisher)

	// 5. Backend registry and health probing
	reg := registry.New(cfg.Broker.BreakerFailureThreshold)
	for _, descriptor := range cfg.Backends {
		if err := reg.Register(descriptor); err != nil {
			slog.Error("Failed to register backend", "backend", descriptor.Name, "error", err)
			os.Exit(1)
		}
	}
	prober := registry.NewProber(reg)
	prober.Start(ctx)
	defer prober.Stop()
	slog.Info("Backend registry initialized", "backends", len(cfg.Backends))

	// 6. MCP client, attention engine, broker
	mcpClient := mcp.NewClient(config.NewBackendRegistryConfig(cfg.Backends))
	defer func() {
		if err := mcpClient.Close(); err != nil {
			slog.Error("Error closing MCP sessions", "error", err)
		}
	}()
	engine := attention.NewEngine(cfg.Attention, store.Attention, publisher)
	brk := broker.New(cfg, reg, mcpClient, engine, publisher, store.Progress)

	// 7. Command surface and HTTP server
	snapshots, err := syncindex.NewCoordinator(cfg.Snapshots.RootDir, nil)
	if err != nil {
		slog.Error("Failed to initialize snapshot coordinator", "error", err)
		os.Exit(1)
	}
	dispatcher := commands.NewDispatcher(cfg, store, engine, brk, reg, publisher, snapshots)
	defer dispatcher.Close()

	httpServer := api.NewServer(":"+httpPort, brk, dispatcher, dbClient)
	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil {
			errCh <- err
		}
	}()

	// 8. Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("Received shutdown signal", "signal", sig)
	case err := <-errCh:
		slog.Error("HTTP server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown failed", "error", err)
	}
	slog.Info("Shutdown complete")
}
