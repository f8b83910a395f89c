package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/terra-clan/maturity-engine/internal/api"
	"github.com/terra-clan/maturity-engine/internal/assessment"
	"github.com/terra-clan/maturity-engine/internal/cleanup"
	"github.com/terra-clan/maturity-engine/internal/config"
	"github.com/terra-clan/maturity-engine/internal/events"
	"github.com/terra-clan/maturity-engine/internal/framework"
	"github.com/terra-clan/maturity-engine/internal/ingest"
	"github.com/terra-clan/maturity-engine/internal/kvstore"
	"github.com/terra-clan/maturity-engine/internal/scoring"
	"github.com/terra-clan/maturity-engine/internal/services"
	"github.com/terra-clan/maturity-engine/internal/storage"
	"github.com/terra-clan/maturity-engine/internal/widget"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.Log.Level),
	}))
	slog.SetDefault(logger)

	slog.Info("starting maturity-engine",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"kv_backend", cfg.KV.Backend,
	)

	// Create context for initialization
	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()

	// Run database migrations
	slog.Info("running database migrations", "dir", cfg.Database.MigrationsDir)
	if err := storage.MigrateFromDSN(initCtx, cfg.Database.DSN, cfg.Database.MigrationsDir); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Initialize database repository
	repo, err := storage.NewPostgresRepository(initCtx, storage.PostgresConfig{
		DSN:          cfg.Database.DSN,
		MaxOpenConns: int32(cfg.Database.MaxOpenConns),
		MaxIdleConns: int32(cfg.Database.MaxIdleConns),
	})
	if err != nil {
		slog.Error("failed to create database repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("database connected successfully")

	// Host key/value storage for the embedded widget
	kv, err := openKVStore(initCtx, cfg)
	if err != nil {
		slog.Error("failed to open key/value store", "backend", cfg.KV.Backend, "error", err)
		os.Exit(1)
	}
	defer kv.Close()

	// Dependency health checks
	health := services.NewRegistry()

	postgresChecker, err := services.NewPostgresChecker(cfg.Database.DSN)
	if err != nil {
		slog.Error("failed to create postgres checker", "error", err)
		os.Exit(1)
	}
	defer postgresChecker.Close()
	health.Register("postgres", postgresChecker)
	health.Register("kv", services.NewPingFunc("kv", kv.Ping))
	if cfg.KV.Backend == config.KVBackendRedis {
		redisChecker := services.NewRedisChecker(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		defer redisChecker.Close()
		health.Register("redis", redisChecker)
	}

	// Load frameworks
	loader := framework.NewLoader()
	if err := loader.LoadFromDir(cfg.Frameworks.Dir); err != nil {
		slog.Warn("failed to load frameworks from dir", "dir", cfg.Frameworks.Dir, "error", err)
	}
	catalog := framework.NewCatalog(loader, repo)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Events go through Postgres so every instance's websocket clients see them
	hub := events.NewHub()
	var publisher events.Publisher = hub
	if cfg.Events.Enabled {
		listener := events.NewListener(cfg.Database.DSN, cfg.Events.Channel, hub)
		if err := listener.Start(ctx); err != nil {
			slog.Error("failed to start event listener", "error", err)
			os.Exit(1)
		}
		publisher = events.NewNotifyPublisher(repo.Pool(), cfg.Events.Channel)
	}

	engine := scoring.NewEngine()
	assessments := assessment.NewService(repo, catalog, engine, publisher)
	ingestManager := ingest.NewManager(kv, publisher, cfg.Ingest.PreviewTTL)
	widgetService := widget.NewService(kv, ingestManager, engine)

	// Start cleanup worker
	cleaner := cleanup.NewCleaner(ingestManager, cfg.Cleanup.Interval)
	cleaner.Start(ctx)

	// Setup HTTP server
	server := api.NewServer(cfg.Server, api.Dependencies{
		Assessments:   assessments,
		Catalog:       catalog,
		Organizations: repo,
		Clients:       repo,
		Ingest:        ingestManager,
		Widget:        widgetService,
		Hub:           hub,
		Health:        health,
	})
	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down gracefully...")

	// Cancel context to stop background workers
	cancel()

	// Hijacked websocket connections are not closed by Shutdown
	hub.Close()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("maturity-engine stopped")
}

func openKVStore(ctx context.Context, cfg *config.Config) (kvstore.Store, error) {
	if cfg.KV.Backend == config.KVBackendSQLite {
		return kvstore.NewSQLiteStore(cfg.KV.SQLitePath)
	}
	return kvstore.NewRedisStore(ctx, kvstore.RedisConfig{
		Address:  cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Prefix:   cfg.KV.Prefix,
	})
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
