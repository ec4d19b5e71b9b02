package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mcoot/boulder/internal/api"
	"github.com/mcoot/boulder/internal/config"
	"github.com/mcoot/boulder/internal/factory"
	"github.com/mcoot/boulder/internal/services/ratelimit"
	redisstorage "github.com/mcoot/boulder/internal/storage/redis"
	"github.com/mcoot/boulder/internal/storage/sqldb"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Set up logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	// Handle graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Create application factory
	app, err := factory.New(ctx, factoryConfig(cfg, logger))
	if err != nil {
		logger.Error("failed to create application", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("close error", slog.String("error", err.Error()))
		}
	}()

	// Create server
	serverConfig := api.DefaultServerConfig()
	serverConfig.Port = cfg.HTTPPort
	server := api.NewServer(app.Router(), serverConfig, logger)

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	logger.Info("server started",
		slog.String("addr", server.Addr()),
		slog.String("storage", cfg.Storage),
		slog.String("rate_limiter", cfg.RateLimiter),
	)

	// Wait for shutdown or error
	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", slog.String("error", err.Error()))
			return
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		if err := server.Shutdown(context.Background()); err != nil {
			logger.Error("shutdown error", slog.String("error", err.Error()))
			return
		}
	}

	logger.Info("server stopped")
}

// factoryConfig maps environment settings onto the application factory
func factoryConfig(cfg config.Config, logger *slog.Logger) factory.Config {
	out := factory.Config{
		Logger:      logger,
		StorageType: cfg.Storage,
		LimiterType: cfg.RateLimiter,
		PushLimit: ratelimit.Config{
			MaxAttempts: cfg.PushMaxAttempts,
			Window:      cfg.PushWindow,
		},
		RegisterRPS:   cfg.RegisterRPS,
		RegisterBurst: cfg.RegisterBurst,
	}

	if cfg.RedisURL != "" {
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = cfg.RedisURL
		out.RedisConfig = &redisCfg
	}

	switch cfg.Storage {
	case config.StorageSQLite:
		out.SQLConfig = &sqldb.Config{Driver: sqldb.DriverSQLite, DSN: cfg.SQLitePath}
	case config.StoragePostgres:
		out.SQLConfig = &sqldb.Config{Driver: sqldb.DriverPostgres, DSN: cfg.PostgresDSN}
	}

	return out
}
