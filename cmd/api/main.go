// Copyright (c) 2026 Termboard. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command api is the entry point for the Termboard BBS server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Connect to PostgreSQL (pgxpool).
//  4. Run database migrations (idempotent).
//  5. Connect to Redis (optional).
//  6. Wire the session, auth, and app-platform services.
//  7. Register builtin and local apps.
//  8. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/termboard/internal/api"
	"github.com/taibuivan/termboard/internal/bbs/capability"
	"github.com/taibuivan/termboard/internal/bbs/local"
	"github.com/taibuivan/termboard/internal/bbs/registry"
	"github.com/taibuivan/termboard/internal/bbs/sandbox"
	"github.com/taibuivan/termboard/internal/bbs/shell"
	"github.com/taibuivan/termboard/internal/keyvalue"
	"github.com/taibuivan/termboard/internal/platform/config"
	"github.com/taibuivan/termboard/internal/platform/constants"
	"github.com/taibuivan/termboard/internal/platform/migration"
	pgstore "github.com/taibuivan/termboard/internal/platform/postgres"
	redisstore "github.com/taibuivan/termboard/internal/platform/redis"
	"github.com/taibuivan/termboard/internal/session"
	"github.com/taibuivan/termboard/internal/terminal"
	"github.com/taibuivan/termboard/internal/users/auth"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Add global context to all log entries.
	log := rawLog.With(slog.String("app", "termboard"))
	slog.SetDefault(log)

	log.Info("[Termboard] service_initializing")

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", "termboard"))
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
	)

	// Root context for startup. Use a 30s deadline so misconfiguration is
	// caught quickly rather than hanging indefinitely.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// Long-lived context for background work (reaper, rate-limit janitor).
	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()

	// ── 3. PostgreSQL ─────────────────────────────────────────────────────
	pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, log)
	must(log, err, "connect to postgres")
	defer func() {
		log.Info("closing postgres pool")
		pool.Close()
	}()

	// ── 4. Migrations ─────────────────────────────────────────────────────
	must(log, migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log), "run migrations")

	// ── 5. Redis (optional) ───────────────────────────────────────────────
	// Without Redis the remote-install artifact cache degrades to process
	// memory; nothing else depends on it.
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = redisstore.NewClient(startupCtx, cfg.RedisURL, log)
		must(log, err, "connect to redis")
		defer func() {
			log.Info("closing redis client")
			if cerr := rdb.Close(); cerr != nil {
				log.Error("redis close error", slog.Any("error", cerr))
			}
		}()
	} else {
		log.Info("redis_not_configured")
	}

	// ── 6. Domain Wiring ──────────────────────────────────────────────────
	sessionService := session.NewService(session.NewPostgresRepository(pool), log)

	reapInterval, err := time.ParseDuration(cfg.SessionReapInterval)
	must(log, err, "parse session reap interval")
	sessionService.StartReaper(appCtx, reapInterval, cfg.SessionReapDays)

	authService := auth.NewService(auth.NewPostgresRepository(pool), sessionService, log)

	capabilities := capability.NewFactory(keyvalue.NewPostgresRepository(pool), authService, log)
	appRegistry := registry.New(capabilities.For, log)

	// ── 7. App Platform ───────────────────────────────────────────────────
	localLoader := local.NewLoader(appRegistry, capabilities, cfg.ModulesPath, log)
	localLoader.RegisterBuiltins(appCtx, local.NewSysInfo(appRegistry.Count))
	localLoader.LoadAll(appCtx)

	remoteLoader := sandbox.NewLoader(
		sandbox.NewFetcher(), appRegistry, capabilities, rdb, cfg.AllowedHosts(), log,
	)

	dispatcher := shell.New(sessionService, appRegistry, remoteLoader, log)

	// ── 8. HTTP Server ────────────────────────────────────────────────────
	liveness, readiness := api.NewHealthHandlers(healthChecks(pool, rdb), log)

	handlers := api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Auth:      auth.NewHandler(authService),
		Terminal:  terminal.NewHandler(sessionService, dispatcher, appRegistry),
	}

	server := api.NewServer(appCtx, cfg, log, handlers)

	// ── 9. Graceful Shutdown ──────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server startup error", slog.Any("error", err))
	}

	// Give in-flight requests enough time to complete.
	shutdownTimeout := constants.ShutdownTimeout
	log.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Error("shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("server stopped cleanly")
}

// healthChecks wires the readiness probes to the live connections.
func healthChecks(pool *pgxpool.Pool, rdb *redis.Client) api.HealthDependencies {
	deps := api.HealthDependencies{
		CheckDatabase: func() error {
			return pgstore.Ping(context.Background(), pool)
		},
	}
	if rdb != nil {
		deps.CheckCache = func() error {
			return redisstore.Ping(context.Background(), rdb)
		}
	}
	return deps
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is intentionally limited to startup wiring. After startup, all errors
// must be returned and handled explicitly (never panic).
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
