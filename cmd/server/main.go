// glpidash - GLPI Service Desk Metrics Dashboard
// Copyright 2026 glpidash contributors
// SPDX-License-Identifier: MIT
// https://github.com/glpidash/glpidash

// Package main is the entry point for the glpidash server.
//
// glpidash aggregates service desk activity from a GLPI instance into
// dashboard metrics: per-level ticket breakdowns, period-over-period
// trends, and a technician leaderboard. It authenticates against the
// GLPI REST API with a shared session token, survives upstream
// outages with retries, a circuit breaker, and stale-cache fallback,
// and serves its results over a small JSON API.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: layered settings from defaults, config.yaml, and
//     GLPIDASH_* environment variables (Koanf v2)
//  2. Session manager: GLPI token lifecycle with single-flight renewal
//  3. Request executor: retries, backoff, rate pacing, re-auth
//  4. GLPI client + circuit breaker: typed upstream gateway
//  5. Caches: in-memory or Redis, selected by cache.backend
//  6. Metrics facade: fetch, normalize, aggregate, cache
//  7. Supervisor tree: HTTP server plus the optional cache-refresh loop
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - Environment variables (GLPIDASH_GLPI_URL, GLPIDASH_GLPI_APP_TOKEN, ...)
//   - Config file (config.yaml, or CONFIG_PATH)
//   - Built-in defaults
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM: it stops
// accepting connections, waits for in-flight requests to finish (10s
// timeout), and releases the GLPI session with killSession so the
// upstream does not accumulate orphaned tokens.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/glpidash/glpidash/internal/api"
	"github.com/glpidash/glpidash/internal/cache"
	"github.com/glpidash/glpidash/internal/config"
	"github.com/glpidash/glpidash/internal/dashboard"
	"github.com/glpidash/glpidash/internal/glpi"
	"github.com/glpidash/glpidash/internal/logging"
	"github.com/glpidash/glpidash/internal/models"
	"github.com/glpidash/glpidash/internal/normalize"
	"github.com/glpidash/glpidash/internal/supervisor"
	"github.com/glpidash/glpidash/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Default logger; config (and its logging section) is not
		// available yet.
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Timestamp: true,
		Caller:    cfg.Logging.Caller,
	})

	logging.Info().
		Str("glpi_url", cfg.GLPI.URL).
		Str("cache_backend", cfg.Cache.Backend).
		Bool("refresh_enabled", cfg.Refresh.Enabled).
		Msg("Configuration loaded")

	sessions := glpi.NewSessionManager(glpi.SessionConfig{
		BaseURL:           cfg.GLPI.URL,
		AppToken:          cfg.GLPI.AppToken,
		UserToken:         cfg.GLPI.UserToken,
		LoginTimeout:      cfg.GLPI.LoginTimeout,
		MaxReauthAttempts: cfg.GLPI.MaxReauthAttempts,
	})

	executor := glpi.NewExecutor(sessions, glpi.ExecutorConfig{
		BaseURL:           cfg.GLPI.URL,
		AppToken:          cfg.GLPI.AppToken,
		ConnectTimeout:    cfg.GLPI.ConnectTimeout,
		ReadTimeout:       cfg.GLPI.ReadTimeout,
		MaxRetries:        cfg.GLPI.MaxRetries,
		RetryBaseDelay:    cfg.GLPI.RetryBaseDelay,
		MaxReauthAttempts: cfg.GLPI.MaxReauthAttempts,
		RequestsPerSecond: cfg.GLPI.RequestsPerSecond,
	})

	client := glpi.NewClient(executor, glpi.ClientConfig{
		PageSize:    cfg.GLPI.PageSize,
		LevelGroups: cfg.GLPI.LevelGroupTable(),
	})

	// The breaker wraps the whole gateway so a flapping upstream is
	// rejected fast instead of burning retry budgets per request.
	gateway := glpi.NewBreakerClient(client)

	results, names := buildCaches(cfg)

	service := dashboard.New(
		gateway,
		sessions,
		normalize.New(cfg.GLPI.LevelTable()),
		results,
		names,
		dashboard.Config{
			CacheTTL:       cfg.Cache.TTL,
			StaleTTL:       cfg.Cache.StaleTTL,
			RequestTimeout: cfg.Dashboard.RequestTimeout,
			NameTTL:        cfg.Dashboard.NameTTL,
			MaxTickets:     cfg.Dashboard.MaxTickets,
			LevelGroups:    cfg.GLPI.LevelGroupTable(),
		},
	)

	handler := api.NewHandler(service)
	middleware := api.NewMiddleware(api.MiddlewareConfig{
		CORSAllowedOrigins: cfg.Server.CORSOrigins,
		RateLimitRequests:  cfg.Server.RateLimitReqs,
		RateLimitWindow:    cfg.Server.RateLimitWindow,
		RateLimitDisabled:  cfg.Server.RateLimitDisabled,
	})
	router := api.NewRouter(handler, middleware)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	if cfg.Refresh.Enabled {
		tree.AddBackgroundService(services.NewRefreshService(service, cfg.Refresh.Interval, cfg.Refresh.Window))
		logging.Info().
			Dur("interval", cfg.Refresh.Interval).
			Dur("window", cfg.Refresh.Window).
			Msg("Cache refresh service added")
	}

	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Drain until the supervisor has fully stopped.
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	// Release the upstream session; GLPI caps concurrent sessions per
	// user token, so orphaned tokens eventually lock the account out.
	logoutCtx, logoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer logoutCancel()
	if err := sessions.Logout(logoutCtx); err != nil {
		logging.Warn().Err(err).Msg("GLPI session release failed")
	}

	logging.Info().Msg("Application stopped gracefully")
}

// buildCaches selects the cache backend for computed results and
// technician names. Both live on the same Redis instance when that
// backend is selected; their value types differ, so each gets its own
// decode factory.
func buildCaches(cfg *config.Config) (results, names cache.Cacher) {
	if cfg.Cache.Backend == "redis" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})

		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			logging.Fatal().Err(err).Str("addr", cfg.Cache.RedisAddr).Msg("Redis unreachable")
		}
		logging.Info().Str("addr", cfg.Cache.RedisAddr).Msg("Redis cache backend connected")

		results = cache.NewRedis(rdb, cfg.Cache.StaleTTL, dashboard.ResultEntry)
		names = cache.NewRedis(rdb, cfg.Dashboard.NameTTL, func() interface{} {
			return new(models.Technician)
		})
		return results, names
	}

	return cache.New(cfg.Cache.StaleTTL), cache.New(cfg.Dashboard.NameTTL)
}
