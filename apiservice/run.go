// Package apiservice boots the HTTP API: storage, cache, sessions, health
// probes and the router, with graceful shutdown on SIGINT/SIGTERM.
package apiservice

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/autogramhq/automation-service/internal/api"
	"github.com/autogramhq/automation-service/internal/auth"
	"github.com/autogramhq/automation-service/internal/cache"
	"github.com/autogramhq/automation-service/internal/config"
	"github.com/autogramhq/automation-service/internal/health"
	"github.com/autogramhq/automation-service/internal/instagram"
	"github.com/autogramhq/automation-service/internal/platform/logger"
	"github.com/autogramhq/automation-service/internal/store/postgres"
)

// Run starts the API HTTP server and blocks until shutdown or error.
func Run() error {
	log := logger.New("automation-api")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return err
	}
	logger.SetGlobalLevel(cfg.LogLevel)

	ctx, stop := newServerContext()
	defer stop()

	deps, cleanup, err := initDependencies(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	svcHealth := startHealthCheckers(ctx, cfg, log, deps)
	deps.IsHealthy = svcHealth.IsHealthy

	if err := waitUntilHealthy(ctx, cfg, svcHealth); err != nil {
		log.Error().Err(err).Msg("startup health check failed")
		return err
	}

	handler := api.WithCORS(api.NewRouter(*deps), cfg.FrontendURL)
	server := newHTTPServer(ctx, cfg, handler)
	errCh := serveHTTP(server, log, cfg)

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down server")
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
			return err
		}
		log.Info().Msg("Server exited")
		return nil
	case err := <-errCh:
		log.Error().Err(err).Msg("HTTP server failed")
		return err
	}
}

// initDependencies constructs storage, cache and Graph API components,
// failing fast when one is unavailable or misconfigured.
func initDependencies(_ context.Context, cfg *config.Config, log zerolog.Logger) (*api.Deps, func(), error) {
	db, err := postgres.Open(cfg.PostgresDSN)
	if err != nil {
		log.Error().Err(err).Msg("Postgres unavailable")
		return nil, nil, err
	}
	st := postgres.NewWithDB(db)

	c, err := cache.NewClient(cache.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		_ = db.Close()
		log.Error().Err(err).Msg("Redis unavailable")
		return nil, nil, err
	}

	sealer, err := instagram.NewSealer(cfg.TokenEncryptionKey)
	if err != nil {
		_ = db.Close()
		_ = c.Close()
		return nil, nil, fmt.Errorf("token encryption key: %w", err)
	}

	cleanup := func() {
		_ = c.Close()
		_ = db.Close()
	}
	deps := &api.Deps{
		Config:    cfg,
		Store:     st,
		Cache:     c,
		Sessions:  auth.NewSessionManager(c, time.Duration(cfg.SessionTTLMinutes)*time.Minute),
		Sealer:    sealer,
		Refresher: instagram.NewClient(cfg.InstagramGraphAPIURL),
	}
	return deps, cleanup, nil
}

type healthPinger interface {
	HealthPing(ctx context.Context) error
}

// startHealthCheckers probes postgres and redis on an interval and aggregates
// them into the service health the /health endpoint reports.
func startHealthCheckers(ctx context.Context, cfg *config.Config, log zerolog.Logger, deps *api.Deps) *health.ServiceHealthChecker {
	probeTimeout := time.Duration(cfg.HealthProbeTimeoutSeconds) * time.Second
	interval := time.Duration(cfg.HealthIntervalSeconds) * time.Second

	var checkers []health.HealthChecker
	if p, ok := deps.Store.(healthPinger); ok {
		pc := health.NewPingChecker("postgres", p, log, probeTimeout)
		go pc.Start(ctx, interval)
		checkers = append(checkers, pc)
	}
	rc := health.NewPingChecker("redis", deps.Cache, log, probeTimeout)
	go rc.Start(ctx, interval)
	checkers = append(checkers, rc)

	svcHealth := health.NewServiceHealthChecker(log, checkers...)
	go svcHealth.Start(ctx, interval)
	return svcHealth
}

func newHTTPServer(ctx context.Context, cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
}

func serveHTTP(server *http.Server, log zerolog.Logger, cfg *config.Config) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	return errCh
}

// startupHealthTimeout is interval*2 with a 60 second floor, giving checkers
// time to complete their first probe cycle.
func startupHealthTimeout(healthIntervalSeconds int) int {
	timeout := healthIntervalSeconds * 2
	if timeout < 60 {
		return 60
	}
	return timeout
}

// waitUntilHealthy blocks until service health is healthy or the startup
// window expires.
func waitUntilHealthy(ctx context.Context, cfg *config.Config, svcHealth *health.ServiceHealthChecker) error {
	timeoutSeconds := startupHealthTimeout(cfg.HealthIntervalSeconds)
	deadline := time.Now().Add(time.Duration(timeoutSeconds) * time.Second)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		if svcHealth.IsHealthy() {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("startup aborted: dependencies not healthy within %d seconds", timeoutSeconds)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// newServerContext returns a cancellable context bound to SIGINT/SIGTERM.
func newServerContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
