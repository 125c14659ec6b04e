// Package automationworker boots the comment-event worker: it drains the
// durable queue and talks to the Instagram Graph API on the account's behalf.
package automationworker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/autogramhq/automation-service/internal/config"
	"github.com/autogramhq/automation-service/internal/instagram"
	"github.com/autogramhq/automation-service/internal/platform/logger"
	"github.com/autogramhq/automation-service/internal/store/postgres"
	"github.com/autogramhq/automation-service/internal/worker"
)

// Run starts the worker and blocks until shutdown or error.
func Run() error {
	log := logger.New("automation-worker")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return err
	}
	logger.SetGlobalLevel(cfg.LogLevel)

	db, err := postgres.Open(cfg.PostgresDSN)
	if err != nil {
		log.Error().Err(err).Msg("Postgres unavailable")
		return err
	}
	defer func() { _ = db.Close() }()
	st := postgres.NewWithDB(db)

	sealer, err := instagram.NewSealer(cfg.TokenEncryptionKey)
	if err != nil {
		return fmt.Errorf("token encryption key: %w", err)
	}
	client := instagram.NewClient(cfg.InstagramGraphAPIURL)

	w := worker.New(st, sealer, client, worker.Config{
		BatchSize: cfg.WorkerBatchSize,
		Interval:  time.Duration(cfg.WorkerIntervalSeconds) * time.Second,
	}, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("worker exit")
		return err
	}
	return nil
}
