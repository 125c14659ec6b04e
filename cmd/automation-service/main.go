// Command automation-service is the container entrypoint. The
// AUTOMATION_SERVICE_MODE environment variable selects the subsystem:
// "api" (default) migrates the schema and serves HTTP; "worker" drains
// comment events.
package main

import (
	"context"
	"os"

	"github.com/autogramhq/automation-service/apiservice"
	"github.com/autogramhq/automation-service/automationworker"
	"github.com/autogramhq/automation-service/internal/dispatch"
	"github.com/autogramhq/automation-service/internal/migrate"
	"github.com/autogramhq/automation-service/internal/platform/logger"
	"github.com/autogramhq/automation-service/internal/store/postgres"
)

func main() {
	log := logger.New("automation-service")

	mode, err := dispatch.ParseMode(os.Getenv("AUTOMATION_SERVICE_MODE"))
	if err != nil {
		log.Error().Err(err).Msg("startup aborted")
		os.Exit(dispatch.ExitCode(err))
	}

	runners := dispatch.Runners{
		Migrate: func() error {
			dsn := os.Getenv("AUTOMATION_POSTGRES_DSN")
			db, err := postgres.Open(dsn)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()
			return migrate.Apply(context.Background(), db, log)
		},
		API:    apiservice.Run,
		Worker: automationworker.Run,
	}

	if err := dispatch.Run(mode, runners, log); err != nil {
		log.Error().Err(err).Msg("service exited with error")
		os.Exit(dispatch.ExitCode(err))
	}
}
