// Package dispatch decides which long-running subsystem a container instance
// runs. Mode "api" applies schema migrations and then serves HTTP; mode
// "worker" runs the comment-automation worker with no migration gate; any
// other value is fatal. The migration gate is owned exclusively by the api
// path so concurrent worker replicas never race on schema changes.
package dispatch

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Mode is the service-mode selector read once at process start.
type Mode string

const (
	ModeAPI    Mode = "api"
	ModeWorker Mode = "worker"
)

// Exit codes surfaced by the entrypoint. Migration or subsystem failure maps
// to ExitFailure; an unrecognized mode maps to ExitInvalidMode.
const (
	ExitFailure     = 1
	ExitInvalidMode = 2
)

// InvalidModeError reports an unrecognized service mode. Its message carries
// the literal configured value so operators can spot typos in the deployment.
type InvalidModeError struct {
	Value string
}

func (e *InvalidModeError) Error() string {
	return fmt.Sprintf("invalid service mode %q: must be \"api\" or \"worker\"", e.Value)
}

// ParseMode normalizes the raw selector. An unset value defaults to api.
func ParseMode(raw string) (Mode, error) {
	switch raw {
	case "", string(ModeAPI):
		return ModeAPI, nil
	case string(ModeWorker):
		return ModeWorker, nil
	default:
		return "", &InvalidModeError{Value: raw}
	}
}

// Runners are the subsystems the dispatcher can hand control to. Each blocks
// until its subsystem exits; after hand-off all error handling belongs to the
// running subsystem.
type Runners struct {
	Migrate func() error
	API     func() error
	Worker  func() error
}

// Run executes the startup state machine: Start -> MigrationGate -> Serving
// for api mode, Start -> WorkerRunning for worker mode. A migration failure
// aborts api startup without retry; recovery belongs to the orchestration
// layer restarting the container.
func Run(mode Mode, r Runners, log zerolog.Logger) error {
	switch mode {
	case ModeAPI:
		log.Info().Msg("service mode: api")
		if err := r.Migrate(); err != nil {
			return fmt.Errorf("schema migration failed: %w", err)
		}
		return r.API()
	case ModeWorker:
		log.Info().Msg("service mode: worker")
		return r.Worker()
	default:
		return &InvalidModeError{Value: string(mode)}
	}
}

// ExitCode maps a dispatch error to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ime *InvalidModeError
	if errors.As(err, &ime) {
		return ExitInvalidMode
	}
	return ExitFailure
}
