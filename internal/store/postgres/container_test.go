package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/autogramhq/automation-service/internal/migrate"
	"github.com/autogramhq/automation-service/internal/platform/logger"
	"github.com/autogramhq/automation-service/internal/store"
	"github.com/autogramhq/automation-service/internal/store/storetest"
)

// TestPostgresStore_Container runs the full migration chain and the store
// compliance suite against a throwaway postgres container. Requires a local
// Docker daemon; opt in via AUTOMATION_TEST_WITH_DOCKER=1.
func TestPostgresStore_Container(t *testing.T) {
	if os.Getenv("AUTOMATION_TEST_WITH_DOCKER") == "" {
		t.Skip("AUTOMATION_TEST_WITH_DOCKER not set; skipping container test")
	}
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "postgres",
			"POSTGRES_PASSWORD": "postgres",
			"POSTGRES_DB":       "automation_db",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("container port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://postgres:postgres@%s:%s/automation_db?sslmode=disable", host, port.Port())

	db, err := openWithRetry(dsn, 15*time.Second)
	if err != nil {
		t.Fatalf("postgres open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	log := logger.New("container-test")
	if err := migrate.Apply(ctx, db, log); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	// Re-applying must be a no-op.
	if err := migrate.Apply(ctx, db, log); err != nil {
		t.Fatalf("re-apply migrations: %v", err)
	}
	pending, err := migrate.Pending(ctx, db)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending migrations after apply, got %d", len(pending))
	}
	// The migration advisory lock must be released when Apply returns; a lock
	// left behind by a session mismatch would block every later api startup.
	var held int
	if err := db.QueryRowContext(ctx,
		`SELECT count(*) FROM pg_locks WHERE locktype = 'advisory'`).Scan(&held); err != nil {
		t.Fatalf("query advisory locks: %v", err)
	}
	if held != 0 {
		t.Fatalf("expected no advisory locks held after apply, found %d", held)
	}

	storetest.Run(t, func(t *testing.T) store.Store { return NewWithDB(db) })
}

// openWithRetry polls until the freshly started container accepts connections.
func openWithRetry(dsn string, timeout time.Duration) (*sql.DB, error) {
	deadline := time.Now().Add(timeout)
	for {
		db, err := Open(dsn)
		if err == nil {
			return db, nil
		}
		if time.Now().After(deadline) {
			return nil, err
		}
		time.Sleep(500 * time.Millisecond)
	}
}
