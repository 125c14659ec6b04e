// Package migrate applies embedded SQL migrations in order, tracking applied
// versions in a schema_version table. It is invoked exactly once per api-mode
// startup; a non-nil error from Apply must abort startup.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Advisory lock key serializing concurrent api-replica startups against the
// same database. Arbitrary but stable.
const lockKey = 743902117

const schemaVersionTable = `
CREATE TABLE IF NOT EXISTS schema_version (
    version    INTEGER PRIMARY KEY,
    name       TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Migration is one versioned SQL file.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// Load reads the embedded migration files, sorted by version.
func Load() ([]Migration, error) {
	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return nil, err
	}
	var out []Migration
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, ".sql") {
			continue
		}
		m, err := parseName(name)
		if err != nil {
			return nil, err
		}
		raw, err := migrationFiles.ReadFile("migrations/" + name)
		if err != nil {
			return nil, err
		}
		m.SQL = string(raw)
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	for i, m := range out {
		if m.Version != i+1 {
			return nil, fmt.Errorf("migration versions must be contiguous from 1: found %d at position %d", m.Version, i)
		}
	}
	return out, nil
}

// parseName extracts version and name from "NNN_some_name.sql".
func parseName(file string) (Migration, error) {
	base := strings.TrimSuffix(file, ".sql")
	idx := strings.Index(base, "_")
	if idx <= 0 {
		return Migration{}, fmt.Errorf("malformed migration filename: %s", file)
	}
	v, err := strconv.Atoi(base[:idx])
	if err != nil {
		return Migration{}, fmt.Errorf("malformed migration version in %s: %w", file, err)
	}
	return Migration{Version: v, Name: base[idx+1:]}, nil
}

// Statements splits a migration file into individual statements. Comments and
// blank fragments are dropped. Our migrations contain no procedural bodies,
// so splitting on semicolons is sufficient.
func Statements(sqlText string) []string {
	parts := strings.Split(sqlText, ";")
	var out []string
	for _, p := range parts {
		stmt := strings.TrimSpace(p)
		if stmt == "" {
			continue
		}
		out = append(out, stmt)
	}
	return out
}

// Pending returns the migrations not yet recorded in schema_version.
func Pending(ctx context.Context, db *sql.DB) ([]Migration, error) {
	all, err := Load()
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schemaVersionTable); err != nil {
		return nil, fmt.Errorf("create schema_version: %w", err)
	}
	applied := map[int]bool{}
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_version`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	var pending []Migration
	for _, m := range all {
		if !applied[m.Version] {
			pending = append(pending, m)
		}
	}
	return pending, nil
}

// Apply brings the schema to the latest known revision. Each migration runs in
// its own transaction; the first failure aborts and is returned. A
// session-level advisory lock serializes concurrent replicas.
func Apply(ctx context.Context, db *sql.DB, log zerolog.Logger) error {
	// Advisory locks are session-scoped, so acquire and release must run on
	// the same pooled connection or the unlock lands on a different session
	// and the lock stays held until the pool is torn down.
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("checkout migration connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, lockKey); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	defer func() {
		_, _ = conn.ExecContext(ctx, `SELECT pg_advisory_unlock($1)`, lockKey)
	}()

	pending, err := Pending(ctx, db)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		log.Info().Msg("schema up to date")
		return nil
	}

	for _, m := range pending {
		if err := applyOne(ctx, db, m); err != nil {
			return fmt.Errorf("migration %03d_%s: %w", m.Version, m.Name, err)
		}
		log.Info().Int("version", m.Version).Str("name", m.Name).Msg("migration applied")
	}
	return nil
}

func applyOne(ctx context.Context, db *sql.DB, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range Statements(m.SQL) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_version (version, name) VALUES ($1, $2)`, m.Version, m.Name); err != nil {
		return err
	}
	return tx.Commit()
}
