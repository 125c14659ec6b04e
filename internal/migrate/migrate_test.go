package migrate

import (
	"strings"
	"testing"
)

func TestLoad_ContiguousOrderedVersions(t *testing.T) {
	ms, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(ms) < 8 {
		t.Fatalf("expected at least 8 migrations, got %d", len(ms))
	}
	for i, m := range ms {
		if m.Version != i+1 {
			t.Fatalf("version gap at position %d: %d", i, m.Version)
		}
		if m.Name == "" || m.SQL == "" {
			t.Fatalf("migration %d missing name or body", m.Version)
		}
	}
	if ms[0].Name != "initial" {
		t.Fatalf("first migration should be initial, got %s", ms[0].Name)
	}
}

func TestLoad_InitialCreatesCoreTables(t *testing.T) {
	ms, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	for _, table := range []string{"users", "instagram_accounts", "automations", "dm_sent_logs", "comment_events"} {
		if !strings.Contains(ms[0].SQL, table) {
			t.Fatalf("initial migration missing table %s", table)
		}
	}
}

func TestParseName(t *testing.T) {
	m, err := parseName("012_add_widgets.sql")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if m.Version != 12 || m.Name != "add_widgets" {
		t.Fatalf("unexpected parse result: %+v", m)
	}

	if _, err := parseName("nonsense.sql"); err == nil {
		t.Fatal("expected error for malformed name")
	}
	if _, err := parseName("abc_x.sql"); err == nil {
		t.Fatal("expected error for non-numeric version")
	}
}

func TestStatements_SplitsAndTrims(t *testing.T) {
	stmts := Statements("CREATE TABLE a (x INT);\n\nCREATE INDEX b ON a(x);\n")
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d: %v", len(stmts), stmts)
	}
	if strings.HasSuffix(stmts[0], ";") {
		t.Fatalf("statement should not keep trailing semicolon: %q", stmts[0])
	}
}
