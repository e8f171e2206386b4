// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	_ "modernc.org/sqlite"
)

func TestStatementsSplit(t *testing.T) {
	stmts := Statements()
	if len(stmts) < 8 {
		t.Fatalf("Expected at least 8 statements, got %d", len(stmts))
	}
	for _, s := range stmts {
		if strings.HasSuffix(s, ";") || s == "" {
			t.Errorf("Bad statement: %q", s)
		}
	}
}

func TestCreateSchemaIdempotent(t *testing.T) {
	conn, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "schema.db"))
	if err != nil {
		t.Fatalf("Failed to open sqlite: %v", err)
	}
	defer conn.Close()

	if err := CreateSchema(conn); err != nil {
		t.Fatalf("First CreateSchema failed: %v", err)
	}
	if err := CreateSchema(conn); err != nil {
		t.Fatalf("Second CreateSchema failed: %v", err)
	}

	for _, table := range []string{"app_user", "trust_score_history", "status_report", "report_interaction"} {
		var name string
		err := conn.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		if err != nil {
			t.Errorf("Table %s missing: %v", table, err)
		}
	}
}
