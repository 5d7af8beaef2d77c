package storage

import (
	"strings"
	"testing"
	"time"
)

func TestRebind(t *testing.T) {
	tests := []struct {
		name     string
		numbered bool
		query    string
		want     string
	}{
		{"sqlite untouched", false, "SELECT * FROM t WHERE a = ? AND b = ?", "SELECT * FROM t WHERE a = ? AND b = ?"},
		{"postgres numbered", true, "SELECT * FROM t WHERE a = ? AND b = ?", "SELECT * FROM t WHERE a = $1 AND b = $2"},
		{"postgres no params", true, "DELETE FROM t", "DELETE FROM t"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &SQLBackend{dialect: dialect{numbered: tt.numbered}}
			if got := b.rebind(tt.query); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestSQLiteDSN(t *testing.T) {
	tests := []struct {
		driver   string
		contains string
		wantErr  bool
	}{
		{DriverModernc, "_pragma=busy_timeout(2000)", false},
		{DriverMattn, "_busy_timeout=2000", false},
		{"duckdb", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			dsn, err := sqliteDSN(SQLiteConfig{Path: "x.db", Driver: tt.driver, BusyTimeout: 2 * time.Second})
			if tt.wantErr {
				if err == nil {
					t.Error("Expected error for unsupported driver")
				}
				return
			}
			if err != nil {
				t.Fatalf("sqliteDSN failed: %v", err)
			}
			if !strings.Contains(dsn, tt.contains) {
				t.Errorf("Expected DSN %q to contain %q", dsn, tt.contains)
			}
		})
	}
}

func TestPostgresStatementsUseNumberedParams(t *testing.T) {
	if strings.Contains(postgresDialect.upsertLongTerm, "?") {
		t.Error("PostgreSQL upsert must not contain ? placeholders")
	}
	if !strings.Contains(postgresDialect.upsertLongTerm, "ON CONFLICT (user_id)") {
		t.Error("Expected upsert to resolve conflicts on user_id")
	}
}

func TestUpsertLongTermReplacesTopLevelKey(t *testing.T) {
	tests := []struct {
		name      string
		statement string
		forbidden string
	}{
		{"sqlite", sqliteDialect.upsertLongTerm, "json_patch"},
		{"postgres", postgresDialect.upsertLongTerm, "jsonb_strip_nulls"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Both functions rewrite nested values, not just the top-level key.
			if strings.Contains(tt.statement, tt.forbidden) {
				t.Errorf("Expected upsert not to use %s", tt.forbidden)
			}
		})
	}
}
