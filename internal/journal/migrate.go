package journal

import (
	"database/sql"
	"fmt"
)

func migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS calls (
			id           TEXT PRIMARY KEY,
			tool         TEXT NOT NULL,
			args         TEXT NOT NULL DEFAULT '{}',
			outcome      TEXT NOT NULL,
			error        TEXT NOT NULL DEFAULT '',
			result_count INTEGER NOT NULL DEFAULT 0,
			duration_ms  INTEGER NOT NULL DEFAULT 0,
			created_at   TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_calls_tool_created ON calls(tool, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_calls_created ON calls(created_at)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", truncate(stmt, 60), err)
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
