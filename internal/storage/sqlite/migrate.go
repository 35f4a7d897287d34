package sqlite

import (
	"database/sql"
	"fmt"
)

// runMigrations applies all schema migrations in order.
func runMigrations(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS migrations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			version INTEGER NOT NULL UNIQUE,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	var currentVersion int
	if err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM migrations").Scan(&currentVersion); err != nil {
		return fmt.Errorf("read migration version: %w", err)
	}

	for version, migration := range migrations {
		version++ // slice index 0 is migration 1
		if version <= currentVersion {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", version, err)
		}

		if _, err := tx.Exec(migration); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("execute migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO migrations (version) VALUES (?)", version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", version, err)
		}
	}

	return nil
}

var migrations = []string{
	migration001OpenSessions,
	migration002DailyTotals,
	migration003Meta,
}

const migration001OpenSessions = `
CREATE TABLE IF NOT EXISTS open_sessions (
	user_id TEXT PRIMARY KEY,
	started_at TEXT NOT NULL
);
`

const migration002DailyTotals = `
CREATE TABLE IF NOT EXISTS daily_totals (
	day_key TEXT NOT NULL,
	user_id TEXT NOT NULL,
	seconds INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (day_key, user_id)
);

CREATE INDEX idx_daily_totals_day ON daily_totals(day_key);
`

const migration003Meta = `
CREATE TABLE IF NOT EXISTS meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`
