package audit

import (
	"database/sql"
	"fmt"
)

// applySchema creates the journal table and indexes if absent. The schema is
// a single append-only table; there is nothing to migrate between versions
// yet, so no migration ledger is kept.
func applySchema(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS signaling_events (
			id            TEXT PRIMARY KEY,
			connection_id TEXT NOT NULL,
			event         TEXT NOT NULL,
			detail        TEXT NOT NULL DEFAULT '',
			timestamp     DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_signaling_events_connection
			ON signaling_events (connection_id, timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_signaling_events_event
			ON signaling_events (event)`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}
