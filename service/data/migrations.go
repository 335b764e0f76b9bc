package data

import (
	"database/sql"
	"fmt"
	"time"
)

type migration struct {
	Version int
	Name    string
	Up      string
}

// Column types are chosen to be valid for both SQLite and Postgres.
// Timestamps are unix milliseconds.
var migrations = []migration{
	{
		Version: 1,
		Name:    "initial_schema",
		Up: `
			CREATE TABLE IF NOT EXISTS cameras (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL DEFAULT '',
				location TEXT NOT NULL DEFAULT '',
				source TEXT NOT NULL DEFAULT '',
				framer_type TEXT NOT NULL DEFAULT '',
				focal_length_px DOUBLE PRECISION NOT NULL DEFAULT 0,
				excluded BOOLEAN NOT NULL DEFAULT FALSE,
				agent_id TEXT NOT NULL DEFAULT '',
				startup_time BIGINT NOT NULL DEFAULT 0,
				last_heartbeat BIGINT NOT NULL DEFAULT 0,
				uptime BIGINT NOT NULL DEFAULT 0
			);

			CREATE TABLE IF NOT EXISTS alerts (
				id TEXT PRIMARY KEY,
				camera_id TEXT NOT NULL,
				tier TEXT NOT NULL,
				category TEXT NOT NULL,
				distance_cm DOUBLE PRECISION NOT NULL,
				confidence DOUBLE PRECISION NOT NULL,
				proximity BOOLEAN NOT NULL DEFAULT FALSE,
				box_x INTEGER NOT NULL DEFAULT 0,
				box_y INTEGER NOT NULL DEFAULT 0,
				box_width INTEGER NOT NULL DEFAULT 0,
				box_height INTEGER NOT NULL DEFAULT 0,
				snapshot_url TEXT NOT NULL DEFAULT '',
				event_time BIGINT NOT NULL,
				status TEXT NOT NULL,
				result_json TEXT NOT NULL DEFAULT '{}',
				created_at BIGINT NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_alerts_event_time ON alerts(event_time);
			CREATE INDEX IF NOT EXISTS idx_alerts_camera ON alerts(camera_id);

			CREATE TABLE IF NOT EXISTS errors (
				id TEXT PRIMARY KEY,
				processor TEXT NOT NULL,
				message TEXT NOT NULL,
				inner_error TEXT NOT NULL DEFAULT '',
				stack_trace TEXT NOT NULL DEFAULT '',
				misc_json TEXT NOT NULL DEFAULT '{}',
				created_at BIGINT NOT NULL
			);

			CREATE TABLE IF NOT EXISTS stats (
				id TEXT PRIMARY KEY,
				kind TEXT NOT NULL,
				payload TEXT NOT NULL,
				created_at BIGINT NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_stats_kind ON stats(kind, created_at);
		`,
	},
}

func runMigrations(db *sql.DB, rebind func(string) string) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at BIGINT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	var currentVersion int
	err = db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("get current version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= currentVersion {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction for migration %d: %w", m.Version, err)
		}

		if _, err = tx.Exec(m.Up); err != nil {
			tx.Rollback()
			return fmt.Errorf("execute migration %d (%s): %w", m.Version, m.Name, err)
		}

		_, err = tx.Exec(
			rebind("INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)"),
			m.Version, m.Name, time.Now().UnixMilli(),
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}
