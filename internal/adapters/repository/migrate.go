package repository

import (
	"database/sql"
	"fmt"
)

// seq keeps the input order of each collection; ids alone do not.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id_user  INTEGER PRIMARY KEY,
		seq      INTEGER NOT NULL,
		name     TEXT    NOT NULL,
		position TEXT    NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS sprints (
		id_sprint INTEGER PRIMARY KEY,
		seq       INTEGER NOT NULL,
		name      TEXT    NOT NULL,
		starts_at TEXT,
		ends_at   TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS tasks (
		id_task         INTEGER PRIMARY KEY,
		seq             INTEGER NOT NULL,
		description     TEXT    NOT NULL DEFAULT '',
		state           TEXT    NOT NULL,
		hours_estimated REAL,
		hours_real      REAL,
		id_sprint       INTEGER,
		assigned_to     INTEGER NOT NULL,
		story_points    INTEGER NOT NULL DEFAULT 0,
		created_at      TEXT,
		updated_at      TEXT,
		finishes_at     TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_sprint ON tasks(id_sprint)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_assigned ON tasks(assigned_to)`,
}

// Migrate creates the schema. It is safe to run repeatedly.
func Migrate(db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("%w: migration %d: %v", ErrMigrate, i, err)
		}
	}
	return nil
}
