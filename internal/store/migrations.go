package store

import (
	"context"
	"database/sql"
	"strings"
)

// schema contains the DDL for all schedsim tables.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id             TEXT PRIMARY KEY,
		state          TEXT NOT NULL DEFAULT 'PENDING',
		scheduler      TEXT NOT NULL,
		producer       TEXT NOT NULL,
		consumer       TEXT NOT NULL,
		cores          INTEGER NOT NULL DEFAULT 1,
		config         TEXT NOT NULL DEFAULT '{}',
		job_count      INTEGER NOT NULL DEFAULT 0,
		finished_count INTEGER NOT NULL DEFAULT 0,
		avg_wait       REAL NOT NULL DEFAULT 0,
		avg_turnaround REAL NOT NULL DEFAULT 0,
		simulated      REAL NOT NULL DEFAULT 0,
		error          TEXT NOT NULL DEFAULT '',
		created_at     TEXT NOT NULL,
		started_at     TEXT,
		completed_at   TEXT
	)`,

	`CREATE TABLE IF NOT EXISTS job_records (
		run_id       TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		job_id       INTEGER NOT NULL,
		finish_order INTEGER NOT NULL,
		execute_time REAL NOT NULL,
		delay        REAL NOT NULL,
		wait_time    REAL NOT NULL,
		process_time REAL NOT NULL,
		total_time   REAL NOT NULL,
		PRIMARY KEY (run_id, job_id)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_runs_state ON runs(state)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_job_records_order ON job_records(run_id, finish_order)`,
}

// alterStatements are column additions that need special handling since
// SQLite doesn't support IF NOT EXISTS for ALTER TABLE ADD COLUMN.
var alterStatements = []struct {
	table    string
	column   string
	alterSQL string
	indexSQL string // Optional index to create after column is added
}{
	{
		table:    "runs",
		column:   "display",
		alterSQL: "ALTER TABLE runs ADD COLUMN display TEXT NOT NULL DEFAULT ''",
	},
	{
		table:    "runs",
		column:   "seed",
		alterSQL: "ALTER TABLE runs ADD COLUMN seed INTEGER NOT NULL DEFAULT 0",
	},
}

// migrate executes all schema DDL statements and alter migrations.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	for _, alter := range alterStatements {
		if err := addColumnIfNotExists(ctx, db, alter.table, alter.column, alter.alterSQL); err != nil {
			return err
		}
		if alter.indexSQL != "" {
			if _, err := db.ExecContext(ctx, alter.indexSQL); err != nil {
				return err
			}
		}
	}

	return nil
}

// addColumnIfNotExists adds a column to a table if it doesn't already exist.
func addColumnIfNotExists(ctx context.Context, db *sql.DB, table, column, alterSQL string) error {
	exists, err := columnExists(ctx, db, table, column)
	if err != nil || exists {
		return err
	}
	_, err = db.ExecContext(ctx, alterSQL)
	return err
}

func columnExists(ctx context.Context, db *sql.DB, table, column string) (bool, error) {
	rows, err := db.QueryContext(ctx, "PRAGMA table_info("+table+")")
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue *string
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return false, err
		}
		if strings.EqualFold(name, column) {
			return true, nil
		}
	}
	return false, rows.Err()
}
