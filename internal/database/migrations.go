package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    label TEXT NOT NULL,
    total_retrieved INTEGER DEFAULT 0,
    after_dedup INTEGER DEFAULT 0,
    included INTEGER DEFAULT 0,
    excluded INTEGER DEFAULT 0,
    single_count INTEGER DEFAULT 0,
    multi_count INTEGER DEFAULT 0,
    none_count INTEGER DEFAULT 0,
    top_k INTEGER DEFAULT 0,
    result_json TEXT NOT NULL,
    views_json TEXT,
    report_markdown TEXT,
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS run_categories (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    category TEXT NOT NULL,
    rank INTEGER NOT NULL,
    count INTEGER NOT NULL,
    percentage REAL NOT NULL,
    PRIMARY KEY (run_id, category)
);

CREATE TABLE IF NOT EXISTS run_classifications (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    article_id TEXT NOT NULL,
    title TEXT,
    categories TEXT NOT NULL,
    repository_url TEXT,
    PRIMARY KEY (run_id, article_id)
);

CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_run_categories_run ON run_categories(run_id);
`)
			return err
		},
	},
	{
		Version:     2,
		Description: "reproduction outcomes and integrity diagnostics",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
ALTER TABLE runs ADD COLUMN integrity_error TEXT;
ALTER TABLE run_classifications ADD COLUMN outcome TEXT;

CREATE TABLE IF NOT EXISTS run_outcomes (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    outcome TEXT NOT NULL,
    count INTEGER NOT NULL,
    percentage REAL NOT NULL,
    PRIMARY KEY (run_id, outcome)
);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
