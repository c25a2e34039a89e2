package database

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Snapshot is everything archived for one run.
type Snapshot struct {
	Run             Run
	Categories      []RunCategory
	Classifications []Classification
	Outcomes        []RunOutcome
}

// InsertRun stores a snapshot in one transaction and returns the run ID. A
// new UUID is assigned when the run has none.
func (db *DB) InsertRun(s *Snapshot) (string, error) {
	r := s.Run
	if r.ID == "" {
		r.ID = uuid.NewString()
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return "", fmt.Errorf("begin run insert: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO runs
		(id, label, total_retrieved, after_dedup, included, excluded,
		 single_count, multi_count, none_count, top_k,
		 result_json, views_json, report_markdown, integrity_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Label, r.TotalRetrieved, r.AfterDedup, r.Included, r.Excluded,
		r.Single, r.Multi, r.None, r.TopK,
		r.ResultJSON, r.ViewsJSON, r.ReportMarkdown, r.IntegrityError,
	)
	if err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}

	for _, c := range s.Categories {
		if _, err := tx.Exec(
			`INSERT INTO run_categories (run_id, category, rank, count, percentage) VALUES (?, ?, ?, ?, ?)`,
			r.ID, c.Category, c.Rank, c.Count, c.Percentage,
		); err != nil {
			return "", fmt.Errorf("inserting category %q: %w", c.Category, err)
		}
	}

	for _, c := range s.Classifications {
		cats, err := json.Marshal(c.Categories)
		if err != nil {
			return "", err
		}
		if _, err := tx.Exec(
			`INSERT OR REPLACE INTO run_classifications
			(run_id, article_id, title, categories, outcome, repository_url)
			VALUES (?, ?, ?, ?, ?, ?)`,
			r.ID, c.ArticleID, c.Title, string(cats), c.Outcome, c.RepositoryURL,
		); err != nil {
			return "", fmt.Errorf("inserting classification %q: %w", c.ArticleID, err)
		}
	}

	for _, o := range s.Outcomes {
		if _, err := tx.Exec(
			`INSERT INTO run_outcomes (run_id, outcome, count, percentage) VALUES (?, ?, ?, ?)`,
			r.ID, o.Outcome, o.Count, o.Percentage,
		); err != nil {
			return "", fmt.Errorf("inserting outcome %q: %w", o.Outcome, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit run: %w", err)
	}
	db.logger.Debug("archived run",
		zap.String("run_id", r.ID),
		zap.Int("categories", len(s.Categories)),
		zap.Int("classifications", len(s.Classifications)))
	return r.ID, nil
}

const runColumns = `id, label, total_retrieved, after_dedup, included, excluded,
	single_count, multi_count, none_count, top_k,
	result_json, views_json, report_markdown, integrity_error, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var r Run
	if err := s.Scan(&r.ID, &r.Label, &r.TotalRetrieved, &r.AfterDedup, &r.Included, &r.Excluded,
		&r.Single, &r.Multi, &r.None, &r.TopK,
		&r.ResultJSON, &r.ViewsJSON, &r.ReportMarkdown, &r.IntegrityError, &r.CreatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

// GetRun returns a run by ID, or nil if it does not exist.
func (db *DB) GetRun(id string) (*Run, error) {
	r, err := scanRun(db.conn.QueryRow("SELECT "+runColumns+" FROM runs WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

// LatestRun returns the most recent run, or nil if the archive is empty.
func (db *DB) LatestRun() (*Run, error) {
	r, err := scanRun(db.conn.QueryRow("SELECT " + runColumns + " FROM runs ORDER BY created_at DESC, rowid DESC LIMIT 1"))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

// ListRuns returns runs newest first. limit <= 0 returns all runs.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	query := "SELECT " + runColumns + " FROM runs ORDER BY created_at DESC, rowid DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := db.conn.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// DeleteRun removes a run and everything archived with it.
func (db *DB) DeleteRun(id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"run_outcomes", "run_classifications", "run_categories"} {
		if _, err := tx.Exec("DELETE FROM "+table+" WHERE run_id = ?", id); err != nil {
			return fmt.Errorf("deleting from %s: %w", table, err)
		}
	}
	if _, err := tx.Exec("DELETE FROM runs WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting run: %w", err)
	}
	return tx.Commit()
}

// GetRunCategories returns a run's categories in rank order.
func (db *DB) GetRunCategories(runID string) ([]RunCategory, error) {
	rows, err := db.conn.Query(
		"SELECT run_id, category, rank, count, percentage FROM run_categories WHERE run_id = ? ORDER BY rank",
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cats []RunCategory
	for rows.Next() {
		var c RunCategory
		if err := rows.Scan(&c.RunID, &c.Category, &c.Rank, &c.Count, &c.Percentage); err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

// GetClassifications returns a run's classified articles ordered by ID. A
// non-empty category keeps only articles assigned to it.
func (db *DB) GetClassifications(runID, category string) ([]Classification, error) {
	rows, err := db.conn.Query(
		`SELECT run_id, article_id, title, categories, outcome, repository_url
		FROM run_classifications WHERE run_id = ? ORDER BY article_id`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Classification
	for rows.Next() {
		var c Classification
		var title sql.NullString
		var cats string
		if err := rows.Scan(&c.RunID, &c.ArticleID, &title, &cats, &c.Outcome, &c.RepositoryURL); err != nil {
			return nil, err
		}
		c.Title = title.String
		if err := json.Unmarshal([]byte(cats), &c.Categories); err != nil {
			return nil, fmt.Errorf("decoding categories of %q: %w", c.ArticleID, err)
		}
		if category != "" && !contains(c.Categories, category) {
			continue
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetRunOutcomes returns a run's reproduction-outcome tallies, largest first.
func (db *DB) GetRunOutcomes(runID string) ([]RunOutcome, error) {
	rows, err := db.conn.Query(
		"SELECT run_id, outcome, count, percentage FROM run_outcomes WHERE run_id = ? ORDER BY count DESC, outcome",
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunOutcome
	for rows.Next() {
		var o RunOutcome
		if err := rows.Scan(&o.RunID, &o.Outcome, &o.Count, &o.Percentage); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// GetStats returns aggregate archive statistics.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}

	queries := []struct {
		sql  string
		dest *int
	}{
		{"SELECT COUNT(*) FROM runs", &s.Runs},
		{"SELECT COUNT(*) FROM run_classifications", &s.Classifications},
		{"SELECT COUNT(DISTINCT category) FROM run_categories", &s.Categories},
		{"SELECT COUNT(*) FROM runs WHERE integrity_error IS NOT NULL", &s.FailedRuns},
	}

	for _, q := range queries {
		if err := db.conn.QueryRow(q.sql).Scan(q.dest); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
