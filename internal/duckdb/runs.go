package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Run is one row of run history.
type Run struct {
	ID           string    `json:"run_id"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Status       string    `json:"status"`
	Extracted    int       `json:"extracted"`
	Standardized int       `json:"standardized"`
	Malformed    int       `json:"malformed"`
	Frequencies  int       `json:"frequencies"`
	Rejected     int       `json:"rejected"`
	Catalog      int       `json:"catalog"`
	Associations int       `json:"associations"`
	Warnings     []string  `json:"warnings,omitempty"`
	Error        string    `json:"error,omitempty"`
}

// RecordRun writes or replaces the history row of a run.
func (s *Store) RecordRun(ctx context.Context, r Run) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO runs (
		run_id, started_at, finished_at, status,
		extracted, standardized, malformed, frequencies, rejected, catalog, associations,
		warnings, error
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.StartedAt.UTC(), r.FinishedAt.UTC(), r.Status,
		int64(r.Extracted), int64(r.Standardized), int64(r.Malformed), int64(r.Frequencies),
		int64(r.Rejected), int64(r.Catalog), int64(r.Associations),
		strings.Join(r.Warnings, "\n"), r.Error)
	if err != nil {
		return fmt.Errorf("record run %s: %w", r.ID, err)
	}
	return nil
}

// Runs returns the most recent runs, newest first. A non-positive limit
// returns all of them.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT run_id, started_at, finished_at, status,
		extracted, standardized, malformed, frequencies, rejected, catalog, associations,
		warnings, error
		FROM runs ORDER BY started_at DESC, run_id`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, int64(limit))
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var counts [7]int64
		var warnings string
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Status,
			&counts[0], &counts[1], &counts[2], &counts[3], &counts[4], &counts[5], &counts[6],
			&warnings, &r.Error); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Extracted, r.Standardized, r.Malformed = int(counts[0]), int(counts[1]), int(counts[2])
		r.Frequencies, r.Rejected = int(counts[3]), int(counts[4])
		r.Catalog, r.Associations = int(counts[5]), int(counts[6])
		if warnings != "" {
			r.Warnings = strings.Split(warnings, "\n")
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

// ErrNoRuns is returned by LatestRun on an empty history.
var ErrNoRuns = errors.New("no runs recorded")

// LatestRun returns the newest run that finished with status success or partial.
func (s *Store) LatestRun(ctx context.Context) (*Run, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT run_id FROM runs
		WHERE status IN ('success', 'partial')
		ORDER BY started_at DESC, run_id LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoRuns
	}
	if err != nil {
		return nil, fmt.Errorf("query latest run: %w", err)
	}
	runs, err := s.Runs(ctx, 0)
	if err != nil {
		return nil, err
	}
	for i := range runs {
		if runs[i].ID == id {
			return &runs[i], nil
		}
	}
	return nil, ErrNoRuns
}
