// Package duckdb is the relational sink of the pipeline. Frequency records are
// upserted by their natural key; catalog rows, therapeutic associations and
// run history are appended per run.
package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"os"
	"path/filepath"

	goduckdb "github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS mutation_frequencies (
		gene VARCHAR NOT NULL,
		cancer_type VARCHAR NOT NULL,
		start_position BIGINT NOT NULL,
		ref_allele VARCHAR NOT NULL,
		alt_allele VARCHAR NOT NULL,
		protein_change VARCHAR,
		variant VARCHAR,
		mutation_count BIGINT,
		occurrence_count BIGINT,
		total_samples BIGINT,
		frequency DOUBLE,
		ci_low DOUBLE,
		ci_high DOUBLE,
		is_hotspot BOOLEAN,
		denominator_estimated BOOLEAN,
		quality_tier VARCHAR,
		study_ids VARCHAR,
		updated_at TIMESTAMP,
		PRIMARY KEY (gene, cancer_type, start_position, ref_allele, alt_allele)
	)`,
	`CREATE TABLE IF NOT EXISTS occurrence_catalog (
		run_id VARCHAR NOT NULL,
		gene VARCHAR NOT NULL,
		site VARCHAR NOT NULL,
		occurrence_count BIGINT,
		unique_samples BIGINT,
		unique_variants BIGINT,
		top_variants VARCHAR,
		sources VARCHAR,
		quality_tier VARCHAR,
		PRIMARY KEY (run_id, gene, site)
	)`,
	`CREATE TABLE IF NOT EXISTS therapeutic_associations (
		run_id VARCHAR NOT NULL,
		gene VARCHAR NOT NULL,
		cancer_type VARCHAR NOT NULL,
		variant VARCHAR NOT NULL,
		protein_change VARCHAR NOT NULL,
		protein_position BIGINT,
		mutation_count BIGINT,
		frequency DOUBLE,
		rank BIGINT NOT NULL,
		drug_name VARCHAR NOT NULL,
		association_level VARCHAR,
		fda_approved BOOLEAN,
		interaction_types VARCHAR,
		sources VARCHAR,
		PRIMARY KEY (run_id, gene, cancer_type, variant, drug_name)
	)`,
	`CREATE TABLE IF NOT EXISTS runs (
		run_id VARCHAR PRIMARY KEY,
		started_at TIMESTAMP,
		finished_at TIMESTAMP,
		status VARCHAR,
		extracted BIGINT,
		standardized BIGINT,
		malformed BIGINT,
		frequencies BIGINT,
		rejected BIGINT,
		catalog BIGINT,
		associations BIGINT,
		warnings VARCHAR,
		error VARCHAR
	)`,
}

// Store manages a DuckDB connection holding the pipeline outputs.
type Store struct {
	db     *sql.DB
	path   string
	logger *zap.Logger
}

// Open opens or creates a DuckDB database at the given path.
// Use an empty string for an in-memory database.
func Open(path string) (*Store, error) {
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db, path: path, logger: zap.NewNop()}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return s, nil
}

// SetLogger sets the logger.
func (s *Store) SetLogger(l *zap.Logger) {
	s.logger = l
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database path, empty for in-memory databases.
func (s *Store) Path() string {
	return s.path
}

// ensureSchema creates tables if they don't exist.
func (s *Store) ensureSchema() error {
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// appendRows bulk-inserts rows into table using the Appender API.
func (s *Store) appendRows(ctx context.Context, table string, rows [][]driver.Value) error {
	if len(rows) == 0 {
		return nil
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", table)
		return err
	}); err != nil {
		return fmt.Errorf("create appender: %w", err)
	}
	defer appender.Close()

	for _, row := range rows {
		if err := appender.AppendRow(row...); err != nil {
			return fmt.Errorf("append %s row: %w", table, err)
		}
	}

	return appender.Flush()
}
