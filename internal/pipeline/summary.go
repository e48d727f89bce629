package pipeline

import (
	"time"

	"github.com/inodb/oncofreq/internal/aggregate"
	"github.com/inodb/oncofreq/internal/duckdb"
	"github.com/inodb/oncofreq/internal/output"
)

// Status is the outcome of a run.
type Status string

// Run statuses.
const (
	StatusSuccess Status = "success"
	// StatusPartial means the run completed but an extractor or the
	// interaction source failed.
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// Summary reports what one run did.
type Summary struct {
	RunID      string    `json:"run_id"`
	Status     Status    `json:"status"`
	DryRun     bool      `json:"dry_run,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Extractors       int `json:"extractors"`
	FailedExtractors int `json:"failed_extractors"`
	Extracted        int `json:"extracted"`
	Standardized     int `json:"standardized"`
	Malformed        int `json:"malformed"`
	Studies          int `json:"studies"`
	Denominators     int `json:"denominators"`

	Aggregation  aggregate.Stats   `json:"aggregation"`
	Frequencies  int               `json:"frequencies"`
	Rejected     int               `json:"rejected"`
	Estimated    int               `json:"estimated"`
	Catalog      int               `json:"catalog"`
	Interactions int               `json:"interactions"`
	Associations int               `json:"associations"`
	Load         duckdb.LoadResult `json:"load"`

	Warnings []string `json:"warnings,omitempty"`
	Error    string   `json:"error,omitempty"`

	// Report holds the gold results of the run.
	Report output.Report `json:"-"`
	// EstimatedRecords are best-effort frequencies, kept apart from Report.
	EstimatedRecords []aggregate.FrequencyRecord `json:"-"`
}

// Run converts the summary into a run history row.
func (s *Summary) Run() duckdb.Run {
	return duckdb.Run{
		ID:           s.RunID,
		StartedAt:    s.StartedAt,
		FinishedAt:   s.FinishedAt,
		Status:       string(s.Status),
		Extracted:    s.Extracted,
		Standardized: s.Standardized,
		Malformed:    s.Malformed,
		Frequencies:  s.Frequencies,
		Rejected:     s.Rejected,
		Catalog:      s.Catalog,
		Associations: s.Associations,
		Warnings:     s.Warnings,
		Error:        s.Error,
	}
}

func (s *Summary) warn(msg string) {
	s.Warnings = append(s.Warnings, msg)
}
