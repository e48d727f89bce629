// Package extract pulls raw records from mutation, evidence and interaction
// sources. Extracted records are kept as decoded JSON maps until the
// standardization step.
package extract

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/inodb/oncofreq/internal/mutation"
)

// RawBatch is the untouched output of one extractor.
type RawBatch struct {
	Name string `json:"name"`
	// Source selects how Mutations are standardized.
	Source       mutation.Source  `json:"source"`
	Mutations    []map[string]any `json:"mutations,omitempty"`
	Studies      []map[string]any `json:"studies,omitempty"`
	Evidence     []map[string]any `json:"evidence,omitempty"`
	Interactions []map[string]any `json:"interactions,omitempty"`
	// Warnings are per-item failures that did not abort the extractor.
	Warnings    []string  `json:"warnings,omitempty"`
	ExtractedAt time.Time `json:"extracted_at"`
}

// Records returns the number of raw records in the batch.
func (b *RawBatch) Records() int {
	return len(b.Mutations) + len(b.Studies) + len(b.Evidence) + len(b.Interactions)
}

func (b *RawBatch) warn(logger *zap.Logger, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	b.Warnings = append(b.Warnings, msg)
	logger.Warn(msg, zap.String("extractor", b.Name))
}

// Extractor produces one RawBatch per run.
type Extractor interface {
	Name() string
	Extract(ctx context.Context) (*RawBatch, error)
}

// ErrNoBatch is the error recorded for an extractor that returned neither a
// batch nor an error.
var ErrNoBatch = errors.New("extractor returned no batch")

// Result is the outcome of one extractor in RunAll.
type Result struct {
	Name     string
	Batch    *RawBatch
	Err      error
	Duration time.Duration
}

// RunAll runs extractors concurrently, at most limit at a time (0 means no
// limit). A failing extractor does not stop the others; its error is kept in
// its Result. Results are in extractor order. The returned error is non-nil
// only when ctx ends first.
func RunAll(ctx context.Context, extractors []Extractor, limit int, logger *zap.Logger) ([]Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	results := make([]Result, len(extractors))

	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, ex := range extractors {
		g.Go(func() error {
			start := time.Now()
			batch, err := ex.Extract(gctx)
			if batch == nil && err == nil {
				err = ErrNoBatch
			}
			results[i] = Result{Name: ex.Name(), Batch: batch, Err: err, Duration: time.Since(start)}
			if err != nil {
				logger.Error("extractor failed", zap.String("extractor", ex.Name()), zap.Error(err))
				return nil
			}
			logger.Info("extractor finished",
				zap.String("extractor", ex.Name()),
				zap.Int("records", batch.Records()),
				zap.Int("warnings", len(batch.Warnings)),
				zap.Duration("took", results[i].Duration))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, fmt.Errorf("extraction: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return results, fmt.Errorf("extraction: %w", err)
	}
	return results, nil
}
