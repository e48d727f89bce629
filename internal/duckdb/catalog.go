package duckdb

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/inodb/oncofreq/internal/aggregate"
)

type siteKey struct {
	gene, site string
}

// LoadCatalog appends the occurrence catalog of one run. Duplicate
// (gene, site) entries are deduplicated before writing, first one wins.
// Loading the same run twice replaces its rows.
func (s *Store) LoadCatalog(ctx context.Context, runID string, records []aggregate.OccurrenceRecord) (int, error) {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM occurrence_catalog WHERE run_id=?", runID); err != nil {
		return 0, fmt.Errorf("clear catalog: %w", err)
	}

	seen := make(map[siteKey]bool, len(records))
	rows := make([][]driver.Value, 0, len(records))
	for _, r := range records {
		k := siteKey{r.GeneSymbol, r.Site}
		if seen[k] {
			continue
		}
		seen[k] = true
		top, err := json.Marshal(r.TopVariants)
		if err != nil {
			return 0, fmt.Errorf("encode top variants: %w", err)
		}
		rows = append(rows, []driver.Value{
			runID, r.GeneSymbol, r.Site,
			int64(r.OccurrenceCount), int64(r.UniqueSamples), int64(r.UniqueVariants),
			string(top), strings.Join(r.Sources, ","), string(r.QualityTier),
		})
	}

	if err := s.appendRows(ctx, "occurrence_catalog", rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// Catalog returns the occurrence catalog of a run ordered by occurrence count
// descending, then gene and site.
func (s *Store) Catalog(ctx context.Context, runID string) ([]aggregate.OccurrenceRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT
		gene, site, occurrence_count, unique_samples, unique_variants,
		top_variants, sources, quality_tier
		FROM occurrence_catalog WHERE run_id=?
		ORDER BY occurrence_count DESC, gene, site`, runID)
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}
	defer rows.Close()

	var out []aggregate.OccurrenceRecord
	for rows.Next() {
		var r aggregate.OccurrenceRecord
		var occurrences, samples, variants int64
		var top, sources, tier string
		if err := rows.Scan(&r.GeneSymbol, &r.Site, &occurrences, &samples, &variants,
			&top, &sources, &tier); err != nil {
			return nil, fmt.Errorf("scan catalog: %w", err)
		}
		if err := json.Unmarshal([]byte(top), &r.TopVariants); err != nil {
			return nil, fmt.Errorf("decode top variants: %w", err)
		}
		r.OccurrenceCount = int(occurrences)
		r.UniqueSamples = int(samples)
		r.UniqueVariants = int(variants)
		r.Sources = splitList(sources)
		r.QualityTier = aggregate.QualityTier(tier)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate catalog: %w", err)
	}
	return out, nil
}
