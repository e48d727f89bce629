package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/inodb/oncofreq/internal/aggregate"
)

// LoadResult counts what one Load did.
type LoadResult struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Failed   int `json:"failed"`
	// Superseded counts records dropped because another record of the
	// batch has the same key.
	Superseded int `json:"superseded"`
}

// Total is the number of input records the result accounts for.
func (r LoadResult) Total() int {
	return r.Inserted + r.Updated + r.Failed + r.Superseded
}

// frequencyKey is the natural key of mutation_frequencies.
type frequencyKey struct {
	gene, cancerType, ref, alt string
	pos                        int64
}

func keyOf(r aggregate.FrequencyRecord) frequencyKey {
	return frequencyKey{r.GeneSymbol, r.CancerType, r.ReferenceAllele, r.VariantAllele, r.Position}
}

// Load upserts frequency records keyed by (gene, cancer_type, position,
// ref_allele, alt_allele) inside one transaction. Records missing a key
// column count as Failed. When several records of the batch share a key, the
// one with the most mutated samples is kept (the later one on a tie) and the
// others count as Superseded, so Total always equals len(records).
// Any database error rolls the whole batch back.
func (s *Store) Load(ctx context.Context, records []aggregate.FrequencyRecord) (LoadResult, error) {
	var res LoadResult
	if len(records) == 0 {
		return res, nil
	}

	winner := make(map[frequencyKey]int, len(records))
	for i, r := range records {
		if r.GeneSymbol == "" || r.CancerType == "" || r.ReferenceAllele == "" || r.VariantAllele == "" {
			res.Failed++
			s.logger.Warn("skipping frequency record without key",
				zap.String("gene", r.GeneSymbol),
				zap.String("cancer_type", r.CancerType),
				zap.String("variant", r.Variant))
			continue
		}
		k := keyOf(r)
		j, ok := winner[k]
		if !ok {
			winner[k] = i
			continue
		}
		res.Superseded++
		kept, dropped := records[j], r
		if r.MutationCount >= records[j].MutationCount {
			winner[k] = i
			kept, dropped = r, records[j]
		}
		s.logger.Warn("frequency records share a sink key",
			zap.String("gene", k.gene),
			zap.String("cancer_type", k.cancerType),
			zap.Int64("position", k.pos),
			zap.String("kept", kept.Variant),
			zap.Int("kept_samples", kept.MutationCount),
			zap.String("dropped", dropped.Variant),
			zap.Int("dropped_samples", dropped.MutationCount))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return LoadResult{}, fmt.Errorf("begin load: %w", err)
	}
	defer tx.Rollback()

	exists, err := tx.PrepareContext(ctx, `SELECT COUNT(*) FROM mutation_frequencies
		WHERE gene=? AND cancer_type=? AND start_position=? AND ref_allele=? AND alt_allele=?`)
	if err != nil {
		return LoadResult{}, fmt.Errorf("prepare lookup: %w", err)
	}
	defer exists.Close()

	update, err := tx.PrepareContext(ctx, `UPDATE mutation_frequencies SET
		protein_change=?, variant=?, mutation_count=?, occurrence_count=?, total_samples=?,
		frequency=?, ci_low=?, ci_high=?, is_hotspot=?, denominator_estimated=?,
		quality_tier=?, study_ids=?, updated_at=?
		WHERE gene=? AND cancer_type=? AND start_position=? AND ref_allele=? AND alt_allele=?`)
	if err != nil {
		return LoadResult{}, fmt.Errorf("prepare update: %w", err)
	}
	defer update.Close()

	insert, err := tx.PrepareContext(ctx, `INSERT INTO mutation_frequencies (
		protein_change, variant, mutation_count, occurrence_count, total_samples,
		frequency, ci_low, ci_high, is_hotspot, denominator_estimated,
		quality_tier, study_ids, updated_at,
		gene, cancer_type, start_position, ref_allele, alt_allele
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return LoadResult{}, fmt.Errorf("prepare insert: %w", err)
	}
	defer insert.Close()

	now := time.Now().UTC()
	for i, r := range records {
		k := keyOf(r)
		if j, ok := winner[k]; !ok || j != i {
			continue
		}

		var n int
		if err := exists.QueryRowContext(ctx, k.gene, k.cancerType, k.pos, k.ref, k.alt).Scan(&n); err != nil {
			return LoadResult{}, fmt.Errorf("lookup %s %s: %w", r.GeneSymbol, r.Variant, err)
		}

		args := []any{
			r.ProteinChange, r.Variant, int64(r.MutationCount), int64(r.OccurrenceCount), int64(r.TotalSamples),
			r.Frequency, r.CILow, r.CIHigh, r.IsHotspot, r.DenominatorEstimated,
			string(r.QualityTier), strings.Join(r.StudyIDs, ","), now,
			k.gene, k.cancerType, k.pos, k.ref, k.alt,
		}
		if n > 0 {
			if _, err := update.ExecContext(ctx, args...); err != nil {
				return LoadResult{}, fmt.Errorf("update %s %s: %w", r.GeneSymbol, r.Variant, err)
			}
			res.Updated++
		} else {
			if _, err := insert.ExecContext(ctx, args...); err != nil {
				return LoadResult{}, fmt.Errorf("insert %s %s: %w", r.GeneSymbol, r.Variant, err)
			}
			res.Inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return LoadResult{}, fmt.Errorf("commit load: %w", err)
	}
	s.logger.Info("loaded frequencies",
		zap.Int("inserted", res.Inserted),
		zap.Int("updated", res.Updated),
		zap.Int("failed", res.Failed),
		zap.Int("superseded", res.Superseded))
	return res, nil
}

// Filter restricts a frequency query. Empty fields match everything.
type Filter struct {
	Gene       string
	CancerType string
	// MinSamples drops records with fewer total samples.
	MinSamples int
}

// Frequencies returns stored frequency records ordered by gene, cancer type
// and variant.
func (s *Store) Frequencies(ctx context.Context, f Filter) ([]aggregate.FrequencyRecord, error) {
	query := `SELECT
		gene, cancer_type, start_position, ref_allele, alt_allele,
		protein_change, variant, mutation_count, occurrence_count, total_samples,
		frequency, ci_low, ci_high, is_hotspot, denominator_estimated,
		quality_tier, study_ids
		FROM mutation_frequencies WHERE total_samples >= ?`
	args := []any{int64(f.MinSamples)}
	if f.Gene != "" {
		query += " AND gene=?"
		args = append(args, strings.ToUpper(f.Gene))
	}
	if f.CancerType != "" {
		query += " AND cancer_type=?"
		args = append(args, f.CancerType)
	}
	query += " ORDER BY gene, cancer_type, variant"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query frequencies: %w", err)
	}
	defer rows.Close()

	return scanFrequencies(rows)
}

func scanFrequencies(rows *sql.Rows) ([]aggregate.FrequencyRecord, error) {
	var out []aggregate.FrequencyRecord
	for rows.Next() {
		var r aggregate.FrequencyRecord
		var mutations, occurrences, total int64
		var tier, studies string
		if err := rows.Scan(
			&r.GeneSymbol, &r.CancerType, &r.Position, &r.ReferenceAllele, &r.VariantAllele,
			&r.ProteinChange, &r.Variant, &mutations, &occurrences, &total,
			&r.Frequency, &r.CILow, &r.CIHigh, &r.IsHotspot, &r.DenominatorEstimated,
			&tier, &studies,
		); err != nil {
			return nil, fmt.Errorf("scan frequency: %w", err)
		}
		r.MutationCount = int(mutations)
		r.OccurrenceCount = int(occurrences)
		r.TotalSamples = int(total)
		r.QualityTier = aggregate.QualityTier(tier)
		r.StudyIDs = splitList(studies)
		r.IsValid = true
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate frequencies: %w", err)
	}
	return out, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
