package duckdb

import (
	"context"
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/inodb/oncofreq/internal/therapeutic"
)

// LoadAssociations appends the therapeutic associations of one run, one row
// per therapy. Loading the same run twice replaces its rows.
func (s *Store) LoadAssociations(ctx context.Context, runID string, assocs []therapeutic.Association) (int, error) {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM therapeutic_associations WHERE run_id=?", runID); err != nil {
		return 0, fmt.Errorf("clear associations: %w", err)
	}

	type therapyKey struct {
		gene, cancerType, variant, drug string
	}
	seen := make(map[therapyKey]bool)
	var rows [][]driver.Value
	for _, a := range assocs {
		for rank, t := range a.Therapies {
			k := therapyKey{a.GeneSymbol, a.CancerType, variantOf(a), t.DrugName}
			if seen[k] {
				continue
			}
			seen[k] = true
			rows = append(rows, []driver.Value{
				runID, a.GeneSymbol, a.CancerType, variantOf(a), a.ProteinChange,
				a.Position, int64(a.MutationCount), a.Frequency, int64(rank),
				t.DrugName, string(t.Tier), t.FDAApproved,
				strings.Join(t.InteractionTypes, ","), strings.Join(t.Sources, ","),
			})
		}
	}

	if err := s.appendRows(ctx, "therapeutic_associations", rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// Associations returns the associations of a run regrouped by mutation,
// ordered by mutation count descending with therapies in their stored rank.
func (s *Store) Associations(ctx context.Context, runID string) ([]therapeutic.Association, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT
		gene, cancer_type, variant, protein_change, protein_position, mutation_count, frequency,
		drug_name, association_level, fda_approved, interaction_types, sources
		FROM therapeutic_associations WHERE run_id=?
		ORDER BY mutation_count DESC, gene, cancer_type, protein_change, variant, rank`, runID)
	if err != nil {
		return nil, fmt.Errorf("query associations: %w", err)
	}
	defer rows.Close()

	var out []therapeutic.Association
	for rows.Next() {
		var a therapeutic.Association
		var t therapeutic.Therapy
		var count int64
		var tier, types, sources string
		if err := rows.Scan(&a.GeneSymbol, &a.CancerType, &a.Variant, &a.ProteinChange, &a.Position,
			&count, &a.Frequency, &t.DrugName, &tier, &t.FDAApproved, &types, &sources); err != nil {
			return nil, fmt.Errorf("scan association: %w", err)
		}
		a.MutationCount = int(count)
		t.Tier = therapeutic.Tier(tier)
		t.InteractionTypes = splitList(types)
		t.Sources = splitList(sources)

		if n := len(out); n > 0 && sameMutation(out[n-1], a) {
			out[n-1].Therapies = append(out[n-1].Therapies, t)
			continue
		}
		a.Therapies = []therapeutic.Therapy{t}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate associations: %w", err)
	}
	return out, nil
}

func sameMutation(a, b therapeutic.Association) bool {
	return a.GeneSymbol == b.GeneSymbol && a.CancerType == b.CancerType && a.Variant == b.Variant
}

// variantOf is the stored variant key of an association. Groups without a
// protein change are keyed by their genomic position.
func variantOf(a therapeutic.Association) string {
	if a.Variant != "" {
		return a.Variant
	}
	return a.ProteinChange
}
