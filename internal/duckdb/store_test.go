package duckdb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/oncofreq/internal/aggregate"
	"github.com/inodb/oncofreq/internal/therapeutic"
)

func openInMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func braf(count, total int) aggregate.FrequencyRecord {
	return aggregate.FrequencyRecord{
		GeneSymbol: "BRAF", CancerType: "Melanoma",
		ProteinChange: "V600E", Variant: "V600E",
		Position: 140753336, ReferenceAllele: "A", VariantAllele: "T",
		MutationCount: count, OccurrenceCount: count, TotalSamples: total,
		Frequency: float64(count) / float64(total), CILow: 0.1, CIHigh: 0.2,
		IsValid: true, IsHotspot: true,
		StudyIDs:    []string{"skcm_tcga", "mel_ucla"},
		QualityTier: aggregate.TierPopulationFrequency,
	}
}

func TestOpenClose(t *testing.T) {
	s := openInMemory(t)
	assert.NotNil(t, s.DB())
	assert.Empty(t, s.Path())
}

func TestOpen_File(t *testing.T) {
	path := t.TempDir() + "/nested/oncofreq.duckdb"
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	assert.FileExists(t, path)
}

func TestLoad_InsertThenUpdate(t *testing.T) {
	s := openInMemory(t)
	ctx := context.Background()

	kras := braf(5, 100)
	kras.GeneSymbol, kras.CancerType, kras.ProteinChange, kras.Variant = "KRAS", "Pancreatic Cancer", "G12D", "G12D"
	kras.Position, kras.ReferenceAllele, kras.VariantAllele = 25245350, "C", "T"

	res, err := s.Load(ctx, []aggregate.FrequencyRecord{braf(30, 100), kras})
	require.NoError(t, err)
	assert.Equal(t, LoadResult{Inserted: 2}, res)

	res, err = s.Load(ctx, []aggregate.FrequencyRecord{braf(40, 100)})
	require.NoError(t, err)
	assert.Equal(t, LoadResult{Updated: 1}, res)

	recs, err := s.Frequencies(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "BRAF", recs[0].GeneSymbol)
	assert.Equal(t, 40, recs[0].MutationCount)
	assert.InDelta(t, 0.4, recs[0].Frequency, 1e-9)
	assert.Equal(t, []string{"skcm_tcga", "mel_ucla"}, recs[0].StudyIDs)
	assert.Equal(t, aggregate.TierPopulationFrequency, recs[0].QualityTier)
	assert.True(t, recs[0].IsHotspot)
	assert.Equal(t, int64(140753336), recs[0].Position)
	assert.Equal(t, "KRAS", recs[1].GeneSymbol)
}

func TestLoad_Idempotent(t *testing.T) {
	s := openInMemory(t)
	ctx := context.Background()
	batch := []aggregate.FrequencyRecord{braf(3, 450)}

	_, err := s.Load(ctx, batch)
	require.NoError(t, err)
	first, err := s.Frequencies(ctx, Filter{})
	require.NoError(t, err)

	res, err := s.Load(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, LoadResult{Updated: 1}, res)
	second, err := s.Frequencies(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLoad_DuplicateKey(t *testing.T) {
	s := openInMemory(t)
	ctx := context.Background()

	res, err := s.Load(ctx, []aggregate.FrequencyRecord{braf(1, 100), braf(7, 100), braf(7, 200)})
	require.NoError(t, err)
	assert.Equal(t, LoadResult{Inserted: 1, Superseded: 2}, res)
	assert.Equal(t, 3, res.Total())

	recs, err := s.Frequencies(ctx, Filter{Gene: "braf"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 7, recs[0].MutationCount)
	assert.Equal(t, 200, recs[0].TotalSamples, "later record wins a tie")
}

func TestLoad_KeyCollisionKeepsLargerGroup(t *testing.T) {
	s := openInMemory(t)
	ctx := context.Background()

	byChange := braf(30, 100)
	byPosition := braf(2, 100)
	byPosition.ProteinChange = ""
	byPosition.Variant = "140753336"

	for _, batch := range [][]aggregate.FrequencyRecord{
		{byChange, byPosition},
		{byPosition, byChange},
	} {
		res, err := s.Load(ctx, batch)
		require.NoError(t, err)
		assert.Equal(t, len(batch), res.Total())
		assert.Equal(t, 1, res.Superseded)

		recs, err := s.Frequencies(ctx, Filter{Gene: "BRAF"})
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, "V600E", recs[0].Variant)
		assert.Equal(t, 30, recs[0].MutationCount)
	}
}

func TestLoad_MissingKeyFails(t *testing.T) {
	s := openInMemory(t)
	bad := braf(1, 10)
	bad.ReferenceAllele = ""

	res, err := s.Load(context.Background(), []aggregate.FrequencyRecord{bad, braf(2, 10)})
	require.NoError(t, err)
	assert.Equal(t, LoadResult{Inserted: 1, Failed: 1}, res)
}

func TestLoad_Empty(t *testing.T) {
	s := openInMemory(t)
	res, err := s.Load(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, LoadResult{}, res)
}

func TestFrequencies_Filter(t *testing.T) {
	s := openInMemory(t)
	ctx := context.Background()

	thyroid := braf(200, 400)
	thyroid.CancerType = "Thyroid Cancer"
	_, err := s.Load(ctx, []aggregate.FrequencyRecord{braf(3, 45), thyroid})
	require.NoError(t, err)

	recs, err := s.Frequencies(ctx, Filter{CancerType: "Thyroid Cancer"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 200, recs[0].MutationCount)

	recs, err = s.Frequencies(ctx, Filter{MinSamples: 100})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Thyroid Cancer", recs[0].CancerType)

	recs, err = s.Frequencies(ctx, Filter{Gene: "TP53"})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestLoadCatalog(t *testing.T) {
	s := openInMemory(t)
	ctx := context.Background()

	catalog := []aggregate.OccurrenceRecord{
		{
			GeneSymbol: "TP53", Site: "lung", OccurrenceCount: 4, UniqueSamples: 3, UniqueVariants: 2,
			TopVariants: []aggregate.VariantCount{{ProteinChange: "R175H", Count: 3}, {ProteinChange: "R248Q", Count: 1}},
			Sources:     []string{"cosmic"}, QualityTier: aggregate.TierOccurrenceCount,
		},
		{
			GeneSymbol: "KRAS", Site: "pancreas", OccurrenceCount: 9, UniqueSamples: 9, UniqueVariants: 1,
			TopVariants: []aggregate.VariantCount{{ProteinChange: "G12D", Count: 9}},
			Sources:     []string{"cbioportal", "cosmic"}, QualityTier: aggregate.TierOccurrenceCount,
		},
		{GeneSymbol: "TP53", Site: "lung", OccurrenceCount: 99},
	}

	n, err := s.LoadCatalog(ctx, "run-1", catalog)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// reloading the same run replaces it
	n, err = s.LoadCatalog(ctx, "run-1", catalog)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := s.Catalog(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "KRAS", got[0].GeneSymbol)
	assert.Equal(t, []string{"cbioportal", "cosmic"}, got[0].Sources)
	assert.Equal(t, 4, got[1].OccurrenceCount)
	assert.Equal(t, catalog[0].TopVariants, got[1].TopVariants)
	assert.Nil(t, got[1].Frequency)

	other, err := s.Catalog(ctx, "run-2")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestLoadAssociations(t *testing.T) {
	s := openInMemory(t)
	ctx := context.Background()

	assocs := []therapeutic.Association{
		{
			GeneSymbol: "BRAF", ProteinChange: "V600E", CancerType: "Melanoma",
			Position: 600, MutationCount: 3, Frequency: 0.0067,
			Therapies: []therapeutic.Therapy{
				{DrugName: "Vemurafenib", Tier: therapeutic.TierMutationSpecific, FDAApproved: true},
				{DrugName: "Dabrafenib", Tier: therapeutic.TierMutationSpecific, FDAApproved: true},
				{DrugName: "Sorafenib", Tier: therapeutic.TierGeneLevel,
					InteractionTypes: []string{"inhibitor"}, Sources: []string{"DGIdb", "ChEMBL"}},
			},
		},
		{
			GeneSymbol: "KRAS", ProteinChange: "G12C", CancerType: "Non-Small Cell Lung Cancer",
			Position: 12, MutationCount: 10, Frequency: 0.1,
			Therapies: []therapeutic.Therapy{
				{DrugName: "Sotorasib", Tier: therapeutic.TierMutationSpecific, FDAApproved: true},
			},
		},
	}

	n, err := s.LoadAssociations(ctx, "run-1", assocs)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	got, err := s.Associations(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "KRAS", got[0].GeneSymbol)
	require.Len(t, got[1].Therapies, 3)
	assert.Equal(t, "Vemurafenib", got[1].Therapies[0].DrugName)
	assert.Equal(t, "Sorafenib", got[1].Therapies[2].DrugName)
	assert.Equal(t, therapeutic.TierGeneLevel, got[1].Therapies[2].Tier)
	assert.Equal(t, []string{"DGIdb", "ChEMBL"}, got[1].Therapies[2].Sources)
	assert.Equal(t, int64(600), got[1].Position)
}

func TestLoadAssociations_PositionKeyedGroups(t *testing.T) {
	s := openInMemory(t)
	ctx := context.Background()

	therapy := []therapeutic.Therapy{{DrugName: "Trametinib", Tier: therapeutic.TierGeneLevel}}
	assocs := []therapeutic.Association{
		{GeneSymbol: "BRAF", Variant: "140753336", CancerType: "Melanoma", MutationCount: 4, Therapies: therapy},
		{GeneSymbol: "BRAF", Variant: "140753335", CancerType: "Melanoma", MutationCount: 2, Therapies: therapy},
	}

	n, err := s.LoadAssociations(ctx, "run-1", assocs)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := s.Associations(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "140753336", got[0].Variant)
	assert.Equal(t, "140753335", got[1].Variant)
	assert.Empty(t, got[1].ProteinChange)
}

func TestRecordRun(t *testing.T) {
	s := openInMemory(t)
	ctx := context.Background()

	_, err := s.LatestRun(ctx)
	assert.ErrorIs(t, err, ErrNoRuns)

	start := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, s.RecordRun(ctx, Run{
		ID: "run-1", StartedAt: start, FinishedAt: start.Add(time.Minute),
		Status: "success", Extracted: 10, Frequencies: 4,
	}))
	require.NoError(t, s.RecordRun(ctx, Run{
		ID: "run-2", StartedAt: start.Add(time.Hour), FinishedAt: start.Add(2 * time.Hour),
		Status: "failed", Error: "extraction: context deadline exceeded",
		Warnings: []string{"cbioportal: gene NOPE1 not found", "dgidb: timeout"},
	}))

	runs, err := s.Runs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].ID)
	assert.Len(t, runs[0].Warnings, 2)
	assert.Equal(t, 4, runs[1].Frequencies)
	assert.True(t, runs[1].StartedAt.Equal(start))

	latest, err := s.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-1", latest.ID)

	// recording again replaces the row
	require.NoError(t, s.RecordRun(ctx, Run{ID: "run-2", StartedAt: start.Add(time.Hour), Status: "partial"}))
	runs, err = s.Runs(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "partial", runs[0].Status)
	assert.Empty(t, runs[0].Warnings)
}
