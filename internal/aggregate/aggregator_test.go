package aggregate

import (
	"encoding/json"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/oncofreq/internal/denominator"
	"github.com/inodb/oncofreq/internal/knowledge"
	"github.com/inodb/oncofreq/internal/mutation"
)

func mut(gene, cancerType, change, study, sample string) mutation.StandardizedMutation {
	return mutation.StandardizedMutation{
		GeneSymbol:      gene,
		CancerType:      cancerType,
		ProteinChange:   change,
		ReferenceAllele: "A",
		VariantAllele:   "T",
		StudyID:         study,
		SampleID:        mutation.SampleKey(study, sample),
		Source:          mutation.SourceCBioPortal,
	}
}

func denoms(pairs ...any) denominator.Denominators {
	var list []denominator.StudyDenominator
	for i := 0; i+1 < len(pairs); i += 2 {
		list = append(list, denominator.StudyDenominator{
			StudyID:     pairs[i].(string),
			SampleCount: pairs[i+1].(int),
			Field:       denominator.FieldSequenced,
		})
	}
	return denominator.NewDenominators(list...)
}

func TestAggregate_EndToEndBRAF(t *testing.T) {
	muts := []mutation.StandardizedMutation{
		mut("BRAF", "Melanoma", "p.V600E", "skcm_study", "S1"),
		mut("BRAF", "Melanoma", "p.V600E", "skcm_study", "S2"),
		mut("BRAF", "Melanoma", "p.V600E", "skcm_study", "S3"),
	}

	res := NewAggregator(DefaultOptions()).Aggregate(muts, denoms("skcm_study", 450))

	require.Len(t, res.Records, 1)
	assert.Empty(t, res.Rejected)
	rec := res.Records[0]
	assert.Equal(t, "BRAF", rec.GeneSymbol)
	assert.Equal(t, "Melanoma", rec.CancerType)
	assert.Equal(t, "p.V600E", rec.ProteinChange)
	assert.Equal(t, 3, rec.MutationCount)
	assert.Equal(t, 450, rec.TotalSamples)
	assert.Equal(t, 0.0067, rec.Frequency)
	assert.Equal(t, 0.0023, rec.CILow)
	assert.Equal(t, 0.0194, rec.CIHigh)
	assert.Less(t, rec.CIWidth(), 0.02)
	assert.Equal(t, TierPopulationFrequency, rec.QualityTier)
	assert.True(t, rec.IsValid)
	assert.True(t, rec.IsHotspot)
	assert.Equal(t, []string{"skcm_study"}, rec.StudyIDs)
	assert.Equal(t, Stats{Input: 3, Groups: 1, Emitted: 1}, res.Stats)
}

func TestAggregate_DenominatorConservation(t *testing.T) {
	var muts []mutation.StandardizedMutation
	for i := range 50 {
		muts = append(muts, mut("TP53", "Breast", "p.R175H", "brca_study", fmt.Sprintf("S%d", i)))
	}
	// repeated rows for the same samples never inflate the denominator either
	muts = append(muts, muts[:10]...)

	res := NewAggregator(DefaultOptions()).Aggregate(muts, denoms("brca_study", 500))

	require.Len(t, res.Records, 1)
	rec := res.Records[0]
	assert.Equal(t, 500, rec.TotalSamples)
	assert.Equal(t, 50, rec.MutationCount)
	assert.Equal(t, 60, rec.OccurrenceCount)
	assert.Equal(t, 0.1, rec.Frequency)
}

func TestAggregate_SumsDistinctStudies(t *testing.T) {
	muts := []mutation.StandardizedMutation{
		mut("KRAS", "Pancreatic", "p.G12D", "study_a", "S1"),
		mut("KRAS", "Pancreatic", "p.G12D", "study_a", "S2"),
		mut("KRAS", "Pancreatic", "p.G12D", "study_b", "S1"),
		mut("KRAS", "Pancreatic", "p.G12D", "study_b", "S9"),
		mut("KRAS", "Pancreatic", "p.G12D", "study_b", "S9"),
	}

	res := NewAggregator(DefaultOptions()).Aggregate(muts, denoms("study_a", 100, "study_b", 50, "study_c", 999))

	require.Len(t, res.Records, 1)
	rec := res.Records[0]
	assert.Equal(t, 150, rec.TotalSamples, "study_c contributes nothing")
	assert.Equal(t, 4, rec.MutationCount, "sample ids are study scoped")
	assert.Equal(t, []string{"study_a", "study_b"}, rec.StudyIDs)
}

func TestWilsonInterval(t *testing.T) {
	iv := WilsonInterval(30, 100, DefaultZ)
	assert.Equal(t, 0.3, iv.Point)

	// closed-form reference
	p, n, z := 0.3, 100.0, 1.96
	denom := 1 + z*z/n
	center := (p + z*z/(2*n)) / denom
	margin := z * math.Sqrt(p*(1-p)/n+z*z/(4*n*n)) / denom
	assert.Equal(t, math.Round((center-margin)*1e4)/1e4, iv.Low)
	assert.Equal(t, math.Round((center+margin)*1e4)/1e4, iv.High)
	assert.Equal(t, 0.2189, iv.Low)
	assert.Equal(t, 0.3959, iv.High)
}

func TestWilsonInterval_Edges(t *testing.T) {
	tests := []struct {
		name              string
		successes, trials int
		want              Interval
	}{
		{"no trials", 3, 0, Interval{}},
		{"zero successes", 0, 10, Interval{Point: 0, Low: 0, High: 0.2775}},
		{"all successes", 10, 10, Interval{Point: 1, Low: 0.7225, High: 1}},
		{"more successes than trials", 3, 2, Interval{Point: 1.5, Low: 0, High: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WilsonInterval(tt.successes, tt.trials, DefaultZ))
		})
	}
}

func TestZForConfidence(t *testing.T) {
	assert.Equal(t, DefaultZ, ZForConfidence(0.95))
	assert.Equal(t, DefaultZ, ZForConfidence(0))
	assert.InDelta(t, 2.5758, ZForConfidence(0.99), 1e-4)
	assert.InDelta(t, 1.6449, ZForConfidence(0.90), 1e-4)
}

func TestAggregate_Bounds(t *testing.T) {
	var muts []mutation.StandardizedMutation
	genes := []string{"KRAS", "TP53", "EGFR", "PIK3CA"}
	for i := range 400 {
		gene := genes[i%len(genes)]
		study := fmt.Sprintf("study_%d", i%3)
		muts = append(muts, mut(gene, "NSCLC", fmt.Sprintf("p.G%dD", i%5+1), study, fmt.Sprintf("S%d", i%37)))
	}

	res := NewAggregator(DefaultOptions()).Aggregate(muts, denoms("study_0", 300, "study_1", 200, "study_2", 250))
	require.NotEmpty(t, res.Records)

	for _, r := range res.Records {
		assert.GreaterOrEqual(t, r.Frequency, 0.0)
		assert.LessOrEqual(t, r.Frequency, 1.0)
		assert.LessOrEqual(t, r.MutationCount, r.TotalSamples)
		assert.LessOrEqual(t, r.CILow, r.Frequency)
		assert.GreaterOrEqual(t, r.CIHigh, r.Frequency)
	}
}

func TestAggregate_MissingDenominatorExcluded(t *testing.T) {
	muts := []mutation.StandardizedMutation{
		mut("BRAF", "Melanoma", "p.V600E", "skcm_study", "S1"),
		mut("BRAF", "Melanoma", "p.V600E", "unknown_study", "S2"),
		mut("BRAF", "Melanoma", "p.V600K", "unknown_study", "S3"),
		mut("NRAS", "Melanoma", "p.Q61R", "other_unknown", "S4"),
	}

	res := NewAggregator(DefaultOptions()).Aggregate(muts, denoms("skcm_study", 450))

	require.Len(t, res.Records, 1)
	assert.Equal(t, 1, res.Records[0].MutationCount)
	assert.Equal(t, []string{"skcm_study"}, res.Records[0].StudyIDs)
	for _, r := range res.Records {
		assert.NotEqual(t, "p.V600K", r.ProteinChange)
		assert.NotEqual(t, "NRAS", r.GeneSymbol)
	}

	assert.Len(t, res.Orphans, 3)
	assert.Equal(t, []string{"other_unknown", "unknown_study"}, res.MissingStudies)
	assert.Equal(t, 3, res.Stats.NoDenominator)

	catalog := Catalog(res.Orphans)
	require.Len(t, catalog, 2)
	assert.Equal(t, TierOccurrenceCount, catalog[0].QualityTier)
	assert.Nil(t, catalog[0].Frequency)
}

func TestAggregate_PlausibilityGate(t *testing.T) {
	var muts []mutation.StandardizedMutation
	for i := range 99 {
		muts = append(muts, mut("TP53", "Ovarian", "p.R248Q", "ov_study", fmt.Sprintf("S%d", i)))
	}

	res := NewAggregator(DefaultOptions()).Aggregate(muts, denoms("ov_study", 100))

	assert.Empty(t, res.Records)
	require.Len(t, res.Rejected, 1)
	rej := res.Rejected[0]
	assert.Equal(t, 0.99, rej.Record.Frequency)
	assert.False(t, rej.Record.IsValid)
	assert.Equal(t, []string{CodeFrequencyAboveMax}, rej.Codes())
	assert.Len(t, rej.Record.RejectionReasons, 1)
	assert.Contains(t, rej.Error(), "TP53")
	assert.Equal(t, 1, res.Stats.Rejected)
}

func TestPlausibility_GatesUnroundedProportion(t *testing.T) {
	p := DefaultPlausibility()
	rec := FrequencyRecord{
		GeneSymbol: "KRAS", CancerType: "Pancreatic", ProteinChange: "p.G12D",
		MutationCount: 23751, TotalSamples: 25000,
		Frequency: 0.95, CILow: 0.9473, CIHigh: 0.9527,
	}
	assert.Equal(t, []string{CodeFrequencyAboveMax}, codesOf(p.Check(rec)))

	rec.MutationCount = 23750
	assert.Empty(t, p.Check(rec), "exactly the maximum passes")
}

func codesOf(vs []Violation) []string {
	var out []string
	for _, v := range vs {
		out = append(out, v.Code)
	}
	return out
}

func TestAggregate_WideIntervalRejected(t *testing.T) {
	muts := []mutation.StandardizedMutation{
		mut("EGFR", "NSCLC", "p.L858R", "tiny", "S1"),
		mut("EGFR", "NSCLC", "p.L858R", "tiny", "S2"),
	}

	res := NewAggregator(DefaultOptions()).Aggregate(muts, denoms("tiny", 5))
	require.Len(t, res.Rejected, 1)
	assert.Equal(t, []string{CodeCITooWide}, res.Rejected[0].Codes())

	// the width threshold is configurable
	opts := DefaultOptions()
	opts.Plausibility.MaxCIWidth = 0.9
	res = NewAggregator(opts).Aggregate(muts, denoms("tiny", 5))
	assert.Len(t, res.Records, 1)
}

func TestAggregate_ExceedsDenominator(t *testing.T) {
	muts := []mutation.StandardizedMutation{
		mut("KRAS", "Colorectal", "p.G12D", "bad", "S1"),
		mut("KRAS", "Colorectal", "p.G12D", "bad", "S2"),
		mut("KRAS", "Colorectal", "p.G12D", "bad", "S3"),
	}

	res := NewAggregator(DefaultOptions()).Aggregate(muts, denoms("bad", 2))
	assert.Empty(t, res.Records)
	require.Len(t, res.Rejected, 1)
	assert.Equal(t, []string{CodeExceedsDenominator, CodeFrequencyAboveMax, CodeCITooWide}, res.Rejected[0].Codes())
}

func TestAggregate_HotspotExpectation(t *testing.T) {
	kb, err := knowledge.Default()
	require.NoError(t, err)

	muts := []mutation.StandardizedMutation{
		mut("BRAF", "Melanoma", "p.V600E", "skcm_study", "S1"),
		mut("BRAF", "Melanoma", "p.V600E", "skcm_study", "S2"),
		mut("BRAF", "Melanoma", "p.V600E", "skcm_study", "S3"),
	}
	for i := range 200 {
		muts = append(muts, mut("BRAF", "Thyroid", "p.V600E", "thca_study", fmt.Sprintf("T%d", i)))
	}

	opts := DefaultOptions()
	opts.Plausibility.Expectations = kb.Expectations
	res := NewAggregator(opts).Aggregate(muts, denoms("skcm_study", 450, "thca_study", 400))

	require.Len(t, res.Records, 1)
	assert.Equal(t, "Thyroid", res.Records[0].CancerType)
	require.Len(t, res.Rejected, 1)
	assert.Equal(t, "Melanoma", res.Rejected[0].Record.CancerType)
	assert.Equal(t, []string{CodeBelowHotspotExpectation}, res.Rejected[0].Codes())

	// overridable: a zero floor ratio turns the check off
	opts.Plausibility.HotspotFloorRatio = 0
	res = NewAggregator(opts).Aggregate(muts, denoms("skcm_study", 450, "thca_study", 400))
	assert.Len(t, res.Records, 2)
	assert.Empty(t, res.Rejected)
}

func TestAggregate_Deterministic(t *testing.T) {
	build := func() []mutation.StandardizedMutation {
		var muts []mutation.StandardizedMutation
		refs := []string{"G", "C", "A"}
		for i := range 30 {
			m := mut("PIK3CA", "Breast", "p.H1047R", fmt.Sprintf("study_%d", i%2), fmt.Sprintf("S%d", i))
			m.ReferenceAllele = refs[i%len(refs)]
			m.StartPosition = int64(179234297 - i%2)
			muts = append(muts, m)
			muts = append(muts, mut("PIK3CA", "Colorectal", "p.E545K", "study_1", fmt.Sprintf("C%d", i)))
			muts = append(muts, mut("AKT1", "Breast", "", "study_0", fmt.Sprintf("A%d", i)))
		}
		return muts
	}

	d := denoms("study_0", 200, "study_1", 180)
	agg := NewAggregator(DefaultOptions())

	first, err := json.Marshal(agg.Aggregate(build(), d).Records)
	require.NoError(t, err)
	second, err := json.Marshal(agg.Aggregate(build(), d).Records)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))

	reversed := build()
	for i, j := 0, len(reversed)-1; i < j; i, j = i+1, j-1 {
		reversed[i], reversed[j] = reversed[j], reversed[i]
	}
	third, err := json.Marshal(agg.Aggregate(reversed, d).Records)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(third), "input order does not matter")

	res := agg.Aggregate(build(), d)
	require.Len(t, res.Records, 3)
	assert.Equal(t, "AKT1", res.Records[0].GeneSymbol)
	assert.Equal(t, UnknownVariant, res.Records[0].Variant)
	assert.Equal(t, "PIK3CA", res.Records[1].GeneSymbol)
	assert.Equal(t, "Breast", res.Records[1].CancerType)
	assert.Equal(t, "A", res.Records[1].ReferenceAllele, "lexicographic minimum")
	assert.Equal(t, int64(179234296), res.Records[1].Position)
}

func TestAggregate_Malformed(t *testing.T) {
	muts := []mutation.StandardizedMutation{
		mut("", "Breast", "p.R175H", "s", "S1"),
		mut("TP53", "", "p.R175H", "s", "S2"),
		mut("TP53", "Breast", "p.R175H", "s", ""),
		mut("TP53", "Breast", "p.R175H", "s", "S4"),
	}

	opts := DefaultOptions()
	opts.Plausibility.MaxCIWidth = 0
	res := NewAggregator(opts).Aggregate(muts, denoms("s", 10))

	require.Len(t, res.Malformed, 3)
	assert.Equal(t, "gene_symbol", res.Malformed[0].Field)
	assert.Equal(t, "cancer_type", res.Malformed[1].Field)
	assert.Equal(t, "sample_id", res.Malformed[2].Field)
	require.Len(t, res.Records, 1)
	assert.Equal(t, 1, res.Records[0].MutationCount)
}

func TestAggregate_PositionVariantKey(t *testing.T) {
	m := mut("TERT", "Melanoma", "", "s", "S1")
	m.StartPosition = 1295228
	assert.Equal(t, Key{Gene: "TERT", CancerType: "Melanoma", Variant: "1295228"}, KeyOf(m))
}

func TestAggregate_EstimatedDenominator(t *testing.T) {
	d := denominator.NewDenominators(denominator.StudyDenominator{
		StudyID: "est", SampleCount: 470, CancerType: "Melanoma", Estimated: true,
	})
	var muts []mutation.StandardizedMutation
	for i := range 20 {
		muts = append(muts, mut("NRAS", "Melanoma", "p.Q61R", "est", fmt.Sprintf("S%d", i)))
	}

	res := NewAggregator(DefaultOptions()).Aggregate(muts, d)
	require.Len(t, res.Records, 1)
	assert.True(t, res.Records[0].DenominatorEstimated)
}

func TestCatalog(t *testing.T) {
	muts := []mutation.StandardizedMutation{
		{GeneSymbol: "BRAF", PrimarySite: "skin", ProteinChange: "p.V600E", SampleID: "cosmic:1", Source: mutation.SourceCOSMIC},
		{GeneSymbol: "BRAF", PrimarySite: "skin", ProteinChange: "p.V600E", SampleID: "cosmic:2", Source: mutation.SourceCOSMIC},
		{GeneSymbol: "BRAF", PrimarySite: "skin", ProteinChange: "p.V600K", SampleID: "cosmic:2", Source: mutation.SourceCOSMIC},
		{GeneSymbol: "BRAF", CancerType: "Melanoma", ProteinChange: "p.V600E", SampleID: "x:1", Source: mutation.SourceCBioPortal},
		{GeneSymbol: "EGFR", ProteinChange: "p.L858R", Source: mutation.SourceCOSMIC},
		{GeneSymbol: "", PrimarySite: "lung"},
	}

	out := Catalog(muts)
	require.Len(t, out, 3)

	assert.Equal(t, "BRAF", out[0].GeneSymbol)
	assert.Equal(t, "Melanoma", out[0].Site)
	assert.Equal(t, []string{"cbioportal"}, out[0].Sources)

	skin := out[1]
	assert.Equal(t, "skin", skin.Site)
	assert.Equal(t, 3, skin.OccurrenceCount)
	assert.Equal(t, 2, skin.UniqueSamples)
	assert.Equal(t, 2, skin.UniqueVariants)
	assert.Equal(t, []VariantCount{{"p.V600E", 2}, {"p.V600K", 1}}, skin.TopVariants)
	assert.Nil(t, skin.Frequency)

	assert.Equal(t, "EGFR", out[2].GeneSymbol)
	assert.Equal(t, "Unknown", out[2].Site)

	data, err := json.Marshal(skin)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"frequency":null`)
}
