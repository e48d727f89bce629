package aggregate

import (
	"sort"

	"go.uber.org/zap"

	"github.com/inodb/oncofreq/internal/denominator"
	"github.com/inodb/oncofreq/internal/mutation"
	"github.com/inodb/oncofreq/internal/variant"
)

// Options configures an Aggregator.
type Options struct {
	// Z is the normal critical value of the confidence interval. Zero means DefaultZ.
	Z            float64
	Plausibility Plausibility
	// Hotspots flags records at hotspot codons. Nil means the built-in table.
	Hotspots variant.HotspotTable
}

// DefaultOptions returns 95% intervals with the default plausibility thresholds.
func DefaultOptions() Options {
	return Options{
		Z:            DefaultZ,
		Plausibility: DefaultPlausibility(),
	}
}

// Stats counts what happened to the input of one aggregation.
type Stats struct {
	Input           int `json:"input"`
	Malformed       int `json:"malformed"`
	NoDenominator   int `json:"no_denominator"`
	Groups          int `json:"groups"`
	ZeroDenominator int `json:"zero_denominator"`
	Rejected        int `json:"rejected"`
	Emitted         int `json:"emitted"`
}

// Result is the outcome of one aggregation.
type Result struct {
	// Records are the valid population_frequency records, sorted by key.
	Records []FrequencyRecord
	// Rejected are records that failed plausibility validation, sorted by key.
	Rejected []*PlausibilityRejection
	// Orphans are mutations whose study has no denominator. They belong to
	// the occurrence catalog, never to a frequency.
	Orphans []mutation.StandardizedMutation
	// Malformed are mutations missing a gene, cancer type or sample id.
	Malformed []*mutation.MalformedRecordError
	// MissingStudies are the sorted ids of studies referenced without a denominator.
	MissingStudies []string
	Stats          Stats
}

// Aggregator computes mutation frequencies over one in-memory batch.
// It holds no state between calls.
type Aggregator struct {
	opts   Options
	logger *zap.Logger
}

// NewAggregator creates an aggregator.
func NewAggregator(opts Options) *Aggregator {
	if opts.Z <= 0 {
		opts.Z = DefaultZ
	}
	if opts.Hotspots == nil {
		opts.Hotspots = variant.DefaultHotspots()
	}
	return &Aggregator{opts: opts, logger: zap.NewNop()}
}

// SetLogger sets the logger for rejection warnings.
func (a *Aggregator) SetLogger(l *zap.Logger) {
	a.logger = l
}

// group accumulates the mutations of one Key.
type group struct {
	key       Key
	rows      int
	samples   map[string]struct{}
	studies   map[string]int
	estimated bool
	changes   map[string]struct{}
	refs      map[string]struct{}
	alts      map[string]struct{}
	positions map[int64]struct{}
}

func newGroup(k Key) *group {
	return &group{
		key:       k,
		samples:   make(map[string]struct{}),
		studies:   make(map[string]int),
		changes:   make(map[string]struct{}),
		refs:      make(map[string]struct{}),
		alts:      make(map[string]struct{}),
		positions: make(map[int64]struct{}),
	}
}

func (g *group) add(m mutation.StandardizedMutation, sd denominator.StudyDenominator) {
	g.rows++
	g.samples[m.SampleID] = struct{}{}
	g.studies[sd.StudyID] = sd.SampleCount
	g.estimated = g.estimated || sd.Estimated
	if m.ProteinChange != "" {
		g.changes[m.ProteinChange] = struct{}{}
	}
	if m.ReferenceAllele != "" {
		g.refs[m.ReferenceAllele] = struct{}{}
	}
	if m.VariantAllele != "" {
		g.alts[m.VariantAllele] = struct{}{}
	}
	if m.StartPosition > 0 {
		g.positions[m.StartPosition] = struct{}{}
	}
}

// Aggregate groups mutations by Key and computes one frequency record per group.
// Each contributing study's denominator is counted once per group, however
// many mutations it contributes.
func (a *Aggregator) Aggregate(muts []mutation.StandardizedMutation, denoms denominator.Denominators) *Result {
	res := &Result{Stats: Stats{Input: len(muts)}}
	groups := make(map[Key]*group)
	missing := make(map[string]struct{})

	for i, m := range muts {
		if field := missingField(m); field != "" {
			res.Malformed = append(res.Malformed, &mutation.MalformedRecordError{
				Source: m.Source, Index: i, Field: field, Reason: "required for aggregation",
			})
			continue
		}
		sd, ok := denoms.Get(m.StudyID)
		if !ok {
			res.Orphans = append(res.Orphans, m)
			missing[m.StudyID] = struct{}{}
			continue
		}
		if m.SampleID == "" {
			res.Malformed = append(res.Malformed, &mutation.MalformedRecordError{
				Source: m.Source, Index: i, Field: "sample_id", Reason: "required for aggregation",
			})
			continue
		}

		k := KeyOf(m)
		g, ok := groups[k]
		if !ok {
			g = newGroup(k)
			groups[k] = g
		}
		g.add(m, sd)
	}

	keys := make([]Key, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].less(keys[j]) })

	for _, k := range keys {
		rec, ok := a.finalize(groups[k])
		if !ok {
			res.Stats.ZeroDenominator++
			continue
		}

		violations := a.opts.Plausibility.Check(rec)
		if len(violations) == 0 {
			rec.IsValid = true
			res.Records = append(res.Records, rec)
			continue
		}

		for _, v := range violations {
			rec.RejectionReasons = append(rec.RejectionReasons, v.Message)
		}
		rej := &PlausibilityRejection{Record: rec, Violations: violations}
		res.Rejected = append(res.Rejected, rej)
		a.logger.Warn("rejected implausible frequency",
			zap.String("gene", rec.GeneSymbol),
			zap.String("cancer_type", rec.CancerType),
			zap.String("variant", rec.Variant),
			zap.Int("samples_with_mutation", rec.MutationCount),
			zap.Int("total_samples", rec.TotalSamples),
			zap.Float64("frequency", rec.Frequency),
			zap.Strings("reasons", rej.Codes()))
	}

	for id := range missing {
		res.MissingStudies = append(res.MissingStudies, id)
	}
	sort.Strings(res.MissingStudies)

	res.Stats.Malformed = len(res.Malformed)
	res.Stats.NoDenominator = len(res.Orphans)
	res.Stats.Groups = len(groups)
	res.Stats.Rejected = len(res.Rejected)
	res.Stats.Emitted = len(res.Records)

	if len(res.MissingStudies) > 0 {
		a.logger.Info("mutations without denominator routed to catalog",
			zap.Int("mutations", len(res.Orphans)),
			zap.Strings("studies", res.MissingStudies))
	}
	return res
}

func (a *Aggregator) finalize(g *group) (FrequencyRecord, bool) {
	total := 0
	studyIDs := make([]string, 0, len(g.studies))
	for id, n := range g.studies {
		total += n
		studyIDs = append(studyIDs, id)
	}
	if total <= 0 {
		return FrequencyRecord{}, false
	}
	sort.Strings(studyIDs)

	mutated := len(g.samples)
	iv := WilsonInterval(mutated, total, a.opts.Z)

	proteinChange := firstSorted(g.changes)
	return FrequencyRecord{
		GeneSymbol:           g.key.Gene,
		CancerType:           g.key.CancerType,
		ProteinChange:        proteinChange,
		Variant:              g.key.Variant,
		Position:             smallest(g.positions),
		ReferenceAllele:      firstSorted(g.refs),
		VariantAllele:        firstSorted(g.alts),
		MutationCount:        mutated,
		OccurrenceCount:      g.rows,
		TotalSamples:         total,
		Frequency:            iv.Point,
		CILow:                iv.Low,
		CIHigh:               iv.High,
		IsHotspot:            a.opts.Hotspots.IsHotspotChange(g.key.Gene, proteinChange),
		StudyIDs:             studyIDs,
		QualityTier:          TierPopulationFrequency,
		DenominatorEstimated: g.estimated,
	}, true
}

func missingField(m mutation.StandardizedMutation) string {
	switch {
	case m.GeneSymbol == "":
		return "gene_symbol"
	case m.CancerType == "":
		return "cancer_type"
	}
	return ""
}

// firstSorted returns the lexicographically smallest value, or "".
func firstSorted(set map[string]struct{}) string {
	first, found := "", false
	for v := range set {
		if !found || v < first {
			first, found = v, true
		}
	}
	return first
}

func smallest(set map[int64]struct{}) int64 {
	var low int64
	for v := range set {
		if low == 0 || v < low {
			low = v
		}
	}
	return low
}
