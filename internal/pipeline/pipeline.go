// Package pipeline runs one bronze/silver/gold pass: extract, standardize,
// resolve denominators, aggregate, link therapeutics, snapshot and load.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/inodb/oncofreq/internal/aggregate"
	"github.com/inodb/oncofreq/internal/cancertype"
	"github.com/inodb/oncofreq/internal/config"
	"github.com/inodb/oncofreq/internal/datasource/oncokb"
	"github.com/inodb/oncofreq/internal/denominator"
	"github.com/inodb/oncofreq/internal/duckdb"
	"github.com/inodb/oncofreq/internal/extract"
	"github.com/inodb/oncofreq/internal/knowledge"
	"github.com/inodb/oncofreq/internal/metrics"
	"github.com/inodb/oncofreq/internal/mutation"
	"github.com/inodb/oncofreq/internal/snapshot"
	"github.com/inodb/oncofreq/internal/therapeutic"
	"github.com/inodb/oncofreq/internal/variant"
)

// InteractionSource fetches drug-gene interactions for a gene list.
type InteractionSource interface {
	Fetch(ctx context.Context, genes []string) (*extract.RawBatch, error)
}

// Sink receives the gold results of a run.
type Sink interface {
	Load(ctx context.Context, records []aggregate.FrequencyRecord) (duckdb.LoadResult, error)
	LoadCatalog(ctx context.Context, runID string, records []aggregate.OccurrenceRecord) (int, error)
	LoadAssociations(ctx context.Context, runID string, assocs []therapeutic.Association) (int, error)
	RecordRun(ctx context.Context, r duckdb.Run) error
}

// Pipeline wires the stages of one run. Collaborators left nil are skipped.
type Pipeline struct {
	cfg          *config.Config
	kb           *knowledge.Base
	extractors   []extract.Extractor
	interactions InteractionSource
	sink         Sink
	snapshots    *snapshot.Store
	metrics      *metrics.Metrics
	logger       *zap.Logger
	newID        func() string
}

// New creates a pipeline over cfg and the knowledge tables.
func New(cfg *config.Config, kb *knowledge.Base) *Pipeline {
	return &Pipeline{
		cfg:    cfg,
		kb:     kb,
		logger: zap.NewNop(),
		newID:  uuid.NewString,
	}
}

// SetLogger sets the logger.
func (p *Pipeline) SetLogger(l *zap.Logger) {
	p.logger = l
}

// SetExtractors sets the extractors and the interaction source.
func (p *Pipeline) SetExtractors(extractors []extract.Extractor, interactions InteractionSource) {
	p.extractors = extractors
	p.interactions = interactions
}

// SetSink sets where gold results are loaded.
func (p *Pipeline) SetSink(s Sink) {
	p.sink = s
}

// SetSnapshots sets the snapshot store.
func (p *Pipeline) SetSnapshots(s *snapshot.Store) {
	p.snapshots = s
}

// SetMetrics sets the metrics instruments.
func (p *Pipeline) SetMetrics(m *metrics.Metrics) {
	p.metrics = m
}

// Run executes one pass. A dry run skips snapshots and the sink. The summary
// is always returned; the error is non-nil when the run failed.
func (p *Pipeline) Run(ctx context.Context, dryRun bool) (*Summary, error) {
	sum := &Summary{
		RunID:      p.newID(),
		DryRun:     dryRun,
		StartedAt:  time.Now().UTC(),
		Extractors: len(p.extractors),
	}
	log := p.logger.With(zap.String("run_id", sum.RunID))

	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	err := p.run(ctx, log, sum, dryRun)
	sum.FinishedAt = time.Now().UTC()
	switch {
	case err != nil:
		sum.Status = StatusFailed
		sum.Error = err.Error()
	case sum.FailedExtractors > 0 || sum.Status == StatusPartial:
		sum.Status = StatusPartial
	default:
		sum.Status = StatusSuccess
	}

	if p.sink != nil && !dryRun {
		// the run context may be the one that expired
		if rerr := p.sink.RecordRun(context.WithoutCancel(ctx), sum.Run()); rerr != nil {
			log.Error("failed to record run", zap.Error(rerr))
		}
	}
	p.observe(log, sum)

	log.Info("run finished",
		zap.String("status", string(sum.Status)),
		zap.Duration("duration", sum.FinishedAt.Sub(sum.StartedAt)),
		zap.Int("frequencies", sum.Frequencies),
		zap.Int("rejected", sum.Rejected),
		zap.Int("catalog", sum.Catalog),
		zap.Int("associations", sum.Associations),
		zap.Int("warnings", len(sum.Warnings)))
	if err != nil {
		return sum, fmt.Errorf("run %s: %w", sum.RunID, err)
	}
	return sum, nil
}

func (p *Pipeline) run(ctx context.Context, log *zap.Logger, sum *Summary, dryRun bool) error {
	snaps := p.snapshots
	if dryRun {
		snaps = nil
	}

	// Bronze.
	if len(p.extractors) == 0 {
		return errors.New("no extractors enabled")
	}
	results, err := extract.RunAll(ctx, p.extractors, p.cfg.Concurrency, log)
	if err != nil {
		return err
	}
	var batches []*extract.RawBatch
	for _, r := range results {
		if p.metrics != nil {
			p.metrics.ObserveExtract(r.Name, r.Duration, r.Err)
		}
		if r.Err != nil {
			sum.FailedExtractors++
			sum.warn(fmt.Sprintf("%s: %v", r.Name, r.Err))
			continue
		}
		for _, w := range r.Batch.Warnings {
			sum.warn(fmt.Sprintf("%s: %s", r.Name, w))
		}
		sum.Extracted += r.Batch.Records()
		batches = append(batches, r.Batch)
		if err := p.write(snaps, sum.RunID, snapshot.Bronze, r.Name, r.Batch, r.Batch.Records()); err != nil {
			return err
		}
	}
	if len(batches) == 0 {
		return fmt.Errorf("all %d extractors failed", len(results))
	}

	// Silver.
	mapper := cancertype.NewMapper(nil).WithMappings(p.kb.CancerTypeMappings)
	var rawStudies, evidence, rawInteractions []map[string]any
	for _, b := range batches {
		rawStudies = append(rawStudies, b.Studies...)
		evidence = append(evidence, b.Evidence...)
		rawInteractions = append(rawInteractions, b.Interactions...)
	}
	studies, err := denominator.DecodeStudies(rawStudies)
	if err != nil {
		return fmt.Errorf("decode studies: %w", err)
	}
	sum.Studies = len(studies)
	labels := make(map[string]string, len(studies))
	for _, s := range studies {
		labels[s.StudyID] = s.Label()
	}

	std := mutation.NewStandardizer(mapper)
	std.SetLogger(log)
	var muts mutation.Batch
	for _, b := range batches {
		switch b.Source {
		case mutation.SourceCBioPortal:
			muts.Append(std.StandardizeCBioPortal(b.Mutations, labels))
		case mutation.SourceCOSMIC:
			muts.Append(std.StandardizeCOSMIC(b.Mutations))
		}
	}
	sum.Standardized = len(muts.Mutations)
	sum.Malformed = muts.Malformed
	if err := p.write(snaps, sum.RunID, snapshot.Silver, "mutations", muts.Mutations, len(muts.Mutations)); err != nil {
		return err
	}

	resolver := denominator.NewResolver(mapper)
	denoms, missing := resolver.Resolve(studies)
	sum.Denominators = denoms.Len()
	for _, m := range missing {
		sum.warn(m.Error())
	}
	if err := p.write(snaps, sum.RunID, snapshot.Silver, "denominators", denoms.List(), denoms.Len()); err != nil {
		return err
	}

	// Gold.
	agg := aggregate.NewAggregator(p.aggregateOptions())
	agg.SetLogger(log)
	res := agg.Aggregate(muts.Mutations, denoms)
	sum.Aggregation = res.Stats
	sum.Frequencies = len(res.Records)
	sum.Rejected = len(res.Rejected)
	sum.Report.Frequencies = res.Records
	sum.Report.Rejected = res.Rejected

	if p.cfg.Aggregation.BestEffortDenominators && len(res.Orphans) > 0 {
		estimated := resolver.ResolveBestEffort(studies, p.kb.CohortSizes)
		if estimated.Len() > 0 {
			est := agg.Aggregate(res.Orphans, estimated)
			sum.EstimatedRecords = est.Records
			sum.Estimated = len(est.Records)
			log.Warn("best-effort denominators in use",
				zap.Strings("studies", estimated.StudyIDs()),
				zap.Int("records", len(est.Records)))
		}
	}

	sum.Report.Catalog = aggregate.Catalog(res.Orphans)
	sum.Catalog = len(sum.Report.Catalog)

	interactions, err := p.interactionsFor(ctx, log, sum, snaps, res.Records, evidence, rawInteractions)
	if err != nil {
		return err
	}
	linker := therapeutic.NewLinker(p.kb, variant.NewHotspotTable(p.kb.Hotspots))
	linker.SetLogger(log)
	if path := p.cfg.Knowledge.CancerGeneList; path != "" {
		list, err := oncokb.LoadCancerGeneList(path)
		if err != nil {
			return &knowledge.FatalConfigurationError{Resource: path, Err: err}
		}
		linker.SetOncogenes(list.Oncogenes())
	}
	sum.Report.Associations = linker.Associate(res.Records, interactions)
	sum.Associations = len(sum.Report.Associations)

	genes := therapeutic.SummarizeByGene(sum.Report.Associations)
	gold := []goldSnapshot{
		{"frequencies", res.Records, len(res.Records)},
		{"rejected", res.Rejected, len(res.Rejected)},
		{"catalog", sum.Report.Catalog, sum.Catalog},
		{"associations", sum.Report.Associations, sum.Associations},
		{"gene_summary", genes, len(genes)},
	}
	if sum.Estimated > 0 {
		gold = append(gold, goldSnapshot{"frequencies_estimated", sum.EstimatedRecords, sum.Estimated})
	}
	for _, g := range gold {
		if err := p.write(snaps, sum.RunID, snapshot.Gold, g.name, g.v, g.records); err != nil {
			return err
		}
	}

	if p.sink == nil || dryRun {
		return nil
	}
	return p.load(ctx, sum, res)
}

type goldSnapshot struct {
	name    string
	v       any
	records int
}

func (p *Pipeline) aggregateOptions() aggregate.Options {
	a := p.cfg.Aggregation
	opts := aggregate.Options{
		Z: aggregate.ZForConfidence(a.ConfidenceLevel),
		Plausibility: aggregate.Plausibility{
			MaxFrequency:      a.MaxFrequency,
			MaxCIWidth:        a.MaxCIWidth,
			HotspotFloorRatio: a.HotspotFloorRatio,
		},
		Hotspots: variant.NewHotspotTable(p.kb.Hotspots),
	}
	if a.CheckExpectations {
		opts.Plausibility.Expectations = p.kb.Expectations
	} else {
		opts.Plausibility.HotspotFloorRatio = 0
	}
	return opts
}

// interactionsFor gathers drug-gene interactions for the genes of records:
// interactions delivered by extractors, CIViC clinical evidence, and the
// interaction source. A failing interaction source makes the run partial.
func (p *Pipeline) interactionsFor(ctx context.Context, log *zap.Logger, sum *Summary, snaps *snapshot.Store,
	records []aggregate.FrequencyRecord, evidence, raw []map[string]any) ([]therapeutic.Interaction, error) {

	if p.interactions != nil && len(records) > 0 {
		genes := genesOf(records)
		batch, err := p.interactions.Fetch(ctx, genes)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			sum.Status = StatusPartial
			sum.warn(fmt.Sprintf("interactions: %v", err))
			log.Warn("interaction source failed", zap.Error(err))
		} else {
			raw = append(raw, batch.Interactions...)
			if err := p.write(snaps, sum.RunID, snapshot.Bronze, batch.Name, batch, batch.Records()); err != nil {
				return nil, err
			}
		}
	}

	interactions, err := therapeutic.DecodeInteractions(raw)
	if err != nil {
		return nil, fmt.Errorf("decode interactions: %w", err)
	}
	clinical, skipped := therapeutic.FromCIViC(evidence)
	if skipped > 0 {
		log.Debug("skipped clinical evidence rows", zap.Int("rows", skipped))
	}
	for _, c := range clinical {
		interactions = append(interactions, c.Interactions()...)
	}
	sum.Interactions = len(interactions)
	return interactions, nil
}

func (p *Pipeline) load(ctx context.Context, sum *Summary, res *aggregate.Result) error {
	loaded, err := p.sink.Load(ctx, res.Records)
	if err != nil {
		return fmt.Errorf("load frequencies: %w", err)
	}
	sum.Load = loaded
	if loaded.Superseded > 0 {
		sum.warn(fmt.Sprintf("%d frequency records shared a sink key with a larger group and were not loaded", loaded.Superseded))
	}
	if _, err := p.sink.LoadCatalog(ctx, sum.RunID, sum.Report.Catalog); err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	if _, err := p.sink.LoadAssociations(ctx, sum.RunID, sum.Report.Associations); err != nil {
		return fmt.Errorf("load associations: %w", err)
	}
	return nil
}

func (p *Pipeline) write(store *snapshot.Store, runID string, layer snapshot.Layer, name string, v any, records int) error {
	if store == nil {
		return nil
	}
	meta, err := store.Write(runID, layer, name, v, records)
	if err != nil {
		return fmt.Errorf("%s snapshot %s: %w", layer, name, err)
	}
	p.logger.Debug("wrote snapshot", zap.String("path", meta.Path), zap.Int("records", records))
	return nil
}

func (p *Pipeline) observe(log *zap.Logger, sum *Summary) {
	m := p.metrics
	if m == nil {
		return
	}
	m.AddRecords(metrics.StageExtracted, sum.Extracted)
	m.AddRecords(metrics.StageStandardized, sum.Standardized)
	m.AddRecords(metrics.StageMalformed, sum.Malformed+sum.Aggregation.Malformed)
	m.AddRecords(metrics.StageOrphaned, sum.Aggregation.NoDenominator)
	m.AddRecords(metrics.StageFrequencies, sum.Frequencies)
	m.AddRecords(metrics.StageRejected, sum.Rejected)
	m.AddRecords(metrics.StageCatalog, sum.Catalog)
	m.AddRecords(metrics.StageAssociations, sum.Associations)
	m.AddRecords(metrics.StageLoaded, sum.Load.Inserted+sum.Load.Updated)
	for _, r := range sum.Report.Rejected {
		m.ObserveRejection(r.Codes())
	}
	m.ObserveRun(string(sum.Status), sum.FinishedAt, sum.FinishedAt.Sub(sum.StartedAt))

	if path := p.cfg.Metrics.Textfile; path != "" {
		if err := m.WriteTextfile(path); err != nil {
			log.Error("failed to write metrics", zap.Error(err))
		}
	}
}

func genesOf(records []aggregate.FrequencyRecord) []string {
	seen := make(map[string]bool)
	var genes []string
	for _, r := range records {
		if !seen[r.GeneSymbol] {
			seen[r.GeneSymbol] = true
			genes = append(genes, r.GeneSymbol)
		}
	}
	sort.Strings(genes)
	return genes
}
