package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/inodb/oncofreq/internal/config"
	"github.com/inodb/oncofreq/internal/duckdb"
	"github.com/inodb/oncofreq/internal/knowledge"
	"github.com/inodb/oncofreq/internal/metrics"
	"github.com/inodb/oncofreq/internal/output"
	"github.com/inodb/oncofreq/internal/pipeline"
	"github.com/inodb/oncofreq/internal/snapshot"
)

func newRunCmd() *cobra.Command {
	var (
		dryRun       bool
		jsonOut      bool
		showRejected bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once",
		Long: `Extract, standardize, aggregate, link therapeutics and load the results.
Exits 0 on success, 1 when the run failed or only partially succeeded.`,
		Example: `  oncofreq run
  oncofreq run --dry-run --rejected
  oncofreq --config pipeline.yaml run --json`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			env, err := setup(dryRun)
			if err != nil {
				return err
			}
			defer env.close()

			sum, runErr := env.pipeline.Run(ctx, dryRun)
			report(cmd.OutOrStdout(), sum, jsonOut, showRejected)
			if runErr != nil {
				return runErr
			}
			if sum.Status != pipeline.StatusSuccess {
				return &exitError{code: ExitError}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Run without writing snapshots or loading the database")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the run summary as JSON")
	cmd.Flags().BoolVar(&showRejected, "rejected", false, "List records rejected by plausibility validation")

	return cmd
}

// runEnv holds what a pipeline run needs and what must be closed after it.
type runEnv struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    *duckdb.Store
	metrics  *metrics.Metrics
	pipeline *pipeline.Pipeline
}

func (e *runEnv) close() {
	if e.store != nil {
		e.store.Close()
	}
	e.logger.Sync()
}

// setup loads configuration and knowledge tables and wires the pipeline.
// A dry run opens no database.
func setup(dryRun bool) (*runEnv, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return nil, err
	}

	kb, err := knowledge.Load(cfg.Knowledge.Path)
	if err != nil {
		return nil, err
	}
	if !cfg.AnySourceEnabled() {
		return nil, &usageError{fmt.Errorf("no mutation source enabled (sources.cbioportal, sources.datahub, sources.cosmic)")}
	}

	env := &runEnv{cfg: cfg, logger: logger, metrics: metrics.New()}
	p := pipeline.New(cfg, kb)
	p.SetLogger(logger)
	p.SetMetrics(env.metrics)
	p.SetExtractors(pipeline.BuildExtractors(cfg, logger))
	if cfg.Snapshots.Enabled {
		p.SetSnapshots(snapshot.NewStore(cfg.Snapshots.Dir, cfg.Snapshots.Compress))
	}
	if !dryRun {
		store, err := duckdb.Open(cfg.Database.Path)
		if err != nil {
			return nil, err
		}
		store.SetLogger(logger)
		env.store = store
		p.SetSink(store)
	}
	env.pipeline = p
	return env, nil
}

func report(w io.Writer, sum *pipeline.Summary, jsonOut, showRejected bool) {
	if sum == nil {
		return
	}
	if jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.Encode(sum)
	} else {
		output.WriteRunSummary(w, sum.Run())
		if sum.Estimated > 0 {
			fmt.Fprintf(w, "  Estimated:       %d (best-effort denominators, not loaded)\n", sum.Estimated)
		}
		if !sum.DryRun {
			fmt.Fprintf(w, "  Loaded:          %d inserted, %d updated, %d failed, %d superseded\n",
				sum.Load.Inserted, sum.Load.Updated, sum.Load.Failed, sum.Load.Superseded)
		}
	}

	if showRejected && len(sum.Report.Rejected) > 0 {
		rw := output.NewRejectionWriter(w)
		fmt.Fprintln(w)
		rw.WriteHeader()
		for _, r := range sum.Report.Rejected {
			rw.Write(r)
		}
		rw.Flush()
	}
}
