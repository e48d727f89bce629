package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/inodb/oncofreq/internal/duckdb"
	"github.com/inodb/oncofreq/internal/output"
)

func newExportCmd() *cobra.Command {
	var (
		format     string
		outputFile string
		what       string
		filter     duckdb.Filter
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export loaded results as TSV or xlsx",
		Long: `Export frequencies from the database. TSV writes one table (--table
frequencies or associations); xlsx writes a workbook with frequencies, the
occurrence catalog and therapeutic associations of the latest run.`,
		Example: `  oncofreq export > frequencies.tsv
  oncofreq export --gene BRAF --min-samples 100
  oncofreq export --table associations -o associations.tsv
  oncofreq export --format xlsx -o oncofreq.xlsx`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch format {
			case "tsv":
				if what != "frequencies" && what != "associations" {
					return &usageError{fmt.Errorf("unknown table %q", what)}
				}
			case "xlsx":
				if outputFile == "" {
					return &usageError{errors.New("--output is required for xlsx")}
				}
			default:
				return &usageError{fmt.Errorf("unknown format %q", format)}
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Database.Path == "" {
				return &usageError{errors.New("database.path is not set")}
			}
			if _, err := os.Stat(cfg.Database.Path); err != nil {
				return fmt.Errorf("database: %w", err)
			}
			store, err := duckdb.Open(cfg.Database.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			report := output.Report{}
			report.Frequencies, err = store.Frequencies(ctx, filter)
			if err != nil {
				return err
			}
			if format == "xlsx" || what == "associations" {
				latest, err := store.LatestRun(ctx)
				if err != nil && !errors.Is(err, duckdb.ErrNoRuns) {
					return err
				}
				if latest != nil {
					if report.Catalog, err = store.Catalog(ctx, latest.ID); err != nil {
						return err
					}
					if report.Associations, err = store.Associations(ctx, latest.ID); err != nil {
						return err
					}
				}
			}

			if format == "xlsx" {
				if err := output.WriteWorkbook(outputFile, report); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d frequencies to %s\n", len(report.Frequencies), outputFile)
				return nil
			}

			var out io.Writer = cmd.OutOrStdout()
			if outputFile != "" {
				f, err := os.Create(outputFile)
				if err != nil {
					return fmt.Errorf("creating output file: %w", err)
				}
				defer f.Close()
				out = f
			}
			if what == "associations" {
				return output.WriteAssociations(out, report.Associations)
			}
			return output.WriteFrequencies(out, report.Frequencies)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&format, "format", "f", "tsv", "Output format: tsv, xlsx")
	fs.StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout, required for xlsx)")
	fs.StringVar(&what, "table", "frequencies", "TSV table: frequencies, associations")
	fs.StringVar(&filter.Gene, "gene", "", "Only this gene")
	fs.StringVar(&filter.CancerType, "cancer-type", "", "Only this cancer type")
	fs.IntVar(&filter.MinSamples, "min-samples", 0, "Only records with at least this many samples")

	return cmd
}
