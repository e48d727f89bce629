package output

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/inodb/oncofreq/internal/aggregate"
	"github.com/inodb/oncofreq/internal/duckdb"
)

// RejectionWriter lists frequency records that failed plausibility validation.
type RejectionWriter struct {
	w     *tabwriter.Writer
	total int
	codes map[string]int
}

// NewRejectionWriter creates a new rejection writer.
func NewRejectionWriter(w io.Writer) *RejectionWriter {
	return &RejectionWriter{
		w:     tabwriter.NewWriter(w, 0, 0, 2, ' ', 0),
		codes: make(map[string]int),
	}
}

// WriteHeader writes the rejection table header.
func (v *RejectionWriter) WriteHeader() error {
	_, err := fmt.Fprintln(v.w, "Gene\tCancer_Type\tVariant\tCount\tTotal\tFrequency\tCI\tReasons")
	return err
}

// Write writes one rejected record.
func (v *RejectionWriter) Write(r *aggregate.PlausibilityRejection) error {
	v.total++
	codes := r.Codes()
	for _, c := range codes {
		v.codes[c]++
	}
	rec := r.Record
	_, err := fmt.Fprintf(v.w, "%s\t%s\t%s\t%d\t%d\t%.4f\t[%.4f, %.4f]\t%s\n",
		rec.GeneSymbol,
		rec.CancerType,
		rec.Variant,
		rec.MutationCount,
		rec.TotalSamples,
		rec.Frequency,
		rec.CILow, rec.CIHigh,
		strings.Join(codes, ","),
	)
	return err
}

// Flush flushes the writer.
func (v *RejectionWriter) Flush() error {
	return v.w.Flush()
}

// Counts returns the number of rejected records per violation code.
func (v *RejectionWriter) Counts() (total int, byCode map[string]int) {
	return v.total, v.codes
}

// WriteRunSummary writes a human readable summary of one run.
func WriteRunSummary(w io.Writer, r duckdb.Run) {
	fmt.Fprintf(w, "\nRun %s: %s\n", r.ID, r.Status)
	if !r.StartedAt.IsZero() && !r.FinishedAt.IsZero() {
		fmt.Fprintf(w, "  Duration:        %s\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	}
	fmt.Fprintf(w, "  Extracted:       %d\n", r.Extracted)
	fmt.Fprintf(w, "  Standardized:    %d (%d malformed)\n", r.Standardized, r.Malformed)
	fmt.Fprintf(w, "  Frequencies:     %d (%d rejected)\n", r.Frequencies, r.Rejected)
	fmt.Fprintf(w, "  Catalog entries: %d\n", r.Catalog)
	fmt.Fprintf(w, "  Associations:    %d\n", r.Associations)
	if r.Error != "" {
		fmt.Fprintf(w, "  Error:           %s\n", r.Error)
	}
	if len(r.Warnings) > 0 {
		fmt.Fprintf(w, "  Warnings:\n")
		for _, warn := range r.Warnings {
			fmt.Fprintf(w, "    - %s\n", warn)
		}
	}
}
