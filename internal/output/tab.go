// Package output writes pipeline results as TSV, plain-text summaries and
// xlsx workbooks.
package output

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/inodb/oncofreq/internal/aggregate"
	"github.com/inodb/oncofreq/internal/therapeutic"
)

// FrequencyColumns is the header of the frequency TSV.
var FrequencyColumns = []string{
	"gene_symbol",
	"cancer_type",
	"protein_change",
	"position",
	"reference_allele",
	"variant_allele",
	"mutation_count",
	"total_samples",
	"frequency",
	"frequency_ci_low",
	"frequency_ci_high",
	"is_hotspot",
	"quality_tier",
	"denominator_estimated",
	"study_ids",
}

// TabWriter writes frequency records in tab-delimited format.
type TabWriter struct {
	w       *bufio.Writer
	columns []string
}

// NewTabWriter creates a new tab-delimited writer.
func NewTabWriter(w io.Writer) *TabWriter {
	return &TabWriter{
		w:       bufio.NewWriter(w),
		columns: FrequencyColumns,
	}
}

// WriteHeader writes the header line.
func (tw *TabWriter) WriteHeader() error {
	_, err := tw.w.WriteString(strings.Join(tw.columns, "\t") + "\n")
	return err
}

// Write writes a single frequency record.
func (tw *TabWriter) Write(r aggregate.FrequencyRecord) error {
	values := []string{
		r.GeneSymbol,
		r.CancerType,
		orDash(r.ProteinChange),
		positionString(r.Position),
		orDash(r.ReferenceAllele),
		orDash(r.VariantAllele),
		strconv.Itoa(r.MutationCount),
		strconv.Itoa(r.TotalSamples),
		formatFloat(r.Frequency),
		formatFloat(r.CILow),
		formatFloat(r.CIHigh),
		yesNo(r.IsHotspot),
		string(r.QualityTier),
		yesNo(r.DenominatorEstimated),
		orDash(strings.Join(r.StudyIDs, ",")),
	}

	_, err := tw.w.WriteString(strings.Join(values, "\t") + "\n")
	return err
}

// Flush flushes any buffered data to the underlying writer.
func (tw *TabWriter) Flush() error {
	return tw.w.Flush()
}

// WriteFrequencies writes a header and all records to w.
func WriteFrequencies(w io.Writer, records []aggregate.FrequencyRecord) error {
	tw := NewTabWriter(w)
	if err := tw.WriteHeader(); err != nil {
		return err
	}
	for _, r := range records {
		if err := tw.Write(r); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// AssociationColumns is the header of the association TSV, one row per therapy.
var AssociationColumns = []string{
	"gene",
	"protein_change",
	"cancer_type",
	"position",
	"mutation_count",
	"frequency",
	"drug_name",
	"association_level",
	"fda_approved",
	"interaction_types",
	"sources",
}

// WriteAssociations writes one line per therapy of each association.
func WriteAssociations(w io.Writer, assocs []therapeutic.Association) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(strings.Join(AssociationColumns, "\t") + "\n"); err != nil {
		return err
	}
	for _, a := range assocs {
		for _, t := range a.Therapies {
			values := []string{
				a.GeneSymbol,
				a.ProteinChange,
				a.CancerType,
				positionString(a.Position),
				strconv.Itoa(a.MutationCount),
				formatFloat(a.Frequency),
				t.DrugName,
				string(t.Tier),
				yesNo(t.FDAApproved),
				orDash(strings.Join(t.InteractionTypes, ",")),
				orDash(strings.Join(t.Sources, ",")),
			}
			if _, err := bw.WriteString(strings.Join(values, "\t") + "\n"); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func positionString(pos int64) string {
	if pos <= 0 {
		return "-"
	}
	return strconv.FormatInt(pos, 10)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func yesNo(b bool) string {
	if b {
		return "YES"
	}
	return "NO"
}
