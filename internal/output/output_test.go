package output

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/inodb/oncofreq/internal/aggregate"
	"github.com/inodb/oncofreq/internal/duckdb"
	"github.com/inodb/oncofreq/internal/therapeutic"
)

var brafV600E = aggregate.FrequencyRecord{
	GeneSymbol: "BRAF", CancerType: "Melanoma",
	ProteinChange: "V600E", Variant: "V600E",
	Position: 140753336, ReferenceAllele: "A", VariantAllele: "T",
	MutationCount: 3, OccurrenceCount: 3, TotalSamples: 450,
	Frequency: 0.0067, CILow: 0.0023, CIHigh: 0.0194,
	IsValid: true, IsHotspot: true,
	StudyIDs:    []string{"mel_ucla", "skcm_tcga"},
	QualityTier: aggregate.TierPopulationFrequency,
}

func TestTabWriter_WriteHeader(t *testing.T) {
	var buf bytes.Buffer
	w := NewTabWriter(&buf)

	require.NoError(t, w.WriteHeader())
	require.NoError(t, w.Flush())

	header := strings.TrimSuffix(buf.String(), "\n")
	assert.Equal(t, FrequencyColumns, strings.Split(header, "\t"))
}

func TestTabWriter_Write_BRAFV600E(t *testing.T) {
	var buf bytes.Buffer
	w := NewTabWriter(&buf)

	require.NoError(t, w.Write(brafV600E))
	require.NoError(t, w.Flush())

	fields := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\t")
	require.Len(t, fields, len(FrequencyColumns))
	assert.Equal(t, "BRAF", fields[0])
	assert.Equal(t, "V600E", fields[2])
	assert.Equal(t, "140753336", fields[3])
	assert.Equal(t, "3", fields[6])
	assert.Equal(t, "450", fields[7])
	assert.Equal(t, "0.0067", fields[8])
	assert.Equal(t, "0.0023", fields[9])
	assert.Equal(t, "0.0194", fields[10])
	assert.Equal(t, "YES", fields[11])
	assert.Equal(t, "population_frequency", fields[12])
	assert.Equal(t, "NO", fields[13])
	assert.Equal(t, "mel_ucla,skcm_tcga", fields[14])
}

func TestTabWriter_EmptyFields(t *testing.T) {
	var buf bytes.Buffer
	rec := aggregate.FrequencyRecord{GeneSymbol: "TP53", CancerType: "Breast Cancer", Variant: "UNKNOWN"}
	require.NoError(t, WriteFrequencies(&buf, []aggregate.FrequencyRecord{rec}))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	fields := strings.Split(lines[1], "\t")
	assert.Equal(t, "-", fields[2])
	assert.Equal(t, "-", fields[3])
	assert.Equal(t, "-", fields[14])
}

func TestWriteAssociations(t *testing.T) {
	var buf bytes.Buffer
	assocs := []therapeutic.Association{{
		GeneSymbol: "BRAF", ProteinChange: "V600E", CancerType: "Melanoma",
		Position: 600, MutationCount: 3, Frequency: 0.0067,
		Therapies: []therapeutic.Therapy{
			{DrugName: "Vemurafenib", Tier: therapeutic.TierMutationSpecific, FDAApproved: true},
			{DrugName: "Sorafenib", Tier: therapeutic.TierGeneLevel, InteractionTypes: []string{"inhibitor"}},
		},
	}}
	require.NoError(t, WriteAssociations(&buf, assocs))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, AssociationColumns, strings.Split(lines[0], "\t"))
	assert.Equal(t, "BRAF\tV600E\tMelanoma\t600\t3\t0.0067\tVemurafenib\tmutation_specific\tYES\t-\t-", lines[1])
	assert.Contains(t, lines[2], "Sorafenib\tgene_level\tNO\tinhibitor\t-")
}

func TestRejectionWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewRejectionWriter(&buf)
	require.NoError(t, w.WriteHeader())

	rec := brafV600E
	rec.MutationCount, rec.TotalSamples, rec.Frequency = 99, 100, 0.99
	require.NoError(t, w.Write(&aggregate.PlausibilityRejection{
		Record:     rec,
		Violations: []aggregate.Violation{{Code: aggregate.CodeFrequencyAboveMax, Message: "too high"}},
	}))
	require.NoError(t, w.Flush())

	out := buf.String()
	assert.Contains(t, out, "Reasons")
	assert.Contains(t, out, "frequency_above_max")
	assert.Contains(t, out, "0.9900")

	total, byCode := w.Counts()
	assert.Equal(t, 1, total)
	assert.Equal(t, 1, byCode[aggregate.CodeFrequencyAboveMax])
}

func TestWriteRunSummary(t *testing.T) {
	var buf bytes.Buffer
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	WriteRunSummary(&buf, duckdb.Run{
		ID: "abc", Status: "partial", StartedAt: start, FinishedAt: start.Add(90 * time.Second),
		Extracted: 12, Standardized: 10, Malformed: 2, Frequencies: 4, Rejected: 1,
		Warnings: []string{"cbioportal: study broken_study skipped"},
	})

	out := buf.String()
	assert.Contains(t, out, "Run abc: partial")
	assert.Contains(t, out, "1m30s")
	assert.Contains(t, out, "10 (2 malformed)")
	assert.Contains(t, out, "- cbioportal: study broken_study skipped")
	assert.NotContains(t, out, "Error:")
}

func TestWriteWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gold.xlsx")
	report := Report{
		Frequencies: []aggregate.FrequencyRecord{brafV600E},
		Catalog: []aggregate.OccurrenceRecord{{
			GeneSymbol: "TP53", Site: "lung", OccurrenceCount: 4, UniqueSamples: 3, UniqueVariants: 2,
			TopVariants: []aggregate.VariantCount{{ProteinChange: "R175H", Count: 3}, {ProteinChange: "R248Q", Count: 1}},
			Sources:     []string{"cosmic"},
		}},
		Associations: []therapeutic.Association{{
			GeneSymbol: "BRAF", ProteinChange: "V600E", CancerType: "Melanoma", MutationCount: 3,
			Therapies: []therapeutic.Therapy{{DrugName: "Vemurafenib", Tier: therapeutic.TierMutationSpecific, FDAApproved: true}},
		}},
	}
	require.NoError(t, WriteWorkbook(path, report))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetFrequencies, SheetRejected, SheetCatalog, SheetAssociations, SheetGenes}, f.GetSheetList())

	rows, err := f.GetRows(SheetFrequencies)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, FrequencyColumns, rows[0])
	assert.Equal(t, "BRAF", rows[1][0])
	assert.Equal(t, "450", rows[1][7])

	rows, err = f.GetRows(SheetCatalog)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "R175H (3), R248Q (1)", rows[1][5])

	rows, err = f.GetRows(SheetRejected)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	rows, err = f.GetRows(SheetGenes)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Vemurafenib", rows[1][4])
}
