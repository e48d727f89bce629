package maf

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParser_ParseRecords(t *testing.T) {
	testFile := findTestFile(t, filepath.Join("brca_study", "data_mutations.txt"))

	parser, err := NewParser(testFile)
	require.NoError(t, err)
	defer parser.Close()

	// Read first record (PIK3CA)
	rec, err := parser.Next()
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, "PIK3CA", rec.HugoSymbol)
	assert.Equal(t, "3", rec.Chromosome)
	assert.Equal(t, int64(178952085), rec.StartPosition)
	assert.Equal(t, "A", rec.ReferenceAllele)
	assert.Equal(t, "G", rec.TumorSeqAllele2)
	assert.Equal(t, "TCGA-A1-0001-01", rec.TumorSampleBarcode)
	assert.Equal(t, "p.H1047R", rec.ProteinChange)
	assert.Equal(t, "Missense_Mutation", rec.VariantClassification)
	require.NotNil(t, rec.TumorAltCount)
	assert.Equal(t, int64(40), *rec.TumorAltCount)
	assert.Equal(t, 3, parser.LineNumber())

	// Skip second PIK3CA, read TP53 with NA counts
	_, err = parser.Next()
	require.NoError(t, err)
	rec, err = parser.Next()
	require.NoError(t, err)
	assert.Equal(t, "TP53", rec.HugoSymbol)
	assert.Nil(t, rec.TumorAltCount)
	assert.Nil(t, rec.TumorRefCount)

	// Count remaining records
	count := 3
	for {
		rec, err := parser.Next()
		require.NoError(t, err)
		if rec == nil {
			break
		}
		count++
	}
	assert.Equal(t, 5, count)
}

func TestParser_ReadAll(t *testing.T) {
	parser, err := NewParser(findTestFile(t, filepath.Join("brca_study", "data_mutations.txt")))
	require.NoError(t, err)
	defer parser.Close()

	recs, err := parser.ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 5)
	assert.Equal(t, "p.Q1408*", recs[4].ProteinChange)
	assert.Contains(t, parser.Header(), ColTumorSampleBarcode)
}

func TestRecord_Map(t *testing.T) {
	alt, ref := int64(9), int64(11)
	rec := &Record{
		HugoSymbol:         "KRAS",
		Chromosome:         "12",
		StartPosition:      25398284,
		EndPosition:        25398284,
		ReferenceAllele:    "C",
		TumorSeqAllele2:    "T",
		TumorSampleBarcode: "P-0001-T01",
		ProteinChange:      "p.G12D",
		TumorAltCount:      &alt,
		TumorRefCount:      &ref,
	}

	m := rec.Map("paad_study")
	assert.Equal(t, "KRAS", m["hugoGeneSymbol"])
	assert.Equal(t, "paad_study", m["studyId"])
	assert.Equal(t, "P-0001-T01", m["sampleId"])
	assert.Equal(t, int64(25398284), m["startPosition"])
	assert.Equal(t, int64(9), m["tumorAltCount"])

	rec.TumorAltCount = nil
	assert.NotContains(t, rec.Map("paad_study"), "tumorAltCount")
}

func TestParser_ProteinChangeFallback(t *testing.T) {
	in := "Hugo_Symbol\tStart_Position\tReference_Allele\tTumor_Seq_Allele2\tTumor_Sample_Barcode\tProtein_Change\n" +
		"EGFR\t55259515\tT\tG\tS1\tL858R\n"
	parser, err := NewParserFromReader(strings.NewReader(in))
	require.NoError(t, err)

	rec, err := parser.Next()
	require.NoError(t, err)
	assert.Equal(t, "L858R", rec.ProteinChange)
	assert.Nil(t, rec.TumorAltCount)
}

func TestParser_MissingColumn(t *testing.T) {
	_, err := NewParserFromReader(strings.NewReader("Hugo_Symbol\tStart_Position\nKRAS\t1\n"))
	require.Error(t, err)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 1, pe.Line)
	assert.Contains(t, pe.Message, "Reference_Allele")
}

func TestParser_InvalidPosition(t *testing.T) {
	in := "Hugo_Symbol\tStart_Position\tReference_Allele\tTumor_Seq_Allele2\tTumor_Sample_Barcode\n" +
		"KRAS\tabc\tC\tT\tS1\n"
	parser, err := NewParserFromReader(strings.NewReader(in))
	require.NoError(t, err)

	_, err = parser.Next()
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 2, pe.Line)
}

func TestParseError(t *testing.T) {
	err := &ParseError{
		Line:    42,
		Message: "required column not found",
	}

	expected := "maf parse error at line 42: required column not found"
	assert.Equal(t, expected, err.Error())
}

// findTestFile locates a test file in the testdata directory.
func findTestFile(t *testing.T, name string) string {
	t.Helper()

	// Try different relative paths
	paths := []string{
		filepath.Join("testdata", name),
		filepath.Join("..", "..", "testdata", name),
	}

	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	t.Fatalf("Test file not found: %s", name)
	return ""
}
