// Package maf provides MAF (Mutation Annotation Format) file parsing functionality.
package maf

import (
	"fmt"
	"io"
	"strconv"

	"github.com/inodb/oncofreq/internal/tsv"
)

// Standard MAF column names
const (
	ColHugoSymbol            = "Hugo_Symbol"
	ColChromosome            = "Chromosome"
	ColStartPosition         = "Start_Position"
	ColEndPosition           = "End_Position"
	ColReferenceAllele       = "Reference_Allele"
	ColTumorSeqAllele2       = "Tumor_Seq_Allele2"
	ColVariantClassification = "Variant_Classification"
	ColVariantType           = "Variant_Type"
	ColTumorSampleBarcode    = "Tumor_Sample_Barcode"
	ColHGVSpShort            = "HGVSp_Short"
	ColProteinChange         = "Protein_Change"
	ColTumorAltCount         = "t_alt_count"
	ColTumorRefCount         = "t_ref_count"
	ColNCBIBuild             = "NCBI_Build"
)

var requiredColumns = []string{
	ColHugoSymbol,
	ColStartPosition,
	ColReferenceAllele,
	ColTumorSeqAllele2,
	ColTumorSampleBarcode,
}

// Record is one mutation line of a MAF file.
type Record struct {
	HugoSymbol            string
	Chromosome            string
	StartPosition         int64
	EndPosition           int64
	ReferenceAllele       string
	TumorSeqAllele2       string
	VariantClassification string
	VariantType           string
	TumorSampleBarcode    string
	ProteinChange         string
	TumorAltCount         *int64
	TumorRefCount         *int64
	NCBIBuild             string
}

// Map returns the record as a raw cBioPortal mutation keyed like the
// molecular profile API, scoped to studyID.
func (r *Record) Map(studyID string) map[string]any {
	m := map[string]any{
		"hugoGeneSymbol":  r.HugoSymbol,
		"studyId":         studyID,
		"sampleId":        r.TumorSampleBarcode,
		"chr":             r.Chromosome,
		"startPosition":   r.StartPosition,
		"endPosition":     r.EndPosition,
		"referenceAllele": r.ReferenceAllele,
		"variantAllele":   r.TumorSeqAllele2,
		"proteinChange":   r.ProteinChange,
		"mutationType":    r.VariantClassification,
		"variantType":     r.VariantType,
	}
	if r.TumorAltCount != nil {
		m["tumorAltCount"] = *r.TumorAltCount
	}
	if r.TumorRefCount != nil {
		m["tumorRefCount"] = *r.TumorRefCount
	}
	return m
}

// Parser reads mutation records from a MAF file.
type Parser struct {
	r *tsv.Reader
}

// NewParser creates a new MAF parser for the given file.
// Supports both plain MAF and gzipped MAF (.maf.gz) files.
func NewParser(path string) (*Parser, error) {
	r, err := tsv.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open maf file: %w", err)
	}
	p := &Parser{r: r}
	if err := p.checkHeader(); err != nil {
		r.Close()
		return nil, err
	}
	return p, nil
}

// NewParserFromReader creates a parser from an io.Reader (e.g., stdin).
func NewParserFromReader(rd io.Reader) (*Parser, error) {
	r, err := tsv.NewReader(rd)
	if err != nil {
		return nil, wrapParseError(err)
	}
	p := &Parser{r: r}
	if err := p.checkHeader(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Parser) checkHeader() error {
	return wrapParseError(p.r.Require(requiredColumns...))
}

// Next reads the next record from the MAF file.
// Returns nil, nil when there are no more records.
func (p *Parser) Next() (*Record, error) {
	row, err := p.r.Next()
	if err != nil || row == nil {
		return nil, err
	}

	pos, err := strconv.ParseInt(row.Get(ColStartPosition), 10, 64)
	if err != nil {
		return nil, &ParseError{
			Line:    row.Line,
			Message: fmt.Sprintf("invalid position: %s", row.Get(ColStartPosition)),
		}
	}
	end, _ := strconv.ParseInt(row.Get(ColEndPosition), 10, 64)

	// datahub files carry either HGVSp_Short or the older Protein_Change column
	change := row.First(ColHGVSpShort, ColProteinChange)

	return &Record{
		HugoSymbol:            row.Get(ColHugoSymbol),
		Chromosome:            row.Get(ColChromosome),
		StartPosition:         pos,
		EndPosition:           end,
		ReferenceAllele:       row.Get(ColReferenceAllele),
		TumorSeqAllele2:       row.Get(ColTumorSeqAllele2),
		VariantClassification: row.Get(ColVariantClassification),
		VariantType:           row.Get(ColVariantType),
		TumorSampleBarcode:    row.Get(ColTumorSampleBarcode),
		ProteinChange:         change,
		TumorAltCount:         parseCount(row.Get(ColTumorAltCount)),
		TumorRefCount:         parseCount(row.Get(ColTumorRefCount)),
		NCBIBuild:             row.Get(ColNCBIBuild),
	}, nil
}

// ReadAll reads every remaining record.
func (p *Parser) ReadAll() ([]*Record, error) {
	var out []*Record
	for {
		rec, err := p.Next()
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return out, nil
		}
		out = append(out, rec)
	}
}

// Header returns the MAF column names.
func (p *Parser) Header() []string {
	return p.r.Header()
}

// LineNumber returns the current line number being processed.
func (p *Parser) LineNumber() int {
	return p.r.LineNumber()
}

// Close closes the parser and underlying file.
func (p *Parser) Close() error {
	return p.r.Close()
}

// parseCount parses a read count. Blank, "NA" and "." are absent.
func parseCount(s string) *int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

// ParseError represents an error during MAF parsing with line context.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("maf parse error at line %d: %s", e.Line, e.Message)
}

func wrapParseError(err error) error {
	if pe, ok := err.(*tsv.ParseError); ok {
		return &ParseError{Line: pe.Line, Message: pe.Message}
	}
	return err
}
