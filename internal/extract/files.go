package extract

import (
	"context"
	"fmt"
	"time"

	"github.com/inodb/oncofreq/internal/mutation"
	"github.com/inodb/oncofreq/internal/tsv"
)

// cosmicColumns maps COSMIC export headers (mutant export and the newer
// upper-case genome screens format) to standardizer keys.
var cosmicColumns = map[string]string{
	"Gene name":                "gene_name",
	"GENE_SYMBOL":              "gene",
	"Sample name":              "sample_name",
	"SAMPLE_NAME":              "sample_name",
	"ID_sample":                "sample_id",
	"COSMIC_SAMPLE_ID":         "sample_id",
	"Primary site":             "primary_site",
	"PRIMARY_SITE":             "primary_site",
	"Primary histology":        "primary_histology",
	"PRIMARY_HISTOLOGY":        "primary_histology",
	"Mutation ID":              "mutation_id",
	"GENOMIC_MUTATION_ID":      "mutation_id",
	"Mutation CDS":             "MutationCDS",
	"MUTATION_CDS":             "MutationCDS",
	"Mutation AA":              "MutationAA",
	"MUTATION_AA":              "MutationAA",
	"Mutation genome position": "genome_position",
	"GENOMIC_WT_ALLELE":        "ref_allele",
	"GENOMIC_MUT_ALLELE":       "alt_allele",
}

// COSMIC extracts mutations from a COSMIC mutant export TSV. COSMIC has no
// sample denominators, so its mutations only reach the occurrence catalog.
type COSMIC struct {
	Path string
}

func (c *COSMIC) Name() string { return "cosmic" }

func (c *COSMIC) Extract(ctx context.Context) (*RawBatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := tsv.ReadAll(c.Path, cosmicColumns)
	if err != nil {
		return nil, fmt.Errorf("cosmic: %w", err)
	}
	return &RawBatch{
		Name:        c.Name(),
		Source:      mutation.SourceCOSMIC,
		Mutations:   rows,
		ExtractedAt: time.Now().UTC(),
	}, nil
}

// DefaultCIViCURL is the nightly CIViC clinical evidence summary.
const DefaultCIViCURL = "https://civicdb.org/downloads/nightly/nightly-ClinicalEvidenceSummaries.tsv"

// CIViC extracts clinical evidence rows from a CIViC evidence summary TSV.
// Location may be a local path or an http(s) URL.
type CIViC struct {
	Location string
}

func (c *CIViC) Name() string { return "civic" }

func (c *CIViC) Extract(ctx context.Context) (*RawBatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	loc := c.Location
	if loc == "" {
		loc = DefaultCIViCURL
	}
	rows, err := tsv.ReadAll(loc, nil)
	if err != nil {
		return nil, fmt.Errorf("civic: %w", err)
	}
	return &RawBatch{
		Name:        c.Name(),
		Source:      mutation.SourceCIViC,
		Evidence:    rows,
		ExtractedAt: time.Now().UTC(),
	}, nil
}
