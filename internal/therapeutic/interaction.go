// Package therapeutic links aggregated mutation frequencies to drugs from
// curated therapy tables, CIViC clinical evidence and DGIdb interactions.
package therapeutic

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/inodb/oncofreq/internal/aggregate"
	"github.com/inodb/oncofreq/internal/variant"
)

// Interaction is one drug-gene interaction. Variant is empty for gene-level
// interactions (DGIdb) and set for variant-specific evidence (CIViC).
type Interaction struct {
	GeneName         string   `mapstructure:"gene_name" json:"gene_name"`
	DrugName         string   `mapstructure:"drug_name" json:"drug_name"`
	ConceptID        string   `mapstructure:"concept_id" json:"concept_id,omitempty"`
	Variant          string   `mapstructure:"variant" json:"variant,omitempty"`
	InteractionTypes []string `mapstructure:"interaction_types" json:"interaction_types,omitempty"`
	Sources          []string `mapstructure:"sources" json:"sources,omitempty"`
	Approved         bool     `mapstructure:"approved" json:"approved"`
}

// DecodeInteractions decodes raw DGIdb interaction rows. Rows without a gene
// or drug name are dropped.
func DecodeInteractions(raw []map[string]any) ([]Interaction, error) {
	out := make([]Interaction, 0, len(raw))
	for i, row := range raw {
		var it Interaction
		if err := decode(row, &it); err != nil {
			return nil, fmt.Errorf("interaction %d: %w", i, err)
		}
		it.GeneName = strings.ToUpper(strings.TrimSpace(it.GeneName))
		it.DrugName = strings.TrimSpace(it.DrugName)
		if it.GeneName == "" || it.DrugName == "" {
			continue
		}
		out = append(out, it)
	}
	return out, nil
}

// ClinicalAnnotation is one CIViC evidence row with therapeutic relevance. It
// is curated knowledge, not a frequency measurement.
type ClinicalAnnotation struct {
	GeneSymbol    string                `json:"gene_symbol"`
	Variant       string                `json:"variant"`
	Disease       string                `json:"disease"`
	Therapies     []string              `json:"therapies"`
	EvidenceLevel string                `json:"evidence_level"`
	Significance  string                `json:"significance"`
	QualityTier   aggregate.QualityTier `json:"quality_tier"`
}

// Interactions returns one variant-specific interaction per therapy.
func (a ClinicalAnnotation) Interactions() []Interaction {
	out := make([]Interaction, 0, len(a.Therapies))
	for _, drug := range a.Therapies {
		out = append(out, Interaction{
			GeneName: a.GeneSymbol,
			DrugName: drug,
			Variant:  a.Variant,
			Sources:  []string{"CIViC"},
		})
	}
	return out
}

// civicRow covers both the current evidence summary columns (molecular_profile,
// therapies, significance) and the older ones (gene, variant, drugs,
// clinical_significance).
type civicRow struct {
	Gene                 string   `mapstructure:"gene"`
	Variant              string   `mapstructure:"variant"`
	MolecularProfile     string   `mapstructure:"molecular_profile"`
	Disease              string   `mapstructure:"disease"`
	Therapies            []string `mapstructure:"therapies"`
	Drugs                []string `mapstructure:"drugs"`
	EvidenceLevel        string   `mapstructure:"evidence_level"`
	EvidenceDirection    string   `mapstructure:"evidence_direction"`
	Significance         string   `mapstructure:"significance"`
	ClinicalSignificance string   `mapstructure:"clinical_significance"`
}

// FromCIViC converts CIViC evidence rows into clinical annotations. Rows
// that lack a gene, a variant or a therapy are skipped and counted. So are
// rows that argue against treating the variant (resistance significance or
// a "Does Not Support" direction).
func FromCIViC(raw []map[string]any) ([]ClinicalAnnotation, int) {
	var out []ClinicalAnnotation
	skipped := 0
	for _, row := range raw {
		var r civicRow
		if err := decode(row, &r); err != nil {
			skipped++
			continue
		}

		gene, name := strings.TrimSpace(r.Gene), strings.TrimSpace(r.Variant)
		if gene == "" && r.MolecularProfile != "" {
			gene, name, _ = strings.Cut(strings.TrimSpace(r.MolecularProfile), " ")
		}
		therapies := splitList(append(r.Therapies, r.Drugs...))
		if gene == "" || strings.TrimSpace(name) == "" || len(therapies) == 0 {
			skipped++
			continue
		}

		sig := r.Significance
		if sig == "" {
			sig = r.ClinicalSignificance
		}
		if !supportsTreatment(sig, r.EvidenceDirection) {
			skipped++
			continue
		}
		out = append(out, ClinicalAnnotation{
			GeneSymbol:    strings.ToUpper(gene),
			Variant:       variant.Canonicalize(name),
			Disease:       strings.TrimSpace(r.Disease),
			Therapies:     therapies,
			EvidenceLevel: strings.TrimSpace(r.EvidenceLevel),
			Significance:  strings.TrimSpace(sig),
			QualityTier:   aggregate.TierClinicalAnnotation,
		})
	}
	return out, skipped
}

func supportsTreatment(significance, direction string) bool {
	if strings.Contains(strings.ToLower(significance), "resistance") {
		return false
	}
	return !strings.EqualFold(strings.TrimSpace(direction), "does not support")
}

// splitList flattens comma separated entries and drops blanks and duplicates.
func splitList(values []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" || seen[strings.ToLower(part)] {
				continue
			}
			seen[strings.ToLower(part)] = true
			out = append(out, part)
		}
	}
	return out
}

func decode(in map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(in)
}
