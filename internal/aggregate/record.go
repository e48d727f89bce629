// Package aggregate turns standardized mutations into population frequency
// estimates with Wilson confidence intervals, gates them on plausibility, and
// catalogs mutations that lack a denominator.
package aggregate

import (
	"strconv"
	"strings"

	"github.com/inodb/oncofreq/internal/mutation"
)

// QualityTier classifies how much statistical meaning a record carries.
type QualityTier string

// Quality tiers.
const (
	TierPopulationFrequency QualityTier = "population_frequency"
	TierOccurrenceCount     QualityTier = "occurrence_count"
	TierClinicalAnnotation  QualityTier = "clinical_annotation"
)

// UnknownVariant identifies mutations with neither a protein change nor a position.
const UnknownVariant = "UNKNOWN"

// Key groups mutations for aggregation.
type Key struct {
	Gene       string
	CancerType string
	Variant    string
}

// KeyOf returns the aggregation key of m. The variant is the protein change,
// else the genomic start position, else UnknownVariant.
func KeyOf(m mutation.StandardizedMutation) Key {
	v := strings.TrimSpace(m.ProteinChange)
	if v == "" && m.StartPosition > 0 {
		v = strconv.FormatInt(m.StartPosition, 10)
	}
	if v == "" {
		v = UnknownVariant
	}
	return Key{Gene: m.GeneSymbol, CancerType: m.CancerType, Variant: v}
}

func (k Key) less(o Key) bool {
	if k.Gene != o.Gene {
		return k.Gene < o.Gene
	}
	if k.CancerType != o.CancerType {
		return k.CancerType < o.CancerType
	}
	return k.Variant < o.Variant
}

// FrequencyRecord is the population frequency of one gene/cancer type/variant.
// Records are never modified after a run emits them.
type FrequencyRecord struct {
	GeneSymbol           string      `json:"gene_symbol"`
	CancerType           string      `json:"cancer_type"`
	ProteinChange        string      `json:"protein_change"`
	Variant              string      `json:"variant"`
	Position             int64       `json:"position"`
	ReferenceAllele      string      `json:"reference_allele"`
	VariantAllele        string      `json:"variant_allele"`
	MutationCount        int         `json:"mutation_count"`
	OccurrenceCount      int         `json:"occurrence_count"`
	TotalSamples         int         `json:"total_samples"`
	Frequency            float64     `json:"frequency"`
	CILow                float64     `json:"frequency_ci_low"`
	CIHigh               float64     `json:"frequency_ci_high"`
	IsValid              bool        `json:"is_valid"`
	IsHotspot            bool        `json:"is_hotspot"`
	RejectionReasons     []string    `json:"rejection_reasons,omitempty"`
	StudyIDs             []string    `json:"study_ids"`
	QualityTier          QualityTier `json:"quality_tier"`
	DenominatorEstimated bool        `json:"denominator_estimated,omitempty"`
}

// Key returns the aggregation key of the record.
func (r FrequencyRecord) Key() Key {
	return Key{Gene: r.GeneSymbol, CancerType: r.CancerType, Variant: r.Variant}
}

// proportion is the unrounded mutation_count / total_samples, or Frequency
// when the record has no denominator.
func (r FrequencyRecord) proportion() float64 {
	if r.TotalSamples <= 0 {
		return r.Frequency
	}
	return float64(r.MutationCount) / float64(r.TotalSamples)
}

// CIWidth returns the rounded width of the confidence interval.
func (r FrequencyRecord) CIWidth() float64 {
	return round4(r.CIHigh - r.CILow)
}

// VariantCount is the number of occurrences of one protein change.
type VariantCount struct {
	ProteinChange string `json:"protein_change"`
	Count         int    `json:"count"`
}

// OccurrenceRecord counts raw occurrences of a gene at one site. It has no
// denominator, so Frequency is always nil.
type OccurrenceRecord struct {
	GeneSymbol      string         `json:"gene_symbol"`
	Site            string         `json:"site"`
	OccurrenceCount int            `json:"occurrence_count"`
	UniqueSamples   int            `json:"unique_samples"`
	UniqueVariants  int            `json:"unique_variants"`
	TopVariants     []VariantCount `json:"top_variants"`
	Sources         []string       `json:"sources"`
	Frequency       *float64       `json:"frequency"`
	QualityTier     QualityTier    `json:"quality_tier"`
}
