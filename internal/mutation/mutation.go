// Package mutation defines the standardized mutation schema and converts raw
// source records into it.
package mutation

import "fmt"

// Source identifies where a mutation record came from.
type Source string

// Known sources.
const (
	SourceCBioPortal Source = "cbioportal"
	SourceCOSMIC     Source = "cosmic"
	SourceCIViC      Source = "civic"
)

// StandardizedMutation is one somatic mutation observed in one sample.
// Positions are 1-based; 0 means the coordinate was not reported.
type StandardizedMutation struct {
	GeneSymbol            string   `json:"gene_symbol" validate:"required"`
	CancerType            string   `json:"cancer_type" validate:"required"`
	ProteinChange         string   `json:"protein_change,omitempty"`
	Chromosome            string   `json:"chromosome,omitempty"`
	StartPosition         int64    `json:"start_position,omitempty" validate:"gte=0"`
	EndPosition           int64    `json:"end_position,omitempty" validate:"gte=0"`
	ReferenceAllele       string   `json:"reference_allele" validate:"required"`
	VariantAllele         string   `json:"variant_allele" validate:"required"`
	VariantType           string   `json:"variant_type,omitempty"`
	VariantClassification string   `json:"variant_classification,omitempty"`
	SampleID              string   `json:"sample_id,omitempty"`
	PatientID             string   `json:"patient_id,omitempty"`
	StudyID               string   `json:"study_id,omitempty"`
	PrimarySite           string   `json:"primary_site,omitempty"`
	PrimaryHistology      string   `json:"primary_histology,omitempty"`
	AlleleFrequency       *float64 `json:"allele_frequency,omitempty" validate:"omitempty,gte=0,lte=1"`
	Source                Source   `json:"source" validate:"required,oneof=cbioportal cosmic civic"`
}

// SampleKey builds the globally unique sample identifier for a study sample.
func SampleKey(studyID, sampleID string) string {
	if sampleID == "" {
		return ""
	}
	return studyID + ":" + sampleID
}

// MalformedRecordError reports a raw record that could not be standardized.
// Such records are skipped and counted; they never abort a batch.
type MalformedRecordError struct {
	Source Source
	Index  int
	Field  string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("malformed %s record %d: %s", e.Source, e.Index, e.Reason)
	}
	return fmt.Sprintf("malformed %s record %d: %s: %s", e.Source, e.Index, e.Field, e.Reason)
}

// Batch is the result of standardizing one source's raw records.
type Batch struct {
	Mutations []StandardizedMutation
	Malformed int
	Errors    []*MalformedRecordError
}

// Append adds other's mutations and error counts to b.
func (b *Batch) Append(other Batch) {
	b.Mutations = append(b.Mutations, other.Mutations...)
	b.Malformed += other.Malformed
	b.Errors = append(b.Errors, other.Errors...)
}
