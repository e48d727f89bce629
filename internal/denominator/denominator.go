// Package denominator resolves per-study sample counts, the denominators of
// mutation frequencies.
package denominator

import (
	"fmt"
	"sort"
)

// Sample count fields in priority order.
const (
	FieldSequenced = "sequencedSampleCount"
	FieldAll       = "allSampleCount"
	FieldNumber    = "numberOfSamples"
	FieldCNA       = "cnaSampleCount"
	FieldEstimated = "cohortSize"
)

// StudyMetadata is the typed form of one source study record.
// Count fields are nil when the source did not report them.
type StudyMetadata struct {
	StudyID              string        `mapstructure:"studyId"`
	Name                 string        `mapstructure:"name"`
	CancerTypeID         string        `mapstructure:"cancerTypeId"`
	CancerType           CancerTypeRef `mapstructure:"cancerType"`
	SequencedSampleCount *int64        `mapstructure:"sequencedSampleCount"`
	AllSampleCount       *int64        `mapstructure:"allSampleCount"`
	NumberOfSamples      *int64        `mapstructure:"numberOfSamples"`
	CNASampleCount       *int64        `mapstructure:"cnaSampleCount"`
}

// CancerTypeRef is the nested cancer type object of a cBioPortal study.
type CancerTypeRef struct {
	Name string `mapstructure:"name"`
}

// Label returns the disease label of the study: the cancer type name when present,
// otherwise the cancer type id.
func (s StudyMetadata) Label() string {
	if s.CancerType.Name != "" {
		return s.CancerType.Name
	}
	return s.CancerTypeID
}

// StudyDenominator is the resolved sample count of one study.
type StudyDenominator struct {
	StudyID     string `json:"study_id"`
	SampleCount int    `json:"sample_count"`
	CancerType  string `json:"cancer_type"`
	Field       string `json:"field"`
	Estimated   bool   `json:"estimated,omitempty"`
}

// Denominators is an immutable study id -> denominator map.
type Denominators struct {
	byStudy map[string]StudyDenominator
}

// NewDenominators builds a Denominators set. Later duplicates of a study id are ignored.
func NewDenominators(list ...StudyDenominator) Denominators {
	d := Denominators{byStudy: make(map[string]StudyDenominator, len(list))}
	for _, sd := range list {
		if _, ok := d.byStudy[sd.StudyID]; !ok {
			d.byStudy[sd.StudyID] = sd
		}
	}
	return d
}

// Get returns the denominator of a study.
func (d Denominators) Get(studyID string) (StudyDenominator, bool) {
	sd, ok := d.byStudy[studyID]
	return sd, ok
}

// Len returns the number of studies with a denominator.
func (d Denominators) Len() int {
	return len(d.byStudy)
}

// StudyIDs returns the study ids in sorted order.
func (d Denominators) StudyIDs() []string {
	ids := make([]string, 0, len(d.byStudy))
	for id := range d.byStudy {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// List returns the denominators sorted by study id.
func (d Denominators) List() []StudyDenominator {
	out := make([]StudyDenominator, 0, len(d.byStudy))
	for _, id := range d.StudyIDs() {
		out = append(out, d.byStudy[id])
	}
	return out
}

// Total returns the sum of all sample counts.
func (d Denominators) Total() int {
	total := 0
	for _, sd := range d.byStudy {
		total += sd.SampleCount
	}
	return total
}

// MissingDenominatorError reports a study without a usable sample count.
// The study is excluded from frequency calculation; this is never fatal.
type MissingDenominatorError struct {
	StudyID string
	Reason  string
}

func (e *MissingDenominatorError) Error() string {
	return fmt.Sprintf("study %s has no denominator: %s", e.StudyID, e.Reason)
}
