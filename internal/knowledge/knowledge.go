// Package knowledge loads the curated tables the pipeline depends on: hotspot
// expectations, therapy tables, the FDA-approved drug list, oncogenes and
// cohort sizes.
package knowledge

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Expectation is the documented population frequency range of a variant in
// some cancer types. Variant "*" matches any variant of the gene and an empty
// CancerTypes list matches any cancer type.
type Expectation struct {
	Gene        string   `yaml:"gene"`
	Variant     string   `yaml:"variant"`
	CancerTypes []string `yaml:"cancer_types"`
	Min         float64  `yaml:"min"`
	Max         float64  `yaml:"max"`
}

// Base holds every knowledge table.
type Base struct {
	CancerTypeMappings map[string]string              `yaml:"cancer_type_mappings"`
	Hotspots           map[string][]int64             `yaml:"hotspots"`
	Expectations       []Expectation                  `yaml:"expected_frequencies"`
	MutationTherapies  map[string]map[string][]string `yaml:"mutation_therapies"`
	HotspotDrugs       map[string]map[int64][]string  `yaml:"hotspot_drugs"`
	FDAApproved        []string                       `yaml:"fda_approved"`
	Oncogenes          []string                       `yaml:"oncogenes"`
	CohortSizes        map[string]int                 `yaml:"cohort_sizes"`
}

// FatalConfigurationError reports a knowledge or configuration resource that
// could not be loaded. The run cannot continue without it.
type FatalConfigurationError struct {
	Resource string
	Err      error
}

func (e *FatalConfigurationError) Error() string {
	return fmt.Sprintf("fatal configuration error: %s: %v", e.Resource, e.Err)
}

func (e *FatalConfigurationError) Unwrap() error {
	return e.Err
}

// Default returns the built-in tables.
func Default() (*Base, error) {
	var b Base
	if err := yaml.Unmarshal(defaultsYAML, &b); err != nil {
		return nil, &FatalConfigurationError{Resource: "built-in knowledge tables", Err: err}
	}
	if err := b.Validate(); err != nil {
		return nil, &FatalConfigurationError{Resource: "built-in knowledge tables", Err: err}
	}
	return &b, nil
}

// Load reads a knowledge file and layers it over the built-in tables.
// An empty path returns the built-in tables.
func Load(path string) (*Base, error) {
	b, err := Default()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return b, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &FatalConfigurationError{Resource: path, Err: err}
	}
	var override Base
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, &FatalConfigurationError{Resource: path, Err: fmt.Errorf("parse yaml: %w", err)}
	}
	b.merge(&override)
	if err := b.Validate(); err != nil {
		return nil, &FatalConfigurationError{Resource: path, Err: err}
	}
	return b, nil
}

func (b *Base) merge(o *Base) {
	if o.CancerTypeMappings != nil {
		b.CancerTypeMappings = o.CancerTypeMappings
	}
	if o.Hotspots != nil {
		b.Hotspots = o.Hotspots
	}
	if o.Expectations != nil {
		b.Expectations = o.Expectations
	}
	if o.MutationTherapies != nil {
		b.MutationTherapies = o.MutationTherapies
	}
	if o.HotspotDrugs != nil {
		b.HotspotDrugs = o.HotspotDrugs
	}
	if o.FDAApproved != nil {
		b.FDAApproved = o.FDAApproved
	}
	if o.Oncogenes != nil {
		b.Oncogenes = o.Oncogenes
	}
	if o.CohortSizes != nil {
		b.CohortSizes = o.CohortSizes
	}
}

// Validate checks table invariants.
func (b *Base) Validate() error {
	for i, e := range b.Expectations {
		if strings.TrimSpace(e.Gene) == "" || strings.TrimSpace(e.Variant) == "" {
			return fmt.Errorf("expected_frequencies[%d]: gene and variant are required", i)
		}
		if e.Min <= 0 || e.Min > 1 {
			return fmt.Errorf("expected_frequencies[%d]: min %v outside (0,1]", i, e.Min)
		}
		if e.Max != 0 && (e.Max < e.Min || e.Max > 1) {
			return fmt.Errorf("expected_frequencies[%d]: max %v outside [min,1]", i, e.Max)
		}
	}
	for gene, positions := range b.Hotspots {
		for _, pos := range positions {
			if pos <= 0 {
				return fmt.Errorf("hotspots %s: invalid position %d", gene, pos)
			}
		}
	}
	for ct, size := range b.CohortSizes {
		if size <= 0 {
			return fmt.Errorf("cohort_sizes %s: size must be positive", ct)
		}
	}
	return nil
}

// IsFDAApproved reports whether drug is on the FDA-approved list, ignoring case.
func (b *Base) IsFDAApproved(drug string) bool {
	for _, d := range b.FDAApproved {
		if strings.EqualFold(d, drug) {
			return true
		}
	}
	return false
}
