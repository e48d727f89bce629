package denominator

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/inodb/oncofreq/internal/cancertype"
)

// DecodeStudies converts raw study metadata maps into typed records.
func DecodeStudies(raw []map[string]any) ([]StudyMetadata, error) {
	studies := make([]StudyMetadata, 0, len(raw))
	for i, rec := range raw {
		var s StudyMetadata
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &s,
		})
		if err != nil {
			return nil, fmt.Errorf("create decoder: %w", err)
		}
		if err := dec.Decode(rec); err != nil {
			return nil, fmt.Errorf("decode study %d: %w", i, err)
		}
		studies = append(studies, s)
	}
	return studies, nil
}

// Resolver derives study denominators from study metadata.
type Resolver struct {
	mapper *cancertype.Mapper
}

// NewResolver creates a resolver that maps study labels with mapper.
func NewResolver(mapper *cancertype.Mapper) *Resolver {
	return &Resolver{mapper: mapper}
}

// Resolve picks each study's sample count by field priority and keeps only
// studies with a positive count. Excluded studies are reported, in input order.
// The first record of a repeated study id wins.
func (r *Resolver) Resolve(studies []StudyMetadata) (Denominators, []*MissingDenominatorError) {
	var (
		list    []StudyDenominator
		missing []*MissingDenominatorError
		seen    = make(map[string]bool, len(studies))
	)
	for _, s := range studies {
		id := strings.TrimSpace(s.StudyID)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true

		count, field, ok := sampleCount(s)
		if !ok {
			missing = append(missing, &MissingDenominatorError{StudyID: id, Reason: "no positive sample count"})
			continue
		}
		list = append(list, StudyDenominator{
			StudyID:     id,
			SampleCount: count,
			CancerType:  r.cancerType(s),
			Field:       field,
		})
	}
	return NewDenominators(list...), missing
}

// ResolveBestEffort estimates denominators for the studies Resolve excludes,
// using a cohort size per standard cancer type. Every result is marked Estimated.
// Callers must keep these apart from validated denominators.
func (r *Resolver) ResolveBestEffort(studies []StudyMetadata, cohortSizes map[string]int) Denominators {
	var list []StudyDenominator
	seen := make(map[string]bool, len(studies))
	for _, s := range studies {
		id := strings.TrimSpace(s.StudyID)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		if _, _, ok := sampleCount(s); ok {
			continue
		}
		ct := r.cancerType(s)
		size, ok := cohortSizes[ct]
		if !ok || size <= 0 {
			continue
		}
		list = append(list, StudyDenominator{
			StudyID:     id,
			SampleCount: size,
			CancerType:  ct,
			Field:       FieldEstimated,
			Estimated:   true,
		})
	}
	return NewDenominators(list...)
}

func (r *Resolver) cancerType(s StudyMetadata) string {
	label := s.Label()
	if label == "" {
		label = cancertype.StudyLabel(s.StudyID)
	}
	return r.mapper.MapToStandard(label)
}

func sampleCount(s StudyMetadata) (int, string, bool) {
	candidates := []struct {
		value *int64
		field string
	}{
		{s.SequencedSampleCount, FieldSequenced},
		{s.AllSampleCount, FieldAll},
		{s.NumberOfSamples, FieldNumber},
		{s.CNASampleCount, FieldCNA},
	}
	for _, c := range candidates {
		if c.value != nil && *c.value > 0 {
			return int(*c.value), c.field, true
		}
	}
	return 0, "", false
}
