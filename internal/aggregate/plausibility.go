package aggregate

import (
	"fmt"
	"strings"

	"github.com/inodb/oncofreq/internal/knowledge"
	"github.com/inodb/oncofreq/internal/variant"
)

// Default plausibility thresholds.
const (
	DefaultMaxFrequency      = 0.95
	DefaultMaxCIWidth        = 0.3
	DefaultHotspotFloorRatio = 0.1
)

// Violation codes.
const (
	CodeExceedsDenominator      = "exceeds_denominator"
	CodeFrequencyAboveMax       = "frequency_above_max"
	CodeCITooWide               = "ci_too_wide"
	CodeBelowHotspotExpectation = "below_hotspot_expectation"
)

// Violation is one reason a record failed plausibility validation.
type Violation struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Plausibility holds the validation thresholds. A threshold <= 0 disables its
// check. Expectations are only consulted when HotspotFloorRatio > 0.
type Plausibility struct {
	MaxFrequency      float64
	MaxCIWidth        float64
	HotspotFloorRatio float64
	Expectations      []knowledge.Expectation
}

// DefaultPlausibility returns the default thresholds without any hotspot
// expectations.
func DefaultPlausibility() Plausibility {
	return Plausibility{
		MaxFrequency:      DefaultMaxFrequency,
		MaxCIWidth:        DefaultMaxCIWidth,
		HotspotFloorRatio: DefaultHotspotFloorRatio,
	}
}

// Check returns every violation of rec, in a fixed order.
func (p Plausibility) Check(rec FrequencyRecord) []Violation {
	var out []Violation

	if rec.MutationCount > rec.TotalSamples {
		out = append(out, Violation{
			Code:    CodeExceedsDenominator,
			Message: fmt.Sprintf("%d mutated samples exceed %d samples tested", rec.MutationCount, rec.TotalSamples),
		})
	}

	// Gated on the exact proportion; Frequency is rounded to 4 decimals.
	if p.MaxFrequency > 0 && rec.proportion() > p.MaxFrequency {
		out = append(out, Violation{
			Code:    CodeFrequencyAboveMax,
			Message: fmt.Sprintf("frequency %.5f above maximum %.2f", rec.proportion(), p.MaxFrequency),
		})
	}

	if p.MaxCIWidth > 0 && rec.CIWidth() > p.MaxCIWidth {
		out = append(out, Violation{
			Code:    CodeCITooWide,
			Message: fmt.Sprintf("confidence interval width %.4f above maximum %.2f", rec.CIWidth(), p.MaxCIWidth),
		})
	}

	if p.HotspotFloorRatio > 0 {
		if e, ok := p.expectation(rec); ok {
			floor := e.Min * p.HotspotFloorRatio
			if rec.Frequency < floor {
				out = append(out, Violation{
					Code: CodeBelowHotspotExpectation,
					Message: fmt.Sprintf("frequency %.4f below %.4f (%.0f%% of documented minimum %.2f for %s %s in %s)",
						rec.Frequency, floor, p.HotspotFloorRatio*100, e.Min, e.Gene, e.Variant, rec.CancerType),
				})
			}
		}
	}

	return out
}

// expectation returns the first expectation that applies to rec.
func (p Plausibility) expectation(rec FrequencyRecord) (knowledge.Expectation, bool) {
	for _, e := range p.Expectations {
		if !strings.EqualFold(e.Gene, rec.GeneSymbol) {
			continue
		}
		if e.Variant != "*" && variant.Canonicalize(e.Variant) != rec.ProteinChange {
			continue
		}
		if len(e.CancerTypes) > 0 && !containsFold(e.CancerTypes, rec.CancerType) {
			continue
		}
		return e, true
	}
	return knowledge.Expectation{}, false
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
