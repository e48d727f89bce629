package aggregate

import (
	"fmt"
	"strings"
)

// PlausibilityRejection is an aggregate that failed plausibility validation.
// It is kept out of the validated output and surfaced to the caller.
type PlausibilityRejection struct {
	Record     FrequencyRecord `json:"record"`
	Violations []Violation     `json:"violations"`
}

func (r *PlausibilityRejection) Error() string {
	msgs := make([]string, len(r.Violations))
	for i, v := range r.Violations {
		msgs[i] = v.Message
	}
	return fmt.Sprintf("rejected %s %s in %s: %s",
		r.Record.GeneSymbol, r.Record.Variant, r.Record.CancerType, strings.Join(msgs, "; "))
}

// Codes returns the violation codes in order.
func (r *PlausibilityRejection) Codes() []string {
	codes := make([]string, len(r.Violations))
	for i, v := range r.Violations {
		codes[i] = v.Code
	}
	return codes
}
