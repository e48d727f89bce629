package therapeutic

import "sort"

// maxTopMutations bounds GeneSummary.TopMutations.
const maxTopMutations = 5

// MutationFrequency is one linked mutation in a gene summary.
type MutationFrequency struct {
	ProteinChange string  `json:"protein_change"`
	CancerType    string  `json:"cancer_type"`
	Position      int64   `json:"position"`
	Frequency     float64 `json:"frequency"`
}

// GeneSummary rolls the associations of one gene up.
type GeneSummary struct {
	GeneSymbol       string              `json:"gene"`
	Associations     int                 `json:"mutation_count"`
	TotalMutations   int                 `json:"total_mutations"`
	CancerTypes      []string            `json:"cancer_types"`
	Drugs            []string            `json:"all_drugs"`
	FDAApprovedDrugs []string            `json:"fda_approved_drugs"`
	TopMutations     []MutationFrequency `json:"top_mutations"`
}

// SummarizeByGene groups associations per gene, ordered by total mutated
// samples descending, then gene.
func SummarizeByGene(assocs []Association) []GeneSummary {
	type acc struct {
		summary     GeneSummary
		cancerTypes map[string]bool
		drugs       map[string]bool
		approved    map[string]bool
	}
	byGene := make(map[string]*acc)
	for _, a := range assocs {
		g, ok := byGene[a.GeneSymbol]
		if !ok {
			g = &acc{
				summary:     GeneSummary{GeneSymbol: a.GeneSymbol},
				cancerTypes: make(map[string]bool),
				drugs:       make(map[string]bool),
				approved:    make(map[string]bool),
			}
			byGene[a.GeneSymbol] = g
		}
		g.summary.Associations++
		g.summary.TotalMutations += a.MutationCount
		g.cancerTypes[a.CancerType] = true
		g.summary.TopMutations = append(g.summary.TopMutations, MutationFrequency{
			ProteinChange: a.ProteinChange,
			CancerType:    a.CancerType,
			Position:      a.Position,
			Frequency:     a.Frequency,
		})
		for _, t := range a.Therapies {
			g.drugs[t.DrugName] = true
			if t.FDAApproved {
				g.approved[t.DrugName] = true
			}
		}
	}

	out := make([]GeneSummary, 0, len(byGene))
	for _, g := range byGene {
		s := g.summary
		s.CancerTypes = keys(g.cancerTypes)
		s.Drugs = keys(g.drugs)
		s.FDAApprovedDrugs = keys(g.approved)
		sort.SliceStable(s.TopMutations, func(i, j int) bool {
			a, b := s.TopMutations[i], s.TopMutations[j]
			if a.Frequency != b.Frequency {
				return a.Frequency > b.Frequency
			}
			if a.ProteinChange != b.ProteinChange {
				return a.ProteinChange < b.ProteinChange
			}
			return a.CancerType < b.CancerType
		})
		if len(s.TopMutations) > maxTopMutations {
			s.TopMutations = s.TopMutations[:maxTopMutations]
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalMutations != out[j].TotalMutations {
			return out[i].TotalMutations > out[j].TotalMutations
		}
		return out[i].GeneSymbol < out[j].GeneSymbol
	})
	return out
}

func keys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
