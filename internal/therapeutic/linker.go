package therapeutic

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/inodb/oncofreq/internal/aggregate"
	"github.com/inodb/oncofreq/internal/knowledge"
	"github.com/inodb/oncofreq/internal/variant"
)

// MaxTherapies bounds the therapies attached to one association.
const MaxTherapies = 5

// Tier is how specifically a therapy matches a mutation.
type Tier string

// Tiers, most specific first.
const (
	TierMutationSpecific Tier = "mutation_specific"
	TierHotspot          Tier = "hotspot"
	TierGeneLevel        Tier = "gene_level"
)

// inhibitingTypes are the interaction types that make a gene-level match
// relevant for an oncogene.
var inhibitingTypes = []string{"inhibitor", "antagonist", "blocker"}

// Therapy is one drug attached to an association.
type Therapy struct {
	DrugName         string   `json:"drug_name"`
	Tier             Tier     `json:"association_level"`
	FDAApproved      bool     `json:"fda_approved"`
	InteractionTypes []string `json:"interaction_types,omitempty"`
	Sources          []string `json:"sources,omitempty"`
}

// Association links one frequency record to its therapies.
type Association struct {
	GeneSymbol    string    `json:"gene"`
	ProteinChange string    `json:"protein_change"`
	Variant       string    `json:"variant"`
	CancerType    string    `json:"cancer_type"`
	Position      int64     `json:"position"`
	MutationCount int       `json:"mutation_count"`
	Frequency     float64   `json:"frequency"`
	Therapies     []Therapy `json:"therapeutics"`
}

// Linker associates frequency records with therapies.
type Linker struct {
	kb        *knowledge.Base
	hotspots  variant.HotspotTable
	oncogenes map[string]bool
	logger    *zap.Logger
}

// NewLinker creates a linker over the knowledge tables. A nil hotspot table
// means the built-in one.
func NewLinker(kb *knowledge.Base, hotspots variant.HotspotTable) *Linker {
	if hotspots == nil {
		hotspots = variant.DefaultHotspots()
	}
	l := &Linker{kb: kb, hotspots: hotspots, logger: zap.NewNop()}
	l.SetOncogenes(kb.Oncogenes)
	return l
}

// SetLogger sets the logger.
func (l *Linker) SetLogger(logger *zap.Logger) {
	l.logger = logger
}

// SetOncogenes replaces the oncogene list. An empty list is ignored.
func (l *Linker) SetOncogenes(genes []string) {
	if len(genes) == 0 {
		return
	}
	l.oncogenes = make(map[string]bool, len(genes))
	for _, g := range genes {
		l.oncogenes[strings.ToUpper(strings.TrimSpace(g))] = true
	}
}

// variantDrugs indexes variant-specific drugs by gene and canonical protein change.
type variantDrugs map[string]map[string][]Interaction

func (v variantDrugs) add(gene, change string, it Interaction) {
	if v[gene] == nil {
		v[gene] = make(map[string][]Interaction)
	}
	v[gene][change] = append(v[gene][change], it)
}

// Associate attaches therapies to each record. Mutation-specific matches come
// first, then hotspot codon matches, then gene-level interactions. A drug is
// listed once at its most specific tier and at most MaxTherapies are kept.
// Records without any therapy are omitted. The result is ordered by mutation
// count descending, then gene, cancer type and protein change.
func (l *Linker) Associate(records []aggregate.FrequencyRecord, interactions []Interaction) []Association {
	// Raw keys that canonicalize to the same gene and change are merged in
	// sorted key order so the MaxTherapies cap always keeps the same drugs.
	byVariant := make(variantDrugs)
	for _, rawGene := range sortedKeys(l.kb.MutationTherapies) {
		gene := strings.ToUpper(strings.TrimSpace(rawGene))
		changes := l.kb.MutationTherapies[rawGene]
		for _, change := range sortedKeys(changes) {
			for _, d := range changes[change] {
				byVariant.add(gene, variant.Canonicalize(change), Interaction{GeneName: gene, DrugName: d})
			}
		}
	}

	byGene := make(map[string][]Interaction)
	for _, it := range interactions {
		gene := strings.ToUpper(it.GeneName)
		if it.Variant != "" {
			byVariant.add(gene, variant.Canonicalize(it.Variant), it)
			continue
		}
		byGene[gene] = append(byGene[gene], it)
	}
	for gene := range byGene {
		list := byGene[gene]
		sort.SliceStable(list, func(i, j int) bool { return list[i].DrugName < list[j].DrugName })
	}

	var out []Association
	for _, rec := range records {
		therapies := l.therapiesFor(rec, byVariant, byGene)
		if len(therapies) == 0 {
			continue
		}
		pos, _ := variant.ExtractPosition(rec.ProteinChange)
		out = append(out, Association{
			GeneSymbol:    rec.GeneSymbol,
			ProteinChange: rec.ProteinChange,
			Variant:       rec.Variant,
			CancerType:    rec.CancerType,
			Position:      pos,
			MutationCount: rec.MutationCount,
			Frequency:     rec.Frequency,
			Therapies:     therapies,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.MutationCount != b.MutationCount {
			return a.MutationCount > b.MutationCount
		}
		if a.GeneSymbol != b.GeneSymbol {
			return a.GeneSymbol < b.GeneSymbol
		}
		if a.CancerType != b.CancerType {
			return a.CancerType < b.CancerType
		}
		if a.ProteinChange != b.ProteinChange {
			return a.ProteinChange < b.ProteinChange
		}
		return a.Variant < b.Variant
	})

	l.logger.Info("linked therapies",
		zap.Int("records", len(records)),
		zap.Int("interactions", len(interactions)),
		zap.Int("associations", len(out)))
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (l *Linker) therapiesFor(rec aggregate.FrequencyRecord, byVariant variantDrugs, byGene map[string][]Interaction) []Therapy {
	gene := strings.ToUpper(rec.GeneSymbol)
	var out []Therapy
	seen := make(map[string]bool)
	add := func(tier Tier, it Interaction) {
		key := strings.ToLower(it.DrugName)
		if seen[key] || len(out) >= MaxTherapies {
			return
		}
		seen[key] = true
		out = append(out, Therapy{
			DrugName:         it.DrugName,
			Tier:             tier,
			FDAApproved:      it.Approved || l.kb.IsFDAApproved(it.DrugName),
			InteractionTypes: it.InteractionTypes,
			Sources:          it.Sources,
		})
	}

	if rec.ProteinChange != "" {
		for _, it := range byVariant[gene][rec.ProteinChange] {
			add(TierMutationSpecific, it)
		}
	}

	if pos, ok := variant.ExtractPosition(rec.ProteinChange); ok && l.hotspots.IsHotspot(gene, pos) {
		for _, d := range l.kb.HotspotDrugs[gene][pos] {
			add(TierHotspot, Interaction{GeneName: gene, DrugName: d})
		}
	}

	for _, it := range byGene[gene] {
		if l.relevant(gene, it) {
			add(TierGeneLevel, it)
		}
	}
	return out
}

// relevant reports whether a gene-level interaction applies. Oncogenes need
// an inhibiting interaction; any interaction applies to other genes.
func (l *Linker) relevant(gene string, it Interaction) bool {
	if !l.oncogenes[gene] {
		return true
	}
	for _, t := range it.InteractionTypes {
		for _, want := range inhibitingTypes {
			if strings.EqualFold(strings.TrimSpace(t), want) {
				return true
			}
		}
	}
	return false
}
