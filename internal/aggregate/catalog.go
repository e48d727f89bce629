package aggregate

import (
	"sort"

	"github.com/inodb/oncofreq/internal/cancertype"
	"github.com/inodb/oncofreq/internal/mutation"
)

// MaxTopVariants bounds OccurrenceRecord.TopVariants.
const MaxTopVariants = 5

type siteKey struct {
	gene string
	site string
}

type siteGroup struct {
	rows     int
	samples  map[string]struct{}
	variants map[string]int
	sources  map[string]struct{}
}

// Catalog counts mutations without a denominator per gene and site. The site is
// the primary site, else the cancer type. Records carry no frequency and are
// never combined with population frequency records.
func Catalog(muts []mutation.StandardizedMutation) []OccurrenceRecord {
	groups := make(map[siteKey]*siteGroup)
	for _, m := range muts {
		if m.GeneSymbol == "" {
			continue
		}
		site := m.PrimarySite
		if site == "" {
			site = m.CancerType
		}
		if site == "" {
			site = cancertype.Unknown
		}

		k := siteKey{gene: m.GeneSymbol, site: site}
		g, ok := groups[k]
		if !ok {
			g = &siteGroup{
				samples:  make(map[string]struct{}),
				variants: make(map[string]int),
				sources:  make(map[string]struct{}),
			}
			groups[k] = g
		}
		g.rows++
		if m.SampleID != "" {
			g.samples[m.SampleID] = struct{}{}
		}
		if m.ProteinChange != "" {
			g.variants[m.ProteinChange]++
		}
		g.sources[string(m.Source)] = struct{}{}
	}

	keys := make([]siteKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].gene != keys[j].gene {
			return keys[i].gene < keys[j].gene
		}
		return keys[i].site < keys[j].site
	})

	out := make([]OccurrenceRecord, 0, len(keys))
	for _, k := range keys {
		g := groups[k]
		out = append(out, OccurrenceRecord{
			GeneSymbol:      k.gene,
			Site:            k.site,
			OccurrenceCount: g.rows,
			UniqueSamples:   len(g.samples),
			UniqueVariants:  len(g.variants),
			TopVariants:     topVariants(g.variants),
			Sources:         sortedKeys(g.sources),
			QualityTier:     TierOccurrenceCount,
		})
	}
	return out
}

// topVariants orders by count descending, then protein change ascending.
func topVariants(counts map[string]int) []VariantCount {
	list := make([]VariantCount, 0, len(counts))
	for change, n := range counts {
		list = append(list, VariantCount{ProteinChange: change, Count: n})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Count != list[j].Count {
			return list[i].Count > list[j].Count
		}
		return list[i].ProteinChange < list[j].ProteinChange
	})
	if len(list) > MaxTopVariants {
		list = list[:MaxTopVariants]
	}
	return list
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
