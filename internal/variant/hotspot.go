package variant

import "strings"

// HotspotTable maps a gene symbol to its recurrently mutated codon positions.
type HotspotTable map[string]map[int64]bool

// NewHotspotTable builds a table from gene -> positions lists.
func NewHotspotTable(positions map[string][]int64) HotspotTable {
	t := make(HotspotTable, len(positions))
	for gene, list := range positions {
		gene = strings.ToUpper(strings.TrimSpace(gene))
		if t[gene] == nil {
			t[gene] = make(map[int64]bool, len(list))
		}
		for _, pos := range list {
			t[gene][pos] = true
		}
	}
	return t
}

// IsHotspot reports whether pos is a known hotspot codon of gene.
func (t HotspotTable) IsHotspot(gene string, pos int64) bool {
	return t[strings.ToUpper(gene)][pos]
}

// IsHotspotChange is IsHotspot applied to the position of a protein change.
func (t HotspotTable) IsHotspotChange(gene, change string) bool {
	pos, ok := ExtractPosition(change)
	return ok && t.IsHotspot(gene, pos)
}

// Genes returns the number of genes with at least one hotspot.
func (t HotspotTable) Genes() int {
	return len(t)
}

// DefaultHotspotPositions lists well-characterized oncogenic hotspot codons.
var DefaultHotspotPositions = map[string][]int64{
	"KRAS":   {12, 13, 61, 117, 146},
	"NRAS":   {12, 13, 61},
	"BRAF":   {600},
	"EGFR":   {719, 746, 747, 748, 749, 750, 751, 752, 790, 858},
	"TP53":   {175, 245, 248, 249, 273, 282},
	"PIK3CA": {542, 545, 546, 1047},
	"IDH1":   {132},
	"IDH2":   {140, 172},
	"FLT3":   {835},
	"KIT":    {816, 820},
	"ERBB2":  {755, 769, 770},
	"AKT1":   {17},
	"PTEN":   {130, 173, 233, 267},
}

var defaultHotspots = NewHotspotTable(DefaultHotspotPositions)

// DefaultHotspots returns the built-in hotspot table.
func DefaultHotspots() HotspotTable {
	return defaultHotspots
}

// IsHotspot reports whether pos is a hotspot of gene in the built-in table.
func IsHotspot(gene string, pos int64) bool {
	return defaultHotspots.IsHotspot(gene, pos)
}
