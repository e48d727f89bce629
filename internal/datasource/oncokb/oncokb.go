// Package oncokb loads the OncoKB cancer gene list.
package oncokb

import (
	"fmt"
	"sort"
	"strings"

	"github.com/inodb/oncofreq/internal/tsv"
)

// Column names of cancerGeneList.tsv.
const (
	ColHugoSymbol = "Hugo Symbol"
	ColGeneType   = "Gene Type"
)

// Annotation holds OncoKB gene-level annotations.
type Annotation struct {
	HugoSymbol string
	GeneType   string // "ONCOGENE", "TSG", or "ONCOGENE,TSG"
}

// IsOncogene reports whether the gene type includes ONCOGENE.
func (a *Annotation) IsOncogene() bool {
	for _, t := range strings.Split(a.GeneType, ",") {
		if strings.EqualFold(strings.TrimSpace(t), "ONCOGENE") {
			return true
		}
	}
	return false
}

// CancerGeneList maps Hugo Symbol to Annotation.
type CancerGeneList map[string]*Annotation

// IsCancerGene returns true if the gene is in the cancer gene list.
func (c CancerGeneList) IsCancerGene(gene string) bool {
	_, ok := c[gene]
	return ok
}

// Oncogenes returns the sorted symbols of every oncogene in the list.
func (c CancerGeneList) Oncogenes() []string {
	var out []string
	for gene, ann := range c {
		if ann.IsOncogene() {
			out = append(out, gene)
		}
	}
	sort.Strings(out)
	return out
}

// LoadCancerGeneList loads an OncoKB cancerGeneList.tsv file, plain or gzipped.
// The TSV must have columns "Hugo Symbol" and "Gene Type" in the header.
func LoadCancerGeneList(path string) (CancerGeneList, error) {
	r, err := tsv.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cancer gene list: %w", err)
	}
	defer r.Close()

	if err := r.Require(ColHugoSymbol, ColGeneType); err != nil {
		return nil, fmt.Errorf("cancer gene list: %w", err)
	}

	cgl := make(CancerGeneList)
	for {
		row, err := r.Next()
		if err != nil {
			return nil, fmt.Errorf("reading cancer gene list: %w", err)
		}
		if row == nil {
			break
		}
		hugo := strings.ToUpper(row.Get(ColHugoSymbol))
		if hugo == "" {
			continue
		}
		cgl[hugo] = &Annotation{
			HugoSymbol: hugo,
			GeneType:   row.Get(ColGeneType),
		}
	}

	return cgl, nil
}
