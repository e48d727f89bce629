package output

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/inodb/oncofreq/internal/aggregate"
	"github.com/inodb/oncofreq/internal/therapeutic"
)

// Sheet names of the gold workbook.
const (
	SheetFrequencies  = "Frequencies"
	SheetRejected     = "Rejected"
	SheetCatalog      = "Catalog"
	SheetAssociations = "Therapeutics"
	SheetGenes        = "Genes"
)

// Report is the content of the gold workbook.
type Report struct {
	Frequencies  []aggregate.FrequencyRecord
	Rejected     []*aggregate.PlausibilityRejection
	Catalog      []aggregate.OccurrenceRecord
	Associations []therapeutic.Association
}

// WriteWorkbook writes the report as an xlsx workbook at path, one sheet per
// result kind with a bold frozen header row.
func WriteWorkbook(path string, r Report) error {
	f := excelize.NewFile()
	defer f.Close()

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	freqRows := make([][]any, 0, len(r.Frequencies))
	for _, rec := range r.Frequencies {
		freqRows = append(freqRows, []any{
			rec.GeneSymbol, rec.CancerType, rec.ProteinChange, rec.Position,
			rec.ReferenceAllele, rec.VariantAllele, rec.MutationCount, rec.TotalSamples,
			rec.Frequency, rec.CILow, rec.CIHigh, rec.IsHotspot, string(rec.QualityTier),
			rec.DenominatorEstimated, strings.Join(rec.StudyIDs, ","),
		})
	}

	rejectedRows := make([][]any, 0, len(r.Rejected))
	for _, rej := range r.Rejected {
		rec := rej.Record
		rejectedRows = append(rejectedRows, []any{
			rec.GeneSymbol, rec.CancerType, rec.Variant, rec.MutationCount, rec.TotalSamples,
			rec.Frequency, rec.CILow, rec.CIHigh, strings.Join(rej.Codes(), ","),
		})
	}

	catalogRows := make([][]any, 0, len(r.Catalog))
	for _, c := range r.Catalog {
		top := make([]string, len(c.TopVariants))
		for i, v := range c.TopVariants {
			top[i] = fmt.Sprintf("%s (%d)", v.ProteinChange, v.Count)
		}
		catalogRows = append(catalogRows, []any{
			c.GeneSymbol, c.Site, c.OccurrenceCount, c.UniqueSamples, c.UniqueVariants,
			strings.Join(top, ", "), strings.Join(c.Sources, ","),
		})
	}

	var assocRows [][]any
	for _, a := range r.Associations {
		for _, t := range a.Therapies {
			assocRows = append(assocRows, []any{
				a.GeneSymbol, a.ProteinChange, a.CancerType, a.MutationCount, a.Frequency,
				t.DrugName, string(t.Tier), t.FDAApproved,
			})
		}
	}

	geneRows := make([][]any, 0)
	for _, g := range therapeutic.SummarizeByGene(r.Associations) {
		geneRows = append(geneRows, []any{
			g.GeneSymbol, g.Associations, g.TotalMutations,
			strings.Join(g.CancerTypes, ", "), strings.Join(g.Drugs, ", "),
			strings.Join(g.FDAApprovedDrugs, ", "),
		})
	}

	sheets := []struct {
		name    string
		columns []string
		rows    [][]any
	}{
		{SheetFrequencies, FrequencyColumns, freqRows},
		{SheetRejected, []string{"gene_symbol", "cancer_type", "variant", "mutation_count",
			"total_samples", "frequency", "frequency_ci_low", "frequency_ci_high", "reasons"}, rejectedRows},
		{SheetCatalog, []string{"gene_symbol", "site", "occurrence_count", "unique_samples",
			"unique_variants", "top_variants", "sources"}, catalogRows},
		{SheetAssociations, []string{"gene", "protein_change", "cancer_type", "mutation_count",
			"frequency", "drug_name", "association_level", "fda_approved"}, assocRows},
		{SheetGenes, []string{"gene", "mutation_count", "total_mutations", "cancer_types",
			"all_drugs", "fda_approved_drugs"}, geneRows},
	}

	for i, sh := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sh.name); err != nil {
				return fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(sh.name); err != nil {
			return fmt.Errorf("create sheet %s: %w", sh.name, err)
		}
		if err := writeSheet(f, sh.name, sh.columns, sh.rows, header); err != nil {
			return fmt.Errorf("write sheet %s: %w", sh.name, err)
		}
	}
	f.SetActiveSheet(0)

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, columns []string, rows [][]any, style int) error {
	head := make([]any, len(columns))
	for i, c := range columns {
		head[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &head); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(columns), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return err
	}
	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}
