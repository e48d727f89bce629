// Package cancertype maps source-specific disease labels onto a controlled vocabulary.
package cancertype

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Unknown is returned for empty labels.
const Unknown = "Unknown"

// DefaultMappings holds the exact-match vocabulary (TCGA codes and common long names).
var DefaultMappings = map[string]string{
	"LUAD":     "NSCLC",
	"LUSC":     "NSCLC",
	"NSCLC":    "NSCLC",
	"SCLC":     "SCLC",
	"SKCM":     "Melanoma",
	"BRCA":     "Breast",
	"COAD":     "Colorectal",
	"READ":     "Colorectal",
	"COADREAD": "Colorectal",
	"PAAD":     "Pancreatic",
	"GBM":      "Glioblastoma",
	"OV":       "Ovarian",
	"LIHC":     "Liver",
	"KIRC":     "Kidney",
	"BLCA":     "Bladder",
	"PRAD":     "Prostate",
	"STAD":     "Gastric",
	"HNSC":     "Head and Neck",
	"THCA":     "Thyroid",
	"LAML":     "AML",

	"Lung Adenocarcinoma":                   "NSCLC",
	"Lung Squamous Cell Carcinoma":          "NSCLC",
	"Non-Small Cell Lung Cancer":            "NSCLC",
	"Small Cell Lung Cancer":                "SCLC",
	"Skin Cutaneous Melanoma":               "Melanoma",
	"Cutaneous Melanoma":                    "Melanoma",
	"Melanoma":                              "Melanoma",
	"Breast Invasive Carcinoma":             "Breast",
	"Breast Cancer":                         "Breast",
	"Colon Adenocarcinoma":                  "Colorectal",
	"Rectum Adenocarcinoma":                 "Colorectal",
	"Colorectal Adenocarcinoma":             "Colorectal",
	"Colorectal Cancer":                     "Colorectal",
	"Pancreatic Adenocarcinoma":             "Pancreatic",
	"Pancreatic Cancer":                     "Pancreatic",
	"Glioblastoma Multiforme":               "Glioblastoma",
	"Glioblastoma":                          "Glioblastoma",
	"Ovarian Serous Cystadenocarcinoma":     "Ovarian",
	"Liver Hepatocellular Carcinoma":        "Liver",
	"Hepatocellular Carcinoma":              "Liver",
	"Kidney Renal Clear Cell Carcinoma":     "Kidney",
	"Renal Clear Cell Carcinoma":            "Kidney",
	"Bladder Urothelial Carcinoma":          "Bladder",
	"Prostate Adenocarcinoma":               "Prostate",
	"Stomach Adenocarcinoma":                "Gastric",
	"Head and Neck Squamous Cell Carcinoma": "Head and Neck",
	"Thyroid Carcinoma":                     "Thyroid",
	"Acute Myeloid Leukemia":                "AML",
}

// heuristic matches a lower-cased label containing every entry of all and,
// when any is set, at least one entry of any.
type heuristic struct {
	any      []string
	all      []string
	standard string
}

// Checked in order; the first hit wins.
var heuristics = []heuristic{
	{any: []string{"non-small cell", "non small cell"}, standard: "NSCLC"},
	{all: []string{"lung", "small cell"}, standard: "SCLC"},
	{any: []string{"lung"}, standard: "NSCLC"},
	{any: []string{"breast"}, standard: "Breast"},
	{any: []string{"colon", "colorectal", "rectal", "rectum", "large intestine"}, standard: "Colorectal"},
	{any: []string{"melanoma"}, standard: "Melanoma"},
	{any: []string{"pancrea"}, standard: "Pancreatic"},
	{any: []string{"glioblastoma", "gbm"}, standard: "Glioblastoma"},
	{any: []string{"prostate"}, standard: "Prostate"},
	{any: []string{"kidney", "renal"}, standard: "Kidney"},
	{any: []string{"bladder", "urothelial"}, standard: "Bladder"},
	{any: []string{"liver", "hepato"}, standard: "Liver"},
	{any: []string{"ovarian", "ovary"}, standard: "Ovarian"},
	{any: []string{"thyroid"}, standard: "Thyroid"},
	{any: []string{"gastric", "stomach"}, standard: "Gastric"},
	{all: []string{"head", "neck"}, standard: "Head and Neck"},
	{any: []string{"acute myeloid", "aml"}, standard: "AML"},
}

func (h heuristic) matches(lower string) bool {
	for _, s := range h.all {
		if !strings.Contains(lower, s) {
			return false
		}
	}
	if len(h.all) > 0 && len(h.any) == 0 {
		return true
	}
	for _, s := range h.any {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// Suffixes removed before title-casing an unmapped label. Longer words first.
var strippedSuffixes = []string{"Adenocarcinoma", "Carcinoma", "Cancer"}

// Mapper maps disease labels to standard cancer types. It is safe for concurrent use.
type Mapper struct {
	exact map[string]string
	fold  map[string]string
}

// NewMapper creates a mapper over table. A nil table uses DefaultMappings.
func NewMapper(table map[string]string) *Mapper {
	if table == nil {
		table = DefaultMappings
	}
	m := &Mapper{
		exact: make(map[string]string, len(table)),
		fold:  make(map[string]string, len(table)),
	}

	// Sorted so that case-insensitive collisions resolve the same way every time.
	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		m.exact[k] = table[k]
		lk := strings.ToLower(k)
		if _, ok := m.fold[lk]; !ok {
			m.fold[lk] = table[k]
		}
	}
	return m
}

// WithMappings returns a new mapper with extra entries layered over m's table.
func (m *Mapper) WithMappings(extra map[string]string) *Mapper {
	merged := make(map[string]string, len(m.exact)+len(extra))
	for k, v := range m.exact {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return NewMapper(merged)
}

// MapToStandard returns the standard cancer type for raw. It never returns "".
func (m *Mapper) MapToStandard(raw string) string {
	std, _ := m.lookup(raw)
	return std
}

// lookup maps raw and reports whether the table or a heuristic recognized
// it. Unrecognized labels come back cleaned and title-cased.
func (m *Mapper) lookup(raw string) (string, bool) {
	label := strings.TrimSpace(raw)
	if label == "" {
		return Unknown, false
	}

	if std, ok := m.exact[label]; ok {
		return std, true
	}
	lower := strings.ToLower(label)
	if std, ok := m.fold[lower]; ok {
		return std, true
	}

	for _, h := range heuristics {
		if h.matches(lower) {
			return h.standard, true
		}
	}

	return cleanLabel(label), false
}

// MapSite maps a COSMIC sample, preferring a recognized histology over the primary site.
// COSMIC writes "NS" for not specified.
func (m *Mapper) MapSite(histology, site string) string {
	histology = siteLabel(histology)
	site = siteLabel(site)
	if histology != "" {
		if std, ok := m.lookup(histology); ok {
			return std
		}
	}
	if site != "" {
		return m.MapToStandard(site)
	}
	return m.MapToStandard(histology)
}

func siteLabel(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "_", " "))
	if strings.EqualFold(s, "NS") {
		return ""
	}
	return s
}

func cleanLabel(label string) string {
	cleaned := label
	for _, suffix := range strippedSuffixes {
		cleaned = strings.ReplaceAll(cleaned, suffix, "")
	}
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	if cleaned == "" {
		return label
	}
	return cases.Title(language.English).String(cleaned)
}

// StudyLabel infers a disease code from a cBioPortal study id such as
// "luad_tcga_pan_can_atlas_2018". It returns "" when the id has no prefix.
func StudyLabel(studyID string) string {
	prefix, _, _ := strings.Cut(strings.TrimSpace(studyID), "_")
	return strings.ToUpper(prefix)
}
