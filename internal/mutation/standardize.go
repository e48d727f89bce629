package mutation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/inodb/oncofreq/internal/cancertype"
	"github.com/inodb/oncofreq/internal/variant"
)

// COSMIC has no study concept; all COSMIC samples share this study id.
const cosmicStudyID = "cosmic"

var (
	cdsSubstitution = regexp.MustCompile(`^c\.\d+(?:[+-]\d+)?([ACGT]+)>([ACGT]+)$`)
	genomePosition  = regexp.MustCompile(`^(?:chr)?([0-9XYMT]+):(\d+)(?:-(\d+))?$`)
)

// cbioMutation is a cBioPortal mutation in DETAILED projection, or a datahub MAF
// row rewritten with the same keys.
type cbioMutation struct {
	Gene struct {
		HugoGeneSymbol string `mapstructure:"hugoGeneSymbol"`
	} `mapstructure:"gene"`
	HugoGeneSymbol  string `mapstructure:"hugoGeneSymbol"`
	StudyID         string `mapstructure:"studyId"`
	SampleID        string `mapstructure:"sampleId"`
	PatientID       string `mapstructure:"patientId"`
	ProteinChange   string `mapstructure:"proteinChange"`
	Chr             string `mapstructure:"chr"`
	StartPosition   int64  `mapstructure:"startPosition"`
	EndPosition     int64  `mapstructure:"endPosition"`
	ReferenceAllele string `mapstructure:"referenceAllele"`
	VariantAllele   string `mapstructure:"variantAllele"`
	MutationType    string `mapstructure:"mutationType"`
	VariantType     string `mapstructure:"variantType"`
	TumorAltCount   *int64 `mapstructure:"tumorAltCount"`
	TumorRefCount   *int64 `mapstructure:"tumorRefCount"`
}

// cosmicMutation accepts both the API-style keys and the export column names.
type cosmicMutation struct {
	Gene             string `mapstructure:"gene"`
	GeneName         string `mapstructure:"gene_name"`
	ProteinChange    string `mapstructure:"protein_change"`
	MutationAA       string `mapstructure:"MutationAA"`
	CDSChange        string `mapstructure:"cds_change"`
	MutationCDS      string `mapstructure:"MutationCDS"`
	RefAllele        string `mapstructure:"ref_allele"`
	AltAllele        string `mapstructure:"alt_allele"`
	PrimarySite      string `mapstructure:"primary_site"`
	PrimaryHistology string `mapstructure:"primary_histology"`
	GenomePosition   string `mapstructure:"genome_position"`
	SampleID         string `mapstructure:"sample_id"`
	SampleName       string `mapstructure:"sample_name"`
	MutationID       string `mapstructure:"mutation_id"`
}

// Standardizer converts raw source records into StandardizedMutation values.
type Standardizer struct {
	mapper   *cancertype.Mapper
	validate *validator.Validate
	logger   *zap.Logger
}

// NewStandardizer creates a standardizer that maps disease labels with mapper.
func NewStandardizer(mapper *cancertype.Mapper) *Standardizer {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Standardizer{
		mapper:   mapper,
		validate: v,
		logger:   zap.NewNop(),
	}
}

// SetLogger sets the logger for skipped-record messages.
func (s *Standardizer) SetLogger(l *zap.Logger) {
	s.logger = l
}

// StandardizeCBioPortal converts cBioPortal mutations. studyLabels maps a study id
// to its disease label; studies without a label fall back to the study id prefix.
func (s *Standardizer) StandardizeCBioPortal(raw []map[string]any, studyLabels map[string]string) Batch {
	var b Batch
	for i, rec := range raw {
		var in cbioMutation
		if err := decode(rec, &in); err != nil {
			s.reject(&b, &MalformedRecordError{Source: SourceCBioPortal, Index: i, Reason: err.Error()})
			continue
		}

		gene := in.Gene.HugoGeneSymbol
		if gene == "" {
			gene = in.HugoGeneSymbol
		}
		label, ok := studyLabels[in.StudyID]
		if !ok || label == "" {
			label = cancertype.StudyLabel(in.StudyID)
		}

		m := StandardizedMutation{
			GeneSymbol:            normalizeGene(gene),
			CancerType:            s.mapper.MapToStandard(label),
			ProteinChange:         variant.Canonicalize(in.ProteinChange),
			Chromosome:            strings.TrimPrefix(in.Chr, "chr"),
			StartPosition:         in.StartPosition,
			EndPosition:           in.EndPosition,
			ReferenceAllele:       strings.TrimSpace(in.ReferenceAllele),
			VariantAllele:         strings.TrimSpace(in.VariantAllele),
			VariantType:           in.VariantType,
			VariantClassification: in.MutationType,
			SampleID:              SampleKey(in.StudyID, in.SampleID),
			PatientID:             in.PatientID,
			StudyID:               in.StudyID,
			AlleleFrequency:       alleleFrequency(in.TumorAltCount, in.TumorRefCount),
			Source:                SourceCBioPortal,
		}
		if err := s.check(m, SourceCBioPortal, i); err != nil {
			s.reject(&b, err)
			continue
		}
		b.Mutations = append(b.Mutations, m)
	}
	s.summarize(SourceCBioPortal, len(raw), b)
	return b
}

// StandardizeCOSMIC converts COSMIC mutant export rows.
func (s *Standardizer) StandardizeCOSMIC(raw []map[string]any) Batch {
	var b Batch
	for i, rec := range raw {
		var in cosmicMutation
		if err := decode(rec, &in); err != nil {
			s.reject(&b, &MalformedRecordError{Source: SourceCOSMIC, Index: i, Reason: err.Error()})
			continue
		}

		gene := firstNonEmpty(in.Gene, in.GeneName)
		// COSMIC suffixes alternative transcripts: BRAF_ENST00000288602.
		if idx := strings.IndexByte(gene, '_'); idx > 0 {
			gene = gene[:idx]
		}

		ref, alt := in.RefAllele, in.AltAllele
		if ref == "" || alt == "" {
			if m := cdsSubstitution.FindStringSubmatch(firstNonEmpty(in.CDSChange, in.MutationCDS)); m != nil {
				ref, alt = m[1], m[2]
			}
		}

		var chrom string
		var start, end int64
		if m := genomePosition.FindStringSubmatch(strings.TrimSpace(in.GenomePosition)); m != nil {
			chrom = m[1]
			start, _ = strconv.ParseInt(m[2], 10, 64)
			end = start
			if m[3] != "" {
				end, _ = strconv.ParseInt(m[3], 10, 64)
			}
		}

		m := StandardizedMutation{
			GeneSymbol:       normalizeGene(gene),
			CancerType:       s.mapper.MapSite(in.PrimaryHistology, in.PrimarySite),
			ProteinChange:    variant.Canonicalize(firstNonEmpty(in.ProteinChange, in.MutationAA)),
			Chromosome:       chrom,
			StartPosition:    start,
			EndPosition:      end,
			ReferenceAllele:  ref,
			VariantAllele:    alt,
			SampleID:         SampleKey(cosmicStudyID, firstNonEmpty(in.SampleID, in.SampleName)),
			StudyID:          cosmicStudyID,
			PrimarySite:      in.PrimarySite,
			PrimaryHistology: in.PrimaryHistology,
			Source:           SourceCOSMIC,
		}
		if err := s.check(m, SourceCOSMIC, i); err != nil {
			s.reject(&b, err)
			continue
		}
		b.Mutations = append(b.Mutations, m)
	}
	s.summarize(SourceCOSMIC, len(raw), b)
	return b
}

// Validate checks the usability invariants of a standardized mutation.
func (s *Standardizer) Validate(m StandardizedMutation) error {
	return s.validate.Struct(m)
}

func (s *Standardizer) check(m StandardizedMutation, src Source, index int) *MalformedRecordError {
	err := s.validate.Struct(m)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &MalformedRecordError{
			Source: src,
			Index:  index,
			Field:  fe.Field(),
			Reason: fmt.Sprintf("failed %q check", fe.Tag()),
		}
	}
	return &MalformedRecordError{Source: src, Index: index, Reason: err.Error()}
}

func (s *Standardizer) reject(b *Batch, err *MalformedRecordError) {
	b.Malformed++
	b.Errors = append(b.Errors, err)
	s.logger.Debug("skipping malformed record",
		zap.String("source", string(err.Source)),
		zap.Int("index", err.Index),
		zap.String("field", err.Field),
		zap.String("reason", err.Reason))
}

func (s *Standardizer) summarize(src Source, total int, b Batch) {
	if b.Malformed > 0 {
		s.logger.Warn("skipped malformed records",
			zap.String("source", string(src)),
			zap.Int("total", total),
			zap.Int("malformed", b.Malformed))
	}
}

func decode(in map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("create decoder: %w", err)
	}
	return dec.Decode(in)
}

func normalizeGene(gene string) string {
	return strings.ToUpper(strings.TrimSpace(gene))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// alleleFrequency returns alt/(alt+ref) when both read counts are present.
func alleleFrequency(alt, ref *int64) *float64 {
	if alt == nil || ref == nil || *alt < 0 || *ref < 0 || *alt+*ref == 0 {
		return nil
	}
	af := float64(*alt) / float64(*alt+*ref)
	return &af
}
