// Package config loads the oncofreq settings from viper into a validated
// struct. Settings come from ~/.oncofreq.yaml (or --config), ONCOFREQ_*
// environment variables, and the defaults below.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g. ONCOFREQ_DATABASE_PATH.
const EnvPrefix = "ONCOFREQ"

// DefaultStudies are representative TCGA PanCancer Atlas studies of major
// cancer types.
var DefaultStudies = []string{
	"brca_tcga_pan_can_atlas_2018",
	"luad_tcga_pan_can_atlas_2018",
	"coadread_tcga_pan_can_atlas_2018",
	"skcm_tcga_pan_can_atlas_2018",
	"paad_tcga_pan_can_atlas_2018",
	"prad_tcga_pan_can_atlas_2018",
	"gbm_tcga_pan_can_atlas_2018",
	"ov_tcga_pan_can_atlas_2018",
}

// DefaultGenes are the clinically actionable genes queried by default.
var DefaultGenes = []string{
	"TP53", "KRAS", "PIK3CA", "BRAF", "EGFR",
	"PTEN", "NRAS", "IDH1", "ERBB2", "APC",
}

// Config is the full oncofreq configuration.
type Config struct {
	Log         LogConfig         `mapstructure:"log"`
	Knowledge   KnowledgeConfig   `mapstructure:"knowledge"`
	Sources     SourcesConfig     `mapstructure:"sources"`
	HTTP        HTTPConfig        `mapstructure:"http"`
	Aggregation AggregationConfig `mapstructure:"aggregation"`
	Snapshots   SnapshotConfig    `mapstructure:"snapshots"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Schedule    ScheduleConfig    `mapstructure:"schedule"`

	// Timeout bounds the wall time of one run.
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
	// Concurrency is the number of extractors run at once.
	Concurrency int `mapstructure:"concurrency" validate:"gte=1"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

type KnowledgeConfig struct {
	// Path of a YAML file layered over the built-in knowledge tables.
	Path string `mapstructure:"path"`
	// CancerGeneList is an OncoKB cancerGeneList.tsv whose oncogenes replace
	// the built-in oncogene list.
	CancerGeneList string `mapstructure:"cancer_gene_list"`
}

type SourcesConfig struct {
	CBioPortal CBioPortalConfig `mapstructure:"cbioportal"`
	Datahub    DatahubConfig    `mapstructure:"datahub"`
	COSMIC     FileSourceConfig `mapstructure:"cosmic"`
	CIViC      FileSourceConfig `mapstructure:"civic"`
	DGIdb      DGIdbConfig      `mapstructure:"dgidb"`
}

type CBioPortalConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	URL     string   `mapstructure:"url" validate:"omitempty,url"`
	Genes   []string `mapstructure:"genes" validate:"dive,required"`
	Studies []string `mapstructure:"studies" validate:"dive,required"`
	// MaxSamples caps the samples queried per study. Zero queries all of them.
	MaxSamples int `mapstructure:"max_samples" validate:"gte=0"`
}

type DatahubConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Dirs    []string `mapstructure:"dirs" validate:"dive,required"`
}

type FileSourceConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Path is a local file or an http(s) URL.
	Path string `mapstructure:"path" validate:"required_if=Enabled true"`
}

type DGIdbConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url" validate:"omitempty,url"`
}

type HTTPConfig struct {
	Timeout           time.Duration `mapstructure:"timeout" validate:"gt=0"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" validate:"gte=0"`
	Burst             int           `mapstructure:"burst" validate:"gte=1"`
	MaxRetries        int           `mapstructure:"max_retries" validate:"gte=0"`
	UserAgent         string        `mapstructure:"user_agent"`
}

type AggregationConfig struct {
	ConfidenceLevel   float64 `mapstructure:"confidence_level" validate:"gt=0,lt=1"`
	MaxFrequency      float64 `mapstructure:"max_frequency" validate:"gte=0,lte=1"`
	MaxCIWidth        float64 `mapstructure:"max_ci_width" validate:"gte=0,lte=1"`
	HotspotFloorRatio float64 `mapstructure:"hotspot_floor_ratio" validate:"gte=0,lte=1"`
	// CheckExpectations gates records against the documented hotspot
	// frequency ranges of the knowledge tables.
	CheckExpectations bool `mapstructure:"check_expectations"`
	// BestEffortDenominators estimates missing denominators from cohort sizes.
	// Estimated records are flagged and kept apart from validated ones.
	BestEffortDenominators bool `mapstructure:"best_effort_denominators"`
}

type SnapshotConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Dir      string `mapstructure:"dir" validate:"required_if=Enabled true"`
	Compress bool   `mapstructure:"compress"`
}

type DatabaseConfig struct {
	// Path of the DuckDB file. Empty keeps the database in memory.
	Path string `mapstructure:"path"`
}

type MetricsConfig struct {
	// Textfile is written after every run when set.
	Textfile string `mapstructure:"textfile"`
	// Listen serves /metrics in schedule mode when set, e.g. ":9108".
	Listen string `mapstructure:"listen" validate:"omitempty,hostname_port"`
}

type ScheduleConfig struct {
	// Cron is a standard five-field cron expression.
	Cron string `mapstructure:"cron" validate:"required"`
	// RunOnStart runs once immediately when the scheduler starts.
	RunOnStart bool `mapstructure:"run_on_start"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("knowledge.path", "")
	v.SetDefault("knowledge.cancer_gene_list", "")

	v.SetDefault("sources.cbioportal.enabled", true)
	v.SetDefault("sources.cbioportal.url", "https://www.cbioportal.org/api")
	v.SetDefault("sources.cbioportal.genes", DefaultGenes)
	v.SetDefault("sources.cbioportal.studies", DefaultStudies)
	v.SetDefault("sources.cbioportal.max_samples", 0)
	v.SetDefault("sources.datahub.enabled", false)
	v.SetDefault("sources.datahub.dirs", []string{})
	v.SetDefault("sources.cosmic.enabled", false)
	v.SetDefault("sources.cosmic.path", "")
	v.SetDefault("sources.civic.enabled", true)
	v.SetDefault("sources.civic.path", "https://civicdb.org/downloads/nightly/nightly-ClinicalEvidenceSummaries.tsv")
	v.SetDefault("sources.dgidb.enabled", true)
	v.SetDefault("sources.dgidb.url", "https://dgidb.org/api/graphql")

	v.SetDefault("http.timeout", 30*time.Second)
	v.SetDefault("http.requests_per_second", 5.0)
	v.SetDefault("http.burst", 5)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.user_agent", "oncofreq")

	v.SetDefault("aggregation.confidence_level", 0.95)
	v.SetDefault("aggregation.max_frequency", 0.95)
	v.SetDefault("aggregation.max_ci_width", 0.3)
	v.SetDefault("aggregation.hotspot_floor_ratio", 0.1)
	v.SetDefault("aggregation.check_expectations", false)
	v.SetDefault("aggregation.best_effort_denominators", false)

	v.SetDefault("snapshots.enabled", true)
	v.SetDefault("snapshots.dir", "data")
	v.SetDefault("snapshots.compress", true)

	v.SetDefault("database.path", "data/oncofreq.duckdb")

	v.SetDefault("metrics.textfile", "")
	v.SetDefault("metrics.listen", "")

	v.SetDefault("schedule.cron", "0 2 * * *")
	v.SetDefault("schedule.run_on_start", false)

	v.SetDefault("timeout", time.Hour)
	v.SetDefault("concurrency", 4)
}

// BindEnv makes every key overridable through ONCOFREQ_* variables.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load registers defaults on v, unmarshals it and validates the result.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New()

// Validate checks field constraints and reports every failing field.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return c.check()
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// check covers constraints that span fields.
func (c *Config) check() error {
	var msgs []string
	cb := c.Sources.CBioPortal
	if cb.Enabled && (len(cb.Genes) == 0 || len(cb.Studies) == 0) {
		msgs = append(msgs, "sources.cbioportal: genes and studies are required when enabled")
	}
	if c.Sources.Datahub.Enabled && len(c.Sources.Datahub.Dirs) == 0 {
		msgs = append(msgs, "sources.datahub: dirs are required when enabled")
	}
	if len(msgs) == 0 {
		return nil
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// AnySourceEnabled reports whether at least one mutation source is enabled.
func (c *Config) AnySourceEnabled() bool {
	s := c.Sources
	return s.CBioPortal.Enabled || s.Datahub.Enabled || s.COSMIC.Enabled
}
