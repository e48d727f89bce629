package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.Sources.CBioPortal.Enabled)
	assert.Equal(t, DefaultGenes, cfg.Sources.CBioPortal.Genes)
	assert.Equal(t, DefaultStudies, cfg.Sources.CBioPortal.Studies)
	assert.Zero(t, cfg.Sources.CBioPortal.MaxSamples)
	assert.False(t, cfg.Sources.COSMIC.Enabled)
	assert.Equal(t, 0.95, cfg.Aggregation.ConfidenceLevel)
	assert.Equal(t, 0.3, cfg.Aggregation.MaxCIWidth)
	assert.False(t, cfg.Aggregation.BestEffortDenominators)
	assert.Equal(t, 30*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, time.Hour, cfg.Timeout)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, "0 2 * * *", cfg.Schedule.Cron)
	assert.True(t, cfg.AnySourceEnabled())
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oncofreq.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: debug
  format: json
sources:
  cbioportal:
    enabled: false
  cosmic:
    enabled: true
    path: /data/CosmicMutantExport.tsv.gz
aggregation:
  confidence_level: 0.99
  best_effort_denominators: true
http:
  timeout: 5s
database:
  path: ""
`), 0o644))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.False(t, cfg.Sources.CBioPortal.Enabled)
	assert.True(t, cfg.Sources.COSMIC.Enabled)
	assert.Equal(t, "/data/CosmicMutantExport.tsv.gz", cfg.Sources.COSMIC.Path)
	assert.Equal(t, 0.99, cfg.Aggregation.ConfidenceLevel)
	assert.True(t, cfg.Aggregation.BestEffortDenominators)
	assert.Equal(t, 5*time.Second, cfg.HTTP.Timeout)
	assert.Empty(t, cfg.Database.Path)
	// untouched keys keep their defaults
	assert.Equal(t, 0.95, cfg.Aggregation.MaxFrequency)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("ONCOFREQ_DATABASE_PATH", "/tmp/env.duckdb")
	t.Setenv("ONCOFREQ_CONCURRENCY", "2")

	v := viper.New()
	BindEnv(v)
	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/env.duckdb", cfg.Database.Path)
	assert.Equal(t, 2, cfg.Concurrency)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  any
		want string
	}{
		{"confidence level", "aggregation.confidence_level", 1.5, "ConfidenceLevel"},
		{"log level", "log.level", "verbose", "Level"},
		{"concurrency", "concurrency", 0, "Concurrency"},
		{"cosmic without path", "sources.cosmic.enabled", true, "Path"},
		{"bad url", "sources.cbioportal.url", "not a url", "URL"},
		{"no genes", "sources.cbioportal.genes", []string{}, "genes and studies are required"},
		{"datahub without dirs", "sources.datahub.enabled", true, "dirs are required"},
		{"negative max samples", "sources.cbioportal.max_samples", -1, "MaxSamples"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			v.Set(tt.key, tt.val)
			_, err := Load(v)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
