package pipeline

import (
	"go.uber.org/zap"

	"github.com/inodb/oncofreq/internal/config"
	"github.com/inodb/oncofreq/internal/extract"
)

// BuildExtractors creates the enabled extractors and, when enabled, the
// interaction source. They share one rate limited HTTP client.
func BuildExtractors(cfg *config.Config, logger *zap.Logger) ([]extract.Extractor, InteractionSource) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := extract.DefaultClientOptions()
	opts.Timeout = cfg.HTTP.Timeout
	opts.RequestsPerSecond = cfg.HTTP.RequestsPerSecond
	opts.Burst = cfg.HTTP.Burst
	opts.MaxRetries = cfg.HTTP.MaxRetries
	if cfg.HTTP.UserAgent != "" {
		opts.UserAgent = cfg.HTTP.UserAgent
	}
	client := extract.NewClient(opts)
	client.SetLogger(logger)

	var extractors []extract.Extractor
	src := cfg.Sources
	if src.CBioPortal.Enabled {
		cb := extract.NewCBioPortal(client, src.CBioPortal.URL, src.CBioPortal.Genes, src.CBioPortal.Studies)
		cb.MaxSamples = src.CBioPortal.MaxSamples
		cb.SetLogger(logger)
		extractors = append(extractors, cb)
	}
	if src.Datahub.Enabled {
		dh := extract.NewDatahub(src.Datahub.Dirs)
		dh.SetLogger(logger)
		extractors = append(extractors, dh)
	}
	if src.COSMIC.Enabled {
		extractors = append(extractors, &extract.COSMIC{Path: src.COSMIC.Path})
	}
	if src.CIViC.Enabled {
		extractors = append(extractors, &extract.CIViC{Location: src.CIViC.Path})
	}

	var interactions InteractionSource
	if src.DGIdb.Enabled {
		dg := extract.NewDGIdb(client, src.DGIdb.URL)
		dg.SetLogger(logger)
		interactions = dg
	}
	return extractors, interactions
}
