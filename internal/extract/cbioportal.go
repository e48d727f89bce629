package extract

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Jeffail/gabs"
	"go.uber.org/zap"

	"github.com/inodb/oncofreq/internal/mutation"
)

// DefaultCBioPortalURL is the public cBioPortal API.
const DefaultCBioPortalURL = "https://www.cbioportal.org/api"

// sampleBatchSize is the number of sample ids per mutation fetch request.
const sampleBatchSize = 100

// CBioPortal extracts mutations and study metadata from the cBioPortal REST API.
type CBioPortal struct {
	BaseURL  string
	Genes    []string
	StudyIDs []string
	// MaxSamples caps the samples queried per study; 0 means all. A capped
	// study reports the capped count as its sequenced sample count so the
	// denominator matches the samples actually queried.
	MaxSamples int

	client *Client
	logger *zap.Logger
}

// NewCBioPortal creates a cBioPortal extractor.
func NewCBioPortal(client *Client, baseURL string, genes, studyIDs []string) *CBioPortal {
	if baseURL == "" {
		baseURL = DefaultCBioPortalURL
	}
	return &CBioPortal{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		Genes:    genes,
		StudyIDs: studyIDs,
		client:   client,
		logger:   zap.NewNop(),
	}
}

// SetLogger sets the logger.
func (c *CBioPortal) SetLogger(l *zap.Logger) {
	c.logger = l
}

func (c *CBioPortal) Name() string { return "cbioportal" }

// Extract fetches the configured genes, then the metadata, samples and
// mutations of every configured study. A study that fails is skipped with a
// warning; the extractor fails only when no study succeeds.
func (c *CBioPortal) Extract(ctx context.Context) (*RawBatch, error) {
	batch := &RawBatch{Name: c.Name(), Source: mutation.SourceCBioPortal, ExtractedAt: time.Now().UTC()}

	geneIDs, err := c.entrezIDs(ctx, batch)
	if err != nil {
		return nil, err
	}
	if len(geneIDs) == 0 {
		return nil, fmt.Errorf("cbioportal: none of %d genes resolved", len(c.Genes))
	}

	ok := 0
	for _, id := range c.StudyIDs {
		study, muts, err := c.extractStudy(ctx, id, geneIDs)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			batch.warn(c.logger, "study %s skipped: %v", id, err)
			continue
		}
		ok++
		batch.Studies = append(batch.Studies, study)
		batch.Mutations = append(batch.Mutations, muts...)
	}
	if ok == 0 && len(c.StudyIDs) > 0 {
		return nil, fmt.Errorf("cbioportal: all %d studies failed", len(c.StudyIDs))
	}
	return batch, nil
}

// entrezIDs resolves gene symbols to Entrez ids. Unknown genes are warnings.
func (c *CBioPortal) entrezIDs(ctx context.Context, batch *RawBatch) ([]int64, error) {
	var ids []int64
	for _, gene := range c.Genes {
		resp, err := c.client.GetJSON(ctx, fmt.Sprintf("%s/genes/%s", c.BaseURL, url.PathEscape(gene)))
		if err != nil {
			if IsNotFound(err) {
				batch.warn(c.logger, "gene %s not found", gene)
				continue
			}
			return nil, fmt.Errorf("cbioportal gene %s: %w", gene, err)
		}
		id, ok := resp.Path("entrezGeneId").Data().(float64)
		if !ok {
			batch.warn(c.logger, "gene %s has no entrez id", gene)
			continue
		}
		ids = append(ids, int64(id))
	}
	return ids, nil
}

func (c *CBioPortal) extractStudy(ctx context.Context, studyID string, geneIDs []int64) (map[string]any, []map[string]any, error) {
	resp, err := c.client.GetJSON(ctx, fmt.Sprintf("%s/studies/%s?projection=DETAILED", c.BaseURL, url.PathEscape(studyID)))
	if err != nil {
		return nil, nil, fmt.Errorf("study metadata: %w", err)
	}
	study, ok := resp.Data().(map[string]any)
	if !ok {
		return nil, nil, fmt.Errorf("study metadata: unexpected response")
	}

	resp, err = c.client.GetJSON(ctx, fmt.Sprintf("%s/studies/%s/samples?projection=ID", c.BaseURL, url.PathEscape(studyID)))
	if err != nil {
		return nil, nil, fmt.Errorf("samples: %w", err)
	}
	samples := stringsAt(resp, "sampleId")
	if c.MaxSamples > 0 && len(samples) > c.MaxSamples {
		c.logger.Info("capping study samples",
			zap.String("study", studyID),
			zap.Int("samples", len(samples)),
			zap.Int("max_samples", c.MaxSamples))
		samples = samples[:c.MaxSamples]
		study["sequencedSampleCount"] = len(samples)
	}

	endpoint := fmt.Sprintf("%s/molecular-profiles/%s_mutations/mutations/fetch?projection=DETAILED",
		c.BaseURL, url.PathEscape(studyID))
	var muts []map[string]any
	for start := 0; start < len(samples); start += sampleBatchSize {
		end := min(start+sampleBatchSize, len(samples))
		resp, err := c.client.PostJSON(ctx, endpoint, map[string]any{
			"entrezGeneIds": geneIDs,
			"sampleIds":     samples[start:end],
		})
		if err != nil {
			return nil, nil, fmt.Errorf("mutations: %w", err)
		}
		children, err := resp.Children()
		if err != nil {
			return nil, nil, fmt.Errorf("mutations: unexpected response: %w", err)
		}
		for _, child := range children {
			m, ok := child.Data().(map[string]any)
			if !ok {
				continue
			}
			m["studyId"] = studyID
			muts = append(muts, m)
		}
	}
	c.logger.Debug("extracted study",
		zap.String("study", studyID),
		zap.Int("samples", len(samples)),
		zap.Int("mutations", len(muts)))
	return study, muts, nil
}

// stringsAt collects the string field key of every element of an array response.
func stringsAt(c *gabs.Container, key string) []string {
	children, err := c.Children()
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(children))
	for _, child := range children {
		if s, ok := child.Path(key).Data().(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
