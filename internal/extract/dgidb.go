package extract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Jeffail/gabs"
	"go.uber.org/zap"
)

// DefaultDGIdbURL is the DGIdb GraphQL endpoint.
const DefaultDGIdbURL = "https://dgidb.org/api/graphql"

// dgidbBatchSize is the number of genes per GraphQL query.
const dgidbBatchSize = 50

const dgidbQuery = `query($names: [String!]) {
  genes(names: $names) {
    nodes {
      name
      interactions {
        drug { name approved conceptId }
        interactionTypes { type }
        sources { sourceDbName }
      }
    }
  }
}`

// DGIdb fetches drug-gene interactions. It runs after standardization so it
// can query exactly the genes present in the run.
type DGIdb struct {
	URL    string
	client *Client
	logger *zap.Logger
}

// NewDGIdb creates a DGIdb client.
func NewDGIdb(client *Client, endpoint string) *DGIdb {
	if endpoint == "" {
		endpoint = DefaultDGIdbURL
	}
	return &DGIdb{URL: endpoint, client: client, logger: zap.NewNop()}
}

// SetLogger sets the logger.
func (d *DGIdb) SetLogger(l *zap.Logger) {
	d.logger = l
}

func (d *DGIdb) Name() string { return "dgidb" }

// Fetch returns one flat interaction row per gene and drug pair with keys
// gene_name, drug_name, concept_id, approved, interaction_types and sources.
func (d *DGIdb) Fetch(ctx context.Context, genes []string) (*RawBatch, error) {
	batch := &RawBatch{Name: d.Name(), ExtractedAt: time.Now().UTC()}
	for start := 0; start < len(genes); start += dgidbBatchSize {
		end := min(start+dgidbBatchSize, len(genes))
		resp, err := d.client.PostJSON(ctx, d.URL, map[string]any{
			"query":     dgidbQuery,
			"variables": map[string]any{"names": genes[start:end]},
		})
		if err != nil {
			return nil, fmt.Errorf("dgidb: %w", err)
		}
		if resp.Exists("errors") {
			return nil, fmt.Errorf("dgidb: graphql errors: %s", resp.Path("errors").String())
		}
		rows, err := parseDGIdbGenes(resp)
		if err != nil {
			return nil, fmt.Errorf("dgidb: %w", err)
		}
		batch.Interactions = append(batch.Interactions, rows...)
	}
	d.logger.Info("fetched interactions",
		zap.Int("genes", len(genes)),
		zap.Int("interactions", len(batch.Interactions)))
	return batch, nil
}

func parseDGIdbGenes(resp *gabs.Container) ([]map[string]any, error) {
	nodes, err := resp.Path("data.genes.nodes").Children()
	if err != nil {
		return nil, fmt.Errorf("unexpected response: %w", err)
	}

	var rows []map[string]any
	for _, node := range nodes {
		gene, _ := node.Path("name").Data().(string)
		interactions, err := node.Path("interactions").Children()
		if err != nil {
			continue
		}
		for _, it := range interactions {
			drug, _ := it.Path("drug.name").Data().(string)
			if gene == "" || strings.TrimSpace(drug) == "" {
				continue
			}
			approved, _ := it.Path("drug.approved").Data().(bool)
			conceptID, _ := it.Path("drug.conceptId").Data().(string)
			rows = append(rows, map[string]any{
				"gene_name":         gene,
				"drug_name":         drug,
				"concept_id":        conceptID,
				"approved":          approved,
				"interaction_types": stringsAt(it.Path("interactionTypes"), "type"),
				"sources":           stringsAt(it.Path("sources"), "sourceDbName"),
			})
		}
	}
	return rows, nil
}
