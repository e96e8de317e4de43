package opencitations

import (
	"context"
	"time"

	"github.com/helixir/bibliometrics-service/internal/domain"
	"github.com/helixir/bibliometrics-service/internal/papersources"
)

// IndexClient reads citation and reference counts from the Index v2 API,
// two requests per identifier.
type IndexClient struct {
	base
}

var _ papersources.Source = (*IndexClient)(nil)

// NewIndex creates an Index client.
func NewIndex(cfg Config) *IndexClient {
	return &IndexClient{base: newBase(cfg, nil, "OpenCitations Index")}
}

// NewIndexWithHTTPClient creates an Index client with a custom HTTP client.
func NewIndexWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *IndexClient {
	return &IndexClient{base: newBase(cfg, httpClient, "OpenCitations Index")}
}

// Name returns the source identifier.
func (c *IndexClient) Name() domain.SourceName {
	return domain.SourceOpenCitationsIndex
}

// Fetch retrieves citation-count and reference-count for every identifier.
// A failed endpoint leaves that metric missing and adds a diagnostic; the
// authors metric is not served by the Index.
func (c *IndexClient) Fetch(ctx context.Context, ids []domain.Identifier, creds domain.Credentials) (*papersources.FetchResult, error) {
	if len(ids) == 0 {
		return papersources.EmptyResult(c.Name()), nil
	}
	start := time.Now()

	parts := papersources.ForEachIdentifier(ctx, ids, c.config.Concurrency, func(ctx context.Context, id domain.Identifier) papersources.Partial {
		var part papersources.Partial
		for _, ep := range []struct {
			path   string
			metric domain.MetricKind
		}{
			{"citation-count", domain.MetricCitations},
			{"reference-count", domain.MetricReferences},
		} {
			v, err := c.getCount(ctx, "/index/api/v2/"+ep.path+"/doi:"+escapeDOI(id), creds)
			if err != nil {
				part.Diagnostics = append(part.Diagnostics, metricFailure(c.Name(), id, ep.path, err))
			}
			part.Observations = append(part.Observations, domain.Observation{
				Identifier: id,
				Metric:     ep.metric,
				Source:     c.Name(),
				Value:      v,
			})
		}
		return part
	})

	return papersources.Collect(c.Name(), start, parts), nil
}
