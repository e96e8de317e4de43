package opencitations

import (
	"context"
	"strings"
	"time"

	"github.com/helixir/bibliometrics-service/internal/domain"
	"github.com/helixir/bibliometrics-service/internal/papersources"
)

// COCIClient reads counts from the COCI index. It issues one batch metadata
// request and falls back to the per-identifier count endpoints for anything
// the batch did not return.
type COCIClient struct {
	base
}

var _ papersources.Source = (*COCIClient)(nil)

// NewCOCI creates a COCI client.
func NewCOCI(cfg Config) *COCIClient {
	return &COCIClient{base: newBase(cfg, nil, "OpenCitations COCI")}
}

// NewCOCIWithHTTPClient creates a COCI client with a custom HTTP client.
func NewCOCIWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *COCIClient {
	return &COCIClient{base: newBase(cfg, httpClient, "OpenCitations COCI")}
}

// Name returns the source identifier.
func (c *COCIClient) Name() domain.SourceName {
	return domain.SourceOpenCitationsCOCI
}

// Fetch retrieves counts for all identifiers.
func (c *COCIClient) Fetch(ctx context.Context, ids []domain.Identifier, creds domain.Credentials) (*papersources.FetchResult, error) {
	if len(ids) == 0 {
		return papersources.EmptyResult(c.Name()), nil
	}
	start := time.Now()
	result := &papersources.FetchResult{Source: c.Name()}

	segments := make([]string, len(ids))
	for i, id := range ids {
		segments[i] = escapeDOI(id)
	}

	found := make(map[domain.Identifier]bool, len(ids))
	var records []COCIRecord
	if err := c.get(ctx, "/index/coci/api/v1/metadata/"+strings.Join(segments, "__"), creds, &records); err != nil {
		result.Diagnostics = append(result.Diagnostics, domain.BatchFailure(c.Name(), err))
	} else {
		for _, record := range records {
			id, ok := domain.CanonicalIdentifier(record.DOI)
			if !ok || found[id] {
				continue
			}
			found[id] = true
			obs, err := recordObservations(id, record)
			if err != nil {
				result.Diagnostics = append(result.Diagnostics, metricFailure(c.Name(), id, "metadata", c.malformed(err)))
			}
			result.Observations = append(result.Observations, obs...)
		}
	}

	var missing []domain.Identifier
	for _, id := range ids {
		if !found[id] {
			missing = append(missing, id)
		}
	}

	parts := papersources.ForEachIdentifier(ctx, missing, c.config.Concurrency, func(ctx context.Context, id domain.Identifier) papersources.Partial {
		return c.fallback(ctx, id, creds)
	})
	for _, part := range parts {
		result.Observations = append(result.Observations, part.Observations...)
		result.Diagnostics = append(result.Diagnostics, part.Diagnostics...)
	}

	result.Duration = time.Since(start)
	return result, nil
}

// fallback queries the count endpoints for one identifier. COCI reports 0 for
// DOIs it has never seen, so 0 is treated as missing here.
func (c *COCIClient) fallback(ctx context.Context, id domain.Identifier, creds domain.Credentials) papersources.Partial {
	var part papersources.Partial
	values := make(map[domain.MetricKind]domain.Value, 2)

	for _, ep := range []struct {
		path   string
		metric domain.MetricKind
	}{
		{"citation-count", domain.MetricCitations},
		{"reference-count", domain.MetricReferences},
	} {
		v, err := c.getCount(ctx, "/index/coci/api/v1/"+ep.path+"/"+escapeDOI(id), creds)
		if err != nil {
			part.Diagnostics = append(part.Diagnostics, metricFailure(c.Name(), id, ep.path, err))
		}
		if n, ok := v.Float64(); ok && n == 0 {
			v = domain.Missing()
		}
		values[ep.metric] = v
	}

	part.Observations = domain.NewObservations(c.Name(), id,
		values[domain.MetricCitations], values[domain.MetricReferences], domain.Missing())
	return part
}

// recordObservations maps one metadata record. An unparsable citation count
// leaves citations missing and is returned as the error.
func recordObservations(id domain.Identifier, r COCIRecord) ([]domain.Observation, error) {
	citations, err := parseCount(r.CitationCount)
	return domain.NewObservations(domain.SourceOpenCitationsCOCI, id,
		citations, countList(r.Reference), countList(r.Author)), err
}
