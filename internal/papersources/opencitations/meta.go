package opencitations

import (
	"context"
	"strings"
	"time"

	"github.com/helixir/bibliometrics-service/internal/domain"
	"github.com/helixir/bibliometrics-service/internal/papersources"
)

// MetaClient reads author counts from OpenCitations Meta, one request per
// identifier.
type MetaClient struct {
	base
}

var _ papersources.Source = (*MetaClient)(nil)

// NewMeta creates a Meta client.
func NewMeta(cfg Config) *MetaClient {
	return &MetaClient{base: newBase(cfg, nil, "OpenCitations Meta")}
}

// NewMetaWithHTTPClient creates a Meta client with a custom HTTP client.
func NewMetaWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *MetaClient {
	return &MetaClient{base: newBase(cfg, httpClient, "OpenCitations Meta")}
}

// Name returns the source identifier.
func (c *MetaClient) Name() domain.SourceName {
	return domain.SourceOpenCitationsMeta
}

// Fetch retrieves the first metadata record per identifier and counts its
// authors. Identifiers without a record produce no observation.
func (c *MetaClient) Fetch(ctx context.Context, ids []domain.Identifier, creds domain.Credentials) (*papersources.FetchResult, error) {
	if len(ids) == 0 {
		return papersources.EmptyResult(c.Name()), nil
	}
	start := time.Now()

	parts := papersources.ForEachIdentifier(ctx, ids, c.config.Concurrency, func(ctx context.Context, id domain.Identifier) papersources.Partial {
		var records []MetaRecord
		if err := c.get(ctx, "/meta/api/v1/metadata/doi:"+escapeDOI(id), creds, &records); err != nil {
			return papersources.Partial{Diagnostics: []domain.Diagnostic{domain.IdentifierFailure(c.Name(), id, err)}}
		}
		if len(records) == 0 {
			return papersources.Partial{}
		}

		record := records[0]
		return papersources.Partial{Observations: []domain.Observation{{
			Identifier: metaIdentifier(record.ID, id),
			Metric:     domain.MetricAuthors,
			Source:     c.Name(),
			Value:      countList(record.Author),
		}}}
	})

	return papersources.Collect(c.Name(), start, parts), nil
}

// metaIdentifier extracts the doi: token of a composite id, falling back to
// the requested identifier.
func metaIdentifier(composite string, requested domain.Identifier) domain.Identifier {
	for _, token := range strings.Fields(composite) {
		if doi, ok := strings.CutPrefix(token, "doi:"); ok {
			if id, ok := domain.CanonicalIdentifier(doi); ok {
				return id
			}
		}
	}
	return requested
}
