package semanticscholar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/helixir/bibliometrics-service/internal/domain"
	"github.com/helixir/bibliometrics-service/internal/papersources"
)

const (
	// DefaultBaseURL is the default base URL for the Semantic Scholar Graph API.
	DefaultBaseURL = "https://api.semanticscholar.org/graph/v1"

	// DefaultRateLimit is the default rate limit for unauthenticated requests.
	// With an API key, this can be increased.
	DefaultRateLimit = 1.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 1

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// APIKeyHeader is the header carrying the Semantic Scholar API key.
	APIKeyHeader = "x-api-key"

	// batchFields is the list of fields to request from the batch endpoint.
	batchFields = "referenceCount,citationCount,authors,externalIds"

	// arxivPrefix is sent in place of the DataCite arXiv DOI prefix.
	arxivPrefix = "ARXIV:"

	// maxResponseBytes limits the batch response body.
	maxResponseBytes = 10 << 20

	// sourceName is the human-readable name for this source.
	sourceName = "Semantic Scholar"
)

// Config contains configuration options for the Semantic Scholar client.
type Config struct {
	// BaseURL is the base URL for the API.
	// Defaults to DefaultBaseURL if empty.
	BaseURL string

	// APIKey is the optional service API key. A key supplied with the
	// request's credentials takes precedence.
	APIKey string

	// Timeout is the HTTP request timeout.
	// Defaults to DefaultTimeout if zero.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	// Defaults to DefaultRateLimit if zero.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	// Defaults to DefaultBurstSize if zero.
	BurstSize int

	// MaxRetries is the retry count for 429/5xx responses.
	MaxRetries int

	// RetryDelay is the base delay between retries.
	RetryDelay time.Duration

	// Enabled indicates whether this source is enabled.
	Enabled bool
}

// Client implements papersources.Source for Semantic Scholar.
type Client struct {
	httpClient *papersources.HTTPClient
	config     Config
}

// Compile-time check that Client implements papersources.Source.
var _ papersources.Source = (*Client)(nil)

// NewClient creates a new Semantic Scholar client with the given configuration.
// If httpClient is nil, a new one will be created with the configuration settings.
func NewClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	// Apply defaults
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = DefaultRateLimit
	}
	if cfg.BurstSize == 0 {
		cfg.BurstSize = DefaultBurstSize
	}

	// Create HTTP client if not provided
	if httpClient == nil {
		httpClient = papersources.NewHTTPClient(papersources.HTTPClientConfig{
			Source:       sourceName,
			Timeout:      cfg.Timeout,
			RateLimit:    cfg.RateLimit,
			BurstSize:    cfg.BurstSize,
			MaxRetries:   cfg.MaxRetries,
			RetryDelay:   cfg.RetryDelay,
			APIKey:       cfg.APIKey,
			APIKeyHeader: APIKeyHeader,
		})
	}

	return &Client{
		httpClient: httpClient,
		config:     cfg,
	}
}

// Name returns the source identifier.
func (c *Client) Name() domain.SourceName {
	return domain.SourceSemanticScholar
}

// IsEnabled returns whether this source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// Fetch retrieves counts for all identifiers in one batch request.
func (c *Client) Fetch(ctx context.Context, ids []domain.Identifier, creds domain.Credentials) (*papersources.FetchResult, error) {
	if len(ids) == 0 {
		return papersources.EmptyResult(c.Name()), nil
	}
	start := time.Now()

	body, err := json.Marshal(BatchRequest{IDs: requestIDs(ids)})
	if err != nil {
		return nil, fmt.Errorf("encoding batch request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.BaseURL+"/paper/batch?fields="+batchFields, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	// Per-request key; the HTTP client falls back to the configured one.
	if creds.SemanticScholarAPIKey != "" {
		req.Header.Set(APIKeyHeader, creds.SemanticScholarAPIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewExternalAPIError(sourceName, 0, err.Error(), err)
	}
	defer resp.Body.Close()

	papers, err := c.parseResponse(resp)
	if err != nil {
		return nil, err
	}

	result := &papersources.FetchResult{Source: c.Name()}
	for i, paper := range papers {
		if paper == nil {
			continue
		}
		var requested domain.Identifier
		if i < len(ids) {
			requested = ids[i]
		}
		result.Observations = append(result.Observations, paperObservations(paper, requested)...)
	}
	result.Duration = time.Since(start)
	return result, nil
}

// requestIDs rewrites arXiv DOIs to the ARXIV: form the batch endpoint expects.
func requestIDs(ids []domain.Identifier) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		if arxiv, ok := id.ArXivID(); ok {
			out[i] = arxivPrefix + arxiv
			continue
		}
		out[i] = string(id)
	}
	return out
}

// parseResponse decodes the batch body. The endpoint answers with a list on
// success and an object carrying "error" or "message" otherwise.
func (c *Client) parseResponse(resp *http.Response) ([]*Paper, error) {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, domain.NewExternalAPIError(sourceName, resp.StatusCode, "failed to read response", err)
	}
	trimmed := bytes.TrimSpace(raw)

	if len(trimmed) > 0 && trimmed[0] == '{' {
		var errResp ErrorResponse
		msg := ""
		if err := json.Unmarshal(trimmed, &errResp); err == nil {
			msg = errResp.Error
			if msg == "" {
				msg = errResp.Message
			}
		}
		if msg == "" {
			msg = string(trimmed)
		}
		return nil, domain.NewExternalAPIError(sourceName, resp.StatusCode, msg, nil)
	}

	if !papersources.IsSuccess(resp.StatusCode) {
		msg := string(trimmed)
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, domain.NewExternalAPIError(sourceName, resp.StatusCode, msg, nil)
	}

	var papers []*Paper
	if err := json.Unmarshal(trimmed, &papers); err != nil {
		return nil, domain.NewExternalAPIError(sourceName, resp.StatusCode, "unexpected response shape",
			fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err))
	}
	return papers, nil
}

// paperObservations maps one batch entry. The identifier is the paper's DOI,
// then its arXiv DOI, then the identifier requested at the same position.
func paperObservations(p *Paper, requested domain.Identifier) []domain.Observation {
	id, ok := paperIdentifier(p)
	if !ok {
		if requested == "" {
			return nil
		}
		id = requested
	}
	return domain.NewObservations(domain.SourceSemanticScholar, id,
		domain.FromIntPtr(p.CitationCount),
		domain.FromIntPtr(p.ReferenceCount),
		domain.KnownInt(len(p.Authors)),
	)
}

func paperIdentifier(p *Paper) (domain.Identifier, bool) {
	if p.ExternalIDs == nil {
		return "", false
	}
	if p.ExternalIDs.DOI != "" {
		if id, ok := domain.CanonicalIdentifier(p.ExternalIDs.DOI); ok {
			return id, true
		}
	}
	if p.ExternalIDs.ArXiv != "" {
		return domain.Identifier(strings.ToLower(domain.ArXivDOIPrefix + strings.TrimSpace(p.ExternalIDs.ArXiv))), true
	}
	return "", false
}
