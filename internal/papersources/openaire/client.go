package openaire

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/helixir/bibliometrics-service/internal/domain"
	"github.com/helixir/bibliometrics-service/internal/papersources"
)

const (
	// DefaultBaseURL is the default OpenAIRE API base URL.
	DefaultBaseURL = "https://api.openaire.eu"

	// DefaultRateLimit is the default rate limit for requests per second.
	DefaultRateLimit = 5.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 5

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	sourceLabel = "OpenAIRE"
)

// Config holds configuration for the OpenAIRE client.
type Config struct {
	// BaseURL is the OpenAIRE API base URL.
	BaseURL string

	// Timeout is the request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// MaxRetries is the retry count for 429/5xx responses.
	MaxRetries int

	// RetryDelay is the base delay between retries.
	RetryDelay time.Duration

	// Concurrency bounds the per-identifier requests in flight.
	Concurrency int

	// Enabled indicates whether this source is enabled.
	Enabled bool
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.BurstSize == 0 {
		c.BurstSize = DefaultBurstSize
	}
	if c.Concurrency == 0 {
		c.Concurrency = papersources.DefaultConcurrency
	}
}

// Client implements papersources.Source for OpenAIRE.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

var _ papersources.Source = (*Client)(nil)

// New creates a new OpenAIRE client.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Source:     sourceLabel,
		Timeout:    cfg.Timeout,
		RateLimit:  cfg.RateLimit,
		BurstSize:  cfg.BurstSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
	})

	return &Client{config: cfg, httpClient: httpClient}
}

// NewWithHTTPClient creates a new OpenAIRE client with a custom HTTP client.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	cfg.applyDefaults()
	return &Client{config: cfg, httpClient: httpClient}
}

// Name returns the source identifier.
func (c *Client) Name() domain.SourceName {
	return domain.SourceOpenAIRE
}

// IsEnabled returns whether this source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// Fetch looks up every identifier separately. Failures are reported per
// identifier and never abort the batch.
func (c *Client) Fetch(ctx context.Context, ids []domain.Identifier, _ domain.Credentials) (*papersources.FetchResult, error) {
	if len(ids) == 0 {
		return papersources.EmptyResult(c.Name()), nil
	}
	start := time.Now()

	parts := papersources.ForEachIdentifier(ctx, ids, c.config.Concurrency, func(ctx context.Context, id domain.Identifier) papersources.Partial {
		product, err := c.lookup(ctx, id)
		if err != nil {
			return papersources.Partial{Diagnostics: []domain.Diagnostic{domain.IdentifierFailure(c.Name(), id, err)}}
		}
		if product == nil {
			return papersources.Partial{}
		}
		return papersources.Partial{Observations: productObservations(id, product)}
	})

	return papersources.Collect(c.Name(), start, parts), nil
}

// lookup returns the first product for a DOI, or nil when there is none.
func (c *Client) lookup(ctx context.Context, id domain.Identifier) (*Product, error) {
	q := url.Values{}
	q.Set("pid", string(id))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/graph/v1/researchProducts?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewExternalAPIError(sourceLabel, 0, err.Error(), err)
	}
	defer resp.Body.Close()

	if !papersources.IsSuccess(resp.StatusCode) {
		return nil, domain.NewExternalAPIError(sourceLabel, resp.StatusCode, errorMessage(papersources.ReadErrorBody(resp)), nil)
	}

	var raw json.RawMessage
	if err := papersources.DecodeJSON(resp.Body, &raw); err != nil {
		return nil, domain.NewExternalAPIError(sourceLabel, resp.StatusCode, "unexpected response shape", err)
	}

	products, err := decodeProducts(raw)
	if err != nil {
		return nil, domain.NewExternalAPIError(sourceLabel, resp.StatusCode, "unexpected response shape", err)
	}
	if len(products) == 0 {
		return nil, nil
	}
	return &products[0], nil
}

// decodeProducts accepts a bare list or an envelope with a results list.
func decodeProducts(raw json.RawMessage) ([]Product, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var products []Product
		if err := json.Unmarshal(trimmed, &products); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
		}
		return products, nil
	}

	var env Envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}
	return env.Results, nil
}

// productObservations maps a product onto the requested identifier.
func productObservations(id domain.Identifier, p *Product) []domain.Observation {
	citations := p.CitationCount
	if citations == nil && p.Indicators != nil && p.Indicators.CitationImpact != nil {
		citations = p.Indicators.CitationImpact.CitationCount
	}

	authors := domain.FromIntPtr(p.AuthorCount)
	if authors.IsMissing() && p.Authors != nil {
		authors = domain.KnownInt(len(*p.Authors))
	}

	return domain.NewObservations(domain.SourceOpenAIRE, id,
		domain.FromIntPtr(citations),
		domain.FromIntPtr(p.ReferenceCount),
		authors,
	)
}

func errorMessage(body string) string {
	var e ErrorResponse
	if err := json.Unmarshal([]byte(body), &e); err == nil {
		if e.Message != "" {
			return e.Message
		}
		if e.Error != "" {
			return e.Error
		}
	}
	return body
}
