package datacite

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/bibliometrics-service/internal/domain"
	"github.com/helixir/bibliometrics-service/internal/papersources"
)

const (
	// DefaultBaseURL is the default DataCite API base URL.
	DefaultBaseURL = "https://api.datacite.org"

	// DefaultRateLimit is the default rate limit for requests per second.
	DefaultRateLimit = 10.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 10

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	minPageSize = 25
	sourceLabel = "DataCite"
)

// Config holds configuration for the DataCite client.
type Config struct {
	// BaseURL is the DataCite API base URL.
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
}

// Client implements papersources.Source for DataCite.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

var _ papersources.Source = (*Client)(nil)

// New creates a new DataCite client.
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

// NewWithHTTPClient creates a new DataCite client with a custom HTTP client.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	cfg.applyDefaults()
	return &Client{config: cfg, httpClient: httpClient}
}

// Name returns the source identifier.
func (c *Client) Name() domain.SourceName {
	return domain.SourceDataCite
}

// IsEnabled returns whether this source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// Fetch retrieves all identifiers with one OR-ed DOI query.
func (c *Client) Fetch(ctx context.Context, ids []domain.Identifier, _ domain.Credentials) (*papersources.FetchResult, error) {
	if len(ids) == 0 {
		return papersources.EmptyResult(c.Name()), nil
	}
	start := time.Now()

	clauses := make([]string, len(ids))
	for i, id := range ids {
		clauses[i] = "doi:" + string(id)
	}
	q := url.Values{}
	q.Set("query", "("+strings.Join(clauses, " OR ")+")")
	q.Set("page[size]", strconv.Itoa(max(minPageSize, 2*len(ids))))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/dois?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.api+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewExternalAPIError(sourceLabel, 0, err.Error(), err)
	}
	defer resp.Body.Close()

	var list ListResponse
	if err := papersources.DecodeJSON(resp.Body, &list); err != nil {
		if !papersources.IsSuccess(resp.StatusCode) {
			return nil, domain.NewExternalAPIError(sourceLabel, resp.StatusCode, http.StatusText(resp.StatusCode), err)
		}
		return nil, domain.NewExternalAPIError(sourceLabel, resp.StatusCode, "unexpected response shape", err)
	}
	if len(list.Errors) > 0 {
		return nil, domain.NewExternalAPIError(sourceLabel, resp.StatusCode, list.Errors[0].message(), nil)
	}
	if !papersources.IsSuccess(resp.StatusCode) {
		return nil, domain.NewExternalAPIError(sourceLabel, resp.StatusCode, http.StatusText(resp.StatusCode), nil)
	}

	result := &papersources.FetchResult{Source: c.Name()}
	for _, record := range list.Data {
		result.Observations = append(result.Observations, recordObservations(record)...)
	}
	result.Duration = time.Since(start)
	return result, nil
}

func (e ErrorItem) message() string {
	switch {
	case e.Title != "" && e.Detail != "":
		return e.Title + ": " + e.Detail
	case e.Title != "":
		return e.Title
	case e.Detail != "":
		return e.Detail
	}
	return "request failed"
}

func recordObservations(r Record) []domain.Observation {
	doi := r.Attributes.DOI
	if doi == "" {
		doi = r.ID
	}
	id, ok := domain.CanonicalIdentifier(doi)
	if !ok {
		return nil
	}

	authors := domain.Missing()
	if r.Attributes.Creators != nil {
		authors = domain.KnownInt(len(*r.Attributes.Creators))
	}

	return domain.NewObservations(domain.SourceDataCite, id,
		domain.FromIntPtr(r.Attributes.CitationCount),
		domain.FromIntPtr(r.Attributes.ReferenceCount),
		authors,
	)
}
