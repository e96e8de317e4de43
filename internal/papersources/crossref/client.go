package crossref

import (
	"context"
	"encoding/json"
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
	// DefaultBaseURL is the default Crossref API base URL.
	DefaultBaseURL = "https://api.crossref.org"

	// DefaultRateLimit is the default rate limit for requests per second.
	DefaultRateLimit = 10.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 10

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	selectFields = "DOI,is-referenced-by-count,references-count,author"
	statusFailed = "failed"
	sourceLabel  = "Crossref"
)

// Config holds configuration for the Crossref client.
type Config struct {
	// BaseURL is the Crossref API base URL.
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

// Client implements papersources.Source for Crossref.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

var _ papersources.Source = (*Client)(nil)

// New creates a new Crossref client with the given configuration.
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

// NewWithHTTPClient creates a new Crossref client with a custom HTTP client.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	cfg.applyDefaults()
	return &Client{config: cfg, httpClient: httpClient}
}

// Name returns the source identifier.
func (c *Client) Name() domain.SourceName {
	return domain.SourceCrossref
}

// IsEnabled returns whether this source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// Fetch retrieves counts for all identifiers in one filtered works query.
func (c *Client) Fetch(ctx context.Context, ids []domain.Identifier, creds domain.Credentials) (*papersources.FetchResult, error) {
	if len(ids) == 0 {
		return papersources.EmptyResult(c.Name()), nil
	}
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.buildURL(ids, creds.Email), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewExternalAPIError(sourceLabel, 0, err.Error(), err)
	}
	defer resp.Body.Close()

	works, err := c.parseResponse(resp)
	if err != nil {
		return nil, err
	}

	result := &papersources.FetchResult{Source: c.Name()}
	for _, work := range works {
		result.Observations = append(result.Observations, workObservations(work)...)
	}
	result.Duration = time.Since(start)
	return result, nil
}

func (c *Client) buildURL(ids []domain.Identifier, email string) string {
	filters := make([]string, len(ids))
	for i, id := range ids {
		filters[i] = "doi:" + string(id)
	}

	q := url.Values{}
	q.Set("filter", strings.Join(filters, ","))
	q.Set("select", selectFields)
	q.Set("rows", strconv.Itoa(2*len(ids)))
	if email != "" {
		q.Set("mailto", email)
	}
	return c.config.BaseURL + "/works?" + q.Encode()
}

// parseResponse decodes the envelope. Crossref reports bad filters with a 400
// and a "failed" envelope; the first message of that envelope is the error.
func (c *Client) parseResponse(resp *http.Response) ([]Work, error) {
	var env Envelope
	if err := papersources.DecodeJSON(resp.Body, &env); err != nil {
		if !papersources.IsSuccess(resp.StatusCode) {
			return nil, domain.NewExternalAPIError(sourceLabel, resp.StatusCode, http.StatusText(resp.StatusCode), err)
		}
		return nil, domain.NewExternalAPIError(sourceLabel, resp.StatusCode, "unexpected response shape", err)
	}

	if env.Status == statusFailed {
		var failures []FailureMessage
		msg := "request failed"
		if err := json.Unmarshal(env.Message, &failures); err == nil && len(failures) > 0 && failures[0].Message != "" {
			msg = failures[0].Message
		}
		return nil, domain.NewExternalAPIError(sourceLabel, resp.StatusCode, msg, nil)
	}
	if !papersources.IsSuccess(resp.StatusCode) {
		return nil, domain.NewExternalAPIError(sourceLabel, resp.StatusCode, http.StatusText(resp.StatusCode), nil)
	}

	var list WorkList
	if err := json.Unmarshal(env.Message, &list); err != nil {
		return nil, domain.NewExternalAPIError(sourceLabel, resp.StatusCode, "unexpected message shape",
			fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err))
	}
	return list.Items, nil
}

// workObservations maps one work. A missing author field yields a missing
// author count rather than zero.
func workObservations(w Work) []domain.Observation {
	id, ok := domain.CanonicalIdentifier(w.DOI)
	if !ok {
		return nil
	}

	authors := domain.Missing()
	if w.Author != nil {
		authors = domain.KnownInt(len(*w.Author))
	}

	return domain.NewObservations(domain.SourceCrossref, id,
		domain.FromIntPtr(w.IsReferencedByCount),
		domain.FromIntPtr(w.ReferencesCount),
		authors,
	)
}
