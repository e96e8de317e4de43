package openalex

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/bibliometrics-service/internal/domain"
	"github.com/helixir/bibliometrics-service/internal/papersources"
)

const (
	// DefaultBaseURL is the default OpenAlex API base URL.
	DefaultBaseURL = "https://api.openalex.org"

	// DefaultRateLimit is the default rate limit for requests per second.
	// OpenAlex polite pool (with email) allows higher rates.
	DefaultRateLimit = 10.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 10

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// minPerPage is the smallest page size requested for a count lookup.
	minPerPage = 25

	// maxSampleRounds bounds the number of sample requests per call.
	maxSampleRounds = 5

	// sampleSlack over-samples to make up for works without a DOI.
	sampleSlack = 5

	// MaxSampleSize is the largest sample OpenAlex serves in one page.
	MaxSampleSize = 195

	// doiPrefix is the URL prefix that OpenAlex uses for DOIs.
	doiPrefix = "https://doi.org/"

	// openAlexIDPrefix is the URL prefix for OpenAlex IDs.
	openAlexIDPrefix = "https://openalex.org/"

	countSelect = "doi,cited_by_count,referenced_works,authorships"
	sourceLabel = "OpenAlex"
)

// Config holds configuration for the OpenAlex client.
type Config struct {
	// BaseURL is the OpenAlex API base URL.
	// Defaults to https://api.openalex.org
	BaseURL string

	// Email is the fallback contact email for the polite pool, used when the
	// caller supplies none.
	// See: https://docs.openalex.org/how-to-use-the-api/rate-limits-and-authentication
	Email string

	// Timeout is the request timeout.
	// Defaults to 30 seconds.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// MaxRetries is the retry count for 429/5xx responses.
	MaxRetries int

	// RetryDelay is the base delay between retries.
	RetryDelay time.Duration

	// Enabled indicates whether this source is enabled for comparisons.
	Enabled bool
}

// applyDefaults sets default values for unset configuration fields.
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

// Client implements papersources.Source for OpenAlex.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

// Ensure Client implements the Source interface.
var _ papersources.Source = (*Client)(nil)

// New creates a new OpenAlex client with the given configuration.
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

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// NewWithHTTPClient creates a new OpenAlex client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Name returns the source identifier.
func (c *Client) Name() domain.SourceName {
	return domain.SourceOpenAlex
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

	filters := make([]string, len(ids))
	for i, id := range ids {
		filters[i] = id.URL()
	}

	q := url.Values{}
	q.Set("filter", "doi:"+strings.Join(filters, "|"))
	q.Set("select", countSelect)
	q.Set("per_page", strconv.Itoa(max(minPerPage, 2*len(ids))))
	c.setMailto(q, creds)

	var resp WorksResponse
	if err := c.getJSON(ctx, "/works?"+q.Encode(), &resp); err != nil {
		return nil, err
	}

	result := &papersources.FetchResult{Source: c.Name()}
	for _, work := range resp.Results {
		result.Observations = append(result.Observations, workObservations(work)...)
	}
	result.Duration = time.Since(start)
	return result, nil
}

// workObservations maps one work. Absent reference and author lists count as
// zero; works without a DOI are skipped.
func workObservations(w Work) []domain.Observation {
	if w.DOI == nil {
		return nil
	}
	id, ok := domain.CanonicalIdentifier(strings.TrimPrefix(*w.DOI, doiPrefix))
	if !ok {
		return nil
	}
	return domain.NewObservations(domain.SourceOpenAlex, id,
		domain.FromIntPtr(w.CitedByCount),
		domain.KnownInt(len(w.ReferencedWorks)),
		domain.KnownInt(len(w.Authorships)),
	)
}

// Sample draws up to size distinct DOIs at random, optionally restricted to
// works with an author affiliated to institutionID. Works without a DOI are
// skipped, so several rounds may be needed; the result can be shorter than
// size when the catalog runs dry.
func (c *Client) Sample(ctx context.Context, size int, institutionID string, creds domain.Credentials) ([]domain.Identifier, error) {
	if size <= 0 {
		return []domain.Identifier{}, nil
	}
	size = min(size, MaxSampleSize)

	seen := make(map[domain.Identifier]struct{}, size)
	out := make([]domain.Identifier, 0, size)

	for round := 0; round < maxSampleRounds && len(out) < size; round++ {
		q := url.Values{}
		q.Set("select", "doi")
		q.Set("sample", strconv.Itoa(size+sampleSlack))
		q.Set("per_page", strconv.Itoa(size+sampleSlack))
		q.Set("seed", strconv.Itoa(rand.IntN(1_000_000)))
		if institutionID != "" {
			q.Set("filter", "institutions.id:"+institutionID)
		}
		c.setMailto(q, creds)

		var resp WorksResponse
		if err := c.getJSON(ctx, "/works?"+q.Encode(), &resp); err != nil {
			return nil, err
		}
		if len(resp.Results) == 0 {
			break
		}

		for _, work := range resp.Results {
			if work.DOI == nil {
				continue
			}
			id, ok := domain.CanonicalIdentifier(strings.TrimPrefix(*work.DOI, doiPrefix))
			if !ok {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}

	if len(out) > size {
		out = out[:size]
	}
	return out, nil
}

// Institution resolves an OpenAlex institution id.
func (c *Client) Institution(ctx context.Context, id string) (*Institution, error) {
	id = strings.TrimPrefix(strings.TrimSpace(id), openAlexIDPrefix)
	if id == "" {
		return nil, domain.NewValidationError("institution", "institution id is required")
	}

	var resp InstitutionResponse
	if err := c.getJSON(ctx, "/institutions/"+url.PathEscape(id), &resp); err != nil {
		return nil, err
	}
	return &Institution{ID: resp.ID, DisplayName: resp.DisplayName}, nil
}

func (c *Client) setMailto(q url.Values, creds domain.Credentials) {
	email := creds.Email
	if email == "" {
		email = c.config.Email
	}
	if email != "" {
		q.Set("mailto", email)
	}
}

// getJSON performs a GET against the API and decodes a 2xx body into v.
func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.NewExternalAPIError(sourceLabel, 0, err.Error(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound && strings.HasPrefix(path, "/institutions/") {
		return domain.NewNotFoundError("institution", strings.TrimPrefix(path, "/institutions/"))
	}
	if !papersources.IsSuccess(resp.StatusCode) {
		return domain.NewExternalAPIError(sourceLabel, resp.StatusCode, errorMessage(papersources.ReadErrorBody(resp)), nil)
	}

	if err := papersources.DecodeJSON(resp.Body, v); err != nil {
		return domain.NewExternalAPIError(sourceLabel, resp.StatusCode, "unexpected response shape", err)
	}
	return nil
}

// errorMessage prefers the message of a JSON error body over the raw text.
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
