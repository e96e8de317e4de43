package opencitations

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
	// DefaultBaseURL is the default OpenCitations base URL.
	DefaultBaseURL = "https://opencitations.net"

	// DefaultRateLimit is the default rate limit for requests per second.
	DefaultRateLimit = 5.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 5

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// authHeader carries the OpenCitations access token.
	authHeader = "authorization"
)

// Config holds configuration shared by the OpenCitations clients.
type Config struct {
	// BaseURL is the OpenCitations base URL.
	BaseURL string

	// Token is the fallback access token, used when the caller supplies none.
	Token string

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

// base is the request plumbing shared by the three clients.
type base struct {
	config     Config
	httpClient *papersources.HTTPClient
	label      string
}

func newBase(cfg Config, httpClient *papersources.HTTPClient, label string) base {
	cfg.applyDefaults()
	if httpClient == nil {
		httpClient = papersources.NewHTTPClient(papersources.HTTPClientConfig{
			Source:     label,
			Timeout:    cfg.Timeout,
			RateLimit:  cfg.RateLimit,
			BurstSize:  cfg.BurstSize,
			MaxRetries: cfg.MaxRetries,
			RetryDelay: cfg.RetryDelay,
		})
	}
	return base{config: cfg, httpClient: httpClient, label: label}
}

// IsEnabled returns whether this source is enabled.
func (b *base) IsEnabled() bool {
	return b.config.Enabled
}

// get performs a GET on path and decodes a 2xx JSON body into v.
func (b *base) get(ctx context.Context, path string, creds domain.Credentials, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.config.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	token := creds.OpenCitationsToken
	if token == "" {
		token = b.config.Token
	}
	if token != "" {
		req.Header.Set(authHeader, token)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return domain.NewExternalAPIError(b.label, 0, err.Error(), err)
	}
	defer resp.Body.Close()

	if !papersources.IsSuccess(resp.StatusCode) {
		return domain.NewExternalAPIError(b.label, resp.StatusCode, papersources.ReadErrorBody(resp), nil)
	}
	if err := papersources.DecodeJSON(resp.Body, v); err != nil {
		return domain.NewExternalAPIError(b.label, resp.StatusCode, "unexpected response shape", err)
	}
	return nil
}

// getCount reads a count endpoint. An empty list is missing.
func (b *base) getCount(ctx context.Context, path string, creds domain.Credentials) (domain.Value, error) {
	var records []CountRecord
	if err := b.get(ctx, path, creds, &records); err != nil {
		return domain.Missing(), err
	}
	if len(records) == 0 {
		return domain.Missing(), nil
	}
	v, err := parseCount(records[0].Count)
	if err != nil {
		return domain.Missing(), b.malformed(err)
	}
	return v, nil
}

// malformed wraps a count that could not be parsed.
func (b *base) malformed(err error) error {
	return domain.NewExternalAPIError(b.label, 0, err.Error(), domain.ErrMalformedResponse)
}

// parseCount parses a decimal count string. Empty is missing.
func parseCount(s string) (domain.Value, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return domain.Missing(), nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return domain.Missing(), fmt.Errorf("invalid count %q", s)
	}
	return domain.KnownInt(n), nil
}

// escapeDOI escapes a DOI for use as a path segment, keeping its slashes.
func escapeDOI(id domain.Identifier) string {
	return strings.ReplaceAll(url.PathEscape(string(id)), "%2F", "/")
}

// countList returns 1 + the number of separators in a non-empty list, or
// missing for an empty one.
func countList(s string) domain.Value {
	if strings.TrimSpace(s) == "" {
		return domain.Missing()
	}
	return domain.KnownInt(strings.Count(s, ";") + 1)
}

// metricFailure labels a per-metric failure with the endpoint that produced it.
func metricFailure(source domain.SourceName, id domain.Identifier, endpoint string, err error) domain.Diagnostic {
	d := domain.IdentifierFailure(source, id, err)
	d.Message = endpoint + ": " + d.Message
	return d
}
