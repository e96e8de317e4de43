// Package sourceset builds the source registry from configuration. It is
// shared by the HTTP server and the command-line tool so both expose the same
// adapters with the same limits.
package sourceset

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/bibliometrics-service/internal/config"
	"github.com/helixir/bibliometrics-service/internal/domain"
	"github.com/helixir/bibliometrics-service/internal/observability"
	"github.com/helixir/bibliometrics-service/internal/papersources"
	"github.com/helixir/bibliometrics-service/internal/papersources/crossref"
	"github.com/helixir/bibliometrics-service/internal/papersources/datacite"
	"github.com/helixir/bibliometrics-service/internal/papersources/openaire"
	"github.com/helixir/bibliometrics-service/internal/papersources/openalex"
	"github.com/helixir/bibliometrics-service/internal/papersources/opencitations"
	"github.com/helixir/bibliometrics-service/internal/papersources/semanticscholar"
)

// Set is the wired collection of sources.
type Set struct {
	// Registry holds every adapter, enabled or not.
	Registry *papersources.Registry

	// OpenAlex is the undecorated OpenAlex client, used for sampling.
	OpenAlex *openalex.Client

	// Cache is the shared latency cache, nil when caching is disabled.
	Cache *papersources.ResultCache
}

// Build creates one adapter per known source and registers it. Disabled
// sources are registered too so they can be listed, but they are never
// selectable. metrics may be nil.
func Build(cfg *config.Config, metrics *observability.Metrics, logger zerolog.Logger) *Set {
	set := &Set{Registry: papersources.NewRegistry()}
	set.Registry.SetFetchTimeout(cfg.Comparison.FetchTimeout)

	if cfg.Cache.Enabled {
		cacheCfg := papersources.CacheConfig{Size: cfg.Cache.Size, TTL: cfg.Cache.TTL}
		if metrics != nil {
			cacheCfg.OnHit = func(s domain.SourceName) { metrics.RecordCacheHit(string(s)) }
			cacheCfg.OnMiss = func(s domain.SourceName) { metrics.RecordCacheMiss(string(s)) }
		}
		set.Cache = papersources.NewResultCache(cacheCfg)
	}

	creds := cfg.Credentials
	concurrency := cfg.Comparison.Concurrency
	srcs := &cfg.Sources

	// Crossref.
	c := srcs.Crossref
	set.register(crossref.NewWithHTTPClient(crossref.Config{
		BaseURL:    c.BaseURL,
		Timeout:    c.Timeout,
		RateLimit:  c.RateLimit,
		BurstSize:  c.Burst,
		MaxRetries: retries(c),
		RetryDelay: c.RetryDelay,
		Enabled:    c.Enabled,
	}, newHTTPClient(domain.SourceCrossref, c, metrics, "", "")), logger)

	// OpenAlex.
	c = srcs.OpenAlex
	set.OpenAlex = openalex.NewWithHTTPClient(openalex.Config{
		BaseURL:    c.BaseURL,
		Email:      creds.Email,
		Timeout:    c.Timeout,
		RateLimit:  c.RateLimit,
		BurstSize:  c.Burst,
		MaxRetries: retries(c),
		RetryDelay: c.RetryDelay,
		Enabled:    c.Enabled,
	}, newHTTPClient(domain.SourceOpenAlex, c, metrics, "", ""))
	set.register(set.OpenAlex, logger)

	// OpenCitations, three views of the same service.
	ocConfig := func(c config.SourceConfig) opencitations.Config {
		return opencitations.Config{
			BaseURL:     c.BaseURL,
			Token:       creds.OpenCitationsToken,
			Timeout:     c.Timeout,
			RateLimit:   c.RateLimit,
			BurstSize:   c.Burst,
			MaxRetries:  retries(c),
			RetryDelay:  c.RetryDelay,
			Concurrency: concurrency,
			Enabled:     c.Enabled,
		}
	}
	c = srcs.OpenCitationsIndex
	set.register(opencitations.NewIndexWithHTTPClient(ocConfig(c),
		newHTTPClient(domain.SourceOpenCitationsIndex, c, metrics, "", "")), logger)
	c = srcs.OpenCitationsMeta
	set.register(opencitations.NewMetaWithHTTPClient(ocConfig(c),
		newHTTPClient(domain.SourceOpenCitationsMeta, c, metrics, "", "")), logger)
	c = srcs.OpenCitationsCOCI
	set.register(opencitations.NewCOCIWithHTTPClient(ocConfig(c),
		newHTTPClient(domain.SourceOpenCitationsCOCI, c, metrics, "", "")), logger)

	// Semantic Scholar.
	c = srcs.SemanticScholar
	set.register(semanticscholar.NewClient(semanticscholar.Config{
		BaseURL:    c.BaseURL,
		APIKey:     creds.SemanticScholarAPIKey,
		Timeout:    c.Timeout,
		RateLimit:  c.RateLimit,
		BurstSize:  c.Burst,
		MaxRetries: retries(c),
		RetryDelay: c.RetryDelay,
		Enabled:    c.Enabled,
	}, newHTTPClient(domain.SourceSemanticScholar, c, metrics, creds.SemanticScholarAPIKey, semanticscholar.APIKeyHeader)), logger)

	// OpenAIRE.
	c = srcs.OpenAIRE
	set.register(openaire.NewWithHTTPClient(openaire.Config{
		BaseURL:     c.BaseURL,
		Timeout:     c.Timeout,
		RateLimit:   c.RateLimit,
		BurstSize:   c.Burst,
		MaxRetries:  retries(c),
		RetryDelay:  c.RetryDelay,
		Concurrency: concurrency,
		Enabled:     c.Enabled,
	}, newHTTPClient(domain.SourceOpenAIRE, c, metrics, "", "")), logger)

	// DataCite.
	c = srcs.DataCite
	set.register(datacite.NewWithHTTPClient(datacite.Config{
		BaseURL:    c.BaseURL,
		Timeout:    c.Timeout,
		RateLimit:  c.RateLimit,
		BurstSize:  c.Burst,
		MaxRetries: retries(c),
		RetryDelay: c.RetryDelay,
		Enabled:    c.Enabled,
	}, newHTTPClient(domain.SourceDataCite, c, metrics, "", "")), logger)

	return set
}

func (s *Set) register(source papersources.Source, logger zerolog.Logger) {
	if s.Cache != nil {
		source = papersources.NewCached(source, s.Cache)
	}
	s.Registry.Register(source)
	logger.Info().
		Str("source", string(source.Name())).
		Bool("enabled", source.IsEnabled()).
		Bool("cached", s.Cache != nil).
		Msg("registered source")
}

// retries maps a configured retry count onto the HTTP client, where zero
// means "use the default" and a negative value disables retries.
func retries(c config.SourceConfig) int {
	if c.MaxRetries == 0 {
		return -1
	}
	return c.MaxRetries
}

// newHTTPClient builds the rate-limited client for one source and reports
// every upstream attempt to metrics.
func newHTTPClient(name domain.SourceName, c config.SourceConfig, metrics *observability.Metrics, apiKey, apiKeyHeader string) *papersources.HTTPClient {
	cfg := papersources.HTTPClientConfig{
		Source:       name.DisplayName(),
		Timeout:      c.Timeout,
		RateLimit:    c.RateLimit,
		BurstSize:    c.Burst,
		MaxRetries:   retries(c),
		RetryDelay:   c.RetryDelay,
		APIKey:       apiKey,
		APIKeyHeader: apiKeyHeader,
	}
	if metrics != nil {
		label := string(name)
		cfg.Observer = func(statusCode int, d time.Duration, _ error) {
			metrics.RecordSourceRequest(label, statusCode, d.Seconds())
		}
	}
	return papersources.NewHTTPClient(cfg)
}
