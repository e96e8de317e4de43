// Package config provides configuration management for the bibliometrics comparison service.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/helixir/bibliometrics-service/internal/domain"
)

// EnvPrefix prefixes every environment variable the service reads.
const EnvPrefix = "BIBLIO"

// Config holds all configuration for the bibliometrics comparison service.
type Config struct {
	// Server contains HTTP server settings.
	Server ServerConfig `mapstructure:"server"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// Comparison contains pipeline limits and defaults.
	Comparison ComparisonConfig `mapstructure:"comparison"`
	// Cache contains the optional result cache settings.
	Cache CacheConfig `mapstructure:"cache"`
	// Sources contains per-source API configurations.
	Sources SourcesConfig `mapstructure:"sources"`
	// Credentials are loaded from the environment only.
	Credentials domain.Credentials `mapstructure:"-"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// HTTPPort is the HTTP server port (default: 8080).
	HTTPPort int `mapstructure:"http_port"`
	// MetricsPort is the metrics server port (default: 9091).
	MetricsPort int `mapstructure:"metrics_port"`
	// ReadTimeout is the maximum duration for reading request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing response.
	// A comparison waits for the slowest source, so keep it above the source timeouts.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection and exposure.
	Enabled bool `mapstructure:"enabled"`
	// Path is the HTTP path for metrics endpoint.
	Path string `mapstructure:"path"`
	// Namespace prefixes every metric name.
	Namespace string `mapstructure:"namespace"`
}

// ComparisonConfig holds pipeline settings.
type ComparisonConfig struct {
	// MaxIdentifiers caps the DOIs per comparison (default: 20).
	MaxIdentifiers int `mapstructure:"max_identifiers"`
	// Concurrency bounds per-identifier requests inside one source (default: 4).
	Concurrency int `mapstructure:"concurrency"`
	// DefaultSources are preselected by the CLI when no --source is given.
	DefaultSources []string `mapstructure:"default_sources"`
	// SampleSize is the default random sample size (default: 10).
	SampleSize int `mapstructure:"sample_size"`
	// FetchTimeout bounds each source's share of one comparison (default: 2m).
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
}

// CacheConfig holds result cache configuration.
type CacheConfig struct {
	// Enabled wraps every source in the latency cache.
	Enabled bool `mapstructure:"enabled"`
	// Size is the maximum number of cached batches per process.
	Size int `mapstructure:"size"`
	// TTL is how long a batch stays cached.
	TTL time.Duration `mapstructure:"ttl"`
}

// SourcesConfig holds per-source configurations.
type SourcesConfig struct {
	Crossref           SourceConfig `mapstructure:"crossref"`
	OpenAlex           SourceConfig `mapstructure:"openalex"`
	OpenCitationsIndex SourceConfig `mapstructure:"opencitations_index"`
	OpenCitationsMeta  SourceConfig `mapstructure:"opencitations_meta"`
	OpenCitationsCOCI  SourceConfig `mapstructure:"opencitations_coci"`
	SemanticScholar    SourceConfig `mapstructure:"semantic_scholar"`
	OpenAIRE           SourceConfig `mapstructure:"openaire"`
	DataCite           SourceConfig `mapstructure:"datacite"`
}

// SourceConfig holds configuration for a single source.
type SourceConfig struct {
	// Enabled makes the source selectable.
	Enabled bool `mapstructure:"enabled"`
	// BaseURL is the API base URL.
	BaseURL string `mapstructure:"base_url"`
	// Timeout bounds each request.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit"`
	// Burst is the maximum burst of requests allowed.
	Burst int `mapstructure:"burst"`
	// MaxRetries is the retry count for 429/5xx responses.
	MaxRetries int `mapstructure:"max_retries"`
	// RetryDelay is the base delay between retries.
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

// ByName returns the configuration of the named source.
func (s *SourcesConfig) ByName(name domain.SourceName) (SourceConfig, bool) {
	switch name {
	case domain.SourceCrossref:
		return s.Crossref, true
	case domain.SourceOpenAlex:
		return s.OpenAlex, true
	case domain.SourceOpenCitationsIndex:
		return s.OpenCitationsIndex, true
	case domain.SourceOpenCitationsMeta:
		return s.OpenCitationsMeta, true
	case domain.SourceOpenCitationsCOCI:
		return s.OpenCitationsCOCI, true
	case domain.SourceSemanticScholar:
		return s.SemanticScholar, true
	case domain.SourceOpenAIRE:
		return s.OpenAIRE, true
	case domain.SourceDataCite:
		return s.DataCite, true
	default:
		return SourceConfig{}, false
	}
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// MetricsAddress returns the metrics server address.
func (c *ServerConfig) MetricsAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.MetricsPort)
}

// Load reads configuration from config.yaml (if present) and BIBLIO_*
// environment variables, then validates it.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file. An empty path searches the
// default locations.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/bibliometrics-service")
	}

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets loads credentials from environment variables.
// These are intentionally excluded from config files.
func loadSecrets(cfg *Config) {
	cfg.Credentials = domain.Credentials{
		Email:                 os.Getenv(EnvPrefix + "_CREDENTIALS_EMAIL"),
		OpenCitationsToken:    os.Getenv(EnvPrefix + "_CREDENTIALS_OPENCITATIONS_TOKEN"),
		SemanticScholarAPIKey: os.Getenv(EnvPrefix + "_CREDENTIALS_SEMANTIC_SCHOLAR_API_KEY"),
	}
}

type sourceDefaults struct {
	baseURL   string
	rateLimit float64
	burst     int
}

var sourceDefaultValues = map[domain.SourceName]sourceDefaults{
	domain.SourceCrossref:           {"https://api.crossref.org", 10, 10},
	domain.SourceOpenAlex:           {"https://api.openalex.org", 10, 10},
	domain.SourceOpenCitationsIndex: {"https://opencitations.net", 5, 5},
	domain.SourceOpenCitationsMeta:  {"https://opencitations.net", 5, 5},
	domain.SourceOpenCitationsCOCI:  {"https://opencitations.net", 5, 5},
	domain.SourceSemanticScholar:    {"https://api.semanticscholar.org/graph/v1", 1, 1}, // unauthenticated pool is 1 req/sec
	domain.SourceOpenAIRE:           {"https://api.openaire.eu", 5, 5},
	domain.SourceDataCite:           {"https://api.datacite.org", 10, 10},
}

// setDefaults configures default values for all configuration options.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.metrics_port", 9091)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.namespace", "bibliometrics")

	// Comparison defaults
	v.SetDefault("comparison.max_identifiers", 20)
	v.SetDefault("comparison.concurrency", 4)
	v.SetDefault("comparison.default_sources", []string{"crossref", "openalex", "opencitations"})
	v.SetDefault("comparison.sample_size", 10)
	v.SetDefault("comparison.fetch_timeout", 2*time.Minute)

	// Cache defaults
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.size", 256)
	v.SetDefault("cache.ttl", "1h")

	// Source defaults
	for _, name := range domain.AllSources {
		d := sourceDefaultValues[name]
		prefix := "sources." + string(name) + "."
		v.SetDefault(prefix+"enabled", true)
		v.SetDefault(prefix+"base_url", d.baseURL)
		v.SetDefault(prefix+"timeout", "30s")
		v.SetDefault(prefix+"rate_limit", d.rateLimit)
		v.SetDefault(prefix+"burst", d.burst)
		v.SetDefault(prefix+"max_retries", 2)
		v.SetDefault(prefix+"retry_delay", "1s")
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}
	if c.Server.MetricsPort <= 0 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", c.Server.MetricsPort)
	}
	if c.Metrics.Enabled && c.Server.MetricsPort == c.Server.HTTPPort {
		return fmt.Errorf("metrics port must differ from HTTP port: %d", c.Server.MetricsPort)
	}

	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Comparison.MaxIdentifiers <= 0 {
		return fmt.Errorf("comparison max_identifiers must be positive")
	}
	if c.Comparison.Concurrency <= 0 {
		return fmt.Errorf("comparison concurrency must be positive")
	}
	if c.Comparison.SampleSize <= 0 || c.Comparison.SampleSize > c.Comparison.MaxIdentifiers {
		return fmt.Errorf("comparison sample_size must be between 1 and %d", c.Comparison.MaxIdentifiers)
	}
	if c.Comparison.FetchTimeout <= 0 {
		return fmt.Errorf("comparison fetch_timeout must be positive")
	}
	if _, err := domain.ParseSources(c.Comparison.DefaultSources); err != nil {
		return fmt.Errorf("comparison default_sources: %w", err)
	}

	if c.Cache.Enabled && c.Cache.Size <= 0 {
		return fmt.Errorf("cache size must be positive when the cache is enabled")
	}

	for _, name := range domain.AllSources {
		src, _ := c.Sources.ByName(name)
		if !src.Enabled {
			continue
		}
		if src.BaseURL == "" {
			return fmt.Errorf("source %s: base_url is required", name)
		}
		if src.RateLimit <= 0 {
			return fmt.Errorf("source %s: rate_limit must be positive", name)
		}
		if src.MaxRetries < 0 {
			return fmt.Errorf("source %s: max_retries must not be negative", name)
		}
	}

	return nil
}
