// Package comparison runs one bibliometric comparison: it validates and
// normalizes the request, fans out to the selected sources, collects
// diagnostics and reconciles the observations into a table.
package comparison

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/helixir/bibliometrics-service/internal/domain"
	"github.com/helixir/bibliometrics-service/internal/observability"
	"github.com/helixir/bibliometrics-service/internal/papersources"
	"github.com/helixir/bibliometrics-service/internal/papersources/openalex"
	"github.com/helixir/bibliometrics-service/internal/reconcile"
)

const (
	// MaxIdentifiers is the default ceiling on identifiers per comparison.
	MaxIdentifiers = 20

	// DefaultSampleSize is the sample size used when the caller gives none.
	DefaultSampleSize = 10

	// InstitutionRandom selects a random swissuniversities member.
	InstitutionRandom = "random"
)

// Messages returned to callers for rejected input.
const (
	msgNoIdentifiers = "enter at least one valid DOI or generate a random sample of DOIs"
	msgNoSources     = "select at least one data source"
)

// SourceFetcher defines the interface the service needs from the source registry.
// This decouples the pipeline from the concrete papersources.Registry,
// enabling straightforward testing with mock implementations.
type SourceFetcher interface {
	FetchSources(ctx context.Context, ids []domain.Identifier, creds domain.Credentials, names []domain.SourceName) []papersources.SourceResult
	Get(name domain.SourceName) papersources.Source
	AllSources() []papersources.Source
}

// Sampler draws random DOIs and resolves institutions. The OpenAlex client
// implements it.
type Sampler interface {
	Sample(ctx context.Context, size int, institutionID string, creds domain.Credentials) ([]domain.Identifier, error)
	Institution(ctx context.Context, id string) (*openalex.Institution, error)
}

// Config holds pipeline limits and defaults.
type Config struct {
	// MaxIdentifiers caps the identifiers per comparison. Defaults to 20.
	MaxIdentifiers int

	// SampleSize is the default sample size. Defaults to 10.
	SampleSize int

	// Credentials fill in whatever the caller leaves empty.
	Credentials domain.Credentials
}

func (c *Config) applyDefaults() {
	if c.MaxIdentifiers <= 0 {
		c.MaxIdentifiers = MaxIdentifiers
	}
	if c.SampleSize <= 0 {
		c.SampleSize = DefaultSampleSize
	}
}

// Request is one comparison request.
type Request struct {
	// Identifiers are raw DOI strings or DOI URLs, normalized by the service.
	Identifiers []string

	// Sources are the selected sources. The alias "opencitations" is accepted.
	Sources []domain.SourceName

	// Credentials are passed through to the sources.
	Credentials domain.Credentials
}

// SourceTiming records how one source's fetch went.
type SourceTiming struct {
	Source       domain.SourceName `json:"source"`
	Duration     time.Duration     `json:"duration"`
	Observations int               `json:"observations"`
	Failed       bool              `json:"failed"`
	Cached       bool              `json:"cached"`
}

// Result is the outcome of a comparison.
type Result struct {
	RequestID   string
	Identifiers []domain.Identifier
	Table       *reconcile.Table
	Diagnostics []domain.Diagnostic
	Timings     []SourceTiming
	Duration    time.Duration
}

// SampleRequest asks for a random DOI sample.
type SampleRequest struct {
	// Size is the number of DOIs, 1 to the identifier ceiling. Zero means the default.
	Size int

	// Institution is empty, "random", a swissuniversities member name or an OpenAlex id.
	Institution string

	Credentials domain.Credentials
}

// SampleResult holds a random DOI sample.
type SampleResult struct {
	Identifiers []domain.Identifier   `json:"identifiers"`
	Institution *openalex.Institution `json:"institution,omitempty"`
}

// SourceInfo describes a registered source.
type SourceInfo struct {
	Name        domain.SourceName `json:"name"`
	DisplayName string            `json:"display_name"`
	Enabled     bool              `json:"enabled"`
}

// Service runs comparisons.
type Service struct {
	registry SourceFetcher
	sampler  Sampler
	metrics  *observability.Metrics
	logger   zerolog.Logger
	config   Config
}

// NewService creates a new Service with the given dependencies.
// The sampler may be nil (sampling is then unavailable) and so may metrics
// (metrics recording will be skipped).
func NewService(registry SourceFetcher, sampler Sampler, metrics *observability.Metrics, logger zerolog.Logger, cfg Config) *Service {
	cfg.applyDefaults()
	return &Service{
		registry: registry,
		sampler:  sampler,
		metrics:  metrics,
		logger:   observability.WithComponent(logger, "comparison"),
		config:   cfg,
	}
}

// MaxIdentifiers returns the configured identifier ceiling.
func (s *Service) MaxIdentifiers() int {
	return s.config.MaxIdentifiers
}

// Sources lists every registered source in natural order.
func (s *Service) Sources() []SourceInfo {
	all := s.registry.AllSources()
	out := make([]SourceInfo, 0, len(all))
	for _, src := range all {
		out = append(out, SourceInfo{
			Name:        src.Name(),
			DisplayName: src.Name().DisplayName(),
			Enabled:     src.IsEnabled(),
		})
	}
	return out
}

// Institutions returns the swissuniversities catalog offered for sampling.
func (s *Service) Institutions() []openalex.Institution {
	return openalex.SwissUniversities()
}

// Compare validates the request, fetches every selected source concurrently
// and reconciles the observations. Input errors are returned before any
// network call. Source failures never fail the comparison; they become
// diagnostics next to the data.
func (s *Service) Compare(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	requestID := observability.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	logger := observability.WithComparisonContext(s.logger, requestID)

	ids, sources, err := s.validate(req)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordComparisonRejected()
		}
		logger.Debug().Err(err).Msg("comparison rejected")
		return nil, err
	}

	creds := req.Credentials.Merge(s.config.Credentials)

	logger.Info().
		Int("identifiers", len(ids)).
		Strs("sources", sourceStrings(sources)).
		Msg("starting comparison")

	if s.metrics != nil {
		s.metrics.RecordComparisonStarted(len(ids))
	}

	results := s.registry.FetchSources(ctx, ids, creds, sources)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("comparison canceled: %w", err)
	}

	var (
		observations []domain.Observation
		diagnostics  []domain.Diagnostic
		timings      = make([]SourceTiming, 0, len(results))
	)

	for _, sr := range results {
		timing := SourceTiming{Source: sr.Source, Duration: sr.Duration}

		if sr.Error != nil {
			timing.Failed = true
			diagnostics = append(diagnostics, domain.BatchFailure(sr.Source, sr.Error))

			logger.Warn().
				Err(sr.Error).
				Str("source", string(sr.Source)).
				Dur("duration", timing.Duration).
				Msg("source fetch failed")

			if s.metrics != nil {
				s.metrics.RecordSourceFetchFailed(string(sr.Source), timing.Duration.Seconds())
			}
			timings = append(timings, timing)
			continue
		}

		if sr.Result != nil {
			observations = append(observations, sr.Result.Observations...)
			diagnostics = append(diagnostics, sr.Result.Diagnostics...)
			timing.Duration = sr.Result.Duration
			timing.Observations = len(sr.Result.Observations)
			timing.Cached = sr.Result.Cached
		}

		logger.Debug().
			Str("source", string(sr.Source)).
			Int("observations", timing.Observations).
			Dur("duration", timing.Duration).
			Bool("cached", timing.Cached).
			Msg("source fetch completed")

		if s.metrics != nil {
			s.metrics.RecordSourceFetch(string(sr.Source), timing.Observations, timing.Duration.Seconds())
		}
		timings = append(timings, timing)
	}

	table := reconcile.Reconcile(observations, ids, sources)
	diagnostics = append(diagnostics, table.Diagnostics...)

	for _, d := range diagnostics {
		s.logDiagnostic(logger, d)
	}

	duration := time.Since(start)
	if s.metrics != nil {
		s.metrics.RecordComparisonCompleted(duration.Seconds())
	}

	logger.Info().
		Int("rows", len(table.Rows)).
		Int("diagnostics", len(diagnostics)).
		Dur("duration", duration).
		Msg("comparison completed")

	return &Result{
		RequestID:   requestID,
		Identifiers: ids,
		Table:       table,
		Diagnostics: diagnostics,
		Timings:     timings,
		Duration:    duration,
	}, nil
}

// validate normalizes identifiers and sources. Sources come back de-duplicated
// and in natural order.
func (s *Service) validate(req Request) ([]domain.Identifier, []domain.SourceName, error) {
	ids := domain.NormalizeIdentifiers(req.Identifiers)
	if len(ids) == 0 {
		return nil, nil, domain.NewValidationError("identifiers", msgNoIdentifiers)
	}
	if len(ids) > s.config.MaxIdentifiers {
		return nil, nil, domain.NewValidationError("identifiers",
			fmt.Sprintf("enter no more than %d DOIs", s.config.MaxIdentifiers))
	}

	sources, err := domain.ParseSources(sourceStrings(req.Sources))
	if err != nil {
		return nil, nil, err
	}
	if len(sources) == 0 {
		return nil, nil, domain.NewValidationError("sources", msgNoSources)
	}
	for _, name := range sources {
		src := s.registry.Get(name)
		if src == nil || !src.IsEnabled() {
			return nil, nil, &domain.ValidationError{
				Field:   "sources",
				Message: fmt.Sprintf("source %q is not available", string(name)),
				Cause:   domain.ErrUnknownSource,
			}
		}
	}
	slices.SortStableFunc(sources, func(a, b domain.SourceName) int {
		return a.Order() - b.Order()
	})
	return ids, sources, nil
}

func (s *Service) logDiagnostic(logger zerolog.Logger, d domain.Diagnostic) {
	event := logger.Info()
	if d.Severity == domain.SeverityWarning {
		event = logger.Warn()
	}
	event.
		Str("kind", string(d.Kind)).
		Str("source", string(d.Source)).
		Str("identifier", string(d.Identifier)).
		Msg(d.Message)

	if s.metrics != nil {
		s.metrics.RecordDiagnostic(string(d.Kind))
	}
}

// Sample draws a random DOI sample, optionally restricted to one institution.
func (s *Service) Sample(ctx context.Context, req SampleRequest) (*SampleResult, error) {
	size := req.Size
	if size == 0 {
		size = s.config.SampleSize
	}
	if size < 1 || size > s.config.MaxIdentifiers {
		return nil, domain.NewValidationError("size",
			fmt.Sprintf("sample size must be between 1 and %d", s.config.MaxIdentifiers))
	}
	if s.sampler == nil {
		return nil, fmt.Errorf("%w: sampling requires the OpenAlex source", domain.ErrServiceUnavailable)
	}

	inst, err := s.resolveInstitution(ctx, req.Institution)
	if err != nil {
		return nil, err
	}

	var filter string
	if inst != nil {
		filter = shortInstitutionID(inst.ID)
	}

	creds := req.Credentials.Merge(s.config.Credentials)
	ids, err := s.sampler.Sample(ctx, size, filter, creds)
	if err != nil {
		return nil, fmt.Errorf("sample identifiers: %w", err)
	}

	s.logger.Info().
		Int("size", size).
		Int("sampled", len(ids)).
		Str("institution", filter).
		Msg("sampled identifiers")

	return &SampleResult{
		Identifiers: domain.NormalizeIdentifiers(domain.IdentifierStrings(ids)),
		Institution: inst,
	}, nil
}

func (s *Service) resolveInstitution(ctx context.Context, key string) (*openalex.Institution, error) {
	key = strings.TrimSpace(key)
	switch {
	case key == "":
		return nil, nil
	case strings.EqualFold(key, InstitutionRandom):
		inst := openalex.RandomInstitution()
		return &inst, nil
	}

	if inst, ok := openalex.LookupInstitution(key); ok {
		return &inst, nil
	}

	if !looksLikeOpenAlexID(key) {
		return nil, domain.NewValidationError("institution",
			fmt.Sprintf("institution %q is neither a swissuniversities member nor an OpenAlex id", key))
	}

	inst, err := s.sampler.Institution(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewValidationError("institution",
				fmt.Sprintf("institution %q was not found in OpenAlex", key))
		}
		return nil, fmt.Errorf("resolve institution: %w", err)
	}
	return inst, nil
}

func shortInstitutionID(id string) string {
	return strings.TrimPrefix(id, "https://openalex.org/")
}

// looksLikeOpenAlexID reports whether key has the form I123 or
// https://openalex.org/I123.
func looksLikeOpenAlexID(key string) bool {
	key = shortInstitutionID(key)
	if len(key) < 2 || (key[0] != 'I' && key[0] != 'i') {
		return false
	}
	for _, r := range key[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func sourceStrings(sources []domain.SourceName) []string {
	out := make([]string, len(sources))
	for i, s := range sources {
		out[i] = string(s)
	}
	return out
}
