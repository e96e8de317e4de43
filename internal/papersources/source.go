// Package papersources provides the contract, fan-out registry and shared HTTP
// plumbing for bibliometric source adapters.
//
// Each open metadata provider (Crossref, OpenAlex, OpenCitations, Semantic
// Scholar, OpenAIRE, DataCite) implements the Source interface in its own
// subpackage, mapping the provider's response schema onto domain.Observation.
//
// Example usage:
//
//	source := crossref.New(crossref.Config{Enabled: true})
//	result, err := source.Fetch(ctx, ids, domain.Credentials{Email: "me@example.org"})
package papersources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/helixir/bibliometrics-service/internal/domain"
)

const (
	// maxResponseBytes limits decoded response bodies to prevent resource exhaustion.
	maxResponseBytes = 10 << 20

	// maxErrorBodyBytes limits how much of an error body is kept as the message.
	maxErrorBodyBytes = 1 << 20
)

// FetchResult contains the observations one source produced for a batch of identifiers.
type FetchResult struct {
	// Source identifies which provider produced these observations.
	Source domain.SourceName

	// Observations holds at most three observations per returned identifier.
	// Identifiers the provider does not know may have no observations at all.
	Observations []domain.Observation

	// Diagnostics holds per-identifier failures that did not abort the batch.
	Diagnostics []domain.Diagnostic

	// Duration is the time taken to load the batch.
	Duration time.Duration

	// Cached is true when the result was served from the latency cache.
	Cached bool
}

// EmptyResult returns a result with no observations, used for empty input.
func EmptyResult(source domain.SourceName) *FetchResult {
	return &FetchResult{Source: source}
}

// Complete reports whether every upstream call behind the result succeeded,
// that is, no diagnostic records an upstream failure.
func (r *FetchResult) Complete() bool {
	for _, d := range r.Diagnostics {
		if d.Kind == domain.DiagnosticUpstreamBatch || d.Kind == domain.DiagnosticUpstreamIdentifier {
			return false
		}
	}
	return true
}

// Source defines the interface that all source adapters must implement.
type Source interface {
	// Fetch retrieves counts for the given identifiers.
	//
	// Implementations must:
	//   - return an empty result without a network call when ids is empty
	//   - return an error wrapping *domain.ExternalAPIError when the whole batch fails
	//   - report per-identifier failures as diagnostics and continue
	//   - be safe for concurrent use
	Fetch(ctx context.Context, ids []domain.Identifier, creds domain.Credentials) (*FetchResult, error)

	// Name returns the source identifier.
	Name() domain.SourceName

	// IsEnabled returns whether this source is available for comparisons.
	IsEnabled() bool
}

// DecodeJSON decodes a size-limited JSON body into v.
func DecodeJSON(body io.Reader, v any) error {
	if err := json.NewDecoder(io.LimitReader(body, maxResponseBytes)).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}
	return nil
}

// ReadErrorBody reads a size-limited error body, trimmed of whitespace.
func ReadErrorBody(resp *http.Response) string {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	if err != nil {
		return "failed to read error response"
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return msg
}

// IsSuccess reports whether the status code is 2xx.
func IsSuccess(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
