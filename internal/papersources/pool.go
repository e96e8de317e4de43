package papersources

import (
	"context"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/helixir/bibliometrics-service/internal/domain"
)

// DefaultConcurrency bounds per-identifier requests inside one adapter.
const DefaultConcurrency = 4

// Partial is the outcome of fetching a single identifier.
type Partial struct {
	Observations []domain.Observation
	Diagnostics  []domain.Diagnostic
}

// ForEachIdentifier calls fn for every identifier with at most limit calls in
// flight and returns the outcomes in input order. A non-positive limit uses
// DefaultConcurrency.
func ForEachIdentifier(ctx context.Context, ids []domain.Identifier, limit int, fn func(ctx context.Context, id domain.Identifier) Partial) []Partial {
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	results := make([]Partial, len(ids))

	p := pool.New().WithMaxGoroutines(limit)
	for i, id := range ids {
		p.Go(func() {
			results[i] = fn(ctx, id)
		})
	}
	p.Wait()

	return results
}

// Collect flattens per-identifier outcomes into one FetchResult.
func Collect(source domain.SourceName, start time.Time, parts []Partial) *FetchResult {
	result := &FetchResult{Source: source}
	for _, part := range parts {
		result.Observations = append(result.Observations, part.Observations...)
		result.Diagnostics = append(result.Diagnostics, part.Diagnostics...)
	}
	result.Duration = time.Since(start)
	return result
}
