package papersources

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/helixir/bibliometrics-service/internal/domain"
)

// SourceResult holds the result of a fetch from one source.
type SourceResult struct {
	// Source identifies which source produced the result.
	Source domain.SourceName

	// Result contains the fetch results if the fetch succeeded.
	// Will be nil if Error is non-nil.
	Result *FetchResult

	// Error contains the batch-level error if the fetch failed.
	// Will be nil if Result is non-nil.
	Error error

	// Duration is how long the source took, failed or not.
	Duration time.Duration
}

// Registry manages sources and coordinates concurrent fetches.
// It is safe for concurrent use.
type Registry struct {
	mu           sync.RWMutex
	sources      map[domain.SourceName]Source
	fetchTimeout time.Duration
}

// NewRegistry creates a new source registry with an empty source map.
func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[domain.SourceName]Source),
	}
}

// Register adds a source to the registry.
// If a source with the same name already exists, it will be replaced.
func (r *Registry) Register(source Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[source.Name()] = source
}

// Get returns a source by name, or nil if not found.
func (r *Registry) Get(name domain.SourceName) Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sources[name]
}

// AllSources returns all registered sources in natural order.
func (r *Registry) AllSources() []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sources := make([]Source, 0, len(r.sources))
	for _, source := range r.sources {
		sources = append(sources, source)
	}
	sortSources(sources)
	return sources
}

// EnabledSources returns only enabled sources, in natural order.
func (r *Registry) EnabledSources() []Source {
	all := r.AllSources()
	sources := make([]Source, 0, len(all))
	for _, source := range all {
		if source.IsEnabled() {
			sources = append(sources, source)
		}
	}
	return sources
}

// SetFetchTimeout bounds every source's Fetch. Zero leaves fetches bounded
// only by the caller's context.
func (r *Registry) SetFetchTimeout(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetchTimeout = d
}

// FetchSources fetches from the named sources concurrently, one goroutine per
// source. If names is empty, all enabled sources are used. Unknown names are
// skipped. Results are returned in the order of the requested names; a failure
// or timeout in one source never interrupts the others.
func (r *Registry) FetchSources(ctx context.Context, ids []domain.Identifier, creds domain.Credentials, names []domain.SourceName) []SourceResult {
	var sources []Source

	r.mu.RLock()
	timeout := r.fetchTimeout
	r.mu.RUnlock()

	if len(names) == 0 {
		sources = r.EnabledSources()
	} else {
		r.mu.RLock()
		sources = make([]Source, 0, len(names))
		for _, name := range names {
			if source, ok := r.sources[name]; ok {
				sources = append(sources, source)
			}
		}
		r.mu.RUnlock()
	}

	if len(sources) == 0 {
		return nil
	}

	results := make([]SourceResult, len(sources))
	var wg sync.WaitGroup

	for i, source := range sources {
		wg.Add(1)
		go func(i int, s Source) {
			defer wg.Done()

			fetchCtx := ctx
			if timeout > 0 {
				var cancel context.CancelFunc
				fetchCtx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			start := time.Now()
			result, err := s.Fetch(fetchCtx, ids, creds)
			if err != nil {
				result = nil
			}
			results[i] = SourceResult{
				Source:   s.Name(),
				Result:   result,
				Error:    err,
				Duration: time.Since(start),
			}
		}(i, source)
	}

	wg.Wait()
	return results
}

func sortSources(sources []Source) {
	sort.SliceStable(sources, func(i, j int) bool {
		return sources[i].Name().Order() < sources[j].Name().Order()
	})
}
