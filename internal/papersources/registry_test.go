package papersources

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/bibliometrics-service/internal/domain"
)

// mockSource is a Source whose behaviour is set per test.
type mockSource struct {
	name    domain.SourceName
	enabled bool

	fetchFunc func(ctx context.Context, ids []domain.Identifier, creds domain.Credentials) (*FetchResult, error)

	fetchCalls atomic.Int32
}

func newMockSource(name domain.SourceName, enabled bool) *mockSource {
	return &mockSource{name: name, enabled: enabled}
}

func (m *mockSource) Fetch(ctx context.Context, ids []domain.Identifier, creds domain.Credentials) (*FetchResult, error) {
	m.fetchCalls.Add(1)
	if m.fetchFunc != nil {
		return m.fetchFunc(ctx, ids, creds)
	}
	result := &FetchResult{Source: m.name}
	for _, id := range ids {
		result.Observations = append(result.Observations,
			domain.NewObservations(m.name, id, domain.KnownInt(1), domain.KnownInt(2), domain.KnownInt(3))...)
	}
	return result, nil
}

func (m *mockSource) Name() domain.SourceName { return m.name }
func (m *mockSource) IsEnabled() bool         { return m.enabled }
func (m *mockSource) FetchCallCount() int     { return int(m.fetchCalls.Load()) }

func TestRegistry_RegisterAndGet(t *testing.T) {
	registry := NewRegistry()
	assert.Empty(t, registry.AllSources())

	crossref := newMockSource(domain.SourceCrossref, true)
	registry.Register(crossref)
	assert.Same(t, crossref, registry.Get(domain.SourceCrossref))
	assert.Nil(t, registry.Get(domain.SourceOpenAlex))

	replacement := newMockSource(domain.SourceCrossref, false)
	registry.Register(replacement)
	assert.Same(t, replacement, registry.Get(domain.SourceCrossref))
	assert.Len(t, registry.AllSources(), 1)
}

func TestRegistry_SourcesInNaturalOrder(t *testing.T) {
	registry := NewRegistry()
	registry.Register(newMockSource(domain.SourceOpenAIRE, true))
	registry.Register(newMockSource(domain.SourceCrossref, true))
	registry.Register(newMockSource(domain.SourceSemanticScholar, false))
	registry.Register(newMockSource(domain.SourceOpenAlex, true))

	var all []domain.SourceName
	for _, s := range registry.AllSources() {
		all = append(all, s.Name())
	}
	assert.Equal(t, []domain.SourceName{
		domain.SourceCrossref, domain.SourceOpenAlex, domain.SourceSemanticScholar, domain.SourceOpenAIRE,
	}, all)

	var enabled []domain.SourceName
	for _, s := range registry.EnabledSources() {
		enabled = append(enabled, s.Name())
	}
	assert.Equal(t, []domain.SourceName{domain.SourceCrossref, domain.SourceOpenAlex, domain.SourceOpenAIRE}, enabled)
}

func TestRegistry_FetchSources(t *testing.T) {
	ids := []domain.Identifier{"10.1/a", "10.1/b"}
	creds := domain.Credentials{Email: "me@example.org"}

	t.Run("results follow requested order", func(t *testing.T) {
		registry := NewRegistry()
		registry.Register(newMockSource(domain.SourceCrossref, true))
		registry.Register(newMockSource(domain.SourceOpenAlex, true))
		registry.Register(newMockSource(domain.SourceDataCite, true))

		results := registry.FetchSources(context.Background(), ids, creds,
			[]domain.SourceName{domain.SourceDataCite, domain.SourceCrossref})

		require.Len(t, results, 2)
		assert.Equal(t, domain.SourceDataCite, results[0].Source)
		assert.Equal(t, domain.SourceCrossref, results[1].Source)
		for _, r := range results {
			require.NoError(t, r.Error)
			assert.Len(t, r.Result.Observations, 6)
		}
	})

	t.Run("one failing source does not affect others", func(t *testing.T) {
		registry := NewRegistry()
		failing := newMockSource(domain.SourceCrossref, true)
		failing.fetchFunc = func(context.Context, []domain.Identifier, domain.Credentials) (*FetchResult, error) {
			return nil, domain.NewExternalAPIError("Crossref", 400, "Invalid filter", nil)
		}
		registry.Register(failing)
		registry.Register(newMockSource(domain.SourceOpenAlex, true))

		results := registry.FetchSources(context.Background(), ids, creds, nil)

		require.Len(t, results, 2)
		assert.Error(t, results[0].Error)
		assert.Nil(t, results[0].Result)
		assert.NoError(t, results[1].Error)
		assert.Len(t, results[1].Result.Observations, 6)
	})

	t.Run("sources run concurrently", func(t *testing.T) {
		registry := NewRegistry()
		for _, name := range []domain.SourceName{domain.SourceCrossref, domain.SourceOpenAlex, domain.SourceOpenAIRE} {
			s := newMockSource(name, true)
			s.fetchFunc = func(ctx context.Context, ids []domain.Identifier, _ domain.Credentials) (*FetchResult, error) {
				time.Sleep(100 * time.Millisecond)
				return &FetchResult{Source: name}, nil
			}
			registry.Register(s)
		}

		start := time.Now()
		results := registry.FetchSources(context.Background(), ids, creds, nil)
		assert.Len(t, results, 3)
		assert.Less(t, time.Since(start), 250*time.Millisecond)
	})

	t.Run("credentials are passed through", func(t *testing.T) {
		registry := NewRegistry()
		var got domain.Credentials
		s := newMockSource(domain.SourceCrossref, true)
		s.fetchFunc = func(_ context.Context, _ []domain.Identifier, c domain.Credentials) (*FetchResult, error) {
			got = c
			return EmptyResult(domain.SourceCrossref), nil
		}
		registry.Register(s)

		registry.FetchSources(context.Background(), ids, creds, nil)
		assert.Equal(t, creds, got)
	})

	t.Run("slow source is cut off by the fetch timeout", func(t *testing.T) {
		registry := NewRegistry()
		registry.SetFetchTimeout(50 * time.Millisecond)

		slow := newMockSource(domain.SourceSemanticScholar, true)
		slow.fetchFunc = func(ctx context.Context, _ []domain.Identifier, _ domain.Credentials) (*FetchResult, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Hour):
				return EmptyResult(domain.SourceSemanticScholar), nil
			}
		}
		registry.Register(slow)
		registry.Register(newMockSource(domain.SourceCrossref, true))

		start := time.Now()
		results := registry.FetchSources(context.Background(), ids, creds, nil)
		assert.Less(t, time.Since(start), 2*time.Second)

		require.Len(t, results, 2)
		assert.NoError(t, results[0].Error)
		assert.Len(t, results[0].Result.Observations, 6)
		assert.ErrorIs(t, results[1].Error, context.DeadlineExceeded)
		assert.GreaterOrEqual(t, results[1].Duration, 50*time.Millisecond)
	})

	t.Run("unknown names are skipped", func(t *testing.T) {
		registry := NewRegistry()
		registry.Register(newMockSource(domain.SourceCrossref, true))

		results := registry.FetchSources(context.Background(), ids, creds, []domain.SourceName{domain.SourceOpenAlex})
		assert.Nil(t, results)
	})

	t.Run("context cancellation reaches sources", func(t *testing.T) {
		registry := NewRegistry()
		s := newMockSource(domain.SourceCrossref, true)
		s.fetchFunc = func(ctx context.Context, _ []domain.Identifier, _ domain.Credentials) (*FetchResult, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		registry.Register(s)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		results := registry.FetchSources(ctx, ids, creds, nil)
		require.Len(t, results, 1)
		assert.True(t, errors.Is(results[0].Error, context.Canceled))
	})
}
