package papersources

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/bibliometrics-service/internal/domain"
)

func TestCached_Fetch(t *testing.T) {
	ids := []domain.Identifier{"10.1/a", "10.1/b"}

	t.Run("serves repeated batches from cache", func(t *testing.T) {
		var hits, misses int
		cache := NewResultCache(CacheConfig{
			OnHit:  func(domain.SourceName) { hits++ },
			OnMiss: func(domain.SourceName) { misses++ },
		})
		source := newMockSource(domain.SourceCrossref, true)
		cached := NewCached(source, cache)

		first, err := cached.Fetch(context.Background(), ids, domain.Credentials{})
		require.NoError(t, err)
		assert.False(t, first.Cached)

		// Same set in a different order hits the cache.
		second, err := cached.Fetch(context.Background(), []domain.Identifier{"10.1/b", "10.1/a"}, domain.Credentials{})
		require.NoError(t, err)
		assert.True(t, second.Cached)
		assert.Equal(t, first.Observations, second.Observations)

		assert.Equal(t, 1, source.FetchCallCount())
		assert.Equal(t, 1, hits)
		assert.Equal(t, 1, misses)
		assert.Equal(t, 1, cache.Len())
	})

	t.Run("credentials are part of the key", func(t *testing.T) {
		cache := NewResultCache(CacheConfig{})
		source := newMockSource(domain.SourceSemanticScholar, true)
		cached := NewCached(source, cache)

		_, err := cached.Fetch(context.Background(), ids, domain.Credentials{})
		require.NoError(t, err)
		_, err = cached.Fetch(context.Background(), ids, domain.Credentials{SemanticScholarAPIKey: "k"})
		require.NoError(t, err)

		assert.Equal(t, 2, source.FetchCallCount())
	})

	t.Run("errors are not cached", func(t *testing.T) {
		cache := NewResultCache(CacheConfig{})
		source := newMockSource(domain.SourceOpenAlex, true)
		source.fetchFunc = func(context.Context, []domain.Identifier, domain.Credentials) (*FetchResult, error) {
			return nil, errors.New("upstream down")
		}
		cached := NewCached(source, cache)

		_, err := cached.Fetch(context.Background(), ids, domain.Credentials{})
		require.Error(t, err)
		_, err = cached.Fetch(context.Background(), ids, domain.Credentials{})
		require.Error(t, err)

		assert.Equal(t, 2, source.FetchCallCount())
		assert.Equal(t, 0, cache.Len())
	})

	t.Run("partial failures are not cached", func(t *testing.T) {
		cache := NewResultCache(CacheConfig{})
		source := newMockSource(domain.SourceOpenCitationsIndex, true)
		source.fetchFunc = func(_ context.Context, ids []domain.Identifier, _ domain.Credentials) (*FetchResult, error) {
			result := &FetchResult{Source: domain.SourceOpenCitationsIndex}
			if source.FetchCallCount() == 1 {
				result.Diagnostics = []domain.Diagnostic{
					domain.IdentifierFailure(domain.SourceOpenCitationsIndex, ids[0], context.DeadlineExceeded),
				}
				return result, nil
			}
			for _, id := range ids {
				result.Observations = append(result.Observations,
					domain.NewObservations(domain.SourceOpenCitationsIndex, id, domain.KnownInt(7), domain.KnownInt(8), domain.Missing())...)
			}
			return result, nil
		}
		cached := NewCached(source, cache)

		first, err := cached.Fetch(context.Background(), ids, domain.Credentials{})
		require.NoError(t, err)
		assert.Len(t, first.Diagnostics, 1)
		assert.Equal(t, 0, cache.Len())

		second, err := cached.Fetch(context.Background(), ids, domain.Credentials{})
		require.NoError(t, err)
		assert.False(t, second.Cached)
		assert.Empty(t, second.Diagnostics)
		assert.Equal(t, domain.KnownInt(7), second.Observations[0].Value)
		assert.Equal(t, 2, source.FetchCallCount())

		third, err := cached.Fetch(context.Background(), ids, domain.Credentials{})
		require.NoError(t, err)
		assert.True(t, third.Cached)
		assert.Equal(t, 2, source.FetchCallCount())
	})

	t.Run("entries expire", func(t *testing.T) {
		cache := NewResultCache(CacheConfig{TTL: 20 * time.Millisecond})
		source := newMockSource(domain.SourceCrossref, true)
		cached := NewCached(source, cache)

		_, _ = cached.Fetch(context.Background(), ids, domain.Credentials{})
		time.Sleep(60 * time.Millisecond)
		_, _ = cached.Fetch(context.Background(), ids, domain.Credentials{})

		assert.Equal(t, 2, source.FetchCallCount())
	})

	t.Run("empty input skips source and cache", func(t *testing.T) {
		cache := NewResultCache(CacheConfig{})
		source := newMockSource(domain.SourceCrossref, true)
		cached := NewCached(source, cache)

		result, err := cached.Fetch(context.Background(), nil, domain.Credentials{})
		require.NoError(t, err)
		assert.Empty(t, result.Observations)
		assert.Equal(t, 0, source.FetchCallCount())
	})

	t.Run("delegates identity", func(t *testing.T) {
		source := newMockSource(domain.SourceDataCite, false)
		cached := NewCached(source, NewResultCache(CacheConfig{}))
		assert.Equal(t, domain.SourceDataCite, cached.Name())
		assert.False(t, cached.IsEnabled())
		assert.Same(t, source, cached.Unwrap())
	})
}
