package papersources

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/helixir/bibliometrics-service/internal/domain"
)

// CacheConfig configures the latency cache.
type CacheConfig struct {
	// Size is the maximum number of cached batches.
	Size int

	// TTL is how long a batch stays cached.
	TTL time.Duration

	// OnHit and OnMiss, if set, are called for every lookup.
	OnHit  func(domain.SourceName)
	OnMiss func(domain.SourceName)
}

// ResultCache memoizes successful fetches keyed by (source, identifier set,
// credentials). It is safe for concurrent use and may be shared by several
// Cached sources.
type ResultCache struct {
	lru    *expirable.LRU[string, *FetchResult]
	onHit  func(domain.SourceName)
	onMiss func(domain.SourceName)
}

// NewResultCache creates a cache. Size defaults to 256 and TTL to one hour.
func NewResultCache(cfg CacheConfig) *ResultCache {
	if cfg.Size <= 0 {
		cfg.Size = 256
	}
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	return &ResultCache{
		lru:    expirable.NewLRU[string, *FetchResult](cfg.Size, nil, cfg.TTL),
		onHit:  cfg.OnHit,
		onMiss: cfg.OnMiss,
	}
}

// Len returns the number of cached batches.
func (c *ResultCache) Len() int {
	return c.lru.Len()
}

// Purge drops every cached batch.
func (c *ResultCache) Purge() {
	c.lru.Purge()
}

func cacheKey(source domain.SourceName, ids []domain.Identifier, creds domain.Credentials) string {
	keys := domain.IdentifierStrings(ids)
	slices.Sort(keys)
	return string(source) + "|" + creds.Fingerprint() + "|" + strings.Join(keys, ",")
}

// Cached decorates a Source with a ResultCache.
type Cached struct {
	source Source
	cache  *ResultCache
}

var _ Source = (*Cached)(nil)

// NewCached wraps source with cache.
func NewCached(source Source, cache *ResultCache) *Cached {
	return &Cached{source: source, cache: cache}
}

// Name returns the wrapped source's name.
func (c *Cached) Name() domain.SourceName {
	return c.source.Name()
}

// IsEnabled returns whether the wrapped source is enabled.
func (c *Cached) IsEnabled() bool {
	return c.source.IsEnabled()
}

// Unwrap returns the wrapped source.
func (c *Cached) Unwrap() Source {
	return c.source
}

// Fetch serves the batch from the cache when possible. Only complete results
// are stored; errors and results carrying upstream failures always go back to
// the upstream next time.
func (c *Cached) Fetch(ctx context.Context, ids []domain.Identifier, creds domain.Credentials) (*FetchResult, error) {
	if len(ids) == 0 {
		return EmptyResult(c.Name()), nil
	}

	key := cacheKey(c.Name(), ids, creds)
	if cached, ok := c.cache.lru.Get(key); ok {
		if c.cache.onHit != nil {
			c.cache.onHit(c.Name())
		}
		out := *cached
		out.Observations = slices.Clone(cached.Observations)
		out.Diagnostics = slices.Clone(cached.Diagnostics)
		out.Cached = true
		return &out, nil
	}
	if c.cache.onMiss != nil {
		c.cache.onMiss(c.Name())
	}

	result, err := c.source.Fetch(ctx, ids, creds)
	if err != nil {
		return nil, err
	}
	if result.Complete() {
		c.cache.lru.Add(key, result)
	}
	return result, nil
}
