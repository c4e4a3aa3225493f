package rates

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"retromoney/internal/cache"
)

const quoteKey = "quote"

// CachedProvider serves the last good quote until its TTL expires. Failures
// are never cached. Concurrent misses share one upstream fetch.
type CachedProvider struct {
	next  Provider
	cache *cache.TTL[Quote]
	group singleflight.Group
}

// NewCachedProvider wraps next with a TTL cache. A non-positive ttl disables
// caching and returns next unchanged.
func NewCachedProvider(next Provider, ttl time.Duration) Provider {
	if ttl <= 0 {
		return next
	}
	return &CachedProvider{
		next:  next,
		cache: cache.NewTTL[Quote](ttl),
	}
}

func (p *CachedProvider) Quote(ctx context.Context) (Quote, error) {
	if q, _, ok := p.cache.Get(quoteKey); ok {
		return q, nil
	}
	v, err, _ := p.group.Do(quoteKey, func() (any, error) {
		if q, _, ok := p.cache.Get(quoteKey); ok {
			return q, nil
		}
		q, err := p.next.Quote(ctx)
		if err != nil {
			return Quote{}, err
		}
		p.cache.Set(quoteKey, q)
		return q, nil
	})
	if err != nil {
		return Quote{}, err
	}
	return v.(Quote), nil
}
