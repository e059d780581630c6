package travel

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/matchd-io/matchd/internal/domain"
	"github.com/matchd-io/matchd/internal/infra/metrics"
)

// Cache holds resolved travel results keyed by origin|dest|mode|bucket.
// Entries expire after the TTL; the LRU bound evicts the oldest beyond it.
type Cache struct {
	lru *expirable.LRU[string, domain.TravelResult]
}

// NewCache creates a travel cache.
func NewCache(size int, ttl time.Duration) *Cache {
	if size <= 0 {
		size = 4096
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{lru: expirable.NewLRU[string, domain.TravelResult](size, nil, ttl)}
}

// Get returns the cached result for the query, if fresh.
func (c *Cache) Get(q domain.TravelQuery) (domain.TravelResult, bool) {
	res, ok := c.lru.Get(q.CacheKey())
	if ok {
		metrics.TravelCacheHits.Inc()
	} else {
		metrics.TravelCacheMisses.Inc()
	}
	return res, ok
}

// Put stores a resolved result under the query's cache key.
func (c *Cache) Put(q domain.TravelQuery, res domain.TravelResult) {
	c.lru.Add(q.CacheKey(), res)
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	return c.lru.Len()
}
