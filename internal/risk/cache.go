package risk

import (
	"time"

	cache "github.com/patrickmn/go-cache"
)

// LimitCache caches resolved per-strategy/per-symbol Limits by key
// with go-cache expiry. Engine does not consult it: CheckOrder and
// QuickCheck read the active limits from an atomic pointer. Grounded
// on the teacher's
// internal/risk/limit_manager.go use of patrickmn/go-cache.
type LimitCache struct {
	c *cache.Cache
}

// NewLimitCache creates a cache with the teacher's default
// expiration/cleanup cadence.
func NewLimitCache() *LimitCache {
	return &LimitCache{c: cache.New(5*time.Minute, 10*time.Minute)}
}

// Get returns the cached limits for key, if present and unexpired.
func (lc *LimitCache) Get(key string) (Limits, bool) {
	v, ok := lc.c.Get(key)
	if !ok {
		return Limits{}, false
	}
	limits, ok := v.(Limits)
	return limits, ok
}

// Set caches limits for key with the cache's default expiration.
func (lc *LimitCache) Set(key string, limits Limits) {
	lc.c.Set(key, limits, cache.DefaultExpiration)
}
