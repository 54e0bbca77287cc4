package cache

import "github.com/sxyu/cantus-chem/core/resolve"

// CachedResolver memoizes resolutions against one resolver's registry.
// Results handed out on a hit are the same pointers stored on the miss,
// so callers must treat them as read-only.
type CachedResolver struct {
	resolver *resolve.Resolver
	results  *ResultCache
}

// NewCachedResolver wraps a resolver with a result cache. A nil cache
// gets the default configuration.
func NewCachedResolver(r *resolve.Resolver, results *ResultCache) *CachedResolver {
	if results == nil {
		results = NewDefaultResultCache()
	}
	return &CachedResolver{resolver: r, results: results}
}

// Resolver returns the underlying resolver.
func (c *CachedResolver) Resolver() *resolve.Resolver {
	return c.resolver
}

// Resolve resolves a formula, consulting the cache first. The second
// return reports whether the result came from the cache. Parse errors are
// never cached.
func (c *CachedResolver) Resolve(text string, opts resolve.Options) (*resolve.Result, bool, error) {
	key := NewResultKey(c.resolver.Registry().Fingerprint(), text, opts)
	if res, ok := c.results.Get(key); ok {
		return res, true, nil
	}
	res, err := c.resolver.Resolve(text, opts)
	if err != nil {
		return nil, false, err
	}
	c.results.Put(key, res)
	return res, false, nil
}

// Stats returns result cache statistics.
func (c *CachedResolver) Stats() Stats {
	return c.results.Stats()
}
