// Package cache provides a generic LRU plus the byte-bounded resolution
// result cache and memoizing resolver the API server runs on.
package cache

import (
	"container/list"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/sxyu/cantus-chem/core/resolve"
)

// Cache is a generic LRU cache interface.
type Cache[K comparable, V any] interface {
	// Get retrieves a value from the cache.
	Get(key K) (V, bool)

	// Put stores a value in the cache.
	Put(key K, value V)

	// Remove removes a value from the cache.
	Remove(key K)

	// RemoveOldest evicts and returns the least recently used entry.
	RemoveOldest() (K, V, bool)

	// Clear removes all entries from the cache.
	Clear()

	// Len returns the number of entries in the cache.
	Len() int

	// Stats returns cache statistics.
	Stats() Stats
}

// Stats contains cache statistics.
type Stats struct {
	Hits       int64
	Misses     int64
	Evictions  int64
	Size       int
	MaxSize    int
	TotalBytes int64
}

// Config contains cache configuration options.
type Config struct {
	// MaxSize is the maximum number of entries (0 = unlimited).
	MaxSize int

	// TTL is the time-to-live for entries (0 = no expiration).
	TTL time.Duration

	// OnEvict is called when an entry is evicted.
	OnEvict func(key, value interface{})
}

// DefaultConfig returns a default cache configuration.
func DefaultConfig() Config {
	return Config{
		MaxSize: 256,
		TTL:     0,
		OnEvict: nil,
	}
}

// entry represents a cache entry.
type entry[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time
}

// lruCache is a thread-safe LRU cache implementation.
type lruCache[K comparable, V any] struct {
	mu        sync.RWMutex
	config    Config
	entries   map[K]*list.Element
	evictList *list.List
	stats     Stats
}

// NewLRUCache creates a new LRU cache with the given configuration.
func NewLRUCache[K comparable, V any](config Config) Cache[K, V] {
	if config.MaxSize < 0 {
		config.MaxSize = 0
	}

	return &lruCache[K, V]{
		config:    config,
		entries:   make(map[K]*list.Element),
		evictList: list.New(),
	}
}

// Get retrieves a value from the cache.
func (c *lruCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ent, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		var zero V
		return zero, false
	}

	// Check if expired
	e := ent.Value.(*entry[K, V])
	if c.config.TTL > 0 && time.Now().After(e.expiresAt) {
		c.removeElement(ent)
		c.stats.Misses++
		var zero V
		return zero, false
	}

	// Move to front (most recently used)
	c.evictList.MoveToFront(ent)
	c.stats.Hits++
	return e.value, true
}

// Put stores a value in the cache.
func (c *lruCache[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Check if entry already exists
	if ent, ok := c.entries[key]; ok {
		c.evictList.MoveToFront(ent)
		e := ent.Value.(*entry[K, V])
		e.value = value
		if c.config.TTL > 0 {
			e.expiresAt = time.Now().Add(c.config.TTL)
		}
		return
	}

	// Add new entry
	e := &entry[K, V]{
		key:   key,
		value: value,
	}
	if c.config.TTL > 0 {
		e.expiresAt = time.Now().Add(c.config.TTL)
	}

	ent := c.evictList.PushFront(e)
	c.entries[key] = ent

	// Evict oldest entry if necessary
	if c.config.MaxSize > 0 && c.evictList.Len() > c.config.MaxSize {
		c.removeOldest()
	}
}

// Remove removes a value from the cache.
func (c *lruCache[K, V]) Remove(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.entries[key]; ok {
		c.removeElement(ent)
	}
}

// RemoveOldest evicts and returns the least recently used entry.
func (c *lruCache[K, V]) RemoveOldest() (K, V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ent := c.evictList.Back()
	if ent == nil {
		var zeroK K
		var zeroV V
		return zeroK, zeroV, false
	}
	e := ent.Value.(*entry[K, V])
	c.removeElement(ent)
	c.stats.Evictions++
	return e.key, e.value, true
}

// Clear removes all entries from the cache.
func (c *lruCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[K]*list.Element)
	c.evictList.Init()
	c.stats.Size = 0
}

// Len returns the number of entries in the cache.
func (c *lruCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.evictList.Len()
}

// Stats returns cache statistics.
func (c *lruCache[K, V]) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := c.stats
	s.Size = c.evictList.Len()
	s.MaxSize = c.config.MaxSize
	return s
}

// removeOldest removes the oldest entry from the cache.
func (c *lruCache[K, V]) removeOldest() {
	ent := c.evictList.Back()
	if ent != nil {
		c.removeElement(ent)
		c.stats.Evictions++
	}
}

// removeElement removes an element from the cache.
func (c *lruCache[K, V]) removeElement(ent *list.Element) {
	c.evictList.Remove(ent)
	e := ent.Value.(*entry[K, V])
	delete(c.entries, e.key)

	if c.config.OnEvict != nil {
		c.config.OnEvict(e.key, e.value)
	}
}

// ResultKey identifies one resolution: the table fingerprint, the trimmed
// formula text, and the option signature.
type ResultKey struct {
	Fingerprint string
	Formula     string
	Options     string
}

// NewResultKey builds the cache key for a resolution.
func NewResultKey(fingerprint, formulaText string, opts resolve.Options) ResultKey {
	return ResultKey{
		Fingerprint: fingerprint,
		Formula:     strings.TrimSpace(formulaText),
		Options:     OptionsSignature(opts),
	}
}

// OptionsSignature renders options in a stable comparable form. Map keys
// marshal sorted, so equal options always produce equal signatures.
func OptionsSignature(opts resolve.Options) string {
	data, err := json.Marshal(opts)
	if err != nil {
		return ""
	}
	return string(data)
}

// jsonMarshalFunc is a variable that holds the JSON marshal function.
// It can be overridden in tests to simulate marshal errors.
var jsonMarshalFunc = json.Marshal

// estimateResultBytes estimates the byte size of a resolution result.
func estimateResultBytes(res *resolve.Result) int64 {
	data, err := jsonMarshalFunc(res)
	if err != nil {
		return 0
	}
	return int64(len(data))
}

// ResultCache is a byte-bounded cache for resolution results. Cached
// results are shared between callers and must be treated as read-only.
type ResultCache struct {
	cache *BoundedCache[ResultKey, *resolve.Result]
}

// NewResultCache creates a new result cache. maxBytes of 0 means no byte
// limit.
func NewResultCache(config Config, maxBytes int64) *ResultCache {
	return &ResultCache{
		cache: NewBoundedCache[ResultKey, *resolve.Result](config, maxBytes, estimateResultBytes),
	}
}

// NewDefaultResultCache creates a new result cache with default configuration.
func NewDefaultResultCache() *ResultCache {
	config := DefaultConfig()
	config.MaxSize = 4096 // Results are small, keep many
	return NewResultCache(config, 8<<20)
}

// Get retrieves a result from the cache.
func (c *ResultCache) Get(key ResultKey) (*resolve.Result, bool) {
	return c.cache.Get(key)
}

// Put stores a result in the cache.
func (c *ResultCache) Put(key ResultKey, res *resolve.Result) {
	c.cache.Put(key, res)
}

// Remove removes a result from the cache.
func (c *ResultCache) Remove(key ResultKey) {
	c.cache.Remove(key)
}

// Clear removes all results from the cache.
func (c *ResultCache) Clear() {
	c.cache.Clear()
}

// Len returns the number of cached results.
func (c *ResultCache) Len() int {
	return c.cache.Len()
}

// Stats returns cache statistics including byte size information.
func (c *ResultCache) Stats() Stats {
	return c.cache.Stats()
}

// BoundedCache is an LRU cache with an additional byte size limit.
// Entries are evicted oldest-first until the total estimated size fits.
type BoundedCache[K comparable, V any] struct {
	mu          sync.Mutex
	inner       Cache[K, V]
	maxBytes    int64
	currentSize int64
	sizes       map[K]int64
	sizeFunc    func(V) int64
}

// NewBoundedCache creates a new cache with both entry count and byte size limits.
func NewBoundedCache[K comparable, V any](config Config, maxBytes int64, sizeFunc func(V) int64) *BoundedCache[K, V] {
	b := &BoundedCache[K, V]{
		maxBytes: maxBytes,
		sizes:    make(map[K]int64),
		sizeFunc: sizeFunc,
	}
	userEvict := config.OnEvict
	// The hook runs while some BoundedCache method holds b.mu, so the
	// size bookkeeping here needs no extra locking.
	config.OnEvict = func(key, value interface{}) {
		k := key.(K)
		b.currentSize -= b.sizes[k]
		delete(b.sizes, k)
		if userEvict != nil {
			userEvict(key, value)
		}
	}
	b.inner = NewLRUCache[K, V](config)
	return b
}

// Get retrieves a value from the cache.
func (b *BoundedCache[K, V]) Get(key K) (V, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.inner.Get(key)
}

// Put stores a value in the cache, evicting oldest entries until the byte
// limit is respected. Values larger than the limit are not cached.
func (b *BoundedCache[K, V]) Put(key K, value V) {
	b.mu.Lock()
	defer b.mu.Unlock()

	size := b.sizeFunc(value)
	if b.maxBytes > 0 && size > b.maxBytes {
		return
	}

	if old, ok := b.sizes[key]; ok {
		b.currentSize -= old
		delete(b.sizes, key)
	}
	for b.maxBytes > 0 && b.currentSize+size > b.maxBytes {
		if _, _, ok := b.inner.RemoveOldest(); !ok {
			break
		}
	}

	b.inner.Put(key, value)
	b.sizes[key] = size
	b.currentSize += size
}

// Remove removes a value from the cache.
func (b *BoundedCache[K, V]) Remove(key K) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inner.Remove(key)
}

// RemoveOldest evicts and returns the least recently used entry.
func (b *BoundedCache[K, V]) RemoveOldest() (K, V, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.inner.RemoveOldest()
}

// Clear removes all entries from the cache.
func (b *BoundedCache[K, V]) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.inner.Clear()
	b.sizes = make(map[K]int64)
	b.currentSize = 0
}

// Len returns the number of entries in the cache.
func (b *BoundedCache[K, V]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.inner.Len()
}

// Stats returns cache statistics including byte size information.
func (b *BoundedCache[K, V]) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	stats := b.inner.Stats()
	stats.TotalBytes = b.currentSize
	return stats
}
