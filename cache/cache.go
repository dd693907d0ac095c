// Package cache implements the process-wide bounded TTL cache from spec.md
// §4.3: an LRU with capacity ~10,000, a default TTL, per-entry TTL
// overrides, and prefix-based invalidation for cache keys built by the
// Facade. The LRU core is hashicorp/golang-lru/v2's Cache[K,V] (the
// ecosystem-standard choice across the retrieval pack's manifests, e.g.
// AKJUS-bsc-erigon and estuary-flow); TTL expiry and prefix invalidation are
// added in this wrapper since golang-lru/v2 has neither.
package cache

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// DefaultCapacity is spec.md §4.3's "capacity ~10,000".
	DefaultCapacity = 10000
	// DefaultTTL is spec.md §4.3's default TTL of 60 seconds.
	DefaultTTL = 60 * time.Second
)

type entry struct {
	value     any
	insertedAt time.Time
	ttl       time.Duration
}

func (e entry) expired(now time.Time) bool {
	return now.Sub(e.insertedAt) >= e.ttl
}

// Cache is a thread-safe bounded LRU with TTL and prefix invalidation. The
// zero value is not usable; construct with New.
type Cache struct {
	mu         sync.Mutex
	lru        *lru.Cache[string, entry]
	defaultTTL time.Duration
	now        func() time.Time
}

// New builds a Cache with the given capacity and default TTL; zero values
// fall back to DefaultCapacity/DefaultTTL.
func New(capacity int, defaultTTL time.Duration) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	l, err := lru.New[string, entry](capacity)
	if err != nil {
		// Only returns an error for capacity <= 0, already guarded above.
		panic(err)
	}
	return &Cache{lru: l, defaultTTL: defaultTTL, now: time.Now}
}

// Key builds a canonical cache key: the purpose tag, the connector instance
// id, and any further parts, JSON-encoded and joined with "|" per spec.md
// §4.3's key discipline. Canonical encoding means keys built from the same
// logical parts always match: callers must pre-sort/normalize any part
// (e.g. attribute projections) whose order is not already significant.
func Key(parts ...any) string {
	encoded := make([]string, len(parts))
	for i, p := range parts {
		b, err := json.Marshal(p)
		if err != nil {
			// parts are always JSON-marshalable primitives/slices produced
			// by this codebase; a failure here is a programming error.
			panic(err)
		}
		encoded[i] = string(b)
	}
	return strings.Join(encoded, "|")
}

// Get returns the cached value for key if present and not expired.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Get(key)
	if !ok {
		cacheMisses.Inc()
		return nil, false
	}
	if e.expired(c.now()) {
		c.lru.Remove(key)
		cacheMisses.Inc()
		return nil, false
	}
	cacheHits.Inc()
	return e.value, true
}

// Set stores value under key with the cache's default TTL.
func (c *Cache) Set(key string, value any) {
	c.SetTTL(key, value, c.defaultTTL)
}

// SetTTL stores value under key with a per-entry TTL override.
func (c *Cache) SetTTL(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(key, entry{value: value, insertedAt: c.now(), ttl: ttl})
}

// Delete removes exactly one key.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(key)
}

// DeletePrefix removes every key that begins with prefix, used by the
// Facade's write-path invalidation (spec.md §4.4).
func (c *Cache) DeletePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range c.lru.Keys() {
		if strings.HasPrefix(k, prefix) {
			c.lru.Remove(k)
		}
	}
}

var (
	cacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "connector_host",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Count of cache lookups that returned a live entry.",
	})
	cacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "connector_host",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Count of cache lookups that found no live entry.",
	})
)

func init() {
	prometheus.MustRegister(cacheHits, cacheMisses)
}
