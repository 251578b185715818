package tenants

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

// DefaultCacheTTL bounds how long a resolved tenant may be served without a lookup.
const DefaultCacheTTL = 5 * time.Minute

// Cache stores resolved tenants keyed by normalized hostname.
type Cache interface {
	Get(host string) (Snapshot, bool)
	Set(host string, snap Snapshot)
	Invalidate(hosts ...string)
	InvalidateTenant(tenantID uuid.UUID)
}

type cacheEntry struct {
	snap      Snapshot
	expiresAt time.Time
}

// TTLCache is an in-process Cache with absolute expiry per entry.
type TTLCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	gen     uint64
	ttl     time.Duration
	now     func() time.Time
	metrics *metrics.TenantCacheMetrics
}

// CacheOption customises a TTLCache.
type CacheOption func(*TTLCache)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) CacheOption {
	return func(c *TTLCache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithCacheMetrics records hits, misses and invalidations.
func WithCacheMetrics(m *metrics.TenantCacheMetrics) CacheOption {
	return func(c *TTLCache) {
		c.metrics = m
	}
}

// NewTTLCache builds a cache; a non-positive ttl falls back to DefaultCacheTTL.
func NewTTLCache(ttl time.Duration, opts ...CacheOption) *TTLCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	c := &TTLCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *TTLCache) Get(host string) (Snapshot, bool) {
	c.mu.RLock()
	entry, ok := c.entries[host]
	c.mu.RUnlock()
	if !ok || !c.now().Before(entry.expiresAt) {
		c.metrics.IncMiss()
		return Snapshot{}, false
	}
	c.metrics.IncHit()
	return entry.snap, true
}

func (c *TTLCache) Set(host string, snap Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(host, snap)
}

// Generation changes whenever entries are invalidated.
func (c *TTLCache) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen
}

// SetIfGeneration stores snap only if no invalidation happened since gen was read,
// so a lookup that raced an admin mutation cannot repopulate stale data.
func (c *TTLCache) SetIfGeneration(host string, snap Snapshot, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return false
	}
	c.setLocked(host, snap)
	return true
}

func (c *TTLCache) setLocked(host string, snap Snapshot) {
	c.evictExpiredLocked()
	c.entries[host] = cacheEntry{snap: snap, expiresAt: c.now().Add(c.ttl)}
}

func (c *TTLCache) Invalidate(hosts ...string) {
	c.mu.Lock()
	c.gen++
	removed := 0
	for _, host := range hosts {
		if _, ok := c.entries[host]; ok {
			delete(c.entries, host)
			removed++
		}
	}
	c.mu.Unlock()
	c.metrics.AddInvalidations("host", removed)
}

// InvalidateTenant drops every hostname cached for the tenant.
func (c *TTLCache) InvalidateTenant(tenantID uuid.UUID) {
	c.mu.Lock()
	c.gen++
	removed := 0
	for host, entry := range c.entries {
		if entry.snap.TenantID == tenantID {
			delete(c.entries, host)
			removed++
		}
	}
	c.mu.Unlock()
	c.metrics.AddInvalidations("tenant", removed)
}

// Len reports the number of stored entries, expired or not.
func (c *TTLCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *TTLCache) evictExpiredLocked() {
	now := c.now()
	for host, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, host)
		}
	}
}
