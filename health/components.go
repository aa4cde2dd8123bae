package health

import (
	"context"
	"sync"

	"github.com/jonwraymond/agriops/cache"
)

// CacheStatser exposes cache counters. *cache.Layer implements it.
type CacheStatser interface {
	Stats() cache.Stats
}

// CacheChecker reports on the response cache. It is degraded while the
// deferred writer is dropping writes, which means results are being computed
// but not cached.
type CacheChecker struct {
	source CacheStatser

	mu          sync.Mutex
	lastDropped int64
}

// NewCacheChecker creates a cache checker.
func NewCacheChecker(source CacheStatser) *CacheChecker {
	return &CacheChecker{source: source}
}

// Name returns "cache".
func (c *CacheChecker) Name() string {
	return "cache"
}

// Check reports entry count and counters. Drops since the previous check make
// the result degraded.
func (c *CacheChecker) Check(_ context.Context) Result {
	stats := c.source.Stats()

	c.mu.Lock()
	newDrops := stats.Dropped - c.lastDropped
	c.lastDropped = stats.Dropped
	c.mu.Unlock()

	details := map[string]any{
		"entries":   stats.Entries,
		"hits":      stats.Hits,
		"misses":    stats.Misses,
		"coalesced": stats.Coalesced,
		"writes":    stats.Writes,
		"dropped":   stats.Dropped,
		"evictions": stats.Evictions,
	}
	if newDrops > 0 {
		return Degraded("cache writes are being dropped", nil).WithDetails(details)
	}
	return Healthy("cache operational").WithDetails(details)
}

// ConfiguredChecker reports whether an upstream collaborator has the
// credentials or endpoint it needs.
type ConfiguredChecker struct {
	name       string
	configured func() bool
}

// NewConfiguredChecker creates a checker named after the collaborator.
func NewConfiguredChecker(name string, configured func() bool) *ConfiguredChecker {
	return &ConfiguredChecker{name: name, configured: configured}
}

// Name returns the collaborator name.
func (c *ConfiguredChecker) Name() string {
	return c.name
}

// Check is healthy when configured and degraded otherwise.
func (c *ConfiguredChecker) Check(_ context.Context) Result {
	if c.configured() {
		return Healthy("configured")
	}
	return Degraded("not configured", ErrNotConfigured)
}

var (
	_ Checker = (*CacheChecker)(nil)
	_ Checker = (*ConfiguredChecker)(nil)
	_ Checker = (*MemoryChecker)(nil)
)
