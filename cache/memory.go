package cache

import (
	"context"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCapacity is the number of entries kept when no capacity is configured.
const DefaultCapacity = 1024

// MemoryCache is an in-memory cache bounded by entry count. When full, the
// least recently used entry is evicted.
type MemoryCache struct {
	entries   *lru.Cache[string, Entry]
	capacity  int
	evictions atomic.Int64
}

// NewMemoryCache creates a memory cache holding at most capacity entries.
// A non-positive capacity selects DefaultCapacity.
func NewMemoryCache(capacity int) (*MemoryCache, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	entries, err := lru.New[string, Entry](capacity)
	if err != nil {
		return nil, err
	}
	return &MemoryCache{entries: entries, capacity: capacity}, nil
}

// Get retrieves an entry. Freshness is the caller's concern; see Policy.
func (c *MemoryCache) Get(_ context.Context, key string) (Entry, bool) {
	return c.entries.Get(key)
}

// Set stores value under key.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, storedAt time.Time) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if evicted := c.entries.Add(key, Entry{Value: value, StoredAt: storedAt}); evicted {
		c.evictions.Add(1)
	}
	return nil
}

// Delete removes an entry. Idempotent - no error on miss.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.entries.Remove(key)
	return nil
}

// Clear removes every entry. Cleared entries are not counted as evictions.
func (c *MemoryCache) Clear(_ context.Context) error {
	c.entries.Purge()
	return nil
}

// Len returns the number of stored entries.
func (c *MemoryCache) Len() int {
	return c.entries.Len()
}

// Capacity returns the maximum number of entries.
func (c *MemoryCache) Capacity() int {
	return c.capacity
}

// Evictions returns how many entries were pushed out by capacity pressure.
func (c *MemoryCache) Evictions() int64 {
	return c.evictions.Load()
}

// Ensure MemoryCache implements Cache
var _ Cache = (*MemoryCache)(nil)
