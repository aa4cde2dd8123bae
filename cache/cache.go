package cache

import (
	"context"
	"errors"
	"strings"
	"time"
)

// MaxKeyLength is the maximum allowed length for a cache key.
const MaxKeyLength = 512

// Sentinel errors for cache operations.
var (
	ErrNilCache   = errors.New("cache: cache is nil")
	ErrInvalidKey = errors.New("cache: key is invalid")
	ErrKeyTooLong = errors.New("cache: key exceeds max length")
	ErrQueueFull  = errors.New("cache: write queue is full")
	ErrClosed     = errors.New("cache: writer is closed")
)

// Entry is a cached result together with the time it was computed.
type Entry struct {
	Value    []byte
	StoredAt time.Time
}

// Cache is the interface for the shared response store.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use; each
//   individual operation is atomic for its key.
// - Context: methods should honor cancellation/deadlines where applicable.
// - Errors: Get should never error; it returns (Entry{}, false) on miss.
type Cache interface {
	// Get retrieves an entry. Returns (Entry{}, false) on miss.
	Get(ctx context.Context, key string) (Entry, bool)

	// Set stores value under key, overwriting any existing entry.
	Set(ctx context.Context, key string, value []byte, storedAt time.Time) error

	// Delete removes an entry. Idempotent - no error on miss.
	Delete(ctx context.Context, key string) error

	// Clear removes every entry.
	Clear(ctx context.Context) error

	// Len returns the number of stored entries.
	Len() int
}

// ValidateKey checks if a key is valid for caching.
func ValidateKey(key string) error {
	if key == "" || strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	// Reject keys with newlines or carriage returns
	if strings.ContainsAny(key, "\n\r") {
		return ErrInvalidKey
	}
	return nil
}
