package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// Loader computes the value for a key on a cache miss.
type Loader func(ctx context.Context) ([]byte, error)

// Result is the outcome of a Fetch.
type Result struct {
	Value []byte

	// Hit is true when Value came from the cache.
	Hit bool

	// Shared is true when this caller waited on a load started by another.
	Shared bool

	// StoredAt is when Value was computed.
	StoredAt time.Time
}

// Stats is a point-in-time snapshot of layer counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Coalesced int64
	Writes    int64
	Dropped   int64
	Failures  int64
	Discarded int64
	Evictions int64
	Entries   int
}

// LayerOption configures a Layer.
type LayerOption func(*Layer)

// WithClock replaces time.Now. Used for freshness checks and StoredAt stamps.
func WithClock(now func() time.Time) LayerOption {
	return func(l *Layer) {
		if now != nil {
			l.now = now
		}
	}
}

// Layer is the read-through path used by request handlers: look up, check
// freshness, load on miss and hand the result to the deferred writer.
//
// Concurrent misses for the same key share one Loader call. The shared call is
// detached from the cancellation of whichever caller started it; each caller
// may still stop waiting when its own context ends.
type Layer struct {
	cache  Cache
	writer *Writer
	group  singleflight.Group
	now    func() time.Time

	hits      atomic.Int64
	misses    atomic.Int64
	coalesced atomic.Int64
}

// NewLayer creates a layer reading from c and writing through w.
func NewLayer(c Cache, w *Writer, opts ...LayerOption) (*Layer, error) {
	if c == nil || w == nil {
		return nil, ErrNilCache
	}
	l := &Layer{cache: c, writer: w, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Fetch returns the cached value for key when it is fresh under policy.
// Otherwise it runs load, returns its value and schedules the write. Loader
// errors are returned as-is and nothing is cached.
func (l *Layer) Fetch(ctx context.Context, key string, policy Policy, load Loader) (Result, error) {
	if err := ValidateKey(key); err != nil {
		return Result{}, err
	}

	if entry, ok := l.cache.Get(ctx, key); ok && policy.Fresh(entry.StoredAt, l.now()) {
		l.hits.Add(1)
		return Result{Value: entry.Value, Hit: true, StoredAt: entry.StoredAt}, nil
	}
	l.misses.Add(1)

	led := false
	detached := context.WithoutCancel(ctx)
	ch := l.group.DoChan(key, func() (any, error) {
		led = true
		epoch := l.writer.Epoch()
		value, err := safeLoad(detached, load)
		if err != nil {
			return nil, err
		}
		storedAt := l.now()
		// Queue errors are counted and reported by the writer.
		_ = l.writer.EnqueueAt(epoch, key, value, storedAt)
		return Entry{Value: value, StoredAt: storedAt}, nil
	})

	select {
	case res := <-ch:
		shared := res.Shared && !led
		if shared {
			l.coalesced.Add(1)
		}
		if res.Err != nil {
			return Result{Shared: shared}, res.Err
		}
		entry := res.Val.(Entry)
		return Result{Value: entry.Value, Shared: shared, StoredAt: entry.StoredAt}, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Clear empties the cache and discards pending writes.
func (l *Layer) Clear(ctx context.Context) error {
	return l.writer.Clear(ctx)
}

// Flush waits for pending writes to be applied.
func (l *Layer) Flush(ctx context.Context) error {
	return l.writer.Flush(ctx)
}

// Len returns the number of cached entries.
func (l *Layer) Len() int {
	return l.cache.Len()
}

// Stats returns a snapshot of the layer's counters.
func (l *Layer) Stats() Stats {
	s := Stats{
		Hits:      l.hits.Load(),
		Misses:    l.misses.Load(),
		Coalesced: l.coalesced.Load(),
		Writes:    l.writer.Writes(),
		Dropped:   l.writer.Dropped(),
		Failures:  l.writer.Failures(),
		Discarded: l.writer.Discarded(),
		Entries:   l.cache.Len(),
	}
	if ev, ok := l.cache.(interface{ Evictions() int64 }); ok {
		s.Evictions = ev.Evictions()
	}
	return s
}

func safeLoad(ctx context.Context, load Loader) (value []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cache: loader panicked: %v", r)
		}
	}()
	return load(ctx)
}
