package health

import (
	"context"
	"errors"
	"testing"

	"github.com/jonwraymond/agriops/cache"
)

type statsFunc func() cache.Stats

func (f statsFunc) Stats() cache.Stats { return f() }

func TestCacheChecker_DegradedOnNewDrops(t *testing.T) {
	stats := cache.Stats{Entries: 3, Hits: 10}
	c := NewCacheChecker(statsFunc(func() cache.Stats { return stats }))
	ctx := context.Background()

	if r := c.Check(ctx); r.Status != StatusHealthy || r.Details["entries"] != 3 {
		t.Errorf("Check() = %+v, want healthy with 3 entries", r)
	}

	stats.Dropped = 2
	if r := c.Check(ctx); r.Status != StatusDegraded {
		t.Errorf("Check() after drops = %v, want degraded", r.Status)
	}

	// No further drops since the last check.
	if r := c.Check(ctx); r.Status != StatusHealthy {
		t.Errorf("Check() without new drops = %v, want healthy", r.Status)
	}
}

func TestConfiguredChecker(t *testing.T) {
	configured := false
	c := NewConfiguredChecker("weather", func() bool { return configured })

	if c.Name() != "weather" {
		t.Errorf("Name() = %q, want weather", c.Name())
	}
	r := c.Check(context.Background())
	if r.Status != StatusDegraded || !errors.Is(r.Error, ErrNotConfigured) {
		t.Errorf("unconfigured Check() = %+v", r)
	}

	configured = true
	if r := c.Check(context.Background()); r.Status != StatusHealthy {
		t.Errorf("configured Check() = %v, want healthy", r.Status)
	}
}
