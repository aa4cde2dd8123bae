package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRateLimiter_Burst(t *testing.T) {
	clock := newClock()
	rl := NewRateLimiter(RateLimiterConfig{Rate: 1, Burst: 3, Now: clock.Now})

	for i := 0; i < 3; i++ {
		if !rl.Allow() {
			t.Fatalf("Allow() #%d = false, want true", i+1)
		}
	}
	if rl.Allow() {
		t.Error("Allow() beyond burst = true, want false")
	}
}

func TestRateLimiter_Refill(t *testing.T) {
	clock := newClock()
	rl := NewRateLimiter(RateLimiterConfig{Rate: 2, Burst: 2, Now: clock.Now})
	rl.Allow()
	rl.Allow()

	clock.Advance(500 * time.Millisecond)
	if !rl.Allow() {
		t.Error("one token should refill after 500ms at 2/s")
	}
	if rl.Allow() {
		t.Error("only one token should have refilled")
	}

	clock.Advance(time.Hour)
	if got := rl.Tokens(); got != 2 {
		t.Errorf("Tokens() = %v, want capped at burst 2", got)
	}
}

func TestRateLimiter_ExecuteRejectsWithoutWait(t *testing.T) {
	clock := newClock()
	rl := NewRateLimiter(RateLimiterConfig{Rate: 1, Burst: 1, Now: clock.Now})
	ctx := context.Background()

	if err := rl.Execute(ctx, succeed); err != nil {
		t.Fatalf("first Execute() error = %v", err)
	}
	called := false
	err := rl.Execute(ctx, func(context.Context) error { called = true; return nil })
	if !errors.Is(err, ErrRateLimitExceeded) || called {
		t.Errorf("Execute() = (%v, called=%v), want ErrRateLimitExceeded without call", err, called)
	}
}

func TestRateLimiter_WaitsForToken(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 100, Burst: 1, MaxWait: time.Second})
	ctx := context.Background()

	_ = rl.Wait(ctx)
	start := time.Now()
	if err := rl.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 5*time.Millisecond {
		t.Errorf("Wait() returned after %v, expected to wait for a refill", elapsed)
	}
}

func TestRateLimiter_WaitHonorsContext(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 0.5, Burst: 1, MaxWait: 5 * time.Second})
	_ = rl.Wait(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := rl.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want context.DeadlineExceeded", err)
	}
}
