package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonwraymond/agriops/fault"
)

func TestGuard_NoPatterns(t *testing.T) {
	g := NewGuard("plain", GuardConfig{})
	got, err := Call(context.Background(), g, func(context.Context) (string, error) {
		return "ok", nil
	})
	if err != nil || got != "ok" {
		t.Errorf("Call() = (%q, %v), want (ok, nil)", got, err)
	}
	if g.Breaker() != nil {
		t.Error("Breaker() should be nil when not configured")
	}
}

func TestGuard_RetriesThenSucceeds(t *testing.T) {
	g := NewGuard("gen", GuardConfig{
		Retry:   &RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond},
		Circuit: &CircuitBreakerConfig{MaxFailures: 2},
	})

	var calls atomic.Int32
	got, err := Call(context.Background(), g, func(context.Context) (string, error) {
		if calls.Add(1) < 3 {
			return "", errFlaky
		}
		return "advice", nil
	})
	if err != nil || got != "advice" {
		t.Fatalf("Call() = (%q, %v), want (advice, nil)", got, err)
	}
	// Retries inside one logical call count once against the breaker.
	if g.Breaker().State() != StateClosed {
		t.Errorf("breaker state = %v, want closed", g.Breaker().State())
	}
}

func TestGuard_TimeoutBecomesTimeoutFault(t *testing.T) {
	g := NewGuard("weather.current", GuardConfig{
		Timeout: 10 * time.Millisecond,
		Retry:   &RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond},
	})

	var calls atomic.Int32
	err := g.Do(context.Background(), func(ctx context.Context) error {
		calls.Add(1)
		<-ctx.Done()
		return fault.Upstream("weather.current", "request failed", ctx.Err())
	})

	if fault.KindOf(err) != fault.KindTimeout {
		t.Errorf("KindOf(err) = %v, want timeout (err = %v)", fault.KindOf(err), err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1 (timeouts are not retried)", calls.Load())
	}
	var fe *fault.Error
	if !errors.As(err, &fe) || fe.Op != "weather.current" {
		t.Errorf("fault op = %v, want weather.current", fe)
	}
}

func TestGuard_OpenCircuitIsUpstreamFault(t *testing.T) {
	g := NewGuard("classify", GuardConfig{Circuit: &CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour}})
	ctx := context.Background()

	_ = g.Do(ctx, fail(errFlaky))

	called := false
	err := g.Do(ctx, func(context.Context) error { called = true; return nil })
	if called {
		t.Error("operation should not run while the circuit is open")
	}
	if !errors.Is(err, ErrCircuitOpen) || fault.KindOf(err) != fault.KindUpstream {
		t.Errorf("Do() error = %v, want upstream fault wrapping ErrCircuitOpen", err)
	}
}

func TestGuard_RateLimit(t *testing.T) {
	g := NewGuard("gen", GuardConfig{RateLimit: &RateLimiterConfig{Rate: 0.001, Burst: 1}})
	ctx := context.Background()

	if err := g.Do(ctx, succeed); err != nil {
		t.Fatalf("first Do() error = %v", err)
	}
	err := g.Do(ctx, succeed)
	if !errors.Is(err, ErrRateLimitExceeded) || fault.KindOf(err) != fault.KindUpstream {
		t.Errorf("Do() error = %v, want upstream fault wrapping ErrRateLimitExceeded", err)
	}
}

func TestGuard_ConfigurationPassesThrough(t *testing.T) {
	g := NewGuard("gen", GuardConfig{Retry: &RetryConfig{MaxAttempts: 3}})
	cfgErr := fault.Configuration("gen", "GEMINI_API_KEY is not configured")

	var calls atomic.Int32
	err := g.Do(context.Background(), func(context.Context) error {
		calls.Add(1)
		return cfgErr
	})
	if err != cfgErr || calls.Load() != 1 {
		t.Errorf("Do() = (%v, calls=%d), want (%v, 1)", err, calls.Load(), cfgErr)
	}
}
