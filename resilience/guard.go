package resilience

import (
	"context"
	"time"
)

// GuardConfig selects the patterns a Guard applies. Nil pattern configs leave
// that pattern out.
type GuardConfig struct {
	// Timeout bounds each attempt. Zero disables it.
	Timeout time.Duration

	Retry     *RetryConfig
	Circuit   *CircuitBreakerConfig
	RateLimit *RateLimiterConfig
}

// Guard composes the resilience patterns for one named upstream.
type Guard struct {
	name    string
	limiter *RateLimiter
	breaker *CircuitBreaker
	retry   *Retry
	timeout *Timeout
}

// NewGuard creates a guard. The name is used as the fault operation of the
// errors the guard produces.
func NewGuard(name string, config GuardConfig) *Guard {
	g := &Guard{name: name}
	if config.RateLimit != nil {
		g.limiter = NewRateLimiter(*config.RateLimit)
	}
	if config.Circuit != nil {
		g.breaker = NewCircuitBreaker(*config.Circuit)
	}
	if config.Retry != nil {
		g.retry = NewRetry(*config.Retry)
	}
	if config.Timeout > 0 {
		g.timeout = NewTimeout(config.Timeout)
	}
	return g
}

// Name returns the upstream name.
func (g *Guard) Name() string {
	return g.name
}

// Breaker returns the circuit breaker, or nil.
func (g *Guard) Breaker() *CircuitBreaker {
	return g.breaker
}

// Do runs op through the configured patterns.
//
// The execution order is, outermost first:
// 1. Rate limiter - one token per logical call, not per attempt
// 2. Circuit breaker - one outcome per logical call
// 3. Retry - re-runs transient failures
// 4. Timeout - bounds each attempt
func (g *Guard) Do(ctx context.Context, op func(context.Context) error) error {
	execute := op

	if g.timeout != nil {
		inner := execute
		execute = func(ctx context.Context) error {
			return g.timeout.Execute(ctx, inner)
		}
	}
	if g.retry != nil {
		inner := execute
		execute = func(ctx context.Context) error {
			return g.retry.Execute(ctx, inner)
		}
	}
	if g.breaker != nil {
		inner := execute
		execute = func(ctx context.Context) error {
			return g.breaker.Execute(ctx, inner)
		}
	}
	if g.limiter != nil {
		inner := execute
		execute = func(ctx context.Context) error {
			return g.limiter.Execute(ctx, inner)
		}
	}

	return toFault(g.name, execute(ctx))
}

// Call runs op through g and returns its value.
func Call[T any](ctx context.Context, g *Guard, op func(context.Context) (T, error)) (T, error) {
	var out T
	err := g.Do(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
