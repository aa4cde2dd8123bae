package resilience

import (
	"context"
	"math"
	"sync"
	"time"
)

// RateLimiterConfig configures the rate limiter.
type RateLimiterConfig struct {
	// Rate is the number of calls allowed per second.
	// Default: 10
	Rate float64

	// Burst is the bucket size.
	// Default: 5
	Burst int

	// MaxWait is how long a call may wait for a token before it is rejected.
	// Zero rejects immediately.
	MaxWait time.Duration

	// Now replaces time.Now.
	Now func() time.Time
}

// RateLimiter is a token bucket shared by all calls to one upstream.
type RateLimiter struct {
	config RateLimiterConfig

	mu       sync.Mutex
	tokens   float64
	refilled time.Time
}

// NewRateLimiter creates a new rate limiter with a full bucket.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.Rate <= 0 {
		config.Rate = 10
	}
	if config.Burst <= 0 {
		config.Burst = 5
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &RateLimiter{
		config:   config,
		tokens:   float64(config.Burst),
		refilled: config.Now(),
	}
}

// Allow takes a token if one is available.
func (rl *RateLimiter) Allow() bool {
	_, ok := rl.reserve()
	return ok
}

// Wait takes a token, waiting up to MaxWait for one to become available.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	wait, ok := rl.reserve()
	if ok {
		return nil
	}
	if wait > rl.config.MaxWait {
		return ErrRateLimitExceeded
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}
	if !rl.Allow() {
		return ErrRateLimitExceeded
	}
	return nil
}

// Execute runs op once a token is obtained.
func (rl *RateLimiter) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := rl.Wait(ctx); err != nil {
		return err
	}
	return op(ctx)
}

// reserve takes a token, or reports how long until one is available.
func (rl *RateLimiter) reserve() (time.Duration, bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refillLocked()
	if rl.tokens >= 1 {
		rl.tokens--
		return 0, true
	}
	missing := 1 - rl.tokens
	return time.Duration(math.Ceil(missing / rl.config.Rate * float64(time.Second))), false
}

func (rl *RateLimiter) refillLocked() {
	now := rl.config.Now()
	elapsed := now.Sub(rl.refilled)
	if elapsed <= 0 {
		return
	}
	rl.refilled = now
	rl.tokens += elapsed.Seconds() * rl.config.Rate
	if limit := float64(rl.config.Burst); rl.tokens > limit {
		rl.tokens = limit
	}
}

// Tokens returns the current number of available tokens.
func (rl *RateLimiter) Tokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refillLocked()
	return rl.tokens
}
