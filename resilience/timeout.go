package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultTimeout bounds an attempt when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// Timeout bounds each call with a deadline. The operation must honor its
// context; Timeout does not abandon an operation that ignores it.
type Timeout struct {
	timeout time.Duration
}

// NewTimeout creates a timeout wrapper. A non-positive d selects
// DefaultTimeout.
func NewTimeout(d time.Duration) *Timeout {
	if d <= 0 {
		d = DefaultTimeout
	}
	return &Timeout{timeout: d}
}

// Execute runs op under the deadline. If the deadline, and not the caller's
// own context, ended the call, the result wraps ErrTimeout.
func (t *Timeout) Execute(ctx context.Context, op func(context.Context) error) error {
	attemptCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	err := op(attemptCtx)
	if err == nil {
		return nil
	}
	if ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s: %w", ErrTimeout, t.timeout, err)
	}
	return err
}

// Duration returns the configured timeout.
func (t *Timeout) Duration() time.Duration {
	return t.timeout
}
