package resilience

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonwraymond/agriops/fault"
)

// Sentinel errors for resilience operations.
var (
	// ErrCircuitOpen is returned when the circuit breaker is open.
	ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

	// ErrRateLimitExceeded is returned when the rate limit is exceeded.
	ErrRateLimitExceeded = errors.New("resilience: rate limit exceeded")

	// ErrBulkheadFull is returned when the bulkhead is at capacity.
	ErrBulkheadFull = errors.New("resilience: bulkhead at capacity")

	// ErrTimeout is returned when an operation times out.
	ErrTimeout = errors.New("resilience: operation timed out")

	// ErrPermanent marks an upstream failure that repeating cannot fix, such
	// as a rejected request.
	ErrPermanent = errors.New("resilience: permanent failure")
)

// Permanent marks err so Transient reports false for it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// Transient reports whether err is worth retrying: upstream failures are,
// everything the caller caused or configured is not. Timeouts are not retried
// so a slow upstream surfaces as a gateway timeout instead of a longer wait.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrTimeout) || errors.Is(err, ErrPermanent) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return fault.KindOf(err) == fault.KindUpstream
}

// toFault tags the resilience sentinels with their fault kind. An expired
// attempt is always a timeout; other already tagged errors and plain context
// cancellation are returned unchanged.
func toFault(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTimeout) {
		return fault.Wrap(fault.KindTimeout, op, "upstream request timed out", err)
	}
	var tagged *fault.Error
	if errors.As(err, &tagged) {
		return err
	}

	switch {
	case errors.Is(err, ErrCircuitOpen):
		return fault.Wrap(fault.KindUpstream, op, "upstream temporarily unavailable", err)
	case errors.Is(err, ErrRateLimitExceeded):
		return fault.Wrap(fault.KindUpstream, op, "upstream rate limit exceeded", err)
	case errors.Is(err, ErrBulkheadFull):
		return fault.Wrap(fault.KindInternal, op, "server busy", err)
	}
	return err
}

func isTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || fault.KindOf(err) == fault.KindTimeout
}
