package observe

import (
	"context"
	"time"

	"github.com/jonwraymond/agriops/fault"
)

// CallFunc is an upstream call wrapped by Middleware.
type CallFunc func(ctx context.Context) error

// Middleware wraps upstream calls with tracing, metrics and logging.
//
// Contract:
//   - Concurrency: Wrap returns a function safe for concurrent use.
//   - Context: the span context is propagated to the wrapped call.
//   - Errors: errors from the wrapped call are recorded and returned unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a Middleware. Nil components are replaced by no-ops.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = newNoopTracer()
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if logger == nil {
		logger = NewNopLogger()
	}
	return &Middleware{tracer: tracer, metrics: metrics, logger: logger}
}

// NewNopMiddleware returns a Middleware that records nothing.
func NewNopMiddleware() *Middleware {
	return NewMiddleware(nil, nil, nil)
}

// Wrap wraps fn for the operation described by meta.
func (m *Middleware) Wrap(meta OpMeta, fn CallFunc) CallFunc {
	return func(ctx context.Context) error {
		ctx, span := m.tracer.StartSpan(ctx, meta)
		start := time.Now()

		err := fn(ctx)

		duration := time.Since(start)
		m.tracer.EndSpan(span, err)
		m.metrics.RecordCall(ctx, meta, duration, err)

		opLogger := m.logger.WithOp(meta)
		fields := []Field{
			{Key: "duration_ms", Value: float64(duration) / float64(time.Millisecond)},
		}
		if err != nil {
			fields = append(fields,
				Field{Key: "error", Value: err.Error()},
				Field{Key: "error.kind", Value: fault.KindOf(err).String()},
			)
			opLogger.Warn(ctx, "upstream call failed", fields...)
		} else {
			opLogger.Debug(ctx, "upstream call completed", fields...)
		}
		return err
	}
}

// Observe runs fn under m and returns its value. A nil m runs fn directly.
func Observe[T any](ctx context.Context, m *Middleware, meta OpMeta, fn func(context.Context) (T, error)) (T, error) {
	var out T
	call := func(ctx context.Context) error {
		v, err := fn(ctx)
		out = v
		return err
	}
	if m == nil {
		err := call(ctx)
		return out, err
	}
	err := m.Wrap(meta, call)(ctx)
	return out, err
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}
	metrics, err := newMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}
	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}

type nopMetrics struct{}

func (nopMetrics) RecordCall(context.Context, OpMeta, time.Duration, error) {}
