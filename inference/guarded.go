package inference

import (
	"context"
	"net/http"
	"time"

	"github.com/jonwraymond/agriops/config"
	"github.com/jonwraymond/agriops/observe"
	"github.com/jonwraymond/agriops/resilience"
)

// GuardedImage runs classifications through a resilience guard.
type GuardedImage struct {
	next  ImageClassifier
	guard *resilience.Guard
	mw    *observe.Middleware
	meta  observe.OpMeta
}

// NewGuardedImage wraps next. A nil mw records nothing.
func NewGuardedImage(next ImageClassifier, guard *resilience.Guard, mw *observe.Middleware) *GuardedImage {
	return &GuardedImage{
		next:  next,
		guard: guard,
		mw:    mw,
		meta:  observe.OpMeta{Component: "inference", Operation: "disease", Provider: "model-server"},
	}
}

func (g *GuardedImage) Configured() bool { return g.next.Configured() }

// Breaker exposes the circuit breaker for health reporting.
func (g *GuardedImage) Breaker() *resilience.CircuitBreaker { return breaker(g.guard) }

func (g *GuardedImage) Classify(ctx context.Context, image []byte) ([]Prediction, error) {
	if !g.next.Configured() {
		return g.next.Classify(ctx, image)
	}
	return observe.Observe(ctx, g.mw, g.meta, func(ctx context.Context) ([]Prediction, error) {
		return call(ctx, g.guard, func(ctx context.Context) ([]Prediction, error) {
			return g.next.Classify(ctx, image)
		})
	})
}

// GuardedSoil runs soil assessments through a resilience guard.
type GuardedSoil struct {
	next  SoilClassifier
	guard *resilience.Guard
	mw    *observe.Middleware
	meta  observe.OpMeta
}

// NewGuardedSoil wraps next. A nil mw records nothing.
func NewGuardedSoil(next SoilClassifier, guard *resilience.Guard, mw *observe.Middleware) *GuardedSoil {
	return &GuardedSoil{
		next:  next,
		guard: guard,
		mw:    mw,
		meta:  observe.OpMeta{Component: "inference", Operation: "soil", Provider: "model-server"},
	}
}

func (g *GuardedSoil) Configured() bool { return g.next.Configured() }

// Breaker exposes the circuit breaker for health reporting.
func (g *GuardedSoil) Breaker() *resilience.CircuitBreaker { return breaker(g.guard) }

func (g *GuardedSoil) Assess(ctx context.Context, features SoilFeatures) (string, error) {
	if !g.next.Configured() {
		return g.next.Assess(ctx, features)
	}
	return observe.Observe(ctx, g.mw, g.meta, func(ctx context.Context) (string, error) {
		return call(ctx, g.guard, func(ctx context.Context) (string, error) {
			return g.next.Assess(ctx, features)
		})
	})
}

func call[T any](ctx context.Context, guard *resilience.Guard, op func(context.Context) (T, error)) (T, error) {
	if guard == nil {
		return op(ctx)
	}
	return resilience.Call(ctx, guard, op)
}

func breaker(guard *resilience.Guard) *resilience.CircuitBreaker {
	if guard == nil {
		return nil
	}
	return guard.Breaker()
}

// GuardConfig returns the guard settings used for model server calls.
func GuardConfig(cfg config.InferenceConfig) resilience.GuardConfig {
	return resilience.GuardConfig{
		Timeout: cfg.Timeout,
		Retry: &resilience.RetryConfig{
			MaxAttempts:  cfg.MaxAttempts,
			InitialDelay: 250 * time.Millisecond,
			MaxDelay:     2 * time.Second,
			Jitter:       true,
		},
		Circuit: &resilience.CircuitBreakerConfig{
			MaxFailures:  5,
			ResetTimeout: 30 * time.Second,
		},
	}
}

// Classifiers groups the two classifiers built at startup.
type Classifiers struct {
	Image ImageClassifier
	Soil  SoilClassifier
}

// New builds both classifiers. An empty endpoint yields the unconfigured
// classifier for that model.
func New(cfg config.InferenceConfig, mw *observe.Middleware, hc *http.Client) Classifiers {
	var out Classifiers

	if cfg.DiseaseModelURL == "" {
		out.Image = UnconfiguredImage{}
	} else {
		pre := NewPreprocessor(PreprocessConfig{
			MaxPixels: cfg.MaxImagePixels,
			Bulkhead: resilience.NewBulkhead(resilience.BulkheadConfig{
				MaxConcurrent: cfg.Concurrency,
				MaxWait:       cfg.QueueWait,
			}),
		})
		server := NewModelServer(cfg.DiseaseModelURL, "inference.disease", hc)
		out.Image = NewGuardedImage(
			NewRemoteImageClassifier(server, pre, cfg.DiseaseLabels),
			resilience.NewGuard("inference.disease", GuardConfig(cfg)),
			mw,
		)
	}

	if cfg.SoilModelURL == "" {
		out.Soil = UnconfiguredSoil{}
	} else {
		server := NewModelServer(cfg.SoilModelURL, "inference.soil", hc)
		out.Soil = NewGuardedSoil(
			NewRemoteSoilClassifier(server, cfg.SoilLabels),
			resilience.NewGuard("inference.soil", GuardConfig(cfg)),
			mw,
		)
	}
	return out
}
