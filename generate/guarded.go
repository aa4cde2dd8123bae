package generate

import (
	"context"
	"net/http"
	"time"

	"github.com/jonwraymond/agriops/config"
	"github.com/jonwraymond/agriops/observe"
	"github.com/jonwraymond/agriops/resilience"
)

// Guarded runs every call through a resilience guard and records it as an
// upstream operation.
type Guarded struct {
	next  Generator
	guard *resilience.Guard
	mw    *observe.Middleware
	meta  observe.OpMeta
}

// NewGuarded wraps next. A nil mw records nothing.
func NewGuarded(next Generator, guard *resilience.Guard, mw *observe.Middleware, model string) *Guarded {
	return &Guarded{
		next:  next,
		guard: guard,
		mw:    mw,
		meta: observe.OpMeta{
			Component: "generate",
			Operation: next.Provider(),
			Provider:  next.Provider(),
			Model:     model,
		},
	}
}

func (g *Guarded) Provider() string { return g.next.Provider() }

func (g *Guarded) Configured() bool { return g.next.Configured() }

// Breaker exposes the circuit breaker for health reporting.
func (g *Guarded) Breaker() *resilience.CircuitBreaker {
	if g.guard == nil {
		return nil
	}
	return g.guard.Breaker()
}

func (g *Guarded) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	if !g.next.Configured() {
		return g.next.Generate(ctx, prompt, opts)
	}
	return observe.Observe(ctx, g.mw, g.meta, func(ctx context.Context) (string, error) {
		if g.guard == nil {
			return g.next.Generate(ctx, prompt, opts)
		}
		return resilience.Call(ctx, g.guard, func(ctx context.Context) (string, error) {
			return g.next.Generate(ctx, prompt, opts)
		})
	})
}

// GuardConfig returns the guard settings used for generation calls.
func GuardConfig(cfg config.GenerationConfig) resilience.GuardConfig {
	return resilience.GuardConfig{
		Timeout: cfg.Timeout,
		Retry: &resilience.RetryConfig{
			MaxAttempts:  cfg.MaxAttempts,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     4 * time.Second,
			Jitter:       true,
		},
		Circuit: &resilience.CircuitBreakerConfig{
			MaxFailures:  5,
			ResetTimeout: 30 * time.Second,
		},
	}
}

// New builds the configured generator. A missing API key yields an
// Unconfigured generator rather than an error.
func New(ctx context.Context, cfg config.GenerationConfig, mw *observe.Middleware, hc *http.Client) (Generator, error) {
	provider := cfg.ResolvedProvider()

	var (
		next  Generator
		model string
	)
	switch provider {
	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return Unconfigured{Name: provider}, nil
		}
		g, err := NewOpenAI(OpenAIConfig{
			APIKey:     cfg.OpenAIAPIKey,
			BaseURL:    cfg.OpenAIBaseURL,
			Model:      cfg.Model,
			HTTPClient: hc,
		})
		if err != nil {
			return nil, err
		}
		next, model = g, g.Model()
	default:
		if cfg.GeminiAPIKey == "" {
			return Unconfigured{Name: config.ProviderGemini}, nil
		}
		g, err := NewGemini(ctx, GeminiConfig{
			APIKey:     cfg.GeminiAPIKey,
			Model:      cfg.Model,
			HTTPClient: hc,
		})
		if err != nil {
			return nil, err
		}
		next, model = g, g.Model()
	}

	guard := resilience.NewGuard("generate."+provider, GuardConfig(cfg))
	return NewGuarded(next, guard, mw, model), nil
}
