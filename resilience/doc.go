// Package resilience guards calls to upstream collaborators.
//
// Every remote dependency of the service (the generation API, the model
// server, the weather API) is called through a Guard. A Guard composes, from
// the outside in:
//
//   - Rate limiter: a token bucket bounding the call rate to one upstream.
//   - Circuit breaker: stops calling an upstream that keeps failing and probes
//     it again after a cool-down.
//   - Retry: retries transient failures with exponential backoff.
//   - Timeout: bounds each attempt.
//
// Bulkhead is used on its own to bound local CPU-heavy work such as image
// preprocessing.
//
// Errors leaving a Guard are tagged with a fault kind: an attempt timing out is
// fault.KindTimeout, an open circuit or exhausted rate limit is
// fault.KindUpstream. Errors already tagged by the operation pass through
// unchanged.
//
// # Usage
//
//	guard := resilience.NewGuard("generate.gemini", resilience.GuardConfig{
//	    Timeout: 30 * time.Second,
//	    Retry:   &resilience.RetryConfig{MaxAttempts: 2},
//	    Circuit: &resilience.CircuitBreakerConfig{MaxFailures: 5},
//	})
//
//	text, err := resilience.Call(ctx, guard, func(ctx context.Context) (string, error) {
//	    return client.Generate(ctx, prompt)
//	})
package resilience
