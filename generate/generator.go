package generate

import (
	"context"
	"errors"
	"net/http"

	"github.com/jonwraymond/agriops/fault"
	"github.com/jonwraymond/agriops/resilience"
)

// Options tunes one generation request.
type Options struct {
	Temperature float64
	MaxTokens   int
}

// Request presets.
var (
	SoilOptions           = Options{Temperature: 0.3, MaxTokens: 1024}
	InterpretationOptions = Options{Temperature: 0.3, MaxTokens: 300}
	ChatOptions           = Options{Temperature: 0.3, MaxTokens: 1500}
)

// Generator produces text for a prompt.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Errors: returned errors carry a fault kind.
//   - The returned text has surrounding whitespace trimmed.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts Options) (string, error)

	// Provider names the backing service.
	Provider() string

	// Configured reports whether calls can reach a provider at all.
	Configured() bool
}

// ErrEmptyResponse is returned when the provider answers without text.
var ErrEmptyResponse = errors.New("generate: empty response")

// Unconfigured is the Generator used when no API key is available. It fails
// before any network I/O.
type Unconfigured struct {
	Name string
}

func (u Unconfigured) Generate(context.Context, string, Options) (string, error) {
	return "", fault.Configuration("generate."+u.provider(), "Generation API key not configured")
}

func (u Unconfigured) Provider() string { return u.provider() }

func (Unconfigured) Configured() bool { return false }

func (u Unconfigured) provider() string {
	if u.Name == "" {
		return "none"
	}
	return u.Name
}

// statusError maps an HTTP status returned by a provider. Rate limits and
// server errors are retryable; other rejections are permanent.
func statusError(op string, status int, cause error) error {
	switch {
	case status == http.StatusTooManyRequests || status >= 500:
		return fault.Upstream(op, "Generation service unavailable", cause)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fault.Upstream(op, "Generation service rejected the API key", resilience.Permanent(cause))
	default:
		return fault.Upstream(op, "Generation request rejected", resilience.Permanent(cause))
	}
}

// contextError maps ctx expiry. ok is false when err is not a context error.
func contextError(op string, err error) (error, bool) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fault.Timeout(op, "Generation request timed out", err), true
	case errors.Is(err, context.Canceled):
		return err, true
	}
	return nil, false
}
