package generate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/agriops/config"
	"github.com/jonwraymond/agriops/fault"
	"github.com/jonwraymond/agriops/observe"
	"github.com/jonwraymond/agriops/resilience"
)

type mockGenerator struct {
	mock.Mock
	provider   string
	configured bool
}

func (m *mockGenerator) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	args := m.Called(ctx, prompt, opts)
	return args.String(0), args.Error(1)
}

func (m *mockGenerator) Provider() string { return m.provider }

func (m *mockGenerator) Configured() bool { return m.configured }

func fastGuard() *resilience.Guard {
	return resilience.NewGuard("generate.test", resilience.GuardConfig{
		Timeout: time.Second,
		Retry:   &resilience.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond},
		Circuit: &resilience.CircuitBreakerConfig{MaxFailures: 5},
	})
}

func TestGuarded_RetriesTransientFailures(t *testing.T) {
	next := &mockGenerator{provider: "openai", configured: true}
	next.On("Generate", mock.Anything, "p", ChatOptions).
		Return("", fault.Upstream("generate.openai", "unavailable", errors.New("503"))).Once()
	next.On("Generate", mock.Anything, "p", ChatOptions).Return("answer", nil).Once()

	g := NewGuarded(next, fastGuard(), observe.NewNopMiddleware(), "m")
	got, err := g.Generate(context.Background(), "p", ChatOptions)

	require.NoError(t, err)
	assert.Equal(t, "answer", got)
	next.AssertNumberOfCalls(t, "Generate", 2)
}

func TestGuarded_DoesNotRetryPermanentFailures(t *testing.T) {
	next := &mockGenerator{provider: "gemini", configured: true}
	rejected := fault.Upstream("generate.gemini", "rejected", resilience.Permanent(errors.New("400")))
	next.On("Generate", mock.Anything, "p", ChatOptions).Return("", rejected)

	g := NewGuarded(next, fastGuard(), nil, "m")
	_, err := g.Generate(context.Background(), "p", ChatOptions)

	assert.Equal(t, fault.KindUpstream, fault.KindOf(err))
	next.AssertNumberOfCalls(t, "Generate", 1)
}

func TestGuarded_TimeoutIsGatewayTimeout(t *testing.T) {
	next := &mockGenerator{provider: "gemini", configured: true}
	next.On("Generate", mock.Anything, "p", ChatOptions).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return("", fault.Timeout("generate.gemini", "timed out", context.DeadlineExceeded))

	guard := resilience.NewGuard("generate.gemini", resilience.GuardConfig{Timeout: 20 * time.Millisecond})
	_, err := NewGuarded(next, guard, nil, "m").Generate(context.Background(), "p", ChatOptions)

	assert.Equal(t, fault.KindTimeout, fault.KindOf(err))
	next.AssertNumberOfCalls(t, "Generate", 1)
}

func TestGuarded_UnconfiguredSkipsGuard(t *testing.T) {
	g := NewGuarded(Unconfigured{Name: "gemini"}, fastGuard(), nil, "")
	_, err := g.Generate(context.Background(), "p", ChatOptions)

	assert.Equal(t, fault.KindConfiguration, fault.KindOf(err))
	assert.False(t, g.Configured())
	assert.Equal(t, resilience.StateClosed, g.Breaker().State())
}

func TestUnconfigured(t *testing.T) {
	u := Unconfigured{}
	_, err := u.Generate(context.Background(), "p", ChatOptions)
	assert.Equal(t, fault.KindConfiguration, fault.KindOf(err))
	assert.Equal(t, "Generation API key not configured", fault.MessageOf(err, ""))
	assert.Equal(t, "none", u.Provider())
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	g, err := New(ctx, config.GenerationConfig{Provider: config.ProviderAuto}, nil, nil)
	require.NoError(t, err)
	assert.False(t, g.Configured())
	assert.Equal(t, "gemini", g.Provider())

	g, err = New(ctx, config.GenerationConfig{Provider: config.ProviderOpenAI}, nil, nil)
	require.NoError(t, err)
	assert.False(t, g.Configured())
	assert.Equal(t, "openai", g.Provider())

	cfg := config.Default().Generation
	cfg.OpenAIAPIKey = "k"
	g, err = New(ctx, cfg, observe.NewNopMiddleware(), nil)
	require.NoError(t, err)
	assert.True(t, g.Configured())
	assert.Equal(t, "openai", g.Provider())
	_, isGuarded := g.(*Guarded)
	assert.True(t, isGuarded)

	cfg = config.Default().Generation
	cfg.GeminiAPIKey = "g"
	g, err = New(ctx, cfg, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "gemini", g.Provider())
}
