package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/agriops/config"
	"github.com/jonwraymond/agriops/health"
	"github.com/jonwraymond/agriops/observe"
	"github.com/jonwraymond/agriops/resilience"
	"github.com/jonwraymond/agriops/server"
)

func adminStub(t *testing.T, key string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path != "/admin/clear-cache" || r.Header.Get("X-API-Key") != key {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"detail":"Unauthorized"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"success","message":"Cache cleared"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClearCache(t *testing.T) {
	srv := adminStub(t, "k")

	msg, err := clearCache(context.Background(), srv.Client(), srv.URL+"/", "k")
	require.NoError(t, err)
	assert.Equal(t, server.StatusMessage{Status: "success", Message: "Cache cleared"}, msg)

	_, err = clearCache(context.Background(), srv.Client(), srv.URL, "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unauthorized (403)")
}

func TestCacheClearCommand(t *testing.T) {
	srv := adminStub(t, "k")

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"cache", "clear", "--url", srv.URL, "--api-key", "k"})

	require.NoError(t, root.Execute())
	assert.Equal(t, "Cache cleared\n", out.String())
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Equal(t, server.Version, strings.TrimSpace(out.String()))
}

func TestObserverConfig(t *testing.T) {
	cfg := config.Default()
	oc := observerConfig(cfg)

	assert.False(t, oc.Tracing.Enabled)
	assert.True(t, oc.Metrics.Enabled)
	assert.Equal(t, "prometheus", oc.Metrics.Exporter)
	assert.True(t, oc.Logging.Enabled)
	assert.Equal(t, "logs", oc.Logging.Dir)
	require.NoError(t, oc.Validate())
}

func TestBuildCache(t *testing.T) {
	layer, writer, err := buildCache(config.Default().Cache, observe.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = writer.Close(context.Background()) })
	assert.Zero(t, layer.Len())
}

type breakerHolder struct{ cb *resilience.CircuitBreaker }

func (b breakerHolder) Breaker() *resilience.CircuitBreaker { return b.cb }

func TestRegisterBreakers(t *testing.T) {
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{})
	agg := health.NewAggregator(0)
	registerBreakers(agg, map[string]any{
		"weather":   breakerHolder{cb: cb},
		"generator": breakerHolder{},
		"other":     struct{}{},
	})

	assert.Equal(t, []string{"weather_circuit"}, agg.CheckerNames())
	res, err := agg.Check(context.Background(), "weather_circuit")
	require.NoError(t, err)
	assert.Equal(t, health.StatusHealthy, res.Status)
}
