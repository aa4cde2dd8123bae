package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/agriops/cache"
	"github.com/jonwraymond/agriops/config"
	"github.com/jonwraymond/agriops/generate"
	"github.com/jonwraymond/agriops/inference"
	"github.com/jonwraymond/agriops/observe"
	"github.com/jonwraymond/agriops/weather"
)

const adminKey = "admin-secret"

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Generate(ctx context.Context, prompt string, opts generate.Options) (string, error) {
	args := m.Called(ctx, prompt, opts)
	return args.String(0), args.Error(1)
}

func (m *mockGenerator) Provider() string { return "mock" }

func (m *mockGenerator) Configured() bool { return true }

type mockImages struct {
	mock.Mock
}

func (m *mockImages) Classify(ctx context.Context, image []byte) ([]inference.Prediction, error) {
	args := m.Called(ctx, image)
	preds, _ := args.Get(0).([]inference.Prediction)
	return preds, args.Error(1)
}

func (m *mockImages) Configured() bool { return true }

type mockSoil struct {
	mock.Mock
}

func (m *mockSoil) Assess(ctx context.Context, f inference.SoilFeatures) (string, error) {
	args := m.Called(ctx, f)
	return args.String(0), args.Error(1)
}

func (m *mockSoil) Configured() bool { return true }

type mockWeather struct {
	mock.Mock
}

func (m *mockWeather) Current(ctx context.Context, lat, lon float64) (weather.Conditions, error) {
	args := m.Called(ctx, lat, lon)
	cond, _ := args.Get(0).(weather.Conditions)
	return cond, args.Error(1)
}

func (m *mockWeather) Configured() bool { return true }

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	t       *testing.T
	server  *Server
	layer   *cache.Layer
	clock   *fakeClock
	gen     *mockGenerator
	images  *mockImages
	soil    *mockSoil
	weather *mockWeather
	logs    *lockedWriter
}

type fixtureOption func(*config.Config, *Deps)

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	mc, err := cache.NewMemoryCache(64)
	require.NoError(t, err)
	writer, err := cache.NewWriter(mc, cache.WriterOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = writer.Close(context.Background()) })

	clock := newFakeClock()
	layer, err := cache.NewLayer(mc, writer, cache.WithClock(clock.Now))
	require.NoError(t, err)

	f := &fixture{
		t:       t,
		layer:   layer,
		clock:   clock,
		gen:     &mockGenerator{},
		images:  &mockImages{},
		soil:    &mockSoil{},
		weather: &mockWeather{},
		logs:    &lockedWriter{},
	}

	cfg := config.Default()
	cfg.Admin.APIKey = adminKey
	deps := Deps{
		Cache:     layer,
		Generator: f.gen,
		Images:    f.images,
		Soil:      inference.UnconfiguredSoil{},
		Weather:   f.weather,
		Logger:    observe.NewLoggerWithWriter("debug", f.logs),
		Now:       clock.Now,
	}
	for _, opt := range opts {
		opt(&cfg, &deps)
	}

	f.server, err = New(cfg, deps)
	require.NoError(t, err)
	return f
}

func withSoilModel(f *mockSoil) fixtureOption {
	return func(_ *config.Config, d *Deps) { d.Soil = f }
}

type lockedWriter struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buf.Write(p)
}

func (l *lockedWriter) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buf.String()
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (f *fixture) postJSON(path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return f.do(req)
}

func (f *fixture) get(path string) *httptest.ResponseRecorder {
	return f.do(httptest.NewRequest(http.MethodGet, path, nil))
}

// flush waits for deferred cache writes so the next request can hit.
func (f *fixture) flush() {
	f.t.Helper()
	require.NoError(f.t, f.layer.Flush(context.Background()))
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func detail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[detailBody](t, rec).Detail
}

func uploadRequest(t *testing.T, path, field, contentType string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="leaf.png"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestNew_RequiresCache(t *testing.T) {
	_, err := New(config.Default(), Deps{})
	assert.ErrorIs(t, err, ErrMissingDependency)
}

func TestNew_DefaultsToUnconfiguredCollaborators(t *testing.T) {
	mc, err := cache.NewMemoryCache(4)
	require.NoError(t, err)
	w, err := cache.NewWriter(mc, cache.WriterOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close(context.Background()) })
	layer, err := cache.NewLayer(mc, w)
	require.NoError(t, err)

	s, err := New(config.Default(), Deps{Cache: layer})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/soil-analysis/",
		strings.NewReader(`{"ph":6.8,"nitrogen":240,"phosphorus":45,"potassium":210}`)))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"detail":"Generation API key not configured"}`, rec.Body.String())
}

func TestServe_GracefulShutdown(t *testing.T) {
	f := newFixture(t)
	f.server.cfg.ShutdownTimeout = time.Second

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.server.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}
