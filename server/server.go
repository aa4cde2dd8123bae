package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/jonwraymond/agriops/auth"
	"github.com/jonwraymond/agriops/cache"
	"github.com/jonwraymond/agriops/config"
	"github.com/jonwraymond/agriops/generate"
	"github.com/jonwraymond/agriops/health"
	"github.com/jonwraymond/agriops/inference"
	"github.com/jonwraymond/agriops/observe"
	"github.com/jonwraymond/agriops/weather"
)

// Version is reported by /health.
const Version = "1.0.0"

// ErrMissingDependency is returned by New when a required collaborator is nil.
var ErrMissingDependency = errors.New("server: missing dependency")

// Deps are the collaborators shared by all handlers. They are built once at
// startup.
type Deps struct {
	Cache     *cache.Layer
	Generator generate.Generator
	Images    inference.ImageClassifier
	Soil      inference.SoilClassifier
	Weather   weather.Provider
	Admin     auth.Authenticator

	// Health backs /readyz and /health/details. Nil serves an empty
	// aggregator.
	Health *health.Aggregator

	Logger      observe.Logger
	Tracer      trace.Tracer
	HTTPMetrics *observe.HTTPMetrics

	// Metrics serves /metrics. Nil leaves the route unregistered.
	Metrics http.Handler

	// Now replaces time.Now for execution times.
	Now func() time.Time
}

// Server routes requests to the handlers.
type Server struct {
	cfg           config.ServerConfig
	production    bool
	weatherMaxAge time.Duration

	cache     *cache.Layer
	generator generate.Generator
	images    inference.ImageClassifier
	soil      inference.SoilClassifier
	weather   weather.Provider
	admin     auth.Authenticator
	health    *health.Aggregator
	metrics   http.Handler

	logger      observe.Logger
	tracer      trace.Tracer
	httpMetrics *observe.HTTPMetrics
	validate    *validator.Validate
	now         func() time.Time

	handler http.Handler
}

// New creates a server. Collaborators left nil fall back to their
// unconfigured forms; the cache layer is required.
func New(cfg config.Config, deps Deps) (*Server, error) {
	if deps.Cache == nil {
		return nil, errors.Join(ErrMissingDependency, errors.New("cache layer is nil"))
	}
	s := &Server{
		cfg:           cfg.Server,
		production:    cfg.IsProduction(),
		weatherMaxAge: cfg.Cache.WeatherMaxAge,
		cache:         deps.Cache,
		generator:     deps.Generator,
		images:        deps.Images,
		soil:          deps.Soil,
		weather:       deps.Weather,
		admin:         deps.Admin,
		health:        deps.Health,
		metrics:       deps.Metrics,
		logger:        deps.Logger,
		tracer:        deps.Tracer,
		httpMetrics:   deps.HTTPMetrics,
		validate:      newValidator(),
		now:           deps.Now,
	}
	if s.generator == nil {
		s.generator = generate.Unconfigured{}
	}
	if s.images == nil {
		s.images = inference.UnconfiguredImage{}
	}
	if s.soil == nil {
		s.soil = inference.UnconfiguredSoil{}
	}
	if s.weather == nil {
		s.weather = weather.Unconfigured{}
	}
	if s.admin == nil {
		s.admin = auth.NewAPIKeyAuthenticator(auth.APIKeyConfig{Key: cfg.Admin.APIKey})
	}
	if s.health == nil {
		s.health = health.NewAggregator(0)
	}
	if s.logger == nil {
		s.logger = observe.NewNopLogger()
	}
	if s.tracer == nil {
		s.tracer = noop.NewTracerProvider().Tracer("agriops/server")
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.handler = s.routes()
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves on the configured address until ctx ends, then drains in-flight
// requests for up to ShutdownTimeout.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.cfg.WriteTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "server listening", observe.F("addr", ln.Addr().String()))
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	s.logger.Info(ctx, "server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// elapsed returns seconds since start, never negative.
func (s *Server) elapsed(start time.Time) float64 {
	d := s.now().Sub(start).Seconds()
	if d < 0 {
		return 0
	}
	return d
}
