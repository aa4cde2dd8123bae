package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/agriops/cache"
	"github.com/jonwraymond/agriops/config"
	"github.com/jonwraymond/agriops/generate"
	"github.com/jonwraymond/agriops/health"
	"github.com/jonwraymond/agriops/inference"
	"github.com/jonwraymond/agriops/observe"
	"github.com/jonwraymond/agriops/resilience"
	"github.com/jonwraymond/agriops/server"
	"github.com/jonwraymond/agriops/weather"
)

const serviceName = "agriops"

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			opts := config.Options{File: configPath, DotEnv: []string{".env"}}
			cfg, err := config.Load(opts)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if err := cfg.ResolveSecrets(ctx); err != nil {
				return fmt.Errorf("resolve secrets: %w", err)
			}
			return serve(ctx, cfg, opts)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file, watched for changes")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides PORT)")
	return cmd
}

func serve(ctx context.Context, cfg config.Config, opts config.Options) error {
	obs, err := observe.NewObserver(ctx, observerConfig(cfg))
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		_ = obs.Shutdown(sctx)
	}()
	logger := obs.Logger()

	mw, err := observe.MiddlewareFromObserver(obs)
	if err != nil {
		return fmt.Errorf("init call middleware: %w", err)
	}
	httpMetrics, err := observe.NewHTTPMetrics(obs.Meter())
	if err != nil {
		return fmt.Errorf("init http metrics: %w", err)
	}

	layer, writer, err := buildCache(cfg.Cache, logger)
	if err != nil {
		return err
	}
	defer func() {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		_ = writer.Close(cctx)
	}()
	reg, err := observe.RegisterCacheMetrics(obs.Meter(), layer.Stats)
	if err != nil {
		return fmt.Errorf("init cache metrics: %w", err)
	}
	defer func() { _ = reg.Unregister() }()

	// Per-call deadlines come from each collaborator's guard.
	hc := &http.Client{}
	gen, err := generate.New(ctx, cfg.Generation, mw, hc)
	if err != nil {
		return fmt.Errorf("init generator: %w", err)
	}
	models := inference.New(cfg.Inference, mw, hc)
	wx, err := weather.New(cfg.Weather, mw, hc)
	if err != nil {
		return fmt.Errorf("init weather: %w", err)
	}

	agg := health.NewAggregator(0)
	agg.Register(health.NewCacheChecker(layer))
	agg.Register(health.NewMemoryChecker(health.MemoryCheckerConfig{}))
	agg.Register(health.NewConfiguredChecker("generator", gen.Configured))
	agg.Register(health.NewConfiguredChecker("disease_model", models.Image.Configured))
	agg.Register(health.NewConfiguredChecker("soil_model", models.Soil.Configured))
	agg.Register(health.NewConfiguredChecker("weather", wx.Configured))
	registerBreakers(agg, map[string]any{
		"generator":     gen,
		"disease_model": models.Image,
		"soil_model":    models.Soil,
		"weather":       wx,
	})

	if opts.File != "" {
		w, err := config.NewWatcher(cfg, opts, logger, 0)
		if err != nil {
			logger.Warn(ctx, "config reload disabled", observe.F("error", err.Error()))
		} else {
			defer func() { _ = w.Close() }()
			w.OnChange(func(old, updated config.Config) {
				if old.Logging.Level == updated.Logging.Level {
					return
				}
				if err := obs.SetLogLevel(updated.Logging.Level); err != nil {
					logger.Warn(ctx, "log level not applied", observe.F("error", err.Error()))
					return
				}
				logger.Info(ctx, "log level changed", observe.F("level", updated.Logging.Level))
			})
		}
	}

	deps := server.Deps{
		Cache:       layer,
		Generator:   gen,
		Images:      models.Image,
		Soil:        models.Soil,
		Weather:     wx,
		Health:      agg,
		Logger:      logger,
		Tracer:      obs.Tracer(),
		HTTPMetrics: httpMetrics,
	}
	if cfg.Telemetry.MetricsExporter == "prometheus" {
		deps.Metrics = obs.MetricsHandler()
	}
	srv, err := server.New(cfg, deps)
	if err != nil {
		return err
	}

	logger.Info(ctx, "starting server",
		observe.F("addr", cfg.Server.Addr()),
		observe.F("environment", cfg.Environment),
		observe.F("generator", gen.Provider()),
		observe.F("disease_model", models.Image.Configured()),
		observe.F("soil_model", models.Soil.Configured()),
		observe.F("weather", wx.Configured()),
	)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	logger.Info(ctx, "server stopped")
	return nil
}

func observerConfig(cfg config.Config) observe.Config {
	enabled := func(exporter string) bool { return exporter != "" && exporter != "none" }
	return observe.Config{
		ServiceName: serviceName,
		Version:     server.Version,
		Tracing: observe.TracingConfig{
			Enabled:   enabled(cfg.Telemetry.TracingExporter),
			Exporter:  cfg.Telemetry.TracingExporter,
			SamplePct: cfg.Telemetry.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  enabled(cfg.Telemetry.MetricsExporter),
			Exporter: cfg.Telemetry.MetricsExporter,
		},
		Logging: observe.LoggingConfig{
			Enabled:    true,
			Level:      cfg.Logging.Level,
			Dir:        cfg.Logging.Dir,
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
		},
	}
}

func buildCache(cfg config.CacheConfig, logger observe.Logger) (*cache.Layer, *cache.Writer, error) {
	store, err := cache.NewMemoryCache(cfg.Capacity)
	if err != nil {
		return nil, nil, fmt.Errorf("init cache: %w", err)
	}
	writer, err := cache.NewWriter(store, cache.WriterOptions{
		QueueSize: cfg.QueueSize,
		OnError: func(key string, err error) {
			logger.Warn(context.Background(), "cache write failed",
				observe.F("key", key),
				observe.F("error", err.Error()),
			)
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("init cache writer: %w", err)
	}
	layer, err := cache.NewLayer(store, writer)
	if err != nil {
		_ = writer.Close(context.Background())
		return nil, nil, fmt.Errorf("init cache layer: %w", err)
	}
	return layer, writer, nil
}

type breakered interface {
	Breaker() *resilience.CircuitBreaker
}

// registerBreakers adds a "<name>_circuit" check for every collaborator
// guarded by a circuit breaker. An open circuit is degraded.
func registerBreakers(agg *health.Aggregator, collaborators map[string]any) {
	for name, c := range collaborators {
		b, ok := c.(breakered)
		if !ok || b.Breaker() == nil {
			continue
		}
		agg.Register(breakerChecker(name+"_circuit", b.Breaker()))
	}
}

func breakerChecker(name string, cb *resilience.CircuitBreaker) health.Checker {
	return health.NewCheckerFunc(name, func(context.Context) health.Result {
		state := cb.State()
		if state == resilience.StateOpen {
			return health.Degraded("circuit "+state.String(), resilience.ErrCircuitOpen)
		}
		return health.Healthy("circuit " + state.String())
	})
}
