package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/agriops/secret"
)

// Options controls where Load reads from.
type Options struct {
	// File is an optional YAML file. A missing file is an error only when
	// the path was set explicitly.
	File string

	// DotEnv lists .env files loaded into the process environment before
	// overrides are applied. Missing files are skipped. Variables already
	// set in the environment win.
	DotEnv []string

	// Getenv replaces os.Getenv for overrides.
	Getenv func(string) string
}

// Load builds a validated configuration from defaults, opts.File, the .env
// files and the environment.
func Load(opts Options) (Config, error) {
	for _, name := range opts.DotEnv {
		if err := godotenv.Load(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config: load %s: %w", name, err)
		}
	}

	cfg := Default()
	if opts.File != "" {
		if err := cfg.mergeFile(opts.File); err != nil {
			return Config{}, err
		}
	}

	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if err := cfg.applyEnv(getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile parses a YAML file on top of Default without applying environment
// overrides.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	if err := cfg.mergeFile(path); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied path.
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	expanded := secret.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// applyEnv overlays environment variables. Names match the variables the
// service has always read.
func (c *Config) applyEnv(getenv func(string) string) error {
	var errs []error
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := strings.TrimSpace(getenv(k)); v != "" {
				*dst = v
				return
			}
		}
	}
	list := func(dst *[]string, key string) {
		if v := getenv(key); strings.TrimSpace(v) != "" {
			*dst = splitList(v)
		}
	}
	integer := func(dst *int, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	duration := func(dst *time.Duration, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			d, err := parseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str(&c.Environment, "ENVIRONMENT")
	str(&c.Server.Host, "HOST")
	integer(&c.Server.Port, "PORT")
	list(&c.Server.CORSOrigins, "CORS_ORIGINS")
	if v := strings.TrimSpace(getenv("MAX_UPLOAD_BYTES")); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("MAX_UPLOAD_BYTES: %w", err))
		} else {
			c.Server.MaxUploadBytes = n
		}
	}

	integer(&c.Cache.Capacity, "CACHE_CAPACITY")
	integer(&c.Cache.QueueSize, "CACHE_QUEUE_SIZE")

	str(&c.Generation.Provider, "GENERATION_PROVIDER")
	str(&c.Generation.Model, "GENERATION_MODEL")
	str(&c.Generation.GeminiAPIKey, "GEMINI_API_KEY")
	str(&c.Generation.OpenAIAPIKey, "GROQ_API_KEY", "OPENAI_API_KEY")
	str(&c.Generation.OpenAIBaseURL, "OPENAI_BASE_URL")
	duration(&c.Generation.Timeout, "GENERATION_TIMEOUT")

	str(&c.Inference.DiseaseModelURL, "DISEASE_MODEL_URL")
	list(&c.Inference.DiseaseLabels, "DISEASE_MODEL_LABELS")
	str(&c.Inference.SoilModelURL, "SOIL_MODEL_URL")
	duration(&c.Inference.Timeout, "INFERENCE_TIMEOUT")

	str(&c.Weather.APIKey, "OPENWEATHERMAP_API_KEY")
	str(&c.Weather.BaseURL, "WEATHER_BASE_URL")
	duration(&c.Weather.Timeout, "WEATHER_TIMEOUT")
	if v := strings.TrimSpace(getenv("WEATHER_RATE_LIMIT")); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("WEATHER_RATE_LIMIT: %w", err))
		} else {
			c.Weather.RateLimit = r
		}
	}
	integer(&c.Weather.RateBurst, "WEATHER_RATE_BURST")

	str(&c.Admin.APIKey, "ADMIN_API_KEY")

	str(&c.Logging.Level, "LOG_LEVEL")
	str(&c.Logging.Dir, "LOG_DIR")
	c.Logging.Level = strings.ToLower(c.Logging.Level)

	str(&c.Telemetry.TracingExporter, "TRACING_EXPORTER")
	str(&c.Telemetry.MetricsExporter, "METRICS_EXPORTER")
	str(&c.Secrets.FileDir, "SECRETS_DIR")

	return errors.Join(errs...)
}

// ResolveSecrets replaces secretref values in every API key field.
func (c *Config) ResolveSecrets(ctx context.Context) error {
	resolver, err := secret.DefaultRegistry.NewResolverFrom(c.Secrets.Strict,
		[]string{"env", "file"},
		map[string]map[string]any{"file": {"dir": c.Secrets.FileDir}},
	)
	if err != nil {
		return err
	}
	defer func() { _ = resolver.Close() }()

	return resolver.ResolveFields(ctx, map[string]*string{
		"generation.gemini_api_key": &c.Generation.GeminiAPIKey,
		"generation.openai_api_key": &c.Generation.OpenAIAPIKey,
		"weather.api_key":           &c.Weather.APIKey,
		"admin.api_key":             &c.Admin.APIKey,
	})
}

// splitList splits a comma separated value, dropping empty items.
func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// parseDuration accepts Go durations and bare seconds.
func parseDuration(v string) (time.Duration, error) {
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return time.ParseDuration(v)
}
