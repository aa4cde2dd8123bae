package config

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// Environments.
const (
	Development = "development"
	Production  = "production"
)

// Generation providers.
const (
	ProviderAuto   = "auto"
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid configuration")

// DefaultCORSOrigins is the production allow list.
var DefaultCORSOrigins = []string{
	"http://localhost",
	"http://localhost:8080",
	"http://localhost:3000",
	"http://localhost:5000",
	"http://10.0.2.2",
	"http://10.0.2.2:8001",
	"https://yourfrontendapp.com",
}

// DefaultDiseaseLabels is used when the disease model reports bare class
// indices and no label list is configured.
var DefaultDiseaseLabels = []string{"Healthy", "Bacterial Blight", "Rust", "Leaf Spot"}

// DefaultSoilLabels maps the soil classifier's class index to a quality label.
var DefaultSoilLabels = []string{"Poor", "Good"}

// Config is the complete service configuration.
type Config struct {
	Environment string           `yaml:"environment"`
	Server      ServerConfig     `yaml:"server"`
	Cache       CacheConfig      `yaml:"cache"`
	Generation  GenerationConfig `yaml:"generation"`
	Inference   InferenceConfig  `yaml:"inference"`
	Weather     WeatherConfig    `yaml:"weather"`
	Admin       AdminConfig      `yaml:"admin"`
	Logging     LoggingConfig    `yaml:"logging"`
	Telemetry   TelemetryConfig  `yaml:"telemetry"`
	Secrets     SecretsConfig    `yaml:"secrets"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
	CORSOrigins     []string      `yaml:"cors_origins"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// CacheConfig sizes the response cache.
type CacheConfig struct {
	Capacity      int           `yaml:"capacity"`
	QueueSize     int           `yaml:"queue_size"`
	WeatherMaxAge time.Duration `yaml:"weather_max_age"`
}

// GenerationConfig selects and configures the text generator.
type GenerationConfig struct {
	Provider      string        `yaml:"provider"`
	Model         string        `yaml:"model"`
	GeminiAPIKey  string        `yaml:"gemini_api_key"`
	OpenAIAPIKey  string        `yaml:"openai_api_key"`
	OpenAIBaseURL string        `yaml:"openai_base_url"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxAttempts   int           `yaml:"max_attempts"`
}

// ResolvedProvider returns the provider to build. Auto prefers the
// OpenAI-compatible endpoint when its key is set, then Gemini.
func (g GenerationConfig) ResolvedProvider() string {
	if g.Provider != "" && g.Provider != ProviderAuto {
		return g.Provider
	}
	if g.OpenAIAPIKey != "" {
		return ProviderOpenAI
	}
	return ProviderGemini
}

// InferenceConfig points at the model servers.
type InferenceConfig struct {
	DiseaseModelURL string        `yaml:"disease_model_url"`
	DiseaseLabels   []string      `yaml:"disease_labels"`
	SoilModelURL    string        `yaml:"soil_model_url"`
	SoilLabels      []string      `yaml:"soil_labels"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxAttempts     int           `yaml:"max_attempts"`
	Concurrency     int           `yaml:"concurrency"`
	MaxImagePixels  int64         `yaml:"max_image_pixels"`
	QueueWait       time.Duration `yaml:"queue_wait"`
}

// WeatherConfig configures the weather provider.
type WeatherConfig struct {
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`

	// RateLimit is the sustained calls per second to the provider; zero
	// disables the limiter. RateBurst calls may go out at once.
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
}

// AdminConfig holds the cache administration token.
type AdminConfig struct {
	APIKey string `yaml:"api_key"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Dir        string `yaml:"dir"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// TelemetryConfig configures tracing and metrics exporters.
type TelemetryConfig struct {
	TracingExporter string  `yaml:"tracing_exporter"`
	SamplePct       float64 `yaml:"sample_pct"`
	MetricsExporter string  `yaml:"metrics_exporter"`
}

// SecretsConfig configures secretref providers.
type SecretsConfig struct {
	Strict  bool   `yaml:"strict"`
	FileDir string `yaml:"file_dir"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Environment: Development,
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    90 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxUploadBytes:  10 << 20,
			CORSOrigins:     slices.Clone(DefaultCORSOrigins),
		},
		Cache: CacheConfig{
			Capacity:      1024,
			QueueSize:     256,
			WeatherMaxAge: time.Hour,
		},
		Generation: GenerationConfig{
			Provider:      ProviderAuto,
			OpenAIBaseURL: "https://api.groq.com/openai/v1",
			Timeout:       30 * time.Second,
			MaxAttempts:   2,
		},
		Inference: InferenceConfig{
			DiseaseLabels:  slices.Clone(DefaultDiseaseLabels),
			SoilLabels:     slices.Clone(DefaultSoilLabels),
			Timeout:        20 * time.Second,
			MaxAttempts:    2,
			Concurrency:    4,
			QueueWait:      2 * time.Second,
			MaxImagePixels: 40_000_000,
		},
		Weather: WeatherConfig{
			BaseURL:   "https://api.openweathermap.org/data/2.5/weather",
			Timeout:   5 * time.Second,
			RateLimit: 1,
			RateBurst: 60,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Dir:        "logs",
			MaxSizeMB:  10,
			MaxBackups: 5,
		},
		Telemetry: TelemetryConfig{
			TracingExporter: "none",
			SamplePct:       1.0,
			MetricsExporter: "prometheus",
		},
	}
}

// IsProduction reports whether the production CORS rules apply.
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

// Validate rejects values the service cannot run with. Empty API keys are
// accepted.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Server.Port > 0 && c.Server.Port <= 65535, "server.port %d out of range", c.Server.Port)
	check(c.Server.MaxUploadBytes > 0, "server.max_upload_bytes must be positive")
	check(c.Server.ReadTimeout >= 0 && c.Server.WriteTimeout >= 0, "server timeouts must not be negative")
	check(c.Cache.Capacity > 0, "cache.capacity must be positive, got %d", c.Cache.Capacity)
	check(c.Cache.QueueSize > 0, "cache.queue_size must be positive, got %d", c.Cache.QueueSize)
	check(c.Cache.WeatherMaxAge > 0, "cache.weather_max_age must be positive")
	check(c.Generation.Timeout > 0, "generation.timeout must be positive")
	check(c.Generation.MaxAttempts > 0, "generation.max_attempts must be positive")
	check(slices.Contains([]string{"", ProviderAuto, ProviderGemini, ProviderOpenAI}, c.Generation.Provider),
		"generation.provider %q is not one of auto, gemini, openai", c.Generation.Provider)
	check(c.Inference.Timeout > 0, "inference.timeout must be positive")
	check(c.Inference.MaxAttempts > 0, "inference.max_attempts must be positive")
	check(c.Inference.Concurrency > 0, "inference.concurrency must be positive")
	check(c.Inference.QueueWait >= 0, "inference.queue_wait must not be negative")
	check(c.Weather.Timeout > 0, "weather.timeout must be positive")
	check(c.Weather.BaseURL != "", "weather.base_url is required")
	check(c.Weather.RateLimit >= 0, "weather.rate_limit must not be negative")
	check(c.Weather.RateLimit == 0 || c.Weather.RateBurst > 0, "weather.rate_burst must be positive when rate_limit is set")
	check(c.Inference.MaxImagePixels > 0, "inference.max_image_pixels must be positive")
	check(slices.Contains([]string{"", "debug", "info", "warn", "error"}, c.Logging.Level),
		"logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	check(c.Telemetry.SamplePct >= 0 && c.Telemetry.SamplePct <= 1,
		"telemetry.sample_pct %v out of range", c.Telemetry.SamplePct)

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}
