package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jonwraymond/agriops/config"
	"github.com/jonwraymond/agriops/fault"
	"github.com/jonwraymond/agriops/observe"
	"github.com/jonwraymond/agriops/resilience"
)

// DefaultBaseURL is the OpenWeatherMap current weather endpoint.
const DefaultBaseURL = "https://api.openweathermap.org/data/2.5/weather"

// Conditions is the current weather at a coordinate pair. Latitude and
// Longitude echo the request.
type Conditions struct {
	Description string   `json:"description"`
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
	WindSpeed   *float64 `json:"wind_speed"`
	Latitude    float64  `json:"latitude"`
	Longitude   float64  `json:"longitude"`
}

// Provider returns current conditions.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Errors: a slow provider yields a timeout fault, any other failure an
//     upstream fault.
type Provider interface {
	Current(ctx context.Context, lat, lon float64) (Conditions, error)

	// Configured reports whether an API key is available.
	Configured() bool
}

// ErrBadResponse is returned when the provider answers with an unexpected
// body.
var ErrBadResponse = errors.New("weather: unexpected response")

// ClientConfig configures Client.
type ClientConfig struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// Client calls the OpenWeatherMap API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Client. An empty key is a configuration fault.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errUnconfigured
	}
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fault.Wrap(fault.KindConfiguration, "weather", "Weather endpoint is invalid", err)
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{apiKey: cfg.APIKey, baseURL: base, httpClient: hc}, nil
}

func (c *Client) Configured() bool { return true }

type owmResponse struct {
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Main *struct {
		Temp     *float64 `json:"temp"`
		Humidity *float64 `json:"humidity"`
	} `json:"main"`
	Wind *struct {
		Speed *float64 `json:"speed"`
	} `json:"wind"`
}

// Current fetches metric conditions for the unrounded coordinates.
func (c *Client) Current(ctx context.Context, lat, lon float64) (Conditions, error) {
	const op = "weather.current"

	u, _ := url.Parse(c.baseURL)
	q := u.Query()
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("appid", c.apiKey)
	q.Set("units", "metric")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Conditions{}, fault.Internal(op, c.scrub(err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return Conditions{}, fault.Timeout(op, "Weather API request timed out", c.scrub(err))
		}
		if errors.Is(err, context.Canceled) {
			return Conditions{}, err
		}
		return Conditions{}, fault.Upstream(op, "Weather data fetch failed", c.scrub(err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		cause := fmt.Errorf("status %d", resp.StatusCode)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return Conditions{}, fault.Upstream(op, "Weather data fetch failed", cause)
		}
		return Conditions{}, fault.Upstream(op, "Weather data fetch failed", resilience.Permanent(cause))
	}

	var body owmResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Conditions{}, fault.Timeout(op, "Weather API request timed out", err)
		}
		return Conditions{}, fault.Upstream(op, "Weather data fetch failed",
			resilience.Permanent(fmt.Errorf("%w: %w", ErrBadResponse, err)))
	}
	if len(body.Weather) == 0 || body.Main == nil || body.Main.Temp == nil {
		return Conditions{}, fault.Upstream(op, "Weather data fetch failed", resilience.Permanent(ErrBadResponse))
	}

	out := Conditions{
		Description: body.Weather[0].Description,
		Temperature: body.Main.Temp,
		Humidity:    body.Main.Humidity,
		Latitude:    lat,
		Longitude:   lon,
	}
	if body.Wind != nil {
		out.WindSpeed = body.Wind.Speed
	}
	return out, nil
}

// scrub replaces the API key in err's text.
func (c *Client) scrub(err error) error {
	msg := err.Error()
	if !strings.Contains(msg, c.apiKey) {
		return err
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return fmt.Errorf("%s %s: %w", ue.Op, redactURL(ue.URL), ue.Err)
	}
	return errors.New(strings.ReplaceAll(msg, c.apiKey, observe.RedactedValue))
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<url>"
	}
	q := u.Query()
	if q.Has("appid") {
		q.Set("appid", observe.RedactedValue)
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

var errUnconfigured = fault.Configuration("weather", "Weather API key not configured")

// Unconfigured is the Provider used when no API key is set. It fails before
// any network I/O.
type Unconfigured struct{}

func (Unconfigured) Current(context.Context, float64, float64) (Conditions, error) {
	return Conditions{}, errUnconfigured
}

func (Unconfigured) Configured() bool { return false }

// Guarded bounds each call with a timeout, a rate limit and a circuit
// breaker. Failures are not retried.
type Guarded struct {
	next  Provider
	guard *resilience.Guard
	mw    *observe.Middleware
	meta  observe.OpMeta
}

// NewGuarded wraps next. A nil mw records nothing.
func NewGuarded(next Provider, guard *resilience.Guard, mw *observe.Middleware) *Guarded {
	return &Guarded{
		next:  next,
		guard: guard,
		mw:    mw,
		meta:  observe.OpMeta{Component: "weather", Operation: "current", Provider: "openweathermap"},
	}
}

func (g *Guarded) Configured() bool { return g.next.Configured() }

// Breaker exposes the circuit breaker for health reporting.
func (g *Guarded) Breaker() *resilience.CircuitBreaker {
	if g.guard == nil {
		return nil
	}
	return g.guard.Breaker()
}

func (g *Guarded) Current(ctx context.Context, lat, lon float64) (Conditions, error) {
	if !g.next.Configured() {
		return g.next.Current(ctx, lat, lon)
	}
	return observe.Observe(ctx, g.mw, g.meta, func(ctx context.Context) (Conditions, error) {
		if g.guard == nil {
			return g.next.Current(ctx, lat, lon)
		}
		out, err := resilience.Call(ctx, g.guard, func(ctx context.Context) (Conditions, error) {
			return g.next.Current(ctx, lat, lon)
		})
		if err != nil && fault.Is(err, fault.KindTimeout) {
			return out, fault.Timeout("weather.current", "Weather API request timed out", err)
		}
		return out, err
	})
}

// GuardConfig returns the guard settings used for weather calls. A zero
// RateLimit leaves calls unlimited.
func GuardConfig(cfg config.WeatherConfig) resilience.GuardConfig {
	gc := resilience.GuardConfig{
		Timeout: cfg.Timeout,
		Circuit: &resilience.CircuitBreakerConfig{
			MaxFailures:  5,
			ResetTimeout: 30 * time.Second,
		},
	}
	if cfg.RateLimit > 0 {
		gc.RateLimit = &resilience.RateLimiterConfig{
			Rate:    cfg.RateLimit,
			Burst:   cfg.RateBurst,
			MaxWait: time.Second,
		}
	}
	return gc
}

// New builds the configured provider. A missing key yields Unconfigured.
func New(cfg config.WeatherConfig, mw *observe.Middleware, hc *http.Client) (Provider, error) {
	if cfg.APIKey == "" {
		return Unconfigured{}, nil
	}
	c, err := NewClient(ClientConfig{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, HTTPClient: hc})
	if err != nil {
		return nil, err
	}
	return NewGuarded(c, resilience.NewGuard("weather", GuardConfig(cfg)), mw), nil
}
