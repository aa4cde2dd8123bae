// Package observe provides the logging, tracing and metrics primitives used by
// the gateway.
//
// The Logger is a zap JSON logger that tees to stderr and a size-rotated file.
// The Observer owns the OpenTelemetry tracer and meter providers and, when the
// prometheus exporter is selected, the registry behind the /metrics handler.
//
// Upstream calls (generation, inference, weather) are wrapped with Middleware,
// which opens a span, records call counters and latency, and logs the outcome.
// HTTPMetrics records per-route request counts and durations, and
// RegisterCacheMetrics exports cache.Stats as observable instruments.
package observe
