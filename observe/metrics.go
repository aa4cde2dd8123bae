package observe

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jonwraymond/agriops/cache"
	"github.com/jonwraymond/agriops/fault"
)

// Metrics records upstream call metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordCall records one upstream call with its duration and outcome.
	RecordCall(ctx context.Context, meta OpMeta, duration time.Duration, err error)
}

type metricsImpl struct {
	totalCount   metric.Int64Counter
	errorCount   metric.Int64Counter
	durationHist metric.Float64Histogram
}

// NewMetrics creates the upstream call instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	return newMetrics(meter)
}

func newMetrics(meter metric.Meter) (*metricsImpl, error) {
	totalCount, err := meter.Int64Counter(
		"upstream.calls.total",
		metric.WithDescription("Total number of upstream calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"upstream.calls.errors",
		metric.WithDescription("Total number of failed upstream calls"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"upstream.call.duration_ms",
		metric.WithDescription("Upstream call duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		totalCount:   totalCount,
		errorCount:   errorCount,
		durationHist: durationHist,
	}, nil
}

func (m *metricsImpl) RecordCall(ctx context.Context, meta OpMeta, duration time.Duration, err error) {
	opt := metric.WithAttributes(meta.attributes()...)

	m.totalCount.Add(ctx, 1, opt)
	if err != nil {
		m.errorCount.Add(ctx, 1, metric.WithAttributes(append(meta.attributes(),
			attribute.String("error.kind", fault.KindOf(err).String()))...))
	}
	m.durationHist.Record(ctx, float64(duration)/float64(time.Millisecond), opt)
}

// HTTPMetrics records inbound request metrics.
type HTTPMetrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
}

// NewHTTPMetrics creates the request instruments on meter.
func NewHTTPMetrics(meter metric.Meter) (*HTTPMetrics, error) {
	requests, err := meter.Int64Counter(
		"http.server.requests",
		metric.WithDescription("Total number of HTTP requests served"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram(
		"http.server.duration_ms",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}
	return &HTTPMetrics{requests: requests, duration: duration}, nil
}

// RecordRequest records one served request. route should be the route
// pattern, not the raw path, to keep cardinality bounded.
func (h *HTTPMetrics) RecordRequest(ctx context.Context, method, route string, status int, duration time.Duration) {
	if h == nil {
		return
	}
	opt := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", route),
		attribute.String("http.status_code", strconv.Itoa(status)),
	)
	h.requests.Add(ctx, 1, opt)
	h.duration.Record(ctx, float64(duration)/float64(time.Millisecond), opt)
}

// CacheStatsFunc returns a snapshot of cache counters.
type CacheStatsFunc func() cache.Stats

// RegisterCacheMetrics exports cache counters as observable instruments read
// from stats at collection time. Unregister the returned registration on
// shutdown.
func RegisterCacheMetrics(meter metric.Meter, stats CacheStatsFunc) (metric.Registration, error) {
	counter := func(name, desc string) (metric.Int64ObservableCounter, error) {
		return meter.Int64ObservableCounter(name, metric.WithDescription(desc))
	}

	hits, err := counter("cache.hits", "Cache lookups answered from the store")
	if err != nil {
		return nil, err
	}
	misses, err := counter("cache.misses", "Cache lookups that ran a loader")
	if err != nil {
		return nil, err
	}
	coalesced, err := counter("cache.coalesced", "Misses that waited on another caller's loader")
	if err != nil {
		return nil, err
	}
	writes, err := counter("cache.writes", "Deferred writes applied")
	if err != nil {
		return nil, err
	}
	dropped, err := counter("cache.writes.dropped", "Deferred writes dropped on a full queue")
	if err != nil {
		return nil, err
	}
	failures, err := counter("cache.writes.failed", "Deferred writes that failed")
	if err != nil {
		return nil, err
	}
	evictions, err := counter("cache.evictions", "Entries evicted by capacity")
	if err != nil {
		return nil, err
	}
	entries, err := meter.Int64ObservableGauge("cache.entries",
		metric.WithDescription("Entries currently stored"))
	if err != nil {
		return nil, err
	}

	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		s := stats()
		o.ObserveInt64(hits, s.Hits)
		o.ObserveInt64(misses, s.Misses)
		o.ObserveInt64(coalesced, s.Coalesced)
		o.ObserveInt64(writes, s.Writes)
		o.ObserveInt64(dropped, s.Dropped)
		o.ObserveInt64(failures, s.Failures)
		o.ObserveInt64(evictions, s.Evictions)
		o.ObserveInt64(entries, int64(s.Entries))
		return nil
	}, hits, misses, coalesced, writes, dropped, failures, evictions, entries)
}
