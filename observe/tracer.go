package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/jonwraymond/agriops/fault"
)

// OpMeta describes one kind of upstream call for telemetry purposes.
type OpMeta struct {
	Component string // generate | inference | weather
	Operation string // required, e.g. "gemini", "classify_image"
	Provider  string // optional vendor name
	Model     string // optional model identifier
}

// SpanName returns the deterministic span name for this operation.
// Format: upstream.<component>.<operation> or upstream.<operation>
func (m OpMeta) SpanName() string {
	return "upstream." + m.ID()
}

// ID returns the qualified operation name.
func (m OpMeta) ID() string {
	if m.Component != "" {
		return m.Component + "." + m.Operation
	}
	return m.Operation
}

// Validate reports ErrMissingOperation when Operation is empty.
func (m OpMeta) Validate() error {
	if m.Operation == "" {
		return ErrMissingOperation
	}
	return nil
}

func (m OpMeta) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("upstream.op", m.ID()),
	}
	if m.Component != "" {
		attrs = append(attrs, attribute.String("upstream.component", m.Component))
	}
	if m.Provider != "" {
		attrs = append(attrs, attribute.String("upstream.provider", m.Provider))
	}
	if m.Model != "" {
		attrs = append(attrs, attribute.String("upstream.model", m.Model))
	}
	return attrs
}

func (m OpMeta) fields() []Field {
	fields := []Field{{Key: "upstream.op", Value: m.ID()}}
	if m.Provider != "" {
		fields = append(fields, Field{Key: "upstream.provider", Value: m.Provider})
	}
	if m.Model != "" {
		fields = append(fields, Field{Key: "upstream.model", Value: m.Model})
	}
	return fields
}

// Tracer wraps OpenTelemetry tracing with upstream-call span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a client span for an upstream call.
	StartSpan(ctx context.Context, meta OpMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error and its fault kind.
	EndSpan(span trace.Span, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer wraps an OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	if t == nil {
		return newNoopTracer()
	}
	return &tracerImpl{tracer: t}
}

func (t *tracerImpl) StartSpan(ctx context.Context, meta OpMeta) (context.Context, trace.Span) {
	attrs := append(meta.attributes(), attribute.Bool("upstream.error", false))
	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(
			attribute.Bool("upstream.error", true),
			attribute.String("error.kind", fault.KindOf(err).String()),
		)
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

type noopTracer struct {
	noop trace.Tracer
}

func newNoopTracer() Tracer {
	return &noopTracer{noop: tracenoop.NewTracerProvider().Tracer("noop")}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta OpMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, _ error) {
	span.End()
}
