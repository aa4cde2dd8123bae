package observe

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/jonwraymond/agriops/fault"
)

func newRecordingTracer() (Tracer, *tracetest.SpanRecorder) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	return NewTracer(tp.Tracer("test")), recorder
}

func attrMap(kvs []attribute.KeyValue) map[string]attribute.Value {
	m := make(map[string]attribute.Value, len(kvs))
	for _, kv := range kvs {
		m[string(kv.Key)] = kv.Value
	}
	return m
}

func TestOpMeta_Names(t *testing.T) {
	tests := []struct {
		meta     OpMeta
		wantID   string
		wantSpan string
	}{
		{OpMeta{Component: "weather", Operation: "current"}, "weather.current", "upstream.weather.current"},
		{OpMeta{Operation: "classify_image"}, "classify_image", "upstream.classify_image"},
	}
	for _, tt := range tests {
		if got := tt.meta.ID(); got != tt.wantID {
			t.Errorf("ID() = %q, want %q", got, tt.wantID)
		}
		if got := tt.meta.SpanName(); got != tt.wantSpan {
			t.Errorf("SpanName() = %q, want %q", got, tt.wantSpan)
		}
	}
	if err := (OpMeta{}).Validate(); !errors.Is(err, ErrMissingOperation) {
		t.Errorf("Validate() = %v", err)
	}
}

// TestTracer_SpanAttributes verifies metadata attributes and client span kind.
func TestTracer_SpanAttributes(t *testing.T) {
	tr, recorder := newRecordingTracer()
	meta := OpMeta{Component: "generate", Operation: "openai", Provider: "groq", Model: "mixtral-8x7b-32768"}

	_, span := tr.StartSpan(context.Background(), meta)
	tr.EndSpan(span, nil)

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	s := spans[0]
	if s.Name() != "upstream.generate.openai" {
		t.Errorf("span name = %q", s.Name())
	}
	if s.SpanKind() != trace.SpanKindClient {
		t.Errorf("span kind = %v", s.SpanKind())
	}
	if s.Status().Code != codes.Ok {
		t.Errorf("status = %v", s.Status())
	}

	attrs := attrMap(s.Attributes())
	want := map[string]string{
		"upstream.op":        "generate.openai",
		"upstream.component": "generate",
		"upstream.provider":  "groq",
		"upstream.model":     "mixtral-8x7b-32768",
	}
	for k, v := range want {
		if attrs[k].AsString() != v {
			t.Errorf("%s = %q, want %q", k, attrs[k].AsString(), v)
		}
	}
	if attrs["upstream.error"].AsBool() {
		t.Error("upstream.error = true on success")
	}
}

// TestTracer_ErrorRecording verifies the error status and fault kind attribute.
func TestTracer_ErrorRecording(t *testing.T) {
	tr, recorder := newRecordingTracer()

	_, span := tr.StartSpan(context.Background(), OpMeta{Component: "weather", Operation: "current"})
	tr.EndSpan(span, fault.Timeout("weather.current", "Weather service timeout", context.DeadlineExceeded))

	s := recorder.Ended()[0]
	if s.Status().Code != codes.Error {
		t.Errorf("status = %v", s.Status())
	}
	attrs := attrMap(s.Attributes())
	if !attrs["upstream.error"].AsBool() {
		t.Error("upstream.error = false")
	}
	if attrs["error.kind"].AsString() != "timeout" {
		t.Errorf("error.kind = %q", attrs["error.kind"].AsString())
	}
	if len(s.Events()) == 0 {
		t.Error("expected recorded error event")
	}
}

// TestTracer_ContextPropagation verifies the returned context carries the span.
func TestTracer_ContextPropagation(t *testing.T) {
	tr, _ := newRecordingTracer()

	ctx, span := tr.StartSpan(context.Background(), OpMeta{Operation: "op"})
	defer tr.EndSpan(span, nil)

	if got := trace.SpanFromContext(ctx).SpanContext(); !got.Equal(span.SpanContext()) {
		t.Error("context does not carry the started span")
	}
}

func TestNewTracer_NilIsNoop(t *testing.T) {
	tr := NewTracer(nil)
	_, span := tr.StartSpan(context.Background(), OpMeta{Operation: "op"})
	tr.EndSpan(span, errors.New("boom"))
}
