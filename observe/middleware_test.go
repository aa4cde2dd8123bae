package observe

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace"

	"github.com/jonwraymond/agriops/fault"
)

// TestMiddleware_SuccessPath verifies a successful call records a span, a counter and a debug line.
func TestMiddleware_SuccessPath(t *testing.T) {
	tracer, recorder := newRecordingTracer()
	reader, mp := newManualMeter()
	metrics, _ := newMetrics(mp.Meter("test"))
	var buf bytes.Buffer
	mw := NewMiddleware(tracer, metrics, NewLoggerWithWriter("debug", &buf))

	meta := OpMeta{Component: "weather", Operation: "current"}
	got, err := Observe(context.Background(), mw, meta, func(context.Context) (string, error) {
		return "clear sky", nil
	})
	if err != nil || got != "clear sky" {
		t.Fatalf("Observe() = %q, %v", got, err)
	}

	if spans := recorder.Ended(); len(spans) != 1 || spans[0].Name() != "upstream.weather.current" {
		t.Fatalf("spans = %v", spans)
	}
	if n := sumValue(t, collect(t, reader), "upstream.calls.total"); n != 1 {
		t.Errorf("upstream.calls.total = %d", n)
	}
	if !strings.Contains(buf.String(), "upstream call completed") {
		t.Errorf("log = %s", buf.String())
	}
}

// TestMiddleware_ErrorPath verifies errors are returned unchanged and logged with their kind.
func TestMiddleware_ErrorPath(t *testing.T) {
	tracer, recorder := newRecordingTracer()
	var buf bytes.Buffer
	mw := NewMiddleware(tracer, nil, NewLoggerWithWriter("info", &buf))

	want := fault.Upstream("generate.gemini", "generation failed", errors.New("500"))
	err := mw.Wrap(OpMeta{Component: "generate", Operation: "gemini"}, func(context.Context) error {
		return want
	})(context.Background())

	if err != want {
		t.Fatalf("error = %v, want the original error", err)
	}
	if len(recorder.Ended()) != 1 {
		t.Fatal("span not ended")
	}
	lines := decodeLines(t, &buf)
	if len(lines) != 1 || lines[0]["error.kind"] != "upstream" || lines[0]["level"] != "warn" {
		t.Errorf("lines = %v", lines)
	}
}

// TestMiddleware_PropagatesContext verifies the wrapped call sees the span and the caller's values.
func TestMiddleware_PropagatesContext(t *testing.T) {
	tracer, _ := newRecordingTracer()
	mw := NewMiddleware(tracer, nil, nil)

	ctx := WithRequestID(context.Background(), "req-1")
	_, err := Observe(ctx, mw, OpMeta{Operation: "op"}, func(ctx context.Context) (int, error) {
		if RequestIDFromContext(ctx) != "req-1" {
			t.Error("request id lost")
		}
		if !trace.SpanFromContext(ctx).SpanContext().IsValid() {
			t.Error("span not in context")
		}
		return 0, nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestObserve_NilMiddleware(t *testing.T) {
	got, err := Observe(context.Background(), nil, OpMeta{Operation: "op"}, func(context.Context) (int, error) {
		return 7, nil
	})
	if err != nil || got != 7 {
		t.Fatalf("Observe() = %d, %v", got, err)
	}
}

func TestMiddlewareFromObserver(t *testing.T) {
	if _, err := MiddlewareFromObserver(nil); !errors.Is(err, ErrNilObserver) {
		t.Fatalf("error = %v", err)
	}
	obs, err := NewObserver(context.Background(), Config{ServiceName: "s"})
	if err != nil {
		t.Fatal(err)
	}
	mw, err := MiddlewareFromObserver(obs)
	if err != nil || mw == nil {
		t.Fatalf("MiddlewareFromObserver() = %v, %v", mw, err)
	}
}
