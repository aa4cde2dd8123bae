package observe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("log line is not JSON: %v\n%s", err, line)
		}
		out = append(out, m)
	}
	return out
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func TestLogger_LevelsAndMessage(t *testing.T) {
	tests := []struct {
		level string
		log   func(Logger)
		want  string
	}{
		{"debug", func(l Logger) { l.Debug(context.Background(), "m") }, "debug"},
		{"info", func(l Logger) { l.Info(context.Background(), "m") }, "info"},
		{"info", func(l Logger) { l.Warn(context.Background(), "m") }, "warn"},
		{"info", func(l Logger) { l.Error(context.Background(), "m") }, "error"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			var buf bytes.Buffer
			tt.log(NewLoggerWithWriter(tt.level, &buf))
			lines := decodeLines(t, &buf)
			if len(lines) != 1 {
				t.Fatalf("got %d lines, want 1", len(lines))
			}
			if lines[0]["level"] != tt.want || lines[0]["msg"] != "m" {
				t.Errorf("line = %v", lines[0])
			}
			if _, ok := lines[0]["timestamp"]; !ok {
				t.Error("missing timestamp")
			}
		})
	}
}

// TestLogger_LevelFiltering verifies lines below the level are dropped and SetLevel applies to derived loggers.
func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("warn", &buf)
	derived := logger.With(F("component", "cache"))

	derived.Info(context.Background(), "dropped")
	if buf.Len() != 0 {
		t.Fatalf("info written at warn level: %s", buf.String())
	}

	if err := logger.SetLevel("debug"); err != nil {
		t.Fatalf("SetLevel() error = %v", err)
	}
	derived.Debug(context.Background(), "kept")
	lines := decodeLines(t, &buf)
	if len(lines) != 1 || lines[0]["component"] != "cache" {
		t.Fatalf("lines = %v", lines)
	}
	if logger.Level() != "debug" {
		t.Errorf("Level() = %q", logger.Level())
	}
}

func TestLogger_SetLevelRejectsUnknown(t *testing.T) {
	logger := NewLoggerWithWriter("info", &bytes.Buffer{})
	for _, lvl := range []string{"verbose", "fatal"} {
		if err := logger.SetLevel(lvl); !errors.Is(err, ErrInvalidLogLevel) {
			t.Errorf("SetLevel(%q) error = %v, want ErrInvalidLogLevel", lvl, err)
		}
	}
	if logger.Level() != "info" {
		t.Errorf("level changed to %q", logger.Level())
	}
}

// TestLogger_RedactsSensitiveFields verifies keys listed in RedactedFields never reach the output.
func TestLogger_RedactsSensitiveFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	logger.With(F("token", "abc")).Info(context.Background(), "m",
		F("api_key", "s3cr3t"),
		F("appid", "weather-key"),
		F("path", "/weather/"),
	)

	out := buf.String()
	for _, leaked := range []string{"s3cr3t", "weather-key", "abc"} {
		if strings.Contains(out, leaked) {
			t.Errorf("output leaked %q: %s", leaked, out)
		}
	}
	line := decodeLines(t, &buf)[0]
	if line["api_key"] != RedactedValue || line["path"] != "/weather/" {
		t.Errorf("line = %v", line)
	}
}

func TestLogger_RequestIDFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	ctx := WithRequestID(context.Background(), "req-123")
	logger.Info(ctx, "with id")
	logger.Info(context.Background(), "without id")

	lines := decodeLines(t, &buf)
	if lines[0]["request_id"] != "req-123" {
		t.Errorf("request_id = %v", lines[0]["request_id"])
	}
	if _, ok := lines[1]["request_id"]; ok {
		t.Errorf("unexpected request_id: %v", lines[1])
	}
}

func TestLogger_WithOp(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	logger.WithOp(OpMeta{Component: "generate", Operation: "gemini", Model: "gemini-pro"}).
		Info(context.Background(), "m", F("duration_ms", 12.5))

	line := decodeLines(t, &buf)[0]
	if line["upstream.op"] != "generate.gemini" {
		t.Errorf("upstream.op = %v", line["upstream.op"])
	}
	if line["upstream.model"] != "gemini-pro" {
		t.Errorf("upstream.model = %v", line["upstream.model"])
	}
	if line["duration_ms"] != 12.5 {
		t.Errorf("duration_ms = %v", line["duration_ms"])
	}
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	if _, err := NewLogger(LoggingConfig{Level: "loud"}); !errors.Is(err, ErrInvalidLogLevel) {
		t.Fatalf("NewLogger() error = %v", err)
	}
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.With(F("a", 1)).WithOp(OpMeta{Operation: "x"}).Error(context.Background(), "ignored")
}
