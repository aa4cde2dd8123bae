package observe

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log file defaults.
const (
	DefaultLogFile       = "api.log"
	DefaultLogMaxSizeMB  = 10
	DefaultLogMaxBackups = 5
)

// Logger is a minimal structured logging interface.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: logging must be best-effort and must not panic.
type Logger interface {
	Info(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, fields ...Field)
	Debug(ctx context.Context, msg string, fields ...Field)

	// With returns a logger that adds fields to every line.
	With(fields ...Field) Logger

	// WithOp returns a logger tagged with upstream operation metadata.
	WithOp(meta OpMeta) Logger
}

// Field represents a structured log field.
type Field struct {
	Key   string
	Value any
}

// F builds a Field.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// ZapLogger is the Logger used by the service. It writes JSON lines through
// zap and can change level at runtime.
type ZapLogger struct {
	z       *zap.Logger
	level   zap.AtomicLevel
	rotator *lumberjack.Logger
}

// NewLogger builds a logger from cfg. Lines go to stderr and, when cfg.Dir is
// set, to a size-rotated file in that directory.
func NewLogger(cfg LoggingConfig) (*ZapLogger, error) {
	lvl, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	level := zap.NewAtomicLevelAt(lvl)
	enc := zapcore.NewJSONEncoder(encoderConfig())

	cores := []zapcore.Core{
		zapcore.NewCore(enc, zapcore.Lock(os.Stderr), level),
	}

	var rotator *lumberjack.Logger
	if cfg.Dir != "" {
		name := cfg.File
		if name == "" {
			name = DefaultLogFile
		}
		size := cfg.MaxSizeMB
		if size <= 0 {
			size = DefaultLogMaxSizeMB
		}
		backups := cfg.MaxBackups
		if backups <= 0 {
			backups = DefaultLogMaxBackups
		}
		rotator = &lumberjack.Logger{
			Filename:   filepath.Join(cfg.Dir, name),
			MaxSize:    size,
			MaxBackups: backups,
		}
		cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(rotator), level))
	}

	return &ZapLogger{
		z:       zap.New(zapcore.NewTee(cores...)),
		level:   level,
		rotator: rotator,
	}, nil
}

// NewLoggerWithWriter builds a logger writing only to w. An unknown level
// falls back to info.
func NewLoggerWithWriter(level string, w io.Writer) *ZapLogger {
	lvl, err := parseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	atomic := zap.NewAtomicLevelAt(lvl)
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), zapcore.AddSync(w), atomic)
	return &ZapLogger{z: zap.New(core), level: atomic}
}

// SetLevel changes the minimum level of this logger and every logger derived
// from it.
func (l *ZapLogger) SetLevel(level string) error {
	lvl, err := parseLevel(level)
	if err != nil {
		return err
	}
	l.level.SetLevel(lvl)
	return nil
}

// Level returns the current minimum level.
func (l *ZapLogger) Level() string {
	return l.level.Level().String()
}

// Zap exposes the underlying zap logger.
func (l *ZapLogger) Zap() *zap.Logger {
	return l.z
}

// Close flushes buffered lines and closes the rotated file.
func (l *ZapLogger) Close() error {
	// Sync on stderr fails with EINVAL on some platforms.
	_ = l.z.Sync()
	if l.rotator != nil {
		return l.rotator.Close()
	}
	return nil
}

func (l *ZapLogger) Info(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, zapcore.InfoLevel, msg, fields)
}

func (l *ZapLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, zapcore.WarnLevel, msg, fields)
}

func (l *ZapLogger) Error(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, zapcore.ErrorLevel, msg, fields)
}

func (l *ZapLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, zapcore.DebugLevel, msg, fields)
}

func (l *ZapLogger) With(fields ...Field) Logger {
	return &ZapLogger{
		z:       l.z.With(toZap(fields)...),
		level:   l.level,
		rotator: l.rotator,
	}
}

func (l *ZapLogger) WithOp(meta OpMeta) Logger {
	return l.With(meta.fields()...)
}

func (l *ZapLogger) log(ctx context.Context, lvl zapcore.Level, msg string, fields []Field) {
	ce := l.z.Check(lvl, msg)
	if ce == nil {
		return
	}
	zf := toZap(fields)
	if id := RequestIDFromContext(ctx); id != "" {
		zf = append(zf, zap.String("request_id", id))
	}
	if ctx != nil {
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			zf = append(zf, zap.String("trace_id", sc.TraceID().String()))
		}
	}
	ce.Write(zf...)
}

func toZap(fields []Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields)+2)
	for _, f := range fields {
		if slices.Contains(RedactedFields, f.Key) {
			out = append(out, zap.String(f.Key, RedactedValue))
			continue
		}
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "timestamp"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg
}

func parseLevel(level string) (zapcore.Level, error) {
	if level == "" {
		return zapcore.InfoLevel, nil
	}
	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil || !slices.Contains(ValidLogLevels, lvl.String()) {
		return zapcore.InfoLevel, errors.Join(ErrInvalidLogLevel, err)
	}
	return lvl, nil
}

// nopLogger discards everything.
type nopLogger struct{}

// NewNopLogger returns a Logger that discards all lines.
func NewNopLogger() Logger { return nopLogger{} }

func (nopLogger) Info(context.Context, string, ...Field)  {}
func (nopLogger) Warn(context.Context, string, ...Field)  {}
func (nopLogger) Error(context.Context, string, ...Field) {}
func (nopLogger) Debug(context.Context, string, ...Field) {}
func (l nopLogger) With(...Field) Logger                  { return l }
func (l nopLogger) WithOp(OpMeta) Logger                  { return l }
