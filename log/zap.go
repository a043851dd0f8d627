package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"moul.io/zapfilter"
)

// thin wrapper around zap so callers don't import zap/zapcore directly

type (
	Level  = zapcore.Level
	Field  = zap.Field
	Option = zap.Option

	Logger struct {
		l     *zap.Logger
		level Level
	}
)

const (
	DebugLevel = zapcore.DebugLevel
	InfoLevel  = zapcore.InfoLevel
	WarnLevel  = zapcore.WarnLevel
	ErrorLevel = zapcore.ErrorLevel
	FatalLevel = zapcore.FatalLevel
)

var (
	Skip       = zap.Skip
	Binary     = zap.Binary
	Bool       = zap.Bool
	Duration   = zap.Duration
	Float64    = zap.Float64
	Float32    = zap.Float32
	Int        = zap.Int
	Int64      = zap.Int64
	Int32      = zap.Int32
	Uint       = zap.Uint
	Uint32     = zap.Uint32
	Uint64     = zap.Uint64
	String     = zap.String
	Stringer   = zap.Stringer
	Time       = zap.Time
	Any        = zap.Any
	ErrorField = zap.Error

	WithCaller    = zap.WithCaller
	AddStacktrace = zap.AddStacktrace
	AddCallerSkip = zap.AddCallerSkip
)

// ParseLevel converts a level name, falling back on unknown input.
func ParseLevel(text string, fallback Level) Level {
	if parsed, err := zapcore.ParseLevel(text); err == nil {
		return parsed
	}
	return fallback
}

// New creates a Logger writing JSON output to w. Entries below level
// are discarded. Filter rules installed via SetFilterRules may further
// restrict output by logger namespace.
func New(w io.Writer, level Level, opts ...Option) *Logger {
	return newLogger(w, level, prodEncoder(), opts...)
}

// DevLogger creates a Logger with a human readable console encoder.
func DevLogger(w io.Writer, level Level, opts ...Option) *Logger {
	return newLogger(w, level, devEncoder(), opts...)
}

func newLogger(w io.Writer, level Level, enc zapcore.Encoder, opts ...Option) *Logger {
	if w == nil {
		w = os.Stderr
	}
	core := zapcore.NewCore(enc, zapcore.AddSync(w), level)
	if filterRules != "" {
		core = zapfilter.NewFilteringCore(core, zapfilter.MustParseRules(filterRules))
	}
	return &Logger{
		l:     zap.New(core, opts...),
		level: level,
	}
}

var filterRules string

// SetFilterRules installs zapfilter rules (e.g. "debug:cache.* info:*")
// applied to all loggers created afterwards. Rules coming from a config
// file are validated via zapfilter.ParseRules first (see logconfig.go),
// since MustParseRules panics on malformed input.
func SetFilterRules(rules string) {
	filterRules = rules
}

func prodEncoder() zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	return zapcore.NewJSONEncoder(cfg)
}

func devEncoder() zapcore.Encoder {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewConsoleEncoder(cfg)
}

func (l *Logger) Debug(msg string, fields ...Field) { l.l.Debug(msg, fields...) }
func (l *Logger) Info(msg string, fields ...Field)  { l.l.Info(msg, fields...) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.l.Warn(msg, fields...) }
func (l *Logger) Error(msg string, fields ...Field) { l.l.Error(msg, fields...) }
func (l *Logger) Fatal(msg string, fields ...Field) { l.l.Fatal(msg, fields...) }

func (l *Logger) DebugEnabled() bool { return l.level <= DebugLevel }

func (l *Logger) Named(name string) *Logger {
	return &Logger{l: l.l.Named(name), level: l.level}
}

func (l *Logger) WithOptions(opts ...Option) *Logger {
	return &Logger{l: l.l.WithOptions(opts...), level: l.level}
}

func (l *Logger) Sync() error { return l.l.Sync() }

var (
	std     = DevLogger(os.Stderr, InfoLevel)
	stdLock sync.Mutex
)

// Default returns the process wide logger. It is replaced by
// ResetDefault once the command line has been evaluated.
func Default() *Logger { return std }

// ResetDefault replaces the default logger used by the package level
// logging functions.
func ResetDefault(l *Logger) {
	stdLock.Lock()
	defer stdLock.Unlock()
	std = l
}

func Debug(msg string, fields ...Field) { std.Debug(msg, fields...) }
func Info(msg string, fields ...Field)  { std.Info(msg, fields...) }
func Warn(msg string, fields ...Field)  { std.Warn(msg, fields...) }
func Error(msg string, fields ...Field) { std.Error(msg, fields...) }
func Fatal(msg string, fields ...Field) { std.Fatal(msg, fields...) }

func Fatalf(format string, args ...any) {
	std.Fatal(fmt.Sprintf(format, args...))
}

type ctxKey struct{}

// AddToContext attaches a logger to the context.
func AddToContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// GetFromContext returns the logger attached to ctx or the default
// logger if none is present.
func GetFromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok {
		return l
	}
	return std
}
