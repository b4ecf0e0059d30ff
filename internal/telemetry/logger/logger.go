package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// Logger is the application logger interface.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger

	// Slog returns the underlying *slog.Logger for components that take
	// one directly.
	Slog() *slog.Logger
}

// Output formats.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// Config holds logger configuration.
type Config struct {
	Level     string
	Format    string
	Output    io.Writer // os.Stderr when nil
	AddSource bool
}

// DefaultConfig returns info-level JSON on stderr.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: FormatJSON,
		Output: os.Stderr,
	}
}

// levels maps accepted level names to slog levels.
var levels = map[string]slog.Level{
	"":        slog.LevelInfo,
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// levelNames holds the canonical name of each level.
var levelNames = map[slog.Level]string{
	slog.LevelDebug: "debug",
	slog.LevelInfo:  "info",
	slog.LevelWarn:  "warn",
	slog.LevelError: "error",
}

// level is shared by every logger built with New, so SetLevel applies to
// loggers that components already hold.
var level = new(slog.LevelVar)

// ParseLevel converts a level name to slog.Level. The empty string means
// info.
func ParseLevel(name string) (slog.Level, error) {
	l, ok := levels[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return slog.LevelInfo, fmt.Errorf("logger: unknown level %q", name)
	}
	return l, nil
}

// SetLevel changes the level of all loggers. An unknown name is rejected
// and leaves the level unchanged.
func SetLevel(name string) error {
	l, err := ParseLevel(name)
	if err != nil {
		return err
	}
	level.Set(l)
	return nil
}

// GetLevel returns the canonical name of the current level.
func GetLevel() string {
	if name, ok := levelNames[level.Level()]; ok {
		return name
	}
	return level.Level().String()
}

func newHandler(cfg Config) (slog.Handler, error) {
	w := cfg.Output
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.AddSource,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			return redactSensitive(a)
		},
	}

	switch strings.ToLower(cfg.Format) {
	case "", FormatJSON:
		return slog.NewJSONHandler(w, opts), nil
	case FormatText, "console":
		return slog.NewTextHandler(w, opts), nil
	default:
		return nil, fmt.Errorf("logger: unknown format %q", cfg.Format)
	}
}

// New creates a logger and sets the shared level to cfg.Level.
func New(cfg Config) (Logger, error) {
	lvl, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	h, err := newHandler(cfg)
	if err != nil {
		return nil, err
	}
	level.Set(lvl)
	return &slogLogger{logger: slog.New(h)}, nil
}

// Component returns the *slog.Logger for a named subsystem, tagged with
// component=name.
func Component(l Logger, name string) *slog.Logger {
	return l.Slog().With("component", name)
}

type slogLogger struct {
	logger *slog.Logger
}

func (l *slogLogger) Debug(msg string, args ...any) {
	l.logger.Debug(msg, args...)
}

func (l *slogLogger) Info(msg string, args ...any) {
	l.logger.Info(msg, args...)
}

func (l *slogLogger) Warn(msg string, args ...any) {
	l.logger.Warn(msg, args...)
}

func (l *slogLogger) Error(msg string, args ...any) {
	l.logger.Error(msg, args...)
}

func (l *slogLogger) With(args ...any) Logger {
	return &slogLogger{logger: l.logger.With(args...)}
}

func (l *slogLogger) Slog() *slog.Logger {
	return l.logger
}

var defaultLogger atomic.Pointer[slogLogger]

func init() {
	h, _ := newHandler(DefaultConfig())
	defaultLogger.Store(&slogLogger{logger: slog.New(h)})
}

// SetDefault replaces the process-wide logger and installs it as the slog
// default too.
func SetDefault(l Logger) {
	if sl, ok := l.(*slogLogger); ok {
		defaultLogger.Store(sl)
		slog.SetDefault(sl.logger)
	}
}

// Default returns the process-wide logger.
func Default() Logger {
	return defaultLogger.Load()
}
