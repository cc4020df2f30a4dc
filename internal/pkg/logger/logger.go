// Package logger is the process-wide structured logger. Every record is a
// JSON line on stdout tagged service=paycat.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// LevelEnv overrides the initial level before flags are parsed
const LevelEnv = "PAYCAT_LOG_LEVEL"

var (
	current atomic.Pointer[slog.Logger]
	level   = new(slog.LevelVar)
	once    sync.Once
)

func build(w io.Writer) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With("service", "paycat")
}

// Initialize creates the logger on first use
func Initialize() {
	once.Do(func() {
		if env := os.Getenv(LevelEnv); env != "" {
			if l, err := ParseLevel(env); err == nil {
				level.Set(l)
			}
		}
		current.Store(build(os.Stdout))
	})
}

// Get returns the shared logger
func Get() *slog.Logger {
	Initialize()
	return current.Load()
}

// SetOutput redirects records to w, keeping format and level
func SetOutput(w io.Writer) {
	Initialize()
	current.Store(build(w))
}

// SetLevel changes the minimum level at runtime
func SetLevel(l slog.Level) {
	level.Set(l)
}

// Level returns the minimum level
func Level() slog.Level {
	return level.Level()
}

// ParseLevel accepts debug, info, warn, warning and error in any case
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

func Debug(msg string, args ...any) { Get().Debug(msg, args...) }
func Info(msg string, args ...any)  { Get().Info(msg, args...) }
func Warn(msg string, args ...any)  { Get().Warn(msg, args...) }
func Error(msg string, args ...any) { Get().Error(msg, args...) }

// With returns a child logger, typically scoped to one session
func With(args ...any) *slog.Logger {
	return Get().With(args...)
}
