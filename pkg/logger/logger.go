// Package logger owns the process-wide structured logger. The core
// broker treats logging as an external collaborator (§6): it only needs a
// handle exposing log(level, text) that returns immediately. This package
// provides that handle as a slog.Logger, optionally backed by the
// fire-and-forget async file sink in asyncsink.go.
package logger

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Log is the process-wide logger. It is nil until Init has run.
var Log *slog.Logger

var (
	initMu   sync.Mutex
	initDone bool
)

// Init initialises the global logger at the given level ("debug", "info",
// "warn", "error"), optionally tee-ing output to an async file sink at
// sinkFile. It is a programmer error to call Init more than once — the
// core contract treats "logger initialised twice" as a startup
// precondition violation, so a second call returns an error rather than
// silently replacing the logger.
func Init(level, sinkFile string) error {
	initMu.Lock()
	defer initMu.Unlock()
	if initDone {
		return fmt.Errorf("logger: initialised twice")
	}

	lvl := parseLevel(level)
	handler := slog.Handler(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))

	if sinkFile != "" {
		sink, err := newAsyncFileSink(sinkFile)
		if err != nil {
			return fmt.Errorf("logger: attaching async sink: %w", err)
		}
		handler = teeHandler{primary: handler, sink: sink}
	}

	Log = slog.New(handler)
	initDone = true
	return nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Debug logs with slog-style key/value pairs against the global logger.
func Debug(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Debug(msg, args...)
}

// Info logs with slog-style key/value pairs against the global logger.
func Info(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Info(msg, args...)
}

// Warn logs with slog-style key/value pairs against the global logger.
func Warn(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Warn(msg, args...)
}

// Error logs with slog-style key/value pairs against the global logger.
func Error(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Error(msg, args...)
}
