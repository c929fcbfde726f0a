// Package shutdown provides signal-driven graceful shutdown and the
// fatal-startup helper for the two precondition violations the core
// contract calls out as process-aborting programmer errors: the global
// queue initialised twice, and the logger initialised twice.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"rbqbroker/pkg/logger"
)

// SetupSignalHandler installs handlers for SIGINT/SIGTERM and SIGPIPE and
// returns a cancellable context. The returned context is cancelled when
// SIGINT or SIGTERM arrives. SIGPIPE is logged with a goroutine stack dump
// for diagnostics and also triggers cancellation, since a broken pipe on
// the listener's socket is not otherwise recoverable.
func SetupSignalHandler(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigc
		logger.Info("signal received, shutdown requested", "signal", s.String())
		cancel()
	}()

	sigpipe := make(chan os.Signal, 1)
	signal.Notify(sigpipe, syscall.SIGPIPE)
	go func() {
		s := <-sigpipe
		buf := make([]byte, 1<<20)
		n := runtime.Stack(buf, true)
		logger.Info("SIGPIPE received, dumping goroutine stacks", "signal", s.String(), "dump", string(buf[:n]))
		cancel()
	}()

	return ctx, cancel
}

// Fatal logs a startup precondition violation and terminates the process
// immediately. Nothing else in the core contract aborts the process; this
// is reserved for "global queue initialised twice" and "logger
// initialised twice", both of which are programmer errors in startup code
// rather than runtime conditions a client or operator can trigger.
func Fatal(msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}
