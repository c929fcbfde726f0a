package logger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func resetGlobalLogger() {
	initMu.Lock()
	initDone = false
	Log = nil
	initMu.Unlock()
}

func TestInitTwiceFails(t *testing.T) {
	resetGlobalLogger()
	defer resetGlobalLogger()

	require.NoError(t, Init("info", ""))
	require.Error(t, Init("info", ""))
}

func TestInitWithAsyncSinkWritesLines(t *testing.T) {
	resetGlobalLogger()
	defer resetGlobalLogger()

	dir := t.TempDir()
	sinkPath := filepath.Join(dir, "broker.log")
	require.NoError(t, Init("debug", sinkPath))

	Info("hello", "n", 1)

	// Give the background flush ticker a chance to run; the sink writes
	// asynchronously.
	require.Eventually(t, func() bool {
		b, err := os.ReadFile(sinkPath)
		return err == nil && len(b) > 0
	}, 2*time.Second, 20*time.Millisecond)

	b, err := os.ReadFile(sinkPath)
	require.NoError(t, err)
	require.Contains(t, string(b), "hello")
}
