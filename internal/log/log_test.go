package log

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLog_NotInitializedIsNoop(t *testing.T) {
	require.NotPanics(t, func() {
		Info(CatRegistry, "ignored", "name", "x")
	})
}

func TestLog_WritesStructuredEntry(t *testing.T) {
	var buf bytes.Buffer
	cleanup := InitWithWriter(&buf)
	defer cleanup()

	Info(CatRegistry, "variable registered", "name", "x", "depth", 1)

	out := buf.String()
	require.Contains(t, out, "[INFO] [registry] variable registered")
	require.Contains(t, out, "name=x")
	require.Contains(t, out, "depth=1")
}

func TestLog_OddFieldCount(t *testing.T) {
	var buf bytes.Buffer
	cleanup := InitWithWriter(&buf)
	defer cleanup()

	Warn(CatBinding, "orphan", "key")

	require.Contains(t, buf.String(), "key=<missing>")
}

func TestLog_ErrorErr(t *testing.T) {
	var buf bytes.Buffer
	cleanup := InitWithWriter(&buf)
	defer cleanup()

	ErrorErr(CatPlan, "apply failed", errors.New("boom"))
	ErrorErr(CatPlan, "nil error", nil)

	require.Contains(t, buf.String(), "error=boom")
	require.Contains(t, buf.String(), "error=<nil>")
}

func TestLog_MinLevelAndDisable(t *testing.T) {
	var buf bytes.Buffer
	cleanup := InitWithWriter(&buf)
	defer cleanup()

	SetMinLevel(LevelWarn)
	Debug(CatCache, "hidden")
	Info(CatCache, "hidden too")
	require.Empty(t, buf.String())

	Error(CatCache, "shown")
	require.Contains(t, buf.String(), "shown")

	buf.Reset()
	SetEnabled(false)
	Error(CatCache, "suppressed")
	require.Empty(t, buf.String())
}

func TestLog_Subscribe(t *testing.T) {
	var buf bytes.Buffer
	cleanup := InitWithWriter(&buf)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := Subscribe(ctx)
	require.NotNil(t, ch)

	Info(CatConfig, "loaded")

	select {
	case ev := <-ch:
		require.Contains(t, ev.Payload, "[config] loaded")
	case <-time.After(time.Second):
		require.Fail(t, "timeout waiting for log event")
	}
}

func TestLog_InitCleanupClosesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")
	cleanup, err := Init(path)
	require.NoError(t, err)

	Info(CatConfig, "before close")
	cleanup()
	require.NotPanics(t, func() { Info(CatConfig, "after close") })
	require.NotPanics(t, cleanup)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "before close")
	require.NotContains(t, string(data), "after close")
}

func TestParseLevel(t *testing.T) {
	lvl, ok := ParseLevel("warning")
	require.True(t, ok)
	require.Equal(t, LevelWarn, lvl)

	_, ok = ParseLevel("verbose")
	require.False(t, ok)
	require.Equal(t, "ERROR", LevelError.String())
	require.Equal(t, "UNKNOWN", Level(9).String())
}
