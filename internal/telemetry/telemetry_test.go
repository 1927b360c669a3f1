package telemetry

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"warn":    slog.LevelWarn,
		" error ": slog.LevelError,
		"":        slog.LevelInfo,
		"chatty":  slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestInitLoggerWritesToFile(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	dir := filepath.Join(t.TempDir(), "logs")
	logger, closeLog, err := InitLogger(dir, slog.LevelInfo)
	require.NoError(t, err)

	logger.Info("hello from test", "k", "v")
	logger.Debug("filtered out")
	require.NoError(t, closeLog())

	data, err := os.ReadFile(filepath.Join(dir, "f8chat.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello from test"`)
	assert.Contains(t, string(data), `"service":"f8chat"`)
	assert.NotContains(t, string(data), "filtered out")
}

func TestInitTelemetryDisabled(t *testing.T) {
	tracer, meter, cleanup, err := InitTelemetry(context.Background(), t.TempDir(), false)
	require.NoError(t, err)
	require.NotNil(t, tracer)
	require.NotNil(t, meter)
	cleanup()
}

func TestInitTelemetryEnabled(t *testing.T) {
	dir := t.TempDir()
	tracer, meter, cleanup, err := InitTelemetry(context.Background(), dir, true)
	require.NoError(t, err)

	_, span := tracer.Start(context.Background(), "test-span")
	span.End()
	counter, err := meter.Int64Counter("test.counter")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)
	cleanup()

	data, err := os.ReadFile(filepath.Join(dir, "f8chat_traces.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "test-span")
}
