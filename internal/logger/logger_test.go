package logger

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"wrestlenews/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadableHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewReadableHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	log.With(slog.String("component", "coordinator"), slog.String("source", "wwe.com")).
		Info("Source fetched", slog.String("op", "usecase.fetchOne"), slog.Int("count", 3))

	out := buf.String()
	assert.Contains(t, out, "INFO [coordinator] (usecase.fetchOne)")
	assert.Contains(t, out, "Source fetched | source=wwe.com, count=3")
}

func TestReadableHandler_WithGroup(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewReadableHandler(&buf, nil))

	log.WithGroup("http").Info("Request", slog.Int("status", 200))

	assert.Contains(t, buf.String(), "http.status=200")
}

func TestReadableHandler_Level(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewReadableHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

	log.Info("hidden")
	log.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "WARN")
}

func TestLevelDispatcherHandler_RoutesErrors(t *testing.T) {
	var out, errOut bytes.Buffer
	log := slog.New(NewLevelDispatcherHandler(&out, &errOut, &slog.HandlerOptions{Level: slog.LevelDebug}))
	log = log.With(slog.String("component", "store"))

	log.Info("Batch persisted")
	log.Error("Persist failed", slog.Any("error", os.ErrClosed))

	assert.Contains(t, out.String(), "[store]: Batch persisted")
	assert.NotContains(t, out.String(), "Persist failed")
	assert.Contains(t, errOut.String(), `[store]: Persist failed | error="file already closed"`)
}

func TestNew_FileOutputs(t *testing.T) {
	dir := t.TempDir()
	cfg := config.LoggerConfig{
		Level:     "DEBUG",
		File:      filepath.Join(dir, "logs", "app.log"),
		ErrorFile: filepath.Join(dir, "logs", "error.log"),
	}

	log, err := New(cfg)
	require.NoError(t, err)
	log.Debug("debug line")
	log.Error("error line")

	data, err := os.ReadFile(cfg.File)
	require.NoError(t, err)
	assert.Contains(t, string(data), "debug line")
	data, err = os.ReadFile(cfg.ErrorFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "error line")
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLogLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel("WARN"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("bogus"))
}

func TestReadableHandler_SourceAttrIsKept(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewReadableHandler(&buf, &slog.HandlerOptions{AddSource: true}))

	log.With(slog.String("component", "coordinator"), slog.String("source", "www.fightful.com")).
		Warn("Source fetch failed", slog.Any("error", os.ErrDeadlineExceeded))

	out := buf.String()
	assert.Contains(t, out, "Source fetch failed | source=www.fightful.com, error=")
	assert.Contains(t, out, "<logger_test.go:")
}
