package log

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestCoreWritesJsonAtLevel(t *testing.T) {
	var file, console bytes.Buffer

	logger := zap.New(newCore(zapcore.AddSync(&file), zapcore.AddSync(&console), zap.InfoLevel))
	logger.Debug("hidden")
	logger.With(zap.String("contract", "0xaa")).Info("Marketplace listing")
	require.NoError(t, logger.Sync())

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(file.Bytes(), &line))
	require.Equal(t, "Marketplace listing", line["message"])
	require.Equal(t, "0xaa", line["contract"])
	require.Contains(t, line, "time")

	require.Contains(t, console.String(), "Marketplace listing")
	require.NotContains(t, console.String(), "hidden")
}

func TestNewLoggerCreatesLogDirectory(t *testing.T) {
	prev := zap.L()
	t.Cleanup(func() { zap.ReplaceGlobals(prev) })

	path := filepath.Join(t.TempDir(), "nested", "marketplace.log")
	NewLogger(path, true, "")

	zap.L().Debug("started")
	_ = zap.L().Sync()

	_, err := os.Stat(path)
	require.NoError(t, err)
}
