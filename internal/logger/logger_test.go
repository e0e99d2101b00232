package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/uart-panel/internal/config"
	"go.uber.org/zap/zapcore"
)

func TestInit_NilConfig(t *testing.T) {
	assert.Error(t, Init(nil))
}

func TestInit_FileOutput(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.LogConfig{
		Level:  "debug",
		Format: "json",
		Output: "file",
		File: config.LogFileConfig{
			Path:     dir,
			Filename: "panel.log",
			MaxSize:  1,
		},
		Modules: map[string]string{"serial": "warn"},
	}
	require.NoError(t, Init(cfg))

	Info("panel started")
	Error("link lost")
	LogSerialCommand("KEY 1 1000", "", true)
	_ = GetLogger().Sync()

	data, err := os.ReadFile(filepath.Join(dir, "panel.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "panel started")
	assert.Contains(t, string(data), "link lost")

	errData, err := os.ReadFile(filepath.Join(dir, "error.log"))
	require.NoError(t, err)
	assert.Contains(t, string(errData), "link lost")
	assert.NotContains(t, string(errData), "panel started")

	assert.True(t, GetModuleLogger("serial").Core().Enabled(zapcore.WarnLevel))
	assert.False(t, GetModuleLogger("serial").Core().Enabled(zapcore.InfoLevel))
}

func TestSetLevel(t *testing.T) {
	require.NoError(t, Init(&config.LogConfig{Level: "info", Output: "stdout"}))
	assert.Equal(t, zapcore.InfoLevel, Level())
	assert.False(t, GetLogger().Core().Enabled(zapcore.DebugLevel))

	SetLevel("debug")
	assert.Equal(t, zapcore.DebugLevel, Level())
	assert.True(t, GetLogger().Core().Enabled(zapcore.DebugLevel))

	SetLevel("bogus")
	assert.Equal(t, zapcore.InfoLevel, Level())
}

func TestGetModuleLogger_Fallback(t *testing.T) {
	require.NoError(t, Init(&config.LogConfig{Level: "info", Output: "stdout"}))
	assert.NotNil(t, GetModuleLogger("runner"))
	assert.NotNil(t, WithModule("mqtt"))
	assert.NotNil(t, GetSugar())
}
