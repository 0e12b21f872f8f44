package logger

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func resetLogger() {
	global = nil
	once = sync.Once{}
}

func TestInit(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		format    string
		wantLevel zapcore.Level
		wantErr   bool
	}{
		{"json info", "info", "json", zapcore.InfoLevel, false},
		{"console debug", "debug", "console", zapcore.DebugLevel, false},
		{"json warn", "warn", "json", zapcore.WarnLevel, false},
		{"json error", "error", "json", zapcore.ErrorLevel, false},
		{"invalid level", "invalid", "json", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetLogger()
			err := Init(tt.level, tt.format)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, global)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantLevel, level.Level())
			assert.True(t, L().Core().Enabled(tt.wantLevel))
		})
	}
}

func TestInit_OnlyOnce(t *testing.T) {
	resetLogger()
	require.NoError(t, Init("warn", "json"))
	first := L()

	require.NoError(t, Init("debug", "console"))
	assert.Same(t, first, L())
	assert.Equal(t, zapcore.WarnLevel, level.Level())
}

func TestL_PanicsWithoutInit(t *testing.T) {
	resetLogger()
	assert.Panics(t, func() { L() })
}

func TestLoggingFunctions(t *testing.T) {
	resetLogger()
	require.NoError(t, Init("debug", "json"))

	assert.NotPanics(t, func() {
		Debug("test debug")
		Info("test info")
		Warn("test warn")
		Error("test error")
	})
}

func TestSync(t *testing.T) {
	resetLogger()
	assert.NoError(t, Sync(), "Sync on an uninitialized logger is a no-op")

	require.NoError(t, Init("info", "json"))
	// Sync may return an error on stderr in tests; only ensure no panic.
	_ = Sync()
}
