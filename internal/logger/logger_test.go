package logger

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facewatch/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
		ok   bool
	}{
		{"", LevelInfo, true},
		{"info", LevelInfo, true},
		{" Warning ", LevelWarning, true},
		{"ERROR", LevelError, true},
		{"debug", LevelInfo, false},
	}
	for _, tt := range tests {
		got, ok := ParseLevel(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
	assert.Equal(t, "warning.log", LevelWarning.FileName())
}

func TestLoggerWritesPerLevelFiles(t *testing.T) {
	l, err := NewLogger(&config.Config{LogDirectory: t.TempDir(), LogLevel: "warning"})
	require.NoError(t, err)
	defer l.Close()

	l.Info("hidden %d", 1)
	l.Warning("careful %s", "now")
	l.Error("broken")

	read := func(lvl Level) string {
		data, err := os.ReadFile(l.Path(lvl))
		require.NoError(t, err)
		return string(data)
	}
	assert.Empty(t, read(LevelInfo))
	assert.Contains(t, read(LevelWarning), "careful now")
	assert.Contains(t, read(LevelWarning), "logger_test.go")
	assert.Contains(t, read(LevelError), "broken")
	assert.NotContains(t, read(LevelError), "careful")

	require.NoError(t, l.CleanLogs(LevelError))
	assert.Empty(t, read(LevelError))
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	_, err := NewLogger(&config.Config{LogDirectory: t.TempDir(), LogLevel: "verbose"})
	assert.Error(t, err)
}

func TestDiscardLoggerHasNoFiles(t *testing.T) {
	l := NewDiscard()
	l.Error("nothing")
	assert.Empty(t, l.Path(LevelError))
	assert.NoError(t, l.CleanLogs(LevelError))
	assert.NoError(t, l.Close())
}
