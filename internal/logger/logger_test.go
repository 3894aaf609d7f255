package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"none", LevelNone},
		{"invalid", LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLevel(tt.input))
		})
	}
}

func TestLogger_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(LevelWarn, &buf, "")

	l.Info("hidden %d", 1)
	l.Warn("shown %d", 2)
	l.Error("shown %d", 3)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN] shown 2")
	assert.Contains(t, out, "[ERROR] shown 3")
}

func TestLogger_WithPrefix(t *testing.T) {
	var buf bytes.Buffer
	l := New(LevelDebug, &buf, "indexer").WithPrefix("batch")

	l.Debug("committed")
	assert.Contains(t, buf.String(), "[DEBUG] [indexer:batch] committed")
}

func TestLogger_None(t *testing.T) {
	var buf bytes.Buffer
	l := New(LevelNone, &buf, "")
	l.Error("nothing")
	assert.Empty(t, buf.String())
}

func TestNewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "chunkstream.log")

	l, err := NewFile(LevelInfo, path)
	require.NoError(t, err)
	l.Info("to file")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[INFO] to file")
}

func TestGlobal(t *testing.T) {
	var buf bytes.Buffer
	SetGlobal(New(LevelInfo, &buf, ""))
	t.Cleanup(func() { SetGlobal(nil) })

	Info("global %s", "line")
	assert.Contains(t, buf.String(), "global line")
	assert.Same(t, Global(), Global())
}
