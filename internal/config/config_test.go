package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/chunkstream/internal/charsource"
	"github.com/dshills/chunkstream/internal/chunker"
	"github.com/dshills/chunkstream/internal/logger"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		EnvDBPath, EnvOpenTag, EnvCloseTag, EnvNestedOpen, EnvWorkers,
		EnvBlockSize, EnvLogLevel, EnvLogFile,
		chunker.EnvMaxChunkSize, chunker.EnvMaxChunkSizeLegacy,
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
	// Keep a stray .env in the package directory out of the picture
	t.Chdir(t.TempDir())
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()
	assert.Equal(t, DefaultDBDir, cfg.DBPath)
	assert.Equal(t, chunker.FallbackMaxChunkSize, cfg.MaxChunkSize)
	assert.Equal(t, charsource.DefaultBlockSize, cfg.BlockSize)
	assert.Equal(t, logger.LevelInfo, cfg.LogLevel)
	assert.Equal(t, chunker.NestedAppend, cfg.NestedOpen)
	assert.Greater(t, cfg.Workers, 0)
}

func TestLoad_FromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvDBPath, "/tmp/cs")
	t.Setenv(EnvOpenTag, "<item>")
	t.Setenv(EnvCloseTag, "</item>")
	t.Setenv(EnvNestedOpen, "restart")
	t.Setenv(EnvWorkers, "3")
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(chunker.EnvMaxChunkSizeLegacy, "1024")

	cfg := Load()
	assert.Equal(t, "/tmp/cs", cfg.DBPath)
	assert.Equal(t, "<item>", cfg.OpenTag)
	assert.Equal(t, "</item>", cfg.CloseTag)
	assert.Equal(t, chunker.NestedRestart, cfg.NestedOpen)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, logger.LevelDebug, cfg.LogLevel)
	assert.Equal(t, 1024, cfg.MaxChunkSize)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvWorkers, "many")
	t.Setenv(EnvBlockSize, "-5")
	t.Setenv(EnvNestedOpen, "sideways")

	cfg := Load()
	assert.Equal(t, charsource.DefaultBlockSize, cfg.BlockSize)
	assert.Equal(t, chunker.NestedAppend, cfg.NestedOpen)
	assert.Greater(t, cfg.Workers, 0)
}

func TestLoad_DotEnv(t *testing.T) {
	clearEnv(t)
	require.NoError(t, os.WriteFile(".env", []byte("CHUNKSTREAM_OPEN_TAG=<doc>\n"), 0644))

	cfg := Load()
	assert.Equal(t, "<doc>", cfg.OpenTag)
	require.NoError(t, os.Unsetenv(EnvOpenTag))
}

func TestChunkerConfig_Precedence(t *testing.T) {
	cfg := &Config{OpenTag: "<a>", CloseTag: "</a>", MaxChunkSize: 100, NestedOpen: chunker.NestedError}

	got := cfg.ChunkerConfig("", "", 0)
	assert.Equal(t, chunker.Config{OpenTag: "<a>", CloseTag: "</a>", MaxChunkSize: 100, NestedOpen: chunker.NestedError}, got)

	got = cfg.ChunkerConfig("<b>", "</b>", 7)
	assert.Equal(t, "<b>", got.OpenTag)
	assert.Equal(t, "</b>", got.CloseTag)
	assert.Equal(t, 7, got.MaxChunkSize)
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := ExpandHome("~/.chunkstream")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".chunkstream"), got)

	got, err = ExpandHome("/abs/path")
	require.NoError(t, err)
	assert.Equal(t, "/abs/path", got)
}
