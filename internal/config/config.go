package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/dshills/chunkstream/internal/charsource"
	"github.com/dshills/chunkstream/internal/chunker"
	"github.com/dshills/chunkstream/internal/logger"
)

// Environment variables read by Load
const (
	EnvDBPath     = "CHUNKSTREAM_DB_PATH"
	EnvOpenTag    = "CHUNKSTREAM_OPEN_TAG"
	EnvCloseTag   = "CHUNKSTREAM_CLOSE_TAG"
	EnvNestedOpen = "CHUNKSTREAM_NESTED_OPEN"
	EnvWorkers    = "CHUNKSTREAM_WORKERS"
	EnvBlockSize  = "CHUNKSTREAM_BLOCK_SIZE"
	EnvLogLevel   = "CHUNKSTREAM_LOG_LEVEL"
	EnvLogFile    = "CHUNKSTREAM_LOG_FILE"
)

// DefaultDBDir is the database directory used when CHUNKSTREAM_DB_PATH is unset
const DefaultDBDir = "~/.chunkstream"

// Config is the process configuration
type Config struct {
	DBPath       string // Directory holding chunkstream.db
	OpenTag      string
	CloseTag     string
	NestedOpen   chunker.NestedOpenPolicy
	MaxChunkSize int
	Workers      int
	BlockSize    int
	LogLevel     logger.Level
	LogFile      string // Empty logs to stderr
}

// Load reads an optional .env file from the working directory and then the
// environment. Invalid values are reported and replaced by defaults.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		DBPath:       getEnv(EnvDBPath, DefaultDBDir),
		OpenTag:      getEnv(EnvOpenTag, ""),
		CloseTag:     getEnv(EnvCloseTag, ""),
		MaxChunkSize: chunker.DefaultMaxChunkSize(),
		Workers:      getEnvInt(EnvWorkers, runtime.NumCPU()),
		BlockSize:    getEnvInt(EnvBlockSize, charsource.DefaultBlockSize),
		LogLevel:     logger.ParseLevel(getEnv(EnvLogLevel, "info")),
		LogFile:      getEnv(EnvLogFile, ""),
	}

	policy, err := chunker.ParseNestedOpenPolicy(getEnv(EnvNestedOpen, ""))
	if err != nil {
		logger.Warn("%s: %v, using %s", EnvNestedOpen, err, chunker.NestedAppend)
	}
	cfg.NestedOpen = policy

	return cfg
}

// ChunkerConfig returns the extractor configuration, with explicit tags
// taking precedence over the configured defaults
func (c *Config) ChunkerConfig(openTag, closeTag string, maxChunkSize int) chunker.Config {
	if openTag == "" {
		openTag = c.OpenTag
	}
	if closeTag == "" {
		closeTag = c.CloseTag
	}
	if maxChunkSize <= 0 {
		maxChunkSize = c.MaxChunkSize
	}
	return chunker.Config{
		OpenTag:      openTag,
		CloseTag:     closeTag,
		MaxChunkSize: maxChunkSize,
		NestedOpen:   c.NestedOpen,
	}
}

// ResolveDBPath expands a leading ~ in the database directory
func (c *Config) ResolveDBPath() (string, error) {
	return ExpandHome(c.DBPath)
}

// ExpandHome replaces a leading ~ with the user's home directory
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// getEnv reads an environment variable with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		logger.Warn("%s=%q is not a positive int, using default %d", key, v, def)
		return def
	}
	return n
}
