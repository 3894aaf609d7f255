package chunker

import (
	"os"
	"strconv"
	"strings"
)

const (
	// FallbackMaxChunkSize is the chunk ceiling used when no setting is present (4 MiB)
	FallbackMaxChunkSize = 4 * 1024 * 1024

	// EnvMaxChunkSize overrides the default chunk ceiling for the process
	EnvMaxChunkSize = "CHUNKSTREAM_MAX_CHUNK_SIZE"

	// EnvMaxChunkSizeLegacy is honored when EnvMaxChunkSize is unset
	EnvMaxChunkSizeLegacy = "MAX_CHUNK_SIZE"
)

// DefaultMaxChunkSize returns the process-wide chunk ceiling in characters.
// Unparseable or non-positive settings are ignored.
func DefaultMaxChunkSize() int {
	for _, key := range []string{EnvMaxChunkSize, EnvMaxChunkSizeLegacy} {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			continue
		}
		return n
	}
	return FallbackMaxChunkSize
}
