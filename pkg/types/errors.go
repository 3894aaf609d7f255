package types

import (
	"errors"
	"fmt"
)

// Domain errors for type validation
var (
	// Extraction errors
	ErrChunkOverflow       = errors.New("chunk larger than max chunk size")
	ErrNestedOpenTag       = errors.New("open tag found inside an open chunk")
	ErrEmptyTag            = errors.New("tag cannot be empty")
	ErrInvalidMaxChunkSize = errors.New("max chunk size must be positive")

	// Search result errors
	ErrInvalidChunkID        = errors.New("invalid chunk ID")
	ErrInvalidRank           = errors.New("rank must be >= 1")
	ErrInvalidRelevanceScore = errors.New("relevance score must be between 0 and 1")
	ErrMissingFileInfo       = errors.New("file info is required")
	ErrEmptyContent          = errors.New("content cannot be empty")
)

// ChunkOverflowError reports the stream position at which a chunk in progress
// would have grown past its configured limit.
type ChunkOverflowError struct {
	Limit  int   // Configured max chunk size, in characters
	Offset int64 // Character offset of the rejected character
}

func (e *ChunkOverflowError) Error() string {
	return fmt.Sprintf("chunk larger than max_chunk_size (%d chars) at offset %d", e.Limit, e.Offset)
}

// Is reports whether target is ErrChunkOverflow.
func (e *ChunkOverflowError) Is(target error) bool {
	return target == ErrChunkOverflow
}
