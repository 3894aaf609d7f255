package types

import (
	"crypto/sha256"
	"errors"
	"unicode/utf8"
)

// Chunk is one complete tagged section of a character stream, from the first
// character of its open tag through the last character of its close tag.
type Chunk struct {
	// Identification
	Seq int // Emission order within the stream, starting at 0

	// Content
	Content     string
	ContentHash [32]byte // SHA-256 hash for deduplication

	// Location, in characters from the start of the stream
	Start int64 // Offset of the first open-tag character
	End   int64 // Offset one past the last close-tag character
}

// Len returns the chunk length in characters
func (c *Chunk) Len() int {
	return utf8.RuneCountInString(c.Content)
}

// ComputeContentHash computes the SHA-256 hash of the chunk content
func (c *Chunk) ComputeContentHash() {
	c.ContentHash = sha256.Sum256([]byte(c.Content))
}

// Validate checks that the chunk holds content and a sane span
func (c *Chunk) Validate() error {
	if c.Content == "" {
		return errors.New("chunk content cannot be empty")
	}

	if c.Start < 0 || c.End < 0 {
		return errors.New("offsets must not be negative")
	}

	if c.Start >= c.End {
		return errors.New("start offset must be before end offset")
	}

	return nil
}
