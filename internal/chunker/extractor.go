package chunker

import (
	"fmt"
	"strings"

	"github.com/dshills/chunkstream/pkg/types"
)

// NestedOpenPolicy decides what happens when the open tag completes while a
// chunk is already being assembled
type NestedOpenPolicy int

const (
	// NestedAppend appends the second open tag to the chunk in progress
	NestedAppend NestedOpenPolicy = iota
	// NestedRestart drops the chunk in progress and starts over at the new open tag
	NestedRestart
	// NestedError fails the scan with types.ErrNestedOpenTag
	NestedError
)

// String returns the policy name used in configuration
func (p NestedOpenPolicy) String() string {
	switch p {
	case NestedAppend:
		return "append"
	case NestedRestart:
		return "restart"
	case NestedError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseNestedOpenPolicy parses a policy name. The empty string selects NestedAppend.
func ParseNestedOpenPolicy(s string) (NestedOpenPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "append":
		return NestedAppend, nil
	case "restart":
		return NestedRestart, nil
	case "error":
		return NestedError, nil
	default:
		return NestedAppend, fmt.Errorf("unknown nested open policy %q", s)
	}
}

// Config contains configuration for an Extractor
type Config struct {
	OpenTag      string
	CloseTag     string
	MaxChunkSize int // Characters; 0 uses DefaultMaxChunkSize()
	NestedOpen   NestedOpenPolicy
}

// Extractor cuts complete open-tag...close-tag chunks out of a character
// stream fed one character at a time. It is not safe for concurrent use.
type Extractor struct {
	open         *TagMatcher
	close        *TagMatcher
	maxChunkSize int
	nested       NestedOpenPolicy

	inTag bool
	buf   strings.Builder
	size  int   // Characters in buf
	pos   int64 // Characters fed so far
	start int64 // Offset of the chunk in progress
	seq   int
	err   error // Sticky failure
}

// New creates an Extractor
func New(cfg Config) (*Extractor, error) {
	open, err := NewTagMatcher(cfg.OpenTag)
	if err != nil {
		return nil, fmt.Errorf("open tag: %w", err)
	}
	closeTag, err := NewTagMatcher(cfg.CloseTag)
	if err != nil {
		return nil, fmt.Errorf("close tag: %w", err)
	}

	maxSize := cfg.MaxChunkSize
	if maxSize == 0 {
		maxSize = DefaultMaxChunkSize()
	}
	if maxSize < 0 {
		return nil, types.ErrInvalidMaxChunkSize
	}

	return &Extractor{
		open:         open,
		close:        closeTag,
		maxChunkSize: maxSize,
		nested:       cfg.NestedOpen,
	}, nil
}

// Feed consumes one character and returns the chunk it completes, or nil.
//
// An error is always fatal for the stream: once Feed fails, every later call
// returns the same error until Reset.
func (e *Extractor) Feed(r rune) (*types.Chunk, error) {
	if e.err != nil {
		return nil, e.err
	}
	offset := e.pos
	e.pos++

	if tag, ok := e.open.Feed(r); ok {
		if err := e.openChunk(tag, offset); err != nil {
			e.err = err
			return nil, err
		}
		return nil, nil
	}

	// A close tag only ends a chunk that is open. Outside a chunk the
	// matcher still advances so it stays in step with the stream.
	if _, ok := e.close.Feed(r); ok && e.inTag {
		if err := e.checkSize(offset); err != nil {
			e.err = err
			return nil, err
		}
		e.appendRune(r)
		e.inTag = false
	}

	if e.inTag {
		if err := e.checkSize(offset); err != nil {
			e.err = err
			return nil, err
		}
		e.appendRune(r)
	}

	if e.size > 0 && !e.inTag {
		return e.emit(offset + 1), nil
	}
	return nil, nil
}

// openChunk starts a chunk, or handles a repeated open tag per policy
func (e *Extractor) openChunk(tag string, offset int64) error {
	if e.inTag {
		switch e.nested {
		case NestedError:
			return fmt.Errorf("%w at offset %d", types.ErrNestedOpenTag, offset)
		case NestedRestart:
			e.buf.Reset()
			e.size = 0
		}
	}

	if err := e.checkSize(offset); err != nil {
		return err
	}

	if e.size == 0 {
		e.start = offset - int64(e.open.Len()) + 1
	}
	e.inTag = true
	e.buf.WriteString(tag)
	e.size += e.open.Len()
	return nil
}

// checkSize fails when appending one more character would exceed the ceiling
func (e *Extractor) checkSize(offset int64) error {
	if e.size >= e.maxChunkSize {
		return &types.ChunkOverflowError{Limit: e.maxChunkSize, Offset: offset}
	}
	return nil
}

func (e *Extractor) appendRune(r rune) {
	e.buf.WriteRune(r)
	e.size++
}

// emit hands the buffered chunk to the caller and clears the buffer
func (e *Extractor) emit(end int64) *types.Chunk {
	chunk := &types.Chunk{
		Seq:     e.seq,
		Content: e.buf.String(),
		Start:   e.start,
		End:     end,
	}
	e.seq++
	e.buf.Reset()
	e.size = 0
	return chunk
}

// Reset returns the extractor to its initial state, clearing any failure
func (e *Extractor) Reset() {
	e.open.reset()
	e.close.reset()
	e.inTag = false
	e.buf.Reset()
	e.size = 0
	e.pos = 0
	e.start = 0
	e.seq = 0
	e.err = nil
}

// InTag reports whether a chunk is being assembled
func (e *Extractor) InTag() bool {
	return e.inTag
}

// Buffered returns the number of characters held for the chunk in progress
func (e *Extractor) Buffered() int {
	return e.size
}

// Offset returns the number of characters fed since creation or Reset
func (e *Extractor) Offset() int64 {
	return e.pos
}

// Err returns the failure that stopped the extractor, if any
func (e *Extractor) Err() error {
	return e.err
}

// MaxChunkSize returns the configured ceiling in characters
func (e *Extractor) MaxChunkSize() int {
	return e.maxChunkSize
}

// OpenTag returns the open tag literal
func (e *Extractor) OpenTag() string {
	return e.open.Tag()
}

// CloseTag returns the close tag literal
func (e *Extractor) CloseTag() string {
	return e.close.Tag()
}
