package charsource

import (
	"bufio"
	"errors"
	"io"
	"iter"
	"unicode/utf8"
)

const (
	// DefaultBlockSize is the read size used when none is configured
	DefaultBlockSize = 4096

	// MinBlockSize is the smallest read size bufio accepts
	MinBlockSize = 16
)

// Mode selects how raw input is turned into characters
type Mode int

const (
	// ModeText decodes UTF-8; invalid bytes become utf8.RuneError
	ModeText Mode = iota
	// ModeBytes yields every byte as one character in the range 0-255
	ModeBytes
)

// String returns the mode name
func (m Mode) String() string {
	switch m {
	case ModeText:
		return "text"
	case ModeBytes:
		return "bytes"
	default:
		return "unknown"
	}
}

// Source produces a finite, forward-only sequence of characters.
// Next returns io.EOF once the sequence is exhausted.
type Source interface {
	Next() (rune, error)
}

// Reader is a Source over an io.Reader that reads in fixed-size blocks
type Reader struct {
	br     *bufio.Reader
	mode   Mode
	closer io.Closer
}

// NewReader wraps r. blockSize <= 0 selects DefaultBlockSize.
func NewReader(r io.Reader, mode Mode, blockSize int) *Reader {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	if blockSize < MinBlockSize {
		blockSize = MinBlockSize
	}

	rd := &Reader{
		br:   bufio.NewReaderSize(r, blockSize),
		mode: mode,
	}
	if c, ok := r.(io.Closer); ok {
		rd.closer = c
	}
	return rd
}

// Next returns the next character
func (r *Reader) Next() (rune, error) {
	if r.mode == ModeBytes {
		b, err := r.br.ReadByte()
		if err != nil {
			return 0, err
		}
		return rune(b), nil
	}

	ch, _, err := r.br.ReadRune()
	if err != nil {
		return 0, err
	}
	return ch, nil
}

// Mode returns the decoding mode
func (r *Reader) Mode() Mode {
	return r.mode
}

// Close closes the underlying reader when it is an io.Closer
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// stringSource walks a string that is already in memory
type stringSource struct {
	s   string
	pos int
}

// FromString returns a Source over the characters of s
func FromString(s string) Source {
	return &stringSource{s: s}
}

func (s *stringSource) Next() (rune, error) {
	if s.pos >= len(s.s) {
		return 0, io.EOF
	}
	ch, size := utf8.DecodeRuneInString(s.s[s.pos:])
	s.pos += size
	return ch, nil
}

// Chars adapts src to a range-over-func iterator. Iteration stops after the
// first non-nil error, which is yielded once; io.EOF ends iteration silently.
func Chars(src Source) iter.Seq2[rune, error] {
	return func(yield func(rune, error) bool) {
		for {
			ch, err := src.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(0, err)
				return
			}
			if !yield(ch, nil) {
				return
			}
		}
	}
}
