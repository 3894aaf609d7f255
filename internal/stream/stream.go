package stream

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dshills/chunkstream/internal/charsource"
	"github.com/dshills/chunkstream/internal/chunker"
	"github.com/dshills/chunkstream/pkg/types"
)

// cancelCheckInterval is how many characters are fed between context checks
const cancelCheckInterval = 4096

// EmitFunc receives each completed chunk. Returning an error stops the scan.
type EmitFunc func(chunk *types.Chunk) error

// Result summarizes a finished or aborted scan
type Result struct {
	Chars  int64 // Characters fed to the extractor
	Chunks int   // Chunks emitted
}

// Scan pulls characters from src one at a time, feeds them to ex and passes
// every completed chunk, with its content hash computed, to emit.
//
// Scan returns when src is exhausted, when ex fails (chunk overflow), when emit
// returns an error or when ctx is cancelled. The Result is valid in every case.
func Scan(ctx context.Context, src charsource.Source, ex *chunker.Extractor, emit EmitFunc) (*Result, error) {
	res := &Result{}

	for {
		if res.Chars%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return res, err
			}
		}

		ch, err := src.Next()
		if errors.Is(err, io.EOF) {
			return res, nil
		}
		if err != nil {
			return res, fmt.Errorf("failed to read character %d: %w", res.Chars, err)
		}
		res.Chars++

		chunk, err := ex.Feed(ch)
		if err != nil {
			return res, err
		}
		if chunk == nil {
			continue
		}

		chunk.ComputeContentHash()
		res.Chunks++
		if err := emit(chunk); err != nil {
			return res, err
		}
	}
}

// Collect scans src to the end and returns every chunk in stream order
func Collect(ctx context.Context, src charsource.Source, ex *chunker.Extractor) ([]*types.Chunk, error) {
	chunks := make([]*types.Chunk, 0)
	_, err := Scan(ctx, src, ex, func(chunk *types.Chunk) error {
		chunks = append(chunks, chunk)
		return nil
	})
	return chunks, err
}

// Text is a convenience wrapper that extracts chunks from an in-memory string
func Text(ctx context.Context, text string, cfg chunker.Config) ([]*types.Chunk, error) {
	ex, err := chunker.New(cfg)
	if err != nil {
		return nil, err
	}
	return Collect(ctx, charsource.FromString(text), ex)
}
