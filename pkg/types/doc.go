// Package types provides shared type definitions for chunkstream.
//
// # Core Types
//
// Chunk is one complete tagged section cut out of a character stream:
//
//	chunk := &types.Chunk{
//	    Seq:     0,
//	    Content: "<tag>hello</tag>",
//	    Start:   6,
//	    End:     22,
//	}
//
// Offsets count characters, not bytes. End is exclusive.
//
// # Errors
//
// The extractor has a single failure mode, an overflowing chunk. It is reported as a
// *ChunkOverflowError that matches ErrChunkOverflow:
//
//	if errors.Is(err, types.ErrChunkOverflow) {
//	    // abort the scan
//	}
//
// # Search Results
//
// SearchResult pairs stored chunk content with its relevance:
//
//	result := &types.SearchResult{
//	    ChunkID:        123,
//	    Rank:           1,
//	    RelevanceScore: 0.92,
//	    Content:        chunkContent,
//	}
//
// Relevance scores are normalized to [0, 1] range, with higher values indicating
// better matches.
package types
