// Package chunker extracts tagged chunks from a character stream in a single pass.
//
// A chunk runs from the first character of a literal open tag through the last
// character of the next literal close tag. Characters are fed one at a time, so
// memory is bounded by one chunk and the caller controls pacing.
//
// # Basic Usage
//
//	ex, err := chunker.New(chunker.Config{
//	    OpenTag:  "<tag>",
//	    CloseTag: "</tag>",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for _, r := range input {
//	    chunk, err := ex.Feed(r)
//	    if err != nil {
//	        log.Fatal(err) // chunk overflow, the scan cannot continue
//	    }
//	    if chunk != nil {
//	        fmt.Println(chunk.Content)
//	    }
//	}
//
// # Tag Matching
//
// Each tag has its own TagMatcher. A matcher tracks how many tag characters have
// matched so far and drops the partial match on the first mismatch. The
// mismatching character may start a new match, so "ab" is found in "aab", but
// already consumed characters are never revisited: "aa" matches once in "aaa".
//
// # Chunk Size
//
// Every append to a chunk in progress is preceded by a size check. When the
// chunk already holds MaxChunkSize characters the extractor fails with a
// *types.ChunkOverflowError. A chunk of exactly MaxChunkSize characters is
// accepted. The default ceiling is 4 MiB characters and can be changed for the
// process with CHUNKSTREAM_MAX_CHUNK_SIZE (or MAX_CHUNK_SIZE).
//
// # Repeated Open Tags
//
// Nested tags are not supported. An open tag that completes inside a chunk is
// handled by Config.NestedOpen: appended to the chunk (the default), treated as
// a restart, or rejected with types.ErrNestedOpenTag.
package chunker
