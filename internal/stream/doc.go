// Package stream drives a chunk extractor from a character source.
//
// The driver is a plain pull loop: read one character, feed it, and only then
// read the next. It owns no goroutines. Cancellation is checked every few
// thousand characters, and the first extractor error ends the scan because a
// chunk that overflowed cannot be resumed.
//
//	ex, _ := chunker.New(chunker.Config{OpenTag: "<tag>", CloseTag: "</tag>"})
//	res, err := stream.Scan(ctx, src, ex, func(c *types.Chunk) error {
//	    fmt.Println(c.Content)
//	    return nil
//	})
package stream
