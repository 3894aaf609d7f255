// Package searcher answers keyword queries over indexed chunks.
//
// Queries run through the FTS5 index in storage and are ranked by bm25,
// normalized to 0..1 (higher is better). Each result carries the chunk text,
// its file path relative to the scan root and its character offsets.
//
//	s := searcher.NewSearcher(store)
//	resp, err := s.Search(ctx, searcher.SearchRequest{
//	    RootID:   root.ID,
//	    Query:    "invoice total",
//	    Limit:    10,
//	    UseCache: true,
//	})
//
// Responses are cached in an LRU keyed by the request, with a TTL (one hour
// by default). Invalidate clears the cache; call it after reindexing.
package searcher
