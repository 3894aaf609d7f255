// Package indexer extracts tagged chunks from every file under a directory
// and stores them for search.
//
// # Basic Usage
//
//	idx := indexer.New(store)
//
//	stats, err := idx.IndexRoot(ctx, "/data/feeds", &indexer.Config{
//	    Chunker: chunker.Config{OpenTag: "<item>", CloseTag: "</item>"},
//	    Include: []string{"*.xml", "*.xml.gz"},
//	})
//
//	fmt.Printf("Indexed %d files in %v\n", stats.FilesIndexed, stats.Duration)
//
// # Pipeline
//
//  1. Discovery: walk the root, skip hidden entries, apply include and exclude globs
//  2. Incremental decision: compare SHA-256 hashes, skip unchanged files
//  3. Extraction: one fresh extractor per file, bounded by a weighted semaphore
//  4. Store: persist each batch of files in one transaction
//  5. Cleanup: drop files that disappeared since the last run
//
// Changing the open tag, close tag or size ceiling of a root, or setting
// ForceReindex, rescans every file.
//
// # Failures
//
// A file whose scan fails, for example with a chunk overflow, keeps the
// chunks it emitted before the failure. The error is stored on the file row
// and listed in Statistics.ErrorMessages; the run continues.
//
// Only one run may be active per Indexer; a concurrent call returns
// ErrIndexInProgress.
package indexer
