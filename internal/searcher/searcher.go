package searcher

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/chunkstream/internal/storage"
	"github.com/dshills/chunkstream/pkg/types"
)

const (
	defaultLimit     = 10
	maxLimit         = 100
	defaultCacheSize = 1000
	defaultCacheTTL  = time.Hour
)

// ErrEmptyQuery is returned when a request has no query text
var ErrEmptyQuery = errors.New("query cannot be empty")

// SearchRequest contains parameters for a search operation
type SearchRequest struct {
	RootID   int64
	Query    string
	Limit    int
	Filters  *storage.SearchFilters
	UseCache bool
	CacheTTL time.Duration
}

// SearchResponse contains search results and metadata
type SearchResponse struct {
	Results      []types.SearchResult
	TotalResults int
	Duration     time.Duration
	CacheHit     bool
}

// cacheEntry represents a cached search response with expiration time
type cacheEntry struct {
	response  *SearchResponse
	expiresAt time.Time
}

// Searcher runs ranked full-text queries over stored chunks
type Searcher struct {
	storage storage.Storage
	cache   *lru.Cache[[32]byte, *cacheEntry]
}

// NewSearcher creates a new Searcher instance
func NewSearcher(store storage.Storage) *Searcher {
	cache, err := lru.New[[32]byte, *cacheEntry](defaultCacheSize)
	if err != nil {
		// Only fails for a non-positive size
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}

	return &Searcher{
		storage: store,
		cache:   cache,
	}
}

// Search returns the chunks of a root that best match the query
func (s *Searcher) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	startTime := time.Now()

	if err := validateRequest(&req); err != nil {
		return nil, fmt.Errorf("invalid search request: %w", err)
	}

	hash := computeQueryHash(req)
	if req.UseCache {
		if cached := s.checkCache(hash); cached != nil {
			cached.CacheHit = true
			cached.Duration = time.Since(startTime)
			return cached, nil
		}
	}

	hits, err := s.storage.SearchText(ctx, req.RootID, req.Query, req.Limit, req.Filters)
	if err != nil {
		return nil, err
	}

	results, err := s.fetchResults(ctx, hits)
	if err != nil {
		return nil, err
	}

	response := &SearchResponse{
		Results:      results,
		TotalResults: len(results),
		Duration:     time.Since(startTime),
	}

	if req.UseCache && len(results) > 0 {
		s.cache.Add(hash, &cacheEntry{
			response:  copySearchResponse(response),
			expiresAt: time.Now().Add(req.CacheTTL),
		})
	}

	return response, nil
}

// fetchResults loads chunk content and file paths for ranked hits
func (s *Searcher) fetchResults(ctx context.Context, hits []storage.TextResult) ([]types.SearchResult, error) {
	results := make([]types.SearchResult, 0, len(hits))
	paths := make(map[int64]string)

	for _, hit := range hits {
		chunk, err := s.storage.GetChunk(ctx, hit.ChunkID)
		if errors.Is(err, storage.ErrNotFound) {
			continue // Deleted since the query ran
		}
		if err != nil {
			return nil, err
		}

		path, ok := paths[chunk.FileID]
		if !ok {
			file, err := s.storage.GetFileByID(ctx, chunk.FileID)
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			path = file.FilePath
			paths[chunk.FileID] = path
		}

		results = append(results, types.SearchResult{
			ChunkID:        chunk.ID,
			Rank:           len(results) + 1,
			RelevanceScore: hit.Score,
			File: &types.FileInfo{
				Path:        path,
				StartOffset: chunk.StartOffset,
				EndOffset:   chunk.EndOffset,
			},
			Seq:     chunk.Seq,
			Content: chunk.Content,
		})
	}

	return results, nil
}

// validateRequest ensures the request is valid and fills in defaults
func validateRequest(req *SearchRequest) error {
	if strings.TrimSpace(req.Query) == "" {
		return ErrEmptyQuery
	}
	if req.Limit <= 0 {
		req.Limit = defaultLimit
	}
	if req.Limit > maxLimit {
		req.Limit = maxLimit
	}
	if req.CacheTTL == 0 {
		req.CacheTTL = defaultCacheTTL
	}
	return nil
}

// checkCache returns a copy of a live cached response, or nil
func (s *Searcher) checkCache(hash [32]byte) *SearchResponse {
	entry, found := s.cache.Get(hash)
	if !found {
		return nil
	}
	if time.Now().After(entry.expiresAt) {
		s.cache.Remove(hash)
		return nil
	}
	return copySearchResponse(entry.response)
}

// copySearchResponse creates a deep copy of a SearchResponse
func copySearchResponse(src *SearchResponse) *SearchResponse {
	dst := &SearchResponse{
		TotalResults: src.TotalResults,
		Duration:     src.Duration,
		CacheHit:     src.CacheHit,
		Results:      make([]types.SearchResult, len(src.Results)),
	}
	for i, result := range src.Results {
		dst.Results[i] = result
		if result.File != nil {
			fileCopy := *result.File
			dst.Results[i].File = &fileCopy
		}
	}
	return dst
}

// computeQueryHash computes the cache key of a request
func computeQueryHash(req SearchRequest) [32]byte {
	var data strings.Builder
	fmt.Fprintf(&data, "%d|%d|%s", req.RootID, req.Limit, req.Query)
	if req.Filters != nil {
		fmt.Fprintf(&data, "|filters:%s|%.2f", req.Filters.FilePattern, req.Filters.MinRelevance)
	}
	return sha256.Sum256([]byte(data.String()))
}

// Invalidate drops every cached response. Called after a root is reindexed.
func (s *Searcher) Invalidate() {
	s.cache.Purge()
}

// CacheLen returns the number of cached responses
func (s *Searcher) CacheLen() int {
	return s.cache.Len()
}
