package mcp

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/chunkstream/internal/charsource"
	"github.com/dshills/chunkstream/internal/chunker"
	"github.com/dshills/chunkstream/internal/indexer"
	"github.com/dshills/chunkstream/internal/searcher"
	"github.com/dshills/chunkstream/internal/storage"
	"github.com/dshills/chunkstream/internal/stream"
	"github.com/dshills/chunkstream/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeRootNotFound       = -32001 // Path is not a readable directory or file
	ErrorCodeIndexingInProgress = -32002 // Another indexing operation is already running
	ErrorCodeNotIndexed         = -32003 // Directory not indexed
	ErrorCodeEmptyQuery         = -32004 // Query parameter is empty
	ErrorCodeChunkOverflow      = -32005 // A chunk exceeded max_chunk_size
)

// handleExtractChunks handles the extract_chunks tool invocation
func (s *Server) handleExtractChunks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	text, hasText := args["text"].(string)
	path := getStringDefault(args, "path", "")
	if hasText == (path != "") {
		return nil, newMCPError(ErrorCodeInvalidParams, "exactly one of text or path is required", map[string]interface{}{
			"param":  "text|path",
			"reason": "missing or both given",
		})
	}

	cfg, err := s.chunkerConfig(args)
	if err != nil {
		return nil, err
	}
	policy, perr := chunker.ParseNestedOpenPolicy(getStringDefault(args, "nested_open", ""))
	if perr != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid nested_open", map[string]interface{}{
			"param":   "nested_open",
			"allowed": []string{"append", "restart", "error"},
		})
	}
	cfg.NestedOpen = policy

	ex, err := newExtractor(cfg)
	if err != nil {
		return nil, err
	}

	mode := modeFromArgs(args)
	var src *charsource.Reader
	if hasText {
		src = charsource.NewReader(strings.NewReader(text), mode, s.cfg.BlockSize)
	} else {
		if verr := validateFile(path); verr != nil {
			return nil, newMCPError(ErrorCodeRootNotFound, "invalid path", map[string]interface{}{
				"param":  "path",
				"reason": verr.Error(),
			})
		}
		src, err = charsource.Open(path, mode, s.cfg.BlockSize)
		if err != nil {
			return nil, newMCPError(ErrorCodeInternalError, "failed to open input", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
	defer func() { _ = src.Close() }()

	chunks := make([]map[string]interface{}, 0)
	result, err := stream.Scan(ctx, src, ex, func(c *types.Chunk) error {
		chunks = append(chunks, chunkJSON(c))
		return nil
	})
	if err != nil {
		var overflow *types.ChunkOverflowError
		if errors.As(err, &overflow) {
			return nil, newMCPError(ErrorCodeChunkOverflow, overflow.Error(), map[string]interface{}{
				"max_chunk_size": overflow.Limit,
				"offset":         overflow.Offset,
				"chunks_before":  len(chunks),
			})
		}
		return nil, newMCPError(ErrorCodeInternalError, "extraction failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"chunks":        chunks,
		"chunk_count":   result.Chunks,
		"chars_scanned": result.Chars,
		"mode":          mode.String(),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleIndexDirectory handles the index_directory tool invocation
func (s *Server) handleIndexDirectory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, err := requirePath(args)
	if err != nil {
		return nil, err
	}

	cfg, err := s.chunkerConfig(args)
	if err != nil {
		return nil, err
	}
	cfg.NestedOpen = s.cfg.NestedOpen
	if _, err := newExtractor(cfg); err != nil {
		return nil, err
	}

	stats, err := s.indexer.IndexRoot(ctx, path, &indexer.Config{
		Chunker:      cfg,
		Mode:         modeFromArgs(args),
		BlockSize:    s.cfg.BlockSize,
		Workers:      s.cfg.Workers,
		Include:      getStringSlice(args, "include"),
		Exclude:      getStringSlice(args, "exclude"),
		ForceReindex: getBoolDefault(args, "force_reindex", false),
	})
	if errors.Is(err, indexer.ErrIndexInProgress) {
		return nil, newMCPError(ErrorCodeIndexingInProgress, "indexing already in progress", map[string]interface{}{
			"path": path,
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	s.searcher.Invalidate()

	response := map[string]interface{}{
		"indexed":        true,
		"run_id":         stats.RunID,
		"files_indexed":  stats.FilesIndexed,
		"files_skipped":  stats.FilesSkipped,
		"files_failed":   stats.FilesFailed,
		"files_removed":  stats.FilesRemoved,
		"chunks_created": stats.ChunksCreated,
		"chars_scanned":  stats.CharsScanned,
		"duration_ms":    stats.Duration.Milliseconds(),
	}

	if len(stats.ErrorMessages) > 0 {
		errorCount := len(stats.ErrorMessages)
		if errorCount > 5 {
			response["errors"] = stats.ErrorMessages[:5]
			response["error_count"] = errorCount
		} else {
			response["errors"] = stats.ErrorMessages
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSearchChunks handles the search_chunks tool invocation
func (s *Server) handleSearchChunks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, err := requirePath(args)
	if err != nil {
		return nil, err
	}

	query, ok := args["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", 10)
	if limit < 1 || limit > 100 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	root, err := s.lookupRoot(ctx, path)
	if err != nil {
		return nil, err
	}

	var filters *storage.SearchFilters
	pattern := getStringDefault(args, "file_pattern", "")
	minRel, _ := args["min_relevance"].(float64)
	if pattern != "" || minRel > 0 {
		filters = &storage.SearchFilters{FilePattern: pattern, MinRelevance: minRel}
	}

	resp, err := s.searcher.Search(ctx, searcher.SearchRequest{
		RootID:   root.ID,
		Query:    query,
		Limit:    limit,
		Filters:  filters,
		UseCache: true,
	})
	if errors.Is(err, storage.ErrEmptyQuery) {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query has no searchable terms", map[string]interface{}{
			"param": "query",
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	results := make([]map[string]interface{}, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, map[string]interface{}{
			"rank":            r.Rank,
			"relevance_score": r.RelevanceScore,
			"file":            r.File.Path,
			"seq":             r.Seq,
			"start_offset":    r.File.StartOffset,
			"end_offset":      r.File.EndOffset,
			"content":         r.Content,
		})
	}

	response := map[string]interface{}{
		"results":       results,
		"total_results": resp.TotalResults,
		"cache_hit":     resp.CacheHit,
		"duration_ms":   resp.Duration.Milliseconds(),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, err := requirePath(args)
	if err != nil {
		return nil, err
	}

	root, err := s.storage.GetRoot(ctx, path)
	if errors.Is(err, storage.ErrNotFound) {
		response := map[string]interface{}{
			"indexed": false,
			"path":    path,
			"message": "Directory not indexed. Use the index_directory tool to index it.",
		}
		return mcp.NewToolResultText(formatJSON(response)), nil
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get root", map[string]interface{}{
			"error": err.Error(),
		})
	}

	status, err := s.storage.GetStatus(ctx, root.ID)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"indexed": true,
		"root": map[string]interface{}{
			"path":            root.RootPath,
			"open_tag":        root.OpenTag,
			"close_tag":       root.CloseTag,
			"max_chunk_size":  root.MaxChunkSize,
			"last_indexed_at": root.LastIndexedAt.Format("2006-01-02T15:04:05Z07:00"),
		},
		"statistics": map[string]interface{}{
			"files_count":   status.FilesCount,
			"failed_files":  status.FailedFiles,
			"chunks_count":  status.ChunksCount,
			"index_size_mb": fmt.Sprintf("%.2f", status.IndexSizeMB),
		},
		"health": map[string]interface{}{
			"database_accessible": status.Health.DatabaseAccessible,
			"fts_indexes_built":   status.Health.FTSIndexesBuilt,
			"indexing":            s.indexer.IsIndexing(),
		},
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// chunkerConfig builds extractor settings from tool arguments and config defaults
func (s *Server) chunkerConfig(args map[string]interface{}) (chunker.Config, error) {
	maxSize := getIntDefault(args, "max_chunk_size", 0)
	if _, given := args["max_chunk_size"]; given && maxSize < 1 {
		return chunker.Config{}, newMCPError(ErrorCodeInvalidParams, "max_chunk_size must be positive", map[string]interface{}{
			"param": "max_chunk_size",
			"value": maxSize,
		})
	}
	return s.cfg.ChunkerConfig(
		getStringDefault(args, "open_tag", ""),
		getStringDefault(args, "close_tag", ""),
		maxSize,
	), nil
}

// newExtractor creates an extractor, reporting bad settings as invalid params
func newExtractor(cfg chunker.Config) (*chunker.Extractor, error) {
	ex, err := chunker.New(cfg)
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid extractor settings", map[string]interface{}{
			"param":  "open_tag|close_tag|max_chunk_size",
			"reason": err.Error(),
		})
	}
	return ex, nil
}

// lookupRoot finds an indexed root or reports it as not indexed
func (s *Server) lookupRoot(ctx context.Context, path string) (*storage.ScanRoot, error) {
	root, err := s.storage.GetRoot(ctx, path)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, newMCPError(ErrorCodeNotIndexed, "directory not indexed", map[string]interface{}{
			"path": path,
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get root", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return root, nil
}

// requirePath extracts and validates the path argument of directory tools
func requirePath(args map[string]interface{}) (string, error) {
	path, ok := args["path"].(string)
	if !ok || path == "" {
		return "", newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}
	if err := validatePath(path); err != nil {
		return "", newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}
	return filepath.Clean(path), nil
}

func modeFromArgs(args map[string]interface{}) charsource.Mode {
	if getBoolDefault(args, "byte_mode", false) {
		return charsource.ModeBytes
	}
	return charsource.ModeText
}

func chunkJSON(c *types.Chunk) map[string]interface{} {
	return map[string]interface{}{
		"seq":     c.Seq,
		"content": c.Content,
		"start":   c.Start,
		"end":     c.End,
		"sha256":  hex.EncodeToString(c.ContentHash[:]),
	}
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// validatePath checks that a path is an absolute, readable directory
func validatePath(path string) error {
	if path == "" {
		return ErrPathRequired
	}
	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}
	if !info.IsDir() {
		return ErrNotDirectory
	}

	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()
	return nil
}

// validateFile checks that a path is an absolute regular file
func validateFile(path string) error {
	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}
	if !info.Mode().IsRegular() {
		return ErrNotRegularFile
	}
	return nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// getStringSlice extracts a string array parameter, skipping non-string items
func getStringSlice(args map[string]interface{}, key string) []string {
	switch v := args[key].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Validation helpers

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
	ErrNotRegularFile  = errors.New("path is not a regular file")
)
