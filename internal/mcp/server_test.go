package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/chunkstream/internal/config"
	"github.com/dshills/chunkstream/internal/storage"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	s := newServer(&config.Config{
		OpenTag:      "<tag>",
		CloseTag:     "</tag>",
		MaxChunkSize: 1024,
		Workers:      2,
		BlockSize:    64,
	}, store)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func callRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func decodeResult(t *testing.T, res *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)

	var text string
	switch c := res.Content[0].(type) {
	case mcp.TextContent:
		text = c.Text
	case *mcp.TextContent:
		text = c.Text
	default:
		t.Fatalf("unexpected content type %T", c)
	}

	out := map[string]interface{}{}
	require.NoError(t, json.Unmarshal([]byte(text), &out))
	return out
}

func requireMCPError(t *testing.T, err error, code int) *MCPError {
	t.Helper()
	require.Error(t, err)
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, code, mcpErr.Code)
	return mcpErr
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestNewServer(t *testing.T) {
	s, err := NewServer(&config.Config{DBPath: t.TempDir()})
	require.NoError(t, err)
	defer s.Close()

	assert.NotNil(t, s.indexer)
	assert.NotNil(t, s.searcher)
	assert.NotNil(t, s.storage)
}

func TestExtractChunks_Text(t *testing.T) {
	s := testServer(t)
	res, err := s.handleExtractChunks(context.Background(), callRequest("extract_chunks", map[string]interface{}{
		"text": "<root><a><tag>hello</tag><b><tag>bye</tag></root>",
	}))
	require.NoError(t, err)

	out := decodeResult(t, res)
	assert.Equal(t, float64(2), out["chunk_count"])
	assert.Equal(t, float64(49), out["chars_scanned"])
	assert.Equal(t, "text", out["mode"])

	chunks := out["chunks"].([]interface{})
	require.Len(t, chunks, 2)
	first := chunks[0].(map[string]interface{})
	assert.Equal(t, "<tag>hello</tag>", first["content"])
	assert.Equal(t, float64(9), first["start"])
	assert.Equal(t, float64(25), first["end"])
	assert.Len(t, first["sha256"], 64)
}

func TestExtractChunks_TagOverridesAndFile(t *testing.T) {
	s := testServer(t)
	path := writeFile(t, t.TempDir(), "feed.xml", "<item>x</item><tag>ignored</tag>")

	res, err := s.handleExtractChunks(context.Background(), callRequest("extract_chunks", map[string]interface{}{
		"path":      path,
		"open_tag":  "<item>",
		"close_tag": "</item>",
		"byte_mode": true,
	}))
	require.NoError(t, err)

	out := decodeResult(t, res)
	assert.Equal(t, "bytes", out["mode"])
	chunks := out["chunks"].([]interface{})
	require.Len(t, chunks, 1)
	assert.Equal(t, "<item>x</item>", chunks[0].(map[string]interface{})["content"])
}

func TestExtractChunks_Overflow(t *testing.T) {
	s := testServer(t)
	_, err := s.handleExtractChunks(context.Background(), callRequest("extract_chunks", map[string]interface{}{
		"text":           "<tag>a</tag><tag>hello</tag>",
		"max_chunk_size": float64(8),
	}))

	mcpErr := requireMCPError(t, err, ErrorCodeChunkOverflow)
	data := mcpErr.Data.(map[string]interface{})
	assert.Equal(t, 8, data["max_chunk_size"])
	assert.Equal(t, 0, data["chunks_before"])
}

func TestExtractChunks_InvalidParams(t *testing.T) {
	s := testServer(t)
	ctx := context.Background()

	tests := []struct {
		name string
		args map[string]interface{}
		code int
	}{
		{"neither text nor path", map[string]interface{}{}, ErrorCodeInvalidParams},
		{"both text and path", map[string]interface{}{"text": "x", "path": "/tmp"}, ErrorCodeInvalidParams},
		{"zero max size", map[string]interface{}{"text": "x", "max_chunk_size": float64(0)}, ErrorCodeInvalidParams},
		{"bad nested policy", map[string]interface{}{"text": "x", "nested_open": "sideways"}, ErrorCodeInvalidParams},
		{"relative path", map[string]interface{}{"path": "rel/file.xml"}, ErrorCodeRootNotFound},
		{"directory path", map[string]interface{}{"path": t.TempDir()}, ErrorCodeRootNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.handleExtractChunks(ctx, callRequest("extract_chunks", tt.args))
			requireMCPError(t, err, tt.code)
		})
	}

	_, err := s.handleExtractChunks(ctx, mcp.CallToolRequest{})
	requireMCPError(t, err, ErrorCodeInvalidParams)
}

func TestExtractChunks_NestedError(t *testing.T) {
	s := testServer(t)
	_, err := s.handleExtractChunks(context.Background(), callRequest("extract_chunks", map[string]interface{}{
		"text":        "<tag>a<tag>b</tag>",
		"nested_open": "error",
	}))
	requireMCPError(t, err, ErrorCodeInternalError)
}

func TestIndexSearchStatus(t *testing.T) {
	s := testServer(t)
	ctx := context.Background()
	dir := t.TempDir()
	writeFile(t, dir, "a.xml", "<tag>red apples</tag><tag>green pears</tag>")
	writeFile(t, dir, "sub/b.xml", "<tag>more red apples</tag>")
	writeFile(t, dir, "skip.txt", "<tag>apples</tag>")

	// Not indexed yet
	res, err := s.handleGetStatus(ctx, callRequest("get_status", map[string]interface{}{"path": dir}))
	require.NoError(t, err)
	assert.Equal(t, false, decodeResult(t, res)["indexed"])

	_, err = s.handleSearchChunks(ctx, callRequest("search_chunks", map[string]interface{}{"path": dir, "query": "apples"}))
	requireMCPError(t, err, ErrorCodeNotIndexed)

	res, err = s.handleIndexDirectory(ctx, callRequest("index_directory", map[string]interface{}{
		"path":    dir,
		"include": []interface{}{"*.xml"},
	}))
	require.NoError(t, err)
	out := decodeResult(t, res)
	assert.Equal(t, true, out["indexed"])
	assert.Equal(t, float64(2), out["files_indexed"])
	assert.Equal(t, float64(3), out["chunks_created"])
	assert.NotEmpty(t, out["run_id"])

	res, err = s.handleSearchChunks(ctx, callRequest("search_chunks", map[string]interface{}{
		"path":  dir,
		"query": "red apples",
	}))
	require.NoError(t, err)
	out = decodeResult(t, res)
	results := out["results"].([]interface{})
	require.Len(t, results, 2)
	files := []interface{}{
		results[0].(map[string]interface{})["file"],
		results[1].(map[string]interface{})["file"],
	}
	assert.ElementsMatch(t, []interface{}{"a.xml", "sub/b.xml"}, files)

	res, err = s.handleSearchChunks(ctx, callRequest("search_chunks", map[string]interface{}{
		"path":         dir,
		"query":        "apples",
		"file_pattern": "sub/*",
	}))
	require.NoError(t, err)
	results = decodeResult(t, res)["results"].([]interface{})
	require.Len(t, results, 1)

	res, err = s.handleGetStatus(ctx, callRequest("get_status", map[string]interface{}{"path": dir}))
	require.NoError(t, err)
	out = decodeResult(t, res)
	assert.Equal(t, true, out["indexed"])
	stats := out["statistics"].(map[string]interface{})
	assert.Equal(t, float64(2), stats["files_count"])
	assert.Equal(t, float64(3), stats["chunks_count"])
	root := out["root"].(map[string]interface{})
	assert.Equal(t, "<tag>", root["open_tag"])
	health := out["health"].(map[string]interface{})
	assert.Equal(t, false, health["indexing"])
	assert.Equal(t, true, health["fts_indexes_built"])
}

func TestIndexDirectory_ReportsFailures(t *testing.T) {
	s := testServer(t)
	dir := t.TempDir()
	writeFile(t, dir, "big.xml", "<tag>far too long for the limit</tag>")

	res, err := s.handleIndexDirectory(context.Background(), callRequest("index_directory", map[string]interface{}{
		"path":           dir,
		"max_chunk_size": float64(10),
	}))
	require.NoError(t, err)
	out := decodeResult(t, res)
	assert.Equal(t, float64(1), out["files_failed"])
	assert.Len(t, out["errors"], 1)
}

func TestExtractChunks_NoTagsConfigured(t *testing.T) {
	s := testServer(t)
	s.cfg.OpenTag = ""
	s.cfg.CloseTag = ""

	_, err := s.handleExtractChunks(context.Background(), callRequest("extract_chunks", map[string]interface{}{
		"text": "<tag>x</tag>",
	}))
	requireMCPError(t, err, ErrorCodeInvalidParams)
}

func TestSearchChunks_Validation(t *testing.T) {
	s := testServer(t)
	ctx := context.Background()
	dir := t.TempDir()

	_, err := s.handleSearchChunks(ctx, callRequest("search_chunks", map[string]interface{}{"path": dir}))
	requireMCPError(t, err, ErrorCodeEmptyQuery)

	_, err = s.handleSearchChunks(ctx, callRequest("search_chunks", map[string]interface{}{"path": dir, "query": "x", "limit": float64(500)}))
	requireMCPError(t, err, ErrorCodeInvalidParams)

	_, err = s.handleSearchChunks(ctx, callRequest("search_chunks", map[string]interface{}{"query": "x"}))
	requireMCPError(t, err, ErrorCodeInvalidParams)
}

func TestValidatePath(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "f.txt", "x")

	assert.ErrorIs(t, validatePath(""), ErrPathRequired)
	assert.ErrorIs(t, validatePath("relative"), ErrPathNotAbsolute)
	assert.ErrorIs(t, validatePath(filepath.Join(dir, "missing")), ErrPathNotFound)
	assert.ErrorIs(t, validatePath(file), ErrNotDirectory)
	assert.NoError(t, validatePath(dir))

	assert.ErrorIs(t, validateFile(dir), ErrNotRegularFile)
	assert.NoError(t, validateFile(file))
}

func TestArgumentHelpers(t *testing.T) {
	args := map[string]interface{}{
		"b":   true,
		"f":   float64(3),
		"i":   7,
		"s":   "str",
		"arr": []interface{}{"a", 1, "b"},
	}
	assert.True(t, getBoolDefault(args, "b", false))
	assert.True(t, getBoolDefault(args, "missing", true))
	assert.Equal(t, 3, getIntDefault(args, "f", 0))
	assert.Equal(t, 7, getIntDefault(args, "i", 0))
	assert.Equal(t, 9, getIntDefault(args, "missing", 9))
	assert.Equal(t, "str", getStringDefault(args, "s", ""))
	assert.Equal(t, []string{"a", "b"}, getStringSlice(args, "arr"))
	assert.Nil(t, getStringSlice(args, "missing"))
}

func TestToolSchemas(t *testing.T) {
	for _, tool := range []mcp.Tool{extractChunksTool(), indexDirectoryTool(), searchChunksTool(), getStatusTool()} {
		assert.NotEmpty(t, tool.Name)
		assert.NotEmpty(t, tool.Description)
		assert.Equal(t, "object", tool.InputSchema.Type)
	}
	assert.Contains(t, indexDirectoryTool().InputSchema.Properties, "open_tag")
	assert.Equal(t, []string{"path", "query"}, searchChunksTool().InputSchema.Required)
}
