package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// tagProperties are the extractor settings shared by extract_chunks and index_directory
func tagProperties() map[string]interface{} {
	return map[string]interface{}{
		"open_tag": map[string]interface{}{
			"type":        "string",
			"description": "Literal text that opens a chunk, e.g. '<item>'. Defaults to CHUNKSTREAM_OPEN_TAG",
		},
		"close_tag": map[string]interface{}{
			"type":        "string",
			"description": "Literal text that closes a chunk, e.g. '</item>'. Defaults to CHUNKSTREAM_CLOSE_TAG",
		},
		"max_chunk_size": map[string]interface{}{
			"type":        "integer",
			"description": "Largest chunk in characters, tags included. Larger chunks fail the scan",
			"minimum":     1,
		},
		"byte_mode": map[string]interface{}{
			"type":        "boolean",
			"description": "Treat each byte as one character instead of decoding UTF-8",
			"default":     false,
		},
	}
}

// extractChunksTool returns the tool definition for extract_chunks
func extractChunksTool() mcp.Tool {
	props := tagProperties()
	props["text"] = map[string]interface{}{
		"type":        "string",
		"description": "Text to scan. Exactly one of text or path is required",
	}
	props["path"] = map[string]interface{}{
		"type":        "string",
		"description": "Absolute path of a file to scan; .gz files are decompressed",
	}
	props["nested_open"] = map[string]interface{}{
		"type":        "string",
		"description": "What to do when the open tag repeats inside a chunk",
		"enum":        []string{"append", "restart", "error"},
		"default":     "append",
	}

	return mcp.Tool{
		Name:        "extract_chunks",
		Description: "Extract every complete open_tag...close_tag chunk from text or a file in one streaming pass",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: props,
		},
	}
}

// indexDirectoryTool returns the tool definition for index_directory
func indexDirectoryTool() mcp.Tool {
	props := tagProperties()
	props["path"] = map[string]interface{}{
		"type":        "string",
		"description": "Absolute path of the directory to index",
	}
	props["include"] = map[string]interface{}{
		"type":        "array",
		"description": "Glob patterns a file must match (path or base name), e.g. '*.xml'",
		"items": map[string]interface{}{
			"type": "string",
		},
	}
	props["exclude"] = map[string]interface{}{
		"type":        "array",
		"description": "Glob patterns of files or directories to skip",
		"items": map[string]interface{}{
			"type": "string",
		},
	}
	props["force_reindex"] = map[string]interface{}{
		"type":        "boolean",
		"description": "If true, rescan every file ignoring stored hashes",
		"default":     false,
	}

	return mcp.Tool{
		Name:        "index_directory",
		Description: "Extract chunks from every file under a directory and store them for search",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: props,
			Required:   []string{"path"},
		},
	}
}

// searchChunksTool returns the tool definition for search_chunks
func searchChunksTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_chunks",
		Description: "Keyword search over the chunks of an indexed directory, ranked by BM25",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path of an indexed directory",
				},
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search keywords",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
				"file_pattern": map[string]interface{}{
					"type":        "string",
					"description": "Glob on the relative file path, e.g. 'feeds/*'",
				},
				"min_relevance": map[string]interface{}{
					"type":        "number",
					"description": "Minimum relevance score threshold (0.0-1.0)",
					"minimum":     0.0,
					"maximum":     1.0,
				},
			},
			Required: []string{"path", "query"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Query indexing status and statistics for a directory",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path of an indexed directory",
				},
			},
			Required: []string{"path"},
		},
	}
}
