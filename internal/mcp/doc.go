// Package mcp implements the Model Context Protocol (MCP) server for chunkstream.
//
// The server exposes four tools:
//   - extract_chunks: Extract open_tag...close_tag chunks from text or a file
//   - index_directory: Extract and store the chunks of every file under a directory
//   - search_chunks: Keyword search over stored chunks
//   - get_status: Check indexing status and statistics
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport. Stdout is reserved for
// protocol messages; all logging goes to stderr or the configured log file.
//
//	chunkstream serve
//
// # Tool: extract_chunks
//
//	Request:
//	{
//	  "name": "extract_chunks",
//	  "arguments": {
//	    "text": "<root><tag>hello</tag></root>",
//	    "open_tag": "<tag>",
//	    "close_tag": "</tag>",
//	    "max_chunk_size": 1024
//	  }
//	}
//
//	Response:
//	{
//	  "chunk_count": 1,
//	  "chars_scanned": 29,
//	  "mode": "text",
//	  "chunks": [
//	    {"seq": 0, "content": "<tag>hello</tag>", "start": 6, "end": 22, "sha256": "..."}
//	  ]
//	}
//
// A chunk larger than max_chunk_size fails the whole call with code -32005.
// The error data carries max_chunk_size, offset and chunks_before.
//
// # Error Handling
//
// Error codes:
//   - -32602: Invalid params (missing/invalid arguments)
//   - -32603: Internal error (database, filesystem, etc.)
//   - -32001: Path not found or not readable
//   - -32002: Indexing in progress
//   - -32003: Directory not indexed
//   - -32004: Empty query
//   - -32005: Chunk overflow
//
// # MCP Client Configuration
//
//	{
//	  "mcpServers": {
//	    "chunkstream": {
//	      "command": "/usr/local/bin/chunkstream",
//	      "args": ["serve"],
//	      "env": {
//	        "CHUNKSTREAM_OPEN_TAG": "<item>",
//	        "CHUNKSTREAM_CLOSE_TAG": "</item>"
//	      }
//	    }
//	  }
//	}
package mcp
