package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/chunkstream/internal/config"
	"github.com/dshills/chunkstream/internal/indexer"
	"github.com/dshills/chunkstream/internal/logger"
	"github.com/dshills/chunkstream/internal/searcher"
	"github.com/dshills/chunkstream/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "chunkstream"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	cfg      *config.Config
	storage  storage.Storage
	indexer  *indexer.Indexer
	searcher *searcher.Searcher
	log      *logger.Logger
}

// NewServer opens the store named by cfg and registers the tools
func NewServer(cfg *config.Config) (*Server, error) {
	dbDir, err := cfg.ResolveDBPath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database path: %w", err)
	}

	store, err := storage.OpenDir(dbDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	return newServer(cfg, store), nil
}

func newServer(cfg *config.Config, store storage.Storage) *Server {
	s := &Server{
		mcp:      server.NewMCPServer(ServerName, ServerVersion),
		cfg:      cfg,
		storage:  store,
		indexer:  indexer.New(store),
		searcher: searcher.NewSearcher(store),
		log:      logger.Global().WithPrefix("mcp"),
	}
	s.registerTools()
	return s
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.storage.Close() }()
	return server.ServeStdio(s.mcp)
}

// Close releases the store without serving
func (s *Server) Close() error {
	return s.storage.Close()
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(extractChunksTool(), s.handleExtractChunks)
	s.mcp.AddTool(indexDirectoryTool(), s.handleIndexDirectory)
	s.mcp.AddTool(searchChunksTool(), s.handleSearchChunks)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}
