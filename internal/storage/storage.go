package storage

import (
	"context"
	"time"

	"github.com/dshills/chunkstream/pkg/types"
)

// Storage defines the interface for persisting and querying extracted chunks
type Storage interface {
	// Scan root operations
	CreateRoot(ctx context.Context, root *ScanRoot) error
	GetRoot(ctx context.Context, rootPath string) (*ScanRoot, error)
	GetRootByID(ctx context.Context, rootID int64) (*ScanRoot, error)
	UpdateRoot(ctx context.Context, root *ScanRoot) error
	ListRoots(ctx context.Context) ([]*ScanRoot, error)

	// File operations
	UpsertFile(ctx context.Context, file *File) error
	GetFile(ctx context.Context, rootID int64, filePath string) (*File, error)
	GetFileByID(ctx context.Context, fileID int64) (*File, error)
	DeleteFile(ctx context.Context, fileID int64) error
	ListFiles(ctx context.Context, rootID int64) ([]*File, error)

	// Chunk operations
	InsertChunk(ctx context.Context, chunk *Chunk) error
	GetChunk(ctx context.Context, chunkID int64) (*Chunk, error)
	ListChunksByFile(ctx context.Context, fileID int64) ([]*Chunk, error)
	DeleteChunksByFile(ctx context.Context, fileID int64) error

	// Search operations
	SearchText(ctx context.Context, rootID int64, query string, limit int, filters *SearchFilters) ([]TextResult, error)

	// Status operations
	GetStatus(ctx context.Context, rootID int64) (*RootStatus, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage
}

// ScanRoot is a directory indexed with one pair of tags
type ScanRoot struct {
	ID            int64
	RootPath      string
	OpenTag       string
	CloseTag      string
	MaxChunkSize  int
	TotalFiles    int
	TotalChunks   int
	IndexVersion  string
	LastIndexedAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// SameTags reports whether the root was indexed with the given extractor settings
func (r *ScanRoot) SameTags(openTag, closeTag string, maxChunkSize int) bool {
	return r.OpenTag == openTag && r.CloseTag == closeTag && r.MaxChunkSize == maxChunkSize
}

// File represents a scanned file under a root
type File struct {
	ID            int64
	RootID        int64
	FilePath      string // Relative to root, slash separated
	ContentHash   [32]byte
	ModTime       time.Time
	SizeBytes     int64
	ScanError     *string // Nullable
	ChunkCount    int
	LastIndexedAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Chunk is an extracted chunk persisted for a file
type Chunk struct {
	ID          int64
	FileID      int64
	Seq         int
	Content     string
	ContentHash [32]byte
	StartOffset int64
	EndOffset   int64
	CreatedAt   time.Time
}

// FromTypesChunk converts an extracted chunk into its storage form
func FromTypesChunk(c *types.Chunk, fileID int64) *Chunk {
	return &Chunk{
		FileID:      fileID,
		Seq:         c.Seq,
		Content:     c.Content,
		ContentHash: c.ContentHash,
		StartOffset: c.Start,
		EndOffset:   c.End,
	}
}

// ToTypesChunk converts a stored chunk back into an extracted chunk
func (c *Chunk) ToTypesChunk() *types.Chunk {
	return &types.Chunk{
		Seq:         c.Seq,
		Content:     c.Content,
		ContentHash: c.ContentHash,
		Start:       c.StartOffset,
		End:         c.EndOffset,
	}
}

// SearchFilters contains filters for narrowing search results
type SearchFilters struct {
	FilePattern  string  // GLOB pattern on the relative file path
	MinRelevance float64 // Minimum normalized score
}

// TextResult represents a result from full-text search
type TextResult struct {
	ChunkID int64
	Score   float64 // bm25 normalized to 0..1, higher is better
}

// RootStatus contains statistics about an indexed root
type RootStatus struct {
	Root          *ScanRoot
	FilesCount    int
	FailedFiles   int
	ChunksCount   int
	IndexSizeMB   float64
	LastIndexedAt time.Time
	Health        HealthStatus
}

// HealthStatus represents the health of the index
type HealthStatus struct {
	DatabaseAccessible bool
	FTSIndexesBuilt    bool
}
