package indexer

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/dshills/chunkstream/internal/charsource"
	"github.com/dshills/chunkstream/internal/chunker"
	"github.com/dshills/chunkstream/internal/logger"
	"github.com/dshills/chunkstream/internal/storage"
	"github.com/dshills/chunkstream/internal/stream"
	"github.com/dshills/chunkstream/pkg/types"
)

// ErrIndexInProgress is returned when a run is already active on the indexer
var ErrIndexInProgress = errors.New("indexing already in progress")

const defaultBatchSize = 20

// Indexer coordinates the indexing pipeline: discover -> extract -> store
type Indexer struct {
	storage storage.Storage
	lock    IndexLock
	log     *logger.Logger
}

// Config contains configuration for an index run
type Config struct {
	Chunker      chunker.Config
	Mode         charsource.Mode
	BlockSize    int      // Reader block size (default: charsource.DefaultBlockSize)
	Workers      int      // Concurrent extractions (default: runtime.NumCPU())
	BatchSize    int      // Files committed per transaction (default: 20)
	Include      []string // Glob patterns a file must match; empty includes all
	Exclude      []string // Glob patterns that drop files or directories
	MaxFileSize  int64    // Files above this size are ignored; 0 means no limit
	ForceReindex bool
}

// Statistics contains statistics about an index run
type Statistics struct {
	RunID         string
	RootID        int64
	FilesIndexed  int
	FilesSkipped  int
	FilesFailed   int
	FilesRemoved  int
	ChunksCreated int
	CharsScanned  int64
	Duration      time.Duration
	ErrorMessages []string
}

// New creates a new Indexer instance
func New(store storage.Storage) *Indexer {
	return &Indexer{
		storage: store,
		log:     logger.Global().WithPrefix("indexer"),
	}
}

// IsIndexing reports whether a run is in progress
func (idx *Indexer) IsIndexing() bool {
	return idx.lock.Held()
}

// fileResult is the outcome of extracting one file
type fileResult struct {
	relPath  string
	hash     [32]byte
	modTime  time.Time
	size     int64
	existing *storage.File
	skipped  bool
	chunks   []*types.Chunk
	chars    int64
	err      error
}

// IndexRoot indexes every matching file under rootPath. Per-file failures,
// chunk overflow included, are recorded and do not stop the run.
func (idx *Indexer) IndexRoot(ctx context.Context, rootPath string, config *Config) (*Statistics, error) {
	if !idx.lock.TryAcquire() {
		return nil, ErrIndexInProgress
	}
	defer idx.lock.Release()

	if config == nil {
		config = &Config{}
	}
	cfg := *config
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.Chunker.MaxChunkSize == 0 {
		cfg.Chunker.MaxChunkSize = chunker.DefaultMaxChunkSize()
	}

	// Reject bad tags before touching the database
	if _, err := chunker.New(cfg.Chunker); err != nil {
		return nil, err
	}

	absRoot, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root path: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", absRoot)
	}

	startTime := time.Now()
	stats := &Statistics{
		RunID:         uuid.NewString(),
		ErrorMessages: make([]string, 0),
	}
	log := idx.log.WithPrefix(stats.RunID[:8])
	log.Info("indexing %s", absRoot)

	root, rebuild, err := idx.prepareRoot(ctx, absRoot, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare scan root: %w", err)
	}
	stats.RootID = root.ID

	files, err := discoverFiles(absRoot, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to discover files: %w", err)
	}

	existing, err := idx.storage.ListFiles(ctx, root.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list indexed files: %w", err)
	}
	known := make(map[string]*storage.File, len(existing))
	for _, f := range existing {
		known[f.FilePath] = f
	}

	seen := make(map[string]bool, len(files))
	for start := 0; start < len(files); start += cfg.BatchSize {
		end := min(start+cfg.BatchSize, len(files))

		results, err := idx.extractBatch(ctx, absRoot, files[start:end], known, rebuild, &cfg)
		if err != nil {
			return nil, err
		}
		for _, r := range results {
			seen[r.relPath] = true
		}
		if err := idx.storeBatch(ctx, root.ID, results, stats, log); err != nil {
			return nil, err
		}
	}

	removed, err := idx.removeMissing(ctx, existing, seen)
	if err != nil {
		return nil, fmt.Errorf("failed to remove deleted files: %w", err)
	}
	stats.FilesRemoved = removed

	if err := idx.updateRootStats(ctx, root); err != nil {
		return nil, fmt.Errorf("failed to update root stats: %w", err)
	}

	stats.Duration = time.Since(startTime)
	log.Info("indexed %d, skipped %d, failed %d, removed %d files; %d chunks in %s",
		stats.FilesIndexed, stats.FilesSkipped, stats.FilesFailed, stats.FilesRemoved,
		stats.ChunksCreated, stats.Duration)
	return stats, nil
}

// prepareRoot loads or creates the scan root. When the extractor settings
// differ from the stored ones, or a rebuild is forced, every file is rescanned.
func (idx *Indexer) prepareRoot(ctx context.Context, absRoot string, cfg *Config) (*storage.ScanRoot, bool, error) {
	tags := cfg.Chunker
	root, err := idx.storage.GetRoot(ctx, absRoot)
	if errors.Is(err, storage.ErrNotFound) {
		root = &storage.ScanRoot{
			RootPath:     absRoot,
			OpenTag:      tags.OpenTag,
			CloseTag:     tags.CloseTag,
			MaxChunkSize: tags.MaxChunkSize,
			IndexVersion: storage.CurrentSchemaVersion,
		}
		if err := idx.storage.CreateRoot(ctx, root); err != nil {
			return nil, false, err
		}
		return root, true, nil
	}
	if err != nil {
		return nil, false, err
	}

	if root.SameTags(tags.OpenTag, tags.CloseTag, tags.MaxChunkSize) && !cfg.ForceReindex {
		return root, false, nil
	}

	root.OpenTag = tags.OpenTag
	root.CloseTag = tags.CloseTag
	root.MaxChunkSize = tags.MaxChunkSize
	if err := idx.storage.UpdateRoot(ctx, root); err != nil {
		return nil, false, err
	}
	return root, true, nil
}

// extractBatch hashes and extracts a batch of files concurrently
func (idx *Indexer) extractBatch(ctx context.Context, absRoot string, paths []string,
	known map[string]*storage.File, rebuild bool, cfg *Config) ([]*fileResult, error) {

	results := make([]*fileResult, len(paths))
	sem := semaphore.NewWeighted(int64(cfg.Workers))
	g, gctx := errgroup.WithContext(ctx)

	for i, path := range paths {
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			results[i] = extractFile(gctx, absRoot, path, known, rebuild, cfg)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// extractFile runs one file through a fresh extractor
func extractFile(ctx context.Context, absRoot, path string, known map[string]*storage.File,
	rebuild bool, cfg *Config) *fileResult {

	res := &fileResult{relPath: relativePath(absRoot, path)}
	res.existing = known[res.relPath]

	hash, modTime, size, err := computeFileHash(path)
	if err != nil {
		res.err = err
		return res
	}
	res.hash, res.modTime, res.size = hash, modTime, size

	if !rebuild && res.existing != nil && res.existing.ContentHash == hash {
		res.skipped = true
		return res
	}

	ex, err := chunker.New(cfg.Chunker)
	if err != nil {
		res.err = err
		return res
	}
	src, err := charsource.Open(path, cfg.Mode, cfg.BlockSize)
	if err != nil {
		res.err = err
		return res
	}
	defer func() { _ = src.Close() }()

	// Chunks completed before a failure are kept
	scan, err := stream.Scan(ctx, src, ex, func(chunk *types.Chunk) error {
		res.chunks = append(res.chunks, chunk)
		return nil
	})
	res.chars = scan.Chars
	res.err = err
	return res
}

// storeBatch writes a batch of results in a single transaction
func (idx *Indexer) storeBatch(ctx context.Context, rootID int64, results []*fileResult,
	stats *Statistics, log *logger.Logger) error {

	tx, err := idx.storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, r := range results {
		if r.skipped {
			stats.FilesSkipped++
			continue
		}
		if err := storeFile(ctx, tx, rootID, r); err != nil {
			return fmt.Errorf("failed to store %s: %w", r.relPath, err)
		}

		stats.CharsScanned += r.chars
		stats.ChunksCreated += len(r.chunks)
		if r.err != nil {
			stats.FilesFailed++
			stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", r.relPath, r.err))
			log.Warn("%s: %v", r.relPath, r.err)
			continue
		}
		stats.FilesIndexed++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// storeFile replaces the stored chunks of one file
func storeFile(ctx context.Context, tx storage.Tx, rootID int64, r *fileResult) error {
	if r.existing != nil {
		if err := tx.DeleteChunksByFile(ctx, r.existing.ID); err != nil {
			return fmt.Errorf("failed to delete old chunks: %w", err)
		}
	}

	file := &storage.File{
		RootID:      rootID,
		FilePath:    r.relPath,
		ContentHash: r.hash,
		ModTime:     r.modTime,
		SizeBytes:   r.size,
		ChunkCount:  len(r.chunks),
	}
	if r.err != nil {
		msg := r.err.Error()
		file.ScanError = &msg
		// A file that could not be read gets a zero hash so the next run retries it
		var overflow *types.ChunkOverflowError
		if !errors.As(r.err, &overflow) && !errors.Is(r.err, types.ErrNestedOpenTag) {
			file.ContentHash = [32]byte{}
		}
	}
	if err := tx.UpsertFile(ctx, file); err != nil {
		return err
	}

	for _, c := range r.chunks {
		if err := tx.InsertChunk(ctx, storage.FromTypesChunk(c, file.ID)); err != nil {
			return fmt.Errorf("failed to store chunk %d: %w", c.Seq, err)
		}
	}
	return nil
}

// removeMissing deletes files that are no longer on disk or no longer match
func (idx *Indexer) removeMissing(ctx context.Context, existing []*storage.File, seen map[string]bool) (int, error) {
	var stale []*storage.File
	for _, f := range existing {
		if !seen[f.FilePath] {
			stale = append(stale, f)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}

	tx, err := idx.storage.BeginTx(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	for _, f := range stale {
		if err := tx.DeleteFile(ctx, f.ID); err != nil {
			return 0, err
		}
	}
	return len(stale), tx.Commit()
}

// updateRootStats refreshes the root's file and chunk totals
func (idx *Indexer) updateRootStats(ctx context.Context, root *storage.ScanRoot) error {
	status, err := idx.storage.GetStatus(ctx, root.ID)
	if err != nil {
		return err
	}
	root.TotalFiles = status.FilesCount
	root.TotalChunks = status.ChunksCount
	root.LastIndexedAt = time.Now()
	return idx.storage.UpdateRoot(ctx, root)
}

// discoverFiles walks root and returns the files selected by cfg, sorted
func discoverFiles(root string, cfg *Config) ([]string, error) {
	var files []string
	m := newMatcher(cfg.Include, cfg.Exclude)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel := relativePath(root, path)

		if d.IsDir() {
			if path == root {
				return nil
			}
			if strings.HasPrefix(d.Name(), ".") || m.excluded(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		if m.excluded(rel) || !m.included(rel) {
			return nil
		}
		if cfg.MaxFileSize > 0 {
			info, err := d.Info()
			if err != nil {
				return err
			}
			if info.Size() > cfg.MaxFileSize {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})

	return files, err
}

// relativePath returns path relative to root with forward slashes
func relativePath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// computeFileHash computes SHA-256 hash of a file
func computeFileHash(filePath string) ([32]byte, time.Time, int64, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return [32]byte{}, time.Time{}, 0, err
	}
	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil {
		return [32]byte{}, time.Time{}, 0, err
	}

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return [32]byte{}, time.Time{}, 0, err
	}

	var result [32]byte
	copy(result[:], hash.Sum(nil))

	return result, info.ModTime(), info.Size(), nil
}

// matcher applies include and exclude globs to slash-separated relative paths.
// A pattern matches either the whole path or the base name.
type matcher struct {
	include []string
	exclude []string
}

func newMatcher(include, exclude []string) *matcher {
	return &matcher{include: include, exclude: exclude}
}

func (m *matcher) included(rel string) bool {
	if len(m.include) == 0 {
		return true
	}
	return matchAny(m.include, rel)
}

func (m *matcher) excluded(rel string) bool {
	return matchAny(m.exclude, rel)
}

// matchAny reports whether rel, or its base name, matches one of patterns
func matchAny(patterns []string, rel string) bool {
	base := rel
	if i := strings.LastIndex(rel, "/"); i >= 0 {
		base = rel[i+1:]
	}
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, rel); ok {
			return true
		}
		if ok, _ := filepath.Match(p, base); ok {
			return true
		}
	}
	return false
}
