package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when trying to create a duplicate entity
	ErrAlreadyExists = errors.New("already exists")
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// One connection serializes writers and keeps :memory: databases alive
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// DBFileName is the database file created inside the data directory
const DBFileName = "chunkstream.db"

// OpenDir opens the store in dir, creating the directory if needed
func OpenDir(dir string) (*SQLiteStorage, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	return NewSQLiteStorage(filepath.Join(dir, DBFileName))
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction. Every operation on the returned Tx runs
// inside the transaction; with a single pooled connection, calling the parent
// storage before Commit or Rollback would block.
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTx) querier() querier {
	return t.tx
}

func (s *SQLiteStorage) querier() querier {
	return s.db
}

// Scan root operations

const rootColumns = `id, root_path, open_tag, close_tag, max_chunk_size, total_files,
	total_chunks, index_version, last_indexed_at, created_at, updated_at`

func scanRoot(row rowScanner) (*ScanRoot, error) {
	var root ScanRoot
	var lastIndexedAt sql.NullTime
	err := row.Scan(
		&root.ID, &root.RootPath, &root.OpenTag, &root.CloseTag, &root.MaxChunkSize,
		&root.TotalFiles, &root.TotalChunks, &root.IndexVersion,
		&lastIndexedAt, &root.CreatedAt, &root.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if lastIndexedAt.Valid {
		root.LastIndexedAt = lastIndexedAt.Time
	}
	return &root, nil
}

func (s *SQLiteStorage) createRootWithQuerier(ctx context.Context, q querier, root *ScanRoot) error {
	query := `
		INSERT INTO scan_roots (root_path, open_tag, close_tag, max_chunk_size, index_version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	result, err := q.ExecContext(ctx, query,
		root.RootPath, root.OpenTag, root.CloseTag, root.MaxChunkSize,
		root.IndexVersion, now, now)
	if err != nil {
		return fmt.Errorf("failed to create scan root: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	root.ID = id
	root.CreatedAt = now
	root.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) CreateRoot(ctx context.Context, root *ScanRoot) error {
	return s.createRootWithQuerier(ctx, s.querier(), root)
}

func (s *SQLiteStorage) getRootWithQuerier(ctx context.Context, q querier, rootPath string) (*ScanRoot, error) {
	return scanRoot(q.QueryRowContext(ctx, "SELECT "+rootColumns+" FROM scan_roots WHERE root_path = ?", rootPath))
}

func (s *SQLiteStorage) GetRoot(ctx context.Context, rootPath string) (*ScanRoot, error) {
	return s.getRootWithQuerier(ctx, s.querier(), rootPath)
}

func (s *SQLiteStorage) getRootByIDWithQuerier(ctx context.Context, q querier, rootID int64) (*ScanRoot, error) {
	return scanRoot(q.QueryRowContext(ctx, "SELECT "+rootColumns+" FROM scan_roots WHERE id = ?", rootID))
}

func (s *SQLiteStorage) GetRootByID(ctx context.Context, rootID int64) (*ScanRoot, error) {
	return s.getRootByIDWithQuerier(ctx, s.querier(), rootID)
}

func (s *SQLiteStorage) updateRootWithQuerier(ctx context.Context, q querier, root *ScanRoot) error {
	query := `
		UPDATE scan_roots
		SET open_tag = ?, close_tag = ?, max_chunk_size = ?, total_files = ?, total_chunks = ?,
		    index_version = ?, last_indexed_at = ?, updated_at = ?
		WHERE id = ?
	`
	now := time.Now()
	result, err := q.ExecContext(ctx, query,
		root.OpenTag, root.CloseTag, root.MaxChunkSize, root.TotalFiles, root.TotalChunks,
		root.IndexVersion, root.LastIndexedAt, now, root.ID)
	if err != nil {
		return fmt.Errorf("failed to update scan root: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	root.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) UpdateRoot(ctx context.Context, root *ScanRoot) error {
	return s.updateRootWithQuerier(ctx, s.querier(), root)
}

func (s *SQLiteStorage) listRootsWithQuerier(ctx context.Context, q querier) ([]*ScanRoot, error) {
	rows, err := q.QueryContext(ctx, "SELECT "+rootColumns+" FROM scan_roots ORDER BY root_path")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	roots := make([]*ScanRoot, 0)
	for rows.Next() {
		root, err := scanRoot(rows)
		if err != nil {
			return nil, err
		}
		roots = append(roots, root)
	}
	return roots, rows.Err()
}

func (s *SQLiteStorage) ListRoots(ctx context.Context) ([]*ScanRoot, error) {
	return s.listRootsWithQuerier(ctx, s.querier())
}

// File operations

const fileColumns = `id, root_id, file_path, content_hash, mod_time, size_bytes,
	scan_error, chunk_count, last_indexed_at, created_at, updated_at`

func scanFile(row rowScanner) (*File, error) {
	var file File
	var hash []byte
	var scanError sql.NullString
	var modTime, lastIndexedAt sql.NullTime
	err := row.Scan(
		&file.ID, &file.RootID, &file.FilePath, &hash, &modTime, &file.SizeBytes,
		&scanError, &file.ChunkCount, &lastIndexedAt, &file.CreatedAt, &file.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	copy(file.ContentHash[:], hash)
	if scanError.Valid {
		file.ScanError = &scanError.String
	}
	if modTime.Valid {
		file.ModTime = modTime.Time
	}
	if lastIndexedAt.Valid {
		file.LastIndexedAt = lastIndexedAt.Time
	}
	return &file, nil
}

func (s *SQLiteStorage) upsertFileWithQuerier(ctx context.Context, q querier, file *File) error {
	query := `
		INSERT INTO files (root_id, file_path, content_hash, mod_time, size_bytes,
		                   scan_error, chunk_count, last_indexed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(root_id, file_path) DO UPDATE SET
			content_hash = excluded.content_hash,
			mod_time = excluded.mod_time,
			size_bytes = excluded.size_bytes,
			scan_error = excluded.scan_error,
			chunk_count = excluded.chunk_count,
			last_indexed_at = excluded.last_indexed_at,
			updated_at = excluded.updated_at
		RETURNING id
	`
	now := time.Now()
	err := q.QueryRowContext(ctx, query,
		file.RootID, file.FilePath, file.ContentHash[:], file.ModTime, file.SizeBytes,
		file.ScanError, file.ChunkCount, now, now, now,
	).Scan(&file.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert file: %w", err)
	}
	file.LastIndexedAt = now
	file.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) UpsertFile(ctx context.Context, file *File) error {
	return s.upsertFileWithQuerier(ctx, s.querier(), file)
}

func (s *SQLiteStorage) getFileWithQuerier(ctx context.Context, q querier, rootID int64, filePath string) (*File, error) {
	return scanFile(q.QueryRowContext(ctx,
		"SELECT "+fileColumns+" FROM files WHERE root_id = ? AND file_path = ?", rootID, filePath))
}

func (s *SQLiteStorage) GetFile(ctx context.Context, rootID int64, filePath string) (*File, error) {
	return s.getFileWithQuerier(ctx, s.querier(), rootID, filePath)
}

func (s *SQLiteStorage) getFileByIDWithQuerier(ctx context.Context, q querier, fileID int64) (*File, error) {
	return scanFile(q.QueryRowContext(ctx, "SELECT "+fileColumns+" FROM files WHERE id = ?", fileID))
}

func (s *SQLiteStorage) GetFileByID(ctx context.Context, fileID int64) (*File, error) {
	return s.getFileByIDWithQuerier(ctx, s.querier(), fileID)
}

// deleteFileWithQuerier removes a file; its chunks go with it through the cascade
func (s *SQLiteStorage) deleteFileWithQuerier(ctx context.Context, q querier, fileID int64) error {
	_, err := q.ExecContext(ctx, "DELETE FROM files WHERE id = ?", fileID)
	return err
}

func (s *SQLiteStorage) DeleteFile(ctx context.Context, fileID int64) error {
	return s.deleteFileWithQuerier(ctx, s.querier(), fileID)
}

func (s *SQLiteStorage) listFilesWithQuerier(ctx context.Context, q querier, rootID int64) ([]*File, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT "+fileColumns+" FROM files WHERE root_id = ? ORDER BY file_path", rootID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	files := make([]*File, 0)
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, rows.Err()
}

func (s *SQLiteStorage) ListFiles(ctx context.Context, rootID int64) ([]*File, error) {
	return s.listFilesWithQuerier(ctx, s.querier(), rootID)
}

// Chunk operations

const chunkColumns = `id, file_id, seq, content, content_hash, start_offset, end_offset, created_at`

func scanChunk(row rowScanner) (*Chunk, error) {
	var chunk Chunk
	var hash []byte
	err := row.Scan(
		&chunk.ID, &chunk.FileID, &chunk.Seq, &chunk.Content, &hash,
		&chunk.StartOffset, &chunk.EndOffset, &chunk.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	copy(chunk.ContentHash[:], hash)
	return &chunk, nil
}

func (s *SQLiteStorage) insertChunkWithQuerier(ctx context.Context, q querier, chunk *Chunk) error {
	query := `
		INSERT INTO chunks (file_id, seq, content, content_hash, start_offset, end_offset, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	result, err := q.ExecContext(ctx, query,
		chunk.FileID, chunk.Seq, chunk.Content, chunk.ContentHash[:],
		chunk.StartOffset, chunk.EndOffset, now)
	if err != nil {
		return fmt.Errorf("failed to insert chunk: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	chunk.ID = id
	chunk.CreatedAt = now
	return nil
}

func (s *SQLiteStorage) InsertChunk(ctx context.Context, chunk *Chunk) error {
	return s.insertChunkWithQuerier(ctx, s.querier(), chunk)
}

func (s *SQLiteStorage) getChunkWithQuerier(ctx context.Context, q querier, chunkID int64) (*Chunk, error) {
	return scanChunk(q.QueryRowContext(ctx, "SELECT "+chunkColumns+" FROM chunks WHERE id = ?", chunkID))
}

func (s *SQLiteStorage) GetChunk(ctx context.Context, chunkID int64) (*Chunk, error) {
	return s.getChunkWithQuerier(ctx, s.querier(), chunkID)
}

func (s *SQLiteStorage) listChunksByFileWithQuerier(ctx context.Context, q querier, fileID int64) ([]*Chunk, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT "+chunkColumns+" FROM chunks WHERE file_id = ? ORDER BY seq", fileID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	chunks := make([]*Chunk, 0)
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

func (s *SQLiteStorage) ListChunksByFile(ctx context.Context, fileID int64) ([]*Chunk, error) {
	return s.listChunksByFileWithQuerier(ctx, s.querier(), fileID)
}

func (s *SQLiteStorage) deleteChunksByFileWithQuerier(ctx context.Context, q querier, fileID int64) error {
	_, err := q.ExecContext(ctx, "DELETE FROM chunks WHERE file_id = ?", fileID)
	return err
}

func (s *SQLiteStorage) DeleteChunksByFile(ctx context.Context, fileID int64) error {
	return s.deleteChunksByFileWithQuerier(ctx, s.querier(), fileID)
}

// Search operations

func (s *SQLiteStorage) SearchText(ctx context.Context, rootID int64, query string, limit int, filters *SearchFilters) ([]TextResult, error) {
	return searchText(ctx, s.querier(), rootID, query, limit, filters)
}

// Status operations

func (s *SQLiteStorage) getStatusWithQuerier(ctx context.Context, q querier, rootID int64) (*RootStatus, error) {
	root, err := s.getRootByIDWithQuerier(ctx, q, rootID)
	if err != nil {
		return nil, err
	}

	status := &RootStatus{
		Root:          root,
		LastIndexedAt: root.LastIndexedAt,
	}

	err = q.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN scan_error IS NOT NULL THEN 1 ELSE 0 END), 0)
		FROM files WHERE root_id = ?
	`, rootID).Scan(&status.FilesCount, &status.FailedFiles)
	if err != nil {
		return nil, err
	}

	err = q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM chunks c
		JOIN files f ON c.file_id = f.id
		WHERE f.root_id = ?
	`, rootID).Scan(&status.ChunksCount)
	if err != nil {
		return nil, err
	}

	var pageCount, pageSize int
	if err := q.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		_ = q.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		status.IndexSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	var ftsName string
	ftsErr := q.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' AND name='chunks_fts'").Scan(&ftsName)

	status.Health = HealthStatus{
		DatabaseAccessible: true,
		FTSIndexesBuilt:    ftsErr == nil,
	}
	return status, nil
}

func (s *SQLiteStorage) GetStatus(ctx context.Context, rootID int64) (*RootStatus, error) {
	return s.getStatusWithQuerier(ctx, s.querier(), rootID)
}

// Transaction implementations route every call through the transaction

func (t *sqliteTx) CreateRoot(ctx context.Context, root *ScanRoot) error {
	return t.storage.createRootWithQuerier(ctx, t.querier(), root)
}

func (t *sqliteTx) GetRoot(ctx context.Context, rootPath string) (*ScanRoot, error) {
	return t.storage.getRootWithQuerier(ctx, t.querier(), rootPath)
}

func (t *sqliteTx) GetRootByID(ctx context.Context, rootID int64) (*ScanRoot, error) {
	return t.storage.getRootByIDWithQuerier(ctx, t.querier(), rootID)
}

func (t *sqliteTx) UpdateRoot(ctx context.Context, root *ScanRoot) error {
	return t.storage.updateRootWithQuerier(ctx, t.querier(), root)
}

func (t *sqliteTx) ListRoots(ctx context.Context) ([]*ScanRoot, error) {
	return t.storage.listRootsWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) UpsertFile(ctx context.Context, file *File) error {
	return t.storage.upsertFileWithQuerier(ctx, t.querier(), file)
}

func (t *sqliteTx) GetFile(ctx context.Context, rootID int64, filePath string) (*File, error) {
	return t.storage.getFileWithQuerier(ctx, t.querier(), rootID, filePath)
}

func (t *sqliteTx) GetFileByID(ctx context.Context, fileID int64) (*File, error) {
	return t.storage.getFileByIDWithQuerier(ctx, t.querier(), fileID)
}

func (t *sqliteTx) DeleteFile(ctx context.Context, fileID int64) error {
	return t.storage.deleteFileWithQuerier(ctx, t.querier(), fileID)
}

func (t *sqliteTx) ListFiles(ctx context.Context, rootID int64) ([]*File, error) {
	return t.storage.listFilesWithQuerier(ctx, t.querier(), rootID)
}

func (t *sqliteTx) InsertChunk(ctx context.Context, chunk *Chunk) error {
	return t.storage.insertChunkWithQuerier(ctx, t.querier(), chunk)
}

func (t *sqliteTx) GetChunk(ctx context.Context, chunkID int64) (*Chunk, error) {
	return t.storage.getChunkWithQuerier(ctx, t.querier(), chunkID)
}

func (t *sqliteTx) ListChunksByFile(ctx context.Context, fileID int64) ([]*Chunk, error) {
	return t.storage.listChunksByFileWithQuerier(ctx, t.querier(), fileID)
}

func (t *sqliteTx) DeleteChunksByFile(ctx context.Context, fileID int64) error {
	return t.storage.deleteChunksByFileWithQuerier(ctx, t.querier(), fileID)
}

func (t *sqliteTx) SearchText(ctx context.Context, rootID int64, query string, limit int, filters *SearchFilters) ([]TextResult, error) {
	return searchText(ctx, t.querier(), rootID, query, limit, filters)
}

func (t *sqliteTx) GetStatus(ctx context.Context, rootID int64) (*RootStatus, error) {
	return t.storage.getStatusWithQuerier(ctx, t.querier(), rootID)
}

func (t *sqliteTx) Close() error {
	// Transactions don't close the underlying connection
	return nil
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	return nil, errors.New("nested transactions not supported")
}
