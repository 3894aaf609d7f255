// Package storage persists extracted chunks in SQLite.
//
// # Database Schema
//
// Tables:
//   - scan_roots: indexed directories and the tags they were scanned with
//   - files: relative paths, SHA-256 hashes and per-file scan errors
//   - chunks: extracted chunks with their stream offsets
//   - chunks_fts: FTS5 index over chunk content, maintained by triggers
//
// # Drivers
//
// The default build uses modernc.org/sqlite. Building with the sqlite_cgo tag
// switches to github.com/mattn/go-sqlite3; see BuildMode.
//
// # Transactions
//
//	tx, err := store.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer func() { _ = tx.Rollback() }()
//
//	if err := tx.UpsertFile(ctx, file); err != nil {
//	    return err
//	}
//	return tx.Commit()
//
// Every call on a Tx runs inside the transaction. The store keeps a single
// connection, so the parent Storage must not be used until the transaction
// ends.
package storage
