// Package catalog is the durable relational store of audio files, segments,
// and watched directories. It wraps database/sql over a single SQLite file,
// applying migrations at startup.
package catalog

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const (
	// maxOpenConns caps the pool at 5 connections.
	maxOpenConns = 5
	// connMaxLifetime bounds how long a single connection is reused.
	connMaxLifetime = 10 * time.Minute
	// acquireTimeout bounds how long a caller waits for a connection.
	// database/sql has no native acquire-timeout knob, so every public
	// method bounds its context by this timeout (an earlier caller deadline
	// still applies).
	acquireTimeout = 15 * time.Minute
	// busyTimeoutMillis is applied via PRAGMA on every new connection.
	busyTimeoutMillis = 10 * 60 * 1000
)

// AudioFileRow is a row from the audio_file table.
type AudioFileRow struct {
	FileHash string
	FilePath string
}

// SegmentInsert is one row to insert into audio_file_segment.
type SegmentInsert struct {
	StartingTimestamp float64
	Embedding         []byte
}

// EmbeddingRow pairs a segment's catalog rowid with its encoded embedding,
// as hydrated into the vector index.
type EmbeddingRow struct {
	RowID     int64
	Embedding []byte
}

// SegmentLocation is what a query needs to report a hit: the file it came
// from and the timestamp within that file.
type SegmentLocation struct {
	FilePath          string
	StartingTimestamp float64
}

// StorageError wraps an underlying database/sql or driver error. Every
// catalog operation that fails returns one of these; there is no local
// retry — the caller re-triggers the operation.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage: %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

func wrapStorageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

// Store is the catalog's public interface.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite file at path, configures the
// connection pool, and applies pending migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d", path, busyTimeoutMillis)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, wrapStorageErr("open", err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	ctx, cancel := context.WithTimeout(ctx, acquireTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, wrapStorageErr("ping", err)
	}

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate applies any .sql files under migrations/ not yet recorded in
// schema_migrations, in filename order. This is the Go-idiomatic stand-in
// for sqlx::migrate!().
func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY)`); err != nil {
		return wrapStorageErr("migrate: create schema_migrations", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return wrapStorageErr("migrate: read migrations", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		var applied int
		err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, name).Scan(&applied)
		if err != nil {
			return wrapStorageErr("migrate: check "+name, err)
		}
		if applied > 0 {
			continue
		}
		data, err := migrationFiles.ReadFile("migrations/" + name)
		if err != nil {
			return wrapStorageErr("migrate: load "+name, err)
		}
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return wrapStorageErr("migrate: begin "+name, err)
		}
		for _, stmt := range strings.Split(string(data), ";") {
			stmt = strings.TrimSpace(stmt)
			if stmt == "" {
				continue
			}
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				tx.Rollback()
				return wrapStorageErr("migrate: exec "+name, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, name); err != nil {
			tx.Rollback()
			return wrapStorageErr("migrate: record "+name, err)
		}
		if err := tx.Commit(); err != nil {
			return wrapStorageErr("migrate: commit "+name, err)
		}
	}
	return nil
}

// LookupByHash returns the audio_file row for hash, or (nil, nil) if absent.
func (s *Store) LookupByHash(ctx context.Context, hash string) (*AudioFileRow, error) {
	ctx, cancel := context.WithTimeout(ctx, acquireTimeout)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `SELECT file_hash, file_path FROM audio_file WHERE file_hash = ?`, hash)
	var r AudioFileRow
	switch err := row.Scan(&r.FileHash, &r.FilePath); {
	case err == sql.ErrNoRows:
		return nil, nil
	case err != nil:
		return nil, wrapStorageErr("lookup_by_hash", err)
	}
	return &r, nil
}

// InsertAudioFile inserts a new audio_file row.
func (s *Store) InsertAudioFile(ctx context.Context, hash, path string) error {
	ctx, cancel := context.WithTimeout(ctx, acquireTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `INSERT INTO audio_file (file_hash, file_path) VALUES (?, ?)`, hash, path)
	return wrapStorageErr("insert_audio_file", err)
}

// UpdatePath updates the file_path of an existing audio_file row.
func (s *Store) UpdatePath(ctx context.Context, hash, newPath string) error {
	ctx, cancel := context.WithTimeout(ctx, acquireTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `UPDATE audio_file SET file_path = ? WHERE file_hash = ?`, newPath, hash)
	return wrapStorageErr("update_path", err)
}

// InsertSegments inserts the audio_file row and all of its segments as a
// single atomic transaction — either everything commits, or nothing does.
func (s *Store) InsertSegments(ctx context.Context, hash, path string, segments []SegmentInsert) error {
	ctx, cancel := context.WithTimeout(ctx, acquireTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapStorageErr("insert_segments: begin", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op once committed

	if _, err := tx.ExecContext(ctx, `INSERT INTO audio_file (file_hash, file_path) VALUES (?, ?)`, hash, path); err != nil {
		return wrapStorageErr("insert_segments: audio_file", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO audio_file_segment (file_hash, starting_timestamp, embedding) VALUES (?, ?, ?)`)
	if err != nil {
		return wrapStorageErr("insert_segments: prepare", err)
	}
	defer stmt.Close()

	for _, seg := range segments {
		if _, err := stmt.ExecContext(ctx, hash, seg.StartingTimestamp, seg.Embedding); err != nil {
			return wrapStorageErr("insert_segments: segment", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return wrapStorageErr("insert_segments: commit", err)
	}
	return nil
}

// ListEmbeddingsWithRowID returns every segment's catalog rowid and encoded
// embedding, for vector-index hydration.
func (s *Store) ListEmbeddingsWithRowID(ctx context.Context) ([]EmbeddingRow, error) {
	ctx, cancel := context.WithTimeout(ctx, acquireTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT rowid, embedding
		FROM audio_file_segment
		WHERE embedding IS NOT NULL`)
	if err != nil {
		return nil, wrapStorageErr("list_embeddings_with_rowid", err)
	}
	defer rows.Close()

	var out []EmbeddingRow
	for rows.Next() {
		var r EmbeddingRow
		if err := rows.Scan(&r.RowID, &r.Embedding); err != nil {
			return nil, wrapStorageErr("list_embeddings_with_rowid: scan", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStorageErr("list_embeddings_with_rowid: rows", err)
	}
	return out, nil
}

// FetchSegment resolves a segment's catalog rowid to its source file path
// and starting timestamp, joining audio_file_segment and audio_file.
func (s *Store) FetchSegment(ctx context.Context, rowid int64) (SegmentLocation, error) {
	ctx, cancel := context.WithTimeout(ctx, acquireTimeout)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `
		SELECT af.file_path, afs.starting_timestamp
		FROM audio_file_segment afs
		JOIN audio_file af ON afs.file_hash = af.file_hash
		WHERE afs.rowid = ?`, rowid)

	var loc SegmentLocation
	if err := row.Scan(&loc.FilePath, &loc.StartingTimestamp); err != nil {
		return SegmentLocation{}, wrapStorageErr("fetch_segment", err)
	}
	return loc, nil
}

// AddDir registers a directory to scan.
func (s *Store) AddDir(ctx context.Context, path string) error {
	ctx, cancel := context.WithTimeout(ctx, acquireTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `INSERT INTO dir_paths (path) VALUES (?)`, path)
	return wrapStorageErr("add_dir", err)
}

// RemoveDir unregisters a directory.
func (s *Store) RemoveDir(ctx context.Context, path string) error {
	ctx, cancel := context.WithTimeout(ctx, acquireTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `DELETE FROM dir_paths WHERE path = ?`, path)
	return wrapStorageErr("remove_dir", err)
}

// ListDirs returns every registered directory.
func (s *Store) ListDirs(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, acquireTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT path FROM dir_paths`)
	if err != nil {
		return nil, wrapStorageErr("list_dirs", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, wrapStorageErr("list_dirs: scan", err)
		}
		out = append(out, p)
	}
	return out, wrapStorageErr("list_dirs: rows", rows.Err())
}
