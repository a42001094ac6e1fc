// Package storage provides the SQLite implementation of Storage.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/shiraberu/internal/docid"
	"github.com/hyperjump/shiraberu/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and
// initializes the schema. Parent directories are created if they do not
// exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS collections (
		name TEXT PRIMARY KEY,
		query_fingerprint TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		expires_at TIMESTAMP NOT NULL,
		document_count INTEGER NOT NULL DEFAULT 0,
		chunk_count INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_collections_expires_at ON collections(expires_at);

	CREATE TABLE IF NOT EXISTS documents (
		id TEXT NOT NULL,
		collection TEXT NOT NULL,
		source_url TEXT NOT NULL,
		title TEXT,
		cleaned_content TEXT NOT NULL,
		language TEXT,
		published_at TIMESTAMP,
		fetched_at TIMESTAMP NOT NULL,
		from_snippet INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (collection, id),
		FOREIGN KEY (collection) REFERENCES collections(name) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT NOT NULL,
		collection TEXT NOT NULL,
		source_url TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		total_chunks INTEGER NOT NULL,
		text TEXT NOT NULL,
		char_start INTEGER NOT NULL,
		char_end INTEGER NOT NULL,
		title TEXT,
		created_at TIMESTAMP NOT NULL,
		PRIMARY KEY (collection, id),
		FOREIGN KEY (collection) REFERENCES collections(name) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_collection_source ON chunks(collection, source_url, chunk_index);
	`
	_, err := db.Exec(schema)
	return err
}

// SaveCollection inserts or replaces collection metadata.
func (s *SQLiteStorage) SaveCollection(ctx context.Context, col *models.Collection) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO collections (name, query_fingerprint, created_at, expires_at, document_count, chunk_count)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
			query_fingerprint = excluded.query_fingerprint,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at,
			document_count = excluded.document_count,
			chunk_count = excluded.chunk_count`,
		col.Name, col.QueryFingerprint, col.CreatedAt, col.ExpiresAt, col.DocumentCount, col.ChunkCount,
	)
	return err
}

// GetCollection returns collection metadata by name.
func (s *SQLiteStorage) GetCollection(ctx context.Context, name string) (*models.Collection, error) {
	var col models.Collection
	err := s.db.QueryRowContext(ctx,
		`SELECT name, query_fingerprint, created_at, expires_at, document_count, chunk_count
		 FROM collections WHERE name = ?`, name,
	).Scan(&col.Name, &col.QueryFingerprint, &col.CreatedAt, &col.ExpiresAt, &col.DocumentCount, &col.ChunkCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("collection %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &col, nil
}

// ListCollections returns all collections ordered by creation time, newest
// first.
func (s *SQLiteStorage) ListCollections(ctx context.Context) ([]*models.Collection, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, query_fingerprint, created_at, expires_at, document_count, chunk_count
		 FROM collections ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []*models.Collection
	for rows.Next() {
		var col models.Collection
		if err := rows.Scan(&col.Name, &col.QueryFingerprint, &col.CreatedAt, &col.ExpiresAt,
			&col.DocumentCount, &col.ChunkCount); err != nil {
			return nil, err
		}
		cols = append(cols, &col)
	}
	return cols, rows.Err()
}

// ExpiredCollections returns names of collections expired as of now.
func (s *SQLiteStorage) ExpiredCollections(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM collections WHERE expires_at <= ?`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// DeleteCollection removes a collection; documents and chunks cascade.
func (s *SQLiteStorage) DeleteCollection(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM collections WHERE name = ?`, name)
	return err
}

// SaveDocuments inserts or replaces documents in a transaction. Raw HTML is
// not persisted; only the cleaned content that chunking and retrieval use.
func (s *SQLiteStorage) SaveDocuments(ctx context.Context, collection string, docs []*models.Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO documents
		 (id, collection, source_url, title, cleaned_content, language, published_at, fetched_at, from_snippet)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, doc := range docs {
		var published any
		if doc.PublishedDate != nil {
			published = *doc.PublishedDate
		}
		if _, err := stmt.ExecContext(ctx,
			docid.URLDocID(doc.SourceURL), collection, doc.SourceURL, doc.Title,
			doc.CleanedContent, doc.Language, published, doc.FetchedAt, doc.FromSnippet,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SaveChunks inserts or replaces chunks in a transaction.
func (s *SQLiteStorage) SaveChunks(ctx context.Context, collection string, chunks []models.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO chunks
		 (id, collection, source_url, chunk_index, total_chunks, text, char_start, char_end, title, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, ch := range chunks {
		if _, err := stmt.ExecContext(ctx,
			ch.ID, collection, ch.SourceURL, ch.Index, ch.TotalChunks,
			ch.Text, ch.CharOffsetStart, ch.CharOffsetEnd, ch.Title, ch.CreatedAt,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetChunks resolves chunk IDs within a collection. IDs with no stored chunk
// are silently omitted from the result map.
func (s *SQLiteStorage) GetChunks(ctx context.Context, collection string, ids []string) (map[string]models.Chunk, error) {
	out := make(map[string]models.Chunk, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, 0, len(ids)+1)
	args = append(args, collection)
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_url, chunk_index, total_chunks, text, char_start, char_end, title, created_at
		 FROM chunks WHERE collection = ? AND id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var ch models.Chunk
		if err := rows.Scan(&ch.ID, &ch.SourceURL, &ch.Index, &ch.TotalChunks,
			&ch.Text, &ch.CharOffsetStart, &ch.CharOffsetEnd, &ch.Title, &ch.CreatedAt); err != nil {
			return nil, err
		}
		out[ch.ID] = ch
	}
	return out, rows.Err()
}

// ListChunks returns every chunk of a collection in stable order.
func (s *SQLiteStorage) ListChunks(ctx context.Context, collection string) ([]models.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_url, chunk_index, total_chunks, text, char_start, char_end, title, created_at
		 FROM chunks WHERE collection = ? ORDER BY source_url, chunk_index`, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []models.Chunk
	for rows.Next() {
		var ch models.Chunk
		if err := rows.Scan(&ch.ID, &ch.SourceURL, &ch.Index, &ch.TotalChunks,
			&ch.Text, &ch.CharOffsetStart, &ch.CharOffsetEnd, &ch.Title, &ch.CreatedAt); err != nil {
			return nil, err
		}
		chunks = append(chunks, ch)
	}
	return chunks, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
