package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/rs/zerolog"
)

// SQLiteStore persists embedded document chunks in a single table. It backs
// the file-based vector index used for offline development.
type SQLiteStore struct {
	db  *sql.DB
	log zerolog.Logger
}

func NewSQLiteStore(dataSourceName string, log zerolog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db, log: log}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS data_chunks (
        id TEXT PRIMARY KEY, -- UUID
        content TEXT NOT NULL,
        category TEXT NOT NULL DEFAULT '',
        source TEXT NOT NULL DEFAULT '',
        chunk_index INTEGER NOT NULL DEFAULT 0,
        total_chunks INTEGER NOT NULL DEFAULT 0,
        indexed_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        embedding_json TEXT -- JSON array of float32
    );
    `
	_, err := s.db.Exec(schema)
	return err
}

// UpsertDataChunks writes chunks in one transaction, replacing rows with the
// same ID.
func (s *SQLiteStore) UpsertDataChunks(ctx context.Context, chunks []DataChunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO data_chunks
        (id, content, category, source, chunk_index, total_chunks, indexed_at, embedding_json)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare data_chunk insert: %w", err)
	}
	defer stmt.Close()

	for i := range chunks {
		c := &chunks[i]
		embeddingBytes, err := json.Marshal(c.Embedding)
		if err != nil {
			return fmt.Errorf("failed to marshal embedding: %w", err)
		}
		c.EmbeddingJSON = string(embeddingBytes)
		if c.IndexedAt.IsZero() {
			c.IndexedAt = time.Now().UTC()
		}
		if _, err := stmt.ExecContext(ctx, c.ID, c.Content, c.Category, c.Source, c.ChunkIndex, c.TotalChunks, c.IndexedAt, c.EmbeddingJSON); err != nil {
			return fmt.Errorf("failed to execute data_chunk insert: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetAllDataChunks(ctx context.Context) ([]DataChunk, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, content, category, source, chunk_index, total_chunks, indexed_at, embedding_json FROM data_chunks")
	if err != nil {
		return nil, fmt.Errorf("failed to query data_chunks: %w", err)
	}
	defer rows.Close()

	var chunks []DataChunk
	for rows.Next() {
		var chunk DataChunk
		var embeddingJSON sql.NullString
		if err := rows.Scan(&chunk.ID, &chunk.Content, &chunk.Category, &chunk.Source, &chunk.ChunkIndex, &chunk.TotalChunks, &chunk.IndexedAt, &embeddingJSON); err != nil {
			return nil, fmt.Errorf("failed to scan data_chunk row: %w", err)
		}
		if embeddingJSON.String != "" {
			if err := json.Unmarshal([]byte(embeddingJSON.String), &chunk.Embedding); err != nil {
				s.log.Warn().Err(err).Str("chunk_id", chunk.ID).Msg("failed to unmarshal embedding, chunk will not be searchable")
				chunk.Embedding = nil
			}
		}
		chunk.EmbeddingJSON = embeddingJSON.String
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

func (s *SQLiteStore) CountDataChunks(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM data_chunks").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count data_chunks: %w", err)
	}
	return n, nil
}

// ClearDataChunks removes every chunk, optionally only those of one source.
func (s *SQLiteStore) ClearDataChunks(ctx context.Context, source string) error {
	query, args := "DELETE FROM data_chunks", []any{}
	if source = strings.TrimSpace(source); source != "" {
		query += " WHERE source = ?"
		args = append(args, source)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete data_chunks: %w", err)
	}
	return nil
}
