// Package vectorindex wraps the vector search services that hold the
// embedded legal corpus.
package vectorindex

import (
	"context"
	"errors"
	"strconv"
	"time"
)

// ErrRetrieval marks a failed search. It is fatal for the request and never
// retried.
var ErrRetrieval = errors.New("retrieval failed")

// DefaultCategory labels chunks indexed without a category.
const DefaultCategory = "POSH Act"

// RetrievedChunk is one search hit. Text may be empty when the stored
// metadata carries none; callers filter those out of the prompt context.
type RetrievedChunk struct {
	Text     string  `json:"-"`
	Score    float64 `json:"score"`
	Category string  `json:"category"`
}

// Record is one chunk to be written to the index.
type Record struct {
	ID          string
	Vector      []float32
	Text        string
	Category    string
	Source      string
	ChunkIndex  int
	TotalChunks int
	IndexedAt   time.Time
}

// Index searches and writes embedded chunks. Search results are ordered by
// descending score as the backend returns them.
type Index interface {
	Search(ctx context.Context, vec []float32, topK int) ([]RetrievedChunk, error)
	Upsert(ctx context.Context, records []Record) error
}

// Resetter is implemented by backends that can drop the chunks of one
// source before it is indexed again, so a shorter revision of a document
// leaves no stale tail behind.
type Resetter interface {
	Reset(ctx context.Context, source string) error
}

// metadata is the flat string map shared by the backends that store
// metadata as key/value pairs.
func (r Record) metadata() map[string]string {
	return map[string]string{
		"text":         r.Text,
		"category":     r.Category,
		"source":       r.Source,
		"chunk_id":     strconv.Itoa(r.ChunkIndex),
		"total_chunks": strconv.Itoa(r.TotalChunks),
		"indexed_at":   r.IndexedAt.UTC().Format(time.RFC3339),
	}
}

func categoryOr(c string) string {
	if c == "" {
		return DefaultCategory
	}
	return c
}
