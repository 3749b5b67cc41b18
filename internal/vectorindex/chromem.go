package vectorindex

import (
	"context"
	"errors"
	"fmt"

	"github.com/philippgille/chromem-go"
)

// Chromem is an embedded, in-process index. The persistent form lets the
// seed command and the server share one directory; the in-memory form is
// used in tests.
type Chromem struct {
	collection *chromem.Collection
}

// noEmbedding is installed as the collection's embedding func. Every
// document and query in this service arrives with its vector precomputed,
// so reaching it is a programming error.
func noEmbedding(context.Context, string) ([]float32, error) {
	return nil, errors.New("chromem collection requires precomputed embeddings")
}

// NewChromem returns an index held only in memory.
func NewChromem(collectionName string) (*Chromem, error) {
	return newChromem(chromem.NewDB(), collectionName)
}

// NewPersistentChromem opens (or creates) an index stored under dir.
// Documents written by one process are loaded by the next one.
func NewPersistentChromem(dir, collectionName string) (*Chromem, error) {
	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return nil, fmt.Errorf("failed to open chromem db at %s: %w", dir, err)
	}
	return newChromem(db, collectionName)
}

func newChromem(db *chromem.DB, collectionName string) (*Chromem, error) {
	col, err := db.GetOrCreateCollection(collectionName, nil, noEmbedding)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}
	return &Chromem{collection: col}, nil
}

// Len reports the number of stored chunks.
func (c *Chromem) Len() int { return c.collection.Count() }

func (c *Chromem) Search(ctx context.Context, vec []float32, topK int) ([]RetrievedChunk, error) {
	n := c.collection.Count()
	if n == 0 {
		return []RetrievedChunk{}, nil
	}
	if topK > n {
		topK = n
	}

	results, err := c.collection.QueryEmbedding(ctx, vec, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: chromem query: %v", ErrRetrieval, err)
	}

	out := make([]RetrievedChunk, 0, len(results))
	for _, r := range results {
		out = append(out, RetrievedChunk{
			Text:     r.Content,
			Score:    float64(r.Similarity),
			Category: categoryOr(r.Metadata["category"]),
		})
	}
	return out, nil
}

func (c *Chromem) Upsert(ctx context.Context, records []Record) error {
	for _, r := range records {
		err := c.collection.AddDocument(ctx, chromem.Document{
			ID:        r.ID,
			Content:   r.Text,
			Metadata:  r.metadata(),
			Embedding: r.Vector,
		})
		if err != nil {
			return fmt.Errorf("failed to add document %s: %w", r.ID, err)
		}
	}
	return nil
}
