package vectorindex

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"legallens.org/assistant/internal/store"
	"legallens.org/assistant/internal/utils"
)

// SQLite keeps chunks in the local SQLite store and answers queries by
// brute-force cosine similarity over an in-memory copy.
type SQLite struct {
	db  *store.SQLiteStore
	log zerolog.Logger

	mu     sync.RWMutex
	chunks []store.DataChunk
	loaded bool
}

func NewSQLite(db *store.SQLiteStore, log zerolog.Logger) *SQLite {
	return &SQLite{db: db, log: log}
}

type scoredChunk struct {
	chunk      store.DataChunk
	similarity float32
}

func (s *SQLite) load(ctx context.Context) ([]store.DataChunk, error) {
	s.mu.RLock()
	if s.loaded {
		chunks := s.chunks
		s.mu.RUnlock()
		return chunks, nil
	}
	s.mu.RUnlock()

	chunks, err := s.db.GetAllDataChunks(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.chunks, s.loaded = chunks, true
	s.mu.Unlock()

	if len(chunks) == 0 {
		s.log.Warn().Msg("sqlite index is empty, run the seed command first")
	}
	return chunks, nil
}

func (s *SQLite) Search(ctx context.Context, vec []float32, topK int) ([]RetrievedChunk, error) {
	chunks, err := s.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRetrieval, err)
	}

	scored := make([]scoredChunk, 0, len(chunks))
	for _, chunk := range chunks {
		if len(chunk.Embedding) == 0 {
			continue
		}
		sim, err := utils.CosineSimilarity(vec, chunk.Embedding)
		if err != nil {
			s.log.Debug().Err(err).Str("chunk_id", chunk.ID).Msg("skipping chunk")
			continue
		}
		scored = append(scored, scoredChunk{chunk: chunk, similarity: sim})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].similarity > scored[j].similarity
	})
	if len(scored) > topK {
		scored = scored[:topK]
	}

	out := make([]RetrievedChunk, 0, len(scored))
	for _, sc := range scored {
		out = append(out, RetrievedChunk{
			Text:     sc.chunk.Content,
			Score:    float64(sc.similarity),
			Category: categoryOr(sc.chunk.Category),
		})
	}
	return out, nil
}

func (s *SQLite) Upsert(ctx context.Context, records []Record) error {
	chunks := make([]store.DataChunk, 0, len(records))
	for _, r := range records {
		chunks = append(chunks, store.DataChunk{
			ID:          r.ID,
			Content:     r.Text,
			Category:    r.Category,
			Source:      r.Source,
			ChunkIndex:  r.ChunkIndex,
			TotalChunks: r.TotalChunks,
			IndexedAt:   r.IndexedAt,
			Embedding:   r.Vector,
		})
	}
	if err := s.db.UpsertDataChunks(ctx, chunks); err != nil {
		return err
	}

	s.mu.Lock()
	s.loaded = false
	s.mu.Unlock()
	return nil
}

// Reset removes the stored chunks of source.
func (s *SQLite) Reset(ctx context.Context, source string) error {
	if err := s.db.ClearDataChunks(ctx, source); err != nil {
		return err
	}
	s.mu.Lock()
	s.loaded = false
	s.mu.Unlock()
	return nil
}

// Len reports the number of stored chunks.
func (s *SQLite) Len(ctx context.Context) (int, error) {
	return s.db.CountDataChunks(ctx)
}
