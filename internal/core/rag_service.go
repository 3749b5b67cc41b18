package core

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"legallens.org/assistant/internal/embeddings"
	"legallens.org/assistant/internal/metrics"
	"legallens.org/assistant/internal/vectorindex"
)

const NumRelevantChunks = 3 // Number of chunks to retrieve for context

// RAGService embeds a query and fetches the nearest legal passages.
type RAGService struct {
	embedder embeddings.Provider
	index    vectorindex.Index
	topK     int
	log      zerolog.Logger
}

func NewRAGService(embedder embeddings.Provider, index vectorindex.Index, topK int, log zerolog.Logger) *RAGService {
	if topK <= 0 {
		topK = NumRelevantChunks
	}
	return &RAGService{embedder: embedder, index: index, topK: topK, log: log}
}

// Retrieve returns the top matches for an English query. Any failure is a
// vectorindex.ErrRetrieval.
func (s *RAGService) Retrieve(ctx context.Context, query string) ([]vectorindex.RetrievedChunk, error) {
	start := time.Now()
	defer func() { metrics.RetrievalDuration.Observe(time.Since(start).Seconds()) }()

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get query embedding: %w", vectorindex.ErrRetrieval, err)
	}

	chunks, err := s.index.Search(ctx, vec, s.topK)
	if err != nil {
		return nil, err
	}
	s.log.Debug().Int("matches", len(chunks)).Msg("retrieved relevant chunks")
	return chunks, nil
}
