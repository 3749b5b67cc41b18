package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"legallens.org/assistant/internal/embeddings"
	"legallens.org/assistant/internal/vectorindex"
)

// DefaultBatchSize is the number of records sent per upsert call.
const DefaultBatchSize = 10

// Document is a source file and the category its chunks are labelled with.
type Document struct {
	Path     string
	Category string
}

// DefaultDocuments are the corpus files expected in the docs directory.
func DefaultDocuments(docsDir string) []Document {
	return []Document{
		{Path: filepath.Join(docsDir, "posh_act.pdf"), Category: "POSH Act"},
		{Path: filepath.Join(docsDir, "ipc_act.pdf"), Category: "Indian Penal Code"},
	}
}

// ParseDocument reads a "path:category" flag value. Without a category the
// file name is used.
func ParseDocument(v string) (Document, error) {
	path, category, _ := strings.Cut(v, ":")
	path = strings.TrimSpace(path)
	if path == "" {
		return Document{}, fmt.Errorf("document %q has no path", v)
	}
	category = strings.TrimSpace(category)
	if category == "" {
		category = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return Document{Path: path, Category: category}, nil
}

type DocumentReport struct {
	Source   string
	Category string
	Chunks   int
}

type Report struct {
	Documents []DocumentReport
	Chunks    int
}

// Seeder extracts, splits, embeds and indexes documents.
type Seeder struct {
	embedder  embeddings.Provider
	index     vectorindex.Index
	splitter  *Splitter
	extract   func(path string) (string, error)
	batchSize int
	now       func() time.Time
	log       zerolog.Logger
}

type Option func(*Seeder)

// WithExtractor replaces the PDF text extractor, e.g. for plain text files.
func WithExtractor(fn func(path string) (string, error)) Option {
	return func(s *Seeder) { s.extract = fn }
}

func WithBatchSize(n int) Option {
	return func(s *Seeder) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Seeder) { s.now = now }
}

func NewSeeder(embedder embeddings.Provider, index vectorindex.Index, log zerolog.Logger, opts ...Option) *Seeder {
	s := &Seeder{
		embedder:  embedder,
		index:     index,
		splitter:  NewSplitter(),
		extract:   ExtractText,
		batchSize: DefaultBatchSize,
		now:       time.Now,
		log:       log,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Seed indexes every document. Chunk IDs derive from source and position,
// so seeding the same files again overwrites instead of duplicating. With
// dryRun nothing is embedded or written.
func (s *Seeder) Seed(ctx context.Context, docs []Document, dryRun bool) (*Report, error) {
	report := &Report{}
	for _, doc := range docs {
		text, err := s.extract(doc.Path)
		if err != nil {
			return report, err
		}
		chunks := s.splitter.Split(text)
		source := filepath.Base(doc.Path)
		s.log.Info().Str("source", source).Str("category", doc.Category).Int("chunks", len(chunks)).Msg("document split")

		if !dryRun {
			if err := s.indexChunks(ctx, source, doc.Category, chunks); err != nil {
				return report, err
			}
		}
		report.Documents = append(report.Documents, DocumentReport{Source: source, Category: doc.Category, Chunks: len(chunks)})
		report.Chunks += len(chunks)
	}
	return report, nil
}

func (s *Seeder) indexChunks(ctx context.Context, source, category string, chunks []string) error {
	if r, ok := s.index.(vectorindex.Resetter); ok {
		if err := r.Reset(ctx, source); err != nil {
			return fmt.Errorf("reset %s: %w", source, err)
		}
	}

	indexedAt := s.now().UTC()
	batch := make([]vectorindex.Record, 0, s.batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := s.index.Upsert(ctx, batch); err != nil {
			return fmt.Errorf("upsert %s: %w", source, err)
		}
		s.log.Debug().Str("source", source).Int("records", len(batch)).Msg("batch upserted")
		batch = make([]vectorindex.Record, 0, s.batchSize)
		return nil
	}

	for i, text := range chunks {
		vec, err := s.embedder.Embed(ctx, text)
		if err != nil {
			return fmt.Errorf("embed %s chunk %d: %w", source, i, err)
		}
		batch = append(batch, vectorindex.Record{
			ID:          ChunkID(source, i),
			Vector:      vec,
			Text:        text,
			Category:    category,
			Source:      source,
			ChunkIndex:  i,
			TotalChunks: len(chunks),
			IndexedAt:   indexedAt,
		})
		if len(batch) == s.batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}

// ChunkID is a name-based UUID for a chunk position in a source file.
func ChunkID(source string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("legallens:"+source+"#"+strconv.Itoa(index))).String()
}
