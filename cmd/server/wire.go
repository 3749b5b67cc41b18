package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"legallens.org/assistant/internal/config"
	"legallens.org/assistant/internal/core"
	"legallens.org/assistant/internal/embeddings"
	"legallens.org/assistant/internal/store"
	"legallens.org/assistant/internal/translate"
	"legallens.org/assistant/internal/vectorindex"
)

// closers collects shutdown hooks in creation order; run reverses them.
type closers []func() error

func (c *closers) add(fn func() error) { *c = append(*c, fn) }

func (c *closers) run(log zerolog.Logger) {
	for i := len(*c) - 1; i >= 0; i-- {
		if err := (*c)[i](); err != nil {
			log.Warn().Err(err).Msg("error during shutdown")
		}
	}
}

// newEmbeddingHandle wraps the configured provider in the lazily
// initialised handle. The handle closes providers that fail their probe and
// owns the one that succeeds.
func newEmbeddingHandle(cfg *config.Config, log zerolog.Logger, cl *closers) *embeddings.Handle {
	factory := func(ctx context.Context) (embeddings.Provider, error) {
		if cfg.EmbedProvider == "gemini" {
			return embeddings.NewGeminiProvider(ctx, cfg.GeminiAPIKey, cfg.EmbedModel)
		}
		return embeddings.NewOllamaProvider(cfg.OllamaURL, cfg.EmbedModel), nil
	}
	h := embeddings.NewHandle(factory, cfg.EmbedDimension, log.With().Str("component", "embeddings").Logger())
	cl.add(h.Close)
	return h
}

func newIndex(ctx context.Context, cfg *config.Config, log zerolog.Logger, cl *closers) (vectorindex.Index, error) {
	switch cfg.VectorStore {
	case "pinecone":
		return vectorindex.NewPinecone(cfg.PineconeHost, cfg.PineconeAPIKey), nil
	case "weaviate":
		w, err := vectorindex.NewWeaviate(cfg.WeaviateHost, cfg.WeaviateClass)
		if err != nil {
			return nil, fmt.Errorf("connect weaviate: %w", err)
		}
		if err := w.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return w, nil
	case "sqlite":
		db, err := store.NewSQLiteStore(cfg.SQLitePath, log.With().Str("component", "sqlite").Logger())
		if err != nil {
			return nil, err
		}
		cl.add(db.Close)
		idx := vectorindex.NewSQLite(db, log.With().Str("component", "index").Logger())
		if n, err := idx.Len(ctx); err == nil {
			log.Info().Int("chunks", n).Str("path", cfg.SQLitePath).Msg("sqlite index opened")
		}
		return idx, nil
	case "chromem":
		idx, err := vectorindex.NewPersistentChromem(cfg.ChromemPath, cfg.WeaviateClass)
		if err != nil {
			return nil, err
		}
		log.Info().Int("chunks", idx.Len()).Str("path", cfg.ChromemPath).Msg("chromem index opened")
		return idx, nil
	}
	return nil, fmt.Errorf("unsupported vector store %q", cfg.VectorStore)
}

func newGenerator(ctx context.Context, cfg *config.Config, log zerolog.Logger, cl *closers) (core.Generator, error) {
	log = log.With().Str("component", "llm").Logger()
	if cfg.LLMProvider == "gemini" {
		g, err := core.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.Generation, log)
		if err != nil {
			return nil, err
		}
		cl.add(func() error { g.Close(); return nil })
		return g, nil
	}
	return core.NewOllamaGenerator(cfg.OllamaURL, cfg.Generation, log), nil
}

func newTranslator(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*translate.Translator, error) {
	log = log.With().Str("component", "translate").Logger()

	var provider translate.Provider = translate.Disabled{}
	if cfg.TranslateProvider == "google" {
		var opts []option.ClientOption
		if cfg.TranslateAPIKey != "" {
			opts = append(opts, option.WithAPIKey(cfg.TranslateAPIKey))
		}
		g, err := translate.NewGoogleProvider(ctx, opts...)
		if err != nil {
			// Without credentials the service still answers, in English.
			log.Warn().Err(err).Msg("Google Translate unavailable, translation disabled")
		} else {
			provider = g
		}
	}
	return translate.NewTranslator(provider, cfg.TranslationCacheSize, log)
}

// warmUp initialises the embedding handle. Only a dimension mismatch is
// fatal; a provider that is still starting is retried on first use.
func warmUp(ctx context.Context, h *embeddings.Handle, log zerolog.Logger) error {
	err := h.Init(ctx)
	switch {
	case err == nil:
		log.Info().Int("dimension", h.Dimension()).Msg("embedding provider ready")
		return nil
	case errors.Is(err, embeddings.ErrDimensionMismatch):
		return err
	}
	log.Warn().Err(err).Msg("embedding provider not ready, will retry on first request")
	return nil
}
