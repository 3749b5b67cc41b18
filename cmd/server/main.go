package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"legallens.org/assistant/internal/api"
	"legallens.org/assistant/internal/cache"
	"legallens.org/assistant/internal/config"
	"legallens.org/assistant/internal/core"
	"legallens.org/assistant/internal/fir"
	"legallens.org/assistant/internal/ingest"
	"legallens.org/assistant/internal/logger"
	"legallens.org/assistant/internal/store"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "server",
		Short:        "LegalLens legal assistant API",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	rootCmd.AddCommand(serveCmd)

	var files []string
	var dryRun bool
	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Extract, embed and index the legal documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), files, dryRun)
		},
	}
	seedCmd.Flags().StringArrayVarP(&files, "file", "f", nil, "Extra document as path:category (repeatable)")
	seedCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Only report chunk counts")
	rootCmd.AddCommand(seedCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setup() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	log := logger.Configure(logger.New("legallens"), cfg.LogLevel, cfg.LogFormat)
	zlog.Logger = log
	return cfg, log, nil
}

func runServe(ctx context.Context) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	log.Debug().Str("llm", cfg.LLMProvider).Str("store", cfg.VectorStore).Msg("service starting")

	var cl closers
	defer cl.run(log)

	embedder := newEmbeddingHandle(cfg, log, &cl)
	if err := warmUp(ctx, embedder, log); err != nil {
		return err
	}

	index, err := newIndex(ctx, cfg, log, &cl)
	if err != nil {
		return fmt.Errorf("failed to initialize vector index: %w", err)
	}

	generator, err := newGenerator(ctx, cfg, log, &cl)
	if err != nil {
		return fmt.Errorf("failed to initialize LLM: %w", err)
	}

	translator, err := newTranslator(ctx, cfg, log)
	if err != nil {
		return err
	}

	history := store.NewHistoryStore(cfg.HistoryMax)
	ragService := core.NewRAGService(embedder, index, cfg.TopK, log.With().Str("component", "rag").Logger())
	chatService := core.NewChatService(
		translator,
		ragService,
		core.NewOrchestrator(generator, log.With().Str("component", "orchestrator").Logger()),
		cache.NewResponseCache(cfg.ResponseCacheSize, cfg.ResponseCacheTTL),
		history,
		log.With().Str("component", "chat").Logger(),
	)

	firLog := log.With().Str("component", "fir").Logger()
	firService := fir.NewService(
		history,
		fir.NewExtractor(generator, translator, firLog),
		fir.NewRenderer(cfg.DataDir, cfg.FontsDir, firLog),
		firLog,
	)

	apiHandler := api.NewAPIHandler(chatService, firService, log.With().Str("component", "api").Logger())
	router := api.NewRouter(apiHandler, cfg.Origins(), log.With().Str("component", "http").Logger())

	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // streams lift this per response
		IdleTimeout:  120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", serverAddr).Msg("Starting server. Press Ctrl+C to quit.")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		return fmt.Errorf("could not listen on %s: %w", serverAddr, err)
	case <-quit:
	}
	log.Info().Msg("Shutting down server...")

	// Give active connections time to finish.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info().Msg("Server exiting gracefully")
	return nil
}

func runSeed(ctx context.Context, files []string, dryRun bool) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	docs := ingest.DefaultDocuments(cfg.DocsDir)
	for _, f := range files {
		d, err := ingest.ParseDocument(f)
		if err != nil {
			return err
		}
		docs = append(docs, d)
	}

	var cl closers
	defer cl.run(log)

	embedder := newEmbeddingHandle(cfg, log, &cl)
	index, err := newIndex(ctx, cfg, log, &cl)
	if err != nil {
		return fmt.Errorf("failed to initialize vector index: %w", err)
	}
	if !dryRun {
		if err := embedder.Init(ctx); err != nil {
			return fmt.Errorf("embedding provider: %w", err)
		}
	}

	log.Info().Int("documents", len(docs)).Bool("dry_run", dryRun).Msg("Starting data ingestion process...")
	report, err := ingest.NewSeeder(embedder, index, log.With().Str("component", "seed").Logger()).Seed(ctx, docs, dryRun)
	if err != nil {
		return fmt.Errorf("data ingestion failed: %w", err)
	}
	for _, d := range report.Documents {
		fmt.Printf("%-24s %-20s %d chunks\n", d.Source, d.Category, d.Chunks)
	}
	log.Info().Int("chunks", report.Chunks).Msg("Data ingestion complete")
	return nil
}
