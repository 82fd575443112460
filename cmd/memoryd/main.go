package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/outbrain/memoryd/internal/auth"
	"github.com/outbrain/memoryd/internal/config"
	"github.com/outbrain/memoryd/internal/embedder"
	"github.com/outbrain/memoryd/internal/graphstore"
	"github.com/outbrain/memoryd/internal/ingestion"
	"github.com/outbrain/memoryd/internal/llm"
	"github.com/outbrain/memoryd/internal/memory"
	"github.com/outbrain/memoryd/internal/reasoning"
	"github.com/outbrain/memoryd/internal/repository"
	"github.com/outbrain/memoryd/internal/repository/postgres"
	"github.com/outbrain/memoryd/internal/reranker"
	"github.com/outbrain/memoryd/internal/server"
	"github.com/outbrain/memoryd/internal/vectorstore"
)

func main() {
	// Set up structured logging
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("failed to run server", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	slog.Info("starting memory service",
		"http_port", cfg.HTTPPort,
		"environment", cfg.Environment,
		"llm_provider", cfg.LLMProvider,
	)

	// Initialize PostgreSQL
	db, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	slog.Info("connected to PostgreSQL")

	recordRepo := postgres.NewRecordRepo(db)

	// Initialize LLM oracle and embedder for the configured provider
	var oracle llm.Oracle
	var embed embedder.Embedder
	switch cfg.LLMProvider {
	case "ollama":
		oracle = llm.NewOllamaClient(
			llm.WithOllamaBaseURL(cfg.OllamaURL),
			llm.WithOllamaModel(cfg.OllamaLLMModel),
		)
		embed = embedder.NewOllamaEmbedder(embedder.OllamaConfig{
			BaseURL: cfg.OllamaURL,
			Model:   cfg.OllamaEmbeddingModel,
		})
		slog.Info("initialized Ollama provider", "model", cfg.OllamaLLMModel)
	default:
		if cfg.NvidiaAPIKey == "" {
			slog.Warn("NVIDIA_API_KEY not set, generation disabled and embeddings degraded")
		}
		oracle = llm.NewOpenAIClient(cfg.NvidiaAPIKey,
			llm.WithOpenAIBaseURL(cfg.NvidiaBaseURL),
			llm.WithOpenAIModel(cfg.GenerationModel),
		)
		embed = embedder.NewNIMEmbedder(embedder.NIMConfig{
			APIKey:    cfg.NvidiaAPIKey,
			BaseURL:   cfg.NvidiaBaseURL,
			Model:     cfg.EmbeddingModel,
			Dimension: cfg.EmbeddingDimension,
		})
		slog.Info("initialized NIM provider", "model", cfg.GenerationModel)
	}

	// Initialize Qdrant vector store
	vectorStore, err := vectorstore.NewQdrantStore(ctx, cfg.QdrantGRPCURL, cfg.QdrantCollection)
	if err != nil {
		return fmt.Errorf("failed to connect to Qdrant: %w", err)
	}
	defer vectorStore.Close()
	if err := vectorStore.EnsureCollection(ctx, embed.Dimension()); err != nil {
		return fmt.Errorf("failed to ensure vector collection: %w", err)
	}
	slog.Info("connected to Qdrant", "collection", cfg.QdrantCollection)

	// Initialize Neo4j graph store. Optional: the pipeline degrades without
	// graph context.
	var graphStore graphstore.GraphStore
	neoStore, err := graphstore.NewNeo4jStore(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword,
		graphstore.WithPathLimit(cfg.GraphPathLimit))
	if err != nil {
		slog.Warn("Neo4j unavailable, graph features disabled", "error", err)
	} else {
		graphStore = neoStore
		defer neoStore.Close(ctx)
		slog.Info("connected to Neo4j")
	}

	// Initialize services
	sessions := memory.DefaultStore()
	rerank := reranker.NewLLMReranker(oracle, cfg.RerankModel)
	synth := reasoning.NewSynthesizer(oracle, cfg.GenerationModel)
	extractor := ingestion.NewExtractor(oracle, cfg.ExtractionModel)

	reasoningSvc := reasoning.NewService(
		embed,
		vectorStore,
		recordRepo,
		rerank,
		graphStore,
		synth,
		sessions,
		reasoning.Options{
			TopK:            cfg.TopK,
			VectorWeight:    cfg.VectorWeight,
			TextWeight:      cfg.TextWeight,
			TimeDecayWeight: cfg.TimeDecayWeight,
			RRFK:            cfg.RRFK,
			HalfLifeDays:    cfg.HalfLifeDays,
			HopDistance:     cfg.GraphHopDistance,
			SearchTimeout:   cfg.SearchTimeout,
			GenerateTimeout: cfg.GenerateTimeout,
			DisableRecency:  cfg.DisableRecency,
		},
		slog.Default(),
	)

	pipeline := ingestion.NewPipeline(recordRepo, vectorStore, graphStore, embed, extractor, slog.Default())

	// Auth
	jwtManager := auth.NewJWTManager(&auth.JWTConfig{
		Secret: cfg.JWTSecret,
		Expiry: cfg.JWTExpiry,
		Issuer: "memoryd",
	})
	authMW := auth.NewMiddleware(jwtManager, cfg.AdminAPIKey)
	if cfg.AuthDisabled {
		slog.Warn("authentication disabled, user identity taken from requests")
	}

	// Create HTTP server
	httpServer, err := server.NewHTTPServer(server.HTTPServerConfig{
		Port:           cfg.HTTPPort,
		Logger:         slog.Default(),
		AllowedOrigins: cfg.AllowedOrigins,
		Questions:      reasoningSvc,
		Records:        pipeline,
		Reader:         recordRepo,
		AuthMiddleware: authMW,
		TokenIssuer:    jwtManager,
		AuthDisabled:   cfg.AuthDisabled,
	})
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil {
			errCh <- err
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		slog.Info("received shutdown signal", "signal", sig)
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown HTTP server", "error", err)
	}

	slog.Info("server stopped")
	return nil
}

// Ensure interfaces are satisfied at compile time
var (
	_ repository.RecordRepository = (*postgres.RecordRepo)(nil)
	_ vectorstore.VectorStore     = (*vectorstore.QdrantStore)(nil)
	_ graphstore.GraphStore       = (*graphstore.Neo4jStore)(nil)
	_ embedder.Embedder           = (*embedder.NIMEmbedder)(nil)
	_ embedder.Embedder           = (*embedder.OllamaEmbedder)(nil)
	_ llm.Oracle                  = (*llm.OpenAIClient)(nil)
	_ llm.Oracle                  = (*llm.OllamaClient)(nil)
	_ reranker.Reranker           = (*reranker.LLMReranker)(nil)
	_ server.QuestionService      = (*reasoning.Service)(nil)
	_ server.RecordService        = (*ingestion.Pipeline)(nil)
	_ server.RecordReader         = (*postgres.RecordRepo)(nil)
	_ server.TokenIssuer          = (*auth.JWTManager)(nil)
	_ reasoning.TextSearcher      = (*postgres.RecordRepo)(nil)
)
