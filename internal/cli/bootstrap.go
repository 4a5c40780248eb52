package cli

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"

	"pdfrag/internal/chunkstore"
	"pdfrag/internal/config"
	"pdfrag/internal/faq"
	"pdfrag/internal/handlers"
	"pdfrag/internal/indexer"
	"pdfrag/internal/library"
	"pdfrag/internal/llm"
	"pdfrag/internal/metrics"
	"pdfrag/internal/pdftext"
	"pdfrag/internal/rag"
	"pdfrag/internal/service"
	"pdfrag/internal/storage"
	"pdfrag/internal/vectorstore"
	"pdfrag/internal/watcher"
)

// App is the wired application shared by the commands.
type App struct {
	Config  *config.Config
	Root    *library.Root
	Options indexer.Options

	Ask     service.AskService
	Library service.LibraryService
	Indexer watcher.Indexer
	FAQ     *faq.Catalogue
	Metrics *metrics.Metrics
	Checks  []handlers.HealthCheck
	closers []io.Closer
}

// Close releases the database and vector store connections.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i].Close()
	}
}

// newApp builds the App for a command. Tests replace it.
var newApp = Bootstrap

// configureLogging installs the default slog logger described by cfg.
func configureLogging(cfg *config.Config, w io.Writer) {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)
}

// Bootstrap loads the configuration and wires storage, the vector store, the
// model provider and the services.
func Bootstrap(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	// Logs go to stderr so that stdout stays usable for command output and MCP stdio.
	configureLogging(cfg, os.Stderr)

	app := &App{
		Config: cfg,
		Options: indexer.Options{
			EmbedModel: cfg.EmbeddingModelName,
			ChunkSize:  cfg.ChunkSize,
			Overlap:    cfg.ChunkOverlap,
		},
		Metrics: metrics.New(),
	}
	if err := app.wire(ctx); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) wire(ctx context.Context) error {
	cfg := a.Config

	db, err := storage.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	a.closers = append(a.closers, db)
	if err := storage.Migrate(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Info("Database initialized", "path", cfg.DBPath)

	chunkRepo := storage.NewChunkRepo(db)
	docRepo := storage.NewDocumentRepo(db)

	vectors, err := a.openVectorStore()
	if err != nil {
		return err
	}
	store := chunkstore.New(chunkRepo, vectors, cfg.Collection)
	if err := store.Ensure(ctx, cfg.VectorSize); err != nil {
		return fmt.Errorf("failed to ensure collection: %w", err)
	}
	slog.Info("Vector store ready", "backend", cfg.VectorBackend, "collection", cfg.Collection)

	if a.Root, err = library.NewRoot(cfg.UploadDir); err != nil {
		return err
	}

	embedder, chat := newProvider(cfg)
	embedder = llm.NewRateLimitedEmbedder(embedder, cfg.EmbedRateLimit)

	pipeline := indexer.NewPipeline(a.Root, pdftext.NewExtractor(), embedder, store, docRepo).WithMetrics(a.Metrics)
	a.Indexer = pipeline

	retriever := rag.NewRetriever(embedder, store).WithMetrics(a.Metrics)
	engine := rag.NewEngine(retriever, chat, a.Metrics)
	a.Ask = service.NewAskService(engine, rag.NewConversationStore(), rag.Settings{
		LLMModel:    cfg.LLMModelName,
		EmbedModel:  cfg.EmbeddingModelName,
		TopK:        cfg.TopK,
		Temperature: cfg.Temperature,
	})
	a.Library = service.NewLibraryService(pipeline, a.Root, store, chunkRepo, docRepo, a.Options)
	slog.Info("RAG engine initialized", "provider", cfg.LLMProvider, "model", cfg.LLMModelName)

	if a.FAQ, err = faq.Load(cfg.FAQPath); err != nil {
		return err
	}

	catalog := llm.NewModelCatalog(cfg.LLMBaseURL, cfg.LLMAPIKey)
	a.Checks = []handlers.HealthCheck{
		{Name: "vector_store", Critical: true, Check: store.Ping},
		{Name: "database", Critical: true, Check: pingDB(db)},
		{Name: "llm", Check: func(ctx context.Context) error {
			_, err := catalog.List(ctx)
			return err
		}},
	}
	return nil
}

func (a *App) openVectorStore() (vectorstore.VectorStore, error) {
	cfg := a.Config
	switch cfg.VectorBackend {
	case config.BackendQdrant:
		qs, err := vectorstore.NewQdrantStore(cfg.QdrantURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
		}
		a.closers = append(a.closers, qs)
		return qs, nil
	default:
		cs, err := vectorstore.NewChromemStore(cfg.ChromemPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open chromem store: %w", err)
		}
		return cs, nil
	}
}

// newProvider returns the embedder and chat model for the configured provider.
func newProvider(cfg *config.Config) (llm.Embedder, llm.ChatModel) {
	if cfg.LLMProvider == config.ProviderOpenAI {
		return llm.NewEmbeddingsClient(cfg.EmbeddingBaseURL, cfg.LLMAPIKey, cfg.EmbeddingModelName, cfg.VectorSize),
			llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModelName)
	}
	if cfg.EmbeddingBaseURL != cfg.LLMBaseURL {
		return llm.NewOllamaProvider(cfg.EmbeddingBaseURL, cfg.LLMModelName, cfg.EmbeddingModelName),
			llm.NewOllamaProvider(cfg.LLMBaseURL, cfg.LLMModelName, cfg.EmbeddingModelName)
	}
	p := llm.NewOllamaProvider(cfg.LLMBaseURL, cfg.LLMModelName, cfg.EmbeddingModelName)
	return p, p
}

func pingDB(db *sql.DB) func(context.Context) error {
	return db.PingContext
}
