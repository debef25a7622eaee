package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kemingtech/catalog-assistant/internal/config"
	"github.com/kemingtech/catalog-assistant/internal/core/ports"
	"github.com/kemingtech/catalog-assistant/internal/core/usecase"
	"github.com/kemingtech/catalog-assistant/internal/infrastructure/chunking"
	"github.com/kemingtech/catalog-assistant/internal/infrastructure/extractor"
	"github.com/kemingtech/catalog-assistant/internal/infrastructure/index/sqlitevec"
	"github.com/kemingtech/catalog-assistant/internal/infrastructure/llm/ollama"
	"github.com/kemingtech/catalog-assistant/internal/infrastructure/queue/nats"
	"github.com/kemingtech/catalog-assistant/internal/infrastructure/repository/postgres"
	"github.com/kemingtech/catalog-assistant/internal/infrastructure/storage/localfs"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue ports.MessageQueue
	Repo  ports.DocumentRepository
	Index ports.IndexLifecycle

	IngestUC  ports.DocumentIngestor
	ProcessUC ports.DocumentProcessor
	QueryUC   ports.QueryService

	closeFn func()
}

// New wires the full application graph. A pending index reset marker
// is consumed before any index handle can be created.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := sqlitevec.ConsumePendingReset(cfg.IndexDir(), logger); err != nil {
		return nil, fmt.Errorf("consume pending index reset: %w", err)
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.UploadDir())
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	embedTimeout := time.Duration(cfg.EmbedTimeoutSeconds) * time.Second
	client := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, ollama.Options{
		EmbedTimeout: embedTimeout,
		GenTimeout:   time.Duration(cfg.GenerateTimeoutSeconds) * time.Second,
	})
	embedder := ollama.NewEmbedder(client)
	generator := ollama.NewGenerator(client)

	index := sqlitevec.NewManager(cfg.IndexDir(), embedder, embedTimeout, logger)

	splitter := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	chunkExtractor := extractor.New(splitter)

	pipeline := usecase.NewIngestPipeline(chunkExtractor, index, logger)
	ingestUC := usecase.NewUploadUseCase(repo, storage, queue, pipeline)
	processUC := usecase.NewProcessStoredUseCase(repo, storage, pipeline)
	queryUC := usecase.NewQueryEngine(index, generator, cfg.RAGTopK, logger)

	return &App{
		Config: cfg,
		Logger: logger,

		Queue: queue,
		Repo:  repo,
		Index: index,

		IngestUC:  ingestUC,
		ProcessUC: processUC,
		QueryUC:   queryUC,

		closeFn: func() {
			queue.Close()
			if err := index.Close(); err != nil {
				logger.Warn("close semantic index", "error", err)
			}
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
