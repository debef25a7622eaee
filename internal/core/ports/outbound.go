package ports

import (
	"context"
	"io"

	"github.com/kemingtech/catalog-assistant/internal/core/domain"
)

// DocumentRepository persists registry state for uploaded sources.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetBySourceID(ctx context.Context, sourceID string) (*domain.Document, error)
	List(ctx context.Context) ([]domain.Document, error)
	UpdateStatus(ctx context.Context, sourceID string, status domain.DocumentStatus, chunkCount int, errMessage string) error
	DeleteBySourceID(ctx context.Context, sourceID string) error
}

// ObjectStorage stores the raw uploaded files.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Remove(ctx context.Context, key string) error
	// Path resolves the key to a local filesystem path for extractors.
	Path(key string) string
}

// MessageQueue publishes/consumes document-stored events.
type MessageQueue interface {
	PublishDocumentStored(ctx context.Context, sourceID string) error
	SubscribeDocumentStored(ctx context.Context, handler func(context.Context, string) error) error
}

// ChunkExtractor turns a source file into an ordered chunk sequence.
type ChunkExtractor interface {
	Extract(ctx context.Context, path string) ([]domain.Chunk, error)
}

// Embedder builds vectors for chunk text and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Generator creates the user-facing answer text from a filled prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// SemanticIndex is the single shared vector index. Upsert embeds and
// persists chunks; it does not deduplicate, callers replace a source by
// deleting its prior generation first. Filters are exact-match on every
// key (logical AND). Search scores are cosine similarity, higher is
// more relevant, ties broken by ingestion order.
type SemanticIndex interface {
	Upsert(ctx context.Context, chunks []domain.Chunk) error
	Delete(ctx context.Context, filter map[string]string) error
	Search(ctx context.Context, query string, k int, filter map[string]string) ([]domain.ScoredChunk, error)
	GetByFilter(ctx context.Context, filter map[string]string) ([]domain.Chunk, error)
	Stats(ctx context.Context) (domain.IndexStats, error)
	Reset(ctx context.Context) error
}

// IndexLifecycle controls the shared index handle beyond ordinary
// reads and writes.
type IndexLifecycle interface {
	SemanticIndex
	// Refresh discards the current handle and opens a fresh one.
	Refresh(ctx context.Context) error
	// MarkPendingReset schedules a hard reset for the next startup.
	MarkPendingReset() error
}
