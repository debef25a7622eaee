package ports

import (
	"context"
	"io"

	"github.com/kemingtech/catalog-assistant/internal/core/domain"
)

// DocumentIngestor is the inbound contract for upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, filename, mimeType string, body io.Reader) (*domain.Document, error)
	Remove(ctx context.Context, sourceID string) error
}

// DocumentProcessor runs the ingestion pipeline for a stored document.
type DocumentProcessor interface {
	ProcessBySourceID(ctx context.Context, sourceID string) error
}

// QueryService is the inbound contract for RAG question answering.
type QueryService interface {
	Answer(ctx context.Context, question string, history []domain.Message) (*domain.QueryResult, error)
	AnswerStream(ctx context.Context, question string, history []domain.Message) <-chan domain.StreamEvent
	ProductByID(ctx context.Context, productID string) ([]domain.Chunk, error)
	IndexStats(ctx context.Context) (domain.IndexStats, error)
}
