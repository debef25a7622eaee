package usecase

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kemingtech/catalog-assistant/internal/core/domain"
	"github.com/kemingtech/catalog-assistant/internal/core/ports"
)

// UploadUseCase receives a raw document, stores it, records it in the
// registry and hands it to the ingestion worker via the queue. The
// storage key doubles as the source identity grouping the document's
// chunks in the semantic index.
type UploadUseCase struct {
	repo     ports.DocumentRepository
	storage  ports.ObjectStorage
	queue    ports.MessageQueue
	pipeline *IngestPipeline
}

func NewUploadUseCase(repo ports.DocumentRepository, storage ports.ObjectStorage, queue ports.MessageQueue, pipeline *IngestPipeline) *UploadUseCase {
	return &UploadUseCase{
		repo:     repo,
		storage:  storage,
		queue:    queue,
		pipeline: pipeline,
	}
}

func (uc *UploadUseCase) Upload(ctx context.Context, filename, mimeType string, body io.Reader) (*domain.Document, error) {
	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(filename))
	now := time.Now().UTC()

	if err := uc.storage.Save(ctx, storageKey, body); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	doc := &domain.Document{
		ID:          id,
		SourceID:    storageKey,
		Filename:    filename,
		MimeType:    mimeType,
		StoragePath: storageKey,
		Status:      domain.StatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := uc.repo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document record: %w", err)
	}

	if err := uc.queue.PublishDocumentStored(ctx, doc.SourceID); err != nil {
		return nil, fmt.Errorf("publish document stored event: %w", err)
	}

	return doc, nil
}

// Remove deletes the document's chunks, registry record and stored
// file. The chunk deletion runs first so a partial failure never leaves
// orphaned grounding material behind a missing registry row.
func (uc *UploadUseCase) Remove(ctx context.Context, sourceID string) error {
	if err := uc.pipeline.RemoveDocument(ctx, sourceID); err != nil {
		return err
	}
	if err := uc.repo.DeleteBySourceID(ctx, sourceID); err != nil {
		return fmt.Errorf("delete document record: %w", err)
	}
	if err := uc.storage.Remove(ctx, sourceID); err != nil {
		return fmt.Errorf("remove stored file: %w", err)
	}
	return nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		return "document.bin"
	}
	return base
}
