package usecase

import (
	"context"
	"fmt"

	"github.com/kemingtech/catalog-assistant/internal/core/domain"
	"github.com/kemingtech/catalog-assistant/internal/core/ports"
)

// ProcessStoredUseCase runs the ingestion pipeline for a previously
// stored document and tracks its registry status through
// processing/ready/failed.
type ProcessStoredUseCase struct {
	repo     ports.DocumentRepository
	storage  ports.ObjectStorage
	pipeline *IngestPipeline
}

func NewProcessStoredUseCase(repo ports.DocumentRepository, storage ports.ObjectStorage, pipeline *IngestPipeline) *ProcessStoredUseCase {
	return &ProcessStoredUseCase{
		repo:     repo,
		storage:  storage,
		pipeline: pipeline,
	}
}

func (uc *ProcessStoredUseCase) ProcessBySourceID(ctx context.Context, sourceID string) error {
	doc, err := uc.repo.GetBySourceID(ctx, sourceID)
	if err != nil {
		return fmt.Errorf("fetch document by source id: %w", err)
	}

	if err := uc.repo.UpdateStatus(ctx, sourceID, domain.StatusProcessing, 0, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	path := uc.storage.Path(doc.StoragePath)
	chunkCount, err := uc.pipeline.ProcessDocumentAs(ctx, path, doc.SourceID, doc.Filename)
	if err != nil {
		if failErr := uc.repo.UpdateStatus(ctx, sourceID, domain.StatusFailed, 0, err.Error()); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.repo.UpdateStatus(ctx, sourceID, domain.StatusReady, chunkCount, ""); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}
	return nil
}
