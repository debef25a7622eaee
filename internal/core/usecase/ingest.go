package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/kemingtech/catalog-assistant/internal/core/domain"
	"github.com/kemingtech/catalog-assistant/internal/core/ports"
)

// IngestPipeline drives extraction, metadata stamping and the
// replace-not-append write into the semantic index: any prior chunk
// generation for the source is deleted before the new one is inserted,
// so a source never accumulates stale chunks across re-ingestions.
type IngestPipeline struct {
	extractor ports.ChunkExtractor
	index     ports.IndexLifecycle
	logger    *slog.Logger
}

func NewIngestPipeline(extractor ports.ChunkExtractor, index ports.IndexLifecycle, logger *slog.Logger) *IngestPipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestPipeline{
		extractor: extractor,
		index:     index,
		logger:    logger,
	}
}

// ProcessDocument ingests the file at path under its canonical path as
// source identity.
func (p *IngestPipeline) ProcessDocument(ctx context.Context, path string) error {
	source := path
	if abs, err := filepath.Abs(path); err == nil {
		source = abs
	}
	_, err := p.ProcessDocumentAs(ctx, path, source, filepath.Base(path))
	return err
}

// ProcessDocumentAs ingests the file at path under an explicit source
// identity and display name, returning the number of chunks written.
// Extraction failure aborts with no index mutation. A failing delete of
// the prior generation is tolerated (treated as "no prior generation")
// but always completes before the upsert begins. A failing upsert is
// retried exactly once against a freshly recreated index handle.
func (p *IngestPipeline) ProcessDocumentAs(ctx context.Context, path, sourceID, displayName string) (int, error) {
	chunks, err := p.extractor.Extract(ctx, path)
	if err != nil {
		return 0, domain.WrapError(domain.ErrExtraction, "extract document", err)
	}
	if len(chunks) == 0 {
		return 0, domain.WrapError(domain.ErrExtraction, "extract document", errors.New("no chunks extracted"))
	}

	for i := range chunks {
		chunks[i].SourceID = sourceID
		chunks[i].DisplayName = displayName
		if chunks[i].Metadata == nil {
			chunks[i].Metadata = map[string]string{}
		}
		chunks[i].Metadata[domain.MetaSource] = sourceID
		chunks[i].Metadata[domain.MetaFilename] = displayName
	}

	if err := p.index.Delete(ctx, map[string]string{domain.MetaSource: sourceID}); err != nil {
		// Tolerated: the prior generation may simply not exist.
		p.logger.Warn("delete prior chunks failed", "source", sourceID, "error", err)
	}

	if err := p.index.Upsert(ctx, chunks); err != nil {
		p.logger.Warn("upsert failed, retrying with fresh index handle", "source", sourceID, "error", err)
		if refreshErr := p.index.Refresh(ctx); refreshErr != nil {
			return 0, fmt.Errorf("refresh index handle: %w", refreshErr)
		}
		if err := p.index.Upsert(ctx, chunks); err != nil {
			return 0, domain.WrapError(domain.ErrIndexWrite, "upsert chunks", err)
		}
	}

	p.logger.Info("document ingested", "source", sourceID, "chunks", len(chunks))
	return len(chunks), nil
}

// RemoveDocument deletes every chunk of the source from the index.
// Removing a source that was never ingested is not an error; only an
// unreachable index is.
func (p *IngestPipeline) RemoveDocument(ctx context.Context, sourceID string) error {
	if err := p.index.Delete(ctx, map[string]string{domain.MetaSource: sourceID}); err != nil {
		return domain.WrapError(domain.ErrIndexWrite, "remove document", err)
	}
	return nil
}
