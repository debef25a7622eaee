// Package extractor turns source documents into ordered chunk
// sequences. Plain text and PDF content is split by the rune-window
// chunker; catalog files (.json, .xlsx) produce one chunk per product
// with structured metadata so entity lookups can bypass similarity
// ranking.
package extractor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kemingtech/catalog-assistant/internal/core/domain"
	"github.com/kemingtech/catalog-assistant/internal/infrastructure/chunking"
)

type Extractor struct {
	splitter *chunking.Splitter
}

func New(splitter *chunking.Splitter) *Extractor {
	return &Extractor{splitter: splitter}
}

// Extract reads the file at path and returns its chunks. The format is
// chosen by extension; unknown extensions are treated as plain text.
func (e *Extractor) Extract(ctx context.Context, path string) ([]domain.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return extractJSONCatalog(content)
	case ".xlsx":
		return extractExcelCatalog(content)
	case ".pdf":
		text, err := extractPDF(content)
		if err != nil {
			return nil, err
		}
		return e.chunksFromText(text)
	default:
		text, err := extractPlain(content, path)
		if err != nil {
			return nil, err
		}
		return e.chunksFromText(text)
	}
}

func (e *Extractor) chunksFromText(text string) ([]domain.Chunk, error) {
	parts := e.splitter.Split(text)
	if len(parts) == 0 {
		return nil, fmt.Errorf("document contains no extractable text")
	}
	chunks := make([]domain.Chunk, 0, len(parts))
	for _, part := range parts {
		chunks = append(chunks, domain.Chunk{Text: part})
	}
	return chunks, nil
}
