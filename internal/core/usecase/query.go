package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/kemingtech/catalog-assistant/internal/core/domain"
	"github.com/kemingtech/catalog-assistant/internal/core/ports"
)

const defaultTopK = 3

// QueryEngine answers questions against the semantic index: it
// classifies the question, retrieves the top-k chunks, fills the
// matching prompt template and asks the generator. Retrieval or
// generation failures degrade to fixed fallback answers instead of
// propagating to the conversational surface.
type QueryEngine struct {
	index     ports.SemanticIndex
	generator ports.Generator
	topK      int
	logger    *slog.Logger
}

func NewQueryEngine(index ports.SemanticIndex, generator ports.Generator, topK int, logger *slog.Logger) *QueryEngine {
	if topK <= 0 {
		topK = defaultTopK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryEngine{
		index:     index,
		generator: generator,
		topK:      topK,
		logger:    logger,
	}
}

// Answer produces a QueryResult for the question. The history argument
// is accepted for future conditioning and not used for retrieval.
// The only hard error is ErrInvalidQuery for an empty question.
func (e *QueryEngine) Answer(ctx context.Context, question string, _ []domain.Message) (*domain.QueryResult, error) {
	if strings.TrimSpace(question) == "" {
		return nil, domain.WrapError(domain.ErrInvalidQuery, "answer", errors.New("empty question"))
	}

	class := Classify(question)

	stats, err := e.index.Stats(ctx)
	if err != nil {
		e.logger.Error("index stats failed", "error", err)
		return &domain.QueryResult{Answer: answerNoDocuments, Sources: []domain.SourceRecord{}}, nil
	}
	if stats.TotalChunks == 0 {
		return &domain.QueryResult{Answer: answerNoDocuments, Sources: []domain.SourceRecord{}}, nil
	}

	hits, err := e.index.Search(ctx, question, e.topK, nil)
	if err != nil {
		e.logger.Error("similarity search failed", "error", err, "class", class)
		return &domain.QueryResult{Answer: answerNoMatches, Sources: []domain.SourceRecord{}}, nil
	}
	if len(hits) == 0 {
		return &domain.QueryResult{Answer: answerNoMatches, Sources: []domain.SourceRecord{}}, nil
	}

	prompt := buildPrompt(class, buildContext(hits), question)
	answer, err := e.generator.Generate(ctx, prompt)
	if err != nil {
		e.logger.Error("answer generation failed", "error", domain.WrapError(domain.ErrGeneration, "generate", err), "class", class)
		return &domain.QueryResult{Answer: answerGenFailed, Sources: []domain.SourceRecord{}}, nil
	}

	return &domain.QueryResult{
		Answer:  answer,
		Sources: e.buildSources(hits),
	}, nil
}

// ProductByID retrieves the chunks for a known product identifier.
// Exact metadata lookup comes first; when the id was never captured as
// structured metadata the free-text similarity path still finds it.
func (e *QueryEngine) ProductByID(ctx context.Context, productID string) ([]domain.Chunk, error) {
	chunks, err := e.index.GetByFilter(ctx, map[string]string{domain.MetaProductID: productID})
	if err != nil {
		e.logger.Warn("product filter lookup failed", "product_id", productID, "error", err)
	}
	if len(chunks) > 0 {
		return chunks, nil
	}

	hits, err := e.index.Search(ctx, productID, defaultTopK, nil)
	if err != nil {
		return nil, fmt.Errorf("product fallback search: %w", err)
	}
	out := make([]domain.Chunk, 0, len(hits))
	for _, hit := range hits {
		out = append(out, hit.Chunk)
	}
	return out, nil
}

// IndexStats reports the current index contents.
func (e *QueryEngine) IndexStats(ctx context.Context) (domain.IndexStats, error) {
	return e.index.Stats(ctx)
}

func (e *QueryEngine) buildSources(hits []domain.ScoredChunk) []domain.SourceRecord {
	sources := make([]domain.SourceRecord, 0, len(hits))
	for _, hit := range hits {
		record := domain.SourceRecord{
			Content:  hit.Chunk.Text,
			Metadata: hit.Chunk.Metadata,
			Score:    hit.Score,
		}
		if raw := hit.Chunk.MetaValue(domain.MetaImages); raw != "" {
			record.Media = e.parseMediaRefs(raw)
		}
		sources = append(sources, record)
	}
	return sources
}

// parseMediaRefs decodes the "images" metadata value, a JSON object of
// key -> "path|page" pairs. Malformed entries are skipped, never fatal.
func (e *QueryEngine) parseMediaRefs(raw string) map[string]domain.MediaRef {
	var entries map[string]string
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		e.logger.Warn("malformed images metadata", "error", err)
		return nil
	}

	refs := make(map[string]domain.MediaRef, len(entries))
	for key, value := range entries {
		path, pageStr, ok := strings.Cut(value, "|")
		if !ok {
			e.logger.Warn("malformed media reference", "key", key, "value", value)
			continue
		}
		page, err := strconv.Atoi(pageStr)
		if err != nil {
			e.logger.Warn("malformed media page", "key", key, "value", value)
			continue
		}
		refs[key] = domain.MediaRef{Path: path, Page: page}
	}
	if len(refs) == 0 {
		return nil
	}
	return refs
}
