package domain

// Chunk is the atomic unit stored in and retrieved from the semantic
// index: a bounded span of extracted document text plus its metadata.
// Chunks are immutable; re-ingesting a source replaces its chunks
// instead of mutating them.
type Chunk struct {
	Text        string            `json:"text"`
	SourceID    string            `json:"source_id"`
	DisplayName string            `json:"display_name"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// MetaValue reads a metadata key, tolerating a nil map.
func (c Chunk) MetaValue(key string) string {
	if c.Metadata == nil {
		return ""
	}
	return c.Metadata[key]
}

// Reserved metadata keys stamped by the ingestion pipeline and the
// catalog loaders.
const (
	MetaSource          = "source"
	MetaFilename        = "filename"
	MetaProductID       = "product_id"
	MetaProductName     = "product_name"
	MetaProductCategory = "product_category"
	MetaImages          = "images"
)

// ScoredChunk is a chunk paired with its retrieval relevance.
// Score is cosine similarity: higher means more relevant.
type ScoredChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// IndexStats summarizes the semantic index contents.
type IndexStats struct {
	TotalChunks   int            `json:"total_chunks"`
	UniqueSources int            `json:"unique_sources"`
	PerSource     map[string]int `json:"per_source"`
}
