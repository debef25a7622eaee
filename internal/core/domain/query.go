package domain

// QueryClass tags a question as a free-form document question or a
// structured product-entity question. Produced by a pure classifier,
// never persisted.
type QueryClass string

const (
	ClassGeneral QueryClass = "general"
	ClassProduct QueryClass = "product"
)

// Message is one turn of conversation history. Accepted by the query
// engine but not yet used for retrieval.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// MediaRef points at an embedded media asset extracted alongside a
// chunk, e.g. a product photo on a catalog page.
type MediaRef struct {
	Path string `json:"path"`
	Page int    `json:"page"`
}

// SourceRecord grounds one answer on one retrieved chunk.
type SourceRecord struct {
	Content  string              `json:"content"`
	Metadata map[string]string   `json:"metadata"`
	Score    float64             `json:"score,omitempty"`
	Media    map[string]MediaRef `json:"images,omitempty"`
}

// QueryResult is a generated answer plus its grounding sources in
// retrieval rank order (most relevant first, not deduplicated).
type QueryResult struct {
	Answer  string         `json:"answer"`
	Sources []SourceRecord `json:"sources"`
}
