// Package sqlitevec persists the semantic index in an embedded SQLite
// database owned as a single on-disk directory, with brute-force cosine
// similarity over little-endian float32 vector blobs.
//
// Score convention: cosine similarity, higher means more relevant.
// Equal scores are broken by ingestion order (rowid ascending).
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/kemingtech/catalog-assistant/internal/core/domain"
	"github.com/kemingtech/catalog-assistant/internal/core/ports"
)

const dbFilename = "index.db"

const schema = `
CREATE TABLE IF NOT EXISTS chunks (
	id TEXT PRIMARY KEY,
	source_id TEXT NOT NULL,
	display_name TEXT NOT NULL,
	text TEXT NOT NULL,
	metadata TEXT NOT NULL,
	vector BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source_id);
`

// Store is one open generation of the index. It is created and
// replaced only by the Manager; a Store closed mid-operation surfaces
// database errors rather than stale reads.
type Store struct {
	db           *sql.DB
	dir          string
	embedder     ports.Embedder
	embedTimeout time.Duration
}

// Open creates the index directory if needed and opens the database
// inside it. The directory is exclusively owned by this package and is
// removable/recreatable as a unit.
func Open(dir string, embedder ports.Embedder, embedTimeout time.Duration) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}

	dbPath := filepath.Join(dir, dbFilename)
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open index db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure index schema: %w", err)
	}

	if embedTimeout <= 0 {
		embedTimeout = 30 * time.Second
	}
	return &Store{
		db:           db,
		dir:          dir,
		embedder:     embedder,
		embedTimeout: embedTimeout,
	}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Upsert embeds and persists the chunks. It does not deduplicate;
// replace semantics are the caller's delete-before-upsert contract.
func (s *Store) Upsert(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	embedCtx, cancel := context.WithTimeout(ctx, s.embedTimeout)
	defer cancel()
	vectors, err := s.embedder.Embed(embedCtx, texts)
	if err != nil {
		return domain.WrapError(domain.ErrIndexWrite, "embed chunks", err)
	}
	if len(vectors) != len(chunks) {
		return domain.WrapError(domain.ErrIndexWrite, "embed chunks",
			fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(chunks)))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.WrapError(domain.ErrIndexWrite, "begin upsert tx", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const insert = `INSERT INTO chunks (id, source_id, display_name, text, metadata, vector) VALUES (?, ?, ?, ?, ?, ?)`
	for i, chunk := range chunks {
		meta, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return domain.WrapError(domain.ErrIndexWrite, "marshal metadata", err)
		}
		if _, err := tx.ExecContext(ctx, insert,
			uuid.NewString(), chunk.SourceID, chunk.DisplayName, chunk.Text, string(meta), encodeVector(vectors[i]),
		); err != nil {
			return domain.WrapError(domain.ErrIndexWrite, "insert chunk", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.WrapError(domain.ErrIndexWrite, "commit upsert", err)
	}
	return nil
}

// Delete removes every chunk whose metadata matches all filter keys
// exactly. An empty filter matches everything. Matching nothing is a
// no-op, not an error.
func (s *Store) Delete(ctx context.Context, filter map[string]string) error {
	rows, err := s.db.QueryContext(ctx, `SELECT id, metadata FROM chunks`)
	if err != nil {
		return domain.WrapError(domain.ErrIndexWrite, "select for delete", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id, rawMeta string
		if err := rows.Scan(&id, &rawMeta); err != nil {
			return domain.WrapError(domain.ErrIndexWrite, "scan for delete", err)
		}
		if metadataMatches(rawMeta, filter) {
			ids = append(ids, id)
		}
	}
	if err := rows.Err(); err != nil {
		return domain.WrapError(domain.ErrIndexWrite, "iterate for delete", err)
	}
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.WrapError(domain.ErrIndexWrite, "begin delete tx", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE id = ?`, id); err != nil {
			return domain.WrapError(domain.ErrIndexWrite, "delete chunk", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.WrapError(domain.ErrIndexWrite, "commit delete", err)
	}
	return nil
}

type storedChunk struct {
	rowid  int64
	chunk  domain.Chunk
	vector []float32
}

// Search embeds the query and returns the k most similar chunks,
// optionally restricted to entries matching the filter exactly. An
// empty index yields an empty result, not an error.
func (s *Store) Search(ctx context.Context, query string, k int, filter map[string]string) ([]domain.ScoredChunk, error) {
	if k <= 0 {
		k = 3
	}

	stored, err := s.scan(ctx, filter, true)
	if err != nil {
		return nil, domain.WrapError(domain.ErrIndexRead, "scan chunks", err)
	}
	if len(stored) == 0 {
		return []domain.ScoredChunk{}, nil
	}

	embedCtx, cancel := context.WithTimeout(ctx, s.embedTimeout)
	defer cancel()
	queryVector, err := s.embedder.EmbedQuery(embedCtx, query)
	if err != nil {
		return nil, domain.WrapError(domain.ErrIndexRead, "embed query", err)
	}

	scored := make([]domain.ScoredChunk, 0, len(stored))
	order := make(map[int]int64, len(stored))
	for i, entry := range stored {
		scored = append(scored, domain.ScoredChunk{
			Chunk: entry.chunk,
			Score: cosineSimilarity(queryVector, entry.vector),
		})
		order[i] = entry.rowid
	}

	indices := make([]int, len(scored))
	for i := range indices {
		indices[i] = i
	}
	sort.SliceStable(indices, func(a, b int) bool {
		if scored[indices[a]].Score != scored[indices[b]].Score {
			return scored[indices[a]].Score > scored[indices[b]].Score
		}
		return order[indices[a]] < order[indices[b]]
	})

	if k > len(indices) {
		k = len(indices)
	}
	out := make([]domain.ScoredChunk, 0, k)
	for _, idx := range indices[:k] {
		out = append(out, scored[idx])
	}
	return out, nil
}

// GetByFilter returns the chunks matching the filter exactly, in
// ingestion order, without ranking.
func (s *Store) GetByFilter(ctx context.Context, filter map[string]string) ([]domain.Chunk, error) {
	stored, err := s.scan(ctx, filter, false)
	if err != nil {
		return nil, domain.WrapError(domain.ErrIndexRead, "scan chunks", err)
	}
	out := make([]domain.Chunk, 0, len(stored))
	for _, entry := range stored {
		out = append(out, entry.chunk)
	}
	return out, nil
}

func (s *Store) Stats(ctx context.Context) (domain.IndexStats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT source_id, COUNT(*) FROM chunks GROUP BY source_id`)
	if err != nil {
		return domain.IndexStats{}, domain.WrapError(domain.ErrIndexRead, "query stats", err)
	}
	defer rows.Close()

	stats := domain.IndexStats{PerSource: map[string]int{}}
	for rows.Next() {
		var source string
		var count int
		if err := rows.Scan(&source, &count); err != nil {
			return domain.IndexStats{}, domain.WrapError(domain.ErrIndexRead, "scan stats", err)
		}
		stats.PerSource[source] = count
		stats.TotalChunks += count
		stats.UniqueSources++
	}
	if err := rows.Err(); err != nil {
		return domain.IndexStats{}, domain.WrapError(domain.ErrIndexRead, "iterate stats", err)
	}
	return stats, nil
}

func (s *Store) scan(ctx context.Context, filter map[string]string, withVectors bool) ([]storedChunk, error) {
	columns := `rowid, source_id, display_name, text, metadata`
	if withVectors {
		columns += `, vector`
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+columns+` FROM chunks ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storedChunk
	for rows.Next() {
		var entry storedChunk
		var rawMeta string
		var blob []byte
		if withVectors {
			err = rows.Scan(&entry.rowid, &entry.chunk.SourceID, &entry.chunk.DisplayName, &entry.chunk.Text, &rawMeta, &blob)
		} else {
			err = rows.Scan(&entry.rowid, &entry.chunk.SourceID, &entry.chunk.DisplayName, &entry.chunk.Text, &rawMeta)
		}
		if err != nil {
			return nil, err
		}
		if !metadataMatches(rawMeta, filter) {
			continue
		}
		if err := json.Unmarshal([]byte(rawMeta), &entry.chunk.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
		if withVectors {
			entry.vector = decodeVector(blob)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func metadataMatches(rawMeta string, filter map[string]string) bool {
	if len(filter) == 0 {
		return true
	}
	var meta map[string]string
	if err := json.Unmarshal([]byte(rawMeta), &meta); err != nil {
		return false
	}
	for key, want := range filter {
		if meta[key] != want {
			return false
		}
	}
	return true
}

func encodeVector(vector []float32) []byte {
	buf := make([]byte, 4*len(vector))
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vector
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
