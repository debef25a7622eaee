package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kemingtech/catalog-assistant/internal/core/domain"
)

// DocumentRepository is the registry of uploaded sources, keyed by the
// source id that groups a document's chunks in the semantic index.
type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *DocumentRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082801)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	source_id TEXT NOT NULL UNIQUE,
	filename TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	chunk_count INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	error_message TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO documents (
	id, source_id, filename, mime_type, storage_path, chunk_count, status, error_message, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`,
		doc.ID, doc.SourceID, doc.Filename, doc.MimeType, doc.StoragePath,
		doc.ChunkCount, string(doc.Status), doc.Error, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

const selectColumns = `id, source_id, filename, mime_type, storage_path, chunk_count, status, error_message, created_at, updated_at`

func (r *DocumentRepository) GetBySourceID(ctx context.Context, sourceID string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+selectColumns+`
FROM documents
WHERE source_id = $1
`, sourceID)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("source %s", sourceID))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	return doc, nil
}

func (r *DocumentRepository) List(ctx context.Context) ([]domain.Document, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+selectColumns+`
FROM documents
ORDER BY created_at DESC
`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, *doc)
	}
	return out, rows.Err()
}

func (r *DocumentRepository) UpdateStatus(ctx context.Context, sourceID string, status domain.DocumentStatus, chunkCount int, errMessage string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $2, chunk_count = $3, error_message = $4, updated_at = $5
WHERE source_id = $1
`, sourceID, string(status), chunkCount, errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, "update document status", fmt.Errorf("source %s", sourceID))
	}
	return nil
}

func (r *DocumentRepository) DeleteBySourceID(ctx context.Context, sourceID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE source_id = $1`, sourceID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var status string
	err := row.Scan(
		&doc.ID, &doc.SourceID, &doc.Filename, &doc.MimeType, &doc.StoragePath,
		&doc.ChunkCount, &status, &doc.Error, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	doc.Status = domain.DocumentStatus(status)
	return &doc, nil
}
