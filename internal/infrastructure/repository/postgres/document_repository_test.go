package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kemingtech/catalog-assistant/internal/core/domain"
)

func newRepoWithMock(t *testing.T) (*DocumentRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &DocumentRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestGetBySourceIDReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, source_id, filename").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetBySourceID(context.Background(), "missing")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetBySourceIDScansDocument(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "source_id", "filename", "mime_type", "storage_path",
		"chunk_count", "status", "error_message", "created_at", "updated_at",
	}).AddRow("doc-1", "src-1", "catalog.json", "application/json", "src-1", 4, "ready", "", now, now)

	mock.ExpectQuery("SELECT id, source_id, filename").
		WithArgs("src-1").
		WillReturnRows(rows)

	doc, err := repo.GetBySourceID(context.Background(), "src-1")
	if err != nil {
		t.Fatalf("GetBySourceID() error = %v", err)
	}
	if doc.Status != domain.StatusReady {
		t.Fatalf("expected status ready, got %s", doc.Status)
	}
	if doc.ChunkCount != 4 {
		t.Fatalf("expected chunk_count 4, got %d", doc.ChunkCount)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateStatusReturnsDomainNotFoundWhenNoRowsAffected(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE documents").
		WithArgs("missing", string(domain.StatusProcessing), 0, "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "missing", domain.StatusProcessing, 0, "")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDeleteBySourceIDIgnoresMissingRow(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("DELETE FROM documents").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.DeleteBySourceID(context.Background(), "missing"); err != nil {
		t.Fatalf("DeleteBySourceID() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
