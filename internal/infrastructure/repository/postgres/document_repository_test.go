package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"github.com/invoicestack/invoice-processor/internal/core/domain"
)

func newDocumentRepoWithMock(t *testing.T) (*DocumentRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &DocumentRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestDocumentGetByIDReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newDocumentRepoWithMock(t)
	defer done()

	id := uuid.New()
	mock.ExpectQuery("SELECT id, stack_id, type").
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), id)
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDocumentUpdateExtractionStateNotFoundWhenNoRowsAffected(t *testing.T) {
	repo, mock, done := newDocumentRepoWithMock(t)
	defer done()

	id := uuid.New()
	mock.ExpectExec("UPDATE documents SET extraction_status").
		WithArgs(id, string(domain.ExtractionProcessed), string(domain.ClassificationInvoice)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateExtractionState(context.Background(), id, domain.ExtractionProcessed, domain.ClassificationInvoice)
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDocumentListByStackIDPreservesOrder(t *testing.T) {
	repo, mock, done := newDocumentRepoWithMock(t)
	defer done()

	stackID := uuid.New()
	created := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "stack_id", "type", "filename", "content_location", "llm_classification", "extraction_status", "position", "created_at"}).
		AddRow(uuid.New(), stackID, "EMAIL_BODY", "email-body.txt", "stacks/a", "NOT_INVOICE", "NOT_APPLICABLE", 0, created).
		AddRow(uuid.New(), stackID, "PDF_ATTACHMENT", "invoice.pdf", "stacks/b", "INVOICE", "PROCESSED", 1, created)

	mock.ExpectQuery("SELECT id, stack_id, type").
		WithArgs(stackID).
		WillReturnRows(rows)

	docs, err := repo.ListByStackID(context.Background(), stackID)
	if err != nil {
		t.Fatalf("ListByStackID() error = %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if docs[0].Type != domain.TypeEmailBody || docs[1].Type != domain.TypePDFAttachment {
		t.Fatalf("unexpected order: %s then %s", docs[0].Type, docs[1].Type)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDocumentCreateInsertsAllColumns(t *testing.T) {
	repo, mock, done := newDocumentRepoWithMock(t)
	defer done()

	doc := domain.NewDocument(uuid.New(), domain.TypePDFAttachment, "invoice.pdf", "stacks/key")
	doc.Position = 1

	mock.ExpectExec("INSERT INTO documents").
		WithArgs(doc.ID, doc.StackID, "PDF_ATTACHMENT", "invoice.pdf", "stacks/key", "UNKNOWN", "NEW", 1, doc.CreatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Create(context.Background(), doc); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
