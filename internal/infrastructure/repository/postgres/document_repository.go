package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/invoicestack/invoice-processor/internal/core/domain"
)

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	_, err := runner(ctx, r.db).ExecContext(ctx, `
INSERT INTO documents (id, stack_id, type, filename, content_location, llm_classification, extraction_status, position, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`,
		doc.ID, doc.StackID, string(doc.Type), doc.Filename, doc.ContentLocation,
		string(doc.LlmClassification), string(doc.ExtractionStatus), doc.Position, doc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Document, error) {
	row := runner(ctx, r.db).QueryRowContext(ctx, `
SELECT id, stack_id, type, filename, content_location, llm_classification, extraction_status, position, created_at
FROM documents
WHERE id = $1
`, id)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get document", fmt.Errorf("document %s", id))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	return doc, nil
}

func (r *DocumentRepository) ListByStackID(ctx context.Context, stackID uuid.UUID) ([]domain.Document, error) {
	rows, err := runner(ctx, r.db).QueryContext(ctx, `
SELECT id, stack_id, type, filename, content_location, llm_classification, extraction_status, position, created_at
FROM documents
WHERE stack_id = $1
ORDER BY position ASC, created_at ASC
`, stackID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document row: %w", err)
		}
		out = append(out, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

func (r *DocumentRepository) UpdateExtractionState(ctx context.Context, id uuid.UUID, status domain.ExtractionStatus, cls domain.Classification) error {
	res, err := runner(ctx, r.db).ExecContext(ctx, `
UPDATE documents SET extraction_status = $2, llm_classification = $3 WHERE id = $1
`, id, string(status), string(cls))
	if err != nil {
		return fmt.Errorf("update document state: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update document state: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrNotFound, "update document state", fmt.Errorf("document %s", id))
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var docType, cls, status string
	err := row.Scan(
		&doc.ID, &doc.StackID, &docType, &doc.Filename, &doc.ContentLocation,
		&cls, &status, &doc.Position, &doc.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	doc.Type = domain.DocumentType(docType)
	doc.LlmClassification = domain.Classification(cls)
	doc.ExtractionStatus = domain.ExtractionStatus(status)
	return &doc, nil
}
