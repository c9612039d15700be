package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/invoicestack/invoice-processor/internal/core/domain"
)

type ExtractionRepository struct {
	db *sql.DB
}

func NewExtractionRepository(db *sql.DB) *ExtractionRepository {
	return &ExtractionRepository{db: db}
}

func (r *ExtractionRepository) Create(ctx context.Context, extraction *domain.InvoiceExtraction) error {
	_, err := runner(ctx, r.db).ExecContext(ctx, `
INSERT INTO invoice_extractions (id, document_id, invoice_number, invoice_date, supplier_name, total_amount, currency)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`,
		extraction.ID, extraction.DocumentID, extraction.InvoiceNumber, extraction.InvoiceDate,
		extraction.SupplierName, extraction.TotalAmount, extraction.Currency,
	)
	if err != nil {
		return fmt.Errorf("insert extraction: %w", err)
	}
	return nil
}

func (r *ExtractionRepository) GetByDocumentID(ctx context.Context, documentID uuid.UUID) (*domain.InvoiceExtraction, error) {
	row := runner(ctx, r.db).QueryRowContext(ctx, `
SELECT id, document_id, invoice_number, invoice_date, supplier_name, total_amount, currency
FROM invoice_extractions
WHERE document_id = $1
`, documentID)

	var extraction domain.InvoiceExtraction
	err := row.Scan(
		&extraction.ID, &extraction.DocumentID, &extraction.InvoiceNumber, &extraction.InvoiceDate,
		&extraction.SupplierName, &extraction.TotalAmount, &extraction.Currency,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get extraction", fmt.Errorf("document %s", documentID))
		}
		return nil, fmt.Errorf("scan extraction: %w", err)
	}
	return &extraction, nil
}

// DeleteByDocumentID is idempotent; deleting a document without an
// extraction row is not an error.
func (r *ExtractionRepository) DeleteByDocumentID(ctx context.Context, documentID uuid.UUID) error {
	_, err := runner(ctx, r.db).ExecContext(ctx, `
DELETE FROM invoice_extractions WHERE document_id = $1
`, documentID)
	if err != nil {
		return fmt.Errorf("delete extraction: %w", err)
	}
	return nil
}
