// Package stub is a deterministic extraction oracle for local development
// and demos. Documents whose filename mentions an invoice get plausible
// invoice fields; everything else is NOT_INVOICE.
package stub

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/invoicestack/invoice-processor/internal/core/domain"
)

type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(_ context.Context, doc *domain.Document) (domain.ExtractionOutcome, error) {
	name := strings.ToLower(doc.Filename)
	if !strings.Contains(name, "invoice") && !strings.Contains(name, "rechnung") {
		return domain.NotInvoiceOutcome(), nil
	}

	id := doc.ID.String()
	if len(id) > 8 {
		id = id[:8]
	}
	return domain.InvoiceOutcome(domain.InvoiceFields{
		InvoiceNumber: "INV-" + id,
		InvoiceDate:   time.Now().UTC(),
		SupplierName:  "Stub Supplier Ltd",
		TotalAmount:   decimal.NewFromFloat(99.99),
		Currency:      "EUR",
	}), nil
}
