package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func completeFields() InvoiceFields {
	return InvoiceFields{
		InvoiceNumber: "INV-42",
		InvoiceDate:   time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		SupplierName:  "Acme GmbH",
		TotalAmount:   decimal.NewFromInt(100),
		Currency:      "EUR",
	}
}

func TestExtractionValid(t *testing.T) {
	extraction := NewInvoiceExtraction(uuid.New(), completeFields())
	if !extraction.Valid() {
		t.Fatalf("complete extraction must be valid: %+v", extraction)
	}
}

func TestExtractionInvalidCases(t *testing.T) {
	mutations := map[string]func(*InvoiceExtraction){
		"blank number":     func(e *InvoiceExtraction) { e.InvoiceNumber = "  " },
		"zero date":        func(e *InvoiceExtraction) { e.InvoiceDate = time.Time{} },
		"blank supplier":   func(e *InvoiceExtraction) { e.SupplierName = "" },
		"zero amount":      func(e *InvoiceExtraction) { e.TotalAmount = decimal.Zero },
		"negative amount":  func(e *InvoiceExtraction) { e.TotalAmount = decimal.NewFromInt(-5) },
		"blank currency":   func(e *InvoiceExtraction) { e.Currency = " " },
	}
	for name, mutate := range mutations {
		extraction := NewInvoiceExtraction(uuid.New(), completeFields())
		mutate(extraction)
		if extraction.Valid() {
			t.Fatalf("%s: extraction must be invalid: %+v", name, extraction)
		}
	}
}

func TestNewDocumentDefaults(t *testing.T) {
	doc := NewDocument(uuid.New(), TypePDFAttachment, "invoice.pdf", "stacks/key")
	if doc.LlmClassification != ClassificationUnknown {
		t.Fatalf("new document must start UNKNOWN, got %s", doc.LlmClassification)
	}
	if doc.ExtractionStatus != ExtractionNew {
		t.Fatalf("new document must start NEW, got %s", doc.ExtractionStatus)
	}
}
