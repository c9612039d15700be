package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceExtraction is the structured result of one successful invoice
// extraction, 1:1 with a document. It is replaced wholesale on re-extraction,
// never patched in place, and only persisted when Valid.
type InvoiceExtraction struct {
	ID            uuid.UUID       `json:"id"`
	DocumentID    uuid.UUID       `json:"documentId"`
	InvoiceNumber string          `json:"invoiceNumber"`
	InvoiceDate   time.Time       `json:"invoiceDate"`
	SupplierName  string          `json:"supplierName"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	Currency      string          `json:"currency"`
}

func NewInvoiceExtraction(documentID uuid.UUID, fields InvoiceFields) *InvoiceExtraction {
	return &InvoiceExtraction{
		ID:            uuid.New(),
		DocumentID:    documentID,
		InvoiceNumber: fields.InvoiceNumber,
		InvoiceDate:   fields.InvoiceDate,
		SupplierName:  fields.SupplierName,
		TotalAmount:   fields.TotalAmount,
		Currency:      fields.Currency,
	}
}

func (e *InvoiceExtraction) Valid() bool {
	return strings.TrimSpace(e.InvoiceNumber) != "" &&
		!e.InvoiceDate.IsZero() &&
		strings.TrimSpace(e.SupplierName) != "" &&
		e.TotalAmount.IsPositive() &&
		strings.TrimSpace(e.Currency) != ""
}

type OutcomeKind string

const (
	OutcomeNotInvoice OutcomeKind = "NOT_INVOICE"
	OutcomeInvoice    OutcomeKind = "INVOICE"
	OutcomeFailure    OutcomeKind = "FAILURE"
)

// InvoiceFields are the candidate fields the extraction oracle produced for
// an invoice-classified document. Zero values mean the field is absent.
type InvoiceFields struct {
	InvoiceNumber string
	InvoiceDate   time.Time
	SupplierName  string
	TotalAmount   decimal.Decimal
	Currency      string
}

// ExtractionOutcome is the oracle's verdict for one document: NOT_INVOICE,
// INVOICE with candidate fields, or an explicit failure. The pipeline only
// pattern-matches on Kind; it never inspects raw oracle output.
type ExtractionOutcome struct {
	Kind          OutcomeKind
	Fields        InvoiceFields
	FailureReason string
}

func NotInvoiceOutcome() ExtractionOutcome {
	return ExtractionOutcome{Kind: OutcomeNotInvoice}
}

func InvoiceOutcome(fields InvoiceFields) ExtractionOutcome {
	return ExtractionOutcome{Kind: OutcomeInvoice, Fields: fields}
}

func FailureOutcome(reason string) ExtractionOutcome {
	return ExtractionOutcome{Kind: OutcomeFailure, FailureReason: reason}
}
