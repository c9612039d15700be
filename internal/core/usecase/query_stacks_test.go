package usecase

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/invoicestack/invoice-processor/internal/core/domain"
)

func TestListCountsDocumentsAndInvoices(t *testing.T) {
	stacks := newStackRepoFake()
	docs := newDocumentRepoFake()
	exts := newExtractionRepoFake()

	stack := domain.NewStack("sender@acme.test", "inbox@local", "March")
	stack.Status = domain.StackProcessed
	_ = stacks.Create(context.Background(), stack)

	body := domain.NewDocument(stack.ID, domain.TypeEmailBody, "email-body.txt", "stacks/a")
	body.ExtractionStatus = domain.ExtractionNotApplicable
	invoice := domain.NewDocument(stack.ID, domain.TypePDFAttachment, "invoice.pdf", "stacks/b")
	invoice.ExtractionStatus = domain.ExtractionProcessed
	for _, d := range []*domain.Document{body, invoice} {
		_ = docs.Create(context.Background(), d)
	}

	uc := NewStackQueryUseCase(stacks, docs, exts)
	list, err := uc.List(context.Background(), 1, 20)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if list.Total != 1 || len(list.Stacks) != 1 {
		t.Fatalf("unexpected list: %+v", list)
	}
	summary := list.Stacks[0]
	if summary.DocumentCount != 2 || summary.InvoiceCount != 1 {
		t.Fatalf("unexpected counts: %+v", summary)
	}
}

func TestListClampsPaging(t *testing.T) {
	uc := NewStackQueryUseCase(newStackRepoFake(), newDocumentRepoFake(), newExtractionRepoFake())

	list, err := uc.List(context.Background(), -3, 5000)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if list.Page != 1 || list.Size != maxPageSize {
		t.Fatalf("expected clamped paging, got page=%d size=%d", list.Page, list.Size)
	}
}

func TestDetailsIncludesInvoiceForProcessedDocuments(t *testing.T) {
	stacks := newStackRepoFake()
	docs := newDocumentRepoFake()
	exts := newExtractionRepoFake()

	stack := domain.NewStack("sender@acme.test", "inbox@local", "March")
	_ = stacks.Create(context.Background(), stack)
	doc := domain.NewDocument(stack.ID, domain.TypePDFAttachment, "invoice.pdf", "stacks/a")
	doc.ExtractionStatus = domain.ExtractionProcessed
	doc.LlmClassification = domain.ClassificationInvoice
	_ = docs.Create(context.Background(), doc)
	_ = exts.Create(context.Background(), domain.NewInvoiceExtraction(doc.ID, validFields()))

	uc := NewStackQueryUseCase(stacks, docs, exts)
	details, err := uc.Details(context.Background(), stack.ID)
	if err != nil {
		t.Fatalf("Details() error = %v", err)
	}
	if len(details.Documents) != 1 {
		t.Fatalf("expected 1 document, got %d", len(details.Documents))
	}
	entry := details.Documents[0]
	if entry.Invoice == nil || entry.Invoice.InvoiceNumber != "INV-2024-001" {
		t.Fatalf("expected embedded invoice, got %+v", entry.Invoice)
	}
}

func TestDetailsToleratesMissingExtractionRow(t *testing.T) {
	stacks := newStackRepoFake()
	docs := newDocumentRepoFake()

	stack := domain.NewStack("sender@acme.test", "inbox@local", "March")
	_ = stacks.Create(context.Background(), stack)
	doc := domain.NewDocument(stack.ID, domain.TypePDFAttachment, "invoice.pdf", "stacks/a")
	doc.ExtractionStatus = domain.ExtractionProcessed
	_ = docs.Create(context.Background(), doc)

	uc := NewStackQueryUseCase(stacks, docs, newExtractionRepoFake())
	details, err := uc.Details(context.Background(), stack.ID)
	if err != nil {
		t.Fatalf("Details() error = %v", err)
	}
	if details.Documents[0].Invoice != nil {
		t.Fatalf("expected no invoice, got %+v", details.Documents[0].Invoice)
	}
}

func TestDetailsUnknownStack(t *testing.T) {
	uc := NewStackQueryUseCase(newStackRepoFake(), newDocumentRepoFake(), newExtractionRepoFake())

	_, err := uc.Details(context.Background(), uuid.New())
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
