package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/invoicestack/invoice-processor/internal/core/domain"
	"github.com/invoicestack/invoice-processor/internal/core/ports"
)

func newCreator(stacks *stackRepoFake, docs *documentRepoFake, blobs *blobStoreFake, extractor *extractorFake) *CreateStackUseCase {
	processor := NewProcessDocumentUseCase(stacks, docs, newExtractionRepoFake(), extractor, &txManagerFake{}, nil, nil, discardLogger(), time.Minute)
	return NewCreateStackUseCase(stacks, docs, blobs, processor, &txManagerFake{}, discardLogger(), time.Minute)
}

func TestCreateManualBodyAndAttachments(t *testing.T) {
	stacks := newStackRepoFake()
	docs := newDocumentRepoFake()
	blobs := newBlobStoreFake()
	uc := newCreator(stacks, docs, blobs, &extractorFake{outcome: domain.NotInvoiceOutcome()})

	result, err := uc.CreateManual(context.Background(), ports.ManualStackRequest{
		From:    "sender@acme.test",
		To:      "inbox@local",
		Subject: "March invoices",
		Body:    "see attached",
		Attachments: []ports.ManualAttachment{
			{Filename: "invoice.pdf", ContentType: "application/pdf", Content: []byte("pdf")},
			{Filename: "scan.PNG", ContentType: "", Content: []byte("png")},
		},
	})
	if err != nil {
		t.Fatalf("CreateManual() error = %v", err)
	}
	if result.DocumentsCreated != 3 || result.PartialFailures != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}

	created, err := docs.ListByStackID(context.Background(), result.StackID)
	if err != nil {
		t.Fatalf("ListByStackID() error = %v", err)
	}
	if len(created) != 3 {
		t.Fatalf("expected 3 documents, got %d", len(created))
	}
	if created[0].Type != domain.TypeEmailBody || created[0].Filename != "email-body.txt" {
		t.Fatalf("first document should be the body, got %+v", created[0])
	}
	if created[1].Type != domain.TypePDFAttachment {
		t.Fatalf("expected PDF_ATTACHMENT, got %s", created[1].Type)
	}
	if created[2].Type != domain.TypeImageAttachment {
		t.Fatalf("expected IMAGE_ATTACHMENT for .PNG, got %s", created[2].Type)
	}

	for _, key := range blobs.keys {
		if !strings.HasPrefix(key, "manual-stacks/"+result.StackID.String()+"/") {
			t.Fatalf("blob key outside stack prefix: %s", key)
		}
	}

	stack, _ := stacks.GetByID(context.Background(), result.StackID)
	if stack.Status != domain.StackProcessed {
		t.Fatalf("expected stack PROCESSED, got %s", stack.Status)
	}
}

func TestCreateManualBlankBodyHasNoBodyDocument(t *testing.T) {
	stacks := newStackRepoFake()
	docs := newDocumentRepoFake()
	uc := newCreator(stacks, docs, newBlobStoreFake(), &extractorFake{outcome: domain.NotInvoiceOutcome()})

	result, err := uc.CreateManual(context.Background(), ports.ManualStackRequest{
		From:    "sender@acme.test",
		To:      "inbox@local",
		Subject: "only attachment",
		Body:    "   \n\t ",
		Attachments: []ports.ManualAttachment{
			{Filename: "invoice.pdf", ContentType: "application/pdf", Content: []byte("pdf")},
		},
	})
	if err != nil {
		t.Fatalf("CreateManual() error = %v", err)
	}
	if result.DocumentsCreated != 1 {
		t.Fatalf("expected 1 document, got %d", result.DocumentsCreated)
	}
	created, _ := docs.ListByStackID(context.Background(), result.StackID)
	if created[0].Type != domain.TypePDFAttachment {
		t.Fatalf("expected only the attachment, got %+v", created[0])
	}
}

func TestCreateManualUploadFailureSkipsPart(t *testing.T) {
	stacks := newStackRepoFake()
	docs := newDocumentRepoFake()
	blobs := newBlobStoreFake()
	blobs.failSubstr = "broken"
	uc := newCreator(stacks, docs, blobs, &extractorFake{outcome: domain.NotInvoiceOutcome()})

	result, err := uc.CreateManual(context.Background(), ports.ManualStackRequest{
		From:    "sender@acme.test",
		To:      "inbox@local",
		Subject: "partial",
		Attachments: []ports.ManualAttachment{
			{Filename: "broken.pdf", ContentType: "application/pdf", Content: []byte("x")},
			{Filename: "good.pdf", ContentType: "application/pdf", Content: []byte("y")},
		},
	})
	if err != nil {
		t.Fatalf("CreateManual() error = %v", err)
	}
	if result.DocumentsCreated != 1 || result.PartialFailures != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	created, _ := docs.ListByStackID(context.Background(), result.StackID)
	if len(created) != 1 || created[0].Filename != "good.pdf" {
		t.Fatalf("failed part must not produce a document: %+v", created)
	}
}

func TestCreateFromEmailErroredDocumentSettlesStackError(t *testing.T) {
	stacks := newStackRepoFake()
	docs := newDocumentRepoFake()
	extractor := &extractorFake{byName: map[string]domain.ExtractionOutcome{
		"email-body.txt": domain.NotInvoiceOutcome(),
		"invoice.pdf":    domain.FailureOutcome("unparseable"),
	}}
	uc := newCreator(stacks, docs, newBlobStoreFake(), extractor)

	result, err := uc.CreateFromEmail(context.Background(), domain.RawEmail{
		From:    "sender@acme.test",
		To:      "inbox@local",
		Subject: "bad scan",
		Body:    "hello",
		Attachments: []domain.RawAttachment{
			{Filename: "invoice.pdf", ContentType: "application/pdf", Content: []byte("pdf")},
		},
	})
	if err != nil {
		t.Fatalf("CreateFromEmail() error = %v", err)
	}

	stack, _ := stacks.GetByID(context.Background(), result.StackID)
	if stack.Status != domain.StackError {
		t.Fatalf("expected stack ERROR, got %s", stack.Status)
	}
}

func TestCreateFromEmailUsesStacksPrefix(t *testing.T) {
	blobs := newBlobStoreFake()
	uc := newCreator(newStackRepoFake(), newDocumentRepoFake(), blobs, &extractorFake{outcome: domain.NotInvoiceOutcome()})

	result, err := uc.CreateFromEmail(context.Background(), domain.RawEmail{
		From: "a@x", To: "b@y", Subject: "s", Body: "body",
	})
	if err != nil {
		t.Fatalf("CreateFromEmail() error = %v", err)
	}
	if len(blobs.keys) != 1 || !strings.HasPrefix(blobs.keys[0], "stacks/"+result.StackID.String()+"/") {
		t.Fatalf("unexpected blob keys: %v", blobs.keys)
	}
}

func TestCreateSimulatedSkipsBlobStore(t *testing.T) {
	stacks := newStackRepoFake()
	docs := newDocumentRepoFake()
	blobs := newBlobStoreFake()
	uc := newCreator(stacks, docs, blobs, &extractorFake{outcome: domain.InvoiceOutcome(validFields())})

	stackID, err := uc.CreateSimulated(context.Background(), ports.SimulatedEmailRequest{
		From:    "sender@acme.test",
		To:      "inbox@local",
		Subject: "simulated",
		Body:    "body text",
		Attachments: []ports.SimulatedAttachment{
			{Filename: "invoice.pdf", Type: domain.TypePDFAttachment, ContentReference: "fixtures/invoice.pdf"},
		},
	})
	if err != nil {
		t.Fatalf("CreateSimulated() error = %v", err)
	}
	if len(blobs.keys) != 0 {
		t.Fatalf("simulated email must not upload, got keys %v", blobs.keys)
	}

	created, _ := docs.ListByStackID(context.Background(), stackID)
	if len(created) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(created))
	}
	if created[1].ContentLocation != "fixtures/invoice.pdf" {
		t.Fatalf("content reference not preserved: %+v", created[1])
	}

	stack, _ := stacks.GetByID(context.Background(), stackID)
	if stack.Status != domain.StackProcessed {
		t.Fatalf("expected stack PROCESSED, got %s", stack.Status)
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"invoice.pdf":        "invoice.pdf",
		"":                   "unnamed",
		"a b/c\\d.pdf":       "a_b_c_d.pdf",
		"Rechnung (März).md": "Rechnung__M_rz_.md",
	}
	for in, want := range cases {
		if got := sanitizeFilename(in); got != want {
			t.Fatalf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
