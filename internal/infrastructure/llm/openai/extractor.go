package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/invoicestack/invoice-processor/internal/core/domain"
	"github.com/invoicestack/invoice-processor/internal/core/ports"
	"github.com/invoicestack/invoice-processor/internal/infrastructure/doctext"
	"github.com/invoicestack/invoice-processor/internal/infrastructure/resilience"
)

// Extractor asks the model whether a stored document is an invoice and
// which fields it carries. Model trouble is fail-safe: after retries the
// verdict degrades to NOT_INVOICE instead of erroring, so one flaky
// upstream never poisons whole stacks. Unreadable document content is a
// real error and does surface.
type Extractor struct {
	client *Client
	blobs  ports.BlobStore
	exec   *resilience.Executor
	logger *slog.Logger
}

func NewExtractor(client *Client, blobs ports.BlobStore, exec *resilience.Executor, logger *slog.Logger) *Extractor {
	return &Extractor{client: client, blobs: blobs, exec: exec, logger: logger}
}

func (e *Extractor) Extract(ctx context.Context, doc *domain.Document) (domain.ExtractionOutcome, error) {
	text, err := e.loadText(ctx, doc)
	if err != nil {
		return domain.ExtractionOutcome{}, err
	}

	var raw string
	err = e.exec.Execute(ctx, "openai extract", func(ctx context.Context) error {
		var callErr error
		raw, callErr = e.client.Complete(ctx, extractionSystemPrompt, buildExtractionPrompt(doc.Filename, string(doc.Type), text))
		return callErr
	}, classifyOpenAIError)
	if err != nil {
		e.logger.Warn("extraction oracle unavailable, treating document as not an invoice",
			slog.String("document_id", doc.ID.String()),
			slog.String("error", err.Error()),
		)
		return domain.NotInvoiceOutcome(), nil
	}

	return e.interpret(doc, raw), nil
}

func (e *Extractor) loadText(ctx context.Context, doc *domain.Document) (string, error) {
	data, err := e.blobs.Get(ctx, doc.ContentLocation)
	if err != nil {
		return "", domain.WrapError(domain.ErrUpstream, "load document content", err)
	}

	text, err := doctext.Extract(doc.Filename, "", data)
	if err != nil {
		// Images have no extractable text; let the model judge from the
		// metadata alone instead of failing the document.
		if doc.Type == domain.TypeImageAttachment {
			return fmt.Sprintf("(image attachment, %d bytes, no text content)", len(data)), nil
		}
		return "", domain.WrapError(domain.ErrValidation, "extract document text", err)
	}
	return text, nil
}

type extractionResponse struct {
	IsInvoice     bool   `json:"isInvoice"`
	InvoiceNumber string `json:"invoiceNumber"`
	InvoiceDate   string `json:"invoiceDate"`
	SupplierName  string `json:"supplierName"`
	TotalAmount   string `json:"totalAmount"`
	Currency      string `json:"currency"`
}

func (e *Extractor) interpret(doc *domain.Document, raw string) domain.ExtractionOutcome {
	var response extractionResponse
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &response); err != nil {
		e.logger.Warn("unparseable oracle response, treating document as not an invoice",
			slog.String("document_id", doc.ID.String()),
			slog.String("error", err.Error()),
		)
		return domain.NotInvoiceOutcome()
	}
	if !response.IsInvoice {
		return domain.NotInvoiceOutcome()
	}

	fields := domain.InvoiceFields{
		InvoiceNumber: strings.TrimSpace(response.InvoiceNumber),
		SupplierName:  strings.TrimSpace(response.SupplierName),
		Currency:      strings.ToUpper(strings.TrimSpace(response.Currency)),
	}
	if fields.InvoiceNumber == "" {
		fields.InvoiceNumber = synthesizeInvoiceNumber(doc)
	}
	fields.InvoiceDate = parseInvoiceDate(response.InvoiceDate)
	if amount, err := decimal.NewFromString(strings.TrimSpace(response.TotalAmount)); err == nil {
		fields.TotalAmount = amount
	}
	return domain.InvoiceOutcome(fields)
}

// synthesizeInvoiceNumber gives invoice-classified documents without a
// readable number a stable reference derived from the document id.
func synthesizeInvoiceNumber(doc *domain.Document) string {
	id := doc.ID.String()
	if len(id) > 8 {
		id = id[:8]
	}
	return "INV-" + id
}

func parseInvoiceDate(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Now().UTC()
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339, "02.01.2006", "01/02/2006"} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed
		}
	}
	return time.Now().UTC()
}
