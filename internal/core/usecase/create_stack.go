package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/invoicestack/invoice-processor/internal/core/classify"
	"github.com/invoicestack/invoice-processor/internal/core/domain"
	"github.com/invoicestack/invoice-processor/internal/core/ports"
)

const (
	emailKeyPrefix  = "stacks"
	manualKeyPrefix = "manual-stacks"

	emailBodyFilename = "email-body.txt"
)

// CreateStackUseCase turns inbound material (a fetched email, a manual
// upload or a simulated email) into a stack with documents, pushes every
// document through extraction and settles the stack status. All writes
// for one stack happen inside a single per-stack transaction.
type CreateStackUseCase struct {
	stacks    ports.StackRepository
	documents ports.DocumentRepository
	blobs     ports.BlobStore
	processor *ProcessDocumentUseCase
	tx        ports.TxManager
	logger    *slog.Logger

	blobTimeout time.Duration
}

func NewCreateStackUseCase(
	stacks ports.StackRepository,
	documents ports.DocumentRepository,
	blobs ports.BlobStore,
	processor *ProcessDocumentUseCase,
	tx ports.TxManager,
	logger *slog.Logger,
	blobTimeout time.Duration,
) *CreateStackUseCase {
	if blobTimeout <= 0 {
		blobTimeout = 30 * time.Second
	}
	return &CreateStackUseCase{
		stacks:      stacks,
		documents:   documents,
		blobs:       blobs,
		processor:   processor,
		tx:          tx,
		logger:      logger,
		blobTimeout: blobTimeout,
	}
}

// stagedPart is a piece of content waiting to be uploaded and turned
// into a document.
type stagedPart struct {
	docType     domain.DocumentType
	filename    string
	contentType string
	content     []byte
}

func (uc *CreateStackUseCase) CreateFromEmail(ctx context.Context, email domain.RawEmail) (ports.CreateStackResult, error) {
	stack := domain.NewStack(email.From, email.To, email.Subject)
	parts := stageParts(email.Body, len(email.Attachments), func(i int) stagedPart {
		att := email.Attachments[i]
		return stagedPart{
			docType:     classify.Kind(att.ContentType, att.Filename),
			filename:    att.Filename,
			contentType: att.ContentType,
			content:     att.Content,
		}
	})
	return uc.buildStack(ctx, stack, emailKeyPrefix, parts)
}

func (uc *CreateStackUseCase) CreateManual(ctx context.Context, req ports.ManualStackRequest) (ports.CreateStackResult, error) {
	stack := domain.NewStack(req.From, req.To, req.Subject)
	parts := stageParts(req.Body, len(req.Attachments), func(i int) stagedPart {
		att := req.Attachments[i]
		return stagedPart{
			docType:     classify.Kind(att.ContentType, att.Filename),
			filename:    att.Filename,
			contentType: att.ContentType,
			content:     att.Content,
		}
	})
	return uc.buildStack(ctx, stack, manualKeyPrefix, parts)
}

// stageParts lays out the document order for a stack: the email body
// first when present, then attachments in submission order.
func stageParts(body string, attachments int, attachment func(i int) stagedPart) []stagedPart {
	parts := make([]stagedPart, 0, attachments+1)
	if strings.TrimSpace(body) != "" {
		parts = append(parts, stagedPart{
			docType:     domain.TypeEmailBody,
			filename:    emailBodyFilename,
			contentType: "text/plain",
			content:     []byte(body),
		})
	}
	for i := 0; i < attachments; i++ {
		parts = append(parts, attachment(i))
	}
	return parts
}

// buildStack persists the stack, uploads and records every part and runs
// extraction, all under the per-stack lock. A part whose upload fails is
// logged and skipped; the stack still settles from the documents that
// made it in.
func (uc *CreateStackUseCase) buildStack(ctx context.Context, stack *domain.Stack, keyPrefix string, parts []stagedPart) (ports.CreateStackResult, error) {
	result := ports.CreateStackResult{StackID: stack.ID}

	err := uc.tx.WithinStack(ctx, stack.ID, func(ctx context.Context) error {
		if err := uc.stacks.Create(ctx, stack); err != nil {
			return err
		}

		docs := make([]domain.Document, 0, len(parts))
		for i, part := range parts {
			location, err := uc.upload(ctx, stack.ID, keyPrefix, part)
			if err != nil {
				uc.logger.Error("skipping part, blob upload failed",
					slog.String("stack_id", stack.ID.String()),
					slog.String("filename", part.filename),
					slog.String("error", err.Error()),
				)
				result.PartialFailures++
				continue
			}

			doc := domain.NewDocument(stack.ID, part.docType, part.filename, location)
			doc.Position = i
			if err := uc.documents.Create(ctx, doc); err != nil {
				return err
			}
			uc.processor.Process(ctx, doc)
			docs = append(docs, *doc)
		}
		result.DocumentsCreated = len(docs)

		stack.UpdateStatusFromDocuments(docs)
		return uc.stacks.UpdateStatus(ctx, stack.ID, stack.Status)
	})
	if err != nil {
		return ports.CreateStackResult{}, err
	}

	uc.processor.publishProcessed(ctx, stack.ID)
	return result, nil
}

func (uc *CreateStackUseCase) upload(ctx context.Context, stackID uuid.UUID, keyPrefix string, part stagedPart) (string, error) {
	key := fmt.Sprintf("%s/%s/%d-%s", keyPrefix, stackID, time.Now().UnixMilli(), sanitizeFilename(part.filename))

	callCtx, cancel := context.WithTimeout(ctx, uc.blobTimeout)
	defer cancel()

	return uc.blobs.Put(callCtx, key, part.content, part.contentType)
}

// CreateSimulated records documents by reference without touching the
// blob store. Attachment types come from the caller verbatim, which lets
// integration tests exercise arbitrary document mixes.
func (uc *CreateStackUseCase) CreateSimulated(ctx context.Context, req ports.SimulatedEmailRequest) (uuid.UUID, error) {
	stack := domain.NewStack(req.From, req.To, req.Subject)

	err := uc.tx.WithinStack(ctx, stack.ID, func(ctx context.Context) error {
		if err := uc.stacks.Create(ctx, stack); err != nil {
			return err
		}

		docs := make([]domain.Document, 0, len(req.Attachments)+1)
		position := 0
		record := func(docType domain.DocumentType, filename, location string) error {
			doc := domain.NewDocument(stack.ID, docType, filename, location)
			doc.Position = position
			position++
			if err := uc.documents.Create(ctx, doc); err != nil {
				return err
			}
			uc.processor.Process(ctx, doc)
			docs = append(docs, *doc)
			return nil
		}

		if strings.TrimSpace(req.Body) != "" {
			if err := record(domain.TypeEmailBody, emailBodyFilename, "email-body-"+stack.ID.String()); err != nil {
				return err
			}
		}
		for _, att := range req.Attachments {
			docType := att.Type
			if docType == "" {
				docType = classify.Kind("", att.Filename)
			}
			if err := record(docType, att.Filename, att.ContentReference); err != nil {
				return err
			}
		}

		stack.UpdateStatusFromDocuments(docs)
		return uc.stacks.UpdateStatus(ctx, stack.ID, stack.Status)
	})
	if err != nil {
		return uuid.Nil, err
	}

	uc.processor.publishProcessed(ctx, stack.ID)
	return stack.ID, nil
}

// sanitizeFilename keeps blob keys portable. Anything outside a small
// safe alphabet becomes an underscore.
func sanitizeFilename(name string) string {
	if name == "" {
		return "unnamed"
	}
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
