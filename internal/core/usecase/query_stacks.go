package usecase

import (
	"context"

	"github.com/google/uuid"

	"github.com/invoicestack/invoice-processor/internal/core/domain"
	"github.com/invoicestack/invoice-processor/internal/core/ports"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// StackQueryUseCase is the read side: paged stack summaries and full
// per-stack details with documents and their extractions.
type StackQueryUseCase struct {
	stacks      ports.StackRepository
	documents   ports.DocumentRepository
	extractions ports.ExtractionRepository
}

func NewStackQueryUseCase(
	stacks ports.StackRepository,
	documents ports.DocumentRepository,
	extractions ports.ExtractionRepository,
) *StackQueryUseCase {
	return &StackQueryUseCase{
		stacks:      stacks,
		documents:   documents,
		extractions: extractions,
	}
}

// List returns one page of stack summaries, newest first. Page numbers
// start at 1; out-of-range values are clamped rather than rejected.
func (uc *StackQueryUseCase) List(ctx context.Context, page, size int) (domain.StackList, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	total, err := uc.stacks.Count(ctx)
	if err != nil {
		return domain.StackList{}, err
	}
	stacks, err := uc.stacks.List(ctx, (page-1)*size, size)
	if err != nil {
		return domain.StackList{}, err
	}

	summaries := make([]domain.StackSummary, 0, len(stacks))
	for _, stack := range stacks {
		docs, err := uc.documents.ListByStackID(ctx, stack.ID)
		if err != nil {
			return domain.StackList{}, err
		}
		invoices := 0
		for _, doc := range docs {
			if doc.ExtractionStatus == domain.ExtractionProcessed {
				invoices++
			}
		}
		summaries = append(summaries, domain.StackSummary{
			ID:            stack.ID,
			Subject:       stack.Subject,
			FromAddress:   stack.FromAddress,
			ReceivedAt:    stack.ReceivedAt,
			Status:        stack.Status,
			DocumentCount: len(docs),
			InvoiceCount:  invoices,
		})
	}

	return domain.StackList{
		Stacks: summaries,
		Total:  total,
		Page:   page,
		Size:   size,
	}, nil
}

// Details returns a stack with its documents in creation order. Each
// PROCESSED document carries its extraction; a missing extraction row is
// tolerated and simply leaves the invoice absent.
func (uc *StackQueryUseCase) Details(ctx context.Context, stackID uuid.UUID) (*domain.StackDetails, error) {
	stack, err := uc.stacks.GetByID(ctx, stackID)
	if err != nil {
		return nil, err
	}
	docs, err := uc.documents.ListByStackID(ctx, stackID)
	if err != nil {
		return nil, err
	}

	details := &domain.StackDetails{
		ID:          stack.ID,
		Subject:     stack.Subject,
		FromAddress: stack.FromAddress,
		ToAddress:   stack.ToAddress,
		ReceivedAt:  stack.ReceivedAt,
		Status:      stack.Status,
		Documents:   make([]domain.DocumentDetails, 0, len(docs)),
	}

	for _, doc := range docs {
		entry := domain.DocumentDetails{
			ID:                doc.ID,
			Type:              doc.Type,
			Filename:          doc.Filename,
			LlmClassification: doc.LlmClassification,
			ExtractionStatus:  doc.ExtractionStatus,
		}
		if doc.ExtractionStatus == domain.ExtractionProcessed {
			extraction, err := uc.extractions.GetByDocumentID(ctx, doc.ID)
			switch {
			case err == nil:
				entry.Invoice = extraction
			case domain.IsKind(err, domain.ErrNotFound):
			default:
				return nil, err
			}
		}
		details.Documents = append(details.Documents, entry)
	}

	return details, nil
}
