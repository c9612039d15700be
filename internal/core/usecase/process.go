package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/invoicestack/invoice-processor/internal/core/domain"
	"github.com/invoicestack/invoice-processor/internal/core/ports"
)

// ProcessDocumentUseCase drives a single document through extraction:
// mark it EXTRACTING, consult the invoice extractor, interpret the
// outcome and land the document on a terminal status. Process never
// returns an error; every failure ends as ExtractionError on the
// document so that sibling documents keep flowing.
type ProcessDocumentUseCase struct {
	stacks      ports.StackRepository
	documents   ports.DocumentRepository
	extractions ports.ExtractionRepository
	extractor   ports.InvoiceExtractor
	tx          ports.TxManager
	events      ports.EventPublisher
	observer    ports.PipelineObserver
	logger      *slog.Logger

	extractTimeout time.Duration
}

func NewProcessDocumentUseCase(
	stacks ports.StackRepository,
	documents ports.DocumentRepository,
	extractions ports.ExtractionRepository,
	extractor ports.InvoiceExtractor,
	tx ports.TxManager,
	events ports.EventPublisher,
	observer ports.PipelineObserver,
	logger *slog.Logger,
	extractTimeout time.Duration,
) *ProcessDocumentUseCase {
	if extractTimeout <= 0 {
		extractTimeout = 2 * time.Minute
	}
	return &ProcessDocumentUseCase{
		stacks:         stacks,
		documents:      documents,
		extractions:    extractions,
		extractor:      extractor,
		tx:             tx,
		events:         events,
		observer:       observer,
		logger:         logger,
		extractTimeout: extractTimeout,
	}
}

// Process mutates doc in place and persists the resulting classification
// and status. Panics raised by the extractor are recovered and recorded
// as ExtractionError.
func (uc *ProcessDocumentUseCase) Process(ctx context.Context, doc *domain.Document) {
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			uc.logger.Error("document processing panicked",
				slog.String("document_id", doc.ID.String()),
				slog.Any("panic", r),
			)
			uc.markError(ctx, doc)
		}
		if uc.observer != nil {
			uc.observer.DocumentProcessed(doc.ExtractionStatus, time.Since(started))
		}
	}()

	doc.ExtractionStatus = domain.ExtractionExtracting
	if err := uc.persistDocument(ctx, doc); err != nil {
		uc.logger.Error("failed to mark document extracting",
			slog.String("document_id", doc.ID.String()),
			slog.String("error", err.Error()),
		)
		uc.markError(ctx, doc)
		return
	}

	outcome := uc.extract(ctx, doc)
	uc.applyOutcome(ctx, doc, outcome)
}

func (uc *ProcessDocumentUseCase) extract(ctx context.Context, doc *domain.Document) domain.ExtractionOutcome {
	callCtx, cancel := context.WithTimeout(ctx, uc.extractTimeout)
	defer cancel()

	outcome, err := uc.extractor.Extract(callCtx, doc)
	if err != nil {
		uc.logger.Error("invoice extraction failed",
			slog.String("document_id", doc.ID.String()),
			slog.String("error", err.Error()),
		)
		return domain.FailureOutcome(err.Error())
	}
	return outcome
}

func (uc *ProcessDocumentUseCase) applyOutcome(ctx context.Context, doc *domain.Document, outcome domain.ExtractionOutcome) {
	switch outcome.Kind {
	case domain.OutcomeNotInvoice:
		doc.LlmClassification = domain.ClassificationNotInvoice
		doc.ExtractionStatus = domain.ExtractionNotApplicable
		uc.persistDocumentLogged(ctx, doc)
		uc.replaceExtraction(ctx, doc.ID, nil)

	case domain.OutcomeInvoice:
		doc.LlmClassification = domain.ClassificationInvoice
		extraction := domain.NewInvoiceExtraction(doc.ID, outcome.Fields)
		if extraction.Valid() {
			doc.ExtractionStatus = domain.ExtractionProcessed
			uc.persistDocumentLogged(ctx, doc)
			uc.replaceExtraction(ctx, doc.ID, extraction)
			return
		}
		uc.logger.Warn("invoice extraction incomplete, marking document errored",
			slog.String("document_id", doc.ID.String()),
		)
		doc.ExtractionStatus = domain.ExtractionError
		uc.persistDocumentLogged(ctx, doc)
		uc.replaceExtraction(ctx, doc.ID, nil)

	default:
		if outcome.FailureReason != "" {
			uc.logger.Error("extraction outcome reported failure",
				slog.String("document_id", doc.ID.String()),
				slog.String("reason", outcome.FailureReason),
			)
		}
		uc.markError(ctx, doc)
		uc.replaceExtraction(ctx, doc.ID, nil)
	}
}

// replaceExtraction keeps at most one extraction per document. Existing
// rows are always removed first; next is only inserted when non-nil.
func (uc *ProcessDocumentUseCase) replaceExtraction(ctx context.Context, documentID uuid.UUID, next *domain.InvoiceExtraction) {
	if err := uc.extractions.DeleteByDocumentID(ctx, documentID); err != nil {
		uc.logger.Error("failed to delete previous extraction",
			slog.String("document_id", documentID.String()),
			slog.String("error", err.Error()),
		)
	}
	if next == nil {
		return
	}
	if err := uc.extractions.Create(ctx, next); err != nil {
		uc.logger.Error("failed to store extraction",
			slog.String("document_id", documentID.String()),
			slog.String("error", err.Error()),
		)
	}
}

func (uc *ProcessDocumentUseCase) markError(ctx context.Context, doc *domain.Document) {
	doc.ExtractionStatus = domain.ExtractionError
	uc.persistDocumentLogged(ctx, doc)
}

func (uc *ProcessDocumentUseCase) persistDocument(ctx context.Context, doc *domain.Document) error {
	return uc.documents.UpdateExtractionState(ctx, doc.ID, doc.ExtractionStatus, doc.LlmClassification)
}

func (uc *ProcessDocumentUseCase) persistDocumentLogged(ctx context.Context, doc *domain.Document) {
	if err := uc.persistDocument(ctx, doc); err != nil {
		uc.logger.Error("failed to persist document state",
			slog.String("document_id", doc.ID.String()),
			slog.String("error", err.Error()),
		)
	}
}

// Reextract reruns the pipeline for one document and recomputes the
// owning stack's status from all of its documents. The stack update
// happens inside the per-stack transaction so concurrent operations on
// the same stack observe a consistent status.
func (uc *ProcessDocumentUseCase) Reextract(ctx context.Context, documentID uuid.UUID) error {
	doc, err := uc.documents.GetByID(ctx, documentID)
	if err != nil {
		return err
	}
	stackID := doc.StackID

	err = uc.tx.WithinStack(ctx, stackID, func(ctx context.Context) error {
		doc, err := uc.documents.GetByID(ctx, documentID)
		if err != nil {
			return err
		}
		// Drop the prior extraction before rerunning, so an aborted run
		// cannot leave a stale row next to an ERROR document.
		uc.replaceExtraction(ctx, doc.ID, nil)
		uc.Process(ctx, doc)

		stack, err := uc.stacks.GetByID(ctx, stackID)
		if err != nil {
			return err
		}
		docs, err := uc.documents.ListByStackID(ctx, stackID)
		if err != nil {
			return err
		}
		stack.UpdateStatusFromDocuments(docs)
		return uc.stacks.UpdateStatus(ctx, stackID, stack.Status)
	})
	if err != nil {
		return err
	}

	uc.publishProcessed(ctx, stackID)
	return nil
}

func (uc *ProcessDocumentUseCase) publishProcessed(ctx context.Context, stackID uuid.UUID) {
	if uc.events == nil {
		return
	}
	stack, err := uc.stacks.GetByID(ctx, stackID)
	if err != nil {
		uc.logger.Warn("skipping stack event, stack reload failed",
			slog.String("stack_id", stackID.String()),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := uc.events.StackProcessed(ctx, stack.ID, stack.Status); err != nil {
		uc.logger.Warn("failed to publish stack event",
			slog.String("stack_id", stackID.String()),
			slog.String("error", err.Error()),
		)
	}
}
