package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/invoicestack/invoice-processor/internal/core/domain"
	"github.com/invoicestack/invoice-processor/internal/core/ports"
)

// ImportEmailsUseCase drains unread mail from every configured source and
// feeds each message into stack creation. A failing email or source never
// stops the run; failures are counted in the report instead.
type ImportEmailsUseCase struct {
	provider ports.MailSourceProvider
	creator  ports.StackCreator
	observer ports.PipelineObserver
	logger   *slog.Logger

	mailTimeout time.Duration
}

func NewImportEmailsUseCase(
	provider ports.MailSourceProvider,
	creator ports.StackCreator,
	observer ports.PipelineObserver,
	logger *slog.Logger,
	mailTimeout time.Duration,
) *ImportEmailsUseCase {
	if mailTimeout <= 0 {
		mailTimeout = time.Minute
	}
	return &ImportEmailsUseCase{
		provider:    provider,
		creator:     creator,
		observer:    observer,
		logger:      logger,
		mailTimeout: mailTimeout,
	}
}

func (uc *ImportEmailsUseCase) ImportUnread(ctx context.Context) (domain.ImportReport, error) {
	var report domain.ImportReport

	sources, err := uc.provider.Sources(ctx)
	if err != nil {
		return report, err
	}

	for _, source := range sources {
		emails, err := uc.fetchUnread(ctx, source)
		if err != nil {
			uc.logger.Error("failed to fetch from mail source",
				slog.String("source", source.ID()),
				slog.String("error", err.Error()),
			)
			report.Errors++
			continue
		}
		report.EmailsFound += len(emails)

		for _, email := range emails {
			result, err := uc.creator.CreateFromEmail(ctx, email)
			if err != nil {
				uc.logger.Error("failed to create stack from email",
					slog.String("source", source.ID()),
					slog.String("message_id", email.MessageID),
					slog.String("error", err.Error()),
				)
				report.Errors++
				continue
			}
			report.StacksCreated++
			report.DocumentsCreated += result.DocumentsCreated
			report.PartialFailures += result.PartialFailures

			uc.markRead(ctx, source, email.MessageID)
		}
	}

	uc.logger.Info("email import finished",
		slog.Int("emails_found", report.EmailsFound),
		slog.Int("stacks_created", report.StacksCreated),
		slog.Int("documents_created", report.DocumentsCreated),
		slog.Int("partial_failures", report.PartialFailures),
		slog.Int("errors", report.Errors),
	)
	if uc.observer != nil {
		uc.observer.ImportCompleted(report)
	}
	return report, nil
}

func (uc *ImportEmailsUseCase) fetchUnread(ctx context.Context, source ports.MailSource) ([]domain.RawEmail, error) {
	callCtx, cancel := context.WithTimeout(ctx, uc.mailTimeout)
	defer cancel()
	return source.FetchUnread(callCtx)
}

// markRead is best-effort. A stack was already created for the message,
// so a mark-read failure only risks a duplicate on the next run, which is
// preferable to losing the email.
func (uc *ImportEmailsUseCase) markRead(ctx context.Context, source ports.MailSource, messageID string) {
	callCtx, cancel := context.WithTimeout(ctx, uc.mailTimeout)
	defer cancel()
	if err := source.MarkRead(callCtx, messageID); err != nil {
		uc.logger.Warn("failed to mark email read",
			slog.String("source", source.ID()),
			slog.String("message_id", messageID),
			slog.String("error", err.Error()),
		)
	}
}
