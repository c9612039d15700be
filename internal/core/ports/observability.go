package ports

import (
	"time"

	"github.com/invoicestack/invoice-processor/internal/core/domain"
)

// PipelineObserver receives pipeline progress signals for metrics. All
// methods must be non-blocking and must never fail.
type PipelineObserver interface {
	DocumentProcessed(status domain.ExtractionStatus, elapsed time.Duration)
	ImportCompleted(report domain.ImportReport)
}
