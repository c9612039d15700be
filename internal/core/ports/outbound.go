package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/invoicestack/invoice-processor/internal/core/domain"
)

// StackRepository persists and reads stack state.
type StackRepository interface {
	Create(ctx context.Context, stack *domain.Stack) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Stack, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.StackStatus) error
	List(ctx context.Context, offset, limit int) ([]domain.Stack, error)
	Count(ctx context.Context) (int64, error)
}

// DocumentRepository persists and reads documents in stack creation order.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Document, error)
	ListByStackID(ctx context.Context, stackID uuid.UUID) ([]domain.Document, error)
	UpdateExtractionState(ctx context.Context, id uuid.UUID, status domain.ExtractionStatus, cls domain.Classification) error
}

// ExtractionRepository persists invoice extractions, at most one per document.
type ExtractionRepository interface {
	Create(ctx context.Context, extraction *domain.InvoiceExtraction) error
	GetByDocumentID(ctx context.Context, documentID uuid.UUID) (*domain.InvoiceExtraction, error)
	DeleteByDocumentID(ctx context.Context, documentID uuid.UUID) error
}

// EndpointRepository persists integration endpoint configuration.
type EndpointRepository interface {
	Upsert(ctx context.Context, endpoint *domain.IntegrationEndpoint) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.IntegrationEndpoint, error)
	GetByType(ctx context.Context, endpointType domain.EndpointType) (*domain.IntegrationEndpoint, error)
	List(ctx context.Context) ([]domain.IntegrationEndpoint, error)
	ListByType(ctx context.Context, endpointType domain.EndpointType) ([]domain.IntegrationEndpoint, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// BlobStore is content-addressable storage for document bytes.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// MailSource provides unread emails from one configured mailbox and a
// mark-as-read operation keyed by message id.
type MailSource interface {
	ID() string
	FetchUnread(ctx context.Context) ([]domain.RawEmail, error)
	MarkRead(ctx context.Context, messageID string) error
}

// MailSourceProvider resolves the currently configured mail sources.
type MailSourceProvider interface {
	Sources(ctx context.Context) ([]MailSource, error)
}

// InvoiceExtractor is the extraction oracle. Implementations are expected to
// be conservative: internal failures surface as a NOT_INVOICE outcome rather
// than an error, so the pipeline never aborts because the oracle is down.
type InvoiceExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) (domain.ExtractionOutcome, error)
}

// EventPublisher notifies downstream consumers about finished orchestration
// runs. Publishing is best-effort; failures must not affect the pipeline.
type EventPublisher interface {
	StackProcessed(ctx context.Context, stackID uuid.UUID, status domain.StackStatus) error
}

// TxManager serializes read-modify-write cycles on a single stack. All
// repository calls made inside fn share one transaction holding a per-stack
// lock, so concurrent operations on the same stack cannot lose updates.
type TxManager interface {
	WithinStack(ctx context.Context, stackID uuid.UUID, fn func(ctx context.Context) error) error
}
