package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/invoicestack/invoice-processor/internal/core/domain"
)

// ManualAttachment carries raw attachment bytes from a manual submission.
type ManualAttachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// ManualStackRequest is a manual (non-email) stack submission.
type ManualStackRequest struct {
	From        string
	To          string
	Subject     string
	Body        string
	Attachments []ManualAttachment
}

// SimulatedAttachment references pre-existing blob content by key; no upload
// happens and the caller decides the document type.
type SimulatedAttachment struct {
	Filename         string
	Type             domain.DocumentType
	ContentReference string
}

type SimulatedEmailRequest struct {
	From        string
	To          string
	Subject     string
	Body        string
	Attachments []SimulatedAttachment
}

// CreateStackResult reports one stack creation. PartialFailures counts
// attachments that failed to upload or classify and were skipped.
type CreateStackResult struct {
	StackID          uuid.UUID
	DocumentsCreated int
	PartialFailures  int
}

// StackCreator turns inbound correspondence into processed stacks.
type StackCreator interface {
	CreateFromEmail(ctx context.Context, email domain.RawEmail) (CreateStackResult, error)
	CreateManual(ctx context.Context, req ManualStackRequest) (CreateStackResult, error)
	CreateSimulated(ctx context.Context, req SimulatedEmailRequest) (uuid.UUID, error)
}

// EmailImporter drains unread mail from every configured source.
type EmailImporter interface {
	ImportUnread(ctx context.Context) (domain.ImportReport, error)
}

// DocumentReprocessor re-runs extraction for one document.
type DocumentReprocessor interface {
	Reextract(ctx context.Context, documentID uuid.UUID) error
}

// StackQueryService is the read side: paged summaries and full details.
type StackQueryService interface {
	List(ctx context.Context, page, size int) (domain.StackList, error)
	Details(ctx context.Context, stackID uuid.UUID) (*domain.StackDetails, error)
}

// EndpointAdmin manages integration endpoint configuration.
type EndpointAdmin interface {
	ListEndpoints(ctx context.Context) ([]domain.IntegrationEndpoint, error)
	UpsertByType(ctx context.Context, endpointType domain.EndpointType, name string, settings map[string]string) (*domain.IntegrationEndpoint, error)
	ListEmailSources(ctx context.Context) ([]domain.IntegrationEndpoint, error)
	CreateEmailSource(ctx context.Context, name string, settings map[string]string) (*domain.IntegrationEndpoint, error)
	UpdateEmailSource(ctx context.Context, id uuid.UUID, name string, settings map[string]string) (*domain.IntegrationEndpoint, error)
	DeleteEmailSource(ctx context.Context, id uuid.UUID) error
}
