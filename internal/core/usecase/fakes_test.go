package usecase

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/invoicestack/invoice-processor/internal/core/domain"
	"github.com/invoicestack/invoice-processor/internal/core/ports"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stackRepoFake struct {
	stacks      map[uuid.UUID]*domain.Stack
	createErr   error
	updateErr   error
	statusCalls []domain.StackStatus
}

func newStackRepoFake() *stackRepoFake {
	return &stackRepoFake{stacks: map[uuid.UUID]*domain.Stack{}}
}

func (f *stackRepoFake) Create(_ context.Context, stack *domain.Stack) error {
	if f.createErr != nil {
		return f.createErr
	}
	copyStack := *stack
	f.stacks[stack.ID] = &copyStack
	return nil
}

func (f *stackRepoFake) GetByID(_ context.Context, id uuid.UUID) (*domain.Stack, error) {
	stack, ok := f.stacks[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get stack", domain.ErrNotFound)
	}
	copyStack := *stack
	return &copyStack, nil
}

func (f *stackRepoFake) UpdateStatus(_ context.Context, id uuid.UUID, status domain.StackStatus) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.statusCalls = append(f.statusCalls, status)
	if stack, ok := f.stacks[id]; ok {
		stack.Status = status
	}
	return nil
}

func (f *stackRepoFake) List(_ context.Context, offset, limit int) ([]domain.Stack, error) {
	out := make([]domain.Stack, 0, len(f.stacks))
	for _, stack := range f.stacks {
		out = append(out, *stack)
	}
	if offset >= len(out) {
		return nil, nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], nil
}

func (f *stackRepoFake) Count(context.Context) (int64, error) {
	return int64(len(f.stacks)), nil
}

type documentRepoFake struct {
	docs      map[uuid.UUID]*domain.Document
	order     []uuid.UUID
	statuses  map[uuid.UUID][]domain.ExtractionStatus
	createErr error
	stateErr  error
}

func newDocumentRepoFake() *documentRepoFake {
	return &documentRepoFake{
		docs:     map[uuid.UUID]*domain.Document{},
		statuses: map[uuid.UUID][]domain.ExtractionStatus{},
	}
}

func (f *documentRepoFake) Create(_ context.Context, doc *domain.Document) error {
	if f.createErr != nil {
		return f.createErr
	}
	copyDoc := *doc
	f.docs[doc.ID] = &copyDoc
	f.order = append(f.order, doc.ID)
	return nil
}

func (f *documentRepoFake) GetByID(_ context.Context, id uuid.UUID) (*domain.Document, error) {
	doc, ok := f.docs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get document", domain.ErrNotFound)
	}
	copyDoc := *doc
	return &copyDoc, nil
}

func (f *documentRepoFake) ListByStackID(_ context.Context, stackID uuid.UUID) ([]domain.Document, error) {
	var out []domain.Document
	for _, id := range f.order {
		if f.docs[id].StackID == stackID {
			out = append(out, *f.docs[id])
		}
	}
	return out, nil
}

func (f *documentRepoFake) UpdateExtractionState(_ context.Context, id uuid.UUID, status domain.ExtractionStatus, cls domain.Classification) error {
	if f.stateErr != nil {
		return f.stateErr
	}
	f.statuses[id] = append(f.statuses[id], status)
	if doc, ok := f.docs[id]; ok {
		doc.ExtractionStatus = status
		doc.LlmClassification = cls
	}
	return nil
}

type extractionRepoFake struct {
	byDocument map[uuid.UUID]*domain.InvoiceExtraction
	deletes    int
	createErr  error
	deleteErr  error
}

func newExtractionRepoFake() *extractionRepoFake {
	return &extractionRepoFake{byDocument: map[uuid.UUID]*domain.InvoiceExtraction{}}
}

func (f *extractionRepoFake) Create(_ context.Context, extraction *domain.InvoiceExtraction) error {
	if f.createErr != nil {
		return f.createErr
	}
	copyExt := *extraction
	f.byDocument[extraction.DocumentID] = &copyExt
	return nil
}

func (f *extractionRepoFake) GetByDocumentID(_ context.Context, documentID uuid.UUID) (*domain.InvoiceExtraction, error) {
	extraction, ok := f.byDocument[documentID]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get extraction", domain.ErrNotFound)
	}
	copyExt := *extraction
	return &copyExt, nil
}

func (f *extractionRepoFake) DeleteByDocumentID(_ context.Context, documentID uuid.UUID) error {
	f.deletes++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.byDocument, documentID)
	return nil
}

type extractorFake struct {
	outcome   domain.ExtractionOutcome
	err       error
	panicWith any
	byName    map[string]domain.ExtractionOutcome
	calls     int
}

func (f *extractorFake) Extract(_ context.Context, doc *domain.Document) (domain.ExtractionOutcome, error) {
	f.calls++
	if f.panicWith != nil {
		panic(f.panicWith)
	}
	if f.err != nil {
		return domain.ExtractionOutcome{}, f.err
	}
	if f.byName != nil {
		if outcome, ok := f.byName[doc.Filename]; ok {
			return outcome, nil
		}
	}
	return f.outcome, nil
}

type txManagerFake struct {
	calls int
	err   error
}

func (f *txManagerFake) WithinStack(ctx context.Context, _ uuid.UUID, fn func(ctx context.Context) error) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	return fn(ctx)
}

type blobStoreFake struct {
	objects    map[string][]byte
	keys       []string
	failSubstr string
}

func newBlobStoreFake() *blobStoreFake {
	return &blobStoreFake{objects: map[string][]byte{}}
}

func (f *blobStoreFake) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	if f.failSubstr != "" && strings.Contains(key, f.failSubstr) {
		return "", domain.WrapError(domain.ErrUpstream, "put blob", domain.ErrUpstream)
	}
	f.objects[key] = data
	f.keys = append(f.keys, key)
	return key, nil
}

func (f *blobStoreFake) Get(_ context.Context, key string) ([]byte, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get blob", domain.ErrNotFound)
	}
	return data, nil
}

func (f *blobStoreFake) Delete(_ context.Context, key string) error {
	delete(f.objects, key)
	return nil
}

type publisherFake struct {
	events []domain.StackStatus
	err    error
}

func (f *publisherFake) StackProcessed(_ context.Context, _ uuid.UUID, status domain.StackStatus) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, status)
	return nil
}

type mailSourceFake struct {
	id       string
	emails   []domain.RawEmail
	fetchErr error
	markErr  error
	marked   []string
}

func (f *mailSourceFake) ID() string { return f.id }

func (f *mailSourceFake) FetchUnread(context.Context) ([]domain.RawEmail, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.emails, nil
}

func (f *mailSourceFake) MarkRead(_ context.Context, messageID string) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.marked = append(f.marked, messageID)
	return nil
}

type providerFake struct {
	sources []ports.MailSource
	err     error
}

func (f *providerFake) Sources(context.Context) ([]ports.MailSource, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.sources, nil
}

type creatorFake struct {
	result ports.CreateStackResult
	errFor map[string]error
	emails []domain.RawEmail
}

func (f *creatorFake) CreateFromEmail(_ context.Context, email domain.RawEmail) (ports.CreateStackResult, error) {
	if err, ok := f.errFor[email.MessageID]; ok {
		return ports.CreateStackResult{}, err
	}
	f.emails = append(f.emails, email)
	return f.result, nil
}

func (f *creatorFake) CreateManual(context.Context, ports.ManualStackRequest) (ports.CreateStackResult, error) {
	return f.result, nil
}

func (f *creatorFake) CreateSimulated(context.Context, ports.SimulatedEmailRequest) (uuid.UUID, error) {
	return uuid.New(), nil
}
