package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/invoicestack/invoice-processor/internal/core/domain"
	"github.com/invoicestack/invoice-processor/internal/core/ports"
)

func newImporter(provider ports.MailSourceProvider, creator ports.StackCreator) *ImportEmailsUseCase {
	return NewImportEmailsUseCase(provider, creator, nil, discardLogger(), time.Minute)
}

func TestImportAggregatesAcrossSources(t *testing.T) {
	first := &mailSourceFake{id: "inbox-a", emails: []domain.RawEmail{
		{MessageID: "<m1>", Subject: "one"},
		{MessageID: "<m2>", Subject: "two"},
	}}
	second := &mailSourceFake{id: "inbox-b", emails: []domain.RawEmail{
		{MessageID: "<m3>", Subject: "three"},
	}}
	creator := &creatorFake{result: ports.CreateStackResult{DocumentsCreated: 2, PartialFailures: 1}}
	uc := newImporter(&providerFake{sources: []ports.MailSource{first, second}}, creator)

	report, err := uc.ImportUnread(context.Background())
	if err != nil {
		t.Fatalf("ImportUnread() error = %v", err)
	}
	if report.EmailsFound != 3 || report.StacksCreated != 3 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.DocumentsCreated != 6 || report.PartialFailures != 3 {
		t.Fatalf("unexpected aggregation: %+v", report)
	}
	if len(first.marked) != 2 || len(second.marked) != 1 {
		t.Fatalf("every imported email must be marked read: %v %v", first.marked, second.marked)
	}
}

func TestImportSourceFetchFailureCountedAndOthersContinue(t *testing.T) {
	broken := &mailSourceFake{id: "broken", fetchErr: errors.New("connect refused")}
	healthy := &mailSourceFake{id: "healthy", emails: []domain.RawEmail{{MessageID: "<m1>"}}}
	creator := &creatorFake{result: ports.CreateStackResult{DocumentsCreated: 1}}
	uc := newImporter(&providerFake{sources: []ports.MailSource{broken, healthy}}, creator)

	report, err := uc.ImportUnread(context.Background())
	if err != nil {
		t.Fatalf("ImportUnread() error = %v", err)
	}
	if report.Errors != 1 || report.StacksCreated != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestImportCreateFailureSkipsMarkRead(t *testing.T) {
	source := &mailSourceFake{id: "inbox", emails: []domain.RawEmail{
		{MessageID: "<bad>"},
		{MessageID: "<good>"},
	}}
	creator := &creatorFake{
		result: ports.CreateStackResult{DocumentsCreated: 1},
		errFor: map[string]error{"<bad>": errors.New("db down")},
	}
	uc := newImporter(&providerFake{sources: []ports.MailSource{source}}, creator)

	report, err := uc.ImportUnread(context.Background())
	if err != nil {
		t.Fatalf("ImportUnread() error = %v", err)
	}
	if report.Errors != 1 || report.StacksCreated != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(source.marked) != 1 || source.marked[0] != "<good>" {
		t.Fatalf("failed email must stay unread: %v", source.marked)
	}
}

func TestImportMarkReadFailureDoesNotAffectReport(t *testing.T) {
	source := &mailSourceFake{id: "inbox", emails: []domain.RawEmail{{MessageID: "<m1>"}}, markErr: errors.New("imap gone")}
	creator := &creatorFake{result: ports.CreateStackResult{DocumentsCreated: 1}}
	uc := newImporter(&providerFake{sources: []ports.MailSource{source}}, creator)

	report, err := uc.ImportUnread(context.Background())
	if err != nil {
		t.Fatalf("ImportUnread() error = %v", err)
	}
	if report.Errors != 0 || report.StacksCreated != 1 {
		t.Fatalf("mark-read failure must not count as an error: %+v", report)
	}
}

func TestImportProviderError(t *testing.T) {
	uc := newImporter(&providerFake{err: domain.WrapError(domain.ErrConfiguration, "resolve sources", errors.New("no sources"))}, &creatorFake{})

	_, err := uc.ImportUnread(context.Background())
	if !domain.IsKind(err, domain.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
