package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/invoicestack/invoice-processor/internal/core/domain"
	"github.com/invoicestack/invoice-processor/internal/core/ports"
)

type sourceFake struct {
	id     string
	emails []domain.RawEmail
	marked []string
}

func (s *sourceFake) ID() string { return s.id }

func (s *sourceFake) FetchUnread(context.Context) ([]domain.RawEmail, error) {
	return s.emails, nil
}

func (s *sourceFake) MarkRead(_ context.Context, messageID string) error {
	s.marked = append(s.marked, messageID)
	return nil
}

type providerFake struct {
	sources []ports.MailSource
}

func (p *providerFake) Sources(context.Context) ([]ports.MailSource, error) {
	return p.sources, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestForwarderPostsAndMarksRead(t *testing.T) {
	var received []forwardedEmail
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/email-import" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		var payload forwardedEmail
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		received = append(received, payload)
		w.WriteHeader(http.StatusCreated)
	}))
	defer backend.Close()

	source := &sourceFake{
		id: "inbox",
		emails: []domain.RawEmail{
			{
				MessageID: "<m1@test>",
				From:      "billing@acme.test",
				Subject:   "Invoice 1",
				Body:      "hello",
				Attachments: []domain.RawAttachment{
					{Filename: "invoice.pdf", ContentType: "application/pdf", Content: []byte("%PDF-1.7")},
				},
			},
			{MessageID: "<m2@test>", From: "noreply@spam.test", Subject: "Newsletter", Body: "news"},
		},
	}

	fwd := newForwarder(&providerFake{sources: []ports.MailSource{source}}, backend.URL, testLogger(), time.Second)
	fwd.Run(context.Background())

	if len(received) != 2 {
		t.Fatalf("expected 2 forwarded emails, got %d", len(received))
	}
	if received[0].Subject != "Invoice 1" || len(received[0].Attachments) != 1 {
		t.Fatalf("unexpected first payload: %+v", received[0])
	}
	if string(received[0].Attachments[0].Content) != "%PDF-1.7" {
		t.Fatalf("attachment content did not survive the round trip")
	}
	if len(source.marked) != 2 {
		t.Fatalf("expected both messages marked read, got %v", source.marked)
	}
}

func TestForwarderKeepsMessageUnreadOnBackendError(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer backend.Close()

	source := &sourceFake{
		id:     "inbox",
		emails: []domain.RawEmail{{MessageID: "<m1@test>", Subject: "Invoice"}},
	}

	fwd := newForwarder(&providerFake{sources: []ports.MailSource{source}}, backend.URL, testLogger(), time.Second)
	fwd.Run(context.Background())

	if len(source.marked) != 0 {
		t.Fatalf("expected no messages marked read, got %v", source.marked)
	}
}
