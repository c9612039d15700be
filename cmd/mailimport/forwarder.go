package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/invoicestack/invoice-processor/internal/core/domain"
	"github.com/invoicestack/invoice-processor/internal/core/ports"
)

// forwarder drains unread mail from every configured source and relays each
// message to the backend ingestion endpoint. A message is marked read only
// after the backend acknowledged it, so a failed relay is retried on the
// next run.
type forwarder struct {
	provider    ports.MailSourceProvider
	endpointURL string
	client      *http.Client
	logger      *slog.Logger
	mailTimeout time.Duration
}

func newForwarder(provider ports.MailSourceProvider, backendURL string, logger *slog.Logger, mailTimeout time.Duration) *forwarder {
	if mailTimeout <= 0 {
		mailTimeout = time.Minute
	}
	return &forwarder{
		provider:    provider,
		endpointURL: strings.TrimRight(backendURL, "/") + "/api/email-import",
		client:      &http.Client{Timeout: 60 * time.Second},
		logger:      logger,
		mailTimeout: mailTimeout,
	}
}

type forwardedAttachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Content     []byte `json:"content"`
}

type forwardedEmail struct {
	From        string                `json:"from"`
	To          string                `json:"to"`
	Subject     string                `json:"subject"`
	Body        string                `json:"body"`
	Attachments []forwardedAttachment `json:"attachments,omitempty"`
}

func (f *forwarder) Run(ctx context.Context) {
	sources, err := f.provider.Sources(ctx)
	if err != nil {
		f.logger.Error("resolve mail sources", "error", err)
		return
	}

	var forwarded, failed int
	for _, source := range sources {
		emails, err := f.fetchUnread(ctx, source)
		if err != nil {
			f.logger.Error("fetch unread", "source", source.ID(), "error", err)
			continue
		}

		for _, email := range emails {
			if err := f.forward(ctx, email); err != nil {
				failed++
				f.logger.Error("forward email",
					"source", source.ID(),
					"message_id", email.MessageID,
					"error", err,
				)
				continue
			}
			forwarded++
			if err := source.MarkRead(ctx, email.MessageID); err != nil {
				f.logger.Warn("mark read failed, message may be forwarded again",
					"source", source.ID(),
					"message_id", email.MessageID,
					"error", err,
				)
			}
		}
	}

	f.logger.Info("forward run finished", "forwarded", forwarded, "failed", failed)
}

func (f *forwarder) fetchUnread(ctx context.Context, source ports.MailSource) ([]domain.RawEmail, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, f.mailTimeout)
	defer cancel()
	return source.FetchUnread(fetchCtx)
}

func (f *forwarder) forward(ctx context.Context, email domain.RawEmail) error {
	payload := forwardedEmail{
		From:    email.From,
		To:      email.To,
		Subject: email.Subject,
		Body:    email.Body,
	}
	for _, att := range email.Attachments {
		payload.Attachments = append(payload.Attachments, forwardedAttachment{
			Filename:    att.Filename,
			ContentType: att.ContentType,
			Content:     att.Content,
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpointURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("post email: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("backend rejected email: status %d", resp.StatusCode)
	}
	return nil
}
