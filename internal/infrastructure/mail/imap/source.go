// Package imap fetches unread mail over IMAP. Every fetch dials a fresh
// connection; mailboxes configured as EMAIL_SOURCE endpoints tend to sit
// behind flaky consumer IMAP servers, and short-lived sessions avoid
// stale-connection errors entirely.
package imap

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"

	"github.com/invoicestack/invoice-processor/internal/core/domain"
)

type Config struct {
	Name     string
	Host     string
	Port     string
	Username string
	Password string
	Folder   string
}

type Source struct {
	cfg    Config
	logger *slog.Logger
}

func NewSource(cfg Config, logger *slog.Logger) *Source {
	if cfg.Port == "" {
		cfg.Port = "993"
	}
	if cfg.Folder == "" {
		cfg.Folder = "INBOX"
	}
	return &Source{cfg: cfg, logger: logger}
}

func (s *Source) ID() string { return s.cfg.Name }

func (s *Source) connect() (*imapclient.Client, error) {
	addr := s.cfg.Host + ":" + s.cfg.Port
	client, err := imapclient.DialTLS(addr, nil)
	if err != nil {
		return nil, domain.WrapError(domain.ErrUpstream, "dial imap", err)
	}
	if err := client.Login(s.cfg.Username, s.cfg.Password).Wait(); err != nil {
		_ = client.Close()
		return nil, domain.WrapError(domain.ErrUpstream, "imap login", err)
	}
	if _, err := client.Select(s.cfg.Folder, nil).Wait(); err != nil {
		_ = client.Close()
		return nil, domain.WrapError(domain.ErrUpstream, "select folder", err)
	}
	return client, nil
}

func (s *Source) FetchUnread(ctx context.Context) ([]domain.RawEmail, error) {
	client, err := s.connect()
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = client.Logout().Wait()
		_ = client.Close()
	}()

	criteria := &imap.SearchCriteria{NotFlag: []imap.Flag{imap.FlagSeen}}
	searchData, err := client.Search(criteria, nil).Wait()
	if err != nil {
		return nil, domain.WrapError(domain.ErrUpstream, "search unseen", err)
	}
	seqNums := searchData.AllSeqNums()
	if len(seqNums) == 0 {
		return nil, nil
	}

	var seqSet imap.SeqSet
	seqSet.AddNum(seqNums...)

	bodySection := &imap.FetchItemBodySection{}
	fetchCmd := client.Fetch(seqSet, &imap.FetchOptions{BodySection: []*imap.FetchItemBodySection{bodySection}})
	defer fetchCmd.Close()

	var emails []domain.RawEmail
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}
		buffer, err := msg.Collect()
		if err != nil {
			s.logger.Warn("skipping message, fetch failed",
				slog.String("source", s.cfg.Name),
				slog.String("error", err.Error()),
			)
			continue
		}
		raw := buffer.FindBodySection(bodySection)
		if len(raw) == 0 {
			continue
		}
		email, err := s.parse(raw)
		if err != nil {
			s.logger.Warn("skipping unparseable message",
				slog.String("source", s.cfg.Name),
				slog.String("error", err.Error()),
			)
			continue
		}
		emails = append(emails, email)
	}
	return emails, nil
}

// parse splits a raw RFC 5322 message into body text and attachments. The
// first text part becomes the body, preferring text/plain over text/html.
func (s *Source) parse(raw []byte) (domain.RawEmail, error) {
	reader, err := mail.CreateReader(strings.NewReader(string(raw)))
	if err != nil {
		return domain.RawEmail{}, fmt.Errorf("create mail reader: %w", err)
	}

	email := domain.RawEmail{SourceID: s.cfg.Name}
	if messageID, err := reader.Header.MessageID(); err == nil {
		email.MessageID = messageID
	}
	if subject, err := reader.Header.Subject(); err == nil {
		email.Subject = subject
	}
	if from, err := reader.Header.AddressList("From"); err == nil && len(from) > 0 {
		email.From = from[0].Address
	}
	if to, err := reader.Header.AddressList("To"); err == nil && len(to) > 0 {
		email.To = to[0].Address
	}

	var htmlBody string
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return domain.RawEmail{}, fmt.Errorf("read mail part: %w", err)
		}

		switch header := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := header.ContentType()
			content, err := io.ReadAll(part.Body)
			if err != nil {
				continue
			}
			switch {
			case strings.HasPrefix(contentType, "text/plain") && email.Body == "":
				email.Body = string(content)
			case strings.HasPrefix(contentType, "text/html") && htmlBody == "":
				htmlBody = string(content)
			}
		case *mail.AttachmentHeader:
			filename, _ := header.Filename()
			contentType, _, _ := header.ContentType()
			content, err := io.ReadAll(part.Body)
			if err != nil {
				s.logger.Warn("skipping unreadable attachment",
					slog.String("source", s.cfg.Name),
					slog.String("filename", filename),
					slog.String("error", err.Error()),
				)
				continue
			}
			email.Attachments = append(email.Attachments, domain.RawAttachment{
				Filename:    filename,
				ContentType: contentType,
				Content:     content,
			})
		}
	}

	if email.Body == "" {
		email.Body = htmlBody
	}
	return email, nil
}

// MarkRead flags the message Seen, located by its Message-Id header. The
// sequence number from the fetch is useless here since every call runs on
// a new session.
func (s *Source) MarkRead(ctx context.Context, messageID string) error {
	if messageID == "" {
		return nil
	}
	client, err := s.connect()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Logout().Wait()
		_ = client.Close()
	}()

	criteria := &imap.SearchCriteria{
		Header: []imap.SearchCriteriaHeaderField{{Key: "Message-Id", Value: messageID}},
	}
	searchData, err := client.Search(criteria, nil).Wait()
	if err != nil {
		return domain.WrapError(domain.ErrUpstream, "search message", err)
	}
	seqNums := searchData.AllSeqNums()
	if len(seqNums) == 0 {
		return domain.WrapError(domain.ErrNotFound, "mark read", fmt.Errorf("message %s not found", messageID))
	}

	var seqSet imap.SeqSet
	seqSet.AddNum(seqNums...)
	storeCmd := client.Store(seqSet, &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagSeen},
	}, nil)
	if err := storeCmd.Close(); err != nil {
		return domain.WrapError(domain.ErrUpstream, "store seen flag", err)
	}
	return nil
}
