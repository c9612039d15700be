package imap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/invoicestack/invoice-processor/internal/core/domain"
	"github.com/invoicestack/invoice-processor/internal/core/ports"
)

// Provider builds one Source per EMAIL_SOURCE integration endpoint on every
// call, so admin changes to mailbox settings apply on the next import run
// without a restart.
type Provider struct {
	endpoints ports.EndpointRepository
	logger    *slog.Logger
}

func NewProvider(endpoints ports.EndpointRepository, logger *slog.Logger) *Provider {
	return &Provider{endpoints: endpoints, logger: logger}
}

func (p *Provider) Sources(ctx context.Context) ([]ports.MailSource, error) {
	rows, err := p.endpoints.ListByType(ctx, domain.EndpointEmailSource)
	if err != nil {
		return nil, err
	}

	var sources []ports.MailSource
	for _, endpoint := range rows {
		cfg := Config{
			Name:     endpoint.Name,
			Host:     endpoint.Setting("host", "server"),
			Port:     endpoint.Setting("port"),
			Username: endpoint.Setting("username", "user"),
			Password: endpoint.Setting("password"),
			Folder:   endpoint.Setting("folder", "mailbox"),
		}
		if cfg.Host == "" || cfg.Username == "" || cfg.Password == "" {
			p.logger.Warn("skipping misconfigured email source",
				slog.String("endpoint", endpoint.Name),
				slog.String("id", endpoint.ID.String()),
			)
			continue
		}
		sources = append(sources, NewSource(cfg, p.logger))
	}

	if len(sources) == 0 {
		return nil, domain.WrapError(domain.ErrConfiguration, "resolve mail sources",
			fmt.Errorf("no usable EMAIL_SOURCE endpoints configured"))
	}
	return sources, nil
}
