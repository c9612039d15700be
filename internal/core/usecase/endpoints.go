package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/invoicestack/invoice-processor/internal/core/domain"
	"github.com/invoicestack/invoice-processor/internal/core/ports"
)

// EndpointAdminUseCase manages integration endpoint configuration. The
// storage target is singleton-by-type and updated in place; email sources
// are a plain collection.
type EndpointAdminUseCase struct {
	endpoints ports.EndpointRepository
}

func NewEndpointAdminUseCase(endpoints ports.EndpointRepository) *EndpointAdminUseCase {
	return &EndpointAdminUseCase{endpoints: endpoints}
}

func (uc *EndpointAdminUseCase) ListEndpoints(ctx context.Context) ([]domain.IntegrationEndpoint, error) {
	return uc.endpoints.List(ctx)
}

// UpsertByType creates or replaces the single endpoint of the given type.
// An existing row keeps its id so references stay stable.
func (uc *EndpointAdminUseCase) UpsertByType(ctx context.Context, endpointType domain.EndpointType, name string, settings map[string]string) (*domain.IntegrationEndpoint, error) {
	if err := validateEndpointInput(name, settings); err != nil {
		return nil, err
	}

	existing, err := uc.endpoints.GetByType(ctx, endpointType)
	switch {
	case err == nil:
		existing.Name = name
		existing.Settings = cloneSettings(settings)
		existing.UpdatedAt = time.Now().UTC()
		if err := uc.endpoints.Upsert(ctx, existing); err != nil {
			return nil, err
		}
		return existing, nil
	case domain.IsKind(err, domain.ErrNotFound):
		endpoint := domain.NewIntegrationEndpoint(name, endpointType, settings)
		if err := uc.endpoints.Upsert(ctx, endpoint); err != nil {
			return nil, err
		}
		return endpoint, nil
	default:
		return nil, err
	}
}

func (uc *EndpointAdminUseCase) ListEmailSources(ctx context.Context) ([]domain.IntegrationEndpoint, error) {
	return uc.endpoints.ListByType(ctx, domain.EndpointEmailSource)
}

func (uc *EndpointAdminUseCase) CreateEmailSource(ctx context.Context, name string, settings map[string]string) (*domain.IntegrationEndpoint, error) {
	if err := validateEndpointInput(name, settings); err != nil {
		return nil, err
	}
	endpoint := domain.NewIntegrationEndpoint(name, domain.EndpointEmailSource, settings)
	if err := uc.endpoints.Upsert(ctx, endpoint); err != nil {
		return nil, err
	}
	return endpoint, nil
}

func (uc *EndpointAdminUseCase) UpdateEmailSource(ctx context.Context, id uuid.UUID, name string, settings map[string]string) (*domain.IntegrationEndpoint, error) {
	if err := validateEndpointInput(name, settings); err != nil {
		return nil, err
	}

	endpoint, err := uc.endpoints.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if endpoint.Type != domain.EndpointEmailSource {
		return nil, domain.WrapError(domain.ErrValidation, "update email source",
			fmt.Errorf("endpoint %s has type %s", id, endpoint.Type))
	}

	endpoint.Name = name
	endpoint.Settings = cloneSettings(settings)
	endpoint.UpdatedAt = time.Now().UTC()
	if err := uc.endpoints.Upsert(ctx, endpoint); err != nil {
		return nil, err
	}
	return endpoint, nil
}

func (uc *EndpointAdminUseCase) DeleteEmailSource(ctx context.Context, id uuid.UUID) error {
	endpoint, err := uc.endpoints.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if endpoint.Type != domain.EndpointEmailSource {
		return domain.WrapError(domain.ErrValidation, "delete email source",
			fmt.Errorf("endpoint %s has type %s", id, endpoint.Type))
	}
	return uc.endpoints.Delete(ctx, id)
}

func validateEndpointInput(name string, settings map[string]string) error {
	if strings.TrimSpace(name) == "" {
		return domain.WrapError(domain.ErrValidation, "validate endpoint",
			fmt.Errorf("name must not be blank"))
	}
	if len(settings) == 0 {
		return domain.WrapError(domain.ErrValidation, "validate endpoint",
			fmt.Errorf("settings must not be empty"))
	}
	return nil
}

func cloneSettings(settings map[string]string) map[string]string {
	out := make(map[string]string, len(settings))
	for k, v := range settings {
		out[k] = v
	}
	return out
}
