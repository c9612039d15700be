package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/invoicestack/invoice-processor/internal/core/domain"
)

type EndpointRepository struct {
	db *sql.DB
}

func NewEndpointRepository(db *sql.DB) *EndpointRepository {
	return &EndpointRepository{db: db}
}

func (r *EndpointRepository) Upsert(ctx context.Context, endpoint *domain.IntegrationEndpoint) error {
	settingsJSON, err := json.Marshal(endpoint.Settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	_, err = runner(ctx, r.db).ExecContext(ctx, `
INSERT INTO integration_endpoints (id, name, type, settings, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, settings = EXCLUDED.settings, updated_at = EXCLUDED.updated_at
`,
		endpoint.ID, endpoint.Name, string(endpoint.Type), settingsJSON, endpoint.CreatedAt, endpoint.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert endpoint: %w", err)
	}
	return nil
}

func (r *EndpointRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.IntegrationEndpoint, error) {
	row := runner(ctx, r.db).QueryRowContext(ctx, `
SELECT id, name, type, settings, created_at, updated_at
FROM integration_endpoints
WHERE id = $1
`, id)

	endpoint, err := scanEndpoint(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get endpoint", fmt.Errorf("endpoint %s", id))
		}
		return nil, fmt.Errorf("scan endpoint: %w", err)
	}
	return endpoint, nil
}

func (r *EndpointRepository) GetByType(ctx context.Context, endpointType domain.EndpointType) (*domain.IntegrationEndpoint, error) {
	row := runner(ctx, r.db).QueryRowContext(ctx, `
SELECT id, name, type, settings, created_at, updated_at
FROM integration_endpoints
WHERE type = $1
ORDER BY updated_at DESC
LIMIT 1
`, string(endpointType))

	endpoint, err := scanEndpoint(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get endpoint by type", fmt.Errorf("type %s", endpointType))
		}
		return nil, fmt.Errorf("scan endpoint: %w", err)
	}
	return endpoint, nil
}

func (r *EndpointRepository) List(ctx context.Context) ([]domain.IntegrationEndpoint, error) {
	return r.list(ctx, `
SELECT id, name, type, settings, created_at, updated_at
FROM integration_endpoints
ORDER BY created_at ASC
`)
}

func (r *EndpointRepository) ListByType(ctx context.Context, endpointType domain.EndpointType) ([]domain.IntegrationEndpoint, error) {
	return r.list(ctx, `
SELECT id, name, type, settings, created_at, updated_at
FROM integration_endpoints
WHERE type = $1
ORDER BY created_at ASC
`, string(endpointType))
}

func (r *EndpointRepository) list(ctx context.Context, query string, args ...any) ([]domain.IntegrationEndpoint, error) {
	rows, err := runner(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list endpoints: %w", err)
	}
	defer rows.Close()

	var out []domain.IntegrationEndpoint
	for rows.Next() {
		endpoint, err := scanEndpoint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan endpoint row: %w", err)
		}
		out = append(out, *endpoint)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate endpoints: %w", err)
	}
	return out, nil
}

func (r *EndpointRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := runner(ctx, r.db).ExecContext(ctx, `
DELETE FROM integration_endpoints WHERE id = $1
`, id)
	if err != nil {
		return fmt.Errorf("delete endpoint: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete endpoint: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrNotFound, "delete endpoint", fmt.Errorf("endpoint %s", id))
	}
	return nil
}

func scanEndpoint(row rowScanner) (*domain.IntegrationEndpoint, error) {
	var endpoint domain.IntegrationEndpoint
	var endpointType string
	var settingsRaw []byte
	err := row.Scan(&endpoint.ID, &endpoint.Name, &endpointType, &settingsRaw, &endpoint.CreatedAt, &endpoint.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(settingsRaw, &endpoint.Settings); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}
	endpoint.Type = domain.EndpointType(endpointType)
	return &endpoint, nil
}
