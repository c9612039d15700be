package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/invoicestack/invoice-processor/internal/core/domain"
)

type StackRepository struct {
	db *sql.DB
}

func NewStackRepository(db *sql.DB) *StackRepository {
	return &StackRepository{db: db}
}

func (r *StackRepository) Create(ctx context.Context, stack *domain.Stack) error {
	_, err := runner(ctx, r.db).ExecContext(ctx, `
INSERT INTO stacks (id, received_at, from_address, to_address, subject, status)
VALUES ($1,$2,$3,$4,$5,$6)
`,
		stack.ID, stack.ReceivedAt, stack.FromAddress, stack.ToAddress, stack.Subject, string(stack.Status),
	)
	if err != nil {
		return fmt.Errorf("insert stack: %w", err)
	}
	return nil
}

func (r *StackRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Stack, error) {
	row := runner(ctx, r.db).QueryRowContext(ctx, `
SELECT id, received_at, from_address, to_address, subject, status
FROM stacks
WHERE id = $1
`, id)

	var stack domain.Stack
	var status string
	err := row.Scan(&stack.ID, &stack.ReceivedAt, &stack.FromAddress, &stack.ToAddress, &stack.Subject, &status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get stack", fmt.Errorf("stack %s", id))
		}
		return nil, fmt.Errorf("scan stack: %w", err)
	}
	stack.Status = domain.StackStatus(status)
	return &stack, nil
}

func (r *StackRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.StackStatus) error {
	res, err := runner(ctx, r.db).ExecContext(ctx, `
UPDATE stacks SET status = $2 WHERE id = $1
`, id, string(status))
	if err != nil {
		return fmt.Errorf("update stack status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update stack status: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrNotFound, "update stack status", fmt.Errorf("stack %s", id))
	}
	return nil
}

func (r *StackRepository) List(ctx context.Context, offset, limit int) ([]domain.Stack, error) {
	rows, err := runner(ctx, r.db).QueryContext(ctx, `
SELECT id, received_at, from_address, to_address, subject, status
FROM stacks
ORDER BY received_at DESC
OFFSET $1 LIMIT $2
`, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list stacks: %w", err)
	}
	defer rows.Close()

	var out []domain.Stack
	for rows.Next() {
		var stack domain.Stack
		var status string
		if err := rows.Scan(&stack.ID, &stack.ReceivedAt, &stack.FromAddress, &stack.ToAddress, &stack.Subject, &status); err != nil {
			return nil, fmt.Errorf("scan stack row: %w", err)
		}
		stack.Status = domain.StackStatus(status)
		out = append(out, stack)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stacks: %w", err)
	}
	return out, nil
}

func (r *StackRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := runner(ctx, r.db).QueryRowContext(ctx, `SELECT COUNT(*) FROM stacks`).Scan(&total); err != nil {
		return 0, fmt.Errorf("count stacks: %w", err)
	}
	return total, nil
}
