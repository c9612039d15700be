package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// EnsureSchema creates all tables on startup. DDL runs under an advisory
// lock so concurrent api/mailimport startups serialize instead of fighting
// over CREATE TABLE.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083001)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS stacks (
	id UUID PRIMARY KEY,
	received_at TIMESTAMPTZ NOT NULL,
	from_address TEXT NOT NULL DEFAULT '',
	to_address TEXT NOT NULL DEFAULT '',
	subject TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_stacks_received_at ON stacks(received_at DESC);

CREATE TABLE IF NOT EXISTS documents (
	id UUID PRIMARY KEY,
	stack_id UUID NOT NULL REFERENCES stacks(id) ON DELETE CASCADE,
	type TEXT NOT NULL,
	filename TEXT NOT NULL DEFAULT '',
	content_location TEXT NOT NULL,
	llm_classification TEXT NOT NULL,
	extraction_status TEXT NOT NULL,
	position INT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_stack_id ON documents(stack_id);

CREATE TABLE IF NOT EXISTS invoice_extractions (
	id UUID PRIMARY KEY,
	document_id UUID NOT NULL UNIQUE REFERENCES documents(id) ON DELETE CASCADE,
	invoice_number TEXT NOT NULL,
	invoice_date TIMESTAMPTZ NOT NULL,
	supplier_name TEXT NOT NULL,
	total_amount NUMERIC(18,2) NOT NULL,
	currency TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS integration_endpoints (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	type TEXT NOT NULL,
	settings JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_integration_endpoints_type ON integration_endpoints(type);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}
