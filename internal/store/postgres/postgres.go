// Package postgres is the relational app-state store of spec.md §6:
// tenants, connector configuration, scan history, and the audit log. No
// ORM appears anywhere in the retrieved corpus for this shape of problem,
// so every query here is hand-written SQL against pgx/v5, grounded on
// xkilldash9x-scalpel-cli's internal/agent/query_executor.go.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store wraps a pgxpool.Pool and implements the app-state stores
// (tenants, connectors, scan history, audit log) over it.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to dsn and returns a ready Store.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// EnsureSchema creates the app-state tables if they do not already exist.
// Migrations in a production deployment would be versioned separately;
// this is the startup-time bootstrap for a fresh database, mirroring the
// teacher's lack of a migration framework anywhere in the corpus.
func (s *Store) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS tenants (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS connectors (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL REFERENCES tenants(id),
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			credential_ref TEXT NOT NULL,
			schedule TEXT,
			options JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE(tenant_id, name)
		)`,
		`CREATE TABLE IF NOT EXISTS scan_history (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL REFERENCES tenants(id),
			connector_id TEXT NOT NULL,
			scan_type TEXT NOT NULL,
			target TEXT NOT NULL,
			status TEXT NOT NULL,
			nodes_found INTEGER NOT NULL DEFAULT 0,
			nodes_updated INTEGER NOT NULL DEFAULT 0,
			nodes_stale INTEGER NOT NULL DEFAULT 0,
			engram_session TEXT,
			error_message TEXT,
			started_at TIMESTAMPTZ NOT NULL,
			completed_at TIMESTAMPTZ,
			duration_ms BIGINT
		)`,
		`CREATE INDEX IF NOT EXISTS scan_history_tenant_connector_idx
			ON scan_history (tenant_id, connector_id, started_at DESC)`,
		`CREATE TABLE IF NOT EXISTS audit_log (
			id BIGSERIAL PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			actor TEXT NOT NULL,
			action TEXT NOT NULL,
			target TEXT,
			detail JSONB,
			occurred_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: ensure schema: %w", err)
		}
	}
	return nil
}
