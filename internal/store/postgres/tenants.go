package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sentinel/discovery-engine/internal/core"
)

// Tenant is one row of the tenants table.
type Tenant struct {
	ID        core.TenantID
	Name      string
	CreatedAt time.Time
}

// CreateTenant inserts a new tenant row.
func (s *Store) CreateTenant(ctx context.Context, id core.TenantID, name string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tenants (id, name) VALUES ($1, $2)`,
		id.String(), name)
	if err != nil {
		return fmt.Errorf("postgres: create tenant: %w", err)
	}
	return nil
}

// GetTenant fetches a tenant by id.
func (s *Store) GetTenant(ctx context.Context, id core.TenantID) (*Tenant, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, created_at FROM tenants WHERE id = $1`, id.String())
	var t Tenant
	var idStr string
	if err := row.Scan(&idStr, &t.Name, &t.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("postgres: tenant %s: %w", id, pgx.ErrNoRows)
		}
		return nil, fmt.Errorf("postgres: get tenant: %w", err)
	}
	tid, err := core.ParseTenantID(idStr)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse tenant id: %w", err)
	}
	t.ID = tid
	return &t, nil
}

// ListTenants returns every known tenant.
func (s *Store) ListTenants(ctx context.Context) ([]Tenant, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, created_at FROM tenants ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list tenants: %w", err)
	}
	defer rows.Close()

	var out []Tenant
	for rows.Next() {
		var t Tenant
		var idStr string
		if err := rows.Scan(&idStr, &t.Name, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan tenant row: %w", err)
		}
		tid, err := core.ParseTenantID(idStr)
		if err != nil {
			return nil, fmt.Errorf("postgres: parse tenant id: %w", err)
		}
		t.ID = tid
		out = append(out, t)
	}
	return out, rows.Err()
}
