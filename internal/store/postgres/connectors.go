package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sentinel/discovery-engine/internal/config"
	"github.com/sentinel/discovery-engine/internal/core"
)

// SaveConnector upserts a connector's configuration for tenant. Options is
// stored as JSONB so arbitrary provider-specific keys don't require a
// schema migration per connector type.
func (s *Store) SaveConnector(ctx context.Context, tenant core.TenantID, id string, entry config.ConnectorEntry) error {
	options, err := json.Marshal(entry.Options)
	if err != nil {
		return fmt.Errorf("postgres: marshal connector options: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO connectors (id, tenant_id, name, type, credential_ref, schedule, options)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			type = EXCLUDED.type,
			credential_ref = EXCLUDED.credential_ref,
			schedule = EXCLUDED.schedule,
			options = EXCLUDED.options`,
		id, tenant.String(), entry.Name, entry.Type, entry.CredentialRef, entry.Schedule, options)
	if err != nil {
		return fmt.Errorf("postgres: save connector: %w", err)
	}
	return nil
}

// ListConnectors returns every connector configured for tenant.
func (s *Store) ListConnectors(ctx context.Context, tenant core.TenantID) ([]config.ConnectorEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT name, type, credential_ref, schedule, options FROM connectors WHERE tenant_id = $1 ORDER BY name`,
		tenant.String())
	if err != nil {
		return nil, fmt.Errorf("postgres: list connectors: %w", err)
	}
	defer rows.Close()

	var out []config.ConnectorEntry
	for rows.Next() {
		var entry config.ConnectorEntry
		var options []byte
		if err := rows.Scan(&entry.Name, &entry.Type, &entry.CredentialRef, &entry.Schedule, &options); err != nil {
			return nil, fmt.Errorf("postgres: scan connector row: %w", err)
		}
		if len(options) > 0 {
			if err := json.Unmarshal(options, &entry.Options); err != nil {
				return nil, fmt.Errorf("postgres: unmarshal connector options: %w", err)
			}
		}
		entry.TenantID = tenant.String()
		out = append(out, entry)
	}
	return out, rows.Err()
}

// DeleteConnector removes a connector's configuration.
func (s *Store) DeleteConnector(ctx context.Context, tenant core.TenantID, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM connectors WHERE id = $1 AND tenant_id = $2`, id, tenant.String())
	if err != nil {
		return fmt.Errorf("postgres: delete connector: %w", err)
	}
	return nil
}
