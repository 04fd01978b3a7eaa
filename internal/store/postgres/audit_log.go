package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sentinel/discovery-engine/internal/core"
)

// AuditEntry is one row of the audit_log table: who did what to what,
// independent of the domain graph or scan history.
type AuditEntry struct {
	ID         int64
	Tenant     core.TenantID
	Actor      string
	Action     string
	Target     string
	Detail     map[string]any
	OccurredAt time.Time
}

// RecordAudit appends one audit_log row.
func (s *Store) RecordAudit(ctx context.Context, tenant core.TenantID, actor, action, target string, detail map[string]any) error {
	raw, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("postgres: marshal audit detail: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO audit_log (tenant_id, actor, action, target, detail) VALUES ($1, $2, $3, $4, $5)`,
		tenant.String(), actor, action, target, raw)
	if err != nil {
		return fmt.Errorf("postgres: record audit: %w", err)
	}
	return nil
}

// ListAudit returns the most recent audit_log rows for tenant, newest first.
func (s *Store) ListAudit(ctx context.Context, tenant core.TenantID, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, actor, action, target, detail, occurred_at
		 FROM audit_log WHERE tenant_id = $1 ORDER BY occurred_at DESC LIMIT $2`,
		tenant.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list audit log: %w", err)
	}
	defer rows.Close()

	var out []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var tenantStr string
		var raw []byte
		if err := rows.Scan(&e.ID, &tenantStr, &e.Actor, &e.Action, &e.Target, &raw, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("postgres: scan audit row: %w", err)
		}
		e.Tenant, err = core.ParseTenantID(tenantStr)
		if err != nil {
			return nil, fmt.Errorf("postgres: parse audit tenant: %w", err)
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &e.Detail); err != nil {
				return nil, fmt.Errorf("postgres: unmarshal audit detail: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
