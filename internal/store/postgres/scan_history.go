package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/sentinel/discovery-engine/internal/core"
	"github.com/sentinel/discovery-engine/internal/scan"
)

// HistoryStore implements scan.HistoryStore against the scan_history
// table. It is a thin adapter so internal/scan never imports pgx
// directly.
type HistoryStore struct {
	store *Store
}

// NewHistoryStore wraps store as a scan.HistoryStore.
func NewHistoryStore(store *Store) *HistoryStore {
	return &HistoryStore{store: store}
}

var _ scan.HistoryStore = (*HistoryStore)(nil)

func (h *HistoryStore) Start(ctx context.Context, r scan.Record) error {
	_, err := h.store.pool.Exec(ctx, `
		INSERT INTO scan_history (id, tenant_id, connector_id, scan_type, target, status, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.ID, r.Tenant.String(), r.ConnectorName, r.ScanType, r.Target, string(r.Status), r.StartedAt)
	if err != nil {
		return fmt.Errorf("postgres: start scan history: %w", err)
	}
	return nil
}

func (h *HistoryStore) Finish(ctx context.Context, id string, status scan.Status, nodesFound, nodesUpdated, nodesStale int, engramSession, errorMessage string, completedAt time.Time, durationMS int64) error {
	_, err := h.store.pool.Exec(ctx, `
		UPDATE scan_history SET
			status = $2,
			nodes_found = $3,
			nodes_updated = $4,
			nodes_stale = $5,
			engram_session = $6,
			error_message = $7,
			completed_at = $8,
			duration_ms = $9
		WHERE id = $1`,
		id, string(status), nodesFound, nodesUpdated, nodesStale, engramSession, errorMessage, completedAt, durationMS)
	if err != nil {
		return fmt.Errorf("postgres: finish scan history: %w", err)
	}
	return nil
}

func (h *HistoryStore) Get(ctx context.Context, tenant core.TenantID, id string) (*scan.Record, error) {
	row := h.store.pool.QueryRow(ctx, `
		SELECT id, tenant_id, connector_id, scan_type, target, status, nodes_found, nodes_updated,
			nodes_stale, engram_session, error_message, started_at, completed_at, duration_ms
		FROM scan_history WHERE id = $1 AND tenant_id = $2`, id, tenant.String())
	r, err := scanRecordRow(row)
	if err != nil {
		return nil, fmt.Errorf("postgres: get scan history: %w", err)
	}
	return r, nil
}

func (h *HistoryStore) List(ctx context.Context, tenant core.TenantID, connectorName string, limit int) ([]scan.Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := h.store.pool.Query(ctx, `
		SELECT id, tenant_id, connector_id, scan_type, target, status, nodes_found, nodes_updated,
			nodes_stale, engram_session, error_message, started_at, completed_at, duration_ms
		FROM scan_history
		WHERE tenant_id = $1 AND ($2 = '' OR connector_id = $2)
		ORDER BY started_at DESC
		LIMIT $3`, tenant.String(), connectorName, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list scan history: %w", err)
	}
	defer rows.Close()

	var out []scan.Record
	for rows.Next() {
		r, err := scanRecordRow(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan scan_history row: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecordRow(row rowScanner) (*scan.Record, error) {
	var r scan.Record
	var tenantStr, statusStr string
	if err := row.Scan(&r.ID, &tenantStr, &r.ConnectorName, &r.ScanType, &r.Target, &statusStr,
		&r.NodesFound, &r.NodesUpdated, &r.NodesStale, &r.EngramSession, &r.ErrorMessage,
		&r.StartedAt, &r.CompletedAt, &r.DurationMS); err != nil {
		return nil, err
	}
	tenant, err := core.ParseTenantID(tenantStr)
	if err != nil {
		return nil, err
	}
	r.Tenant = tenant
	r.Status = scan.Status(statusStr)
	return &r, nil
}
