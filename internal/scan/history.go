// Package scan drives connector runs against the durable scan-history
// record of spec.md §4.7: one row per run, status transitions
// running -> {completed, failed, cancelled}, exactly one run per
// (tenant, connector) in flight at a time.
package scan

import (
	"context"
	"time"

	"github.com/sentinel/discovery-engine/internal/core"
)

// Status mirrors the scan_history.status enum.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Record is one row of scan_history.
type Record struct {
	ID            string
	Tenant        core.TenantID
	ConnectorName string
	ScanType      string
	Target        string
	Status        Status
	NodesFound    int
	NodesUpdated  int
	NodesStale    int
	EngramSession string
	ErrorMessage  string
	StartedAt     time.Time
	CompletedAt   *time.Time
	DurationMS    int64
}

// HistoryStore persists scan_history rows. Start and Finish are separate
// calls so a row exists in status=running for the whole lifetime of a
// scan, matching spec.md §4.7's status-transition model.
type HistoryStore interface {
	Start(ctx context.Context, r Record) error
	Finish(ctx context.Context, id string, status Status, nodesFound, nodesUpdated, nodesStale int, engramSession, errorMessage string, completedAt time.Time, durationMS int64) error
	Get(ctx context.Context, tenant core.TenantID, id string) (*Record, error)
	List(ctx context.Context, tenant core.TenantID, connectorName string, limit int) ([]Record, error)
}
