package scan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sentinel/discovery-engine/internal/connector"
	"github.com/sentinel/discovery-engine/internal/core"
)

// Orchestrator drives connector.Runner against the durable scan_history
// table and the in-memory (tenant, connector) registry (spec.md §4.7).
type Orchestrator struct {
	Runner   *connector.Runner
	History  HistoryStore
	Registry *Registry
	Now      func() time.Time
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// RunScan runs spec.Connector against tenant, recording a scan_history row
// for the full lifetime of the run. It returns core.ErrAlreadyRunning
// without touching history if a run for (tenant, spec.Connector.Name()) is
// already in flight.
func (o *Orchestrator) RunScan(ctx context.Context, tenant core.TenantID, spec connector.RunSpec) (*Record, error) {
	name := spec.Connector.Name()
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := o.Registry.Acquire(tenant, name, cancel); err != nil {
		return nil, err
	}
	defer o.Registry.Release(tenant, name)

	startedAt := o.now()
	scanType := string(spec.Connector.ConnectorType())

	record := Record{
		ID:            fmt.Sprintf("%s-%s-%d", tenant, name, startedAt.UnixNano()),
		Tenant:        tenant,
		ConnectorName: name,
		ScanType:      scanType,
		Target:        name,
		Status:        StatusRunning,
		StartedAt:     startedAt,
	}
	if err := o.History.Start(ctx, record); err != nil {
		return nil, fmt.Errorf("scan: record start: %w", err)
	}

	result, runErr := o.Runner.Run(runCtx, tenant, spec)

	completedAt := o.now()
	duration := completedAt.Sub(startedAt).Milliseconds()

	if runErr != nil {
		record.Status = StatusFailed
		record.ErrorMessage = runErr.Error()
		_ = o.History.Finish(ctx, record.ID, record.Status, 0, 0, 0, "", record.ErrorMessage, completedAt, duration)
		return &record, runErr
	}

	status := statusFor(runCtx, result)
	errMsg := ""
	if result.Err != nil {
		errMsg = result.Err.Error()
	}

	record.Status = status
	record.NodesFound = result.NodesFound
	record.NodesUpdated = result.NodesUpdated
	record.NodesStale = result.NodesStale
	record.EngramSession = result.ScanID
	record.ErrorMessage = errMsg
	record.CompletedAt = &completedAt
	record.DurationMS = duration

	if err := o.History.Finish(ctx, record.ID, status, result.NodesFound, result.NodesUpdated, result.NodesStale, result.ScanID, errMsg, completedAt, duration); err != nil {
		return &record, fmt.Errorf("scan: record finish: %w", err)
	}
	return &record, nil
}

// statusFor maps a connector.RunResult onto a scan_history status,
// recognizing a context cancellation as StatusCancelled rather than
// StatusFailed (spec.md §4.7's cooperative-cancel transition).
func statusFor(ctx context.Context, result *connector.RunResult) Status {
	if errors.Is(ctx.Err(), context.Canceled) || errors.Is(result.Err, core.ErrCancelled) {
		return StatusCancelled
	}
	switch result.Status {
	case connector.StatusSuccess, connector.StatusPartial:
		return StatusCompleted
	default:
		return StatusFailed
	}
}
