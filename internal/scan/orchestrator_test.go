package scan

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sentinel/discovery-engine/internal/connector"
	"github.com/sentinel/discovery-engine/internal/core"
	"github.com/sentinel/discovery-engine/internal/engram"
	"github.com/sentinel/discovery-engine/internal/events"
	"github.com/sentinel/discovery-engine/internal/graph"
)

type fakeConnector struct {
	name   string
	typ    core.ConnectorType
	result *connector.SyncResult
	err    error
	block  chan struct{}
}

func (f *fakeConnector) Name() string                  { return f.name }
func (f *fakeConnector) ConnectorType() connector.Type { return f.typ }
func (f *fakeConnector) Discover(ctx context.Context, tenant core.TenantID, cfg connector.Config) (*connector.SyncResult, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeGraphApplier struct{}

func (f *fakeGraphApplier) ApplyBatch(ctx context.Context, tenant core.TenantID, nodes []core.Node, edges []*core.Edge, now time.Time) (*graph.BatchResult, error) {
	return &graph.BatchResult{NodesCreated: len(nodes)}, nil
}

type memHistoryStore struct {
	mu      sync.Mutex
	records map[string]*Record
}

func newMemHistoryStore() *memHistoryStore { return &memHistoryStore{records: map[string]*Record{}} }

func (m *memHistoryStore) Start(ctx context.Context, r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rc := r
	m.records[r.ID] = &rc
	return nil
}

func (m *memHistoryStore) Finish(ctx context.Context, id string, status Status, nodesFound, nodesUpdated, nodesStale int, engramSession, errorMessage string, completedAt time.Time, durationMS int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rc, ok := m.records[id]
	if !ok {
		return nil
	}
	rc.Status = status
	rc.NodesFound = nodesFound
	rc.NodesUpdated = nodesUpdated
	rc.NodesStale = nodesStale
	rc.EngramSession = engramSession
	rc.ErrorMessage = errorMessage
	rc.CompletedAt = &completedAt
	rc.DurationMS = durationMS
	return nil
}

func (m *memHistoryStore) Get(ctx context.Context, tenant core.TenantID, id string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[id], nil
}

func (m *memHistoryStore) List(ctx context.Context, tenant core.TenantID, connectorName string, limit int) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Record
	for _, r := range m.records {
		out = append(out, *r)
	}
	return out, nil
}

type memEngramStore struct {
	mu    sync.Mutex
	saved []*engram.Engram
}

func (m *memEngramStore) Save(ctx context.Context, e *engram.Engram) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, e)
	return nil
}
func (m *memEngramStore) Get(ctx context.Context, tenant core.TenantID, id engram.SessionID) (*engram.Engram, error) {
	return nil, engram.ErrNotFound
}
func (m *memEngramStore) List(ctx context.Context, q engram.Query) ([]*engram.Engram, error) {
	return nil, nil
}

type staticSecrets struct{}

func (staticSecrets) Resolve(ctx context.Context, ref string) (string, error) { return "secret", nil }

func newOrchestrator() (*Orchestrator, *memHistoryStore) {
	history := newMemHistoryStore()
	runner := &connector.Runner{
		Graph:   &fakeGraphApplier{},
		Engrams: &memEngramStore{},
		Bus:     events.NewInProcessBus(0),
		Secrets: staticSecrets{},
	}
	return &Orchestrator{
		Runner:   runner,
		History:  history,
		Registry: NewRegistry(),
	}, history
}

func TestRunScan_RecordsCompletedOnSuccess(t *testing.T) {
	tenant := core.NewTenantID()
	orch, history := newOrchestrator()
	conn := &fakeConnector{name: "aws-1", typ: core.ConnectorTypeAWS, result: &connector.SyncResult{Status: connector.StatusSuccess}}

	record, err := orch.RunScan(context.Background(), tenant, connector.RunSpec{Connector: conn, CredentialRef: "env:X"})
	if err != nil {
		t.Fatalf("RunScan: %v", err)
	}
	if record.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", record.Status)
	}
	stored := history.records[record.ID]
	if stored == nil || stored.Status != StatusCompleted {
		t.Fatalf("expected history row marked completed, got %+v", stored)
	}
}

func TestRunScan_RejectsSecondConcurrentRunForSamePair(t *testing.T) {
	tenant := core.NewTenantID()
	orch, _ := newOrchestrator()
	block := make(chan struct{})
	conn := &fakeConnector{name: "aws-1", typ: core.ConnectorTypeAWS, block: block, result: &connector.SyncResult{Status: connector.StatusSuccess}}

	done := make(chan struct{})
	go func() {
		_, _ = orch.RunScan(context.Background(), tenant, connector.RunSpec{Connector: conn, CredentialRef: "env:X"})
		close(done)
	}()

	// Give the first run a moment to acquire the registry slot.
	for i := 0; i < 100 && !orch.Registry.IsRunning(tenant, "aws-1"); i++ {
		time.Sleep(time.Millisecond)
	}

	_, err := orch.RunScan(context.Background(), tenant, connector.RunSpec{Connector: conn, CredentialRef: "env:X"})
	if err != core.ErrAlreadyRunning {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}

	close(block)
	<-done
}

func TestRunScan_RegistryCancelStopsInFlightRunAndRecordsCancelled(t *testing.T) {
	tenant := core.NewTenantID()
	orch, history := newOrchestrator()
	block := make(chan struct{})
	conn := &fakeConnector{name: "aws-1", typ: core.ConnectorTypeAWS, block: block, result: &connector.SyncResult{Status: connector.StatusSuccess}}

	resultCh := make(chan *Record, 1)
	go func() {
		record, _ := orch.RunScan(context.Background(), tenant, connector.RunSpec{Connector: conn, CredentialRef: "env:X"})
		resultCh <- record
	}()

	for i := 0; i < 100 && !orch.Registry.IsRunning(tenant, "aws-1"); i++ {
		time.Sleep(time.Millisecond)
	}

	if !orch.Registry.Cancel(tenant, "aws-1") {
		t.Fatal("expected Cancel to find the in-flight run")
	}

	record := <-resultCh
	if record.Status != StatusCancelled {
		t.Fatalf("expected cancelled, got %s", record.Status)
	}
	stored := history.records[record.ID]
	if stored == nil || stored.Status != StatusCancelled {
		t.Fatalf("expected history row marked cancelled, got %+v", stored)
	}
}
