package connector

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sentinel/discovery-engine/internal/core"
	"github.com/sentinel/discovery-engine/internal/engram"
	"github.com/sentinel/discovery-engine/internal/events"
	"github.com/sentinel/discovery-engine/internal/graph"
)

func TestMakeEdge_FillsIdentityFields(t *testing.T) {
	tenant := core.NewTenantID()
	now := time.Now()
	e := MakeEdge(tenant, "host-1", "subnet-1", core.EdgeBelongsToSubnet, core.EdgeProperties{}, now)
	if e.Tenant != tenant || e.SourceID != "host-1" || e.TargetID != "subnet-1" {
		t.Fatalf("unexpected edge identity: %+v", e)
	}
	if e.First != now || e.Last != now {
		t.Fatalf("expected first/last seen stamped to now, got %+v", e)
	}
}

func TestSyncResult_NodesFlattensAllKinds(t *testing.T) {
	tenant := core.NewTenantID()
	now := time.Now()
	r := &SyncResult{
		Hosts:    []*core.Host{core.NewHost(tenant, "10.0.0.1", "", now)},
		Services: []*core.Service{core.NewService(tenant, "host-1", "ssh", 22, core.ProtocolTCP, now)},
	}
	nodes := r.Nodes()
	if len(nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(nodes))
	}
	if nodes[0].Label() != "Host" || nodes[1].Label() != "Service" {
		t.Fatalf("unexpected node order: %v, %v", nodes[0].Label(), nodes[1].Label())
	}
}

func TestRunBounded_CollectsFailuresWithoutAbortingOthers(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	var processed atomic.Int32
	deadEnds := RunBounded(context.Background(), 2, items, func(ctx context.Context, item int) error {
		processed.Add(1)
		if item%2 == 0 {
			return errors.New("even items fail")
		}
		return nil
	})
	if processed.Load() != int32(len(items)) {
		t.Fatalf("expected all items processed, got %d", processed.Load())
	}
	if len(deadEnds) != 2 {
		t.Fatalf("expected 2 dead ends (items 2 and 4), got %d", len(deadEnds))
	}
}

func TestRetry_StopsImmediatelyOnNonRetryableError(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), RetryPolicy{MaxAttempts: 5, BaseDelay: time.Millisecond}, func(error) bool { return false }, func() error {
		attempts++
		return errors.New("terminal")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Fatalf("expected exactly 1 attempt for a non-retryable error, got %d", attempts)
	}
}

func TestRetry_RetriesTransientUpToMaxAttempts(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}, func(error) bool { return true }, func() error {
		attempts++
		return errors.New("transient")
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if attempts != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", attempts)
	}
}

type fakeConnector struct {
	name       string
	connType   core.ConnectorType
	discover   func(ctx context.Context, tenant core.TenantID, cfg Config) (*SyncResult, error)
	healthErr  error
}

func (f *fakeConnector) Name() string                    { return f.name }
func (f *fakeConnector) ConnectorType() core.ConnectorType { return f.connType }
func (f *fakeConnector) Discover(ctx context.Context, tenant core.TenantID, cfg Config) (*SyncResult, error) {
	return f.discover(ctx, tenant, cfg)
}
func (f *fakeConnector) HealthCheck(ctx context.Context) error { return f.healthErr }

type fakeGraphApplier struct {
	applied int
}

func (f *fakeGraphApplier) ApplyBatch(ctx context.Context, tenant core.TenantID, nodes []core.Node, edges []*core.Edge, now time.Time) (*graph.BatchResult, error) {
	if len(nodes) == 0 && len(edges) == 0 {
		return nil, graph.ErrEmptyBatch
	}
	f.applied++
	return &graph.BatchResult{NodesCreated: len(nodes)}, nil
}

type fakeResolver struct{ err error }

func (f fakeResolver) Resolve(ctx context.Context, ref string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "secret-value", nil
}

func TestRunner_HappyPathClosesSessionSuccess(t *testing.T) {
	dir := t.TempDir()
	store, err := engram.NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	tenant := core.NewTenantID()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	conn := &fakeConnector{
		name:     "test-aws",
		connType: core.ConnectorTypeAWS,
		discover: func(ctx context.Context, tenant core.TenantID, cfg Config) (*SyncResult, error) {
			return &SyncResult{
				Hosts: []*core.Host{core.NewHost(tenant, "10.0.0.1", "", now)},
			}, nil
		},
	}
	g := &fakeGraphApplier{}
	runner := &Runner{
		Graph:   g,
		Engrams: store,
		Bus:     events.NewInProcessBus(8),
		Secrets: fakeResolver{},
		Now:     func() time.Time { return now },
	}

	result, err := runner.Run(context.Background(), tenant, RunSpec{Connector: conn, CredentialRef: "env:FAKE"})
	if err != nil {
		t.Fatalf("Run returned framework error: %v", err)
	}
	if result.Status != StatusSuccess {
		t.Fatalf("expected success, got %v (err=%v)", result.Status, result.Err)
	}
	if g.applied != 1 {
		t.Fatalf("expected ApplyBatch to be called once, got %d", g.applied)
	}
}

func TestRunner_CredentialFailureClosesSessionFailed(t *testing.T) {
	dir := t.TempDir()
	store, err := engram.NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	conn := &fakeConnector{name: "test-aws", connType: core.ConnectorTypeAWS}
	runner := &Runner{
		Graph:   &fakeGraphApplier{},
		Engrams: store,
		Bus:     events.NewInProcessBus(8),
		Secrets: fakeResolver{err: errors.New("no such secret")},
	}

	result, err := runner.Run(context.Background(), core.NewTenantID(), RunSpec{Connector: conn, CredentialRef: "env:MISSING"})
	if err != nil {
		t.Fatalf("Run returned framework error: %v", err)
	}
	if result.Status != StatusFailed {
		t.Fatalf("expected failed status, got %v", result.Status)
	}
	if !errors.Is(result.Err, core.ErrCredential) {
		t.Fatalf("expected ErrCredential, got %v", result.Err)
	}
}
