package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/sentinel/discovery-engine/internal/core"
	"github.com/sentinel/discovery-engine/internal/engram"
	"github.com/sentinel/discovery-engine/internal/events"
	"github.com/sentinel/discovery-engine/internal/graph"
)

type fakeServiceReader struct {
	pages [][]graph.NodeView
	calls int
}

func (f *fakeServiceReader) ListNodes(ctx context.Context, tenant core.TenantID, label string, filter map[string]any, page graph.Page) ([]graph.NodeView, error) {
	if f.calls >= len(f.pages) {
		return nil, nil
	}
	out := f.pages[f.calls]
	f.calls++
	return out, nil
}

type fakeGraphWriter struct {
	nodes []core.Node
	edges []*core.Edge
}

func (f *fakeGraphWriter) ApplyBatch(ctx context.Context, tenant core.TenantID, nodes []core.Node, edges []*core.Edge, now time.Time) (*graph.BatchResult, error) {
	f.nodes = append(f.nodes, nodes...)
	f.edges = append(f.edges, edges...)
	return &graph.BatchResult{NodesCreated: len(nodes), CreatedEdges: edges}, nil
}

type fakeKEV struct{ hits map[string]bool }

func (f *fakeKEV) BatchLookup(ctx context.Context, cveIDs []string) (map[string]bool, error) {
	return f.hits, nil
}

type fakeEPSS struct{ scores map[string]Score }

func (f *fakeEPSS) BatchLookup(ctx context.Context, cveIDs []string) (map[string]Score, error) {
	return f.scores, nil
}

type fakeNVD struct{ records map[string]Record }

func (f *fakeNVD) BatchLookup(ctx context.Context, cveIDs []string) (map[string]Record, error) {
	return f.records, nil
}

func fixedNow() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

func TestSweep_BuildsVulnerabilityAndHasCVEEdgeForMatchedService(t *testing.T) {
	tenant := core.NewTenantID()
	services := &fakeServiceReader{pages: [][]graph.NodeView{
		{{ID: "svc-1", Label: "Service", Properties: map[string]any{"name": "nginx", "version": "1.18.0"}}},
	}}
	gw := &fakeGraphWriter{}
	cvss := 9.8
	epssVal := 0.7

	s := &Sweep{
		Services: services,
		Graph:    gw,
		Engrams:  newMemEngramStore(),
		Bus:      events.NewInProcessBus(0),
		CPEs:     NewTableResolver(map[string][]string{"nginx@1.18.0": {"CVE-2024-1234"}}),
		KEV:      &fakeKEV{hits: map[string]bool{"CVE-2024-1234": true}},
		EPSS:     &fakeEPSS{scores: map[string]Score{"CVE-2024-1234": {EPSS: epssVal}}},
		NVD:      &fakeNVD{records: map[string]Record{"CVE-2024-1234": {CVSSScore: &cvss}}},
		PageSize: 10,
		Now:      fixedNow,
	}

	if err := s.Run(context.Background(), tenant); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(gw.nodes) != 1 {
		t.Fatalf("expected 1 vulnerability node, got %d", len(gw.nodes))
	}
	vuln := gw.nodes[0].(*core.Vulnerability)
	if !vuln.InKEV {
		t.Fatalf("expected InKEV true")
	}
	if vuln.CVSSScore == nil || *vuln.CVSSScore != 9.8 {
		t.Fatalf("expected cvss 9.8, got %+v", vuln.CVSSScore)
	}
	if len(gw.edges) != 1 || gw.edges[0].Type != core.EdgeHasCVE || gw.edges[0].SourceID != "svc-1" {
		t.Fatalf("expected 1 HAS_CVE edge from svc-1, got %+v", gw.edges)
	}
	if gw.edges[0].Props.ExploitabilityScore == nil || *gw.edges[0].Props.ExploitabilityScore != epssVal {
		t.Fatalf("expected exploitability_score %v, got %+v", epssVal, gw.edges[0].Props.ExploitabilityScore)
	}
}

func TestSweep_RecordsDeadEndForServiceWithNoCPEMapping(t *testing.T) {
	tenant := core.NewTenantID()
	services := &fakeServiceReader{pages: [][]graph.NodeView{
		{{ID: "svc-1", Label: "Service", Properties: map[string]any{"name": "mystery", "version": "0.0.1"}}},
	}}
	gw := &fakeGraphWriter{}
	store := newMemEngramStore()

	s := &Sweep{
		Services: services,
		Graph:    gw,
		Engrams:  store,
		Bus:      events.NewInProcessBus(0),
		CPEs:     NewTableResolver(nil),
		KEV:      &fakeKEV{hits: map[string]bool{}},
		EPSS:     &fakeEPSS{scores: map[string]Score{}},
		NVD:      &fakeNVD{records: map[string]Record{}},
		PageSize: 10,
		Now:      fixedNow,
	}

	if err := s.Run(context.Background(), tenant); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(gw.nodes) != 0 {
		t.Fatalf("expected no vulnerability nodes written, got %d", len(gw.nodes))
	}
	if len(store.saved) != 1 || len(store.saved[0].DeadEnds) != 1 {
		t.Fatalf("expected one saved engram with 1 dead end, got %+v", store.saved)
	}
}

// memEngramStore is a minimal in-memory engram.Store for test use.
type memEngramStore struct {
	saved []*engram.Engram
}

func newMemEngramStore() *memEngramStore { return &memEngramStore{} }

func (m *memEngramStore) Save(ctx context.Context, e *engram.Engram) error {
	m.saved = append(m.saved, e)
	return nil
}

func (m *memEngramStore) Get(ctx context.Context, tenant core.TenantID, id engram.SessionID) (*engram.Engram, error) {
	for _, e := range m.saved {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, engram.ErrNotFound
}

func (m *memEngramStore) List(ctx context.Context, q engram.Query) ([]*engram.Engram, error) {
	return m.saved, nil
}
