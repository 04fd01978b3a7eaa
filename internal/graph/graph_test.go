package graph

import (
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"

	"github.com/sentinel/discovery-engine/internal/core"
)

func TestRequireTenant_RejectsDirectTenantFilter(t *testing.T) {
	if err := requireTenant(map[string]any{"tenant_id": "x"}); !errors.Is(err, core.ErrTenantMismatch) {
		t.Fatalf("expected ErrTenantMismatch, got %v", err)
	}
	if err := requireTenant(map[string]any{"ip": "10.0.0.1"}); err != nil {
		t.Fatalf("unexpected error for benign filter: %v", err)
	}
}

func TestDiffUpsert_CreatedWhenFirstSeenMatchesNow(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	before := map[string]any{"first_seen": now.Format(time.RFC3339Nano), "last_seen": now.Format(time.RFC3339Nano)}
	after := before
	ur := diffUpsert(before, after, now)
	if !ur.Created {
		t.Fatal("expected Created=true")
	}
	if len(ur.ChangedFields) != 0 {
		t.Fatalf("created node should report no changed fields, got %v", ur.ChangedFields)
	}
}

func TestDiffUpsert_UnchangedAttributesOnlyTouchesLastSeen(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)
	before := map[string]any{
		"ip": "10.0.0.1", "criticality": "medium",
		"first_seen": t0.Format(time.RFC3339Nano), "last_seen": t0.Format(time.RFC3339Nano),
	}
	after := map[string]any{
		"ip": "10.0.0.1", "criticality": "medium",
		"first_seen": t0.Format(time.RFC3339Nano), "last_seen": t1.Format(time.RFC3339Nano),
	}
	ur := diffUpsert(before, after, t1)
	if ur.Created {
		t.Fatal("re-confirmation must not report Created")
	}
	if len(ur.ChangedFields) != 1 || ur.ChangedFields[0] != "last_seen" {
		t.Fatalf("expected only last_seen changed, got %v", ur.ChangedFields)
	}
}

func TestDiffUpsert_ChangedAttributeIsReported(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)
	before := map[string]any{
		"criticality": "medium",
		"first_seen":  t0.Format(time.RFC3339Nano), "last_seen": t0.Format(time.RFC3339Nano),
	}
	after := map[string]any{
		"criticality": "high",
		"first_seen":  t0.Format(time.RFC3339Nano), "last_seen": t1.Format(time.RFC3339Nano),
	}
	ur := diffUpsert(before, after, t1)
	found := map[string]bool{}
	for _, f := range ur.ChangedFields {
		found[f] = true
	}
	if !found["criticality"] || !found["last_seen"] {
		t.Fatalf("expected criticality and last_seen changed, got %v", ur.ChangedFields)
	}
}

func TestClassifyRetryable_TransientNeo4jErrorRetries(t *testing.T) {
	err := &db.Neo4jError{Code: "Neo.TransientError.Transaction.LockClientStopped", Msg: "deadlock"}
	if !classifyRetryable(err) {
		t.Fatal("expected transient Neo4j error to be retryable")
	}
}

func TestClassifyRetryable_ClientErrorDoesNotRetry(t *testing.T) {
	err := &db.Neo4jError{Code: "Neo.ClientError.Schema.ConstraintValidationFailed", Msg: "bad data"}
	if classifyRetryable(err) {
		t.Fatal("expected client error to not be retryable")
	}
}

func TestClassifyRetryable_UnclassifiedNetworkErrorRetries(t *testing.T) {
	if !classifyRetryable(errors.New("connection reset by peer")) {
		t.Fatal("expected unclassified network error to be retryable")
	}
}

func TestNodeBatchOrdering_StableByLabelThenNaturalKey(t *testing.T) {
	now := time.Now()
	tenant := core.NewTenantID()
	nodes := []core.Node{
		core.NewService(tenant, "host-b", "ssh", 22, core.ProtocolTCP, now),
		core.NewHost(tenant, "10.0.0.2", "", now),
		core.NewHost(tenant, "10.0.0.1", "", now),
	}
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Label() != nodes[j].Label() {
			return nodes[i].Label() < nodes[j].Label()
		}
		return nodes[i].NaturalKey() < nodes[j].NaturalKey()
	})
	if nodes[0].Label() != "Host" || nodes[1].Label() != "Host" || nodes[2].Label() != "Service" {
		t.Fatalf("expected Host nodes before Service, got order %v, %v, %v", nodes[0].Label(), nodes[1].Label(), nodes[2].Label())
	}
}

func TestSchemaStatements_CoverEveryLabel(t *testing.T) {
	stmts := schemaStatements()
	for _, label := range nodeLabels {
		want := "FOR (n:" + label + ") REQUIRE"
		found := false
		for _, s := range stmts {
			if strings.Contains(s, want) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("no uniqueness constraint statement for label %s", label)
		}
	}
}
