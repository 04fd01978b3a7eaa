package graph

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/sentinel/discovery-engine/internal/core"
	"github.com/sentinel/discovery-engine/internal/events"
)

// UpsertResult reports what a single node or edge upsert actually did, so
// callers can tell a fresh discovery from a no-op re-confirmation.
type UpsertResult struct {
	Created       bool
	ChangedFields []string
}

// EndpointMissing records an edge that could not be inserted because one or
// both of its endpoints did not exist in the same tenant at apply time
// (property P3).
type EndpointMissing struct {
	EdgeType core.EdgeType
	SourceID string
	TargetID string
}

// BatchResult summarizes one ApplyBatch call.
type BatchResult struct {
	NodesCreated    int
	NodesUpdated    int
	EdgesCreated    int
	EdgesUpdated    int
	EndpointMissing []EndpointMissing
	// CreatedEdges holds the subset of the submitted edges that were
	// actually new (ur.Created), so callers can tell a net-new pairing
	// from a re-confirmation of one already in the graph (property R2).
	CreatedEdges []*core.Edge
}

// UpsertNode applies a single node upsert outside of a larger batch
// (invariant I2/I6, property P2). It is its own atomic unit.
func (s *Store) UpsertNode(ctx context.Context, n core.Node, now time.Time) (UpsertResult, error) {
	res, err := s.runWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return upsertNodeTx(ctx, tx, n, now)
	})
	if err != nil {
		return UpsertResult{}, err
	}
	ur := res.(UpsertResult)
	s.emitNodeEvent(ctx, n, ur)
	return ur, nil
}

// UpsertEdge applies a single edge upsert outside of a larger batch.
// Returns core.ErrEndpointMissing if either endpoint does not exist.
func (s *Store) UpsertEdge(ctx context.Context, e *core.Edge, now time.Time) (UpsertResult, error) {
	res, err := s.runWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		ur, missing, err := upsertEdgeTx(ctx, tx, e, now)
		if err != nil {
			return nil, err
		}
		if missing {
			return nil, fmt.Errorf("edge %s -> %s: %w", e.SourceID, e.TargetID, core.ErrEndpointMissing)
		}
		return ur, nil
	})
	if err != nil {
		return UpsertResult{}, err
	}
	ur := res.(UpsertResult)
	if ur.Created {
		s.bus.Publish(ctx, events.EdgeDiscovered(e.Tenant.String(), e.SourceID, e.TargetID, string(e.Type)))
	}
	return ur, nil
}

// ApplyBatch applies nodes[] then edges[] inside a single transaction
// (spec.md §4.3 "Concurrency"). Nodes are applied in a stable order sorted
// by (label, natural_key) so two overlapping batches converge on the same
// lock-acquisition order. Endpoint existence is re-checked per edge inside
// the transaction; a missing endpoint drops that edge without failing the
// rest of the batch.
func (s *Store) ApplyBatch(ctx context.Context, tenant core.TenantID, nodes []core.Node, edges []*core.Edge, now time.Time) (*BatchResult, error) {
	if len(nodes) == 0 && len(edges) == 0 {
		return nil, ErrEmptyBatch
	}

	ordered := append([]core.Node(nil), nodes...)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Label() != ordered[j].Label() {
			return ordered[i].Label() < ordered[j].Label()
		}
		return ordered[i].NaturalKey() < ordered[j].NaturalKey()
	})

	res, err := s.runWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result := &BatchResult{}
		var nodeOutcomes []nodeOutcome
		var edgeOutcomes []edgeOutcome

		for _, n := range ordered {
			if n.TenantID() != tenant {
				return nil, core.ErrTenantMismatch
			}
			ur, err := upsertNodeTx(ctx, tx, n, now)
			if err != nil {
				return nil, fmt.Errorf("upserting node %s: %w", n.ID(), err)
			}
			if ur.Created {
				result.NodesCreated++
			} else {
				result.NodesUpdated++
			}
			nodeOutcomes = append(nodeOutcomes, nodeOutcome{n, ur})
		}

		for _, e := range edges {
			if e.Tenant != tenant {
				return nil, core.ErrTenantMismatch
			}
			ur, missing, err := upsertEdgeTx(ctx, tx, e, now)
			if err != nil {
				return nil, fmt.Errorf("upserting edge %s->%s: %w", e.SourceID, e.TargetID, err)
			}
			if missing {
				result.EndpointMissing = append(result.EndpointMissing, EndpointMissing{
					EdgeType: e.Type, SourceID: e.SourceID, TargetID: e.TargetID,
				})
				continue
			}
			if ur.Created {
				result.EdgesCreated++
			} else {
				result.EdgesUpdated++
			}
			edgeOutcomes = append(edgeOutcomes, edgeOutcome{e, ur})
		}

		return &batchTxResult{result: result, nodes: nodeOutcomes, edges: edgeOutcomes}, nil
	})
	if err != nil {
		return nil, err
	}

	committed := res.(*batchTxResult)
	for _, no := range committed.nodes {
		s.emitNodeEvent(ctx, no.node, no.ur)
	}
	for _, eo := range committed.edges {
		if eo.ur.Created {
			s.bus.Publish(ctx, events.EdgeDiscovered(tenant.String(), eo.edge.SourceID, eo.edge.TargetID, string(eo.edge.Type)))
			committed.result.CreatedEdges = append(committed.result.CreatedEdges, eo.edge)
		}
	}
	return committed.result, nil
}

type nodeOutcome struct {
	node core.Node
	ur   UpsertResult
}

type edgeOutcome struct {
	edge *core.Edge
	ur   UpsertResult
}

type batchTxResult struct {
	result *BatchResult
	nodes  []nodeOutcome
	edges  []edgeOutcome
}

func (s *Store) emitNodeEvent(ctx context.Context, n core.Node, ur UpsertResult) {
	tenant := n.TenantID().String()
	if ur.Created {
		s.bus.Publish(ctx, events.NodeDiscovered(tenant, n.ID(), n.Label(), n.Label()))
		return
	}
	if len(ur.ChangedFields) > 0 {
		s.bus.Publish(ctx, events.NodeUpdated(tenant, n.ID(), ur.ChangedFields))
	}
}

func upsertNodeTx(ctx context.Context, tx neo4j.ManagedTransaction, n core.Node, now time.Time) (UpsertResult, error) {
	cypher := fmt.Sprintf(`
		MERGE (x:%s {tenant_id: $tenant_id, id: $id})
		ON CREATE SET x.first_seen = $now, x.last_seen = $now
		WITH x, properties(x) AS before
		SET x += $props
		SET x.last_seen = CASE WHEN x.last_seen < $now THEN $now ELSE x.last_seen END
		RETURN before, properties(x) AS after
	`, n.Label())

	params := map[string]any{
		"tenant_id": n.TenantID().String(),
		"id":        n.ID(),
		"now":       now.Format(time.RFC3339Nano),
		"props":     n.Properties(),
	}

	result, err := tx.Run(ctx, cypher, params)
	if err != nil {
		return UpsertResult{}, err
	}
	record, err := result.Single(ctx)
	if err != nil {
		return UpsertResult{}, err
	}
	beforeRaw, _ := record.Get("before")
	afterRaw, _ := record.Get("after")
	before, _ := beforeRaw.(map[string]any)
	after, _ := afterRaw.(map[string]any)

	return diffUpsert(before, after, now), nil
}

// upsertEdgeTx applies an edge upsert and reports whether either endpoint
// was missing (property P3). When missing is true, no relationship is
// created and the caller is responsible for recording the dead-end.
func upsertEdgeTx(ctx context.Context, tx neo4j.ManagedTransaction, e *core.Edge, now time.Time) (ur UpsertResult, missing bool, err error) {
	cypher := fmt.Sprintf(`
		MATCH (a {tenant_id: $tenant_id, id: $source_id})
		MATCH (b {tenant_id: $tenant_id, id: $target_id})
		MERGE (a)-[r:%s {tenant_id: $tenant_id}]->(b)
		ON CREATE SET r.first_seen = $now, r.last_seen = $now
		WITH r, properties(r) AS before
		SET r += $props
		SET r.last_seen = CASE WHEN r.last_seen < $now THEN $now ELSE r.last_seen END
		RETURN before, properties(r) AS after
	`, e.Type)

	result, runErr := tx.Run(ctx, cypher, map[string]any{
		"tenant_id": e.Tenant.String(),
		"source_id": e.SourceID,
		"target_id": e.TargetID,
		"now":       now.Format(time.RFC3339Nano),
		"props":     edgePropsToMap(e.Props),
	})
	if runErr != nil {
		return UpsertResult{}, false, runErr
	}

	records, collectErr := result.Collect(ctx)
	if collectErr != nil {
		return UpsertResult{}, false, collectErr
	}
	if len(records) == 0 {
		return UpsertResult{}, true, nil
	}

	beforeRaw, _ := records[0].Get("before")
	afterRaw, _ := records[0].Get("after")
	before, _ := beforeRaw.(map[string]any)
	after, _ := afterRaw.(map[string]any)
	return diffUpsert(before, after, now), false, nil
}

func diffUpsert(before, after map[string]any, now time.Time) UpsertResult {
	if fs, ok := before["first_seen"]; ok {
		if s, ok := fs.(string); ok && s == now.Format(time.RFC3339Nano) {
			return UpsertResult{Created: true}
		}
	}
	var changed []string
	for k, av := range after {
		if k == "first_seen" {
			continue
		}
		if k == "last_seen" {
			continue
		}
		if bv, ok := before[k]; !ok || !equalValue(bv, av) {
			changed = append(changed, k)
		}
	}
	if before["last_seen"] != after["last_seen"] {
		changed = append(changed, "last_seen")
	}
	return UpsertResult{Created: false, ChangedFields: changed}
}

func equalValue(a, b any) bool {
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func edgePropsToMap(p core.EdgeProperties) map[string]any {
	m := map[string]any{}
	if p.Protocol != nil {
		m["protocol"] = string(*p.Protocol)
	}
	if p.Port != nil {
		m["port"] = int64(*p.Port)
	}
	if p.Encrypted != nil {
		m["encrypted"] = *p.Encrypted
	}
	if p.Permissions != nil {
		m["permissions"] = p.Permissions
	}
	if p.ExploitabilityScore != nil {
		m["exploitability_score"] = *p.ExploitabilityScore
	}
	for k, v := range p.Extra {
		m[k] = v
	}
	return m
}
