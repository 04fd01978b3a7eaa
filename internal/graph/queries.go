package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/sentinel/discovery-engine/internal/core"
	"github.com/sentinel/discovery-engine/internal/events"
)

// NodeView is the adapter's read-side projection of a node: label plus
// whatever properties the backend returned, independent of internal/core's
// concrete node structs so callers that only read (CLI, API handlers) don't
// need a full domain rehydration step.
type NodeView struct {
	ID         string
	Label      string
	Properties map[string]any
	FirstSeen  time.Time
	LastSeen   time.Time
}

// Direction constrains a Neighbors traversal.
type Direction string

const (
	DirectionOutgoing Direction = "outgoing"
	DirectionIncoming Direction = "incoming"
	DirectionBoth     Direction = "both"
)

// Page bounds a list query.
type Page struct {
	Limit  int
	Offset int
}

func (p Page) normalized() Page {
	if p.Limit <= 0 || p.Limit > 1000 {
		p.Limit = 100
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// ListNodes returns a page of label nodes for tenant matching filter.
// filter is AND-composed with tenant_id at this layer (P1); it must not
// itself key on "tenant_id", enforced by requireTenant.
func (s *Store) ListNodes(ctx context.Context, tenant core.TenantID, label string, filter map[string]any, page Page) ([]NodeView, error) {
	if err := requireTenant(filter); err != nil {
		return nil, err
	}
	page = page.normalized()

	where := "n.tenant_id = $tenant_id"
	params := map[string]any{
		"tenant_id": tenant.String(),
		"limit":     int64(page.Limit),
		"offset":    int64(page.Offset),
	}
	for k, v := range filter {
		key := "f_" + k
		where += fmt.Sprintf(" AND n.%s = $%s", k, key)
		params[key] = v
	}

	cypher := fmt.Sprintf(`
		MATCH (n:%s)
		WHERE %s
		RETURN n.id AS id, properties(n) AS props
		ORDER BY n.id
		SKIP $offset LIMIT $limit
	`, label, where)

	res, err := s.runRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		records, err := result.Collect(ctx)
		if err != nil {
			return nil, err
		}
		return recordsToViews(records, label)
	})
	if err != nil {
		return nil, err
	}
	return res.([]NodeView), nil
}

// Neighbors returns the nodes adjacent to nodeID, optionally filtered by
// edge type and direction.
func (s *Store) Neighbors(ctx context.Context, tenant core.TenantID, nodeID string, direction Direction, edgeTypes []core.EdgeType) ([]NodeView, error) {
	pattern := "-[r]-"
	switch direction {
	case DirectionOutgoing:
		pattern = "-[r]->"
	case DirectionIncoming:
		pattern = "<-[r]-"
	}
	typeFilter := ""
	if len(edgeTypes) > 0 {
		typeFilter = " AND type(r) IN $edge_types"
	}

	cypher := fmt.Sprintf(`
		MATCH (n {tenant_id: $tenant_id, id: $id})%s(m {tenant_id: $tenant_id})
		WHERE true%s
		RETURN DISTINCT m.id AS id, labels(m) AS labels, properties(m) AS props
	`, pattern, typeFilter)

	params := map[string]any{"tenant_id": tenant.String(), "id": nodeID}
	if len(edgeTypes) > 0 {
		names := make([]string, len(edgeTypes))
		for i, t := range edgeTypes {
			names[i] = string(t)
		}
		params["edge_types"] = names
	}

	res, err := s.runRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		records, err := result.Collect(ctx)
		if err != nil {
			return nil, err
		}
		var views []NodeView
		for _, r := range records {
			id, _ := r.Get("id")
			labelsRaw, _ := r.Get("labels")
			propsRaw, _ := r.Get("props")
			label := ""
			if ls, ok := labelsRaw.([]any); ok && len(ls) > 0 {
				if s, ok := ls[0].(string); ok {
					label = s
				}
			}
			props, _ := propsRaw.(map[string]any)
			views = append(views, viewFromProps(id.(string), label, props))
		}
		return views, nil
	})
	if err != nil {
		return nil, err
	}
	return res.([]NodeView), nil
}

// Search runs a full-text query against a pre-declared index (EnsureSchema's
// ft_<Label> indexes) and returns matches scoped to tenant.
func (s *Store) Search(ctx context.Context, tenant core.TenantID, index, q string, limit int) ([]NodeView, error) {
	if limit <= 0 || limit > 200 {
		limit = 25
	}
	cypher := `
		CALL db.index.fulltext.queryNodes($index, $q) YIELD node, score
		WHERE node.tenant_id = $tenant_id
		RETURN node.id AS id, labels(node) AS labels, properties(node) AS props
		ORDER BY score DESC
		LIMIT $limit
	`
	res, err := s.runRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, map[string]any{
			"index":     "ft_" + index,
			"q":         q,
			"tenant_id": tenant.String(),
			"limit":     int64(limit),
		})
		if err != nil {
			return nil, err
		}
		records, err := result.Collect(ctx)
		if err != nil {
			return nil, err
		}
		var views []NodeView
		for _, r := range records {
			id, _ := r.Get("id")
			labelsRaw, _ := r.Get("labels")
			propsRaw, _ := r.Get("props")
			label := ""
			if ls, ok := labelsRaw.([]any); ok && len(ls) > 0 {
				if s, ok := ls[0].(string); ok {
					label = s
				}
			}
			props, _ := propsRaw.(map[string]any)
			views = append(views, viewFromProps(id.(string), label, props))
		}
		return views, nil
	})
	if err != nil {
		return nil, err
	}
	return res.([]NodeView), nil
}

// Stats returns a count per label for tenant. Counts never sum across
// tenants (property, spec.md §"Testable Properties" S5).
func (s *Store) Stats(ctx context.Context, tenant core.TenantID) (map[string]int64, error) {
	res, err := s.runRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		counts := make(map[string]int64, len(nodeLabels))
		for _, label := range nodeLabels {
			cypher := fmt.Sprintf("MATCH (n:%s {tenant_id: $tenant_id}) RETURN count(n) AS c", label)
			result, err := tx.Run(ctx, cypher, map[string]any{"tenant_id": tenant.String()})
			if err != nil {
				return nil, err
			}
			record, err := result.Single(ctx)
			if err != nil {
				return nil, err
			}
			c, _ := record.Get("c")
			if n, ok := c.(int64); ok {
				counts[label] = n
			}
		}
		return counts, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(map[string]int64), nil
}

// SweepStale marks every label node for tenant whose last_seen is older
// than olderThan, stamping now as the sweep time. Marking is idempotent:
// sweeping an already-stale node changes nothing but re-confirms it.
// Emits NodeStale for every node newly marked.
func (s *Store) SweepStale(ctx context.Context, tenant core.TenantID, label string, olderThan, now time.Time) (int, error) {
	cypher := fmt.Sprintf(`
		MATCH (n:%s {tenant_id: $tenant_id})
		WHERE n.last_seen < $older_than AND (n.stale IS NULL OR n.stale = false)
		SET n.stale = true, n.stale_marked_at = $now
		RETURN n.id AS id, n.last_seen AS last_seen
	`, label)

	res, err := s.runWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, map[string]any{
			"tenant_id":  tenant.String(),
			"older_than": olderThan.Format(time.RFC3339Nano),
			"now":        now.Format(time.RFC3339Nano),
		})
		if err != nil {
			return nil, err
		}
		return result.Collect(ctx)
	})
	if err != nil {
		return 0, err
	}
	records := res.([]*neo4j.Record)
	for _, r := range records {
		id, _ := r.Get("id")
		lastSeenRaw, _ := r.Get("last_seen")
		lastSeen, _ := time.Parse(time.RFC3339Nano, fmt.Sprint(lastSeenRaw))
		s.bus.Publish(ctx, events.NodeStale(tenant.String(), fmt.Sprint(id), lastSeen))
	}
	return len(records), nil
}

func recordsToViews(records []*neo4j.Record, label string) ([]NodeView, error) {
	views := make([]NodeView, 0, len(records))
	for _, r := range records {
		id, _ := r.Get("id")
		propsRaw, _ := r.Get("props")
		props, _ := propsRaw.(map[string]any)
		views = append(views, viewFromProps(id.(string), label, props))
	}
	return views, nil
}

func viewFromProps(id, label string, props map[string]any) NodeView {
	v := NodeView{ID: id, Label: label, Properties: props}
	if fs, ok := props["first_seen"].(string); ok {
		v.FirstSeen, _ = time.Parse(time.RFC3339Nano, fs)
	}
	if ls, ok := props["last_seen"].(string); ok {
		v.LastSeen, _ = time.Parse(time.RFC3339Nano, ls)
	}
	return v
}
