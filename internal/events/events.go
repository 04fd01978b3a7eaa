// Package events implements the domain event bus the rest of the
// platform consumes (spec.md §6 "Event bus"). Topics are partitioned by
// tenant; within a (tenant, topic) pair, delivery order matches publish
// order, but there is no global ordering guarantee across tenants or
// topics (spec.md §5).
package events

import "time"

// Kind names an event type produced by the core.
type Kind string

const (
	KindNodeDiscovered     Kind = "NodeDiscovered"
	KindNodeUpdated        Kind = "NodeUpdated"
	KindNodeStale          Kind = "NodeStale"
	KindEdgeDiscovered     Kind = "EdgeDiscovered"
	KindVulnerabilityFound Kind = "VulnerabilityFound"
	KindScanStarted        Kind = "ScanStarted"
	KindScanCompleted      Kind = "ScanCompleted"
	KindEngramRecorded     Kind = "EngramRecorded"
	KindSessionDropped     Kind = "SessionDropped"
)

// Event is the envelope every published message carries. Payload holds
// the kind-specific fields listed in spec.md §6; it is a plain map rather
// than one struct per kind so the bus itself stays decoupled from the
// domain types in internal/core.
type Event struct {
	Kind      Kind
	TenantID  string
	Topic     string
	Payload   map[string]any
	Timestamp time.Time
}

// NodeDiscovered builds the payload for a newly created node.
func NodeDiscovered(tenant, nodeID, nodeType, label string) Event {
	return Event{
		Kind:     KindNodeDiscovered,
		TenantID: tenant,
		Topic:    "graph",
		Payload: map[string]any{
			"node_id":   nodeID,
			"node_type": nodeType,
			"label":     label,
		},
	}
}

// NodeUpdated builds the payload for a node whose non-identity attributes
// changed on a later discovery run.
func NodeUpdated(tenant, nodeID string, changedFields []string) Event {
	return Event{
		Kind:     KindNodeUpdated,
		TenantID: tenant,
		Topic:    "graph",
		Payload: map[string]any{
			"node_id":        nodeID,
			"changed_fields": changedFields,
		},
	}
}

// NodeStale builds the payload for a node the staleness sweep just marked.
func NodeStale(tenant, nodeID string, lastSeen time.Time) Event {
	return Event{
		Kind:     KindNodeStale,
		TenantID: tenant,
		Topic:    "graph",
		Payload: map[string]any{
			"node_id":   nodeID,
			"last_seen": lastSeen,
		},
	}
}

// EdgeDiscovered builds the payload for a newly created edge.
func EdgeDiscovered(tenant, sourceID, targetID, edgeType string) Event {
	return Event{
		Kind:     KindEdgeDiscovered,
		TenantID: tenant,
		Topic:    "graph",
		Payload: map[string]any{
			"source_id": sourceID,
			"target_id": targetID,
			"edge_type": edgeType,
		},
	}
}

// VulnerabilityFound builds the payload for a net-new Service/CVE pairing.
func VulnerabilityFound(tenant, nodeID, cveID string, cvssScore *float64, exploitable bool) Event {
	payload := map[string]any{
		"node_id":     nodeID,
		"cve_id":      cveID,
		"exploitable": exploitable,
	}
	if cvssScore != nil {
		payload["cvss_score"] = *cvssScore
	}
	return Event{Kind: KindVulnerabilityFound, TenantID: tenant, Topic: "enrichment", Payload: payload}
}

// ScanStarted builds the payload for the start of a connector or
// enrichment run.
func ScanStarted(tenant, scanID, scanType, target string) Event {
	return Event{
		Kind:     KindScanStarted,
		TenantID: tenant,
		Topic:    "scan",
		Payload: map[string]any{
			"scan_id":   scanID,
			"scan_type": scanType,
			"target":    target,
		},
	}
}

// ScanCompleted builds the payload for the end of a connector or
// enrichment run.
func ScanCompleted(tenant, scanID string, nodesFound, nodesUpdated, nodesStale int, durationMS int64) Event {
	return Event{
		Kind:     KindScanCompleted,
		TenantID: tenant,
		Topic:    "scan",
		Payload: map[string]any{
			"scan_id":       scanID,
			"nodes_found":   nodesFound,
			"nodes_updated": nodesUpdated,
			"nodes_stale":   nodesStale,
			"duration_ms":   durationMS,
		},
	}
}

// EngramRecorded builds the payload announcing a closed engram session.
func EngramRecorded(tenant, sessionID, agentType, intent string, actionCount int) Event {
	return Event{
		Kind:     KindEngramRecorded,
		TenantID: tenant,
		Topic:    "engram",
		Payload: map[string]any{
			"session_id":   sessionID,
			"agent_type":   agentType,
			"intent":       intent,
			"action_count": actionCount,
		},
	}
}

// SessionDropped builds the payload for an engram session lost to a
// buffer overflow (spec.md §4.2 "Failure").
func SessionDropped(tenant, sessionID, reason string) Event {
	return Event{
		Kind:     KindSessionDropped,
		TenantID: tenant,
		Topic:    "engram",
		Payload: map[string]any{
			"session_id": sessionID,
			"reason":     reason,
		},
	}
}
