// Package connector declares the uniform contract every external source
// integration implements (spec.md §4.4, component C4) and the Runner that
// drives it through the seven-step execution contract.
package connector

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sentinel/discovery-engine/internal/core"
)

// Type names the class of external source a Connector integrates with.
type Type = core.ConnectorType

// RateLimit configures a connector's own client-side limiter.
type RateLimit struct {
	RPS   float64
	Burst int
}

// RetryPolicy configures bounded exponential backoff for transient failures.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	CapDelay    time.Duration
}

// Config holds the options the framework itself recognizes for every
// connector, independent of any provider-specific configuration a concrete
// connector also reads (spec.md §4.4 "Configuration options").
type Config struct {
	Regions        []string
	MaxParallelism int
	RateLimit      RateLimit
	Retry          RetryPolicy
	PageSize       int
	Include        []string
	Exclude        []string
}

// Parallelism returns the configured bound on concurrent per-item work
// (defaulting to 4), for use with RunBounded.
func (c Config) Parallelism() int {
	if c.MaxParallelism <= 0 {
		return 4
	}
	return c.MaxParallelism
}

// SyncResult is the pure, uniform product of one discovery run. Every
// concrete connector returns exactly this shape; there is no per-connector
// variation in how results are represented (spec.md §4.4's "tagged
// variants, not a bag of dictionaries" design note).
type SyncResult struct {
	Hosts           []*core.Host
	Services        []*core.Service
	Ports           []*core.Port
	Users           []*core.User
	Groups          []*core.Group
	Roles           []*core.Role
	Policies        []*core.Policy
	Subnets         []*core.Subnet
	Vpcs            []*core.Vpc
	Certificates    []*core.Certificate
	Applications    []*core.Application
	McpServers      []*core.McpServer
	Findings        []*core.Finding
	ConfigSnapshots []*core.ConfigSnapshot
	Edges           []*core.Edge
	DeadEnds        []DeadEnd
	Status          Status
}

// DeadEnd is a sub-failure recorded during discovery that did not abort the
// run: an unreachable region, a single resource that failed to enumerate,
// an edge whose endpoint could not be resolved.
type DeadEnd struct {
	Description string
	Evidence    string
}

// Status is the terminating condition of a discovery run.
type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// Nodes flattens every typed slice in r into the core.Node interface view,
// one kind after another (graph.ApplyBatch sorts the batch by label and
// natural key itself): connectors never need to reimplement this traversal.
func (r *SyncResult) Nodes() []core.Node {
	var out []core.Node
	for _, h := range r.Hosts {
		out = append(out, h)
	}
	for _, s := range r.Services {
		out = append(out, s)
	}
	for _, p := range r.Ports {
		out = append(out, p)
	}
	for _, u := range r.Users {
		out = append(out, u)
	}
	for _, g := range r.Groups {
		out = append(out, g)
	}
	for _, rl := range r.Roles {
		out = append(out, rl)
	}
	for _, p := range r.Policies {
		out = append(out, p)
	}
	for _, s := range r.Subnets {
		out = append(out, s)
	}
	for _, v := range r.Vpcs {
		out = append(out, v)
	}
	for _, c := range r.Certificates {
		out = append(out, c)
	}
	for _, a := range r.Applications {
		out = append(out, a)
	}
	for _, m := range r.McpServers {
		out = append(out, m)
	}
	for _, f := range r.Findings {
		out = append(out, f)
	}
	for _, c := range r.ConfigSnapshots {
		out = append(out, c)
	}
	return out
}

// DeriveConfigSnapshots populates r.ConfigSnapshots with one opaque
// point-in-time capture per Host and Service r already carries, plus a
// HAS_CONFIG_SNAPSHOT edge attaching each snapshot to the resource that
// produced it (spec.md §3: "this core writes it, never reads it back").
// The Runner calls this once per run immediately after Discover succeeds,
// so every connector satisfies the (external) policy subsystem's input
// contract uniformly instead of constructing snapshots by hand.
func (r *SyncResult) DeriveConfigSnapshots(tenant core.TenantID, now time.Time) {
	for _, h := range r.Hosts {
		r.attachConfigSnapshot(tenant, h.ID(), h.Properties(), now)
	}
	for _, s := range r.Services {
		r.attachConfigSnapshot(tenant, s.ID(), s.Properties(), now)
	}
}

func (r *SyncResult) attachConfigSnapshot(tenant core.TenantID, resourceID string, props map[string]any, now time.Time) {
	doc, err := json.Marshal(props)
	if err != nil {
		return
	}
	snap := core.NewConfigSnapshot(tenant, resourceID, now)
	snap.Document = string(doc)
	r.ConfigSnapshots = append(r.ConfigSnapshots, snap)
	r.Edges = append(r.Edges, MakeEdge(tenant, resourceID, snap.ID(), core.EdgeHasConfigSnapshot, core.EdgeProperties{}, now))
}

// Connector is the contract every external source integration implements.
// Discover must honor ctx cancellation at enumeration boundaries and must
// never log or return the credential it resolved.
type Connector interface {
	Name() string
	ConnectorType() Type
	Discover(ctx context.Context, tenant core.TenantID, cfg Config) (*SyncResult, error)
}

// MakeEdge fills in the identity fields of an edge from its endpoints, type,
// and attributes (spec.md §4.4 step 5's `make_edge` helper). Every concrete
// connector builds its edges through this function rather than constructing
// core.Edge literals by hand, so edge identity stays consistent with
// core.EdgeNaturalKey across the whole connector surface.
func MakeEdge(tenant core.TenantID, sourceID, targetID string, edgeType core.EdgeType, props core.EdgeProperties, now time.Time) *core.Edge {
	return &core.Edge{
		Tenant:   tenant,
		SourceID: sourceID,
		TargetID: targetID,
		Type:     edgeType,
		Props:    props,
		First:    now,
		Last:     now,
	}
}
