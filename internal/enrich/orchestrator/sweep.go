// Package orchestrator runs the vulnerability enrichment sweep: page
// through known services, resolve candidate CPEs, query KEV/EPSS/NVD, and
// write or update Vulnerability nodes plus HAS_CVE edges (spec.md §4.6).
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sentinel/discovery-engine/internal/core"
	"github.com/sentinel/discovery-engine/internal/engram"
	"github.com/sentinel/discovery-engine/internal/events"
	"github.com/sentinel/discovery-engine/internal/graph"
)

// ServiceReader is the subset of *graph.Store the sweep needs to page
// through known services.
type ServiceReader interface {
	ListNodes(ctx context.Context, tenant core.TenantID, label string, filter map[string]any, page graph.Page) ([]graph.NodeView, error)
}

// GraphWriter is the subset of *graph.Store the sweep needs to persist
// Vulnerability nodes and HAS_CVE edges.
type GraphWriter interface {
	ApplyBatch(ctx context.Context, tenant core.TenantID, nodes []core.Node, edges []*core.Edge, now time.Time) (*graph.BatchResult, error)
}

// KEVSource answers KEV catalog membership.
type KEVSource interface {
	BatchLookup(ctx context.Context, cveIDs []string) (map[string]bool, error)
}

// EPSSSource answers EPSS score lookups.
type EPSSSource interface {
	BatchLookup(ctx context.Context, cveIDs []string) (map[string]Score, error)
}

// Score mirrors epss.Score's shape without importing the epss package
// directly, so a test double can satisfy EPSSSource without pulling in a
// real HTTP client.
type Score struct {
	EPSS float64
}

// NVDSource answers authoritative CVE-metadata lookups.
type NVDSource interface {
	BatchLookup(ctx context.Context, cveIDs []string) (map[string]Record, error)
}

// Record mirrors nvd.Record's shape, for the same reason as Score.
type Record struct {
	CVSSScore   *float64
	CVSSVector  *string
	Description string
	Published   *time.Time
}

// Sweep runs one enrichment pass for tenant.
type Sweep struct {
	Services  ServiceReader
	Graph     GraphWriter
	Engrams   engram.Store
	Bus       events.Bus
	CPEs      CPEResolver
	KEV       KEVSource
	EPSS      EPSSSource
	NVD       NVDSource
	PageSize  int
	Now       func() time.Time
}

func (s *Sweep) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Run executes steps 1-6 of the enrichment sweep for tenant. It never
// aborts because one intel source is degraded; Vulnerability nodes are
// written with whatever fields resolved, and the session closes partial.
func (s *Sweep) Run(ctx context.Context, tenant core.TenantID) error {
	now := s.now()
	sess := engram.Open(tenant, "enrichment-sweep", "enrich vulnerabilities", nil, s.Engrams)

	pageSize := s.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}

	anyDeadEnd := false
	offset := 0
	for {
		services, err := s.Services.ListNodes(ctx, tenant, "Service", nil, graph.Page{Limit: pageSize, Offset: offset})
		if err != nil {
			sess.RecordDeadEnd("list services failed", err.Error())
			_, _ = sess.Close(ctx, engram.OutcomeFailed, "service listing failed: "+err.Error())
			return err
		}
		if len(services) == 0 {
			break
		}

		degraded := s.sweepPage(ctx, tenant, sess, services, now)
		anyDeadEnd = anyDeadEnd || degraded

		if len(services) < pageSize {
			break
		}
		offset += pageSize
	}

	outcome := engram.OutcomeSuccess
	if anyDeadEnd {
		outcome = engram.OutcomePartial
	}
	_, err := sess.Close(ctx, outcome, fmt.Sprintf("enrichment sweep complete, degraded=%v", anyDeadEnd))
	return err
}

// sweepPage resolves CPEs and intel for one page of services and writes
// the resulting Vulnerability nodes/edges. It returns true if any source
// degraded during the page.
func (s *Sweep) sweepPage(ctx context.Context, tenant core.TenantID, sess *engram.Session, services []graph.NodeView, now time.Time) bool {
	degraded := false

	cveToServices := map[string][]graph.NodeView{}
	for _, svc := range services {
		name, _ := svc.Properties["name"].(string)
		version, _ := svc.Properties["version"].(string)
		cpes, err := s.CPEs.Resolve(ctx, name, version)
		if err != nil || len(cpes) == 0 {
			sess.RecordDeadEnd("no CPE mapping for service", fmt.Sprintf("%s@%s", name, version))
			continue
		}
		for _, cpe := range cpes {
			cveToServices[cpe] = append(cveToServices[cpe], svc)
		}
	}
	if len(cveToServices) == 0 {
		return degraded
	}

	var cveIDs []string
	for cpe := range cveToServices {
		cveIDs = append(cveIDs, cpe)
	}

	// Fan out across the three intel sources and join on all three before
	// building any Vulnerability node (spec.md §4.6: "fans out per batch
	// across KEV/EPSS/NVD ... joins on all three"). One source's failure
	// degrades the sweep but never blocks the other two.
	var kevHits map[string]bool
	var epssScores map[string]Score
	var nvdRecords map[string]Record
	var mu sync.Mutex
	var g errgroup.Group
	g.Go(func() error {
		hits, err := s.KEV.BatchLookup(ctx, cveIDs)
		if err != nil {
			hits = map[string]bool{}
			mu.Lock()
			degraded = true
			sess.RecordDeadEnd("kev lookup failed", err.Error())
			mu.Unlock()
		}
		kevHits = hits
		return nil
	})
	g.Go(func() error {
		scores, err := s.EPSS.BatchLookup(ctx, cveIDs)
		if err != nil {
			scores = map[string]Score{}
			mu.Lock()
			degraded = true
			sess.RecordDeadEnd("epss lookup failed", err.Error())
			mu.Unlock()
		}
		epssScores = scores
		return nil
	})
	g.Go(func() error {
		records, err := s.NVD.BatchLookup(ctx, cveIDs)
		if err != nil {
			records = map[string]Record{}
			mu.Lock()
			degraded = true
			sess.RecordDeadEnd("nvd lookup failed", err.Error())
			mu.Unlock()
		}
		nvdRecords = records
		return nil
	})
	_ = g.Wait()

	var nodes []core.Node
	var edges []*core.Edge
	for cveID, svcs := range cveToServices {
		vuln := buildVulnerability(tenant, cveID, kevHits[cveID], epssScores[cveID], nvdRecords[cveID], now)
		nodes = append(nodes, vuln)
		for _, svc := range svcs {
			exploitability := vuln.EPSSScore
			edges = append(edges, &core.Edge{
				Tenant:   tenant,
				SourceID: svc.ID,
				TargetID: vuln.ID(),
				Type:     core.EdgeHasCVE,
				Props:    core.EdgeProperties{ExploitabilityScore: exploitability},
				First:    now,
				Last:     now,
			})
		}
	}

	batch, err := s.Graph.ApplyBatch(ctx, tenant, nodes, edges, now)
	if err != nil {
		degraded = true
		sess.RecordDeadEnd("apply_batch failed", err.Error())
		return degraded
	}

	// Only services newly linked to a vulnerability in this batch are
	// net-new pairings (spec.md §4.6 step 6); a re-sweep over an unchanged
	// source must not re-fire VulnerabilityFound for edges that already
	// existed before this ApplyBatch call.
	newlyPaired := map[string]bool{}
	for _, e := range batch.CreatedEdges {
		if e.Type == core.EdgeHasCVE {
			newlyPaired[e.TargetID] = true
		}
	}
	for _, n := range nodes {
		vuln := n.(*core.Vulnerability)
		if !newlyPaired[vuln.ID()] {
			continue
		}
		s.Bus.Publish(ctx, events.VulnerabilityFound(tenant.String(), vuln.ID(), vuln.CVEID, vuln.CVSSScore, vuln.Exploitable))
	}
	sess.RecordAction("apply_batch", "vulnerabilities", "success", map[string]int64{
		"nodes_found": int64(batch.NodesCreated),
	})
	return degraded
}

func buildVulnerability(tenant core.TenantID, cveID string, inKEV bool, epss Score, nvd Record, now time.Time) *core.Vulnerability {
	v := core.NewVulnerability(tenant, cveID, now)
	v.InKEV = inKEV
	if epss.EPSS != 0 {
		score := epss.EPSS
		v.EPSSScore = &score
	}
	v.CVSSScore = nvd.CVSSScore
	v.CVSSVector = nvd.CVSSVector
	if nvd.Description != "" {
		desc := nvd.Description
		v.Description = &desc
	}
	v.PublishedDate = nvd.Published
	if nvd.CVSSScore != nil {
		v.Severity = core.SeverityForCVSS(*nvd.CVSSScore)
	}
	v.Exploitable = IsActionable(v)
	return v
}
