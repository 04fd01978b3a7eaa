package aws

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sentinel/discovery-engine/internal/connector"
	"github.com/sentinel/discovery-engine/internal/core"
)

// Connector discovers AWS resources across every active region of a single
// profile and emits them as graph nodes/edges (spec.md §4.5, component C5).
type Connector struct {
	Profile  string
	Provider ClientProvider
	Now      func() time.Time
}

// New returns an AWS connector for the named profile (empty string for the
// default profile) backed by the production AWS SDK.
func New(profile string) *Connector {
	return &Connector{Profile: profile, Provider: NewDefaultClientProvider()}
}

func (c *Connector) Name() string { return "aws:" + profileDisplayName(c.Profile) }

func (c *Connector) ConnectorType() core.ConnectorType { return core.ConnectorTypeAWS }

func (c *Connector) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// HealthCheck verifies the profile's credentials resolve to an AWS account.
// Implements connector.HealthChecker.
func (c *Connector) HealthCheck(ctx context.Context) error {
	_, err := c.Provider.LoadProfile(ctx, c.Profile)
	if err != nil {
		return fmt.Errorf("%w: %s", core.ErrCredential, err)
	}
	return nil
}

// Discover implements connector.Connector. It loads the profile, resolves
// its active regions (or cfg.Regions, if the caller pinned a subset), and
// fans out per-region enumeration with bounded parallelism via
// connector.RunBounded, mirroring the teacher's CollectAll pattern in
// internal/providers/aws/cost/default.go. IAM and S3 are global listings and
// run once, outside the per-region fan-out.
func (c *Connector) Discover(ctx context.Context, tenant core.TenantID, cfg connector.Config) (*connector.SyncResult, error) {
	now := c.now()
	profile, err := c.Provider.LoadProfile(ctx, c.Profile)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", core.ErrCredential, err)
	}

	regions := cfg.Regions
	if len(regions) == 0 {
		regions, err = c.Provider.ActiveRegions(ctx, profile)
		if err != nil {
			return nil, err
		}
	}

	result := &connector.SyncResult{}
	var mu sync.Mutex
	merge := func(partial *connector.SyncResult) {
		mu.Lock()
		defer mu.Unlock()
		result.Hosts = append(result.Hosts, partial.Hosts...)
		result.Services = append(result.Services, partial.Services...)
		result.Policies = append(result.Policies, partial.Policies...)
		result.Subnets = append(result.Subnets, partial.Subnets...)
		result.Vpcs = append(result.Vpcs, partial.Vpcs...)
		result.Applications = append(result.Applications, partial.Applications...)
		result.Users = append(result.Users, partial.Users...)
		result.Groups = append(result.Groups, partial.Groups...)
		result.Roles = append(result.Roles, partial.Roles...)
		result.Edges = append(result.Edges, partial.Edges...)
	}

	deadEnds := connector.RunBounded(ctx, cfg.Parallelism(), regions, func(ctx context.Context, region string) error {
		regionCfg := c.Provider.ConfigForRegion(profile, region)
		clients := profile.Clients
		if dp, ok := c.Provider.(*DefaultClientProvider); ok && dp.factory != nil {
			clients = dp.factory(regionCfg)
		}
		partial, regionErr := discoverRegion(ctx, tenant, region, clients, now)
		tagWithAccount(partial, profile.accountTag())
		merge(partial)
		return regionErr
	})
	result.DeadEnds = append(result.DeadEnds, deadEnds...)

	globalPartial, globalDeadEnds := discoverGlobal(ctx, tenant, profile.Clients, now)
	merge(globalPartial)
	result.DeadEnds = append(result.DeadEnds, globalDeadEnds...)

	if len(result.DeadEnds) > 0 {
		result.Status = connector.StatusPartial
	} else {
		result.Status = connector.StatusSuccess
	}
	return result, nil
}

// tagWithAccount stamps every Host partial carries with the AWS account its
// credentials resolved to. AccountID previously sat unread on ProfileConfig
// once HealthCheck/Discover finished with it; this is the one place every
// discovered host actually learns which account it came from.
func tagWithAccount(partial *connector.SyncResult, tag string) {
	for _, h := range partial.Hosts {
		h.Tags = append(h.Tags, tag)
	}
}

// discoverRegion enumerates every regional resource kind this connector
// understands: EC2 instances, VPCs, subnets, security groups, and RDS
// instances.
func discoverRegion(ctx context.Context, tenant core.TenantID, region string, clients *ClientSet, now time.Time) (*connector.SyncResult, error) {
	partial := &connector.SyncResult{}

	vpcs, vpcEdges, err := discoverVpcs(ctx, tenant, region, clients.EC2, now)
	if err != nil {
		return partial, fmt.Errorf("region %s: describe vpcs: %w", region, err)
	}
	partial.Vpcs = append(partial.Vpcs, vpcs...)
	partial.Edges = append(partial.Edges, vpcEdges...)

	subnets, subnetEdges, cidrByID, err := discoverSubnets(ctx, tenant, region, clients.EC2, now)
	if err != nil {
		return partial, fmt.Errorf("region %s: describe subnets: %w", region, err)
	}
	partial.Subnets = append(partial.Subnets, subnets...)
	partial.Edges = append(partial.Edges, subnetEdges...)

	groups, err := discoverSecurityGroups(ctx, tenant, region, clients.EC2, now)
	if err != nil {
		return partial, fmt.Errorf("region %s: describe security groups: %w", region, err)
	}
	partial.Policies = append(partial.Policies, groups...)

	hosts, hostEdges, err := discoverInstances(ctx, tenant, region, clients.EC2, cidrByID, now)
	if err != nil {
		return partial, fmt.Errorf("region %s: describe instances: %w", region, err)
	}
	partial.Hosts = append(partial.Hosts, hosts...)
	partial.Edges = append(partial.Edges, hostEdges...)

	services, err := discoverDBInstances(ctx, tenant, region, clients.RDS, now)
	if err != nil {
		return partial, fmt.Errorf("region %s: describe db instances: %w", region, err)
	}
	partial.Services = append(partial.Services, services...)

	clusters, clusterEdges, err := discoverEKSClusters(ctx, tenant, region, clients.EKS, now)
	if err != nil {
		return partial, fmt.Errorf("region %s: list eks clusters: %w", region, err)
	}
	partial.Applications = append(partial.Applications, clusters...)
	partial.Edges = append(partial.Edges, clusterEdges...)

	return partial, nil
}

// discoverGlobal enumerates resources that exist once per account rather
// than once per region: S3 buckets and IAM identities. Failures here are
// recorded as dead-ends, never as a hard Discover error, so a profile with
// no IAM read permission still yields its regional resources.
func discoverGlobal(ctx context.Context, tenant core.TenantID, clients *ClientSet, now time.Time) (*connector.SyncResult, []connector.DeadEnd) {
	partial := &connector.SyncResult{}
	var deadEnds []connector.DeadEnd

	buckets, err := discoverBuckets(ctx, tenant, clients.S3, now)
	if err != nil {
		deadEnds = append(deadEnds, connector.DeadEnd{Description: "list s3 buckets", Evidence: err.Error()})
	} else {
		partial.Applications = append(partial.Applications, buckets...)
	}

	users, groups, roles, policies, identityEdges, err := discoverIdentities(ctx, tenant, clients.IAM, now)
	if err != nil {
		deadEnds = append(deadEnds, connector.DeadEnd{Description: "enumerate IAM identities", Evidence: err.Error()})
	} else {
		partial.Users = users
		partial.Groups = groups
		partial.Roles = roles
		partial.Policies = append(partial.Policies, policies...)
		partial.Edges = append(partial.Edges, identityEdges...)
	}

	return partial, deadEnds
}
