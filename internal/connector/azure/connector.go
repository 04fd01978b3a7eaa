// Package azure implements the Azure discovery connector: it walks Azure
// Resource Manager over its REST API (no Azure SDK appears anywhere in the
// retrieved corpus) and emits Host, Vpc/Subnet, and Application nodes for
// virtual machines, virtual networks, and storage accounts (spec.md §4.5).
package azure

import (
	"context"
	"fmt"
	"time"

	"github.com/sentinel/discovery-engine/internal/connector"
	"github.com/sentinel/discovery-engine/internal/connector/httpfetch"
	"github.com/sentinel/discovery-engine/internal/core"
)

const managementEndpoint = "https://management.azure.com"
const apiVersion = "2024-07-01"

// ResourceFetcher is the minimal surface Discover needs from Azure Resource
// Manager: list a resource collection, one page at a time. Implementations
// page transparently and return every item across all pages.
type ResourceFetcher interface {
	ListVirtualMachines(ctx context.Context, subscriptionID string) ([]VirtualMachine, error)
	ListVirtualNetworks(ctx context.Context, subscriptionID string) ([]VirtualNetwork, error)
	ListStorageAccounts(ctx context.Context, subscriptionID string) ([]StorageAccount, error)
}

// Connector discovers every resource a service principal can see within one
// Azure subscription.
type Connector struct {
	SubscriptionID string
	Fetcher        ResourceFetcher
	Now            func() time.Time
}

// New returns an Azure connector authenticating with client-credentials
// (tenantID/clientID/clientSecret) against the given subscription.
func New(subscriptionID, tenantID, clientID, clientSecret string) *Connector {
	tokens := NewClientCredentialsTokenSource(tenantID, clientID, clientSecret)
	return &Connector{
		SubscriptionID: subscriptionID,
		Fetcher:        NewARMClient(httpfetch.New(tokens)),
	}
}

func (c *Connector) Name() string                     { return "azure:" + c.SubscriptionID }
func (c *Connector) ConnectorType() core.ConnectorType { return core.ConnectorTypeAzure }

func (c *Connector) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// HealthCheck implements connector.HealthChecker by attempting a cheap list
// call against the subscription.
func (c *Connector) HealthCheck(ctx context.Context) error {
	_, err := c.Fetcher.ListVirtualNetworks(ctx, c.SubscriptionID)
	if err != nil {
		return fmt.Errorf("%w: %s", core.ErrCredential, err)
	}
	return nil
}

// Discover implements connector.Connector.
func (c *Connector) Discover(ctx context.Context, tenant core.TenantID, cfg connector.Config) (*connector.SyncResult, error) {
	now := c.now()
	result := &connector.SyncResult{}

	vnets, err := c.Fetcher.ListVirtualNetworks(ctx, c.SubscriptionID)
	if err != nil {
		return nil, fmt.Errorf("list virtual networks: %w", err)
	}
	vpcs, subnets, vpcEdges, cidrByID := buildNetworkNodes(tenant, vnets, now)
	result.Vpcs = vpcs
	result.Subnets = subnets
	result.Edges = append(result.Edges, vpcEdges...)

	vms, err := c.Fetcher.ListVirtualMachines(ctx, c.SubscriptionID)
	if err != nil {
		result.DeadEnds = append(result.DeadEnds, connector.DeadEnd{Description: "list virtual machines", Evidence: err.Error()})
	} else {
		hosts, hostEdges := buildHostNodes(tenant, vms, cidrByID, now)
		result.Hosts = hosts
		result.Edges = append(result.Edges, hostEdges...)
	}

	accounts, err := c.Fetcher.ListStorageAccounts(ctx, c.SubscriptionID)
	if err != nil {
		result.DeadEnds = append(result.DeadEnds, connector.DeadEnd{Description: "list storage accounts", Evidence: err.Error()})
	} else {
		result.Applications = buildStorageApplications(tenant, accounts, now)
	}

	if len(result.DeadEnds) > 0 {
		result.Status = connector.StatusPartial
	} else {
		result.Status = connector.StatusSuccess
	}
	return result, nil
}
