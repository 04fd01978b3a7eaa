// Package gcp implements the GCP discovery connector: it walks the Compute
// Engine and IAM REST APIs (no GCP SDK appears anywhere in the retrieved
// corpus) and emits Host nodes for compute instances and service-account
// typed User nodes for service accounts (spec.md §4.5).
package gcp

import (
	"context"
	"fmt"
	"time"

	"github.com/sentinel/discovery-engine/internal/connector"
	"github.com/sentinel/discovery-engine/internal/connector/httpfetch"
	"github.com/sentinel/discovery-engine/internal/core"
)

// ResourceFetcher is the minimal surface Discover needs from GCP: list
// compute instances across every zone, and list a project's service
// accounts.
type ResourceFetcher interface {
	ListInstances(ctx context.Context, projectID string) ([]Instance, error)
	ListServiceAccounts(ctx context.Context, projectID string) ([]ServiceAccount, error)
}

// Connector discovers every resource a service account can see within one
// GCP project.
type Connector struct {
	ProjectID string
	Fetcher   ResourceFetcher
	Now       func() time.Time
}

// New returns a GCP connector authenticating with the given OAuth2 access
// token source (typically a service-account JWT exchange).
func New(projectID string, tokens httpfetch.TokenSource) *Connector {
	return &Connector{
		ProjectID: projectID,
		Fetcher:   NewComputeClient(httpfetch.New(tokens)),
	}
}

func (c *Connector) Name() string                     { return "gcp:" + c.ProjectID }
func (c *Connector) ConnectorType() core.ConnectorType { return core.ConnectorTypeGCP }

func (c *Connector) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// HealthCheck implements connector.HealthChecker.
func (c *Connector) HealthCheck(ctx context.Context) error {
	_, err := c.Fetcher.ListInstances(ctx, c.ProjectID)
	if err != nil {
		return fmt.Errorf("%w: %s", core.ErrCredential, err)
	}
	return nil
}

// Discover implements connector.Connector.
func (c *Connector) Discover(ctx context.Context, tenant core.TenantID, cfg connector.Config) (*connector.SyncResult, error) {
	now := c.now()
	result := &connector.SyncResult{}

	instances, err := c.Fetcher.ListInstances(ctx, c.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	result.Hosts = buildHostNodes(tenant, instances, now)

	accounts, err := c.Fetcher.ListServiceAccounts(ctx, c.ProjectID)
	if err != nil {
		result.DeadEnds = append(result.DeadEnds, connector.DeadEnd{Description: "list service accounts", Evidence: err.Error()})
	} else {
		result.Users = buildServiceAccountUsers(tenant, accounts, now)
	}

	if len(result.DeadEnds) > 0 {
		result.Status = connector.StatusPartial
	} else {
		result.Status = connector.StatusSuccess
	}
	return result, nil
}
