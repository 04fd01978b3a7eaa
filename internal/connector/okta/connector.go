// Package okta implements the Okta discovery connector: it walks Okta's
// REST API and emits User and Group nodes plus the MEMBER_OF edges between
// them (spec.md §4.5).
package okta

import (
	"context"
	"fmt"
	"time"

	"github.com/sentinel/discovery-engine/internal/connector"
	"github.com/sentinel/discovery-engine/internal/connector/httpfetch"
	"github.com/sentinel/discovery-engine/internal/core"
)

// DirectoryFetcher is the minimal surface Discover needs from Okta.
type DirectoryFetcher interface {
	ListUsers(ctx context.Context) ([]OktaUser, error)
	ListGroups(ctx context.Context) ([]OktaGroup, error)
	ListGroupMembers(ctx context.Context, groupID string) ([]OktaUser, error)
}

// Connector discovers every identity an Okta API token can read within one
// Okta org.
type Connector struct {
	OrgDomain string
	Fetcher   DirectoryFetcher
	Now       func() time.Time
}

// New returns an Okta connector authenticating with a long-lived API token,
// paginating per pageSize (spec.md's page_size).
func New(orgDomain, apiToken string, pageSize int) *Connector {
	tokens := httpfetch.StaticToken(fmt.Sprintf("SSWS %s", apiToken))
	return &Connector{
		OrgDomain: orgDomain,
		Fetcher:   NewAPIClient(httpfetch.New(tokens), orgDomain, pageSize),
	}
}

func (c *Connector) Name() string                     { return "okta:" + c.OrgDomain }
func (c *Connector) ConnectorType() core.ConnectorType { return core.ConnectorTypeOkta }

func (c *Connector) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// HealthCheck implements connector.HealthChecker.
func (c *Connector) HealthCheck(ctx context.Context) error {
	_, err := c.Fetcher.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("%w: %s", core.ErrCredential, err)
	}
	return nil
}

// Discover implements connector.Connector.
func (c *Connector) Discover(ctx context.Context, tenant core.TenantID, cfg connector.Config) (*connector.SyncResult, error) {
	now := c.now()
	result := &connector.SyncResult{}

	oktaUsers, err := c.Fetcher.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	result.Users = buildUserNodes(tenant, oktaUsers, now)

	oktaGroups, err := c.Fetcher.ListGroups(ctx)
	if err != nil {
		result.DeadEnds = append(result.DeadEnds, connector.DeadEnd{Description: "list groups", Evidence: err.Error()})
	} else {
		result.Groups = buildGroupNodes(tenant, oktaGroups, now)
		for _, g := range oktaGroups {
			members, err := c.Fetcher.ListGroupMembers(ctx, g.ID)
			if err != nil {
				result.DeadEnds = append(result.DeadEnds, connector.DeadEnd{Description: "list members of group " + g.ID, Evidence: err.Error()})
				continue
			}
			result.Edges = append(result.Edges, buildMembershipEdges(tenant, g, members, now)...)
		}
	}

	if len(result.DeadEnds) > 0 {
		result.Status = connector.StatusPartial
	} else {
		result.Status = connector.StatusSuccess
	}
	return result, nil
}
