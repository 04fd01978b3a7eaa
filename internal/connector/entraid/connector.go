// Package entraid implements the Entra ID (Azure AD) discovery connector:
// it walks Microsoft Graph's REST API and emits User, Group, and Role nodes
// plus the MEMBER_OF edges between them (spec.md §4.5).
package entraid

import (
	"context"
	"fmt"
	"time"

	"github.com/sentinel/discovery-engine/internal/connector"
	"github.com/sentinel/discovery-engine/internal/connector/httpfetch"
	"github.com/sentinel/discovery-engine/internal/core"
)

// DirectoryFetcher is the minimal surface Discover needs from Microsoft
// Graph.
type DirectoryFetcher interface {
	ListUsers(ctx context.Context) ([]GraphUser, error)
	ListGroups(ctx context.Context) ([]GraphGroup, error)
	ListGroupMembers(ctx context.Context, groupID string) ([]string, error)
	ListDirectoryRoles(ctx context.Context) ([]GraphRole, error)
}

// Connector discovers every identity a Graph application registration can
// read within one Entra ID tenant.
type Connector struct {
	TenantDomain string
	Fetcher      DirectoryFetcher
	Now          func() time.Time
}

// New returns an Entra ID connector authenticating with client-credentials
// against Microsoft Graph, paginating per pageSize (spec.md's page_size).
func New(tenantID, clientID, clientSecret, tenantDomain string, pageSize int) *Connector {
	tokens := NewGraphTokenSource(tenantID, clientID, clientSecret)
	return &Connector{
		TenantDomain: tenantDomain,
		Fetcher:      NewGraphClient(httpfetch.New(tokens), pageSize),
	}
}

func (c *Connector) Name() string                     { return "entraid:" + c.TenantDomain }
func (c *Connector) ConnectorType() core.ConnectorType { return core.ConnectorTypeEntraID }

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

	graphUsers, err := c.Fetcher.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	result.Users = buildUserNodes(tenant, graphUsers, now)

	graphGroups, err := c.Fetcher.ListGroups(ctx)
	if err != nil {
		result.DeadEnds = append(result.DeadEnds, connector.DeadEnd{Description: "list groups", Evidence: err.Error()})
	} else {
		result.Groups = buildGroupNodes(tenant, graphGroups, now)
		for _, g := range graphGroups {
			memberUPNs, err := c.Fetcher.ListGroupMembers(ctx, g.ID)
			if err != nil {
				result.DeadEnds = append(result.DeadEnds, connector.DeadEnd{Description: "list members of group " + g.ID, Evidence: err.Error()})
				continue
			}
			result.Edges = append(result.Edges, buildMembershipEdges(tenant, g, memberUPNs, now)...)
		}
	}

	graphRoles, err := c.Fetcher.ListDirectoryRoles(ctx)
	if err != nil {
		result.DeadEnds = append(result.DeadEnds, connector.DeadEnd{Description: "list directory roles", Evidence: err.Error()})
	} else {
		result.Roles = buildRoleNodes(tenant, graphRoles, now)
	}

	if len(result.DeadEnds) > 0 {
		result.Status = connector.StatusPartial
	} else {
		result.Status = connector.StatusSuccess
	}
	return result, nil
}
