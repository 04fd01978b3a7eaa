package entraid

import (
	"time"

	"github.com/sentinel/discovery-engine/internal/connector"
	"github.com/sentinel/discovery-engine/internal/core"
)

func buildUserNodes(tenant core.TenantID, graphUsers []GraphUser, now time.Time) []*core.User {
	var users []*core.User
	for _, gu := range graphUsers {
		username := gu.UserPrincipalName
		if username == "" {
			username = gu.ID
		}
		user := core.NewUser(tenant, core.IdentitySourceEntraID, username, now)
		user.Enabled = gu.AccountEnabled
		if gu.DisplayName != "" {
			name := gu.DisplayName
			user.DisplayName = &name
		}
		if gu.Mail != "" {
			mail := gu.Mail
			user.Email = &mail
		}
		users = append(users, user)
	}
	return users
}

func buildGroupNodes(tenant core.TenantID, graphGroups []GraphGroup, now time.Time) []*core.Group {
	var groups []*core.Group
	for _, gg := range graphGroups {
		groups = append(groups, core.NewGroup(tenant, core.IdentitySourceEntraID, gg.DisplayName, now))
	}
	return groups
}

func buildRoleNodes(tenant core.TenantID, graphRoles []GraphRole, now time.Time) []*core.Role {
	var roles []*core.Role
	for _, gr := range graphRoles {
		roles = append(roles, core.NewRole(tenant, core.IdentitySourceEntraID, gr.DisplayName, now))
	}
	return roles
}

// buildMembershipEdges builds a MEMBER_OF edge from each member's natural
// key (computed without a round trip through the already-built User slice,
// since group membership can include users discovered on a later page) to
// the given group's node.
func buildMembershipEdges(tenant core.TenantID, group GraphGroup, memberUPNs []string, now time.Time) []*core.Edge {
	groupID := core.NewGroup(tenant, core.IdentitySourceEntraID, group.DisplayName, time.Time{}).ID()
	var edges []*core.Edge
	for _, upn := range memberUPNs {
		userID := core.NewUser(tenant, core.IdentitySourceEntraID, upn, time.Time{}).ID()
		edges = append(edges, connector.MakeEdge(tenant, userID, groupID, core.EdgeMemberOf, core.EdgeProperties{}, now))
	}
	return edges
}
