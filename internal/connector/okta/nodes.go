package okta

import (
	"time"

	"github.com/sentinel/discovery-engine/internal/connector"
	"github.com/sentinel/discovery-engine/internal/core"
)

func buildUserNodes(tenant core.TenantID, oktaUsers []OktaUser, now time.Time) []*core.User {
	var users []*core.User
	for _, ou := range oktaUsers {
		username := ou.Profile.Login
		if username == "" {
			username = ou.ID
		}
		user := core.NewUser(tenant, core.IdentitySourceOkta, username, now)
		user.Enabled = ou.Status == "ACTIVE"
		if ou.Profile.FirstName != "" || ou.Profile.LastName != "" {
			name := ou.Profile.FirstName + " " + ou.Profile.LastName
			user.DisplayName = &name
		}
		if ou.Profile.Email != "" {
			email := ou.Profile.Email
			user.Email = &email
		}
		users = append(users, user)
	}
	return users
}

func buildGroupNodes(tenant core.TenantID, oktaGroups []OktaGroup, now time.Time) []*core.Group {
	var groups []*core.Group
	for _, og := range oktaGroups {
		groups = append(groups, core.NewGroup(tenant, core.IdentitySourceOkta, og.Profile.Name, now))
	}
	return groups
}

func buildMembershipEdges(tenant core.TenantID, group OktaGroup, members []OktaUser, now time.Time) []*core.Edge {
	groupID := core.NewGroup(tenant, core.IdentitySourceOkta, group.Profile.Name, time.Time{}).ID()
	var edges []*core.Edge
	for _, m := range members {
		username := m.Profile.Login
		if username == "" {
			username = m.ID
		}
		userID := core.NewUser(tenant, core.IdentitySourceOkta, username, time.Time{}).ID()
		edges = append(edges, connector.MakeEdge(tenant, userID, groupID, core.EdgeMemberOf, core.EdgeProperties{}, now))
	}
	return edges
}
