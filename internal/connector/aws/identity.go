package aws

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"

	"github.com/sentinel/discovery-engine/internal/connector"
	"github.com/sentinel/discovery-engine/internal/core"
)

// discoverIdentities enumerates IAM users, groups, roles, and managed
// policies, plus the MEMBER_OF and HAS_ACCESS edges between them. IAM is a
// global service; callers must have already addressed the client at
// us-east-1 (see NewClientSet).
func discoverIdentities(ctx context.Context, tenant core.TenantID, client IAMClient, now time.Time) ([]*core.User, []*core.Group, []*core.Role, []*core.Policy, []*core.Edge, error) {
	users, err := discoverIAMUsers(ctx, tenant, client, now)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	groups, err := discoverIAMGroups(ctx, tenant, client, now)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	roles, err := discoverIAMRoles(ctx, tenant, client, now)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	policies, err := discoverIAMPolicies(ctx, tenant, client, now)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}

	var edges []*core.Edge
	for _, u := range users {
		memberships, err := client.ListGroupsForUser(ctx, &iam.ListGroupsForUserInput{UserName: aws.String(u.Username)})
		if err != nil {
			continue
		}
		for _, g := range memberships.Groups {
			edges = append(edges, connector.MakeEdge(tenant, u.ID(), groupNaturalKey(tenant, aws.ToString(g.GroupName)), core.EdgeMemberOf, core.EdgeProperties{}, now))
		}

		attached, err := client.ListAttachedUserPolicies(ctx, &iam.ListAttachedUserPoliciesInput{UserName: aws.String(u.Username)})
		if err != nil {
			continue
		}
		for _, p := range attached.AttachedPolicies {
			edges = append(edges, connector.MakeEdge(tenant, u.ID(), policyNaturalKey(tenant, aws.ToString(p.PolicyName)), core.EdgeHasAccess, core.EdgeProperties{}, now))
		}
	}

	return users, groups, roles, policies, edges, nil
}

func discoverIAMUsers(ctx context.Context, tenant core.TenantID, client IAMClient, now time.Time) ([]*core.User, error) {
	var users []*core.User
	paginator := iam.NewListUsersPaginator(client, &iam.ListUsersInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return users, err
		}
		for _, u := range page.Users {
			user := core.NewUser(tenant, core.IdentitySourceAWSIAM, aws.ToString(u.UserName), now)
			user.UserType = core.UserTypeHuman
			users = append(users, user)
		}
	}
	return users, nil
}

func discoverIAMGroups(ctx context.Context, tenant core.TenantID, client IAMClient, now time.Time) ([]*core.Group, error) {
	var groups []*core.Group
	paginator := iam.NewListGroupsPaginator(client, &iam.ListGroupsInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return groups, err
		}
		for _, g := range page.Groups {
			groups = append(groups, core.NewGroup(tenant, core.IdentitySourceAWSIAM, aws.ToString(g.GroupName), now))
		}
	}
	return groups, nil
}

func discoverIAMRoles(ctx context.Context, tenant core.TenantID, client IAMClient, now time.Time) ([]*core.Role, error) {
	var roles []*core.Role
	paginator := iam.NewListRolesPaginator(client, &iam.ListRolesInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return roles, err
		}
		for _, r := range page.Roles {
			roles = append(roles, core.NewRole(tenant, core.IdentitySourceAWSIAM, aws.ToString(r.RoleName), now))
		}
	}
	return roles, nil
}

func discoverIAMPolicies(ctx context.Context, tenant core.TenantID, client IAMClient, now time.Time) ([]*core.Policy, error) {
	var policies []*core.Policy
	paginator := iam.NewListPoliciesPaginator(client, &iam.ListPoliciesInput{Scope: "Local"})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return policies, err
		}
		for _, p := range page.Policies {
			policies = append(policies, core.NewPolicy(tenant, "aws_iam", aws.ToString(p.PolicyName), core.PolicyTypeIAMPolicy, now))
		}
	}
	return policies, nil
}

func groupNaturalKey(tenant core.TenantID, name string) string {
	return core.NewGroup(tenant, core.IdentitySourceAWSIAM, name, time.Time{}).ID()
}

func policyNaturalKey(tenant core.TenantID, name string) string {
	return core.NewPolicy(tenant, "aws_iam", name, core.PolicyTypeIAMPolicy, time.Time{}).ID()
}
