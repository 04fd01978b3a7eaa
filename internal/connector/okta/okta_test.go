package okta

import (
	"context"
	"testing"
	"time"

	"github.com/sentinel/discovery-engine/internal/connector"
	"github.com/sentinel/discovery-engine/internal/core"
)

type fakeFetcher struct {
	users   []OktaUser
	groups  []OktaGroup
	members map[string][]OktaUser
}

func (f *fakeFetcher) ListUsers(ctx context.Context) ([]OktaUser, error)   { return f.users, nil }
func (f *fakeFetcher) ListGroups(ctx context.Context) ([]OktaGroup, error) { return f.groups, nil }
func (f *fakeFetcher) ListGroupMembers(ctx context.Context, groupID string) ([]OktaUser, error) {
	return f.members[groupID], nil
}

func TestDiscover_EmitsUsersGroupsAndMembershipEdges(t *testing.T) {
	alice := OktaUser{ID: "u1", Status: "ACTIVE"}
	alice.Profile.Login = "alice@example.com"
	alice.Profile.Email = "alice@example.com"

	group := OktaGroup{ID: "g1"}
	group.Profile.Name = "Engineering"

	fetcher := &fakeFetcher{
		users:   []OktaUser{alice},
		groups:  []OktaGroup{group},
		members: map[string][]OktaUser{"g1": {alice}},
	}
	conn := &Connector{OrgDomain: "example.okta.com", Fetcher: fetcher, Now: func() time.Time { return time.Unix(0, 0) }}

	result, err := conn.Discover(context.Background(), core.NewTenantID(), connector.Config{})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(result.Users) != 1 || !result.Users[0].Enabled {
		t.Fatalf("expected 1 enabled user, got %+v", result.Users)
	}
	if len(result.Groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(result.Groups))
	}
	if len(result.Edges) != 1 || result.Edges[0].Type != core.EdgeMemberOf {
		t.Fatalf("expected 1 MEMBER_OF edge, got %+v", result.Edges)
	}
	if result.Status != connector.StatusSuccess {
		t.Fatalf("expected success status, got %v", result.Status)
	}
}

func TestNextLinkFromHeader_ParsesRelNextOnly(t *testing.T) {
	link := `<https://example.okta.com/api/v1/users?after=abc>; rel="next"`
	if got := nextLinkFromHeader(link); got != "https://example.okta.com/api/v1/users?after=abc" {
		t.Errorf("nextLinkFromHeader = %q", got)
	}
	if got := nextLinkFromHeader(`<https://x>; rel="self"`); got != "" {
		t.Errorf("expected no next link for rel=self, got %q", got)
	}
}
