package entraid

import (
	"context"
	"fmt"

	"github.com/sentinel/discovery-engine/internal/connector/httpfetch"
)

const graphEndpoint = "https://graph.microsoft.com/v1.0"

// GraphUser is the subset of a Microsoft Graph user this connector cares
// about.
type GraphUser struct {
	ID                string `json:"id"`
	UserPrincipalName string `json:"userPrincipalName"`
	DisplayName       string `json:"displayName"`
	Mail              string `json:"mail"`
	AccountEnabled    bool   `json:"accountEnabled"`
}

// GraphGroup is the subset of a Microsoft Graph group this connector cares
// about.
type GraphGroup struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// GraphRole is the subset of a Microsoft Graph directory role this
// connector cares about.
type GraphRole struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

type graphPage[T any] struct {
	Value    []T    `json:"value"`
	NextLink string `json:"@odata.nextLink"`
}

// GraphClient fetches Microsoft Graph collections with @odata.nextLink
// pagination, requesting pageSize items per page via $top.
type GraphClient struct {
	http     *httpfetch.Client
	pageSize int
}

// NewGraphClient returns a DirectoryFetcher backed by the given httpfetch
// client. pageSize <= 0 falls back to Graph's own default page size.
func NewGraphClient(client *httpfetch.Client, pageSize int) *GraphClient {
	return &GraphClient{http: client, pageSize: pageSize}
}

func (g *GraphClient) ListUsers(ctx context.Context) ([]GraphUser, error) {
	url := g.firstURL("/users")
	return fetchAllPages[GraphUser](ctx, g.http, url)
}

func (g *GraphClient) ListGroups(ctx context.Context) ([]GraphGroup, error) {
	url := g.firstURL("/groups")
	return fetchAllPages[GraphGroup](ctx, g.http, url)
}

func (g *GraphClient) ListDirectoryRoles(ctx context.Context) ([]GraphRole, error) {
	url := g.firstURL("/directoryRoles")
	return fetchAllPages[GraphRole](ctx, g.http, url)
}

// ListGroupMembers returns the userPrincipalName of every member of the
// given group. Non-user members (other groups, service principals) are
// skipped rather than erroring the whole call.
func (g *GraphClient) ListGroupMembers(ctx context.Context, groupID string) ([]string, error) {
	url := g.firstURL(fmt.Sprintf("/groups/%s/members", groupID))
	members, err := fetchAllPages[GraphUser](ctx, g.http, url)
	if err != nil {
		return nil, err
	}
	var upns []string
	for _, m := range members {
		if m.UserPrincipalName != "" {
			upns = append(upns, m.UserPrincipalName)
		}
	}
	return upns, nil
}

func (g *GraphClient) firstURL(path string) string {
	url := graphEndpoint + path
	if g.pageSize > 0 {
		url += fmt.Sprintf("?$top=%d", g.pageSize)
	}
	return url
}

func fetchAllPages[T any](ctx context.Context, client *httpfetch.Client, firstURL string) ([]T, error) {
	var items []T
	url := firstURL
	for url != "" {
		var page graphPage[T]
		if err := client.GetJSON(ctx, url, nil, &page); err != nil {
			return items, err
		}
		items = append(items, page.Value...)
		url = page.NextLink
	}
	return items, nil
}
