package okta

import (
	"context"
	"fmt"
	"regexp"

	"github.com/sentinel/discovery-engine/internal/connector/httpfetch"
)

// OktaUser is the subset of an Okta user this connector cares about.
type OktaUser struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Profile struct {
		Login     string `json:"login"`
		Email     string `json:"email"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
	} `json:"profile"`
}

// OktaGroup is the subset of an Okta group this connector cares about.
type OktaGroup struct {
	ID      string `json:"id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

var nextLinkPattern = regexp.MustCompile(`<([^>]+)>;\s*rel="next"`)

// APIClient fetches Okta collections with Link-header ("rel=next")
// pagination, the idiom Okta's REST API uses instead of a cursor field in
// the JSON body.
type APIClient struct {
	http      *httpfetch.Client
	orgDomain string
	pageSize  int
}

// NewAPIClient returns a DirectoryFetcher backed by the given httpfetch
// client. pageSize <= 0 falls back to Okta's own default page size.
func NewAPIClient(client *httpfetch.Client, orgDomain string, pageSize int) *APIClient {
	return &APIClient{http: client, orgDomain: orgDomain, pageSize: pageSize}
}

func (a *APIClient) baseURL() string { return fmt.Sprintf("https://%s/api/v1", a.orgDomain) }

func (a *APIClient) ListUsers(ctx context.Context) ([]OktaUser, error) {
	return fetchAllPages[OktaUser](ctx, a.http, a.firstURL("/users"))
}

func (a *APIClient) ListGroups(ctx context.Context) ([]OktaGroup, error) {
	return fetchAllPages[OktaGroup](ctx, a.http, a.firstURL("/groups"))
}

func (a *APIClient) ListGroupMembers(ctx context.Context, groupID string) ([]OktaUser, error) {
	return fetchAllPages[OktaUser](ctx, a.http, a.firstURL(fmt.Sprintf("/groups/%s/users", groupID)))
}

func (a *APIClient) firstURL(path string) string {
	url := a.baseURL() + path
	if a.pageSize > 0 {
		url += fmt.Sprintf("?limit=%d", a.pageSize)
	}
	return url
}

func fetchAllPages[T any](ctx context.Context, client *httpfetch.Client, firstURL string) ([]T, error) {
	var items []T
	url := firstURL
	for url != "" {
		var page []T
		headers, err := client.GetJSONWithHeaders(ctx, url, nil, &page)
		if err != nil {
			return items, err
		}
		items = append(items, page...)
		url = nextLinkFromHeader(headers.Get("Link"))
	}
	return items, nil
}

func nextLinkFromHeader(link string) string {
	m := nextLinkPattern.FindStringSubmatch(link)
	if len(m) != 2 {
		return ""
	}
	return m[1]
}
