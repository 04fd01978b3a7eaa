// Package httpfetch provides the small HTTP+JSON fetch helper the Azure,
// GCP, Entra ID, and Okta connectors share. None of the retrieved examples
// carry a cloud SDK for these four providers, so each connector talks to the
// provider's documented REST API directly through a minimal interface, in
// the same interface-first, swappable-implementation style as the teacher's
// LLMClient (internal/llm/client.go).
package httpfetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout bounds a single request when the caller supplies no
// *http.Client of its own.
const DefaultTimeout = 30 * time.Second

// TokenSource resolves the bearer token to attach to every request. Each
// provider has its own token lifecycle (Azure AD client-credentials, GCP
// service-account JWT exchange, Okta API token, Entra ID's own client
// credentials flow), so connectors supply their own implementation.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource that always returns the same pre-resolved
// token, used by providers (Okta) that authenticate with a long-lived API
// key rather than an OAuth2 flow.
type StaticToken string

func (t StaticToken) Token(ctx context.Context) (string, error) { return string(t), nil }

// Client performs authenticated GET requests against a provider's REST API
// and decodes the JSON body into the caller's target type.
type Client struct {
	HTTP   *http.Client
	Tokens TokenSource
}

// New returns a Client with DefaultTimeout. Pass a custom HTTP client via
// the exported field when a test needs to swap in a fake transport.
func New(tokens TokenSource) *Client {
	return &Client{HTTP: &http.Client{Timeout: DefaultTimeout}, Tokens: tokens}
}

// GetJSON issues an authenticated GET to url and decodes the response body
// into out. A non-2xx response is returned as an error carrying the status
// code and body, never silently ignored.
func (c *Client) GetJSON(ctx context.Context, url string, headers map[string]string, out any) error {
	_, err := c.GetJSONWithHeaders(ctx, url, headers, out)
	return err
}

// GetJSONWithHeaders behaves like GetJSON but also returns the response
// headers, for providers (Okta) that carry pagination state in a header
// (Link) rather than in the JSON body, or that need a status-specific
// header off a non-2xx response (NVD's Retry-After on 429).
func (c *Client) GetJSONWithHeaders(ctx context.Context, url string, headers map[string]string, out any) (http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	token, err := c.Tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve token: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return resp.Header, &StatusError{URL: url, Code: resp.StatusCode, Body: string(body)}
	}
	if out == nil {
		return resp.Header, nil
	}
	return resp.Header, decodeJSON(resp.Body, out)
}

// StatusError is returned by GetJSON/GetJSONWithHeaders for a non-2xx
// response, so a caller that needs to branch on the status code (NVD's
// 429 plus Retry-After) can errors.As into it instead of parsing the
// error string.
type StatusError struct {
	URL  string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.URL, e.Code, e.Body)
}
