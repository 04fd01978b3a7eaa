// Package kev fetches and caches CISA's Known Exploited Vulnerabilities
// catalog. The whole catalog is small enough to hold entirely in memory, so
// the client caches it behind a single-refresher/many-reader sync.RWMutex
// rather than issuing one request per lookup (spec.md §4.6).
package kev

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sentinel/discovery-engine/internal/connector/httpfetch"
)

const defaultCatalogURL = "https://www.cisa.gov/sites/default/files/feeds/known_exploited_vulnerabilities.json"

// DefaultRefreshInterval is how often the catalog is re-fetched when the
// caller does not configure one explicitly.
const DefaultRefreshInterval = 24 * time.Hour

// Entry is one row of the KEV catalog this connector cares about.
type Entry struct {
	CVEID             string `json:"cveID"`
	VulnerabilityName string `json:"vulnerabilityName"`
	DateAdded         string `json:"dateAdded"`
	DueDate           string `json:"dueDate"`
}

type catalog struct {
	Vulnerabilities []Entry `json:"vulnerabilities"`
}

// Client answers "is this CVE in the KEV catalog" from an in-memory cache
// refreshed on a fixed interval.
type Client struct {
	url             string
	refreshInterval time.Duration
	http            *httpfetch.Client
	now             func() time.Time

	refreshMu   sync.Mutex
	mu          sync.RWMutex
	byID        map[string]Entry
	lastRefresh time.Time
}

// New returns a KEV client. refreshInterval <= 0 uses DefaultRefreshInterval.
// The catalog is public and unauthenticated, so it carries a StaticToken
// that resolves to "" — httpfetch then skips the Authorization header.
func New(refreshInterval time.Duration) *Client {
	if refreshInterval <= 0 {
		refreshInterval = DefaultRefreshInterval
	}
	return &Client{
		url:             defaultCatalogURL,
		refreshInterval: refreshInterval,
		http:            httpfetch.New(httpfetch.StaticToken("")),
		now:             time.Now,
	}
}

// Lookup reports whether cveID is in the KEV catalog, refreshing the cache
// first if it has gone stale.
func (c *Client) Lookup(ctx context.Context, cveID string) (bool, error) {
	if err := c.refreshIfStale(ctx); err != nil {
		return false, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.byID[cveID]
	return ok, nil
}

// BatchLookup reports KEV membership for every CVE in cveIDs in one pass
// over the cached catalog.
func (c *Client) BatchLookup(ctx context.Context, cveIDs []string) (map[string]bool, error) {
	if err := c.refreshIfStale(ctx); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]bool, len(cveIDs))
	for _, id := range cveIDs {
		_, ok := c.byID[id]
		out[id] = ok
	}
	return out, nil
}

func (c *Client) refreshIfStale(ctx context.Context) error {
	c.mu.RLock()
	stale := c.now().Sub(c.lastRefresh) >= c.refreshInterval
	c.mu.RUnlock()
	if !stale {
		return nil
	}
	// Only one caller refreshes at a time; callers queued behind it re-check
	// staleness and reuse the catalog it just loaded.
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()
	c.mu.RLock()
	stale = c.now().Sub(c.lastRefresh) >= c.refreshInterval
	c.mu.RUnlock()
	if !stale {
		return nil
	}
	return c.refresh(ctx)
}

// refresh re-fetches the catalog and swaps it in under the write lock.
// refreshIfStale serializes callers, so concurrent lookups that observe
// staleness trigger a single fetch.
func (c *Client) refresh(ctx context.Context) error {
	var cat catalog
	if err := c.http.GetJSON(ctx, c.url, nil, &cat); err != nil {
		return fmt.Errorf("kev: fetch catalog: %w", err)
	}

	byID := make(map[string]Entry, len(cat.Vulnerabilities))
	for _, e := range cat.Vulnerabilities {
		byID[e.CVEID] = e
	}

	c.mu.Lock()
	c.byID = byID
	c.lastRefresh = c.now()
	c.mu.Unlock()
	return nil
}
