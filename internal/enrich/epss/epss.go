// Package epss fetches Exploit Prediction Scoring System scores from the
// FIRST.org EPSS API, batching CVEs in groups of 30 under a rate limiter
// (spec.md §4.6).
package epss

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sentinel/discovery-engine/internal/connector/httpfetch"
)

const defaultBaseURL = "https://api.first.org/data/v1/epss"

// BatchSize is the maximum number of CVEs requested per call, matching the
// batching discipline spec.md §4.6 requires.
const BatchSize = 30

// DefaultRPS is the conservative default request rate against the public
// EPSS API, which publishes no documented rate limit.
const DefaultRPS = 2.0

// Score is one CVE's EPSS probability and percentile.
type Score struct {
	CVEID      string
	EPSS       float64
	Percentile float64
}

type epssResponse struct {
	Data []struct {
		CVE        string `json:"cve"`
		EPSS       string `json:"epss"`
		Percentile string `json:"percentile"`
	} `json:"data"`
}

// Client fetches EPSS scores, batching requests and rate-limiting them.
type Client struct {
	baseURL string
	http    *httpfetch.Client
	limiter *rate.Limiter
}

// New returns an EPSS client rate-limited to rps requests per second.
// rps <= 0 uses DefaultRPS. The public EPSS API needs no auth, so the
// fetcher carries a StaticToken that resolves to "".
func New(rps float64) *Client {
	if rps <= 0 {
		rps = DefaultRPS
	}
	return &Client{
		baseURL: defaultBaseURL,
		http:    httpfetch.New(httpfetch.StaticToken("")),
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// Lookup fetches the EPSS score for a single CVE.
func (c *Client) Lookup(ctx context.Context, cveID string) (*Score, error) {
	scores, err := c.BatchLookup(ctx, []string{cveID})
	if err != nil {
		return nil, err
	}
	if s, ok := scores[cveID]; ok {
		return &s, nil
	}
	return nil, nil
}

// BatchLookup fetches EPSS scores for every CVE in cveIDs, dispatching the
// BatchSize-sized groups concurrently under the client's rate limiter
// (spec.md §4.6 "dispatch batches ... concurrently under a rate limiter").
func (c *Client) BatchLookup(ctx context.Context, cveIDs []string) (map[string]Score, error) {
	var groups [][]string
	for start := 0; start < len(cveIDs); start += BatchSize {
		end := start + BatchSize
		if end > len(cveIDs) {
			end = len(cveIDs)
		}
		groups = append(groups, cveIDs[start:end])
	}

	out := make(map[string]Score, len(cveIDs))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, group := range groups {
		group := group
		g.Go(func() error {
			if err := c.limiter.Wait(gctx); err != nil {
				return fmt.Errorf("epss: rate limiter: %w", err)
			}
			scores, err := c.fetchBatch(gctx, group)
			if err != nil {
				return err
			}
			mu.Lock()
			for k, v := range scores {
				out[k] = v
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}
	return out, nil
}

func (c *Client) fetchBatch(ctx context.Context, cveIDs []string) (map[string]Score, error) {
	url := fmt.Sprintf("%s?cve=%s", c.baseURL, strings.Join(cveIDs, ","))
	var parsed epssResponse
	if err := c.http.GetJSON(ctx, url, nil, &parsed); err != nil {
		return nil, fmt.Errorf("epss: fetch scores: %w", err)
	}

	out := make(map[string]Score, len(parsed.Data))
	for _, d := range parsed.Data {
		epssVal, _ := strconv.ParseFloat(d.EPSS, 64)
		percentile, _ := strconv.ParseFloat(d.Percentile, 64)
		out[d.CVE] = Score{CVEID: d.CVE, EPSS: epssVal, Percentile: percentile}
	}
	return out, nil
}
