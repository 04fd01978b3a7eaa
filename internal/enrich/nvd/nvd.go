// Package nvd fetches CVE records from the National Vulnerability
// Database's REST API. The client selects between two rate-limit regimes
// depending on whether an API key is configured, and honors a 429
// response's Retry-After header rather than retrying blind (spec.md §4.6).
package nvd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sentinel/discovery-engine/internal/connector/httpfetch"
)

const baseURL = "https://services.nvd.nist.gov/rest/json/cves/2.0"

// Unauthenticated NVD API callers are limited to 5 requests per rolling
// 30-second window; callers with an API key get 50.
const (
	unauthenticatedRPS = 5.0 / 30.0
	authenticatedRPS   = 50.0 / 30.0
)

// Record is the subset of an NVD CVE record this client cares about.
type Record struct {
	CVEID       string
	CVSSScore   *float64
	CVSSVector  *string
	Description string
	Published   *time.Time
}

type nvdResponse struct {
	Vulnerabilities []struct {
		CVE nvdCVE `json:"cve"`
	} `json:"vulnerabilities"`
}

type nvdCVE struct {
	ID           string `json:"id"`
	Published    string `json:"published"`
	Descriptions []struct {
		Lang  string `json:"lang"`
		Value string `json:"value"`
	} `json:"descriptions"`
	Metrics struct {
		CvssMetricV31 []struct {
			CvssData struct {
				BaseScore float64 `json:"baseScore"`
				VectorStr string  `json:"vectorString"`
			} `json:"cvssData"`
		} `json:"cvssMetricV31"`
	} `json:"metrics"`
}

// Client fetches CVE records from NVD.
type Client struct {
	baseURL string
	apiKey  string
	http    *httpfetch.Client
	limiter *rate.Limiter
}

// New returns an NVD client. An empty apiKey selects the unauthenticated
// rate-limit regime and carries a StaticToken that resolves to "" so
// httpfetch skips the Authorization header; NVD authenticates via its own
// "apiKey" header instead of a bearer token, attached per-request below.
func New(apiKey string) *Client {
	rps := unauthenticatedRPS
	if apiKey != "" {
		rps = authenticatedRPS
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    httpfetch.New(httpfetch.StaticToken("")),
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// Lookup fetches a single CVE record, retrying once on a 429 honoring the
// server's Retry-After header.
func (c *Client) Lookup(ctx context.Context, cveID string) (*Record, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("nvd: rate limiter: %w", err)
	}
	record, retryAfter, err := c.fetch(ctx, cveID)
	if retryAfter > 0 {
		select {
		case <-time.After(retryAfter):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		record, _, err = c.fetch(ctx, cveID)
	}
	return record, err
}

// BatchLookup fans Lookup out concurrently across cveIDs, each call still
// throttled by the shared rate limiter; NVD's REST API has no true batch
// endpoint, but spec.md §4.6 still requires the orchestrator-facing call to
// dispatch concurrently rather than one request at a time.
func (c *Client) BatchLookup(ctx context.Context, cveIDs []string) (map[string]*Record, error) {
	out := make(map[string]*Record, len(cveIDs))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, id := range cveIDs {
		id := id
		g.Go(func() error {
			record, err := c.Lookup(gctx, id)
			if err != nil {
				return err
			}
			mu.Lock()
			out[id] = record
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}
	return out, nil
}

// fetch issues one request. If the server responds 429, it returns a
// non-zero retryAfter duration and a nil error so the caller can decide how
// to wait, rather than fetch sleeping itself.
func (c *Client) fetch(ctx context.Context, cveID string) (*Record, time.Duration, error) {
	url := fmt.Sprintf("%s?cveId=%s", c.baseURL, cveID)
	headers := map[string]string{}
	if c.apiKey != "" {
		headers["apiKey"] = c.apiKey
	}

	var parsed nvdResponse
	respHeader, err := c.http.GetJSONWithHeaders(ctx, url, headers, &parsed)
	if err != nil {
		var statusErr *httpfetch.StatusError
		if errors.As(err, &statusErr) && statusErr.Code == http.StatusTooManyRequests {
			return nil, retryAfterDuration(respHeader.Get("Retry-After")), nil
		}
		return nil, 0, fmt.Errorf("nvd: fetch %s: %w", cveID, err)
	}
	if len(parsed.Vulnerabilities) == 0 {
		return nil, 0, nil
	}
	return toRecord(parsed.Vulnerabilities[0].CVE), 0, nil
}

func toRecord(cve nvdCVE) *Record {
	r := &Record{CVEID: cve.ID}
	for _, d := range cve.Descriptions {
		if d.Lang == "en" {
			r.Description = d.Value
			break
		}
	}
	if len(cve.Metrics.CvssMetricV31) > 0 {
		score := cve.Metrics.CvssMetricV31[0].CvssData.BaseScore
		vector := cve.Metrics.CvssMetricV31[0].CvssData.VectorStr
		r.CVSSScore = &score
		r.CVSSVector = &vector
	}
	if cve.Published != "" {
		if t, err := time.Parse(time.RFC3339, cve.Published); err == nil {
			r.Published = &t
		}
	}
	return r
}

// retryAfterDuration parses a Retry-After header into a wait duration. It
// never returns exactly zero, since Lookup treats a zero retryAfter as "no
// retry needed" and a 429 always means one is.
func retryAfterDuration(header string) time.Duration {
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return time.Millisecond
}
