package epss

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

func TestBatchLookup_SplitsIntoGroupsOfBatchSize(t *testing.T) {
	var mu sync.Mutex
	var requests []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests = append(requests, r.URL.Query().Get("cve"))
		mu.Unlock()
		cves := strings.Split(r.URL.Query().Get("cve"), ",")
		var data []string
		for _, cve := range cves {
			data = append(data, fmt.Sprintf(`{"cve":%q,"epss":"0.5","percentile":"0.9"}`, cve))
		}
		w.Write([]byte(`{"data":[` + strings.Join(data, ",") + `]}`))
	}))
	defer srv.Close()

	cveIDs := make([]string, 45)
	for i := range cveIDs {
		cveIDs[i] = fmt.Sprintf("CVE-2024-%d", i)
	}

	c := New(1000)
	c.baseURL = srv.URL

	scores, err := c.BatchLookup(context.Background(), cveIDs)
	if err != nil {
		t.Fatalf("BatchLookup: %v", err)
	}
	if len(requests) != 2 {
		t.Fatalf("expected 2 batched requests for 45 CVEs, got %d", len(requests))
	}
	if len(scores) != 45 {
		t.Fatalf("expected 45 scores, got %d", len(scores))
	}
	if scores["CVE-2024-0"].EPSS != 0.5 {
		t.Fatalf("expected epss 0.5, got %f", scores["CVE-2024-0"].EPSS)
	}
}
