package nvd

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLookup_ParsesCVSSScoreAndDescription(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"vulnerabilities":[{"cve":{"id":"CVE-2024-1","published":"2024-01-01T00:00:00.000","descriptions":[{"lang":"en","value":"a bug"}],"metrics":{"cvssMetricV31":[{"cvssData":{"baseScore":9.8,"vectorString":"AV:N"}}]}}}]}`))
	}))
	defer srv.Close()

	c := New("")
	c.baseURL = srv.URL

	record, err := c.Lookup(context.Background(), "CVE-2024-1")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if record == nil || record.CVSSScore == nil || *record.CVSSScore != 9.8 {
		t.Fatalf("expected cvss score 9.8, got %+v", record)
	}
	if record.Description != "a bug" {
		t.Fatalf("expected description 'a bug', got %q", record.Description)
	}
}

func TestLookup_RetriesOnceAfterRetryAfterHeader(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"vulnerabilities":[]}`))
	}))
	defer srv.Close()

	c := New("")
	c.baseURL = srv.URL

	_, err := c.Lookup(context.Background(), "CVE-2024-2")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected exactly 2 attempts (1 throttled + 1 retry), got %d", attempts)
	}
}
