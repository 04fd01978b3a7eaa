package kev

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, body string) (*Client, *int32) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	c := New(time.Hour)
	c.url = srv.URL
	return c, &calls
}

func TestLookup_FindsCatalogedCVE(t *testing.T) {
	c, _ := newTestClient(t, `{"vulnerabilities":[{"cveID":"CVE-2021-44228","vulnerabilityName":"Log4Shell"}]}`)
	found, err := c.Lookup(context.Background(), "CVE-2021-44228")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !found {
		t.Fatal("expected CVE-2021-44228 to be found in KEV catalog")
	}
	found, err = c.Lookup(context.Background(), "CVE-0000-00000")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if found {
		t.Fatal("expected unknown CVE to be absent")
	}
}

func TestLookup_DoesNotRefetchWithinRefreshInterval(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"vulnerabilities":[]}`))
	}))
	defer srv.Close()

	c := New(time.Hour)
	c.url = srv.URL

	ctx := context.Background()
	if _, err := c.Lookup(ctx, "CVE-1"); err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if _, err := c.Lookup(ctx, "CVE-2"); err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly 1 fetch, got %d", calls)
	}
}

func TestBatchLookup_ReturnsMembershipForEveryRequestedID(t *testing.T) {
	c, _ := newTestClient(t, `{"vulnerabilities":[{"cveID":"CVE-A"}]}`)
	got, err := c.BatchLookup(context.Background(), []string{"CVE-A", "CVE-B"})
	if err != nil {
		t.Fatalf("BatchLookup: %v", err)
	}
	if !got["CVE-A"] || got["CVE-B"] {
		t.Fatalf("unexpected batch lookup result: %+v", got)
	}
}
