package gcp

import (
	"context"
	"testing"
	"time"

	"github.com/sentinel/discovery-engine/internal/connector"
	"github.com/sentinel/discovery-engine/internal/core"
)

type fakeFetcher struct {
	instances []Instance
	accounts  []ServiceAccount
}

func (f *fakeFetcher) ListInstances(ctx context.Context, projectID string) ([]Instance, error) {
	return f.instances, nil
}
func (f *fakeFetcher) ListServiceAccounts(ctx context.Context, projectID string) ([]ServiceAccount, error) {
	return f.accounts, nil
}

func TestDiscover_EmitsHostsAndServiceAccountUsers(t *testing.T) {
	inst := Instance{ID: "123", Name: "vm-1", Zone: "us-central1-a", Status: "RUNNING"}
	inst.NetworkInterfaces = []struct {
		NetworkIP string `json:"networkIP"`
	}{{NetworkIP: "10.2.0.5"}}

	fetcher := &fakeFetcher{
		instances: []Instance{inst},
		accounts:  []ServiceAccount{{Name: "sa-1", Email: "sa-1@proj.iam.gserviceaccount.com", DisplayName: "sa-1"}},
	}
	conn := &Connector{ProjectID: "proj", Fetcher: fetcher, Now: func() time.Time { return time.Unix(0, 0) }}

	result, err := conn.Discover(context.Background(), core.NewTenantID(), connector.Config{})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(result.Hosts) != 1 || result.Hosts[0].IP != "10.2.0.5" {
		t.Fatalf("expected 1 host with ip 10.2.0.5, got %+v", result.Hosts)
	}
	if result.Hosts[0].CloudRegion == nil || *result.Hosts[0].CloudRegion != "us-central1" {
		t.Fatalf("expected region us-central1, got %+v", result.Hosts[0].CloudRegion)
	}
	if len(result.Users) != 1 || result.Users[0].UserType != core.UserTypeServiceAccount {
		t.Fatalf("expected 1 service-account user, got %+v", result.Users)
	}
	if result.Status != connector.StatusSuccess {
		t.Fatalf("expected success status, got %v", result.Status)
	}
}

func TestZoneToRegion_StripsZoneSuffixAndURLPrefix(t *testing.T) {
	cases := map[string]string{
		"us-central1-a":                                     "us-central1",
		"https://www.googleapis.com/compute/v1/zones/europe-west1-b": "europe-west1",
	}
	for in, want := range cases {
		if got := zoneToRegion(in); got != want {
			t.Errorf("zoneToRegion(%q) = %q, want %q", in, got, want)
		}
	}
}
