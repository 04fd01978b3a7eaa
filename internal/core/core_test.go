package core

import (
	"context"
	"testing"
	"time"
)

func TestSeverityForCVSS_Boundaries(t *testing.T) {
	cases := []struct {
		score float64
		want  VulnSeverity
	}{
		{0.0, VulnSeverityNone},
		{4.0, VulnSeverityMedium},
		{6.9, VulnSeverityMedium},
		{7.0, VulnSeverityHigh},
		{8.9, VulnSeverityHigh},
		{9.0, VulnSeverityCritical},
		{10.0, VulnSeverityCritical},
	}
	for _, c := range cases {
		if got := SeverityForCVSS(c.score); got != c.want {
			t.Errorf("SeverityForCVSS(%v) = %v, want %v", c.score, got, c.want)
		}
	}
}

func TestNaturalKey_Deterministic(t *testing.T) {
	tenant := NewTenantID()
	k1 := NaturalKey("Host", tenant.String(), "10.0.0.1", "i-123")
	k2 := NaturalKey("Host", tenant.String(), "10.0.0.1", "i-123")
	if k1 != k2 {
		t.Fatalf("NaturalKey not deterministic: %q != %q", k1, k2)
	}
}

func TestNaturalKey_DistinguishesLabel(t *testing.T) {
	tenant := NewTenantID()
	hostKey := NaturalKey("Host", tenant.String(), "x")
	svcKey := NaturalKey("Service", tenant.String(), "x")
	if hostKey == svcKey {
		t.Fatalf("NaturalKey collided across labels")
	}
}

func TestNewHost_StampsFirstAndLastSeen(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tenant := NewTenantID()
	h := NewHost(tenant, "10.0.0.1", "i-abc", now)
	if !h.FirstSeen().Equal(now) || !h.LastSeen().Equal(now) {
		t.Fatalf("expected first/last seen stamped to %v, got first=%v last=%v", now, h.FirstSeen(), h.LastSeen())
	}
}

func TestEdgeNaturalKey_OrderMatters(t *testing.T) {
	tenant := NewTenantID()
	k1 := EdgeNaturalKey(tenant, EdgeBelongsToSubnet, "a", "b")
	k2 := EdgeNaturalKey(tenant, EdgeBelongsToSubnet, "b", "a")
	if k1 == k2 {
		t.Fatalf("edge natural key must be direction-sensitive")
	}
}

func TestTenantContext_RoundTrip(t *testing.T) {
	tenant := NewTenantID()
	ctx := WithTenant(context.Background(), tenant)
	got, err := TenantFromContext(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != tenant {
		t.Fatalf("got tenant %v, want %v", got, tenant)
	}
}

func TestTenantContext_MissingReturnsError(t *testing.T) {
	if _, err := TenantFromContext(context.Background()); err != ErrNoTenantInContext {
		t.Fatalf("expected ErrNoTenantInContext, got %v", err)
	}
}
