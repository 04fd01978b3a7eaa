package core

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// TenantID identifies the isolation unit every node, edge, and operation in
// this core is scoped to (invariant I1).
type TenantID uuid.UUID

// String renders the tenant ID in canonical UUID form.
func (t TenantID) String() string {
	return uuid.UUID(t).String()
}

// NewTenantID generates a fresh random tenant identifier.
func NewTenantID() TenantID {
	return TenantID(uuid.New())
}

// ParseTenantID parses a canonical UUID string into a TenantID.
func ParseTenantID(s string) (TenantID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return TenantID{}, err
	}
	return TenantID(u), nil
}

// MarshalText renders the tenant as its canonical UUID string so
// encoding/json (and anything else driven by TextMarshaler) stores it as a
// string rather than a raw byte array.
func (t TenantID) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText parses a canonical UUID string into t.
func (t *TenantID) UnmarshalText(data []byte) error {
	u, err := uuid.Parse(string(data))
	if err != nil {
		return err
	}
	*t = TenantID(u)
	return nil
}

type tenantContextKey struct{}

// ErrNoTenantInContext is returned by TenantFromContext when no tenant has
// been bound to ctx.
var ErrNoTenantInContext = errors.New("core: no tenant bound to context")

// WithTenant binds tenant to ctx so that code holding only a context can
// recover it with TenantFromContext. The connector runner, graph store,
// enrichment sweep and scan orchestrator take the tenant as an explicit
// parameter instead.
func WithTenant(ctx context.Context, tenant TenantID) context.Context {
	return context.WithValue(ctx, tenantContextKey{}, tenant)
}

// TenantFromContext recovers the tenant bound to ctx by WithTenant.
func TenantFromContext(ctx context.Context) (TenantID, error) {
	v := ctx.Value(tenantContextKey{})
	if v == nil {
		return TenantID{}, ErrNoTenantInContext
	}
	return v.(TenantID), nil
}
