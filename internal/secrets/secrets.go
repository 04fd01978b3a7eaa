// Package secrets resolves the opaque credential_ref every connector
// config carries (spec.md §4.4) against whichever secret store the
// deployment uses. Credentials a Resolver returns must never be logged,
// included in a SyncResult, or persisted in an engram session.
package secrets

import (
	"context"
	"fmt"
	"os"
)

// Resolver turns a credential_ref into the credential material a connector
// needs. Implementations are swappable per deployment (env vars in
// development, a vault or cloud secret manager in production) behind this
// one interface, following the same interface-first style the rest of the
// connector surface uses for its external clients.
type Resolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

// ErrNotFound is returned when ref names no known secret.
var ErrNotFound = fmt.Errorf("secrets: credential not found")

// EnvResolver resolves a credential_ref of the form "env:VAR_NAME" against
// the process environment. It is the default in development and in any
// deployment where secrets are injected by the orchestrator as environment
// variables (grounded on the teacher's own reliance on ambient AWS
// environment/shared-config credentials rather than a secret-manager SDK).
type EnvResolver struct{}

// Resolve looks up ref, which must be prefixed "env:", in the environment.
func (EnvResolver) Resolve(ctx context.Context, ref string) (string, error) {
	const prefix = "env:"
	if len(ref) <= len(prefix) || ref[:len(prefix)] != prefix {
		return "", fmt.Errorf("secrets: credential_ref %q must start with %q", ref, prefix)
	}
	name := ref[len(prefix):]
	v, ok := os.LookupEnv(name)
	if !ok {
		return "", fmt.Errorf("secrets: %s: %w", name, ErrNotFound)
	}
	return v, nil
}
