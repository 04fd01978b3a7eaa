package core

import "errors"

// Error kinds from the taxonomy of spec.md §7. Components return these
// (wrapped with context via fmt.Errorf("...: %w", err)) rather than
// inventing ad-hoc error types, so callers can classify failures with
// errors.Is regardless of which component raised them.
var (
	// ErrConfig is malformed configuration or a missing required field.
	// Terminal for the affected connector; never retried.
	ErrConfig = errors.New("config error")

	// ErrCredential is a missing, expired, or rejected credential.
	// Terminal for the run.
	ErrCredential = errors.New("credential error")

	// ErrTransient is a network error, 5xx, 429, or timeout. Retried with
	// bounded exponential backoff; terminal for the sub-unit (not the
	// whole run) once the retry budget is exhausted.
	ErrTransient = errors.New("transient failure")

	// ErrEndpointMissing means an edge referenced a node that does not
	// exist in the same tenant. Recorded as a dead-end; the edge is
	// dropped and the run continues.
	ErrEndpointMissing = errors.New("endpoint missing")

	// ErrSchemaMismatch is a graph backend constraint violation. Terminal
	// for the batch.
	ErrSchemaMismatch = errors.New("schema mismatch")

	// ErrAlreadyRunning is returned when a run is requested for a
	// (tenant, connector) pair that already has a run in progress.
	ErrAlreadyRunning = errors.New("already running")

	// ErrCancelled marks a cooperative cancel observed by a connector or
	// the enrichment sweep.
	ErrCancelled = errors.New("cancelled")

	// ErrEngramStoreUnavailable is an engram buffer overflow or store
	// error. Never aborts the surrounding work.
	ErrEngramStoreUnavailable = errors.New("engram store unavailable")

	// ErrTimeoutExceeded means a per-attempt or per-operation budget was
	// exceeded with no attempts remaining.
	ErrTimeoutExceeded = errors.New("timeout exceeded")

	// ErrTenantMismatch is returned by the graph adapter when an
	// operation's context tenant does not match the tenant embedded in
	// its arguments (invariant I1, enforced structurally).
	ErrTenantMismatch = errors.New("tenant mismatch")
)
