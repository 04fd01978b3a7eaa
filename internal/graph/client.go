// Package graph implements the tenant-scoped property-graph adapter over
// Neo4j (spec.md §4.3). Every read and write threads tenant_id as a bound
// Cypher parameter; callers can never override it, which is how invariant
// I1 (structural tenant isolation) is enforced at this layer rather than
// trusted to callers.
package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"

	"github.com/sentinel/discovery-engine/internal/core"
	"github.com/sentinel/discovery-engine/internal/events"
)

// Config holds the connection parameters for the backing Neo4j instance.
type Config struct {
	URI      string
	Username string
	Password string
	Database string
}

// Store is the C3 graph store adapter. It is safe for concurrent use; the
// underlying driver pools its own connections.
type Store struct {
	driver   neo4j.DriverWithContext
	database string
	bus      events.Bus
}

// New opens a driver against cfg, verifies connectivity, and ensures the
// schema (constraints and indexes) exists before returning.
func New(ctx context.Context, cfg Config, bus events.Bus) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("graph: creating driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("graph: verifying connectivity: %w", err)
	}
	s := &Store{driver: driver, database: cfg.Database, bus: bus}
	if err := s.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("graph: ensuring schema: %w", err)
	}
	return s, nil
}

// Close releases the underlying driver's resources.
func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func (s *Store) newSession(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   mode,
		DatabaseName: s.database,
	})
}

// retryPolicy bounds backend contention retries to five attempts with
// exponential backoff, per spec.md §4.3 "Concurrency".
func retryPolicy() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	return backoff.WithMaxRetries(b, 4)
}

// classifyRetryable reports whether err is a transient Neo4j condition
// (lock contention, deadlock, leader switch) worth retrying, as opposed to
// a client error or constraint violation that will never succeed on retry.
// Neo4j status codes classify themselves by their second segment
// (Neo.TransientError.*, Neo.ClientError.*, Neo.DatabaseError.*); only the
// first is worth another attempt.
func classifyRetryable(err error) bool {
	if err == nil {
		return false
	}
	var neoErr *db.Neo4jError
	if errors.As(err, &neoErr) {
		return strings.Contains(neoErr.Code, ".TransientError.")
	}
	// Network-level errors (timeouts, connection resets) surface as plain
	// errors from the driver, not *db.Neo4jError; treat them as transient
	// since they are almost always connectivity blips rather than a
	// permanently invalid query.
	return true
}

// runWrite executes work inside a write transaction, retrying transient
// backend failures with bounded exponential backoff.
func (s *Store) runWrite(ctx context.Context, work neo4j.ManagedTransactionWork) (any, error) {
	session := s.newSession(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	var result any
	op := func() error {
		r, err := session.ExecuteWrite(ctx, work)
		if err != nil {
			if !classifyRetryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		result = r
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(retryPolicy(), ctx)); err != nil {
		return nil, unwrapPermanent(err)
	}
	return result, nil
}

func (s *Store) runRead(ctx context.Context, work neo4j.ManagedTransactionWork) (any, error) {
	session := s.newSession(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	var result any
	op := func() error {
		r, err := session.ExecuteRead(ctx, work)
		if err != nil {
			if !classifyRetryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		result = r
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(retryPolicy(), ctx)); err != nil {
		return nil, unwrapPermanent(err)
	}
	return result, nil
}

func unwrapPermanent(err error) error {
	if pe, ok := err.(*backoff.PermanentError); ok {
		return pe.Err
	}
	return err
}

// requireTenant checks the caller-supplied filter of ListNodes, the only
// method that takes one, before its query is built: it guarantees such a
// filter can never smuggle in a competing tenant_id (P1).
func requireTenant(filter map[string]any) error {
	if _, present := filter["tenant_id"]; present {
		return fmt.Errorf("graph: filter must not set tenant_id directly: %w", core.ErrTenantMismatch)
	}
	return nil
}
