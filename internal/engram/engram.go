// Package engram implements the tamper-evident, content-addressed
// reasoning log captured around every connector run and enrichment sweep
// (spec.md §4.2). A session is opened with an intent, accumulates
// decisions, actions, and dead-ends as the work proceeds, and is closed
// with a terminal outcome; closing finalizes the canonical serialization
// and its BLAKE3 content address.
package engram

import (
	"time"

	"github.com/google/uuid"

	"github.com/sentinel/discovery-engine/internal/core"
)

// Outcome is the terminal status of a session.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomePartial Outcome = "partial"
	OutcomeFailed  Outcome = "failed"
)

// SessionID uniquely identifies one engram session.
type SessionID uuid.UUID

func (s SessionID) String() string { return uuid.UUID(s).String() }

// MarshalText renders the session id as its canonical UUID string.
func (s SessionID) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a canonical UUID string into s.
func (s *SessionID) UnmarshalText(data []byte) error {
	u, err := uuid.Parse(string(data))
	if err != nil {
		return err
	}
	*s = SessionID(u)
	return nil
}

// Decision records a choice made during the session, the alternatives that
// were weighed, and why the chosen option won.
type Decision struct {
	Description  string    `json:"description"`
	Alternatives []string  `json:"alternatives"`
	Chosen       string    `json:"chosen"`
	Rationale    string    `json:"rationale"`
	Timestamp    time.Time `json:"timestamp"`
}

// Action records one concrete step the session took and its outcome.
type Action struct {
	Kind      string           `json:"kind"`
	Target    string           `json:"target"`
	Outcome   string           `json:"outcome"`
	Counts    map[string]int64 `json:"counts,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// DeadEnd records a sub-failure that did not abort the surrounding run:
// a skipped resource, an unresolvable mapping, a dropped edge.
type DeadEnd struct {
	Description string    `json:"description"`
	Evidence    string    `json:"evidence"`
	Timestamp   time.Time `json:"timestamp"`
}

// Engram is the complete, append-only reasoning trail of one unit of work.
// Every field except ContentHash participates in the content address
// (invariant I7); any post-hoc mutation of a stored engram is detectable
// by recomputing the hash and comparing (property P5).
type Engram struct {
	ID          SessionID         `json:"id"`
	Tenant      core.TenantID     `json:"tenant_id"`
	AgentID     string            `json:"agent_id"`
	Intent      string            `json:"intent"`
	Context     map[string]any    `json:"context,omitempty"`
	Decisions   []Decision        `json:"decisions"`
	Actions     []Action          `json:"actions"`
	DeadEnds    []DeadEnd         `json:"dead_ends"`
	StartedAt   time.Time         `json:"started_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	Outcome     Outcome           `json:"outcome,omitempty"`
	Summary     string            `json:"summary,omitempty"`
	ContentHash string            `json:"content_hash,omitempty"`
}

// VerifyIntegrity recomputes the content hash of e and reports whether it
// matches the recorded ContentHash (property P5).
func (e *Engram) VerifyIntegrity() bool {
	if e.ContentHash == "" {
		return false
	}
	return e.ContentHash == ComputeHash(e)
}
