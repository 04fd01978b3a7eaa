package engram

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sentinel/discovery-engine/internal/core"
)

// Clock returns the current time. Discovery and enrichment code should
// carry time as an explicit parameter (spec.md §4.1); Session uses a Clock
// only for its own internal bookkeeping (timestamping records as they are
// appended), and tests can substitute a fixed clock.
type Clock func() time.Time

// Session records the reasoning trail of exactly one connector run or
// enrichment sweep. It is not safe for concurrent use by multiple
// goroutines — each task owns its session exclusively (spec.md §5).
type Session struct {
	engram Engram
	clock  Clock
	store  Store
	closed bool
}

// Open starts a new engram session. agentID identifies the connector or
// enrichment job; intent is a short human-readable description of what
// this run is trying to do; context carries structured parameters (e.g.
// {"tenant": ..., "regions": [...]})
func Open(tenant core.TenantID, agentID, intent string, context map[string]any, store Store) *Session {
	return newSession(tenant, agentID, intent, context, store, time.Now)
}

func newSession(tenant core.TenantID, agentID, intent string, ctxData map[string]any, store Store, clock Clock) *Session {
	return &Session{
		engram: Engram{
			ID:        SessionID(uuid.New()),
			Tenant:    tenant,
			AgentID:   agentID,
			Intent:    intent,
			Context:   ctxData,
			Decisions: []Decision{},
			Actions:   []Action{},
			DeadEnds:  []DeadEnd{},
			StartedAt: clock(),
		},
		clock: clock,
		store: store,
	}
}

// ID returns the session identifier, stable for the session's lifetime.
func (s *Session) ID() SessionID { return s.engram.ID }

// Tenant returns the tenant this session was opened for.
func (s *Session) Tenant() core.TenantID { return s.engram.Tenant }

// RecordDecision appends a decision: what was considered, what was chosen,
// and why.
func (s *Session) RecordDecision(description string, alternatives []string, chosen, rationale string) {
	s.engram.Decisions = append(s.engram.Decisions, Decision{
		Description:  description,
		Alternatives: alternatives,
		Chosen:       chosen,
		Rationale:    rationale,
		Timestamp:    s.clock(),
	})
}

// RecordAction appends a concrete action the session took.
func (s *Session) RecordAction(kind, target, outcome string, counts map[string]int64) {
	s.engram.Actions = append(s.engram.Actions, Action{
		Kind:      kind,
		Target:    target,
		Outcome:   outcome,
		Counts:    counts,
		Timestamp: s.clock(),
	})
}

// RecordDeadEnd appends a sub-failure that did not abort the run.
func (s *Session) RecordDeadEnd(description, evidence string) {
	s.engram.DeadEnds = append(s.engram.DeadEnds, DeadEnd{
		Description: description,
		Evidence:    evidence,
		Timestamp:   s.clock(),
	})
}

// DeadEndCount reports how many dead-ends have been recorded so far.
func (s *Session) DeadEndCount() int { return len(s.engram.DeadEnds) }

// Close finalizes the session with a terminal outcome and summary, computes
// its content hash, and persists it to the configured Store. Engram
// failures never abort the surrounding work: if the store is unavailable,
// Close returns a wrapped core.ErrEngramStoreUnavailable but the caller's
// own run status is unaffected by this return value.
func (s *Session) Close(ctx context.Context, outcome Outcome, summary string) (*Engram, error) {
	if s.closed {
		return &s.engram, nil
	}
	now := s.clock()
	s.engram.CompletedAt = &now
	s.engram.Outcome = outcome
	s.engram.Summary = summary
	s.engram.ContentHash = ComputeHash(&s.engram)
	s.closed = true

	if s.store == nil {
		return &s.engram, nil
	}
	if err := s.store.Save(ctx, &s.engram); err != nil {
		return &s.engram, fmt.Errorf("%w: %s", core.ErrEngramStoreUnavailable, err)
	}
	return &s.engram, nil
}
