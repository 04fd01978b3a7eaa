package engram

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"sort"

	"lukechampine.com/blake3"
)

// hashable mirrors Engram but omits ContentHash, and pins field order via
// explicit marshaling below — the canonical form BLAKE3 hashes must be
// bit-exact across runs and across the Rust/Python/Go ports of this
// system (spec.md §9 "BLAKE3 content addressing").
type hashable struct {
	ID          SessionID      `json:"id"`
	Tenant      interface{}    `json:"tenant_id"`
	AgentID     string         `json:"agent_id"`
	Intent      string         `json:"intent"`
	Context     map[string]any `json:"context,omitempty"`
	Decisions   []Decision     `json:"decisions"`
	Actions     []Action       `json:"actions"`
	DeadEnds    []DeadEnd      `json:"dead_ends"`
	StartedAt   string         `json:"started_at"`
	CompletedAt string         `json:"completed_at,omitempty"`
	Outcome     Outcome        `json:"outcome,omitempty"`
	Summary     string         `json:"summary,omitempty"`
}

// canonicalBytes renders e to the canonical JSON form used for hashing
// (FileStore writes an indented rendering of the engram to disk, not these
// bytes): map keys sorted, RFC3339Nano timestamps, no HTML-escaping, a
// single trailing newline.
func canonicalBytes(e *Engram) []byte {
	h := hashable{
		ID:        e.ID,
		Tenant:    e.Tenant.String(),
		AgentID:   e.AgentID,
		Intent:    e.Intent,
		Context:   canonicalizeContext(e.Context),
		Decisions: e.Decisions,
		Actions:   e.Actions,
		DeadEnds:  e.DeadEnds,
		StartedAt: e.StartedAt.Format(rfc3339Nano),
		Outcome:   e.Outcome,
		Summary:   e.Summary,
	}
	if e.CompletedAt != nil {
		h.CompletedAt = e.CompletedAt.Format(rfc3339Nano)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(h); err != nil {
		// Every field of hashable is a concrete, JSON-safe type; encoding
		// can only fail here if that invariant is broken by a future edit.
		panic("engram: canonical encoding failed: " + err.Error())
	}
	return buf.Bytes()
}

const rfc3339Nano = "2006-01-02T15:04:05.999999999Z07:00"

// canonicalizeContext returns a copy of ctx with no behavior beyond what
// encoding/json already guarantees (object keys are sorted by the
// stdlib encoder); kept as a named step so the canonical form is
// documented at the call site rather than assumed.
func canonicalizeContext(ctx map[string]any) map[string]any {
	if ctx == nil {
		return nil
	}
	out := make(map[string]any, len(ctx))
	keys := make([]string, 0, len(ctx))
	for k := range ctx {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out[k] = ctx[k]
	}
	return out
}

// ComputeHash returns the hex-encoded BLAKE3 hash of e's canonical
// serialization, excluding ContentHash itself.
func ComputeHash(e *Engram) string {
	sum := blake3.Sum256(canonicalBytes(e))
	return hex.EncodeToString(sum[:])
}
