package orchestrator

import "github.com/sentinel/discovery-engine/internal/core"

// ActionabilityThreshold is the CVSS score at or above which a vulnerability is
// actionable on severity alone, independent of KEV or EPSS signal.
const ActionabilityThreshold = 9.0

// EPSSThreshold is the EPSS probability at or above which a vulnerability is
// actionable on predicted-exploitation likelihood alone.
const EPSSThreshold = 0.5

// IsActionable is the pure predicate over a Vulnerability's own fields:
// in_kev OR epss >= 0.5 OR cvss >= 9.0 (spec.md §4.6). It never makes a
// network call and never depends on anything but the node's current state.
func IsActionable(v *core.Vulnerability) bool {
	if v.InKEV {
		return true
	}
	if v.EPSSScore != nil && *v.EPSSScore >= EPSSThreshold {
		return true
	}
	if v.CVSSScore != nil && *v.CVSSScore >= ActionabilityThreshold {
		return true
	}
	return false
}
