// Package perception turns free-form user text into a catalog intent
// plus extracted slots. Two layers run in order: a fast pattern-based
// heuristic classifier, then (only when the heuristic has no confident
// match) a semantic classifier backed by an external completion
// service. Both produce the same Result shape so downstream code never
// cares which layer answered.
package perception

import "plando/internal/catalog"

// Provenance records which layer produced a classification.
type Provenance string

const (
	// ProvenanceHeuristic marks a pattern-matched classification.
	ProvenanceHeuristic Provenance = "heuristic"

	// ProvenanceSemantic marks a completion-service classification.
	ProvenanceSemantic Provenance = "semantic"
)

// Result is one turn's classification.
type Result struct {
	// Intent is a catalog intent name, or catalog.IntentFallback when
	// nothing usable was produced.
	Intent string

	// Confidence is in [0,1].
	Confidence float64

	// Slots holds the slot values extracted from this turn's text.
	Slots map[string]string

	// NeedsClarification signals a low-confidence match the
	// orchestrator may want to double-check with the user.
	NeedsClarification bool

	// Provenance tells which layer answered.
	Provenance Provenance
}

// IsFallback reports whether the classification failed.
func (r *Result) IsFallback() bool {
	return r == nil || r.Intent == catalog.IntentFallback
}

// Fallback returns the synthetic could-not-classify result.
func Fallback(p Provenance) *Result {
	return &Result{
		Intent:     catalog.IntentFallback,
		Confidence: 0,
		Provenance: p,
	}
}

// Context is the read-only conversational context classification runs
// against. AwaitingConfirmation gates the bare confirm/decline tokens;
// Metadata and CarriedSlots only feed the semantic prompt.
type Context struct {
	AwaitingConfirmation bool
	Metadata             map[string]string
	CarriedSlots         map[string]string
}
