// Package session holds per-sender dialogue state under a sliding TTL.
// The store is the only mutable state shared between in-flight turns:
// updates to the same sender are serialized on a per-sender lock,
// unrelated senders proceed fully in parallel, and eviction shares the
// same per-sender lock so it can never race an in-flight update.
package session

import (
	"time"

	"github.com/google/uuid"
)

// Phase is the confirmation-protocol state of a session.
type Phase string

const (
	// PhaseIdle means no answer is pending confirmation.
	PhaseIdle Phase = "idle"

	// PhaseAwaitingConfirmation means a summary was sent and the full
	// answer waits for an explicit confirm.
	PhaseAwaitingConfirmation Phase = "awaiting_confirmation"
)

// PendingAction is the parked request behind an awaiting_confirmation
// phase: enough to dispatch the original tool call on confirm.
type PendingAction struct {
	Intent    string
	Slots     map[string]string
	Summary   string
	Cost      float64
	CreatedAt time.Time
}

// State is one sender's dialogue state. All mutation happens inside
// Store.Update under the sender's lock; code outside this package only
// ever sees copies.
type State struct {
	// ID identifies this session instance. A sender returning after
	// TTL eviction gets a new ID.
	ID string

	SenderID     string
	CreatedAt    time.Time
	LastActivity time.Time

	Phase Phase

	// Slots carries slot values across turns. Values survive until
	// overwritten by a newer turn or the whole session is evicted;
	// a slot irrelevant to the current intent is kept, just ignored.
	Slots map[string]string

	// FallbackStreak counts consecutive fallback resolutions.
	FallbackStreak int

	// IntentHistory is a bounded window of recently resolved intents,
	// newest last.
	IntentHistory []string

	// Pending is the request awaiting confirmation, nil when idle.
	Pending *PendingAction
}

func newState(senderID string, now time.Time) *State {
	return &State{
		ID:           uuid.NewString(),
		SenderID:     senderID,
		CreatedAt:    now,
		LastActivity: now,
		Phase:        PhaseIdle,
		Slots:        make(map[string]string),
	}
}

// MergeSlots folds this turn's extracted slots into the carried ones.
// A new value wins; absent keys keep their carried value.
func (s *State) MergeSlots(turnSlots map[string]string) {
	if s.Slots == nil {
		s.Slots = make(map[string]string)
	}
	for name, value := range turnSlots {
		if value != "" {
			s.Slots[name] = value
		}
	}
}

// RecordIntent appends a resolved intent to the bounded history.
func (s *State) RecordIntent(intent string, limit int) {
	s.IntentHistory = append(s.IntentHistory, intent)
	if limit > 0 && len(s.IntentHistory) > limit {
		s.IntentHistory = s.IntentHistory[len(s.IntentHistory)-limit:]
	}
}

// ClearPending drops the parked request and returns to idle.
func (s *State) ClearPending() {
	s.Pending = nil
	s.Phase = PhaseIdle
}

// clone returns a deep copy safe to hand outside the store.
func (s *State) clone() State {
	out := *s
	out.Slots = make(map[string]string, len(s.Slots))
	for k, v := range s.Slots {
		out.Slots[k] = v
	}
	out.IntentHistory = append([]string(nil), s.IntentHistory...)
	if s.Pending != nil {
		pending := *s.Pending
		pending.Slots = make(map[string]string, len(s.Pending.Slots))
		for k, v := range s.Pending.Slots {
			pending.Slots[k] = v
		}
		out.Pending = &pending
	}
	return out
}
