package dialogue

// DefaultEscalateAt is the consecutive-fallback count that forces the
// guided-help menu.
const DefaultEscalateAt = 3

// suggestionCount bounds how many capabilities a gentle fallback reply
// lists before the full menu kicks in.
const suggestionCount = 3

// fallbackDecision is the outcome of the fallback-recovery policy for
// one unclassifiable turn.
type fallbackDecision struct {
	// escalate forces the guided-help menu and resets the streak.
	escalate bool

	// streak is the value to store back in the session.
	streak int
}

// decideFallback applies the streak policy. prior is the streak before
// this turn.
func decideFallback(prior, escalateAt int) fallbackDecision {
	if escalateAt <= 0 {
		escalateAt = DefaultEscalateAt
	}
	next := prior + 1
	if next >= escalateAt {
		return fallbackDecision{escalate: true, streak: 0}
	}
	return fallbackDecision{streak: next}
}
