package dialogue

import (
	"time"

	"github.com/google/uuid"
)

// Step is one timed stage of a turn.
type Step struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
}

// Trace is the execution record of a single turn. Observability only:
// nothing in the dialogue flow reads it back.
type Trace struct {
	TurnID     string        `json:"turn_id"`
	SenderID   string        `json:"sender_id"`
	SessionID  string        `json:"session_id"`
	Intent     string        `json:"intent"`
	Confidence float64       `json:"confidence"`
	Provenance string        `json:"provenance"`
	ReplyMode  Mode          `json:"reply_mode"`
	Steps      []Step        `json:"steps"`
	StartedAt  time.Time     `json:"started_at"`
	Total      time.Duration `json:"total"`
}

func newTrace(senderID string) *Trace {
	return &Trace{
		TurnID:    uuid.NewString(),
		SenderID:  senderID,
		StartedAt: time.Now(),
	}
}

// step starts timing a named stage; the returned func closes it.
func (t *Trace) step(name string) func() {
	start := time.Now()
	return func() {
		t.Steps = append(t.Steps, Step{Name: name, Duration: time.Since(start)})
	}
}

// StepDuration returns the duration of a named step, zero if absent.
func (t *Trace) StepDuration(name string) time.Duration {
	for _, s := range t.Steps {
		if s.Name == name {
			return s.Duration
		}
	}
	return 0
}
