package perception

import (
	"testing"

	"plando/internal/catalog"
)

func TestHeuristicDelayedPlans(t *testing.T) {
	h := NewHeuristicClassifier()

	for _, text := range []string{
		"piani in ritardo",
		"quali piani sono in ritardo?",
		"which plans are delayed?",
		"show me the late plans",
	} {
		result := h.Classify(text, Context{})
		if result == nil {
			t.Errorf("%q: expected a heuristic match", text)
			continue
		}
		if result.Intent != "ask_delayed_plans" {
			t.Errorf("%q: intent = %s, want ask_delayed_plans", text, result.Intent)
		}
		if result.Confidence < 0.9 {
			t.Errorf("%q: confidence %.2f below heuristic floor", text, result.Confidence)
		}
		if result.Provenance != ProvenanceHeuristic {
			t.Errorf("%q: provenance = %s", text, result.Provenance)
		}
	}
}

func TestHeuristicSlotExtraction(t *testing.T) {
	h := NewHeuristicClassifier()

	tests := []struct {
		text   string
		intent string
		slot   string
		value  string
	}{
		{"stato del piano P-102", "ask_plan_status", "plan_id", "P-102"},
		{"what's the status of plan p-102?", "ask_plan_status", "plan_id", "P-102"},
		{"rischio del piano P-104", "ask_plan_risk", "plan_id", "P-104"},
		{"piani dell'unità Logistica", "ask_plans_by_unit", "org_unit", "logistica"},
		{"show plans for unit Finance", "ask_plans_by_unit", "org_unit", "finance"},
	}

	for _, tt := range tests {
		result := h.Classify(tt.text, Context{})
		if result == nil {
			t.Errorf("%q: no match", tt.text)
			continue
		}
		if result.Intent != tt.intent {
			t.Errorf("%q: intent = %s, want %s", tt.text, result.Intent, tt.intent)
		}
		if got := result.Slots[tt.slot]; got != tt.value {
			t.Errorf("%q: slot %s = %q, want %q", tt.text, tt.slot, got, tt.value)
		}
	}
}

func TestHeuristicIntentWithoutSlotStillMatches(t *testing.T) {
	h := NewHeuristicClassifier()

	result := h.Classify("qual è lo stato del piano?", Context{})
	if result == nil || result.Intent != "ask_plan_status" {
		t.Fatalf("result = %+v, want ask_plan_status", result)
	}
	if result.Slots["plan_id"] != "" {
		t.Errorf("unexpected plan_id %q", result.Slots["plan_id"])
	}
}

// Bare affirmation tokens resolve to confirm only while the session is
// awaiting confirmation. Outside that phase they must fall through to
// the semantic layer.
func TestBareTokensPhaseGated(t *testing.T) {
	h := NewHeuristicClassifier()

	tokens := map[string]string{
		"sì":       catalog.IntentConfirm,
		"yes":      catalog.IntentConfirm,
		"va bene!": catalog.IntentConfirm,
		"ok":       catalog.IntentConfirm,
		"no":       catalog.IntentDecline,
		"annulla":  catalog.IntentDecline,
		"cancel":   catalog.IntentDecline,
	}

	for token, want := range tokens {
		if result := h.Classify(token, Context{}); result != nil {
			t.Errorf("%q outside confirmation phase matched %s, want no match", token, result.Intent)
		}
		result := h.Classify(token, Context{AwaitingConfirmation: true})
		if result == nil {
			t.Errorf("%q while awaiting confirmation: no match", token)
			continue
		}
		if result.Intent != want {
			t.Errorf("%q while awaiting confirmation: intent = %s, want %s", token, result.Intent, want)
		}
	}
}

// A specific multi-word request must win over the bare-token rules even
// while awaiting confirmation: "piani in ritardo" during confirmation
// is a new question, not a confirm.
func TestSpecificPatternsBeforeBareTokens(t *testing.T) {
	h := NewHeuristicClassifier()

	result := h.Classify("piani in ritardo", Context{AwaitingConfirmation: true})
	if result == nil || result.Intent != "ask_delayed_plans" {
		t.Fatalf("result = %+v, want ask_delayed_plans", result)
	}
}

func TestHeuristicNoMatch(t *testing.T) {
	h := NewHeuristicClassifier()

	for _, text := range []string{
		"",
		"   ",
		"xyzzy frobnicate",
		"tell me a story about dragons",
	} {
		if result := h.Classify(text, Context{}); result != nil {
			t.Errorf("%q: unexpected match %s", text, result.Intent)
		}
	}
}

func TestHeuristicGreetAndHelp(t *testing.T) {
	h := NewHeuristicClassifier()

	if r := h.Classify("ciao!", Context{}); r == nil || r.Intent != "greet" {
		t.Errorf("ciao! => %+v, want greet", r)
	}
	if r := h.Classify("cosa sai fare?", Context{}); r == nil || r.Intent != "help" {
		t.Errorf("cosa sai fare? => %+v, want help", r)
	}
}

func TestHeuristicAllUnitsHint(t *testing.T) {
	h := NewHeuristicClassifier()

	r := h.Classify("full report for the whole portfolio", Context{})
	if r == nil || r.Intent != "ask_portfolio_report" {
		t.Fatalf("result = %+v, want ask_portfolio_report", r)
	}
	if r.Slots["org_unit"] != "all" {
		t.Errorf("org_unit = %q, want all", r.Slots["org_unit"])
	}
}
