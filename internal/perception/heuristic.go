package perception

import (
	"regexp"
	"strings"

	"plando/internal/catalog"
	"plando/internal/logging"
)

// =============================================================================
// PATTERN CORPUS
// =============================================================================
// Rules are tried strictly in order: specific multi-word patterns
// first, short/ambiguous tokens last. The bare affirmation/negation
// rules additionally require the session to be awaiting confirmation;
// outside that phase a lone "sì" or "no" falls through to the semantic
// layer instead of being guessed. That ordering and gating is a
// correctness invariant, not a tuning knob.

// heuristicRule maps patterns to one intent.
type heuristicRule struct {
	Intent     string
	Patterns   []*regexp.Regexp
	Confidence float64

	// ConfirmationOnly rules match only while awaiting confirmation.
	ConfirmationOnly bool

	// SlotExtractors pulls slot values out of the raw text after a
	// pattern matched. Missing values are fine; the router asks a
	// follow-up for unfilled required slots.
	SlotExtractors map[string]*regexp.Regexp
}

var (
	planIDPattern  = regexp.MustCompile(`(?i)\b(P-\d+)\b`)
	orgUnitPattern = regexp.MustCompile(`(?i)\b(?:unit[aà]|unit|team|reparto)\s+([a-zA-Z]+)\b`)
	allUnitsHint   = regexp.MustCompile(`(?i)\b(all units|tutte le unit[aà]|whole portfolio|tutto il portfolio)\b`)
)

var heuristicRules = []heuristicRule{
	{
		Intent:     "ask_delayed_plans",
		Confidence: 0.95,
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(piani|progetti)\b.*\bin\s+ritardo\b`),
			regexp.MustCompile(`(?i)\b(delayed|late|overdue)\b.*\bplans?\b`),
			regexp.MustCompile(`(?i)\bplans?\b.*\b(delayed|late|behind schedule|overdue)\b`),
		},
	},
	{
		Intent:     "ask_plan_risk",
		Confidence: 0.92,
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(rischio|rischios[oa]|risk|risky)\b.*\b(piano|plan|progetto|P-\d+)\b`),
			regexp.MustCompile(`(?i)\b(piano|plan)\b.*\b(rischio|risk)\b`),
		},
		SlotExtractors: map[string]*regexp.Regexp{"plan_id": planIDPattern},
	},
	{
		Intent:     "ask_plan_status",
		Confidence: 0.92,
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(stato|status|avanzamento)\b.*\b(piano|plan|progetto|P-\d+)\b`),
			regexp.MustCompile(`(?i)\b(come procede|how is)\b.*\b(piano|plan|P-\d+)\b`),
		},
		SlotExtractors: map[string]*regexp.Regexp{"plan_id": planIDPattern},
	},
	{
		Intent:     "ask_portfolio_report",
		Confidence: 0.9,
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(report|rapporto|resoconto)\b.*\b(portfolio|portafoglio|completo|full)\b`),
			regexp.MustCompile(`(?i)\b(full|complete)\s+report\b`),
		},
		SlotExtractors: map[string]*regexp.Regexp{"org_unit": orgUnitPattern},
	},
	{
		Intent:     "ask_plans_by_unit",
		Confidence: 0.9,
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(piani|plans?|progetti)\b.*\b(?:unit[aà]|unit|team|reparto)\s+[a-zA-Z]+\b`),
			regexp.MustCompile(`(?i)\b(?:unit[aà]|unit|team|reparto)\s+[a-zA-Z]+\b.*\b(piani|plans?)\b`),
		},
		SlotExtractors: map[string]*regexp.Regexp{"org_unit": orgUnitPattern},
	},
	{
		Intent:     "greet",
		Confidence: 0.95,
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)^\s*(ciao|salve|buongiorno|buonasera|hello|hi|hey)\s*[!.]*\s*$`),
		},
	},
	{
		Intent:     "help",
		Confidence: 0.95,
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)^\s*(aiuto|help)\s*[!.]*\s*$`),
			regexp.MustCompile(`(?i)^\s*(cosa sai fare|what can you do)\s*\??\s*$`),
		},
	},

	// Bare confirmation tokens. Last on purpose, and phase-gated: see
	// the package comment above.
	{
		Intent:           catalog.IntentConfirm,
		Confidence:       0.98,
		ConfirmationOnly: true,
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)^\s*(s[ìi]|yes|yep|ok|okay|va bene|certo|conferma|confermo|procedi|vai pure|sure|do it|go ahead)\s*[!.]*\s*$`),
		},
	},
	{
		Intent:           catalog.IntentDecline,
		Confidence:       0.98,
		ConfirmationOnly: true,
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)^\s*(no|no grazie|annulla|lascia stare|non importa|meglio di no|cancel|never ?mind|stop|don't)\s*[!.]*\s*$`),
		},
	},
}

// =============================================================================
// HEURISTIC CLASSIFIER
// =============================================================================

// HeuristicClassifier is the fast pattern-based intent matcher run
// before any semantic call. It is a pure function of text and phase:
// no state, no side effects.
type HeuristicClassifier struct {
	rules []heuristicRule
}

// NewHeuristicClassifier builds the classifier over the built-in
// corpus.
func NewHeuristicClassifier() *HeuristicClassifier {
	return &HeuristicClassifier{rules: heuristicRules}
}

// Classify returns a confident classification or nil when no rule
// matches. A non-nil result always has Confidence >= 0.9.
func (h *HeuristicClassifier) Classify(text string, pctx Context) *Result {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	for _, rule := range h.rules {
		if rule.ConfirmationOnly && !pctx.AwaitingConfirmation {
			continue
		}
		for _, pattern := range rule.Patterns {
			if !pattern.MatchString(trimmed) {
				continue
			}
			result := &Result{
				Intent:     rule.Intent,
				Confidence: rule.Confidence,
				Slots:      extractSlots(trimmed, rule.SlotExtractors),
				Provenance: ProvenanceHeuristic,
			}
			logging.PerceptionDebug("Heuristic match: intent=%s conf=%.2f slots=%v",
				result.Intent, result.Confidence, result.Slots)
			return result
		}
	}
	return nil
}

// extractSlots applies each extractor's first capture group to the
// text.
func extractSlots(text string, extractors map[string]*regexp.Regexp) map[string]string {
	if len(extractors) == 0 {
		return nil
	}
	slots := make(map[string]string)
	for name, pattern := range extractors {
		if m := pattern.FindStringSubmatch(text); len(m) > 1 {
			slots[name] = normalizeSlot(name, m[1])
		}
	}
	if _, ok := extractors["org_unit"]; ok && slots["org_unit"] == "" {
		if allUnitsHint.MatchString(text) {
			slots["org_unit"] = "all"
		}
	}
	if len(slots) == 0 {
		return nil
	}
	return slots
}

func normalizeSlot(name, value string) string {
	value = strings.TrimSpace(value)
	switch name {
	case "plan_id":
		return strings.ToUpper(value)
	case "org_unit":
		return strings.ToLower(value)
	}
	return value
}
