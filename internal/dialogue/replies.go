package dialogue

import (
	"fmt"
	"sort"
	"strings"

	"plando/internal/tools"
)

// Mode classifies what kind of reply a turn produced.
type Mode string

const (
	// ModeAnswer is a completed tool call rendered to prose.
	ModeAnswer Mode = "answer"

	// ModeSummary is the first half of a two-phase answer: a cheap
	// summary plus a confirmation question.
	ModeSummary Mode = "summary_confirmation"

	// ModeClarification asks for a missing slot or a yes/no.
	ModeClarification Mode = "clarification"

	// ModeFallback is a gentle could-not-understand reply with
	// capability suggestions.
	ModeFallback Mode = "fallback"

	// ModeMenu is the forced guided-help menu after repeated
	// fallbacks.
	ModeMenu Mode = "menu"

	// ModeAck acknowledges without doing anything (decline, stray
	// confirm).
	ModeAck Mode = "acknowledgment"

	// ModeTryAgain reports a transient downstream failure.
	ModeTryAgain Mode = "try_again"
)

// Turn is one inbound user message.
type Turn struct {
	SenderID string
	Text     string
	Metadata map[string]string
}

// Reply is the assistant's answer to a turn.
type Reply struct {
	Text        string
	Mode        Mode
	Payload     *tools.Result
	Suggestions []string
	Trace       *Trace
}

// =============================================================================
// DETERMINISTIC WORDING
// =============================================================================

// Fixed phrasing used when no text generation is involved or when the
// generation service is unavailable. The generation layer restates
// answers in the user's own language; these templates only have to be
// clear.

const (
	replyGreeting = `Ciao! I keep an eye on the plan portfolio. Ask me about delayed plans, a plan's status or risk, or say "help".`

	replyDeclined = "Okay, I won't run that. Anything else?"

	replyNothingPending = "There's nothing waiting for a go-ahead. Ask me about the portfolio whenever you like."

	replyNoData = "I couldn't find any data matching that request."

	replyTimeout = "That took longer than expected and I gave up. Please try again in a moment."

	replyUpstream = "Something went wrong while completing that. Please try again."
)

func fallbackReply(suggestions []string) string {
	if len(suggestions) == 0 {
		return "I didn't understand that. Could you rephrase?"
	}
	return fmt.Sprintf("I didn't understand that. I can, for example, %s.",
		strings.Join(suggestions, "; "))
}

func reconfirmReply(summary string) string {
	return fmt.Sprintf("Just to check: %s Reply yes to proceed or no to drop it.", summary)
}

// slotQuestions maps a required slot to its follow-up question.
var slotQuestions = map[string]string{
	"plan_id":  "Which plan do you mean? A plan id like P-102 works.",
	"org_unit": `Which organizational unit should I look at? Say "all units" for the whole portfolio.`,
}

func clarificationFor(missing []string) string {
	sorted := append([]string(nil), missing...)
	sort.Strings(sorted)
	parts := make([]string, 0, len(sorted))
	for _, name := range sorted {
		if q, ok := slotQuestions[name]; ok {
			parts = append(parts, q)
		} else {
			parts = append(parts, fmt.Sprintf("I still need %s to do that.", name))
		}
	}
	return strings.Join(parts, " ")
}
