package dialogue

import (
	"fmt"
	"strings"

	"plando/internal/catalog"
)

// allUnitsSurcharge is added to an intent's static cost when the
// request spans the whole portfolio instead of a single unit.
const allUnitsSurcharge = 0.25

// effectiveCost is the static catalog cost adjusted for request scope.
// Clamped to [0,1].
func effectiveCost(def *catalog.Definition, slots map[string]string) float64 {
	cost := def.CostScore
	if slots["org_unit"] == "all" {
		cost += allUnitsSurcharge
	}
	if cost > 1 {
		cost = 1
	}
	return cost
}

// confirmationSummary is the cheap first-phase summary shown before an
// expensive answer is computed.
func confirmationSummary(def *catalog.Definition, slots map[string]string, cost float64) string {
	var scope []string
	if v := slots["plan_id"]; v != "" {
		scope = append(scope, "plan "+v)
	}
	if v := slots["org_unit"]; v != "" {
		if v == "all" {
			scope = append(scope, "all units")
		} else {
			scope = append(scope, "unit "+v)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "This will %s", def.Description)
	if len(scope) > 0 {
		fmt.Fprintf(&b, " for %s", strings.Join(scope, ", "))
	}
	fmt.Fprintf(&b, ". It's one of the heavier requests (effort %d%%), so I'll run it on your go-ahead. Proceed?",
		int(cost*100))
	return b.String()
}

// intentCheckSummary is the double-check question for a low-confidence
// classification. It goes through the same pending machinery as the
// cost-gated summaries, so a yes dispatches and a no drops it.
func intentCheckSummary(def *catalog.Definition) string {
	return fmt.Sprintf("you'd like me to %s, right?", def.Description)
}
