package tools

import (
	"context"
	"errors"
	"sort"
	"time"

	"plando/internal/catalog"
	"plando/internal/logging"
)

// OutcomeStatus classifies the result of a dispatch attempt.
type OutcomeStatus string

const (
	// OutcomeOK means the tool ran and produced a result.
	OutcomeOK OutcomeStatus = "ok"

	// OutcomeMissingSlot means required slots are unfilled. Not an
	// error: the orchestrator turns this into a targeted follow-up
	// question.
	OutcomeMissingSlot OutcomeStatus = "missing_slot"

	// OutcomeMissingData means the tool ran but had no data for the
	// request.
	OutcomeMissingData OutcomeStatus = "missing_data"

	// OutcomeTimeout means the tool exceeded its deadline.
	OutcomeTimeout OutcomeStatus = "timeout"

	// OutcomeUpstreamError means the tool or a collaborator behind it
	// failed.
	OutcomeUpstreamError OutcomeStatus = "upstream_error"

	// OutcomeNotDispatchable means the intent maps to no tool. A
	// wiring problem between catalog and registry, surfaced
	// structurally so the turn still completes.
	OutcomeNotDispatchable OutcomeStatus = "not_dispatchable"
)

// Outcome is the structured result of routing one intent to its tool.
// Exactly one of Result / MissingSlots / Err carries detail, selected
// by Status.
type Outcome struct {
	Status       OutcomeStatus
	Result       *Result
	MissingSlots []string
	Err          error
}

// Router resolves intents to tools via the catalog and invokes them
// with a deadline.
type Router struct {
	catalog  *catalog.Catalog
	registry *Registry
	timeout  time.Duration
}

// NewRouter creates a dispatch router. timeout bounds every tool call;
// zero means no additional deadline beyond the caller's context.
func NewRouter(cat *catalog.Catalog, reg *Registry, timeout time.Duration) *Router {
	return &Router{catalog: cat, registry: reg, timeout: timeout}
}

// Dispatch routes a resolved intent and its slots to the mapped tool.
// It never returns an error: every failure mode becomes a structured
// Outcome the orchestrator can answer with.
func (r *Router) Dispatch(ctx context.Context, intentName string, slots Slots) *Outcome {
	timer := logging.StartTimer(logging.CategoryTools, "Dispatch "+intentName)
	defer timer.Stop()

	def, ok := r.catalog.Get(intentName)
	if !ok || !def.Dispatchable() {
		logging.ToolsDebug("Intent %s is not dispatchable", intentName)
		return &Outcome{Status: OutcomeNotDispatchable}
	}

	if missing := missingSlots(def, slots); len(missing) > 0 {
		logging.ToolsDebug("Intent %s missing slots: %v", intentName, missing)
		return &Outcome{Status: OutcomeMissingSlot, MissingSlots: missing}
	}

	tool := r.registry.Get(def.Tool)
	if tool == nil {
		logging.Get(logging.CategoryTools).Error("Catalog maps %s to unregistered tool %s", intentName, def.Tool)
		return &Outcome{Status: OutcomeUpstreamError, Err: ErrToolNotFound}
	}

	callCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	result, err := tool.Execute(callCtx, slots.Clone())
	if err != nil {
		switch {
		case errors.Is(err, ErrMissingData):
			logging.ToolsDebug("Tool %s: no data (%v)", def.Tool, err)
			return &Outcome{Status: OutcomeMissingData, Err: err}
		case errors.Is(err, context.DeadlineExceeded), errors.Is(callCtx.Err(), context.DeadlineExceeded):
			logging.Get(logging.CategoryTools).Warn("Tool %s timed out after %v", def.Tool, r.timeout)
			return &Outcome{Status: OutcomeTimeout, Err: err}
		default:
			logging.Get(logging.CategoryTools).Warn("Tool %s failed: %v", def.Tool, err)
			return &Outcome{Status: OutcomeUpstreamError, Err: err}
		}
	}

	if result == nil {
		result = &Result{Tool: def.Tool}
	}
	if result.Tool == "" {
		result.Tool = def.Tool
	}
	return &Outcome{Status: OutcomeOK, Result: result}
}

// missingSlots returns the required slots absent or empty in the
// mapping, sorted for stable follow-up questions.
func missingSlots(def *catalog.Definition, slots Slots) []string {
	var missing []string
	for _, name := range def.RequiredSlots {
		if slots[name] == "" {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}
