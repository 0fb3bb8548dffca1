// Package dialogue is the turn orchestrator: it takes one inbound
// message, classifies it, applies the confirmation and fallback
// policies against the sender's session, dispatches the mapped tool,
// and assembles the reply. Session phase transitions commit only after
// the turn's external calls complete, so a cancelled turn leaves the
// previous phase intact.
package dialogue

import (
	"context"
	"strings"
	"time"

	"plando/internal/catalog"
	"plando/internal/generation"
	"plando/internal/logging"
	"plando/internal/perception"
	"plando/internal/session"
	"plando/internal/tools"
)

// Recorder persists execution traces. A write failure must never
// affect the turn; the orchestrator only logs it.
type Recorder interface {
	Record(ctx context.Context, trace *Trace) error
}

// Options wires an orchestrator together. Catalog, Sessions and Router
// are required; the rest degrade gracefully when nil.
type Options struct {
	Catalog    *catalog.Catalog
	Sessions   *session.Store
	Semantic   *perception.SemanticClassifier
	Router     *tools.Router
	Generator  *generation.Generator
	Recorder   Recorder
	EscalateAt int
}

// Orchestrator runs the turn pipeline. One goroutine per turn; all
// shared state lives in the session store and the catalog.
type Orchestrator struct {
	catalog    *catalog.Catalog
	sessions   *session.Store
	heuristic  *perception.HeuristicClassifier
	semantic   *perception.SemanticClassifier
	router     *tools.Router
	generator  *generation.Generator
	recorder   Recorder
	escalateAt int
}

// NewOrchestrator creates an orchestrator from options.
func NewOrchestrator(opts Options) *Orchestrator {
	escalateAt := opts.EscalateAt
	if escalateAt <= 0 {
		escalateAt = DefaultEscalateAt
	}
	return &Orchestrator{
		catalog:    opts.Catalog,
		sessions:   opts.Sessions,
		heuristic:  perception.NewHeuristicClassifier(),
		semantic:   opts.Semantic,
		router:     opts.Router,
		generator:  opts.Generator,
		recorder:   opts.Recorder,
		escalateAt: escalateAt,
	}
}

// =============================================================================
// TURN PIPELINE
// =============================================================================

// HandleTurn processes one inbound message end to end. The only error
// it returns is context cancellation; every other failure mode becomes
// a degraded but coherent reply.
func (o *Orchestrator) HandleTurn(ctx context.Context, turn Turn) (*Reply, error) {
	timer := logging.StartTimer(logging.CategoryDialogue, "HandleTurn")
	defer timer.Stop()

	trace := newTrace(turn.SenderID)
	snap := o.sessions.GetOrCreate(turn.SenderID)
	trace.SessionID = snap.ID

	res := o.classify(ctx, turn, snap, trace)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	trace.Intent = res.Intent
	trace.Confidence = res.Confidence
	trace.Provenance = string(res.Provenance)

	logging.Dialogue("Turn %s sender=%s intent=%s conf=%.2f via=%s phase=%s",
		trace.TurnID, turn.SenderID, res.Intent, res.Confidence, res.Provenance, snap.Phase)

	// Confirmation protocol: while an action is parked, confirm and
	// decline consume it; anything else, unclassifiable input included,
	// silently abandons it and is handled as a fresh turn. The fallback
	// streak keeps counting either way so the guided menu still fires.
	abandonPending := false
	if snap.Phase == session.PhaseAwaitingConfirmation && snap.Pending != nil {
		switch res.Intent {
		case catalog.IntentConfirm:
			return o.runPending(ctx, turn, snap, trace)
		case catalog.IntentDecline:
			logging.DialogueDebug("Declined pending %s (%q)", snap.Pending.Intent, snap.Pending.Summary)
			o.commit(trace, turn.SenderID, func(s *session.State) {
				s.ClearPending()
				s.FallbackStreak = 0
				s.RecordIntent(catalog.IntentDecline, o.sessions.HistorySize())
			})
			return o.finish(ctx, trace, &Reply{Text: replyDeclined, Mode: ModeAck})
		default:
			abandonPending = true
		}
	} else if res.Intent == catalog.IntentConfirm || res.Intent == catalog.IntentDecline {
		// A stray yes/no with nothing parked.
		o.commit(trace, turn.SenderID, func(s *session.State) {
			s.FallbackStreak = 0
			s.RecordIntent(res.Intent, o.sessions.HistorySize())
		})
		return o.finish(ctx, trace, &Reply{Text: replyNothingPending, Mode: ModeAck})
	}

	if res.IsFallback() {
		return o.handleFallback(ctx, turn, snap, trace, abandonPending)
	}

	def, ok := o.catalog.Get(res.Intent)
	if !ok {
		// The semantic layer only returns catalog intents; a miss here
		// means the catalog was hot-swapped mid-turn.
		logging.Get(logging.CategoryDialogue).Warn("Resolved intent %q no longer in catalog", res.Intent)
		return o.handleFallback(ctx, turn, snap, trace, abandonPending)
	}

	merged := mergeSlots(snap.Slots, res.Slots)

	if !def.Dispatchable() {
		return o.handleConversational(ctx, turn, trace, def, res.Slots, abandonPending)
	}

	cost := effectiveCost(def, merged)
	needsCheck := res.NeedsClarification
	if needsCheck || def.RequiresConfirmation(cost) {
		summary := confirmationSummary(def, merged, cost)
		text := summary
		mode := ModeSummary
		if needsCheck {
			// Low-confidence semantic match: double-check through the
			// same pending machinery instead of acting on a guess.
			summary = intentCheckSummary(def)
			text = reconfirmReply(summary)
			mode = ModeClarification
		}
		o.commit(trace, turn.SenderID, func(s *session.State) {
			if abandonPending {
				s.ClearPending()
			}
			s.MergeSlots(res.Slots)
			s.FallbackStreak = 0
			s.RecordIntent(res.Intent, o.sessions.HistorySize())
			s.Phase = session.PhaseAwaitingConfirmation
			s.Pending = &session.PendingAction{
				Intent:    res.Intent,
				Slots:     merged,
				Summary:   summary,
				Cost:      cost,
				CreatedAt: time.Now(),
			}
		})
		logging.DialogueDebug("Parked %s for confirmation (cost=%.2f check=%v)", res.Intent, cost, needsCheck)
		return o.finish(ctx, trace, &Reply{Text: text, Mode: mode})
	}

	return o.dispatchAndAssemble(ctx, turn, trace, res.Intent, res.Slots, merged, abandonPending)
}

// classify runs the two perception layers in order.
func (o *Orchestrator) classify(ctx context.Context, turn Turn, snap session.State, trace *Trace) *perception.Result {
	stop := trace.step("classify")
	defer stop()

	pctx := perception.Context{
		AwaitingConfirmation: snap.Phase == session.PhaseAwaitingConfirmation,
		Metadata:             turn.Metadata,
		CarriedSlots:         snap.Slots,
	}
	if strings.TrimSpace(turn.Text) == "" {
		return perception.Fallback(perception.ProvenanceHeuristic)
	}
	if res := o.heuristic.Classify(turn.Text, pctx); res != nil {
		return res
	}
	if o.semantic == nil {
		return perception.Fallback(perception.ProvenanceSemantic)
	}
	return o.semantic.Classify(ctx, turn.Text, pctx)
}

// dispatchAndAssemble routes the intent to its tool and turns the
// outcome into a reply. turnSlots are this turn's extracted slots (for
// the session commit); merged is the full carried+turn mapping the
// tool runs with.
func (o *Orchestrator) dispatchAndAssemble(ctx context.Context, turn Turn, trace *Trace,
	intent string, turnSlots, merged map[string]string, abandonPending bool) (*Reply, error) {

	stop := trace.step("tool")
	outcome := o.router.Dispatch(ctx, intent, tools.Slots(merged))
	stop()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	commit := func(clearPending bool) {
		o.commit(trace, turn.SenderID, func(s *session.State) {
			if abandonPending || clearPending {
				s.ClearPending()
			}
			s.MergeSlots(turnSlots)
			s.FallbackStreak = 0
			s.RecordIntent(intent, o.sessions.HistorySize())
		})
	}

	switch outcome.Status {
	case tools.OutcomeOK:
		stopAsm := trace.step("response-assembly")
		text := outcome.Result.Summary
		if o.generator != nil {
			text = o.generator.Reply(ctx, generation.Request{
				Intent: intent,
				Slots:  merged,
				Result: outcome.Result,
			})
		}
		stopAsm()
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		commit(false)
		return o.finish(ctx, trace, &Reply{Text: text, Mode: ModeAnswer, Payload: outcome.Result})

	case tools.OutcomeMissingSlot:
		commit(false)
		return o.finish(ctx, trace, &Reply{
			Text: clarificationFor(outcome.MissingSlots),
			Mode: ModeClarification,
		})

	case tools.OutcomeMissingData:
		commit(false)
		return o.finish(ctx, trace, &Reply{Text: replyNoData, Mode: ModeAnswer})

	case tools.OutcomeTimeout:
		commit(false)
		return o.finish(ctx, trace, &Reply{Text: replyTimeout, Mode: ModeTryAgain})

	default:
		commit(false)
		return o.finish(ctx, trace, &Reply{Text: replyUpstream, Mode: ModeTryAgain})
	}
}

// runPending dispatches the parked action after an explicit confirm.
// The pending slot snapshot from park time is authoritative; the
// confirming turn carries no slots of its own.
func (o *Orchestrator) runPending(ctx context.Context, turn Turn, snap session.State, trace *Trace) (*Reply, error) {
	pending := snap.Pending
	logging.Dialogue("Confirmed pending %s for sender %s", pending.Intent, turn.SenderID)
	trace.Intent = pending.Intent

	stop := trace.step("tool")
	outcome := o.router.Dispatch(ctx, pending.Intent, tools.Slots(pending.Slots))
	stop()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// The confirm consumed the pending action whatever the outcome.
	o.commit(trace, turn.SenderID, func(s *session.State) {
		s.ClearPending()
		s.FallbackStreak = 0
		s.RecordIntent(pending.Intent, o.sessions.HistorySize())
	})

	switch outcome.Status {
	case tools.OutcomeOK:
		stopAsm := trace.step("response-assembly")
		text := outcome.Result.Summary
		if o.generator != nil {
			text = o.generator.Reply(ctx, generation.Request{
				Intent: pending.Intent,
				Slots:  pending.Slots,
				Result: outcome.Result,
			})
		}
		stopAsm()
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return o.finish(ctx, trace, &Reply{Text: text, Mode: ModeAnswer, Payload: outcome.Result})
	case tools.OutcomeMissingSlot:
		return o.finish(ctx, trace, &Reply{
			Text: clarificationFor(outcome.MissingSlots),
			Mode: ModeClarification,
		})
	case tools.OutcomeMissingData:
		return o.finish(ctx, trace, &Reply{Text: replyNoData, Mode: ModeAnswer})
	case tools.OutcomeTimeout:
		return o.finish(ctx, trace, &Reply{Text: replyTimeout, Mode: ModeTryAgain})
	default:
		return o.finish(ctx, trace, &Reply{Text: replyUpstream, Mode: ModeTryAgain})
	}
}

// handleFallback applies the streak policy to an unclassifiable turn.
func (o *Orchestrator) handleFallback(ctx context.Context, turn Turn, snap session.State,
	trace *Trace, abandonPending bool) (*Reply, error) {

	decision := decideFallback(snap.FallbackStreak, o.escalateAt)
	o.commit(trace, turn.SenderID, func(s *session.State) {
		if abandonPending {
			s.ClearPending()
		}
		s.FallbackStreak = decision.streak
		s.RecordIntent(catalog.IntentFallback, o.sessions.HistorySize())
	})

	if decision.escalate {
		logging.Dialogue("Fallback streak hit for sender %s, showing menu", turn.SenderID)
		return o.finish(ctx, trace, &Reply{Text: o.catalog.Menu(), Mode: ModeMenu})
	}

	suggestions := o.catalog.Suggestions(suggestionCount)
	return o.finish(ctx, trace, &Reply{
		Text:        fallbackReply(suggestions),
		Mode:        ModeFallback,
		Suggestions: suggestions,
	})
}

// handleConversational answers catalog intents with no tool mapping.
func (o *Orchestrator) handleConversational(ctx context.Context, turn Turn, trace *Trace,
	def *catalog.Definition, turnSlots map[string]string, abandonPending bool) (*Reply, error) {

	o.commit(trace, turn.SenderID, func(s *session.State) {
		if abandonPending {
			s.ClearPending()
		}
		s.MergeSlots(turnSlots)
		s.FallbackStreak = 0
		s.RecordIntent(def.Name, o.sessions.HistorySize())
	})

	switch def.Name {
	case "help":
		return o.finish(ctx, trace, &Reply{Text: o.catalog.Menu(), Mode: ModeMenu})
	default:
		return o.finish(ctx, trace, &Reply{Text: replyGreeting, Mode: ModeAck})
	}
}

// =============================================================================
// PLUMBING
// =============================================================================

// commit applies a session mutation as the turn's dialogue-state step.
func (o *Orchestrator) commit(trace *Trace, senderID string, mutate func(*session.State)) {
	stop := trace.step("dialogue-state")
	o.sessions.Update(senderID, mutate)
	stop()
}

// finish closes the trace, records it, and attaches it to the reply.
func (o *Orchestrator) finish(ctx context.Context, trace *Trace, reply *Reply) (*Reply, error) {
	trace.ReplyMode = reply.Mode
	trace.Total = time.Since(trace.StartedAt)
	reply.Trace = trace

	if o.recorder != nil {
		if err := o.recorder.Record(ctx, trace); err != nil {
			logging.Get(logging.CategoryStore).Warn("Trace %s not recorded: %v", trace.TurnID, err)
		}
	}
	return reply, nil
}

// mergeSlots folds this turn's slots over the carried ones into a new
// map; the turn wins on conflict.
func mergeSlots(carried, turn map[string]string) map[string]string {
	out := make(map[string]string, len(carried)+len(turn))
	for k, v := range carried {
		out[k] = v
	}
	for k, v := range turn {
		if v != "" {
			out[k] = v
		}
	}
	return out
}
