package tools

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
)

// planRecord is the demo dataset row. The real deployment registers
// tools backed by the retrieval layer; these built-ins keep the CLI and
// tests self-contained.
type planRecord struct {
	ID      string
	Title   string
	OrgUnit string
	Status  string
	Delayed bool
	Risk    float64
}

var demoPlans = []planRecord{
	{ID: "P-101", Title: "Warehouse relocation", OrgUnit: "logistics", Status: "on_track", Delayed: false, Risk: 0.22},
	{ID: "P-102", Title: "ERP migration", OrgUnit: "it", Status: "delayed", Delayed: true, Risk: 0.71},
	{ID: "P-103", Title: "Q3 hiring round", OrgUnit: "hr", Status: "delayed", Delayed: true, Risk: 0.48},
	{ID: "P-104", Title: "Fleet renewal", OrgUnit: "logistics", Status: "on_track", Delayed: false, Risk: 0.35},
}

// RegisterBuiltin registers the demo plan-portfolio tools.
func RegisterBuiltin(reg *Registry) {
	reg.MustRegister(&Tool{
		Name:        "query_delayed_plans",
		Description: "List the plans currently running late",
		Execute:     queryDelayedPlans,
	})
	reg.MustRegister(&Tool{
		Name:        "query_plan_status",
		Description: "Status of a single plan",
		Execute:     queryPlanStatus,
	})
	reg.MustRegister(&Tool{
		Name:        "query_plans_by_unit",
		Description: "Plans owned by an organizational unit",
		Execute:     queryPlansByUnit,
	})
	reg.MustRegister(&Tool{
		Name:        "score_plan_risk",
		Description: "Risk score of a plan",
		Execute:     scorePlanRisk,
	})
	reg.MustRegister(&Tool{
		Name:        "build_portfolio_report",
		Description: "Full portfolio report for a unit",
		Execute:     buildPortfolioReport,
	})
}

func queryDelayedPlans(ctx context.Context, slots Slots) (*Result, error) {
	var ids []string
	rows := make([]map[string]any, 0, len(demoPlans))
	for _, p := range demoPlans {
		if !p.Delayed {
			continue
		}
		ids = append(ids, p.ID)
		rows = append(rows, map[string]any{"id": p.ID, "title": p.Title, "org_unit": p.OrgUnit})
	}
	return &Result{
		Tool:    "query_delayed_plans",
		Summary: fmt.Sprintf("%d plans are delayed: %s", len(ids), strings.Join(ids, ", ")),
		Data:    map[string]any{"plans": rows},
	}, nil
}

func queryPlanStatus(ctx context.Context, slots Slots) (*Result, error) {
	p, ok := findPlan(slots["plan_id"])
	if !ok {
		return nil, fmt.Errorf("%w: plan %s", ErrMissingData, slots["plan_id"])
	}
	return &Result{
		Tool:    "query_plan_status",
		Summary: fmt.Sprintf("Plan %s (%s) is %s", p.ID, p.Title, p.Status),
		Data:    map[string]any{"id": p.ID, "title": p.Title, "status": p.Status},
	}, nil
}

func queryPlansByUnit(ctx context.Context, slots Slots) (*Result, error) {
	unit := strings.ToLower(slots["org_unit"])
	rows := make([]map[string]any, 0)
	for _, p := range demoPlans {
		if unit == "all" || p.OrgUnit == unit {
			rows = append(rows, map[string]any{"id": p.ID, "title": p.Title, "status": p.Status})
		}
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: unit %s", ErrMissingData, unit)
	}
	return &Result{
		Tool:    "query_plans_by_unit",
		Summary: fmt.Sprintf("%d plans for unit %s", len(rows), unit),
		Data:    map[string]any{"plans": rows, "org_unit": unit},
	}, nil
}

func scorePlanRisk(ctx context.Context, slots Slots) (*Result, error) {
	p, ok := findPlan(slots["plan_id"])
	if !ok {
		return nil, fmt.Errorf("%w: plan %s", ErrMissingData, slots["plan_id"])
	}
	return &Result{
		Tool:    "score_plan_risk",
		Summary: fmt.Sprintf("Plan %s risk score: %.2f", p.ID, p.Risk),
		Data:    map[string]any{"id": p.ID, "risk": p.Risk},
	}, nil
}

// buildPortfolioReport assembles one section per unit in scope. The
// sections fan out concurrently; against the demo data this is
// instant, against a real plan backend each section is a query.
func buildPortfolioReport(ctx context.Context, slots Slots) (*Result, error) {
	unit := strings.ToLower(slots["org_unit"])
	units := unitsInScope(unit)
	if len(units) == 0 {
		return nil, fmt.Errorf("%w: unit %s", ErrMissingData, unit)
	}

	sections := make([]map[string]any, len(units))
	g, gctx := errgroup.WithContext(ctx)
	for i, u := range units {
		g.Go(func() error {
			sec, err := unitSection(gctx, u)
			if err != nil {
				return err
			}
			sections[i] = sec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var total, delayed int
	var riskSum float64
	for _, sec := range sections {
		total += sec["total"].(int)
		delayed += sec["delayed"].(int)
		riskSum += sec["risk_sum"].(float64)
		delete(sec, "risk_sum")
	}

	summary := fmt.Sprintf("Unit %s: %d plans, %d delayed, mean risk %.2f",
		units[0], total, delayed, riskSum/float64(total))
	if unit == "all" {
		summary = fmt.Sprintf("Portfolio: %d plans across %d units, %d delayed, mean risk %.2f",
			total, len(units), delayed, riskSum/float64(total))
	}

	return &Result{
		Tool:    "build_portfolio_report",
		Summary: summary,
		Data: map[string]any{
			"org_unit": unit,
			"total":    total,
			"delayed":  delayed,
			"avg_risk": riskSum / float64(total),
			"sections": sections,
		},
	}, nil
}

// unitsInScope resolves the org_unit slot to concrete units.
func unitsInScope(unit string) []string {
	if unit != "all" {
		for _, p := range demoPlans {
			if p.OrgUnit == unit {
				return []string{unit}
			}
		}
		return nil
	}
	seen := make(map[string]bool)
	var units []string
	for _, p := range demoPlans {
		if !seen[p.OrgUnit] {
			seen[p.OrgUnit] = true
			units = append(units, p.OrgUnit)
		}
	}
	return units
}

// unitSection aggregates one unit's plans.
func unitSection(ctx context.Context, unit string) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var total, delayed int
	var riskSum float64
	for _, p := range demoPlans {
		if p.OrgUnit != unit {
			continue
		}
		total++
		riskSum += p.Risk
		if p.Delayed {
			delayed++
		}
	}
	return map[string]any{
		"org_unit": unit,
		"total":    total,
		"delayed":  delayed,
		"risk_sum": riskSum,
		"avg_risk": riskSum / float64(total),
	}, nil
}

func findPlan(id string) (planRecord, bool) {
	id = strings.ToUpper(strings.TrimSpace(id))
	for _, p := range demoPlans {
		if p.ID == id {
			return p, true
		}
	}
	return planRecord{}, false
}
