package tools

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestPortfolioReportSingleUnit(t *testing.T) {
	res, err := buildPortfolioReport(context.Background(), Slots{"org_unit": "logistics"})
	if err != nil {
		t.Fatalf("buildPortfolioReport: %v", err)
	}
	if res.Data["total"] != 2 || res.Data["delayed"] != 0 {
		t.Errorf("logistics totals wrong: %v", res.Data)
	}
	if !strings.Contains(res.Summary, "logistics") {
		t.Errorf("Summary = %q", res.Summary)
	}
}

func TestPortfolioReportAllUnits(t *testing.T) {
	res, err := buildPortfolioReport(context.Background(), Slots{"org_unit": "all"})
	if err != nil {
		t.Fatalf("buildPortfolioReport: %v", err)
	}
	if res.Data["total"] != len(demoPlans) {
		t.Errorf("total = %v, want %d", res.Data["total"], len(demoPlans))
	}
	sections, ok := res.Data["sections"].([]map[string]any)
	if !ok || len(sections) != 3 {
		t.Errorf("sections = %v", res.Data["sections"])
	}
	if !strings.HasPrefix(res.Summary, "Portfolio:") {
		t.Errorf("Summary = %q", res.Summary)
	}
}

func TestPortfolioReportUnknownUnit(t *testing.T) {
	_, err := buildPortfolioReport(context.Background(), Slots{"org_unit": "marketing"})
	if !errors.Is(err, ErrMissingData) {
		t.Errorf("err = %v, want ErrMissingData", err)
	}
}

func TestPortfolioReportCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := buildPortfolioReport(ctx, Slots{"org_unit": "all"}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestDelayedPlansListsOnlyDelayed(t *testing.T) {
	res, err := queryDelayedPlans(context.Background(), nil)
	if err != nil {
		t.Fatalf("queryDelayedPlans: %v", err)
	}
	if !strings.Contains(res.Summary, "P-102") || !strings.Contains(res.Summary, "P-103") {
		t.Errorf("Summary = %q", res.Summary)
	}
	if strings.Contains(res.Summary, "P-101") {
		t.Errorf("on-track plan leaked into %q", res.Summary)
	}
}

func TestFindPlanNormalizesID(t *testing.T) {
	if _, ok := findPlan("  p-102 "); !ok {
		t.Error("lookup should be case and whitespace insensitive")
	}
}
