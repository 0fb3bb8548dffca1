package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultCatalogValid(t *testing.T) {
	c := Default()

	// The three control intents are always injected.
	for _, name := range []string{IntentConfirm, IntentDecline, IntentFallback} {
		def, ok := c.Get(name)
		if !ok {
			t.Fatalf("control intent %q missing", name)
		}
		if def.Dispatchable() {
			t.Errorf("control intent %q must not be dispatchable", name)
		}
	}

	if !c.Has("ask_delayed_plans") {
		t.Error("ask_delayed_plans missing from default catalog")
	}
}

func TestNewRejectsDuplicate(t *testing.T) {
	_, err := New([]Definition{
		{Name: "a", Tool: "t"},
		{Name: "a", Tool: "t"},
	})
	if err == nil {
		t.Fatal("expected duplicate intent error")
	}
}

func TestNewRejectsBadThreshold(t *testing.T) {
	for _, bad := range []float64{0, -0.5, 1.5} {
		v := bad
		_, err := New([]Definition{{Name: "x", Tool: "t", TwoPhaseThreshold: &v}})
		if err == nil {
			t.Errorf("threshold %v accepted, want error", bad)
		}
	}
}

func TestNewRejectsSlotsWithoutTool(t *testing.T) {
	_, err := New([]Definition{{Name: "x", RequiredSlots: []string{"plan_id"}}})
	if err == nil {
		t.Fatal("expected error for slots without tool")
	}
}

func TestNewRejectsDispatchableControlIntent(t *testing.T) {
	_, err := New([]Definition{{Name: IntentConfirm, Tool: "t"}})
	if err == nil {
		t.Fatal("expected error for confirm mapped to a tool")
	}
}

func TestRequiresConfirmation(t *testing.T) {
	th := 0.6
	def := &Definition{Name: "x", Tool: "t", TwoPhaseThreshold: &th}

	if def.RequiresConfirmation(0.6) {
		t.Error("cost equal to threshold should not require confirmation")
	}
	if !def.RequiresConfirmation(0.61) {
		t.Error("cost above threshold should require confirmation")
	}

	noThreshold := &Definition{Name: "y", Tool: "t"}
	if noThreshold.RequiresConfirmation(1.0) {
		t.Error("nil threshold must never require confirmation")
	}
}

func TestMenuListsDispatchableOnly(t *testing.T) {
	c := Default()
	menu := c.Menu()

	if !strings.Contains(menu, "plans currently running late") {
		t.Errorf("menu missing capability line:\n%s", menu)
	}
	if strings.Contains(menu, IntentFallback) {
		t.Errorf("menu must not list control intents:\n%s", menu)
	}
}

func TestSuggestionsBounded(t *testing.T) {
	c := Default()
	if got := c.Suggestions(2); len(got) != 2 {
		t.Errorf("Suggestions(2) returned %d entries", len(got))
	}
}

func TestLoadFileAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	write := func(body string) {
		t.Helper()
		if err := os.WriteFile(path, []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
	}

	write(`
intents:
  - name: ask_delayed_plans
    description: list the plans currently running late
    tool: query_delayed_plans
    cost_score: 0.2
`)

	c, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	// 1 declared + 3 injected control intents
	if c.Size() != 4 {
		t.Errorf("Size = %d, want 4", c.Size())
	}

	// A broken file keeps the old table.
	write(`intents: [`)
	if err := c.ReloadFile(path); err == nil {
		t.Fatal("expected reload error for broken YAML")
	}
	if !c.Has("ask_delayed_plans") {
		t.Error("broken reload must keep previous table")
	}

	// A valid rewrite swaps the table.
	write(`
intents:
  - name: ask_plan_status
    required_slots: [plan_id]
    tool: query_plan_status
`)
	if err := c.ReloadFile(path); err != nil {
		t.Fatalf("ReloadFile failed: %v", err)
	}
	if c.Has("ask_delayed_plans") {
		t.Error("old intent survived reload")
	}
	if !c.Has("ask_plan_status") {
		t.Error("new intent missing after reload")
	}
}

func TestSlotNames(t *testing.T) {
	c := Default()
	slots := c.SlotNames()

	want := map[string]bool{"plan_id": true, "org_unit": true}
	if len(slots) != len(want) {
		t.Fatalf("SlotNames = %v", slots)
	}
	for _, s := range slots {
		if !want[s] {
			t.Errorf("unexpected slot %q", s)
		}
	}
}
