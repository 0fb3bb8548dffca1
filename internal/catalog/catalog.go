// Package catalog holds the static registry of intents the assistant
// understands. Every intent referenced anywhere in the system must
// exist here; the catalog size is the single source of truth for what
// the system can do. Definitions are immutable after load; hot reload
// swaps the whole table atomically rather than mutating entries.
package catalog

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"plando/internal/logging"
)

// Control intents. These are always present, never dispatchable, and
// carry no slots. The fallback intent is synthetic: it is what the
// classifiers resolve to when they cannot classify.
const (
	IntentConfirm  = "confirm"
	IntentDecline  = "decline"
	IntentFallback = "fallback"
)

// Definition describes a single recognized intent.
type Definition struct {
	// Name is the unique intent key (e.g., "ask_delayed_plans").
	Name string `yaml:"name"`

	// Description is shown in guided-help menus and suggestions.
	Description string `yaml:"description"`

	// RequiredSlots must all be filled (this turn or carried from a
	// prior one) before the mapped tool is dispatched.
	RequiredSlots []string `yaml:"required_slots"`

	// CostScore estimates how expensive the full answer is, in [0,1].
	CostScore float64 `yaml:"cost_score"`

	// TwoPhaseThreshold, when set, requires a summary-then-confirm flow
	// whenever the effective cost exceeds it. Nil means never confirm.
	TwoPhaseThreshold *float64 `yaml:"two_phase_threshold"`

	// Tool is the downstream tool this intent maps to. Empty for
	// conversational intents handled without dispatch (greet, help).
	Tool string `yaml:"tool"`

	// Examples seed the semantic classifier prompt.
	Examples []string `yaml:"examples"`
}

// Dispatchable reports whether the intent maps to a downstream tool.
func (d *Definition) Dispatchable() bool {
	return d.Tool != ""
}

// RequiresConfirmation reports whether the given effective cost crosses
// the two-phase threshold.
func (d *Definition) RequiresConfirmation(cost float64) bool {
	return d.TwoPhaseThreshold != nil && cost > *d.TwoPhaseThreshold
}

// Catalog is the loaded intent registry. Reads are lock-free except for
// the pointer load; Reload swaps the table wholesale.
type Catalog struct {
	mu    sync.RWMutex
	defs  map[string]*Definition
	order []string // declaration order, for stable menus
}

// catalogFile is the YAML on-disk shape.
type catalogFile struct {
	Intents []Definition `yaml:"intents"`
}

// New builds a catalog from definitions. Control intents are injected
// if absent. Validation rejects duplicates, bad thresholds, and
// dispatchable intents without a tool name.
func New(defs []Definition) (*Catalog, error) {
	c := &Catalog{}
	if err := c.replace(defs); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadFile reads a catalog from a YAML file.
func LoadFile(path string) (*Catalog, error) {
	defs, err := readFile(path)
	if err != nil {
		return nil, err
	}
	c, err := New(defs)
	if err != nil {
		return nil, err
	}
	logging.Catalog("Loaded intent catalog from %s (%d intents)", path, c.Size())
	return c, nil
}

// ReloadFile re-reads the file and swaps the table. On any error the
// current table is kept.
func (c *Catalog) ReloadFile(path string) error {
	defs, err := readFile(path)
	if err != nil {
		return err
	}
	if err := c.replace(defs); err != nil {
		return err
	}
	logging.Catalog("Reloaded intent catalog from %s (%d intents)", path, c.Size())
	return nil
}

func readFile(path string) ([]Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if len(file.Intents) == 0 {
		return nil, fmt.Errorf("catalog %s defines no intents", path)
	}
	return file.Intents, nil
}

// replace validates and installs a new definition table.
func (c *Catalog) replace(defs []Definition) error {
	table := make(map[string]*Definition, len(defs)+3)
	order := make([]string, 0, len(defs)+3)

	for i := range defs {
		def := defs[i]
		if def.Name == "" {
			return fmt.Errorf("intent at index %d has no name", i)
		}
		if _, dup := table[def.Name]; dup {
			return fmt.Errorf("duplicate intent %q", def.Name)
		}
		if def.TwoPhaseThreshold != nil {
			t := *def.TwoPhaseThreshold
			if t <= 0 || t > 1 {
				return fmt.Errorf("intent %q: two_phase_threshold %v outside (0,1]", def.Name, t)
			}
		}
		if def.CostScore < 0 || def.CostScore > 1 {
			return fmt.Errorf("intent %q: cost_score %v outside [0,1]", def.Name, def.CostScore)
		}
		if len(def.RequiredSlots) > 0 && def.Tool == "" {
			return fmt.Errorf("intent %q declares slots but no tool", def.Name)
		}
		table[def.Name] = &def
		order = append(order, def.Name)
	}

	// Control intents are part of every catalog whether or not the
	// file lists them.
	for _, name := range []string{IntentConfirm, IntentDecline, IntentFallback} {
		if _, ok := table[name]; !ok {
			table[name] = &Definition{Name: name}
			order = append(order, name)
		} else if table[name].Tool != "" {
			return fmt.Errorf("control intent %q must not map to a tool", name)
		}
	}

	c.mu.Lock()
	c.defs = table
	c.order = order
	c.mu.Unlock()
	return nil
}

// Get returns the definition for an intent name.
func (c *Catalog) Get(name string) (*Definition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	def, ok := c.defs[name]
	return def, ok
}

// Has reports whether the intent exists.
func (c *Catalog) Has(name string) bool {
	_, ok := c.Get(name)
	return ok
}

// Size returns the number of registered intents, control intents
// included.
func (c *Catalog) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.defs)
}

// Names returns all intent names in declaration order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Dispatchable returns the intents that map to a tool, in declaration
// order.
func (c *Catalog) Dispatchable() []*Definition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Definition, 0, len(c.order))
	for _, name := range c.order {
		if def := c.defs[name]; def.Dispatchable() {
			out = append(out, def)
		}
	}
	return out
}

// Suggestions returns up to n capability descriptions for gentle
// fallback replies.
func (c *Catalog) Suggestions(n int) []string {
	defs := c.Dispatchable()
	if n > 0 && len(defs) > n {
		defs = defs[:n]
	}
	out := make([]string, 0, len(defs))
	for _, def := range defs {
		if def.Description != "" {
			out = append(out, def.Description)
		} else {
			out = append(out, def.Name)
		}
	}
	return out
}

// Menu returns the enumerated guided-help menu listing every
// capability.
func (c *Catalog) Menu() string {
	defs := c.Dispatchable()
	var b strings.Builder
	b.WriteString("Here is what I can help with:\n")
	for i, def := range defs {
		desc := def.Description
		if desc == "" {
			desc = def.Name
		}
		fmt.Fprintf(&b, "  %d. %s\n", i+1, desc)
	}
	return strings.TrimRight(b.String(), "\n")
}

// SlotNames returns the union of all required slot names, sorted.
// Used by the semantic classifier prompt.
func (c *Catalog) SlotNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	seen := make(map[string]bool)
	for _, def := range c.defs {
		for _, slot := range def.RequiredSlots {
			seen[slot] = true
		}
	}
	out := make([]string, 0, len(seen))
	for slot := range seen {
		out = append(out, slot)
	}
	sort.Strings(out)
	return out
}
