// Package tools provides the tool registry and the dispatch router that
// maps a resolved intent plus its slots to a downstream tool call.
//
// The tools themselves (data retrieval, risk scoring, report building)
// are external collaborators; this package owns the contract: a tool is
// a named function over a slot mapping that returns a structured result
// or a typed error.
package tools

import (
	"context"
)

// Slots is the slot mapping passed to a tool. Keys are slot names from
// the intent catalog; values are the extracted or carried-forward
// strings.
type Slots map[string]string

// Clone returns an independent copy of the slot map.
func (s Slots) Clone() Slots {
	if s == nil {
		return nil
	}
	out := make(Slots, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// ExecuteFunc is the signature for tool execution.
type ExecuteFunc func(ctx context.Context, slots Slots) (*Result, error)

// Tool is a named downstream capability.
type Tool struct {
	// Name is the unique tool identifier referenced by the catalog.
	Name string

	// Description explains what the tool does.
	Description string

	// Execute performs the call. It must respect ctx cancellation.
	Execute ExecuteFunc
}

// Validate checks that the tool is well-formed.
func (t *Tool) Validate() error {
	if t.Name == "" {
		return ErrToolNameEmpty
	}
	if t.Execute == nil {
		return ErrToolExecuteNil
	}
	return nil
}

// Result is the structured outcome of a tool call. Data is an opaque
// payload handed to the text-generation layer; Summary is a short
// plain-text account usable when generation is unavailable.
type Result struct {
	Tool    string         `json:"tool"`
	Summary string         `json:"summary"`
	Data    map[string]any `json:"data,omitempty"`
}
