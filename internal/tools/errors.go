package tools

import "errors"

// Tool registry errors.
var (
	// ErrToolNotFound is returned when a tool is not registered.
	ErrToolNotFound = errors.New("tool not found")

	// ErrToolNameEmpty is returned when a tool has no name.
	ErrToolNameEmpty = errors.New("tool name cannot be empty")

	// ErrToolExecuteNil is returned when a tool has no execute function.
	ErrToolExecuteNil = errors.New("tool execute function cannot be nil")

	// ErrToolAlreadyRegistered is returned when registering a duplicate.
	ErrToolAlreadyRegistered = errors.New("tool already registered")
)

// Typed errors a tool implementation may return. The router converts
// them into structured outcomes instead of failing the turn.
var (
	// ErrMissingData means the backing store had no answer for the
	// request (e.g., unknown plan id).
	ErrMissingData = errors.New("missing data")

	// ErrUpstream means a collaborator behind the tool failed.
	ErrUpstream = errors.New("upstream error")
)
