package perception

import "context"

// CompletionClient is the contract with the external completion
// service. Implementations must be deterministic for identical input:
// temperature is pinned to zero so classification is reproducible.
type CompletionClient interface {
	// Complete sends a system + user prompt pair and returns the raw
	// completion text.
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// Name identifies the provider for logging.
	Name() string
}
