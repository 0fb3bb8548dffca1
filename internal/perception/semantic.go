package perception

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"plando/internal/catalog"
	"plando/internal/logging"
)

// clarificationFloor is the confidence under which a semantic match is
// flagged for clarification instead of being acted on blindly.
const clarificationFloor = 0.55

// SemanticClassifier resolves ambiguous input by asking the completion
// service to pick an intent from the catalog. It never returns an
// error: transport failures, timeouts and malformed answers all degrade
// to the synthetic fallback intent so callers have a single code path.
type SemanticClassifier struct {
	client  CompletionClient
	catalog *catalog.Catalog
	timeout time.Duration

	// cache memoizes recent classifications keyed by the full prompt
	// context (phase, text, carried slots, metadata).
	// Temperature is zero, so an identical question within the TTL
	// yields an identical answer, so there is no reason to pay twice.
	cache *expirable.LRU[string, Result]
}

// SemanticConfig holds classifier configuration.
type SemanticConfig struct {
	Timeout   time.Duration
	CacheSize int
	CacheTTL  time.Duration
}

// DefaultSemanticConfig returns sensible defaults.
func DefaultSemanticConfig() SemanticConfig {
	return SemanticConfig{
		Timeout:   8 * time.Second,
		CacheSize: 256,
		CacheTTL:  time.Minute,
	}
}

// NewSemanticClassifier creates a classifier over the given completion
// client and catalog.
func NewSemanticClassifier(client CompletionClient, cat *catalog.Catalog, cfg SemanticConfig) *SemanticClassifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultSemanticConfig().Timeout
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultSemanticConfig().CacheSize
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultSemanticConfig().CacheTTL
	}
	return &SemanticClassifier{
		client:  client,
		catalog: cat,
		timeout: cfg.Timeout,
		cache:   expirable.NewLRU[string, Result](cfg.CacheSize, nil, cfg.CacheTTL),
	}
}

// Classify resolves text against the catalog. The returned result is
// always non-nil and always names a catalog intent.
func (sc *SemanticClassifier) Classify(ctx context.Context, text string, pctx Context) *Result {
	timer := logging.StartTimer(logging.CategoryPerception, "SemanticClassifier.Classify")
	defer timer.Stop()

	if sc.client == nil {
		logging.PerceptionDebug("No completion client configured, resolving to fallback")
		return Fallback(ProvenanceSemantic)
	}

	key := cacheKey(text, pctx)
	if cached, ok := sc.cache.Get(key); ok {
		logging.PerceptionDebug("Semantic cache hit for %q", truncate(text, 60))
		out := cached
		out.Slots = cloneSlots(cached.Slots)
		return &out
	}

	callCtx, cancel := context.WithTimeout(ctx, sc.timeout)
	defer cancel()

	raw, err := sc.client.Complete(callCtx, sc.systemPrompt(), sc.userPrompt(text, pctx))
	if err != nil {
		logging.Get(logging.CategoryPerception).Warn("Semantic classification failed (%s): %v",
			sc.client.Name(), err)
		return Fallback(ProvenanceSemantic)
	}

	result, err := sc.parseResponse(raw)
	if err != nil {
		logging.Get(logging.CategoryPerception).Warn("Semantic response unusable: %v (raw=%q)",
			err, truncate(raw, 120))
		return Fallback(ProvenanceSemantic)
	}

	logging.PerceptionDebug("Semantic match: intent=%s conf=%.2f slots=%v",
		result.Intent, result.Confidence, result.Slots)

	sc.cache.Add(key, *result)
	return result
}

// systemPrompt enumerates the catalog so the service can only pick
// from known intents.
func (sc *SemanticClassifier) systemPrompt() string {
	var b strings.Builder
	b.WriteString("You classify user messages for a project-plan assistant.\n")
	b.WriteString("Pick exactly one intent from this list:\n\n")

	for _, name := range sc.catalog.Names() {
		def, _ := sc.catalog.Get(name)
		fmt.Fprintf(&b, "- %s", def.Name)
		if def.Description != "" {
			fmt.Fprintf(&b, ": %s", def.Description)
		}
		if len(def.RequiredSlots) > 0 {
			fmt.Fprintf(&b, " (slots: %s)", strings.Join(def.RequiredSlots, ", "))
		}
		b.WriteString("\n")
		for _, ex := range def.Examples {
			fmt.Fprintf(&b, "    e.g. %q\n", ex)
		}
	}

	b.WriteString("\nRespond with strict JSON only, no prose:\n")
	b.WriteString(`{"intent": "<name>", "confidence": <0.0-1.0>, "slots": {"<slot>": "<value>"}}` + "\n")
	b.WriteString("Use intent \"fallback\" with confidence 0 when nothing fits.\n")
	return b.String()
}

// userPrompt carries the message plus conversational context.
func (sc *SemanticClassifier) userPrompt(text string, pctx Context) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Message: %s\n", text)
	if pctx.AwaitingConfirmation {
		b.WriteString("The assistant is awaiting a yes/no confirmation.\n")
	}
	if len(pctx.Metadata) > 0 {
		b.WriteString("Metadata:\n")
		for _, k := range sortedKeys(pctx.Metadata) {
			fmt.Fprintf(&b, "  %s: %s\n", k, pctx.Metadata[k])
		}
	}
	if len(pctx.CarriedSlots) > 0 {
		b.WriteString("Slots already known from earlier turns:\n")
		for _, k := range sortedKeys(pctx.CarriedSlots) {
			fmt.Fprintf(&b, "  %s: %s\n", k, pctx.CarriedSlots[k])
		}
	}
	return b.String()
}

// semanticResponse is the JSON contract with the completion service.
type semanticResponse struct {
	Intent     string            `json:"intent"`
	Confidence float64           `json:"confidence"`
	Slots      map[string]string `json:"slots"`
}

// parseResponse validates the raw completion into a Result. An intent
// name outside the catalog is a parse failure, not a new intent.
func (sc *SemanticClassifier) parseResponse(raw string) (*Result, error) {
	payload := extractJSON(raw)
	if payload == "" {
		return nil, fmt.Errorf("no JSON object in response")
	}

	var resp semanticResponse
	if err := json.Unmarshal([]byte(payload), &resp); err != nil {
		return nil, fmt.Errorf("malformed JSON: %w", err)
	}
	if resp.Intent == "" {
		return nil, fmt.Errorf("response has no intent")
	}
	if !sc.catalog.Has(resp.Intent) {
		return nil, fmt.Errorf("unknown intent %q", resp.Intent)
	}

	conf := resp.Confidence
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}

	slots := make(map[string]string, len(resp.Slots))
	for name, value := range resp.Slots {
		if value = strings.TrimSpace(value); value != "" {
			slots[name] = normalizeSlot(name, value)
		}
	}
	if len(slots) == 0 {
		slots = nil
	}

	return &Result{
		Intent:             resp.Intent,
		Confidence:         conf,
		Slots:              slots,
		NeedsClarification: conf < clarificationFloor && resp.Intent != catalog.IntentFallback,
		Provenance:         ProvenanceSemantic,
	}, nil
}

// extractJSON pulls the first JSON object out of a completion that may
// be wrapped in markdown fences or prose.
func extractJSON(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return ""
	}
	return raw[start : end+1]
}

// cacheKey fingerprints everything the prompt embeds. Two turns with
// the same text but different carried slots or metadata must not share
// a cached classification.
func cacheKey(text string, pctx Context) string {
	var b strings.Builder
	if pctx.AwaitingConfirmation {
		b.WriteString("confirming")
	} else {
		b.WriteString("idle")
	}
	b.WriteString("\x00")
	b.WriteString(strings.TrimSpace(strings.ToLower(text)))
	for _, k := range sortedKeys(pctx.CarriedSlots) {
		b.WriteString("\x00s:")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(pctx.CarriedSlots[k])
	}
	for _, k := range sortedKeys(pctx.Metadata) {
		b.WriteString("\x00m:")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(pctx.Metadata[k])
	}
	return b.String()
}

func cloneSlots(slots map[string]string) map[string]string {
	if slots == nil {
		return nil
	}
	out := make(map[string]string, len(slots))
	for k, v := range slots {
		out[k] = v
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
