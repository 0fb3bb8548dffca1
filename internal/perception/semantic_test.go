package perception

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"plando/internal/catalog"
)

// fakeClient scripts completion responses for tests.
type fakeClient struct {
	response string
	err      error
	delay    time.Duration
	calls    atomic.Int64
}

func (f *fakeClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.response, f.err
}

func (f *fakeClient) Name() string { return "fake" }

func newSemantic(client CompletionClient) *SemanticClassifier {
	return NewSemanticClassifier(client, catalog.Default(), DefaultSemanticConfig())
}

func TestSemanticParsesWellFormedResponse(t *testing.T) {
	client := &fakeClient{
		response: `{"intent": "ask_plan_status", "confidence": 0.83, "slots": {"plan_id": "p-102"}}`,
	}
	sc := newSemantic(client)

	result := sc.Classify(context.Background(), "come va il piano di migrazione?", Context{})
	if result.Intent != "ask_plan_status" {
		t.Fatalf("intent = %s", result.Intent)
	}
	if result.Confidence != 0.83 {
		t.Errorf("confidence = %v", result.Confidence)
	}
	if result.Slots["plan_id"] != "P-102" {
		t.Errorf("plan_id = %q, want normalized P-102", result.Slots["plan_id"])
	}
	if result.NeedsClarification {
		t.Error("confidence 0.83 should not need clarification")
	}
	if result.Provenance != ProvenanceSemantic {
		t.Errorf("provenance = %s", result.Provenance)
	}
}

func TestSemanticStripsMarkdownFences(t *testing.T) {
	client := &fakeClient{
		response: "```json\n{\"intent\": \"greet\", \"confidence\": 0.9}\n```",
	}
	sc := newSemantic(client)

	result := sc.Classify(context.Background(), "hiya", Context{})
	if result.Intent != "greet" {
		t.Errorf("intent = %s, want greet", result.Intent)
	}
}

func TestSemanticUnknownIntentIsParseFailure(t *testing.T) {
	client := &fakeClient{
		response: `{"intent": "order_pizza", "confidence": 0.99}`,
	}
	sc := newSemantic(client)

	result := sc.Classify(context.Background(), "una margherita grazie", Context{})
	if !result.IsFallback() {
		t.Errorf("unknown intent must degrade to fallback, got %s", result.Intent)
	}
	if result.Confidence != 0 {
		t.Errorf("fallback confidence = %v, want 0", result.Confidence)
	}
}

func TestSemanticMalformedOutputDegrades(t *testing.T) {
	for _, raw := range []string{
		"I think the user wants the delayed plans.",
		`{"confidence": 0.9}`,
		`{"intent": `,
		"",
	} {
		sc := newSemantic(&fakeClient{response: raw})
		result := sc.Classify(context.Background(), "boh", Context{})
		if !result.IsFallback() {
			t.Errorf("raw %q: got %s, want fallback", raw, result.Intent)
		}
	}
}

func TestSemanticTransportErrorDegrades(t *testing.T) {
	sc := newSemantic(&fakeClient{err: errors.New("connection refused")})

	result := sc.Classify(context.Background(), "piani", Context{})
	if !result.IsFallback() {
		t.Errorf("transport error must degrade to fallback, got %s", result.Intent)
	}
}

func TestSemanticTimeoutDegrades(t *testing.T) {
	client := &fakeClient{
		response: `{"intent": "greet", "confidence": 0.9}`,
		delay:    200 * time.Millisecond,
	}
	cfg := DefaultSemanticConfig()
	cfg.Timeout = 20 * time.Millisecond
	sc := NewSemanticClassifier(client, catalog.Default(), cfg)

	start := time.Now()
	result := sc.Classify(context.Background(), "ciao ciao ciao", Context{})
	if !result.IsFallback() {
		t.Errorf("timeout must degrade to fallback, got %s", result.Intent)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("classification blocked for %v", elapsed)
	}
}

func TestSemanticNilClientDegrades(t *testing.T) {
	sc := newSemantic(nil)
	if result := sc.Classify(context.Background(), "piani", Context{}); !result.IsFallback() {
		t.Errorf("nil client must degrade to fallback, got %s", result.Intent)
	}
}

func TestSemanticLowConfidenceNeedsClarification(t *testing.T) {
	sc := newSemantic(&fakeClient{
		response: `{"intent": "ask_plan_risk", "confidence": 0.4}`,
	})

	result := sc.Classify(context.Background(), "quanto è messo male?", Context{})
	if result.Intent != "ask_plan_risk" {
		t.Fatalf("intent = %s", result.Intent)
	}
	if !result.NeedsClarification {
		t.Error("confidence 0.4 should set NeedsClarification")
	}
}

func TestSemanticCachesIdenticalInput(t *testing.T) {
	client := &fakeClient{
		response: `{"intent": "ask_delayed_plans", "confidence": 0.9}`,
	}
	sc := newSemantic(client)

	first := sc.Classify(context.Background(), "what is behind?", Context{})
	second := sc.Classify(context.Background(), "what is behind?", Context{})

	if first.Intent != second.Intent {
		t.Errorf("cache changed answer: %s vs %s", first.Intent, second.Intent)
	}
	if got := client.calls.Load(); got != 1 {
		t.Errorf("client called %d times, want 1", got)
	}

	// Phase is part of the key: the same text while awaiting
	// confirmation is a different question.
	sc.Classify(context.Background(), "what is behind?", Context{AwaitingConfirmation: true})
	if got := client.calls.Load(); got != 2 {
		t.Errorf("client called %d times after phase change, want 2", got)
	}
}

func TestSemanticCacheKeyedByCarriedContext(t *testing.T) {
	client := &fakeClient{
		response: `{"intent": "ask_plan_status", "confidence": 0.9}`,
	}
	sc := newSemantic(client)

	// The prompt embeds carried slots and metadata, so each distinct
	// context must reach the service on its own.
	sc.Classify(context.Background(), "e lo stato?", Context{CarriedSlots: map[string]string{"plan_id": "P-101"}})
	sc.Classify(context.Background(), "e lo stato?", Context{CarriedSlots: map[string]string{"plan_id": "P-102"}})
	if got := client.calls.Load(); got != 2 {
		t.Fatalf("client called %d times for differing carried slots, want 2", got)
	}

	sc.Classify(context.Background(), "e lo stato?", Context{Metadata: map[string]string{"channel": "sms"}})
	if got := client.calls.Load(); got != 3 {
		t.Errorf("client called %d times for differing metadata, want 3", got)
	}

	// An identical context still hits the cache.
	sc.Classify(context.Background(), "e lo stato?", Context{CarriedSlots: map[string]string{"plan_id": "P-101"}})
	if got := client.calls.Load(); got != 3 {
		t.Errorf("client called %d times after repeat, want 3", got)
	}
}

func TestSemanticConfidenceClamped(t *testing.T) {
	sc := newSemantic(&fakeClient{
		response: `{"intent": "greet", "confidence": 7.5}`,
	})

	result := sc.Classify(context.Background(), "hello hello", Context{})
	if result.Confidence != 1 {
		t.Errorf("confidence = %v, want clamped to 1", result.Confidence)
	}
}
