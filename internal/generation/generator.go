// Package generation turns structured tool results into prose via the
// external completion service. The service is advisory: on timeout or
// error the package falls back to a deterministic template built from
// the tool result, so a turn always ends with a coherent reply.
package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"plando/internal/logging"
	"plando/internal/perception"
	"plando/internal/tools"
)

// Request is what the core hands to the text-generation collaborator.
type Request struct {
	Intent string
	Slots  map[string]string
	Result *tools.Result
}

// Generator assembles user-facing replies.
type Generator struct {
	client  perception.CompletionClient
	timeout time.Duration
}

// NewGenerator creates a generator. A nil client is valid: every reply
// then comes from the deterministic templates.
func NewGenerator(client perception.CompletionClient, timeout time.Duration) *Generator {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Generator{client: client, timeout: timeout}
}

// Reply produces the prose for a completed tool call. It never returns
// an error; degraded output is still a sensible answer.
func (g *Generator) Reply(ctx context.Context, req Request) string {
	timer := logging.StartTimer(logging.CategoryGeneration, "Generator.Reply")
	defer timer.Stop()

	if g.client == nil {
		return g.template(req)
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	prose, err := g.client.Complete(callCtx, generationSystemPrompt, g.userPrompt(req))
	if err != nil {
		logging.Get(logging.CategoryGeneration).Warn("Generation failed (%s), using template: %v",
			g.client.Name(), err)
		return g.template(req)
	}
	prose = strings.TrimSpace(prose)
	if prose == "" {
		return g.template(req)
	}
	return prose
}

const generationSystemPrompt = `You are the voice of a project-plan assistant.
Turn the structured result below into one short, factual reply in the
user's language. Never invent numbers or plans that are not in the data.`

func (g *Generator) userPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Intent: %s\n", req.Intent)
	if len(req.Slots) > 0 {
		fmt.Fprintf(&b, "Slots: %v\n", req.Slots)
	}
	if req.Result != nil {
		fmt.Fprintf(&b, "Summary: %s\n", req.Result.Summary)
		if len(req.Result.Data) > 0 {
			if data, err := json.Marshal(req.Result.Data); err == nil {
				fmt.Fprintf(&b, "Data: %s\n", data)
			}
		}
	}
	return b.String()
}

// template is the deterministic fallback wording.
func (g *Generator) template(req Request) string {
	if req.Result != nil && req.Result.Summary != "" {
		return req.Result.Summary
	}
	return "I completed the request but have nothing to report."
}
