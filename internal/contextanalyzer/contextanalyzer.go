// Package contextanalyzer is the Context Analyzer (spec §4.H): rewrites a
// follow-up question using recent dialogue so the Router always reasons
// over a self-contained question. Grounded in full on
// original_source/.../services/context_analyzer.py: the six-message
// history window, 500-char assistant-message truncation, and the explicit
// clarification-vs-alternative-explanation framing rule.
package contextanalyzer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/veritas-audit/veritas/internal/bus"
	"github.com/veritas-audit/veritas/internal/llm"
	"github.com/veritas-audit/veritas/internal/model"
)

// historyWindow and assistantTruncateLen are the fixed bounds of spec §4.H
// and P8.
const (
	historyWindow        = 6
	assistantTruncateLen = 500
)

type reformulationOutput struct {
	ReformulatedQuestion string `json:"reformulated_question"`
}

// Analyzer rewrites a follow-up question into a standalone one. Fallback*
// are optional: when set, a Provider failure is retried once against them
// before Reformulate gives up and returns the question unmodified
// (context_analyzer.py: "if Anthropic fails, try OpenAI as fallback").
type Analyzer struct {
	Provider llm.Provider
	Model    string

	FallbackProvider llm.Provider
	FallbackModel    string

	Bus *bus.Bus
}

// New builds an Analyzer backed by provider, with no fallback provider.
func New(provider llm.Provider, model string, b *bus.Bus) *Analyzer {
	return &Analyzer{Provider: provider, Model: model, Bus: b}
}

// NewWithFallback builds an Analyzer that retries once against a
// secondary provider (spec's SUPPLEMENTED FEATURES: a single deterministic
// fallback, not a retry loop) before giving up.
func NewWithFallback(provider llm.Provider, model string, fallbackProvider llm.Provider, fallbackModel string, b *bus.Bus) *Analyzer {
	return &Analyzer{Provider: provider, Model: model, FallbackProvider: fallbackProvider, FallbackModel: fallbackModel, Bus: b}
}

// Reformulate rewrites question using the recent dialogue, clamped to the
// last 6 messages with assistant turns truncated to 500 chars (spec §4.H,
// P8). For a standalone initial question (no history), the reformulation
// equals the input.
func (a *Analyzer) Reformulate(ctx context.Context, sessionID, question string, history []model.ChatMessage) (string, error) {
	if a.Bus != nil {
		a.Bus.Publish(sessionID, bus.EventContextAnalysisStarted, nil)
	}
	if len(history) == 0 {
		return question, nil
	}

	windowed := clampHistory(history)

	prompt := fmt.Sprintf(`Recent dialogue:
%s

New question: %q

Distinguish two cases:
(a) The question is a CLARIFICATION of a claim already discussed — e.g. a
    pronoun or vague reference to something named earlier. Rewrite it as
    a standalone question that names what was referenced.
(b) The question proposes an ALTERNATIVE EXPLANATION that constitutes a
    genuinely NEW claim, even if related to the prior topic. In that
    case, reformulate it as its own standalone question without
    collapsing it into the prior claim.

Respond with JSON: {"reformulated_question": "..."}`, formatHistory(windowed), question)

	req := llm.CompletionRequest{
		SystemPrompt: "You rewrite follow-up questions into standalone questions using recent dialogue context. Respond with strict JSON only.",
		Messages:     []llm.Message{{Role: "user", Content: prompt}},
		Temperature:  0,
		MaxTokens:    300,
	}

	req.Model = a.Model
	resp, err := llm.CompleteText(ctx, a.Provider, req)
	if err != nil && a.FallbackProvider != nil {
		req.Model = a.FallbackModel
		resp, err = llm.CompleteText(ctx, a.FallbackProvider, req)
	}
	if err != nil {
		return question, fmt.Errorf("contextanalyzer: complete_text failed on primary and fallback providers: %w", err)
	}

	var out reformulationOutput
	if err := llm.ExtractJSON(resp.Text, &out); err != nil {
		return question, fmt.Errorf("contextanalyzer: parse reformulation: %w", err)
	}
	if strings.TrimSpace(out.ReformulatedQuestion) == "" {
		return question, nil
	}
	return out.ReformulatedQuestion, nil
}

// clampHistory keeps at most the last historyWindow messages and
// truncates assistant content to assistantTruncateLen characters (P8).
func clampHistory(history []model.ChatMessage) []model.ChatMessage {
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	out := make([]model.ChatMessage, len(history))
	for i, m := range history {
		out[i] = m
		if m.Role == "assistant" && len(m.Content) > assistantTruncateLen {
			out[i].Content = m.Content[:assistantTruncateLen]
		}
	}
	return out
}

func formatHistory(history []model.ChatMessage) string {
	var b strings.Builder
	for _, m := range history {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	return b.String()
}

// elapsedSince is a small readability helper for measuring reformulation
// latency; nothing in the module calls it at present.
func elapsedSince(start time.Time) time.Duration { return time.Since(start) }
