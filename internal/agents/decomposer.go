package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/veritas-audit/veritas/internal/agent"
	"github.com/veritas-audit/veritas/internal/llm"
	"github.com/veritas-audit/veritas/internal/model"
)

// DecomposerName is this agent's AgentPrompt key.
const DecomposerName = "decomposer"

type decomposerOutput struct {
	Components []string `json:"components"`
}

// Decomposer breaks a scheduler topic into 3-12 affirmative component
// claims, a count the LLM chooses per topic complexity rather than a
// fixed value (spec §4.J).
type Decomposer struct {
	agent.Base
}

// NewDecomposer constructs the agent.
func NewDecomposer(base agent.Base) *Decomposer {
	base.AgentName = DecomposerName
	return &Decomposer{Base: base}
}

func (a *Decomposer) Name() string { return DecomposerName }

// Execute implements agent.Capability.
func (a *Decomposer) Execute(ctx context.Context, in agent.Inputs) (agent.Outputs, error) {
	started := time.Now()
	if err := agent.RequireKeys(a.Name(), in, "topic_text"); err != nil {
		return nil, err
	}
	topic, _ := in["topic_text"].(string)

	cfg, err := a.LoadConfig(ctx)
	if err != nil {
		return nil, err
	}
	provider, err := a.ResolveProvider(cfg)
	if err != nil {
		return nil, err
	}

	a.EmitStarted()

	prompt := fmt.Sprintf(`Topic: %q

Break this topic into an ordered list of affirmative component claims,
each independently auditable. Choose the count yourself based on how
complex the topic is — anywhere from 3 to 12 claims, not a fixed number.

Respond with JSON: {"components": ["claim one", "claim two", ...]}`, topic)

	resp, err := llm.CompleteText(ctx, provider, llm.CompletionRequest{
		Model:        cfg.ModelName,
		SystemPrompt: cfg.SystemPrompt,
		Messages:     []llm.Message{{Role: "user", Content: prompt}},
		Temperature:  cfg.Temperature,
		MaxTokens:    cfg.MaxTokens,
	})
	if err != nil {
		a.EmitCompleted(time.Since(started), false)
		return nil, &agent.Error{Agent: a.Name(), Class: agent.ErrLLMError, Msg: "complete_text failed", Err: err}
	}

	var out decomposerOutput
	if err := a.ParseJSON(resp.Text, &out); err != nil {
		a.EmitCompleted(time.Since(started), false)
		return nil, err
	}
	if len(out.Components) < 3 || len(out.Components) > 12 {
		a.EmitCompleted(time.Since(started), false)
		return nil, &agent.Error{
			Agent: a.Name(), Class: agent.ErrParseError,
			Msg: fmt.Sprintf("decomposer must produce 3-12 components, got %d", len(out.Components)),
		}
	}

	a.EmitCompleted(time.Since(started), true)
	return agent.Outputs{"component_claims": out.Components}, nil
}

// ComposerName is this agent's AgentPrompt key.
const ComposerName = "composer"

type composerOutput struct {
	Title       string `json:"title"`
	ArticleBody string `json:"article_body"`
}

// ComponentCard is the minimal shape the Composer needs per referenced
// claim (spec §4.J: "the component ClaimCards (ids plus full content)").
type ComponentCard struct {
	ID          string
	ClaimText   string
	ShortAnswer string
	Verdict     model.Verdict
}

// Composer synthesizes narrative prose referencing component claims by
// contextual footnote-like markers — never a bare list of claim cards
// (spec §4.J).
type Composer struct {
	agent.Base
}

// NewComposer constructs the agent.
func NewComposer(base agent.Base) *Composer {
	base.AgentName = ComposerName
	return &Composer{Base: base}
}

func (a *Composer) Name() string { return ComposerName }

// Execute implements agent.Capability.
func (a *Composer) Execute(ctx context.Context, in agent.Inputs) (agent.Outputs, error) {
	started := time.Now()
	if err := agent.RequireKeys(a.Name(), in, "topic_text", "component_cards"); err != nil {
		return nil, err
	}
	topic, _ := in["topic_text"].(string)
	cards, _ := in["component_cards"].([]ComponentCard)

	cfg, err := a.LoadConfig(ctx)
	if err != nil {
		return nil, err
	}
	provider, err := a.ResolveProvider(cfg)
	if err != nil {
		return nil, err
	}

	a.EmitStarted()

	prompt := fmt.Sprintf(`Topic: %q

Component claims already audited:
%s

Write a 500-1500 word narrative article synthesizing these findings into
flowing prose. Reference each component claim with a contextual
footnote-like marker like [1], [2] at the point it is used — do not
render the claims as a bare list.

Respond with JSON: {"title": "...", "article_body": "..."}`, topic, formatComponentCards(cards))

	resp, err := llm.CompleteText(ctx, provider, llm.CompletionRequest{
		Model:        cfg.ModelName,
		SystemPrompt: cfg.SystemPrompt,
		Messages:     []llm.Message{{Role: "user", Content: prompt}},
		Temperature:  cfg.Temperature,
		MaxTokens:    cfg.MaxTokens,
	})
	if err != nil {
		a.EmitCompleted(time.Since(started), false)
		return nil, &agent.Error{Agent: a.Name(), Class: agent.ErrLLMError, Msg: "complete_text failed", Err: err}
	}

	var out composerOutput
	if err := a.ParseJSON(resp.Text, &out); err != nil {
		a.EmitCompleted(time.Since(started), false)
		return nil, err
	}

	ids := make([]string, len(cards))
	for i, c := range cards {
		ids[i] = c.ID
	}

	a.EmitCompleted(time.Since(started), true)
	return agent.Outputs{
		"title":          out.Title,
		"article_body":   out.ArticleBody,
		"claim_card_ids": ids,
	}, nil
}

func formatComponentCards(cards []ComponentCard) string {
	out := ""
	for i, c := range cards {
		out += fmt.Sprintf("\n[%d] %s — %s (%s)", i+1, c.ClaimText, c.ShortAnswer, c.Verdict)
	}
	return out
}
