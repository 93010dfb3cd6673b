// Package agents holds the five pipeline agents (spec §4.F) plus the
// scheduler's Decomposer/Composer agents (§4.J), all built on the
// internal/agent framework. Grounded file-by-file on
// original_source/.../agents/topic_finder.py, source_checker.py,
// adversarial_checker.py, and the Writer/Publisher pair inferred from
// database/models.py's ClaimCard.agent_audit shape plus §4.F.4-5.
package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/veritas-audit/veritas/internal/agent"
	"github.com/veritas-audit/veritas/internal/llm"
	"github.com/veritas-audit/veritas/internal/model"
)

// TopicFinderName is this agent's AgentPrompt key.
const TopicFinderName = "topic_finder"

// topicFinderOutput is the agent's documented output schema (spec
// §4.F.1).
type topicFinderOutput struct {
	ClaimText         string   `json:"claim_text"`
	Claimant          string   `json:"claimant,omitempty"`
	ClaimType         string   `json:"claim_type"`
	ClaimTypeCategory string   `json:"claim_type_category"`
	CategoryTags      []string `json:"category_tags"`
}

// TopicFinder frames the incoming question as an affirmative, evaluable
// claim (spec §4.F.1). It never negates the asker's intent: "How similar
// are Luke and Mark?" becomes "Luke used Mark as a source", never
// "Luke is independent of Mark".
type TopicFinder struct {
	agent.Base
}

// NewTopicFinder constructs the agent with its framework scaffolding.
func NewTopicFinder(base agent.Base) *TopicFinder {
	base.AgentName = TopicFinderName
	return &TopicFinder{Base: base}
}

func (a *TopicFinder) Name() string { return TopicFinderName }

// Execute implements agent.Capability (spec §4.E's full cycle).
func (a *TopicFinder) Execute(ctx context.Context, in agent.Inputs) (agent.Outputs, error) {
	started := time.Now()
	if err := agent.RequireKeys(a.Name(), in, "question"); err != nil {
		return nil, err
	}
	question, _ := in["question"].(string)

	cfg, err := a.LoadConfig(ctx)
	if err != nil {
		return nil, err
	}
	provider, err := a.ResolveProvider(cfg)
	if err != nil {
		return nil, err
	}

	a.EmitStarted()

	prompt := fmt.Sprintf(`Question: %q

Frame this question as a single AFFIRMATIVE factual claim whose truth can be
evaluated — never as the negation of the asker's intent or as a question.
Example: "How similar are Luke and Mark?" becomes the claim "Luke used Mark
as a source", not "Luke is independent of Mark".

Respond with JSON:
{
  "claim_text": "...",
  "claimant": "... (who asserts this, or empty)",
  "claim_type": "... (a short free-form technical tag)",
  "claim_type_category": "historical|epistemology|interpretation|theological|textual",
  "category_tags": ["..."]
}`, question)

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

	var out topicFinderOutput
	if err := a.ParseJSON(resp.Text, &out); err != nil {
		a.EmitCompleted(time.Since(started), false)
		return nil, err
	}
	if out.ClaimText == "" {
		a.EmitCompleted(time.Since(started), false)
		return nil, &agent.Error{Agent: a.Name(), Class: agent.ErrParseError, Msg: "claim_text must not be empty"}
	}

	a.EmitCompleted(time.Since(started), true)
	return agent.Outputs{
		"claim_text":          out.ClaimText,
		"claimant":            out.Claimant,
		"claim_type":          out.ClaimType,
		"claim_type_category": model.ClaimTypeCategory(out.ClaimTypeCategory),
		"category_tags":       out.CategoryTags,
	}, nil
}
