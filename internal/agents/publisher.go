package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/veritas-audit/veritas/internal/agent"
	"github.com/veritas-audit/veritas/internal/bus"
	"github.com/veritas-audit/veritas/internal/llm"
	"github.com/veritas-audit/veritas/internal/model"
	"github.com/veritas-audit/veritas/internal/store"
)

// PublisherName is this agent's AgentPrompt key.
const PublisherName = "publisher"

type publisherAuditOutput struct {
	Limitations     string `json:"limitations"`
	ChangeVerdictIf string `json:"change_verdict_if"`
}

// Embedder is the embedding dependency the Publisher forwards to the
// store at insert time. It is store.Embedder itself, not a structurally
// equivalent re-declaration: Go requires a method's parameter type to be
// the identical named type for interface satisfaction, so *store.Store's
// InsertClaimCard only satisfies ClaimCardWriter below if both use this
// same type.
type Embedder = store.Embedder

// ClaimCardWriter is the narrow store dependency the Publisher needs:
// persisting the finished card (spec §4.A insert, triggering embedding
// generation).
type ClaimCardWriter interface {
	InsertClaimCard(ctx context.Context, card *model.ClaimCard, embedder Embedder) error
}

// Publisher composes agent_audit and persists the finished ClaimCard
// (spec §4.F.5).
type Publisher struct {
	agent.Base
	Store    ClaimCardWriter
	Embedder Embedder
}

// NewPublisher constructs the agent.
func NewPublisher(base agent.Base, store ClaimCardWriter, embedder Embedder) *Publisher {
	base.AgentName = PublisherName
	return &Publisher{Base: base, Store: store, Embedder: embedder}
}

func (a *Publisher) Name() string { return PublisherName }

// Execute implements agent.Capability.
func (a *Publisher) Execute(ctx context.Context, in agent.Inputs) (agent.Outputs, error) {
	started := time.Now()
	if err := agent.RequireKeys(a.Name(), in,
		"claim_text", "claim_type", "claim_type_category", "sources",
		"short_answer", "verdict", "confidence_level"); err != nil {
		return nil, err
	}

	cfg, err := a.LoadConfig(ctx)
	if err != nil {
		return nil, err
	}
	provider, err := a.ResolveProvider(cfg)
	if err != nil {
		return nil, err
	}

	a.EmitStarted()

	sources, _ := in["sources"].([]model.Source)
	verdict, _ := in["verdict"].(model.Verdict)
	shortAnswer, _ := in["short_answer"].(string)
	claimText, _ := in["claim_text"].(string)

	prompt := fmt.Sprintf(`Claim: %q
Verdict: %s
Short answer: %q
Sources used: %d

For the audit trail, summarize what each agent stage checked, what limits
this audit still has, and what evidence would change the verdict.

Respond with JSON:
{"limitations": "...", "change_verdict_if": "..."}`, claimText, verdict, shortAnswer, len(sources))

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

	var auditOut publisherAuditOutput
	if err := a.ParseJSON(resp.Text, &auditOut); err != nil {
		a.EmitCompleted(time.Since(started), false)
		return nil, err
	}

	notes, _ := in["reverification_notes"].([]model.ReverificationNote)
	claimType, _ := in["claim_type"].(string)
	category, _ := in["claim_type_category"].(model.ClaimTypeCategory)
	claimant, _ := in["claimant"].(string)
	deepAnswer, _ := in["deep_answer"].(string)
	whyPersists, _ := in["why_persists"].([]string)
	confidence, _ := in["confidence_level"].(model.ConfidenceLevel)
	confExplanation, _ := in["confidence_explanation"].(string)
	categoryTags, _ := in["category_tags"].([]string)
	apologeticsTags, _ := in["apologetics_tags"].([]string)

	card := &model.ClaimCard{
		ClaimText:             claimText,
		Claimant:               claimant,
		ClaimType:              claimType,
		ClaimTypeCategory:      category,
		Verdict:                verdict,
		ShortAnswer:            shortAnswer,
		DeepAnswer:             deepAnswer,
		WhyPersists:            whyPersists,
		ConfidenceLevel:        confidence,
		ConfidenceExplanation:  confExplanation,
		VisibleInAudits:        true,
		Sources:                sources,
		CategoryTags:           categoryTags,
		ApologeticsTags:        apologeticsTags,
		AgentAudit: map[string]model.AgentAuditEntry{
			TopicFinderName: {Summary: fmt.Sprintf("Framed claim as: %s", claimText)},
			SourceCheckerName: {
				Summary: fmt.Sprintf("Enumerated and verified %d source(s) via the six-tier service", len(sources)),
			},
			AdversarialCheckerName: {
				Summary:             "Re-verified each source's quote and URL against the claim",
				ReverificationNotes: notes,
			},
			WriterName: {Summary: "Composed final prose and confidence explanation"},
			PublisherName: {
				Summary:         "Composed audit trail and persisted the claim card",
				Limitations:     auditOut.Limitations,
				ChangeVerdictIf: auditOut.ChangeVerdictIf,
			},
		},
	}

	if err := a.Store.InsertClaimCard(ctx, card, a.Embedder); err != nil {
		a.EmitCompleted(time.Since(started), false)
		return nil, &agent.Error{Agent: a.Name(), Class: agent.ErrLLMError, Msg: "persist claim card", Err: err}
	}

	a.EmitCompleted(time.Since(started), true)
	if a.Bus != nil {
		a.Bus.Publish(a.SessionID, bus.EventClaimCardReady, map[string]any{
			"claim_card_id": card.ID,
			"claim_card":    model.NewClaimCardWire(card),
		})
	}

	return agent.Outputs{"claim_card": card, "claim_card_id": card.ID}, nil
}
