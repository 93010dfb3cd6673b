package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/veritas-audit/veritas/internal/agent"
	"github.com/veritas-audit/veritas/internal/llm"
	"github.com/veritas-audit/veritas/internal/model"
)

// WriterName is this agent's AgentPrompt key.
const WriterName = "writer"

type writerOutput struct {
	ShortAnswer           string   `json:"short_answer"`
	DeepAnswer            string   `json:"deep_answer"`
	WhyPersists           []string `json:"why_persists"`
	ConfidenceLevel       string   `json:"confidence_level"`
	ConfidenceExplanation string   `json:"confidence_explanation"`
}

// Writer composes the final prose verdict explanation. It must not
// reference "provided quotes" unless a verbatim quote is included inline
// (spec §4.F.4); that constraint is carried as a system-prompt
// instruction rather than enforced in code, since the violation is
// stylistic, not structural.
type Writer struct {
	agent.Base
}

// NewWriter constructs the agent.
func NewWriter(base agent.Base) *Writer {
	base.AgentName = WriterName
	return &Writer{Base: base}
}

func (a *Writer) Name() string { return WriterName }

// Execute implements agent.Capability.
func (a *Writer) Execute(ctx context.Context, in agent.Inputs) (agent.Outputs, error) {
	started := time.Now()
	if err := agent.RequireKeys(a.Name(), in, "claim_text", "sources", "preliminary_verdict"); err != nil {
		return nil, err
	}
	claimText, _ := in["claim_text"].(string)
	sources, _ := in["sources"].([]model.Source)
	verdict, _ := in["preliminary_verdict"].(model.Verdict)
	notes, _ := in["reverification_notes"].([]model.ReverificationNote)
	evidenceSummary, _ := in["evidence_summary"].(string)

	cfg, err := a.LoadConfig(ctx)
	if err != nil {
		return nil, err
	}
	provider, err := a.ResolveProvider(cfg)
	if err != nil {
		return nil, err
	}

	a.EmitStarted()

	prompt := fmt.Sprintf(`Claim: %q
Preliminary verdict: %s
Evidence summary: %s
Sources: %s
Reverification notes: %d flags recorded.

Write the final audit prose for this claim:
- short_answer: self-contained, <= 150 words, consistent with the verdict
  (e.g. if the verdict is False or Misleading the prose must not read as
  an endorsement of the claim).
- deep_answer: long-form explanation.
- why_persists: ordered list of short strings naming why this claim
  continues to circulate despite the verdict.
- confidence_level: High|Medium|Low
- confidence_explanation: why that confidence level

Do not write "the provided quotes show..." unless you include one of the
source quotes verbatim inline.

Respond with JSON:
{"short_answer": "...", "deep_answer": "...", "why_persists": ["..."],
 "confidence_level": "High|Medium|Low", "confidence_explanation": "..."}`,
		claimText, verdict, orPlaceholder(evidenceSummary), summarizeSources(sources), len(notes))

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

	var out writerOutput
	if err := a.ParseJSON(resp.Text, &out); err != nil {
		a.EmitCompleted(time.Since(started), false)
		return nil, err
	}
	if out.ShortAnswer == "" {
		a.EmitCompleted(time.Since(started), false)
		return nil, &agent.Error{Agent: a.Name(), Class: agent.ErrParseError, Msg: "short_answer must not be empty"}
	}

	a.EmitCompleted(time.Since(started), true)
	return agent.Outputs{
		"short_answer":           out.ShortAnswer,
		"deep_answer":            out.DeepAnswer,
		"why_persists":           out.WhyPersists,
		"confidence_level":       model.ConfidenceLevel(out.ConfidenceLevel),
		"confidence_explanation": out.ConfidenceExplanation,
		"verdict":                verdict,
	}, nil
}

func summarizeSources(sources []model.Source) string {
	out := ""
	for _, s := range sources {
		out += fmt.Sprintf("\n- %s (%s, %s)", s.Citation, s.VerificationStatus, s.ContentType)
	}
	return out
}
