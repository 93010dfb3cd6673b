package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/veritas-audit/veritas/internal/agent"
	"github.com/veritas-audit/veritas/internal/llm"
	"github.com/veritas-audit/veritas/internal/model"
	"github.com/veritas-audit/veritas/internal/sourceverify"
)

// SourceCheckerName is this agent's AgentPrompt key.
const SourceCheckerName = "source_checker"

// sourceQuery is one entry of the query-identification step's output:
// what to search for and why (grounded on source_checker.py's
// _identify_source_queries return shape).
type sourceQuery struct {
	SearchQuery  string `json:"search_query"`
	UsageContext string `json:"usage_context"`
}

// sourceQueryPlan is the query-identification step's full output: 2-5
// primary historical queries and 2-5 scholarly queries, verified
// separately so each keeps its own source_type and tier-selection hint.
type sourceQueryPlan struct {
	PrimarySourceQueries   []sourceQuery `json:"primary_source_queries"`
	ScholarlySourceQueries []sourceQuery `json:"scholarly_source_queries"`
}

const maxSourceCandidates = 8

// evidenceSummaryFallback is returned when the evidence-summary LLM call
// fails; it is non-fatal to the stage (source_checker.py's
// _generate_evidence_summary catches every exception and returns this
// exact fallback string rather than failing the pipeline over prose).
const evidenceSummaryFallback = "Unable to generate evidence summary."

// SourceChecker enumerates up to 8 candidate sources for a claim and routes
// each through the Source Verification Service (spec §4.F.2, §4.D). No
// minimum count is enforced: any non-zero number of sources is returned.
type SourceChecker struct {
	agent.Base
	Verify *sourceverify.Service
}

// NewSourceChecker constructs the agent.
func NewSourceChecker(base agent.Base, verify *sourceverify.Service) *SourceChecker {
	base.AgentName = SourceCheckerName
	return &SourceChecker{Base: base, Verify: verify}
}

func (a *SourceChecker) Name() string { return SourceCheckerName }

// Execute implements agent.Capability. It is a two-step process
// (source_checker.py): first identify what sources are needed (this
// step's own LLM call, split into primary-historical and
// scholarly-peer-reviewed query groups), then verify each query through
// the Source Verification Service's tier walk.
func (a *SourceChecker) Execute(ctx context.Context, in agent.Inputs) (agent.Outputs, error) {
	started := time.Now()
	if err := agent.RequireKeys(a.Name(), in, "claim_text"); err != nil {
		return nil, err
	}
	claimText, _ := in["claim_text"].(string)

	cfg, err := a.LoadConfig(ctx)
	if err != nil {
		return nil, err
	}
	provider, err := a.ResolveProvider(cfg)
	if err != nil {
		return nil, err
	}

	a.EmitStarted()

	plan, err := a.identifySourceQueries(ctx, provider, cfg, claimText)
	if err != nil {
		a.EmitCompleted(time.Since(started), false)
		return nil, err
	}
	if len(plan.PrimarySourceQueries) == 0 && len(plan.ScholarlySourceQueries) == 0 {
		a.EmitCompleted(time.Since(started), false)
		return nil, &agent.Error{Agent: a.Name(), Class: agent.ErrParseError, Msg: "no source queries identified"}
	}

	sources := make([]model.Source, 0, len(plan.PrimarySourceQueries)+len(plan.ScholarlySourceQueries))
	sources = append(sources, a.verifyQueries(ctx, claimText, plan.PrimarySourceQueries, model.SourcePrimaryHistorical, "ancient")...)
	sources = append(sources, a.verifyQueries(ctx, claimText, plan.ScholarlySourceQueries, model.SourceScholarlyPeerReviewed, "paper")...)
	if len(sources) > maxSourceCandidates {
		sources = sources[:maxSourceCandidates]
	}
	if len(sources) == 0 {
		a.EmitCompleted(time.Since(started), false)
		return nil, &agent.Error{Agent: a.Name(), Class: agent.ErrLLMError, Msg: "no sources could be verified by any tier"}
	}

	summary := a.generateEvidenceSummary(ctx, provider, cfg, claimText, sources)

	a.EmitCompleted(time.Since(started), true)
	return agent.Outputs{"sources": sources, "evidence_summary": summary}, nil
}

// identifySourceQueries is step 1: ask the LLM what to look for before
// spending any tier-walk calls (source_checker.py's
// _identify_source_queries). A response that does not parse yields an
// empty plan, which Execute then reports as a parse error; a failed LLM
// call is returned as an LLM error.
func (a *SourceChecker) identifySourceQueries(ctx context.Context, provider llm.Provider, cfg *model.AgentPrompt, claimText string) (sourceQueryPlan, error) {
	prompt := fmt.Sprintf(`Identify sources needed to evaluate this claim:

Claim: %s

For each source, provide a search query that could be used to find it.

Respond with valid JSON:
{"primary_source_queries": [{"search_query": "Title Author keywords", "usage_context": "how this source is used"}],
 "scholarly_source_queries": [{"search_query": "Title Author keywords", "usage_context": "how this source supports analysis"}]}

Guidelines:
- Primary sources: original texts, manuscripts, historical documents
- Scholarly sources: peer-reviewed academic work, not apologetics
- Search queries should be specific (e.g. "Gospel of John Greek manuscripts")
- Provide 2 to 5 primary sources and 2 to 5 scholarly sources`, claimText)

	resp, err := llm.CompleteText(ctx, provider, llm.CompletionRequest{
		Model:        cfg.ModelName,
		SystemPrompt: cfg.SystemPrompt,
		Messages:     []llm.Message{{Role: "user", Content: prompt}},
		Temperature:  cfg.Temperature,
		MaxTokens:    cfg.MaxTokens,
	})
	if err != nil {
		return sourceQueryPlan{}, &agent.Error{Agent: a.Name(), Class: agent.ErrLLMError, Msg: "complete_text failed", Err: err}
	}

	var plan sourceQueryPlan
	if err := llm.ExtractJSON(resp.Text, &plan); err != nil {
		return sourceQueryPlan{}, nil
	}
	return plan, nil
}

// verifyQueries runs one query group through the tier walk, tagging each
// result with sourceType and steering tier selection with domainHint
// (spec §4.D "Tier selection policy").
func (a *SourceChecker) verifyQueries(ctx context.Context, claimText string, queries []sourceQuery, sourceType model.SourceType, domainHint string) []model.Source {
	sources := make([]model.Source, 0, len(queries))
	for _, q := range queries {
		result, err := a.Verify.Verify(ctx, sourceverify.Request{
			Title:        q.SearchQuery,
			ClaimText:    claimText,
			ClaimContext: q.UsageContext,
			SourceType:   sourceType,
			DomainHint:   domainHint,
		})
		if err != nil {
			continue // a tier-walk failure for one candidate does not fail the stage
		}
		src := model.Source{
			Citation:           result.Citation,
			URL:                result.URL,
			QuoteText:          result.QuoteText,
			UsageContext:       q.UsageContext,
			SourceType:         sourceType,
			VerificationMethod: result.VerificationMethod,
			VerificationStatus: result.VerificationStatus,
			ContentType:        result.ContentType,
			URLVerified:        result.URLVerified,
		}
		// Spec §8 P2: a source only keeps a URL if it was actually
		// verified reachable, or is empty outright for llm_unverified.
		src.NormalizeURLVerification()
		sources = append(sources, src)
	}
	return sources
}

// generateEvidenceSummary is the closing LLM call (source_checker.py's
// _generate_evidence_summary): a short prose summary the Adversarial
// Checker and Writer can consult. Failure is non-fatal to the stage.
func (a *SourceChecker) generateEvidenceSummary(ctx context.Context, provider llm.Provider, cfg *model.AgentPrompt, claimText string, sources []model.Source) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Sources:\n")
	for _, s := range sources {
		quote := s.QuoteText
		if len(quote) > 200 {
			quote = quote[:200]
		}
		fmt.Fprintf(&b, "- %s (%s): %s\n", s.Citation, s.SourceType, quote)
	}

	prompt := fmt.Sprintf(`Based on these sources, provide a brief summary (2-3 sentences) of what
the evidence shows about this claim:

Claim: %s

%s
Summary:`, claimText, b.String())

	resp, err := llm.CompleteText(ctx, provider, llm.CompletionRequest{
		Model:        cfg.ModelName,
		SystemPrompt: cfg.SystemPrompt,
		Messages:     []llm.Message{{Role: "user", Content: prompt}},
		Temperature:  cfg.Temperature,
		MaxTokens:    cfg.MaxTokens,
	})
	if err != nil {
		return evidenceSummaryFallback
	}
	summary := strings.TrimSpace(resp.Text)
	if summary == "" {
		return evidenceSummaryFallback
	}
	return summary
}
