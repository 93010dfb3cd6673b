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

// AdversarialCheckerName is this agent's AgentPrompt key.
const AdversarialCheckerName = "adversarial_checker"

// overlapThreshold is the word-overlap ratio above which a source's
// quote_text is considered present in the tier's returned content (spec
// §4.F.3 "word-overlap heuristic").
const overlapThreshold = 0.6

type adversarialVerdict struct {
	Verdict         string   `json:"verdict"`
	Explanation     string   `json:"explanation"`
	ApologeticsTags []string `json:"apologetics_tags"`
}

// AdversarialChecker re-verifies each source and produces a preliminary
// verdict on the claim, never failing the pipeline on a discrepancy —
// discrepancies are annotated into the audit trail instead (spec §4.F.3).
type AdversarialChecker struct {
	agent.Base
	Verify *sourceverify.Service
}

// NewAdversarialChecker constructs the agent.
func NewAdversarialChecker(base agent.Base, verify *sourceverify.Service) *AdversarialChecker {
	base.AgentName = AdversarialCheckerName
	return &AdversarialChecker{Base: base, Verify: verify}
}

func (a *AdversarialChecker) Name() string { return AdversarialCheckerName }

// Execute implements agent.Capability.
func (a *AdversarialChecker) Execute(ctx context.Context, in agent.Inputs) (agent.Outputs, error) {
	started := time.Now()
	if err := agent.RequireKeys(a.Name(), in, "claim_text", "sources"); err != nil {
		return nil, err
	}
	claimText, _ := in["claim_text"].(string)
	sources, _ := in["sources"].([]model.Source)
	evidenceSummary, _ := in["evidence_summary"].(string)

	notes := make([]model.ReverificationNote, 0, len(sources))
	reverified := make([]model.Source, 0, len(sources))
	for _, src := range sources {
		updated, note := a.reverifySource(ctx, claimText, src)
		notes = append(notes, note)
		reverified = append(reverified, updated)
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

	prompt := fmt.Sprintf(`Evaluate whether the CLAIM is factually accurate given the evidence. The
verdict is about the claim, not about the evidence.

Claim: %q

Evidence summary: %s

Sources and reverification notes:
%s

Also name any apologetics rhetorical techniques the claim or its sourcing
rely on (e.g. quote-mining, category error, false dichotomy, moving the
goalposts, appeal to authority). Leave the list empty if none apply.

Respond with JSON:
{"verdict": "True|Misleading|False|Unfalsifiable|Depends on Definitions",
 "explanation": "...",
 "apologetics_tags": ["..."]}`, claimText, orPlaceholder(evidenceSummary), formatNotesForPrompt(sources, notes))

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

	var out adversarialVerdict
	if err := a.ParseJSON(resp.Text, &out); err != nil {
		a.EmitCompleted(time.Since(started), false)
		return nil, err
	}

	a.EmitCompleted(time.Since(started), true)
	return agent.Outputs{
		"preliminary_verdict":  model.Verdict(out.Verdict),
		"reverification_notes": notes,
		"sources":              reverified,
		"verdict_explanation":  out.Explanation,
		"apologetics_tags":     out.ApologeticsTags,
	}, nil
}

// reverifySource re-walks §4.D for src: (a) checks quote_text appears or
// closely paraphrases the tier's returned content via word overlap, (b)
// rechecks URL reachability. It never errors the pipeline — a discrepancy
// is flagged, not fatal (spec §4.F.3). It returns src with URLVerified
// brought up to date with this recheck; a source whose URL is no longer
// reachable has its URLVerified flipped to false and, per spec §8 P2, its
// URL cleared along with it rather than persisting a since-rotted link
// under a stale "verified" flag.
func (a *AdversarialChecker) reverifySource(ctx context.Context, claimText string, src model.Source) (model.Source, model.ReverificationNote) {
	note := model.ReverificationNote{SourceURL: src.URL}

	result, err := a.Verify.Verify(ctx, sourceverify.Request{
		Title:      src.Citation,
		ClaimText:  claimText,
		SourceType: src.SourceType,
	})
	if err != nil || result == nil {
		note.Flag = "reverification tier walk failed; original verification unconfirmed"
		return src, note
	}

	note.OverlapScore = wordOverlap(src.QuoteText, result.QuoteText)
	note.QuoteMatched = note.OverlapScore >= overlapThreshold
	note.URLReachable = result.URLVerified

	if src.QuoteText != "" && !note.QuoteMatched {
		note.Flag = fmt.Sprintf("quote_text does not closely match reverified content (overlap %.2f)", note.OverlapScore)
	}
	if src.URL != "" && src.URLVerified && !note.URLReachable {
		urlFlag := "URL previously marked verified is no longer reachable"
		if note.Flag != "" {
			note.Flag += "; " + urlFlag
		} else {
			note.Flag = urlFlag
		}
		src.URLVerified = false
	}
	src.NormalizeURLVerification()
	return src, note
}

// wordOverlap is a simple word-overlap heuristic between a source's stored
// quote and freshly fetched content (spec §4.F.3): the fraction of the
// quote's distinct words that also appear in the content.
func wordOverlap(quote, content string) float64 {
	quote, content = strings.ToLower(quote), strings.ToLower(content)
	if quote == "" || content == "" {
		return 0
	}
	quoteWords := uniqueWords(quote)
	if len(quoteWords) == 0 {
		return 0
	}
	contentWords := uniqueWords(content)
	matches := 0
	for w := range quoteWords {
		if contentWords[w] {
			matches++
		}
	}
	return float64(matches) / float64(len(quoteWords))
}

func uniqueWords(s string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range strings.Fields(s) {
		out[w] = true
	}
	return out
}

func orPlaceholder(s string) string {
	if s == "" {
		return "(none generated)"
	}
	return s
}

func formatNotesForPrompt(sources []model.Source, notes []model.ReverificationNote) string {
	var b strings.Builder
	for i, src := range sources {
		fmt.Fprintf(&b, "- %s (%s, url_verified=%v)\n", src.Citation, src.VerificationStatus, src.URLVerified)
		if i < len(notes) && notes[i].Flag != "" {
			fmt.Fprintf(&b, "  reverification flag: %s\n", notes[i].Flag)
		}
	}
	return b.String()
}
