// Package router is the Router (spec §4.I): on every chat question it
// runs one LLM tool-calling loop exposing search_existing_claims,
// get_claim_details, and generate_new_claim, then derives EXACT_MATCH,
// CONTEXTUAL, or NOVEL_CLAIM from which of those tools the model actually
// invoked (plus, for a lone search call, the top candidate's similarity)
// rather than pre-computing the mode before the model gets to reason
// about it.
// Grounded on original_source/.../agents/router_agent.py (tool schemas,
// _call_llm_with_tools, _determine_mode precedence) and
// router_service.py (the three tools this package's Service implements).
package router

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/veritas-audit/veritas/internal/agent"
	"github.com/veritas-audit/veritas/internal/bus"
	"github.com/veritas-audit/veritas/internal/llm"
	"github.com/veritas-audit/veritas/internal/model"
)

// Name is the Router's AgentPrompt key. The Router is not a
// agent.Capability pipeline stage, but it follows the same "load config
// fresh on every invocation" rule as one (spec §4.I, §4.E step 1):
// skipping this load is exactly the tool-less, instruction-less call spec
// §4.I calls out as a common bug.
const Name = "router"

// Mode-selection thresholds against the top search candidate's similarity
// (spec §4.I, P-ROUTER-THRESHOLD): >=0.92 is the same claim restated,
// [0.80, 0.92) is close enough to answer from context, anything below (or
// no candidates at all) is a genuinely new claim. Only reached when the
// tool loop settles on a single search_existing_claims call — any other
// tool usage pattern decides the mode directly (determineMode).
const (
	exactMatchThreshold = 0.92
	contextualThreshold = 0.80

	maxToolIterations = 6
	searchResultLimit = 5
	citationFallbackN = 3
)

type decisionOutput struct {
	Answer                 string   `json:"answer"`
	ReferencedClaimCardIDs []string `json:"referenced_claim_card_ids"`
	Reasoning              string   `json:"reasoning"`
}

// Router drives one routing decision per question. Unlike the pipeline
// agents it does not embed agent.Base directly (its Bus.Publish calls take
// an explicit per-call sessionID rather than a fixed one), but it loads
// its AgentPrompt through the same ConfigLoader interface, fresh on every
// Decide call, never cached across requests.
type Router struct {
	Loader   agent.ConfigLoader
	Provider func(providerName string) (llm.Provider, error)
	Service  *Service
	Bus      *bus.Bus
}

// New builds a Router. loader and providerFn mirror agent.Base's Loader
// and Provider fields so the Router's config-loading follows the same
// rule the five pipeline agents follow.
func New(loader agent.ConfigLoader, providerFn func(providerName string) (llm.Provider, error), svc *Service, b *bus.Bus) *Router {
	return &Router{Loader: loader, Provider: providerFn, Service: svc, Bus: b}
}

// toolLoopResult is what the tool-calling loop learns about a question:
// the mode implied by which tools ran, the candidates the mandatory
// search turned up (for persistence per P9, regardless of mode), the
// session id if generate_new_claim was actually invoked mid-loop, and
// the model's final JSON turn.
type toolLoopResult struct {
	mode           model.RoutingMode
	candidates     []model.SearchCandidate
	novelSessionID string
	out            decisionOutput
}

// Decide runs the router's single mandatory tool loop and persists a
// decision no matter which branch runs or fails (P9) — the only way
// Decide returns an error is if that final write itself fails.
func (r *Router) Decide(ctx context.Context, sessionID, reformulatedQuestion string, history []model.ChatMessage) (*model.RouterDecision, error) {
	started := time.Now()
	r.publish(sessionID, bus.EventRoutingStarted, nil)

	cfg, err := r.Loader.AgentPromptByName(ctx, Name)
	if err != nil {
		return r.fallbackToNovel(ctx, sessionID, reformulatedQuestion, history, started, fmt.Sprintf("router config missing: %v", err))
	}
	provider, err := r.Provider(cfg.LLMProvider)
	if err != nil {
		return r.fallbackToNovel(ctx, sessionID, reformulatedQuestion, history, started, fmt.Sprintf("router resolve provider %q: %v", cfg.LLMProvider, err))
	}

	result, err := r.runToolLoop(ctx, provider, cfg, reformulatedQuestion, history)
	if err != nil {
		return r.fallbackToNovel(ctx, sessionID, reformulatedQuestion, history, started, fmt.Sprintf("router tool loop failed: %v", err))
	}

	decision := &model.RouterDecision{
		ReformulatedQuestion: reformulatedQuestion,
		ConversationContext:  history,
		ModeSelected:         result.mode,
		SearchCandidates:     result.candidates,
	}
	if len(history) > 0 {
		decision.QuestionText = history[len(history)-1].Content
	} else {
		decision.QuestionText = reformulatedQuestion
	}

	switch result.mode {
	case model.ModeNovelClaim:
		novelSessionID := result.novelSessionID
		if novelSessionID == "" {
			// The mode came from the similarity thresholds, not from the
			// model actually calling generate_new_claim (e.g. it answered
			// directly without reserving a run). Reserve one now so a
			// NOVEL_CLAIM decision always starts an audit.
			var genErr error
			novelSessionID, genErr = r.Service.GenerateNewClaim(ctx, reformulatedQuestion)
			if genErr != nil {
				return r.fallbackToNovel(ctx, sessionID, reformulatedQuestion, history, started, fmt.Sprintf("generate_new_claim failed: %v", genErr))
			}
		}
		decision.Reasoning = fmt.Sprintf("started a new audit under session %s", novelSessionID)
		if result.out.Reasoning != "" {
			decision.Reasoning = result.out.Reasoning + "; " + decision.Reasoning
		}

	default: // EXACT_MATCH, CONTEXTUAL
		ids := result.out.ReferencedClaimCardIDs
		if len(ids) == 0 {
			ids = topCandidateIDs(result.candidates, citationFallbackN)
		}
		decision.ClaimCardsReferenced = ids
		decision.Answer = result.out.Answer
		decision.Reasoning = result.out.Reasoning
	}

	decision.ResponseTimeMS = time.Since(started).Milliseconds()
	if err := r.Service.Store.InsertRouterDecision(ctx, decision); err != nil {
		return nil, fmt.Errorf("router: persist decision: %w", err)
	}
	r.publish(sessionID, bus.EventRoutingCompleted, map[string]any{"mode": string(decision.ModeSelected)})
	return decision, nil
}

// runToolLoop drives the single tool-calling round-trip that all three
// modes share (spec §4.I): the model sees all three tools on every call
// and decides for itself which to use. The mode is derived afterward from
// the pattern of tools actually invoked (determineMode), mirroring
// router_agent.py's _determine_mode rather than pre-computing the mode
// from thresholds before the model gets a turn.
func (r *Router) runToolLoop(ctx context.Context, provider llm.Provider, cfg *model.AgentPrompt, question string, history []model.ChatMessage) (*toolLoopResult, error) {
	var (
		toolNames       []string
		firstCandidates []model.SearchCandidate
		lastCandidates  []model.SearchCandidate
		novelSessionID  string
	)

	tools := []llm.ToolSpec{
		{
			Name: "search_existing_claims",
			Description: "Search for existing claim cards that might answer the question. " +
				"Returns candidates with similarity scores. You MUST call this first, before " +
				"concluding anything.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{"type": "string"},
					"limit": map[string]any{"type": "integer", "default": searchResultLimit},
				},
				"required": []string{"query"},
			},
		},
		{
			Name: "get_claim_details",
			Description: "Retrieve full details (deep answer, sources, verdict) for one " +
				"candidate found via search, when the summary alone isn't enough to answer.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"claim_id": map[string]any{"type": "string"},
				},
				"required": []string{"claim_id"},
			},
		},
		{
			Name: "generate_new_claim",
			Description: "Reserve a full 5-agent audit run for a question that is genuinely " +
				"not answered by any existing claim card. Be conservative: only call this " +
				"when the search results plainly don't cover the question.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"claim_text": map[string]any{"type": "string"},
				},
				"required": []string{"claim_text"},
			},
		},
	}

	resolve := func(ctx context.Context, call llm.ToolCall) (string, error) {
		toolNames = append(toolNames, call.Name)
		switch call.Name {
		case "search_existing_claims":
			query, _ := call.Input["query"].(string)
			if query == "" {
				query = question
			}
			limit := searchResultLimit
			if l, ok := call.Input["limit"].(float64); ok && l > 0 {
				limit = int(l)
			}
			candidates, err := r.Service.SearchExistingClaims(ctx, query, limit)
			if err != nil {
				return "", err
			}
			if firstCandidates == nil {
				firstCandidates = candidates
			}
			lastCandidates = candidates
			return formatCandidates(candidates), nil

		case "get_claim_details":
			id, _ := call.Input["claim_id"].(string)
			card, err := r.Service.GetClaimDetails(ctx, id)
			if err != nil {
				return fmt.Sprintf("not found: %v", err), nil
			}
			return fmt.Sprintf("verdict=%s short_answer=%q deep_answer=%q", card.Verdict, card.ShortAnswer, card.DeepAnswer), nil

		case "generate_new_claim":
			claimText, _ := call.Input["claim_text"].(string)
			if claimText == "" {
				claimText = question
			}
			sid, err := r.Service.GenerateNewClaim(ctx, claimText)
			if err != nil {
				return "", err
			}
			novelSessionID = sid
			return fmt.Sprintf("reservation_token=%s", sid), nil

		default:
			return "", fmt.Errorf("router: unknown tool %q", call.Name)
		}
	}

	prompt := fmt.Sprintf(`%s=== Current Question ===
%s

Use the tools available to route this question appropriately. Once you're
done, answer with JSON:
{"answer": "...", "referenced_claim_card_ids": ["..."], "reasoning": "..."}
If you called generate_new_claim, "answer" may be left empty since a full
audit is already underway.`, formatHistory(history), question)

	resp, _, err := llm.CompleteWithTools(ctx, provider, llm.CompletionRequest{
		Model:        cfg.ModelName,
		SystemPrompt: cfg.SystemPrompt,
		Messages:     []llm.Message{{Role: "user", Content: prompt}},
		Tools:        tools,
		Temperature:  cfg.Temperature,
		MaxTokens:    cfg.MaxTokens,
	}, resolve, maxToolIterations)
	if err != nil {
		return nil, err
	}

	var out decisionOutput
	if err := llm.ExtractJSON(resp.Text, &out); err != nil {
		return nil, err
	}

	mode := determineMode(toolNames, lastCandidates)
	candidates := firstCandidates
	if candidates == nil {
		candidates = []model.SearchCandidate{}
	}
	return &toolLoopResult{mode: mode, candidates: candidates, novelSessionID: novelSessionID, out: out}, nil
}

// determineMode mirrors router_agent.py's _determine_mode: generate_new_claim
// takes precedence over everything else, get_claim_details usage means the
// model composed a synthesis and so is CONTEXTUAL, a single search call
// falls back to the fixed similarity thresholds, and any other pattern
// (no tools at all, or more than one search with neither of the other two
// tools) defaults to CONTEXTUAL.
func determineMode(toolNames []string, candidates []model.SearchCandidate) model.RoutingMode {
	if len(toolNames) == 0 {
		return model.ModeContextual
	}
	if containsName(toolNames, "generate_new_claim") {
		return model.ModeNovelClaim
	}
	if containsName(toolNames, "get_claim_details") {
		return model.ModeContextual
	}
	if len(toolNames) == 1 && toolNames[0] == "search_existing_claims" {
		return modeFor(candidates)
	}
	return model.ModeContextual
}

func containsName(names []string, target string) bool {
	for _, n := range names {
		if n == target {
			return true
		}
	}
	return false
}

// fallbackToNovel is the hard-error path (spec §4.I: "on LLM failure,
// fall back to NOVEL_CLAIM and emit router_fallback"). It still attempts
// generate_new_claim so the user's question gets audited even though the
// faster tool-loop path broke, and it still persists a decision record
// either way.
func (r *Router) fallbackToNovel(ctx context.Context, sessionID, question string, history []model.ChatMessage, started time.Time, reason string) (*model.RouterDecision, error) {
	r.publish(sessionID, bus.EventRouterFallback, map[string]any{"reason": reason})

	decision := &model.RouterDecision{
		QuestionText:         question,
		ReformulatedQuestion: question,
		ConversationContext:  history,
		ModeSelected:         model.ModeNovelClaim,
		SearchCandidates:     []model.SearchCandidate{},
		Reasoning:            fmt.Sprintf("fell back to NOVEL_CLAIM: %s", reason),
	}
	if newSessionID, genErr := r.Service.GenerateNewClaim(ctx, question); genErr == nil {
		decision.Reasoning += fmt.Sprintf("; started audit under session %s", newSessionID)
	} else {
		decision.Reasoning += fmt.Sprintf("; generate_new_claim also failed: %v", genErr)
	}

	decision.ResponseTimeMS = time.Since(started).Milliseconds()
	if err := r.Service.Store.InsertRouterDecision(ctx, decision); err != nil {
		return nil, fmt.Errorf("router: persist fallback decision: %w", err)
	}
	return decision, nil
}

// modeFor is the pure threshold half of the mode rule (spec §4.I): given
// the mandatory search's candidates, decide by the top similarity alone.
// It's reached only when the tool loop settles on exactly one
// search_existing_claims call and neither of the other two tools.
func modeFor(candidates []model.SearchCandidate) model.RoutingMode {
	if len(candidates) == 0 {
		return model.ModeNovelClaim
	}
	switch top := candidates[0].Similarity; {
	case top >= exactMatchThreshold:
		return model.ModeExactMatch
	case top >= contextualThreshold:
		return model.ModeContextual
	default:
		return model.ModeNovelClaim
	}
}

func topCandidateIDs(candidates []model.SearchCandidate, n int) []string {
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ClaimID
	}
	return ids
}

func formatCandidates(candidates []model.SearchCandidate) string {
	if len(candidates) == 0 {
		return "(no candidates found)"
	}
	var b strings.Builder
	for i, c := range candidates {
		fmt.Fprintf(&b, "[%d] id=%s similarity=%.2f verdict=%s short_answer=%q\n", i+1, c.ClaimID, c.Similarity, c.Verdict, c.ShortAnswer)
	}
	return b.String()
}

// formatHistory renders the last five turns of dialogue the way
// router_agent.py's _build_user_message does, or nothing at all for a
// standalone opening question.
func formatHistory(history []model.ChatMessage) string {
	if len(history) == 0 {
		return ""
	}
	recent := history
	if len(recent) > 5 {
		recent = recent[len(recent)-5:]
	}
	var b strings.Builder
	b.WriteString("=== Conversation History ===\n")
	for _, msg := range recent {
		fmt.Fprintf(&b, "%s: %s\n", strings.ToUpper(msg.Role), msg.Content)
	}
	b.WriteString("\n")
	return b.String()
}

func (r *Router) publish(sessionID string, eventType bus.EventType, data map[string]any) {
	if r.Bus == nil {
		return
	}
	r.Bus.Publish(sessionID, eventType, data)
}
