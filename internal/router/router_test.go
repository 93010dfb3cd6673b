package router

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritas-audit/veritas/internal/bus"
	"github.com/veritas-audit/veritas/internal/llm"
	"github.com/veritas-audit/veritas/internal/model"
	"github.com/veritas-audit/veritas/internal/pipeline"
)

// fakeProvider answers each Complete call with the next canned response in
// order, so a test can script a full tool-calling round trip: a turn with
// ToolCalls, then a final turn with no ToolCalls.
type fakeProvider struct {
	responses     []*llm.CompletionResponse
	err           error
	supportsTools bool
	calls         int
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Complete(_ context.Context, _ llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.calls >= len(f.responses) {
		f.calls++
		return &llm.CompletionResponse{}, nil
	}
	resp := f.responses[f.calls]
	f.calls++
	return resp, nil
}

func (f *fakeProvider) IsAvailable(context.Context) bool { return true }
func (f *fakeProvider) SupportsTools() bool              { return f.supportsTools }

// finalJSON builds the no-more-tool-calls turn that ends the loop.
func finalJSON(text string) *llm.CompletionResponse {
	return &llm.CompletionResponse{Text: text}
}

// searchThenFinal is the common two-round script: the model calls
// search_existing_claims exactly once, then answers.
func searchThenFinal(query, final string) []*llm.CompletionResponse {
	return []*llm.CompletionResponse{
		{ToolCalls: []llm.ToolCall{{ID: "t1", Name: "search_existing_claims", Input: map[string]any{"query": query}}}},
		finalJSON(final),
	}
}

// fakeClaimStore is an in-memory double for the narrow ClaimStore
// interface Service needs, letting router tests pin exactly which
// candidates search_existing_claims returns.
type fakeClaimStore struct {
	candidates []model.SearchCandidate
	searchErr  error
	card       *model.ClaimCard
	decisions  []*model.RouterDecision
}

func (f *fakeClaimStore) SearchByEmbedding(context.Context, []float32, float64, int) ([]model.SearchCandidate, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.candidates, nil
}

func (f *fakeClaimStore) ClaimCardByID(_ context.Context, id string) (*model.ClaimCard, error) {
	if f.card == nil {
		return nil, fmt.Errorf("not found: %s", id)
	}
	return f.card, nil
}

func (f *fakeClaimStore) InsertRouterDecision(_ context.Context, d *model.RouterDecision) error {
	f.decisions = append(f.decisions, d)
	return nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{1, 0, 0, 0}, nil
}

// fakeConfigLoader answers AgentPromptByName with a fixed prompt unless
// err is set, letting tests exercise both the happy path and the
// config_missing fallback without a real store.
type fakeConfigLoader struct {
	prompt *model.AgentPrompt
	err    error
}

func (f fakeConfigLoader) AgentPromptByName(context.Context, string) (*model.AgentPrompt, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.prompt != nil {
		return f.prompt, nil
	}
	return &model.AgentPrompt{ModelName: "test-model", SystemPrompt: "route the question"}, nil
}

func newTestRouter(t *testing.T, store *fakeClaimStore, provider llm.Provider) *Router {
	t.Helper()
	// An empty-stage orchestrator lets generate_new_claim's background run
	// complete immediately without needing real agents, so Decide's
	// NOVEL_CLAIM branch records a real session id instead of a
	// "no orchestrator configured" failure.
	svc := NewService(store, fakeEmbedder{}, &pipeline.Orchestrator{})
	providerFn := func(string) (llm.Provider, error) { return provider, nil }
	return New(fakeConfigLoader{}, providerFn, svc, bus.New())
}

// P4: mode selection is a deterministic function of the top candidate's
// similarity alone, once the tool loop has settled on a lone search call.
func TestModeFor_ThresholdDeterminism(t *testing.T) {
	cases := []struct {
		name       string
		candidates []model.SearchCandidate
		want       model.RoutingMode
	}{
		{"empty -> novel", nil, model.ModeNovelClaim},
		{"below floor -> novel", []model.SearchCandidate{{Similarity: 0.79}}, model.ModeNovelClaim},
		{"at contextual floor, in band -> contextual", []model.SearchCandidate{{Similarity: 0.80}}, model.ModeContextual},
		{"just below exact -> contextual", []model.SearchCandidate{{Similarity: 0.91}}, model.ModeContextual},
		{"at exact threshold -> exact", []model.SearchCandidate{{Similarity: 0.92}}, model.ModeExactMatch},
		{"above exact -> exact", []model.SearchCandidate{{Similarity: 0.99}}, model.ModeExactMatch},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, modeFor(tc.candidates))
		})
	}
}

// determineMode governs the whole tool-usage-pattern precedence from
// router_agent.py's _determine_mode: generate_new_claim beats
// get_claim_details beats the threshold, and anything ambiguous defaults
// to CONTEXTUAL.
func TestDetermineMode_ToolUsagePrecedence(t *testing.T) {
	highSimilarity := []model.SearchCandidate{{Similarity: 0.95}}
	cases := []struct {
		name       string
		toolNames  []string
		candidates []model.SearchCandidate
		want       model.RoutingMode
	}{
		{"no tools called at all -> contextual default", nil, nil, model.ModeContextual},
		{"generate_new_claim wins over everything else", []string{"search_existing_claims", "get_claim_details", "generate_new_claim"}, highSimilarity, model.ModeNovelClaim},
		{"get_claim_details -> contextual even with exact-match similarity", []string{"search_existing_claims", "get_claim_details"}, highSimilarity, model.ModeContextual},
		{"lone search call defers to threshold", []string{"search_existing_claims"}, highSimilarity, model.ModeExactMatch},
		{"multiple search calls with no other tool -> contextual default", []string{"search_existing_claims", "search_existing_claims"}, highSimilarity, model.ModeContextual},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, determineMode(tc.toolNames, tc.candidates))
		})
	}
}

// P9: every call to Decide persists exactly one RouterDecision with
// SearchCandidates populated from the mandatory search, regardless of mode.
func TestDecide_AlwaysPersistsDecisionWithCandidates(t *testing.T) {
	store := &fakeClaimStore{candidates: []model.SearchCandidate{
		{ClaimID: "card-1", Similarity: 0.95, Verdict: string(model.VerdictTrue), ShortAnswer: "yes"},
	}}
	provider := &fakeProvider{
		supportsTools: true,
		responses: searchThenFinal("was Jesus buried in a tomb?",
			`{"answer": "Yes, per card-1.", "referenced_claim_card_ids": ["card-1"], "reasoning": "direct match"}`),
	}
	r := newTestRouter(t, store, provider)

	decision, err := r.Decide(context.Background(), "session-1", "was Jesus buried in a tomb?", nil)
	require.NoError(t, err)
	require.Len(t, store.decisions, 1)
	assert.Same(t, decision, store.decisions[0])
	assert.Equal(t, model.ModeExactMatch, decision.ModeSelected)
	assert.Len(t, decision.SearchCandidates, 1)
	assert.Equal(t, "Yes, per card-1.", decision.Answer)
	assert.Equal(t, []string{"card-1"}, decision.ClaimCardsReferenced)
}

func TestDecide_NovelClaim_NoCandidatesFromLoneSearch(t *testing.T) {
	store := &fakeClaimStore{}
	provider := &fakeProvider{
		supportsTools: true,
		responses:     searchThenFinal("a brand new claim nobody asked before", `{"answer": "", "reasoning": "nothing on file covers this"}`),
	}
	r := newTestRouter(t, store, provider)

	decision, err := r.Decide(context.Background(), "session-2", "a brand new claim nobody asked before", nil)
	require.NoError(t, err)
	require.Len(t, store.decisions, 1)
	assert.Equal(t, model.ModeNovelClaim, decision.ModeSelected)
	assert.Empty(t, decision.SearchCandidates)
	assert.Contains(t, decision.Reasoning, "started a new audit under session")
}

// When the model itself invokes generate_new_claim, that reservation's
// session id is the one recorded — Decide must not reserve a second run.
func TestDecide_NovelClaim_ModelInvokesGenerateNewClaimDirectly(t *testing.T) {
	store := &fakeClaimStore{candidates: []model.SearchCandidate{
		{ClaimID: "card-1", Similarity: 0.60, Verdict: string(model.VerdictTrue), ShortAnswer: "unrelated"},
	}}
	provider := &fakeProvider{
		supportsTools: true,
		responses: []*llm.CompletionResponse{
			{ToolCalls: []llm.ToolCall{{ID: "t1", Name: "search_existing_claims", Input: map[string]any{"query": "a genuinely new claim"}}}},
			{ToolCalls: []llm.ToolCall{{ID: "t2", Name: "generate_new_claim", Input: map[string]any{"claim_text": "a genuinely new claim"}}}},
			finalJSON(`{"answer": "", "reasoning": "existing cards don't cover this angle"}`),
		},
	}
	r := newTestRouter(t, store, provider)

	decision, err := r.Decide(context.Background(), "session-2b", "a genuinely new claim", nil)
	require.NoError(t, err)
	assert.Equal(t, model.ModeNovelClaim, decision.ModeSelected)
	assert.Len(t, decision.SearchCandidates, 1)
	assert.Contains(t, decision.Reasoning, "existing cards don't cover this angle")
}

// When the model calls get_claim_details, the mode is CONTEXTUAL
// regardless of how high the top candidate's similarity was.
func TestDecide_Contextual_ModelCallsGetClaimDetails(t *testing.T) {
	store := &fakeClaimStore{
		candidates: []model.SearchCandidate{
			{ClaimID: "card-1", Similarity: 0.95, Verdict: string(model.VerdictTrue), ShortAnswer: "yes"},
		},
		card: &model.ClaimCard{ID: "card-1", Verdict: model.VerdictTrue, ShortAnswer: "yes", DeepAnswer: "the long version"},
	}
	provider := &fakeProvider{
		supportsTools: true,
		responses: []*llm.CompletionResponse{
			{ToolCalls: []llm.ToolCall{{ID: "t1", Name: "search_existing_claims", Input: map[string]any{"query": "was Jesus buried"}}}},
			{ToolCalls: []llm.ToolCall{{ID: "t2", Name: "get_claim_details", Input: map[string]any{"claim_id": "card-1"}}}},
			finalJSON(`{"answer": "Yes, with more nuance.", "referenced_claim_card_ids": ["card-1"], "reasoning": "used the deep answer"}`),
		},
	}
	r := newTestRouter(t, store, provider)

	decision, err := r.Decide(context.Background(), "session-2c", "was Jesus buried in a tomb, with sources?", nil)
	require.NoError(t, err)
	assert.Equal(t, model.ModeContextual, decision.ModeSelected)
	assert.Equal(t, "Yes, with more nuance.", decision.Answer)
	assert.Equal(t, []string{"card-1"}, decision.ClaimCardsReferenced)
}

// Fallback path: a search failure still yields a persisted NOVEL_CLAIM
// decision and a router_fallback event, never a bare error up the stack.
func TestDecide_SearchFailure_FallsBackToNovelAndPersists(t *testing.T) {
	store := &fakeClaimStore{searchErr: fmt.Errorf("embedding backend down")}
	provider := &fakeProvider{
		supportsTools: true,
		responses:     searchThenFinal("does this fail gracefully?", `{"answer": "", "reasoning": "n/a"}`),
	}
	r := newTestRouter(t, store, provider)

	events := r.Bus.Subscribe("session-3")

	decision, err := r.Decide(context.Background(), "session-3", "does this fail gracefully?", nil)
	require.NoError(t, err)
	require.Len(t, store.decisions, 1)
	assert.Equal(t, model.ModeNovelClaim, decision.ModeSelected)
	assert.Contains(t, decision.Reasoning, "fell back to NOVEL_CLAIM")
	assert.Contains(t, decision.Reasoning, "router tool loop failed")

	// Decide publishes routing_started before the fallback fires.
	select {
	case ev := <-events:
		assert.Equal(t, bus.EventRoutingStarted, ev.Type)
	default:
		t.Fatal("expected a routing_started event to have been published")
	}
	select {
	case ev := <-events:
		assert.Equal(t, bus.EventRouterFallback, ev.Type)
	default:
		t.Fatal("expected a router_fallback event to have been published")
	}
}

// A final turn that isn't valid JSON also falls back to NOVEL_CLAIM rather
// than surfacing a raw parse error to the caller.
func TestDecide_SynthesisFailure_FallsBackToNovel(t *testing.T) {
	store := &fakeClaimStore{candidates: []model.SearchCandidate{
		{ClaimID: "card-1", Similarity: 0.85, Verdict: string(model.VerdictTrue), ShortAnswer: "yes"},
	}}
	provider := &fakeProvider{
		supportsTools: true,
		responses:     searchThenFinal("a contextual question", "not valid json at all"),
	}
	r := newTestRouter(t, store, provider)

	decision, err := r.Decide(context.Background(), "session-4", "a contextual question", nil)
	require.NoError(t, err)
	assert.Equal(t, model.ModeNovelClaim, decision.ModeSelected)
	assert.Contains(t, decision.Reasoning, "fell back to NOVEL_CLAIM")
}

func TestDecide_UsesLastHistoryMessageAsQuestionText(t *testing.T) {
	store := &fakeClaimStore{}
	provider := &fakeProvider{
		supportsTools: true,
		responses:     searchThenFinal("reformulated: second turn", `{"answer": "", "reasoning": "n/a"}`),
	}
	r := newTestRouter(t, store, provider)

	history := []model.ChatMessage{
		{Role: "user", Content: "first turn"},
		{Role: "assistant", Content: "a reply"},
		{Role: "user", Content: "second turn, the real question"},
	}
	decision, err := r.Decide(context.Background(), "session-5", "reformulated: second turn", history)
	require.NoError(t, err)
	assert.Equal(t, "second turn, the real question", decision.QuestionText)
}

// The router must load its AgentPrompt fresh on every Decide call and use
// it (system prompt, model) rather than falling through with no
// instructions at all; a missing config is a fallback, not a silent no-op.
func TestDecide_LoadsConfigEveryCall(t *testing.T) {
	store := &fakeClaimStore{candidates: []model.SearchCandidate{
		{ClaimID: "card-1", Similarity: 0.95, Verdict: string(model.VerdictTrue), ShortAnswer: "yes"},
	}}
	var gotModel, gotSystemPrompt string
	provider := &recordingProvider{
		responses: searchThenFinal("was Jesus buried in a tomb?",
			`{"answer": "Yes.", "referenced_claim_card_ids": ["card-1"], "reasoning": "direct match"}`),
		onComplete: func(req llm.CompletionRequest) {
			gotModel = req.Model
			gotSystemPrompt = req.SystemPrompt
		},
	}
	svc := NewService(store, fakeEmbedder{}, &pipeline.Orchestrator{})
	loader := fakeConfigLoader{prompt: &model.AgentPrompt{ModelName: "router-model", SystemPrompt: "you are the router"}}
	providerFn := func(string) (llm.Provider, error) { return provider, nil }
	r := New(loader, providerFn, svc, bus.New())

	_, err := r.Decide(context.Background(), "session-6", "was Jesus buried in a tomb?", nil)
	require.NoError(t, err)
	assert.Equal(t, "router-model", gotModel)
	assert.Equal(t, "you are the router", gotSystemPrompt)
}

func TestDecide_ConfigMissing_FallsBackToNovel(t *testing.T) {
	store := &fakeClaimStore{}
	r := newTestRouter(t, store, &fakeProvider{})
	r.Loader = fakeConfigLoader{err: fmt.Errorf("no agent prompt configured for router")}

	decision, err := r.Decide(context.Background(), "session-7", "does the missing config still audit?", nil)
	require.NoError(t, err)
	require.Len(t, store.decisions, 1)
	assert.Equal(t, model.ModeNovelClaim, decision.ModeSelected)
	assert.Contains(t, decision.Reasoning, "router config missing")
}

// recordingProvider is like fakeProvider but also captures the
// CompletionRequest of every Complete call, so tests can assert on
// SystemPrompt/Model without threading them through the mode-selection
// assertions above.
type recordingProvider struct {
	responses  []*llm.CompletionResponse
	calls      int
	onComplete func(llm.CompletionRequest)
}

func (f *recordingProvider) Name() string { return "recording-fake" }

func (f *recordingProvider) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if f.onComplete != nil {
		f.onComplete(req)
	}
	if f.calls >= len(f.responses) {
		f.calls++
		return &llm.CompletionResponse{}, nil
	}
	resp := f.responses[f.calls]
	f.calls++
	return resp, nil
}

func (f *recordingProvider) IsAvailable(context.Context) bool { return true }
func (f *recordingProvider) SupportsTools() bool              { return true }

func TestTopCandidateIDs_TruncatesToN(t *testing.T) {
	candidates := []model.SearchCandidate{
		{ClaimID: "a"}, {ClaimID: "b"}, {ClaimID: "c"}, {ClaimID: "d"},
	}
	assert.Equal(t, []string{"a", "b", "c"}, topCandidateIDs(candidates, 3))
	assert.Equal(t, []string{"a", "b", "c", "d"}, topCandidateIDs(candidates, 10))
}
