// Package sourceverify is the Source Verification Service (spec §4.D): a
// six-tier external-source lookup that the Source Checker and Adversarial
// Checker agents walk in order until a usable result is returned. Grounded
// on original_source/.../services/source_verification.py in full (tier
// order, _verify_url, _add_to_library, tier-selection-by-substring), with
// outbound HTTP reusing the teacher's internal/worker rate limiter and
// internal/cache layered cache for tier-result memoization.
package sourceverify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/veritas-audit/veritas/internal/cache"
	"github.com/veritas-audit/veritas/internal/llm"
	"github.com/veritas-audit/veritas/internal/model"
	"github.com/veritas-audit/veritas/internal/pipeline"
	"github.com/veritas-audit/veritas/internal/util"
	"github.com/veritas-audit/veritas/internal/validate"
	"github.com/veritas-audit/veritas/internal/worker"
)

// Tier names the §4.D position a Result was produced at.
type Tier int

const (
	TierLibraryReuse Tier = iota
	TierBookCatalog
	TierAcademic
	TierAncientText
	TierWebSearch
	TierLLMFallback
)

func (t Tier) String() string {
	switch t {
	case TierLibraryReuse:
		return "library_reuse"
	case TierBookCatalog:
		return "book_catalog"
	case TierAcademic:
		return "academic"
	case TierAncientText:
		return "ancient_text"
	case TierWebSearch:
		return "web_search"
	case TierLLMFallback:
		return "llm_fallback"
	default:
		return "unknown"
	}
}

// Request describes one desired source, as enumerated by the Source
// Checker or re-walked by the Adversarial Checker.
type Request struct {
	Title        string
	Author       string
	DOI          string
	ISBN         string
	ClaimText    string
	ClaimContext string // "used to establish X"
	SourceType   model.SourceType
	// DomainHint steers tier selection: "book", "paper", "ancient", or ""
	// for the generic walk (spec §4.D "Tier selection policy").
	DomainHint string
}

// Result is one tier's output: a usable record, or the caller moves on.
type Result struct {
	Tier               Tier
	Citation           string
	URL                string
	QuoteText          string
	VerificationMethod model.VerificationMethod
	VerificationStatus model.VerificationStatus
	ContentType        model.ContentType
	URLVerified        bool
}

// Embedder is the narrow embedding dependency Tier 0 needs to search the
// VerifiedSource library semantically.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Library is the narrow store dependency the service needs: semantic
// search over VerifiedSources (Tier 0) and adding newly-verified records
// back to that library (Tier 1-3 successes only; Tier 0 reuse, Tier 4 web
// search and Tier 5 LLM fallback are never added).
type Library interface {
	SearchVerifiedSources(ctx context.Context, vec []float32, threshold float64, limit int) ([]model.VerifiedSource, error)
	UpsertVerifiedSource(ctx context.Context, vs *model.VerifiedSource) error
}

// ToolLLM is the narrow LLM Gateway dependency: judging Tier 0 relevance
// and drafting a fresh quote, both single-shot completions.
type ToolLLM interface {
	CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)
}

// Config carries the optional external API credentials of spec §6; any
// may be blank, forcing fall-through to the next tier.
type Config struct {
	GoogleBooksAPIKey     string
	SemanticScholarAPIKey string
	TavilyAPIKey          string
	LibraryThreshold      float64 // default 0.85
	HTTPTimeout           time.Duration
	RequestsPerSecond     float64
	Burst                 int
	UserAgent             string
	HTTPProxy             string
	HTTPSProxy            string
	NoProxy               string
}

// Service walks the six tiers of spec §4.D.
type Service struct {
	cfg        Config
	library    Library
	embedder   Embedder
	llm        ToolLLM
	httpClient *http.Client
	fetcher    *pipeline.Fetcher
	limiter    *worker.Limiter
	cache      cache.Cache
}

// New builds a Service. library, embedder, and llmProvider are required;
// the tier-specific HTTP clients degrade gracefully when their API key is
// blank (spec §6 "each is optional individually").
func New(cfg Config, library Library, embedder Embedder, llmGateway ToolLLM, c cache.Cache) *Service {
	if cfg.LibraryThreshold == 0 {
		cfg.LibraryThreshold = 0.85
	}
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = 5 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "veritas-source-verifier/1.0"
	}
	return &Service{
		cfg:      cfg,
		library:  library,
		embedder: embedder,
		llm:      llmGateway,
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
			Transport: &http.Transport{
				Proxy: util.NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy),
			},
		},
		fetcher: pipeline.NewFetcher(cfg.HTTPTimeout, cfg.UserAgent, 0, false, cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy),
		limiter: worker.NewLimiter(orDefault(cfg.RequestsPerSecond, 2.0), orDefaultInt(cfg.Burst, 5)),
		cache:   c,
	}
}

func orDefault(v, d float64) float64 {
	if v == 0 {
		return d
	}
	return v
}
func orDefaultInt(v, d int) int {
	if v == 0 {
		return d
	}
	return v
}

// tierOrder returns the fixed fall-through sequence for req, starting at
// the tier its DomainHint matches and then walking the rest in §4.D's
// canonical order, always ending at Tier 5 (spec §4.D "Tier selection
// policy: ... falls through on failure").
func (s *Service) tierOrder(req Request) []Tier {
	all := []Tier{TierBookCatalog, TierAcademic, TierAncientText, TierWebSearch}
	start := 0
	switch req.DomainHint {
	case "paper":
		start = 1
	case "ancient":
		start = 2
	case "web":
		start = 3
	}
	ordered := append(append([]Tier{}, all[start:]...), all[:start]...)
	return append([]Tier{TierLibraryReuse}, append(ordered, TierLLMFallback)...)
}

// Verify walks the tiers of spec §4.D in order until one returns a usable
// Result, adding any verified record to the VerifiedSource library as it
// goes. It never returns an error for "no tier matched" — Tier 5's LLM
// fallback always succeeds, with an empty URL rather than a fabricated
// one (spec's "hard rule").
func (s *Service) Verify(ctx context.Context, req Request) (*Result, error) {
	for _, tier := range s.tierOrder(req) {
		var (
			res *Result
			err error
		)
		switch tier {
		case TierLibraryReuse:
			res, err = s.tierLibraryReuse(ctx, req)
		case TierBookCatalog:
			res, err = s.tierBookCatalog(ctx, req)
		case TierAcademic:
			res, err = s.tierAcademic(ctx, req)
		case TierAncientText:
			res, err = s.tierAncientText(ctx, req)
		case TierWebSearch:
			res, err = s.tierWebSearch(ctx, req)
		case TierLLMFallback:
			res, err = s.tierLLMFallback(ctx, req)
		}
		// External source tier failure is caught here and triggers the next
		// tier rather than failing the whole walk (spec §7).
		if err != nil || res == nil {
			continue
		}
		s.addToLibrary(ctx, req, res)
		return res, nil
	}
	// Unreachable: TierLLMFallback never returns (nil, nil) on success path,
	// but guard defensively rather than panic on a nil Result.
	return &Result{Tier: TierLLMFallback, VerificationMethod: model.MethodLLMUnverified, VerificationStatus: model.StatusUnverified}, nil
}

// addToLibrary records a verified result in the long-lived VerifiedSource
// library, keyed by normalized identifier (spec §4.D). Library reuse
// results, tier-4 web-search results, and ungrounded LLM fallback results
// are not re-added: the first already came from the library, and the
// latter two have no verified metadata worth keeping long-term (a Tavily
// hit is a paraphrase match, not a confirmed citation).
func (s *Service) addToLibrary(ctx context.Context, req Request, res *Result) {
	if res.Tier == TierLibraryReuse || res.Tier == TierWebSearch || res.Tier == TierLLMFallback {
		return
	}
	vec, err := s.embedder.Embed(ctx, req.Title+" "+req.ClaimText)
	if err != nil {
		return
	}
	vs := &model.VerifiedSource{
		SourceType:          string(req.SourceType),
		Title:               req.Title,
		Author:              req.Author,
		ISBN:                req.ISBN,
		DOI:                 req.DOI,
		URL:                 res.URL,
		ContentSnippet:      res.QuoteText,
		TopicKeywords:       keywordsOf(req.ClaimText),
		Embedding:           vec,
		VerificationMethod:  res.VerificationMethod,
		VerificationStatus:  res.VerificationStatus,
	}
	_ = s.library.UpsertVerifiedSource(ctx, vs)
}

func keywordsOf(text string) []string {
	fields := strings.Fields(text)
	if len(fields) > 12 {
		fields = fields[:12]
	}
	return fields
}

// verifyURL checks reachability for the Adversarial Checker's
// reverification: a single rate-limited HEAD request, with 200-399
// classified as reachable, per the teacher's own
// internal/validate/validator.go idiom (DESIGN.md "URL-verification
// strictness" decision). Tier 4 uses pageReachable instead.
func (s *Service) verifyURL(ctx context.Context, rawURL string) bool {
	if rawURL == "" {
		return false
	}
	if err := s.limiter.Wait(ctx, rawURL); err != nil {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return validate.IsAccessibleStatus(resp.StatusCode)
}

func (s *Service) cacheGet(key string, out any) bool {
	if s.cache == nil {
		return false
	}
	raw, ok := s.cache.Get(key)
	if !ok {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

func (s *Service) cacheSet(key string, v any, ttl time.Duration) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = s.cache.Set(key, raw, ttl)
}

var errNotApplicable = fmt.Errorf("sourceverify: tier not applicable")
