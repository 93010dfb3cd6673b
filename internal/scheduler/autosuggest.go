package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/veritas-audit/veritas/internal/extract/adapters"
	"github.com/veritas-audit/veritas/internal/model"
	"github.com/veritas-audit/veritas/internal/pipeline"
	"github.com/veritas-audit/veritas/internal/util"
	"github.com/veritas-audit/veritas/internal/validate"
)

// TopicCreator is the narrow store dependency auto-suggest needs to
// enqueue survivors.
type TopicCreator interface {
	CreateTopicQueueEntry(ctx context.Context, entry *model.TopicQueueEntry) error
}

// DedupSearcher is the narrow Claim Store dependency auto-suggest needs
// to check whether a discovered sentence is already covered.
type DedupSearcher interface {
	SearchByEmbedding(ctx context.Context, vec []float32, threshold float64, limit int) ([]model.SearchCandidate, error)
}

// boostedPriority is the queue priority a discovered topic gets when at
// least one of its page's outbound citations is independently accessible
// and classifies as primary- or secondary-authority (spec §4.J
// Auto-suggest is silent on priority; this mirrors the Decomposer/Composer
// convention of treating better-sourced claims as more worth auditing
// first). basePriority is used otherwise.
const (
	basePriority    = 5
	boostedPriority = 7
)

// AutoSuggester discovers new candidate topics by crawling a fixed set of
// seed URLs. It picks a domain-specific extraction adapter per URL
// (Wikipedia, legal/government corpora, or the generic fallback) via
// internal/extract/adapters, extracts both claim-like sentences and
// outbound citation links from the fetched page, validates the citation
// links' reachability and authority tier via internal/validate, and
// enqueues any claim sentence that isn't already a near-duplicate of a
// claim on file. Its threshold (0.85) is deliberately independent of the
// Decomposer's dedup threshold (0.92, see DESIGN.md) since the two serve
// different purposes: this one filters noisy discovery, that one prevents
// re-auditing.
type AutoSuggester struct {
	Store     TopicCreator
	Embedder  Embedder
	Dedup     DedupSearcher
	Robots    *util.RobotsChecker
	Registry  *adapters.Registry
	Validator *validate.Validator
	Fetcher   *pipeline.Fetcher
	Threshold float64
}

// NewAutoSuggester wires an AutoSuggester from the scheduler's verify-stack
// HTTP settings (same user agent / timeout the Source Verification
// Service uses for courteous crawling).
func NewAutoSuggester(store TopicCreator, embedder Embedder, dedup DedupSearcher, userAgent string, httpTimeout time.Duration, threshold float64) *AutoSuggester {
	return &AutoSuggester{
		Store:     store,
		Embedder:  embedder,
		Dedup:     dedup,
		Robots:    util.NewRobotsChecker(userAgent, httpTimeout),
		Registry:  adapters.NewRegistry(),
		Validator: validate.NewValidator(httpTimeout, 10, "", "", ""),
		Fetcher:   pipeline.NewFetcher(httpTimeout, userAgent, 0, false, "", "", ""),
		Threshold: threshold,
	}
}

// Discover fetches each seed URL (honoring robots.txt), picks the
// adapter that best fits its domain, extracts both claim-like sentences
// and outbound citation links, and enqueues the claims that aren't
// already near-duplicates of a claim on file. A seed page whose citation
// links include at least one accessible primary- or secondary-authority
// source is enqueued at a higher priority. Seed URLs that cannot be
// fetched, or whose robots.txt disallows it, are skipped rather than
// failing the run.
func (a *AutoSuggester) Discover(ctx context.Context, seedURLs []string) (int, error) {
	enqueued := 0
	for _, seedURL := range seedURLs {
		allowed, _, err := a.Robots.CanFetch(ctx, seedURL)
		if err != nil || !allowed {
			continue
		}
		fetched, err := a.Fetcher.FetchWithRetry(ctx, seedURL)
		if err != nil {
			continue
		}
		doc, err := html.Parse(strings.NewReader(fetched.HTML))
		if err != nil {
			continue
		}
		adapter := a.Registry.FindAdapter(seedURL, "text/html")

		claims, err := adapter.ExtractClaims(doc, seedURL)
		if err != nil || len(claims) == 0 {
			continue
		}

		priority := basePriority
		if evidence, evErr := adapter.ExtractEvidence(doc, seedURL); evErr == nil && len(evidence) > 0 {
			if results, valErr := a.Validator.Validate(ctx, evidence); valErr == nil && hasAuthoritativeAccessibleSource(results) {
				priority = boostedPriority
			}
		}

		for _, claim := range claims {
			novel, err := a.isNovel(ctx, claim.Text)
			if err != nil || !novel {
				continue
			}
			entry := &model.TopicQueueEntry{
				TopicText: claim.Text,
				Priority:  priority,
				Source:    fmt.Sprintf("auto_suggest:%s:%s", adapter.Name(), seedURL),
			}
			if err := a.Store.CreateTopicQueueEntry(ctx, entry); err != nil {
				return enqueued, fmt.Errorf("scheduler: enqueue suggested topic: %w", err)
			}
			enqueued++
		}
	}
	return enqueued, nil
}

// hasAuthoritativeAccessibleSource reports whether any validated citation
// link is both reachable and classified primary or secondary authority.
func hasAuthoritativeAccessibleSource(results []model.ValidationResult) bool {
	for _, r := range results {
		if r.IsAccessible && (r.Authority == model.TierPrimary || r.Authority == model.TierSecondary) {
			return true
		}
	}
	return false
}

func (a *AutoSuggester) isNovel(ctx context.Context, text string) (bool, error) {
	vec, err := a.Embedder.Embed(ctx, text)
	if err != nil {
		return false, err
	}
	existing, err := a.Dedup.SearchByEmbedding(ctx, vec, a.Threshold, 1)
	if err != nil {
		return false, err
	}
	return len(existing) == 0, nil
}
