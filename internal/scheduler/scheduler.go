// Package scheduler is the Scheduler (spec §4.J): a cron-driven loop that
// leases queued topics, decomposes each into component claims, dedupes
// components against the Claim Store before auditing only the novel
// ones, synthesizes a blog post, and files it for review. Grounded on
// original_source/.../services/scheduler.py's generate_next_blog_post
// six-step flow (lease-by-status-transition, _find_existing_claim /
// _generate_claim_card helpers); bounded concurrency reuses the teacher's
// internal/worker.Pool pattern for max_concurrent topic processing.
package scheduler

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/veritas-audit/veritas/internal/agent"
	"github.com/veritas-audit/veritas/internal/agents"
	"github.com/veritas-audit/veritas/internal/bus"
	"github.com/veritas-audit/veritas/internal/model"
	"github.com/veritas-audit/veritas/internal/pipeline"
	"github.com/veritas-audit/veritas/internal/worker"
)

// Store is the narrow Claim/TopicQueue/BlogPost store dependency the
// scheduler needs.
type Store interface {
	LeaseNextQueued(ctx context.Context) (*model.TopicQueueEntry, error)
	UpdateTopicQueueEntry(ctx context.Context, entry *model.TopicQueueEntry) error
	SearchByEmbedding(ctx context.Context, vec []float32, threshold float64, limit int) ([]model.SearchCandidate, error)
	ClaimCardByID(ctx context.Context, id string) (*model.ClaimCard, error)
	InsertBlogPost(ctx context.Context, post *model.BlogPost) error
}

// Embedder is the narrow embedding dependency component dedup needs.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Scheduler runs the topic->article pipeline on a fixed daily cadence.
type Scheduler struct {
	Store        Store
	Embedder     Embedder
	Orchestrator *pipeline.Orchestrator
	Decomposer   agent.Capability
	Composer     agent.Capability
	Bus          *bus.Bus
	Config       model.SchedulerConfig
}

// New wires a Scheduler.
func New(store Store, embedder Embedder, orchestrator *pipeline.Orchestrator, decomposer, composer agent.Capability, b *bus.Bus, cfg model.SchedulerConfig) *Scheduler {
	return &Scheduler{Store: store, Embedder: embedder, Orchestrator: orchestrator, Decomposer: decomposer, Composer: composer, Bus: b, Config: cfg}
}

// RunOnce leases up to PostsPerDay queued topics and processes them with
// MaxConcurrent bounded parallelism (spec §4.J). The `veritas scheduler-run`
// command calls it once per run; scheduling the runs is left to an
// external cron trigger.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	concurrency := s.Config.MaxConcurrent
	if concurrency <= 0 {
		concurrency = 1
	}
	pool := worker.NewPool(concurrency)
	pool.Start()

	leased := 0
	for leased < s.Config.PostsPerDay {
		entry, err := s.Store.LeaseNextQueued(ctx)
		if err != nil {
			pool.Shutdown()
			return fmt.Errorf("scheduler: lease_next_queued: %w", err)
		}
		if entry == nil {
			break
		}
		leased++
		pool.Submit(&topicJob{sched: s, ctx: ctx, entry: entry})
	}
	if leased == 0 {
		pool.Shutdown()
		return nil
	}

	var firstErr error
	for _, r := range pool.Wait() {
		if err := r.GetError(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

type topicJob struct {
	sched *Scheduler
	ctx   context.Context
	entry *model.TopicQueueEntry
}

type jobResult struct{ err error }

func (j jobResult) GetError() error { return j.err }

func (j *topicJob) Execute(context.Context) worker.Result {
	return jobResult{err: j.sched.processTopic(j.ctx, j.entry)}
}

// processTopic runs one leased topic through decompose -> per-component
// dedup-or-audit -> compose -> publish-for-review.
func (s *Scheduler) processTopic(ctx context.Context, entry *model.TopicQueueEntry) error {
	fail := func(err error) error {
		entry.Status = model.TopicFailed
		entry.ErrorMessage = err.Error()
		_ = s.Store.UpdateTopicQueueEntry(ctx, entry)
		return err
	}

	decOut, err := s.Decomposer.Execute(ctx, agent.Inputs{"topic_text": entry.TopicText})
	if err != nil {
		return fail(fmt.Errorf("decompose: %w", err))
	}
	components, _ := decOut["component_claims"].([]string)

	cards := make([]agents.ComponentCard, 0, len(components))
	claimCardIDs := make([]string, 0, len(components))
	for _, component := range components {
		card, err := s.resolveComponent(ctx, component)
		if err != nil {
			return fail(fmt.Errorf("component %q: %w", component, err))
		}
		cards = append(cards, *card)
		claimCardIDs = append(claimCardIDs, card.ID)
	}

	compOut, err := s.Composer.Execute(ctx, agent.Inputs{
		"topic_text":      entry.TopicText,
		"component_cards": cards,
	})
	if err != nil {
		return fail(fmt.Errorf("compose: %w", err))
	}
	title, _ := compOut["title"].(string)
	articleBody, _ := compOut["article_body"].(string)

	post := &model.BlogPost{
		TopicQueueID: entry.ID,
		Title:        title,
		ArticleBody:  articleBody,
		ClaimCardIDs: claimCardIDs,
	}
	if err := s.Store.InsertBlogPost(ctx, post); err != nil {
		return fail(fmt.Errorf("insert blog post: %w", err))
	}

	entry.Status = model.TopicCompleted
	entry.ReviewStatus = model.ReviewPending
	entry.ClaimCardIDs = claimCardIDs
	entry.BlogPostID = post.ID
	return s.Store.UpdateTopicQueueEntry(ctx, entry)
}

// resolveComponent reuses an existing claim card when one is already a
// near-duplicate (>= DecomposerDedupThreshold), otherwise runs the full
// pipeline to audit the component fresh.
func (s *Scheduler) resolveComponent(ctx context.Context, componentClaim string) (*agents.ComponentCard, error) {
	vec, err := s.Embedder.Embed(ctx, componentClaim)
	if err != nil {
		return nil, fmt.Errorf("embed component: %w", err)
	}
	existing, err := s.Store.SearchByEmbedding(ctx, vec, s.Config.DecomposerDedupThreshold, 1)
	if err != nil {
		return nil, fmt.Errorf("dedup search: %w", err)
	}
	if len(existing) > 0 {
		card, err := s.Store.ClaimCardByID(ctx, existing[0].ClaimID)
		if err != nil {
			return nil, err
		}
		return &agents.ComponentCard{ID: card.ID, ClaimText: card.ClaimText, ShortAnswer: card.ShortAnswer, Verdict: card.Verdict}, nil
	}

	sessionID := "scheduler-" + uuid.NewString()
	result, err := s.Orchestrator.Run(ctx, sessionID, agent.Inputs{"question": componentClaim})
	if err != nil {
		return nil, fmt.Errorf("audit component: %w", err)
	}
	card, _ := result.Final["claim_card"].(*model.ClaimCard)
	if card == nil {
		return nil, fmt.Errorf("pipeline completed without a claim card")
	}
	return &agents.ComponentCard{ID: card.ID, ClaimText: card.ClaimText, ShortAnswer: card.ShortAnswer, Verdict: card.Verdict}, nil
}
