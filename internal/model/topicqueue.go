package model

import "time"

// TopicQueueEntry drives the scheduler's topic-to-article generation.
type TopicQueueEntry struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time

	TopicText    string
	Priority     int // 1-10
	Status       TopicStatus
	ReviewStatus ReviewStatus
	Source       string

	ClaimCardIDs []string
	BlogPostID   string

	ErrorMessage string
	RetryCount   int

	// ScheduledFor and AdminFeedback are supplemental fields recovered from
	// the reference implementation (see SPEC_FULL.md, Supplemented Features):
	// they let a rejected/needs-revision topic be requeued for a future run
	// with reviewer guidance attached, without the system auto-retrying it.
	ScheduledFor  *time.Time
	AdminFeedback string
}

// BlogPost is owned by exactly one TopicQueueEntry.
type BlogPost struct {
	ID        string
	CreatedAt time.Time

	TopicQueueID string
	Title        string
	ArticleBody  string
	ClaimCardIDs []string

	PublishedAt *time.Time
	ReviewedBy  string
	ReviewNotes string
}

// AgentPrompt is the hot-editable configuration row for one named agent.
// The Agent Framework re-reads it on every invocation (spec §4.E step 1,
// §9 "Process-wide state").
type AgentPrompt struct {
	AgentName    string
	LLMProvider  string
	ModelName    string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
}
