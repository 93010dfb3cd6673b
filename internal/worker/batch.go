package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/veritas-audit/veritas/internal/model"
)

// TopicProcessor runs a single topic queue entry through the five-stage
// pipeline (spec §4.G) and returns the resulting blog post.
type TopicProcessor interface {
	ProcessTopic(ctx context.Context, entry model.TopicQueueEntry) (*model.BlogPost, error)
}

// TopicJob adapts a queued topic into a Pool Job.
type TopicJob struct {
	Entry     model.TopicQueueEntry
	Processor TopicProcessor
}

// Execute runs the pipeline for this topic.
func (j *TopicJob) Execute(ctx context.Context) Result {
	post, err := j.Processor.ProcessTopic(ctx, j.Entry)
	return &TopicResult{Entry: j.Entry, Post: post, Error: err}
}

// TopicResult carries the outcome of processing one queued topic.
type TopicResult struct {
	Entry model.TopicQueueEntry
	Post  *model.BlogPost
	Error error
}

// GetError returns the error from processing, satisfying worker.Result.
func (r *TopicResult) GetError() error {
	return r.Error
}

// TopicBatch runs several queued topics through the pipeline concurrently,
// bounded by max_concurrent (spec §4.J Scheduler config). This reuses the
// same Pool the teacher built for bulk URL scanning, repointed at topic
// queue entries instead of raw URLs.
type TopicBatch struct {
	processor   TopicProcessor
	concurrency int
}

// NewTopicBatch creates a batch runner bounded to concurrency workers.
func NewTopicBatch(processor TopicProcessor, concurrency int) *TopicBatch {
	return &TopicBatch{processor: processor, concurrency: concurrency}
}

// ProcessTopics runs every entry through the pipeline, at most concurrency
// at a time, and returns one TopicResult per entry (order not guaranteed).
func (b *TopicBatch) ProcessTopics(ctx context.Context, entries []model.TopicQueueEntry) []*TopicResult {
	if len(entries) == 0 {
		return []*TopicResult{}
	}

	pool := NewPool(b.concurrency)
	pool.Start()

	for _, entry := range entries {
		pool.Submit(&TopicJob{Entry: entry, Processor: b.processor})
	}

	results := pool.Wait()

	topicResults := make([]*TopicResult, len(results))
	for i, result := range results {
		topicResults[i] = result.(*TopicResult)
	}

	return topicResults
}

// ReadLinesFromFile reads newline-delimited entries from a file, skipping
// blank lines and '#' comments and deduplicating. Used by the CLI's batch
// audit mode to load a list of claims from a file instead of stdin.
func ReadLinesFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var lines []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			lines = append(lines, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return lines, nil
}
