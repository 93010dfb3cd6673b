// Package embed is the Embedding Service (spec §4.B): turns arbitrary
// UTF-8 text into a fixed-dimension vector for the Claim Store's vector
// column. Grounded on the reference implementation's
// services/embedding.py (ada-002, 1536 dims, 3-attempt exponential
// backoff), adapted onto the teacher's go-openai dependency instead of the
// Python SDK.
package embed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

const (
	// ModelName is the OpenAI embedding model used for every vector this
	// service produces; the dimension below is fixed for that model.
	ModelName = openai.AdaEmbeddingV2
	// Dimensions is the fixed vector width every embedding in this service
	// produces (spec §4.B: "the dimension is an implementation-wide
	// constant").
	Dimensions = 1536

	maxRetries  = 3
	retryDelay  = time.Second
)

// Error wraps a recoverable embedding failure. Per spec §4.B the service
// never silently returns a zero vector — every failure path returns this
// instead.
type Error struct {
	Msg string
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Service produces embeddings via OpenAI's embeddings endpoint.
type Service struct {
	client *openai.Client
	sleep  func(time.Duration)
}

// New creates an Embedding Service backed by the given OpenAI API key.
func New(apiKey string) (*Service, error) {
	if apiKey == "" {
		return nil, &Error{Msg: "OpenAI API key not configured"}
	}
	return &Service{
		client: openai.NewClient(apiKey),
		sleep:  time.Sleep,
	}, nil
}

// Embed generates a single Dimensions-length embedding for text. It
// retries transient provider errors with exponential backoff and never
// returns a zero vector on success.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &Error{Msg: "cannot generate embedding for empty text"}
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		resp, err := s.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Model: ModelName,
			Input: []string{text},
		})
		if err != nil {
			lastErr = err
			if attempt < maxRetries-1 {
				s.sleep(retryDelay * time.Duration(1<<uint(attempt)))
				continue
			}
			return nil, &Error{Msg: fmt.Sprintf("embedding failed after %d attempts", maxRetries), Err: lastErr}
		}

		if len(resp.Data) == 0 {
			return nil, &Error{Msg: "embedding API returned no data"}
		}
		vec := resp.Data[0].Embedding
		if len(vec) != Dimensions {
			return nil, &Error{Msg: fmt.Sprintf("unexpected embedding dimensions: %d (expected %d)", len(vec), Dimensions)}
		}
		return vec, nil
	}

	return nil, &Error{Msg: "embedding failed", Err: lastErr}
}

// BatchEmbed embeds multiple texts, preserving input order. A text that
// fails to embed (including an empty string) yields a nil entry rather
// than aborting the whole batch, mirroring the reference's
// batch_generate_embeddings fault-tolerance.
func (s *Service) BatchEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := s.Embed(ctx, text)
		if err != nil {
			continue
		}
		out[i] = vec
	}
	return out, nil
}
