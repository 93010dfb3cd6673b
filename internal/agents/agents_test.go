package agents

import (
	"context"

	"github.com/veritas-audit/veritas/internal/agent"
	"github.com/veritas-audit/veritas/internal/llm"
	"github.com/veritas-audit/veritas/internal/model"
)

// fakeLoader returns a fixed AgentPrompt for every agent name, so a test
// never needs a real store wired in.
type fakeLoader struct {
	prompt *model.AgentPrompt
	err    error
}

func (f *fakeLoader) AgentPromptByName(context.Context, string) (*model.AgentPrompt, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.prompt, nil
}

func defaultPrompt() *model.AgentPrompt {
	return &model.AgentPrompt{
		AgentName: "test-agent", LLMProvider: "fake", ModelName: "fake-model",
		SystemPrompt: "be precise", Temperature: 0.1, MaxTokens: 1000,
	}
}

// fakeProvider returns a canned completion text for every call.
type fakeProvider struct {
	text          string
	err           error
	supportsTools bool
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Complete(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &llm.CompletionResponse{Text: f.text}, nil
}

func (f *fakeProvider) IsAvailable(context.Context) bool { return true }
func (f *fakeProvider) SupportsTools() bool              { return f.supportsTools }

func newTestBase(prompt *model.AgentPrompt, provider llm.Provider) agent.Base {
	return agent.Base{
		Loader: &fakeLoader{prompt: prompt},
		Provider: func(string) (llm.Provider, error) {
			return provider, nil
		},
		SessionID: "test-session",
	}
}
