// Package llm is the provider-agnostic LLM Gateway (spec §4.C): single-shot
// text completion, a bounded tool-calling loop, and JSON extraction from
// free-form model output. It generalizes the teacher's single-purpose
// "Summarize" call into the two gateway operations every pipeline agent and
// the Router build on.
package llm

import "context"

// Message is one turn of a completion transcript.
type Message struct {
	Role    string // "system" | "user" | "assistant" | "tool"
	Content string

	// ToolCalls is set on an assistant message that requested tool use.
	ToolCalls []ToolCall
	// ToolCallID ties a "tool" role message back to the ToolCall it answers.
	ToolCallID string
}

// ToolSpec describes one callable tool in the provider-neutral shape the
// Router builds once; every backend translates it to its own wire format.
type ToolSpec struct {
	Name        string
	Description string
	InputSchema map[string]any // JSON Schema object
}

// ToolCall is a single tool invocation the model requested.
type ToolCall struct {
	ID    string
	Name  string
	Input map[string]any
}

// Usage reports token accounting for a completion.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// CompletionRequest configures a single gateway call (spec §4.C: "provider,
// model, temperature, max tokens, system prompt").
type CompletionRequest struct {
	Model        string
	SystemPrompt string
	Messages     []Message
	Temperature  float64
	MaxTokens    int
	Tools        []ToolSpec
}

// CompletionResponse is one model turn: either a final text answer or a set
// of tool calls the caller must resolve before continuing the loop.
type CompletionResponse struct {
	Text      string
	ToolCalls []ToolCall
	Usage     Usage
	// StopReason is "tool_use" when ToolCalls is non-empty and the provider
	// expects them resolved before it will produce final text.
	StopReason string
}

// FailureKind tags a gateway error so callers can distinguish transient
// transport problems from content faults (spec §4.C).
type FailureKind string

const (
	FailureProviderError FailureKind = "provider_error"
	FailureInvalidOutput FailureKind = "invalid_output"
	FailureToolError     FailureKind = "tool_error"
)

// Error is a gateway failure tagged with its FailureKind.
type Error struct {
	Kind FailureKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Provider is one LLM backend.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	IsAvailable(ctx context.Context) bool
	// SupportsTools reports whether Complete honors req.Tools. The Router
	// (spec §4.I) requires a tool-capable provider; others may ignore Tools
	// and return FailureToolError if asked to use them.
	SupportsTools() bool
}

// Config holds one backend's connection settings.
type Config struct {
	Provider   string // anthropic | openai | ollama
	Model      string
	APIKey     string
	BaseURL    string
	Timeout    int // seconds
	MaxTokens  int
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible per-backend defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:   30,
		MaxTokens: 4096,
	}
}
