// Package agent is the Agent Framework (spec §4.E): the common shape every
// pipeline agent follows — load its hot-editable config, validate input,
// render a prompt, call the LLM Gateway, parse structured output, and emit
// progress. Grounded on original_source/.../agents/base.py's BaseAgent,
// translated into the Go "Capability" shape spec §9 calls for ("dynamic
// dispatch across agents... a common capability {load_config,
// render_prompt, execute(inputs)->outputs, emit(events)}").
package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/veritas-audit/veritas/internal/bus"
	"github.com/veritas-audit/veritas/internal/llm"
	"github.com/veritas-audit/veritas/internal/model"
)

// ErrorClass tags why an agent invocation failed (spec §4.E).
type ErrorClass string

const (
	ErrConfigMissing ErrorClass = "config_missing"
	ErrBadInput      ErrorClass = "bad_input"
	ErrLLMError      ErrorClass = "llm_error"
	ErrParseError    ErrorClass = "parse_error"
)

// Error is a classified, fatal agent failure. Every class in spec §4.E is
// fatal to the pipeline; there is no retry class.
type Error struct {
	Agent string
	Class ErrorClass
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("agent %s: %s: %s: %v", e.Agent, e.Class, e.Msg, e.Err)
	}
	return fmt.Sprintf("agent %s: %s: %s", e.Agent, e.Class, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// ConfigLoader loads an agent's hot-editable prompt configuration on every
// invocation (spec §4.E step 1, §9 "process-wide state... read per
// invocation, never cache"). Implemented by *store.Store.
type ConfigLoader interface {
	AgentPromptByName(ctx context.Context, agentName string) (*model.AgentPrompt, error)
}

// Inputs is the aggregated dictionary of prior-stage outputs the
// orchestrator threads through the pipeline (spec §4.G: "per-stage outputs
// are merged into this dictionary before the next stage starts").
type Inputs map[string]any

// Outputs is one stage's contribution, merged into Inputs for the next.
type Outputs map[string]any

// RequireKeys validates that in has every key the agent requires (spec
// §4.E step 2), returning a bad-input error naming the first missing key.
func RequireKeys(agentName string, in Inputs, keys ...string) error {
	for _, k := range keys {
		if _, ok := in[k]; !ok {
			return &Error{Agent: agentName, Class: ErrBadInput, Msg: fmt.Sprintf("missing required input key %q", k)}
		}
	}
	return nil
}

// Capability is the uniform shape the orchestrator drives every pipeline
// agent through (spec §9 "dynamic dispatch across agents").
type Capability interface {
	// Name identifies this agent for AgentPrompt lookup and progress events.
	Name() string
	// Execute runs the full load-config/validate/prompt/call/parse/emit
	// cycle and returns this stage's contribution to the pipeline's
	// aggregated Inputs dictionary.
	Execute(ctx context.Context, in Inputs) (Outputs, error)
}

// Base implements the load-config/emit-progress scaffolding shared by
// every concrete agent (spec §4.E steps 1, 3, 6); concrete agents embed
// it and supply their own prompt-rendering, input validation, and output
// parsing.
type Base struct {
	AgentName string
	Loader    ConfigLoader
	Provider  func(providerName string) (llm.Provider, error) // resolves a named backend on demand
	Bus       *bus.Bus
	SessionID string
}

// LoadConfig performs spec §4.E step 1: read the AgentPrompt fresh from
// the store, fatal with ErrConfigMissing if none is configured.
func (b *Base) LoadConfig(ctx context.Context) (*model.AgentPrompt, error) {
	cfg, err := b.Loader.AgentPromptByName(ctx, b.AgentName)
	if err != nil {
		return nil, &Error{Agent: b.AgentName, Class: ErrConfigMissing, Msg: "no agent prompt configured", Err: err}
	}
	return cfg, nil
}

// EmitStarted publishes agent_started (spec §4.E step 3).
func (b *Base) EmitStarted() {
	if b.Bus == nil {
		return
	}
	b.Bus.Publish(b.SessionID, bus.EventAgentStarted, map[string]any{"agent": b.AgentName})
}

// EmitCompleted publishes agent_completed with elapsed time and success
// flag (spec §4.E step 6).
func (b *Base) EmitCompleted(elapsed time.Duration, success bool) {
	if b.Bus == nil {
		return
	}
	b.Bus.Publish(b.SessionID, bus.EventAgentCompleted, map[string]any{
		"agent":       b.AgentName,
		"elapsed_ms":  elapsed.Milliseconds(),
		"success":     success,
	})
}

// ResolveProvider picks the provider named by cfg, falling back to the
// Base's default resolver behavior of erroring rather than silently
// substituting another backend (spec §7: "never silently substitute
// defaults").
func (b *Base) ResolveProvider(cfg *model.AgentPrompt) (llm.Provider, error) {
	p, err := b.Provider(cfg.LLMProvider)
	if err != nil {
		return nil, &Error{Agent: b.AgentName, Class: ErrLLMError, Msg: fmt.Sprintf("resolve provider %q", cfg.LLMProvider), Err: err}
	}
	return p, nil
}

// ParseJSON parses a completion's text as this agent's structured output,
// fatal with ErrParseError on failure (spec §4.E step 5).
func (b *Base) ParseJSON(text string, out any) error {
	if err := llm.ExtractJSON(text, out); err != nil {
		return &Error{Agent: b.AgentName, Class: ErrParseError, Msg: "parse structured output", Err: err}
	}
	return nil
}
