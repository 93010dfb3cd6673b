package llm

import (
	"context"
	"fmt"
)

// CompleteText runs a single-shot completion with no tool-calling
// involved (spec §4.C's complete_text). It is a thin wrapper so callers
// that never touch tools don't need to know about the loop in
// CompleteWithTools.
func CompleteText(ctx context.Context, provider Provider, req CompletionRequest) (*CompletionResponse, error) {
	req.Tools = nil
	return provider.Complete(ctx, req)
}

// ToolResolver executes one tool call the model requested and returns the
// text to feed back as that call's tool_result.
type ToolResolver func(ctx context.Context, call ToolCall) (string, error)

// CompleteWithTools drives the bounded tool-calling loop described in spec
// §4.C and §9 ("LLM tool-calling loop as bounded state machine"), grounded
// on the reference implementation's router_agent.py _call_llm_with_tools:
// the model is given the transcript plus tool specs; if it answers with
// one or more tool calls, each is resolved via resolve and appended back
// as a "tool" message, and the model is asked again. The loop ends when
// the model returns a turn with no tool calls, or after maxIterations
// rounds, whichever comes first — at that point it reports a tool_error
// rather than returning a possibly-incomplete answer.
func CompleteWithTools(ctx context.Context, provider Provider, req CompletionRequest, resolve ToolResolver, maxIterations int) (*CompletionResponse, []Message, error) {
	if !provider.SupportsTools() {
		return nil, nil, &Error{Kind: FailureToolError, Msg: fmt.Sprintf("provider %s does not support tool calling", provider.Name())}
	}
	if maxIterations <= 0 {
		maxIterations = 6
	}

	transcript := make([]Message, len(req.Messages))
	copy(transcript, req.Messages)

	for i := 0; i < maxIterations; i++ {
		round := req
		round.Messages = transcript

		resp, err := provider.Complete(ctx, round)
		if err != nil {
			return nil, transcript, err
		}

		if len(resp.ToolCalls) == 0 {
			return resp, transcript, nil
		}

		transcript = append(transcript, Message{Role: "assistant", Content: resp.Text, ToolCalls: resp.ToolCalls})

		for _, call := range resp.ToolCalls {
			result, err := resolve(ctx, call)
			if err != nil {
				return nil, transcript, &Error{Kind: FailureToolError, Msg: fmt.Sprintf("tool %q failed", call.Name), Err: err}
			}
			transcript = append(transcript, Message{Role: "tool", Content: result, ToolCallID: call.ID})
		}
	}

	return nil, transcript, &Error{Kind: FailureToolError, Msg: fmt.Sprintf("tool-calling loop did not converge within %d iterations", maxIterations)}
}
