// Package pipeline is the Pipeline Orchestrator (spec §4.G): the
// sequential Topic Finder -> Source Checker -> Adversarial Checker ->
// Writer -> Publisher chain, with progress fan-out and cooperative
// cancellation. Grounded on the teacher's internal/pipeline/pipeline.go
// (ScanURL's sequential stage flow, struct composition of a chained set
// of steps) generalized from a fixed 7-step URL scan into a 5-agent chain
// driven by the agent.Capability interface, plus
// original_source/.../services/scheduler.py's PipelineOrchestrator.
// run_pipeline for the progress-bus wiring.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/veritas-audit/veritas/internal/agent"
	"github.com/veritas-audit/veritas/internal/bus"
)

// Orchestrator runs a fixed, ordered chain of agent.Capability stages
// (spec §4.G: "Executes 4.F.1 -> 4.F.5 sequentially").
type Orchestrator struct {
	Stages  []agent.Capability
	Bus     *bus.Bus
	Timeout time.Duration // full-pipeline timeout (spec §5, default 180s)
}

// Result is the outcome of one pipeline run: the final merged Inputs
// dictionary (spec §4.G "aggregated output dictionary") plus the claim
// card id the Publisher produced, when it got that far.
type Result struct {
	Final       agent.Inputs
	ClaimCardID string
	Elapsed     time.Duration
}

// Run executes every stage in order, merging each stage's Outputs into
// the aggregated dictionary before the next stage starts (spec §4.G).
// Cancellation is checked at each stage boundary (spec §5): if ctx is
// already done when a stage is about to start, the run aborts there
// without starting that stage's (possibly expensive) LLM call.
func (o *Orchestrator) Run(ctx context.Context, sessionID string, seed agent.Inputs) (*Result, error) {
	started := time.Now()
	if o.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.Timeout)
		defer cancel()
	}

	o.publish(sessionID, bus.EventPipelineStarted, nil)

	merged := agent.Inputs{}
	for k, v := range seed {
		merged[k] = v
	}

	for _, stage := range o.Stages {
		if err := ctx.Err(); err != nil {
			elapsed := time.Since(started)
			o.publish(sessionID, bus.EventPipelineFailed, map[string]any{
				"error": "cancelled", "elapsed_ms": elapsed.Milliseconds(),
			})
			return nil, fmt.Errorf("pipeline: cancelled before stage %q: %w", stage.Name(), err)
		}

		out, err := stage.Execute(ctx, merged)
		if err != nil {
			elapsed := time.Since(started)
			o.publish(sessionID, bus.EventPipelineFailed, map[string]any{
				"error": err.Error(), "stage": stage.Name(), "elapsed_ms": elapsed.Milliseconds(),
			})
			return nil, fmt.Errorf("pipeline: stage %q: %w", stage.Name(), err)
		}
		for k, v := range out {
			merged[k] = v
		}
	}

	elapsed := time.Since(started)
	claimCardID, _ := merged["claim_card_id"].(string)
	o.publish(sessionID, bus.EventPipelineCompleted, map[string]any{
		"elapsed_ms":    elapsed.Milliseconds(),
		"claim_card_id": claimCardID,
	})
	return &Result{Final: merged, ClaimCardID: claimCardID, Elapsed: elapsed}, nil
}

func (o *Orchestrator) publish(sessionID string, eventType bus.EventType, data map[string]any) {
	if o.Bus == nil {
		return
	}
	o.Bus.Publish(sessionID, eventType, data)
}
