package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/veritas-audit/veritas/internal/model"
)

// AgentPromptByName loads one agent's hot-editable configuration. The
// Agent Framework calls this on every invocation, never caching the
// result for the process lifetime (spec §4.E step 1, §9).
func (s *Store) AgentPromptByName(ctx context.Context, agentName string) (*model.AgentPrompt, error) {
	var p model.AgentPrompt
	err := s.db.QueryRowContext(ctx, `
		SELECT agent_name, llm_provider, model_name, system_prompt, temperature, max_tokens
		FROM agent_prompts WHERE agent_name = ?`, agentName).
		Scan(&p.AgentName, &p.LLMProvider, &p.ModelName, &p.SystemPrompt, &p.Temperature, &p.MaxTokens)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("store: no agent_prompt configured for %q", agentName)
	}
	if err != nil {
		return nil, fmt.Errorf("store: agent_prompt_by_name: %w", err)
	}
	return &p, nil
}

// UpsertAgentPrompt creates or replaces an agent's configuration row.
func (s *Store) UpsertAgentPrompt(ctx context.Context, p model.AgentPrompt) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agent_prompts (agent_name, llm_provider, model_name, system_prompt, temperature, max_tokens)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(agent_name) DO UPDATE SET
			llm_provider = excluded.llm_provider,
			model_name = excluded.model_name,
			system_prompt = excluded.system_prompt,
			temperature = excluded.temperature,
			max_tokens = excluded.max_tokens`,
		p.AgentName, p.LLMProvider, p.ModelName, p.SystemPrompt, p.Temperature, p.MaxTokens)
	if err != nil {
		return fmt.Errorf("store: upsert_agent_prompt: %w", err)
	}
	return nil
}

// ListAgentPrompts returns every configured agent, for the admin surface.
func (s *Store) ListAgentPrompts(ctx context.Context) ([]model.AgentPrompt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT agent_name, llm_provider, model_name, system_prompt, temperature, max_tokens
		FROM agent_prompts ORDER BY agent_name`)
	if err != nil {
		return nil, fmt.Errorf("store: list_agent_prompts: %w", err)
	}
	defer rows.Close()

	var out []model.AgentPrompt
	for rows.Next() {
		var p model.AgentPrompt
		if err := rows.Scan(&p.AgentName, &p.LLMProvider, &p.ModelName, &p.SystemPrompt, &p.Temperature, &p.MaxTokens); err != nil {
			return nil, fmt.Errorf("store: scan agent_prompt: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
