package agents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritas-audit/veritas/internal/agent"
)

// P5: the decomposer must reject outputs outside the 3-12 component bound,
// whatever count the model chose to return.
func TestDecomposer_RejectsOutOfBoundComponentCounts(t *testing.T) {
	cases := []struct {
		name    string
		json    string
		wantErr bool
	}{
		{"two components, below floor", `{"components": ["a", "b"]}`, true},
		{"three components, at floor", `{"components": ["a", "b", "c"]}`, false},
		{"twelve components, at ceiling", `{"components": ["a","b","c","d","e","f","g","h","i","j","k","l"]}`, false},
		{"thirteen components, above ceiling", `{"components": ["a","b","c","d","e","f","g","h","i","j","k","l","m"]}`, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			provider := &fakeProvider{text: tc.json}
			d := NewDecomposer(newTestBase(defaultPrompt(), provider))

			out, err := d.Execute(context.Background(), agent.Inputs{"topic_text": "the resurrection narratives"})
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			components, ok := out["component_claims"].([]string)
			require.True(t, ok)
			assert.GreaterOrEqual(t, len(components), 3)
			assert.LessOrEqual(t, len(components), 12)
		})
	}
}

func TestDecomposer_RequiresTopicText(t *testing.T) {
	d := NewDecomposer(newTestBase(defaultPrompt(), &fakeProvider{text: `{"components": ["a","b","c"]}`}))
	_, err := d.Execute(context.Background(), agent.Inputs{})
	require.Error(t, err)
	var agentErr *agent.Error
	require.ErrorAs(t, err, &agentErr)
	assert.Equal(t, agent.ErrBadInput, agentErr.Class)
}

func TestDecomposer_LLMFailure_ReturnsLLMErrorClass(t *testing.T) {
	d := NewDecomposer(newTestBase(defaultPrompt(), &fakeProvider{err: assert.AnError}))
	_, err := d.Execute(context.Background(), agent.Inputs{"topic_text": "a topic"})
	require.Error(t, err)
	var agentErr *agent.Error
	require.ErrorAs(t, err, &agentErr)
	assert.Equal(t, agent.ErrLLMError, agentErr.Class)
}
