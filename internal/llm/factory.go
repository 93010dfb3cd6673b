package llm

import (
	"fmt"
	"os"
	"strings"

	"github.com/veritas-audit/veritas/internal/model"
)

// NewProvider creates a new LLM provider based on configuration
func NewProvider(config Config) (Provider, error) {
	provider := strings.ToLower(config.Provider)

	switch provider {
	case "openai":
		return NewOpenAIProvider(config)

	case "anthropic", "claude":
		return NewAnthropicProvider(config)

	case "ollama":
		return NewOllamaProvider(config)

	case "":
		// No provider configured - return nil (LLM disabled)
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, anthropic, ollama)", config.Provider)
	}
}

// ConfigFromStack resolves one named backend ("anthropic", "openai",
// "ollama") out of the layered LLMStackConfig into a llm.Config the
// factory can build a Provider from.
func ConfigFromStack(stack model.LLMStackConfig, providerName string) (Config, error) {
	var pc model.ProviderConfig
	switch strings.ToLower(providerName) {
	case "anthropic", "claude":
		pc = stack.Anthropic
	case "openai":
		pc = stack.OpenAI
	case "ollama":
		pc = stack.Ollama
	default:
		return Config{}, fmt.Errorf("unknown LLM provider: %s", providerName)
	}

	cfg := DefaultConfig()
	cfg.Provider = providerName
	cfg.Model = pc.Model
	cfg.APIKey = pc.APIKey
	cfg.BaseURL = pc.BaseURL
	return cfg, nil
}

// LoadConfigFromEnv fills in API keys the layered config left blank from
// the provider SDKs' conventional environment variables, mirroring the
// teacher's env-over-file precedence used elsewhere via viper.
func LoadConfigFromEnv(cfg Config) Config {
	if cfg.APIKey == "" {
		switch strings.ToLower(cfg.Provider) {
		case "anthropic", "claude":
			cfg.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		case "openai":
			cfg.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
	return cfg
}
