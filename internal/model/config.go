package model

import "time"

// Config is the fully-resolved, layered configuration for the service: the
// YAML file over these defaults, with empty LLM API keys filled from the
// providers' environment variables (OPENAI_API_KEY, ANTHROPIC_API_KEY). It is
// marshaled to YAML for `veritas config show`/`config init`, continuing the
// teacher's cobra/viper/yaml.v3 pattern (see internal/cli).
type Config struct {
	Store     StoreConfig     `yaml:"store"`
	LLM       LLMStackConfig  `yaml:"llm"`
	Verify    VerifyConfig    `yaml:"verify"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Bus       BusConfig       `yaml:"bus"`
	Log       LogConfig       `yaml:"log"`
	HTTP      HTTPConfig      `yaml:"http"`
}

// StoreConfig points at the Claim Store's SQLite+vector backing (§4.A).
type StoreConfig struct {
	Path               string  `yaml:"path"`
	EmbeddingDimension int     `yaml:"embedding_dimension"`
	QueryCacheTTL      time.Duration `yaml:"query_cache_ttl"`
}

// LLMStackConfig names the providers used by the gateway (§4.C) and the two
// agents with an explicit provider preference (Router requires tool-calling,
// Context Analyzer prefers the fast/cheap model).
type LLMStackConfig struct {
	DefaultProvider string        `yaml:"default_provider"` // anthropic | openai | ollama
	Anthropic       ProviderConfig `yaml:"anthropic"`
	OpenAI          ProviderConfig `yaml:"openai"`
	Ollama          ProviderConfig `yaml:"ollama"`
	EmbeddingModel  string        `yaml:"embedding_model"`
	ToolLoopMaxIterations int     `yaml:"tool_loop_max_iterations"`
	PerAgentTimeout time.Duration `yaml:"per_agent_timeout"`
	PipelineTimeout time.Duration `yaml:"pipeline_timeout"`
	RouterTimeout   time.Duration `yaml:"router_timeout"`
}

// ProviderConfig is one LLM backend's credentials and defaults.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key,omitempty"`
	BaseURL string `yaml:"base_url,omitempty"`
	Model   string `yaml:"model,omitempty"`
}

// VerifyConfig carries every external API key the six-tier Source
// Verification Service (§4.D) may use; each is optional, per §6.
type VerifyConfig struct {
	LibrarySimilarityThreshold float64       `yaml:"library_similarity_threshold"`
	GoogleBooksAPIKey          string        `yaml:"google_books_api_key,omitempty"`
	SemanticScholarAPIKey      string        `yaml:"semantic_scholar_api_key,omitempty"`
	TavilyAPIKey               string        `yaml:"tavily_api_key,omitempty"`
	HTTPTimeout                time.Duration `yaml:"http_timeout"`
	RequestsPerSecond          float64       `yaml:"requests_per_second"`
	Burst                      int           `yaml:"burst"`
	UserAgent                  string        `yaml:"user_agent"`
	HTTPProxy                  string        `yaml:"http_proxy,omitempty"`
	HTTPSProxy                 string        `yaml:"https_proxy,omitempty"`
	NoProxy                    string        `yaml:"no_proxy,omitempty"`
}

// SchedulerConfig governs the cron-driven topic-to-article generator (§4.J).
type SchedulerConfig struct {
	Enabled                   bool    `yaml:"enabled"`
	PostsPerDay               int     `yaml:"posts_per_day"`
	CronHour                  int     `yaml:"cron_hour"`
	CronMinute                int     `yaml:"cron_minute"`
	MaxConcurrent             int     `yaml:"max_concurrent"`
	DecomposerDedupThreshold  float64  `yaml:"decomposer_dedup_threshold"`  // 0.92 default
	AutoSuggestDedupThreshold float64  `yaml:"auto_suggest_dedup_threshold"` // 0.85 default
	AutoSuggestEnabled        bool     `yaml:"auto_suggest_enabled"`
	AutoSuggestSeedURLs       []string `yaml:"auto_suggest_seed_urls,omitempty"`
}

// BusConfig tunes the per-session progress bus (§4.K).
type BusConfig struct {
	KeepaliveInterval time.Duration `yaml:"keepalive_interval"`
}

// LogConfig selects zap's development or production encoder.
type LogConfig struct {
	Level       string `yaml:"level"`       // debug | info | warn | error
	Development bool   `yaml:"development"`
}

// HTTPConfig is the minimal `/chat/ask` surface's listen address.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// DefaultConfig mirrors spec §4's stated defaults (0.92/0.80 router
// thresholds live in internal/router, 0.85 library-reuse threshold here,
// per-agent/pipeline/router timeouts from §5).
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Path:               "~/.veritas/veritas.db",
			EmbeddingDimension: 1536,
			QueryCacheTTL:      5 * time.Minute,
		},
		LLM: LLMStackConfig{
			DefaultProvider:       "anthropic",
			EmbeddingModel:        "text-embedding-ada-002",
			ToolLoopMaxIterations: 6,
			PerAgentTimeout:       60 * time.Second,
			PipelineTimeout:       180 * time.Second,
			RouterTimeout:         15 * time.Second,
		},
		Verify: VerifyConfig{
			LibrarySimilarityThreshold: 0.85,
			HTTPTimeout:                5 * time.Second,
			RequestsPerSecond:          2.0,
			Burst:                      5,
			UserAgent:                  "veritas-source-verifier/1.0",
		},
		Scheduler: SchedulerConfig{
			Enabled:                   false,
			PostsPerDay:               1,
			CronHour:                  2,
			CronMinute:                0,
			MaxConcurrent:             1,
			DecomposerDedupThreshold:  0.92,
			AutoSuggestDedupThreshold: 0.85,
			AutoSuggestEnabled:        false,
		},
		Bus: BusConfig{
			KeepaliveInterval: 25 * time.Second,
		},
		Log: LogConfig{
			Level:       "info",
			Development: false,
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
	}
}
