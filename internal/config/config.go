package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Search   SearchConfig   `mapstructure:"search"`
	Rerank   RerankConfig   `mapstructure:"rerank"`
	Answer   AnswerConfig   `mapstructure:"answer"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Sentry   SentryConfig   `mapstructure:"sentry"`
}

type ServerConfig struct {
	Host         string   `mapstructure:"host"`
	Port         int      `mapstructure:"port"`
	ReadTimeout  int      `mapstructure:"read_timeout"`
	WriteTimeout int      `mapstructure:"write_timeout"`
	CORSOrigins  []string `mapstructure:"cors_origins"`
	MaxBodyBytes int64    `mapstructure:"max_body_bytes"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type StorageConfig struct {
	Path             string `mapstructure:"path"` // Database path, default ./data/flux.db
	MaxConversations int    `mapstructure:"max_conversations"`
	MaxMessages      int    `mapstructure:"max_messages_per_conversation"`
}

// SearchConfig represents web search configuration
type SearchConfig struct {
	Default   string                    `mapstructure:"default"` // Default provider name
	Providers map[string]ProviderConfig `mapstructure:"providers"`
}

// ProviderConfig represents a generic search provider configuration
type ProviderConfig struct {
	Type        string `mapstructure:"type"` // "tavily", "firecrawl"
	BaseURL     string `mapstructure:"base_url"`
	APIKey      string `mapstructure:"api_key"`
	Timeout     int    `mapstructure:"timeout"`
	MaxResults  int    `mapstructure:"max_results"`
	SearchDepth string `mapstructure:"search_depth"` // Tavily only
}

type RerankConfig struct {
	Provider string `mapstructure:"provider"`
	BaseURL  string `mapstructure:"base_url"`
	APIKey   string `mapstructure:"api_key"`
	Model    string `mapstructure:"model"`
	Timeout  int    `mapstructure:"timeout"`
}

// AnswerConfig configures the OpenAI-compatible chat endpoint used for synthesis
type AnswerConfig struct {
	BaseURL     string  `mapstructure:"base_url"`
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float32 `mapstructure:"temperature"`
	Timeout     int     `mapstructure:"timeout"`
}

type PipelineConfig struct {
	CandidateCount int `mapstructure:"candidate_count"`
	ResultLimit    int `mapstructure:"result_limit"`
	CitationLimit  int `mapstructure:"citation_limit"`
	ContextTurns   int `mapstructure:"context_turns"`
	MaxQueryLength int `mapstructure:"max_query_length"`
}

type HTTPConfig struct {
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`
}

type SentryConfig struct {
	DSN              string  `mapstructure:"dsn"`
	Environment      string  `mapstructure:"environment"`
	TracesSampleRate float64 `mapstructure:"traces_sample_rate"`
}

// envAliases lets the bare provider variables used by the hosted
// deployment work without the FLUX_ prefix.
var envAliases = map[string][]string{
	"search.providers.tavily.api_key":    {"FLUX_SEARCH_PROVIDERS_TAVILY_API_KEY", "TAVILY_API_KEY"},
	"search.providers.firecrawl.api_key": {"FLUX_SEARCH_PROVIDERS_FIRECRAWL_API_KEY", "FIRECRAWL_API_KEY"},
	"rerank.api_key":                     {"FLUX_RERANK_API_KEY", "COHERE_API_KEY"},
	"answer.api_key":                     {"FLUX_ANSWER_API_KEY", "GEMINI_API_KEY"},
	"logging.level":                      {"FLUX_LOGGING_LEVEL", "LOG_LEVEL"},
	"sentry.dsn":                         {"FLUX_SENTRY_DSN", "SENTRY_DSN"},
}

// Load reads .env files, defaults, environment and an optional YAML file.
// A missing config file is not an error.
func Load(cfgFile string) (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()
	_ = godotenv.Load(".env.local")

	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("FLUX")
	v.AutomaticEnv()
	for key, names := range envAliases {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("binding env for %s: %w", key, err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !(cfgFile != "" && isMissingFile(err)) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.normalize()

	return &cfg, nil
}

func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

// normalize trims credentials and clamps limits to the ranges the API accepts
func (c *Config) normalize() {
	for name, p := range c.Search.Providers {
		p.APIKey = strings.TrimSpace(p.APIKey)
		c.Search.Providers[name] = p
	}
	c.Rerank.APIKey = strings.TrimSpace(c.Rerank.APIKey)
	c.Answer.APIKey = strings.TrimSpace(c.Answer.APIKey)

	if c.Storage.MaxConversations < 1 {
		c.Storage.MaxConversations = 1
	}
	if c.Storage.MaxMessages < 1 {
		c.Storage.MaxMessages = 1
	}
	if c.Storage.MaxMessages > 500 {
		c.Storage.MaxMessages = 500
	}
}

// HasRerank reports whether the optional rerank credential is set
func (c *Config) HasRerank() bool {
	return c.Rerank.APIKey != ""
}

// HasAnswer reports whether the synthesis credential is set
func (c *Config) HasAnswer() bool {
	return c.Answer.APIKey != ""
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 120)
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("server.max_body_bytes", 1<<20)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	// Storage defaults
	v.SetDefault("storage.path", "./data/flux.db")
	v.SetDefault("storage.max_conversations", 5000)
	v.SetDefault("storage.max_messages_per_conversation", 100)

	// Search defaults
	v.SetDefault("search.default", "tavily")
	v.SetDefault("search.providers.tavily.type", "tavily")
	v.SetDefault("search.providers.tavily.base_url", "https://api.tavily.com")
	v.SetDefault("search.providers.tavily.timeout", 30)
	v.SetDefault("search.providers.tavily.max_results", 20)
	v.SetDefault("search.providers.tavily.search_depth", "basic")
	v.SetDefault("search.providers.firecrawl.type", "firecrawl")
	v.SetDefault("search.providers.firecrawl.base_url", "https://api.firecrawl.dev/v2")
	v.SetDefault("search.providers.firecrawl.timeout", 30)
	v.SetDefault("search.providers.firecrawl.max_results", 10)

	// Rerank defaults
	v.SetDefault("rerank.provider", "cohere")
	v.SetDefault("rerank.base_url", "https://api.cohere.com")
	v.SetDefault("rerank.model", "rerank-v3.5")
	v.SetDefault("rerank.timeout", 30)

	// Answer defaults
	v.SetDefault("answer.base_url", "https://generativelanguage.googleapis.com/v1beta/openai/")
	v.SetDefault("answer.model", "gemini-2.5-flash")
	v.SetDefault("answer.max_tokens", 512)
	v.SetDefault("answer.temperature", 0.3)
	v.SetDefault("answer.timeout", 60)

	// Pipeline defaults
	v.SetDefault("pipeline.candidate_count", 20)
	v.SetDefault("pipeline.result_limit", 10)
	v.SetDefault("pipeline.citation_limit", 5)
	v.SetDefault("pipeline.context_turns", 3)
	v.SetDefault("pipeline.max_query_length", 500)

	// Transport retries are off unless asked for
	v.SetDefault("http.max_retries", 0)
	v.SetDefault("http.retry_base_delay", "1s")

	v.SetDefault("sentry.environment", "development")
	v.SetDefault("sentry.traces_sample_rate", 1.0)
}
