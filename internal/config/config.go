package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the Kontrategy API server.
type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Apify     ApifyConfig
	AI        AIConfig
	RateLimit RateLimitConfig
	Jobs      JobsConfig
	Analysis  AnalysisConfig
}

type ServerConfig struct {
	Port                  int
	Env                   string
	LogLevel              slog.Level
	CORSAllowedOrigins    []string
	// TrustForwardedHeaders keys clients on X-Forwarded-For / X-Real-IP.
	// Enable only behind a proxy that overwrites those headers.
	TrustForwardedHeaders bool
}

type RedisConfig struct {
	URL string
}

type ApifyConfig struct {
	BaseURL           string
	Token             string
	ProfileActor      string
	PostsActor        string
	PollInterval      time.Duration
	PollTimeout       time.Duration
	HTTPTimeout       time.Duration
	RequestsPerSecond float64
}

type AIConfig struct {
	Provider         string
	InferenceTimeout time.Duration
	OpenAI           OpenAIConfig
	VLLM             VLLMConfig
	Anthropic        AnthropicConfig
}

type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

type VLLMConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

type AnthropicConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

type RateLimitConfig struct {
	Max    int
	Window time.Duration
}

type JobsConfig struct {
	TTL        time.Duration
	Workers    int
	QueueDepth int
	Timeout    time.Duration
}

type AnalysisConfig struct {
	PostsLimit int
	MaxImages  int
}

var validProviders = map[string]bool{
	"openai":    true,
	"vllm":      true,
	"anthropic": true,
	"mock":      true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:                  envInt("KONTRATEGY_PORT", 8080),
			Env:                   envString("KONTRATEGY_ENV", "development"),
			LogLevel:              envLogLevel("LOG_LEVEL", slog.LevelInfo),
			CORSAllowedOrigins:    envList("CORS_ALLOWED_ORIGINS", []string{"*"}),
			TrustForwardedHeaders: envBool("TRUST_FORWARDED_HEADERS", false),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Apify: ApifyConfig{
			BaseURL:           strings.TrimRight(envString("APIFY_BASE_URL", "https://api.apify.com"), "/"),
			Token:             os.Getenv("APIFY_TOKEN"),
			ProfileActor:      envString("APIFY_PROFILE_ACTOR", "apify~instagram-profile-scraper"),
			PostsActor:        envString("APIFY_POSTS_ACTOR", "apify~instagram-post-scraper"),
			PollInterval:      envDuration("APIFY_POLL_INTERVAL", 5*time.Second),
			PollTimeout:       envDuration("APIFY_POLL_TIMEOUT", 180*time.Second),
			HTTPTimeout:       envDuration("APIFY_HTTP_TIMEOUT", 30*time.Second),
			RequestsPerSecond: envFloat("APIFY_REQUESTS_PER_SECOND", 10),
		},
		AI: AIConfig{
			Provider:         envString("AI_PROVIDER", "openai"),
			InferenceTimeout: envDurationSecs("AI_INFERENCE_TIMEOUT_SECS", 90*time.Second),
			OpenAI: OpenAIConfig{
				BaseURL: strings.TrimRight(envString("OPENAI_BASE_URL", "https://api.openai.com/v1"), "/"),
				APIKey:  os.Getenv("OPENAI_API_KEY"),
				Model:   envString("OPENAI_MODEL", "gpt-4o-mini"),
			},
			VLLM: VLLMConfig{
				BaseURL: strings.TrimRight(envString("VLLM_BASE_URL", "http://localhost:8000/v1"), "/"),
				APIKey:  os.Getenv("VLLM_API_KEY"),
				Model:   envString("VLLM_MODEL", ""),
			},
			Anthropic: AnthropicConfig{
				BaseURL: strings.TrimRight(envString("ANTHROPIC_BASE_URL", "https://api.anthropic.com"), "/"),
				APIKey:  os.Getenv("ANTHROPIC_API_KEY"),
				Model:   envString("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),
			},
		},
		RateLimit: RateLimitConfig{
			Max:    envInt("RATE_LIMIT_MAX", 5),
			Window: envDuration("RATE_LIMIT_WINDOW", time.Hour),
		},
		Jobs: JobsConfig{
			TTL:        envDuration("JOB_TTL", time.Hour),
			Workers:    envInt("JOBS_WORKERS", 8),
			QueueDepth: envInt("JOBS_QUEUE_DEPTH", 32),
			Timeout:    envDuration("JOBS_TIMEOUT", 8*time.Minute),
		},
		Analysis: AnalysisConfig{
			PostsLimit: envInt("ANALYSIS_POSTS_LIMIT", 15),
			MaxImages:  envInt("ANALYSIS_MAX_IMAGES", 8),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Apify.Token == "" {
		return fmt.Errorf("APIFY_TOKEN is required")
	}
	if !strings.HasPrefix(c.Apify.BaseURL, "http://") && !strings.HasPrefix(c.Apify.BaseURL, "https://") {
		return fmt.Errorf("APIFY_BASE_URL must start with http:// or https://, got %q", c.Apify.BaseURL)
	}
	if c.Apify.PollInterval <= 0 {
		return fmt.Errorf("APIFY_POLL_INTERVAL must be positive")
	}
	if c.Apify.PollTimeout < c.Apify.PollInterval {
		return fmt.Errorf("APIFY_POLL_TIMEOUT must be at least APIFY_POLL_INTERVAL")
	}

	if !validProviders[c.AI.Provider] {
		return fmt.Errorf("AI_PROVIDER must be one of openai, vllm, anthropic, mock; got %q", c.AI.Provider)
	}
	if c.AI.Provider == "openai" && c.AI.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when AI_PROVIDER is openai")
	}
	if c.AI.Provider == "vllm" && c.AI.VLLM.Model == "" {
		return fmt.Errorf("VLLM_MODEL is required when AI_PROVIDER is vllm")
	}
	if c.AI.Provider == "anthropic" && c.AI.Anthropic.APIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required when AI_PROVIDER is anthropic")
	}

	if c.RateLimit.Max <= 0 {
		return fmt.Errorf("RATE_LIMIT_MAX must be positive, got %d", c.RateLimit.Max)
	}
	if c.Jobs.Workers <= 0 {
		return fmt.Errorf("JOBS_WORKERS must be positive, got %d", c.Jobs.Workers)
	}
	if c.Jobs.QueueDepth < 0 {
		return fmt.Errorf("JOBS_QUEUE_DEPTH must not be negative, got %d", c.Jobs.QueueDepth)
	}
	if c.Analysis.MaxImages < 1 || c.Analysis.MaxImages > 8 {
		return fmt.Errorf("ANALYSIS_MAX_IMAGES must be between 1 and 8, got %d", c.Analysis.MaxImages)
	}
	if c.Analysis.PostsLimit < 1 {
		return fmt.Errorf("ANALYSIS_POSTS_LIMIT must be positive, got %d", c.Analysis.PostsLimit)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func envFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}

func envList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}

func envLogLevel(key string, defaultVal slog.Level) slog.Level {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(v)); err != nil {
		return defaultVal
	}
	return lvl
}
