package config_test

import (
	"log/slog"
	"testing"
	"time"

	"github.com/kontrategy/kontrategy-api/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setEnv is a helper that sets environment variables for a test and restores them after.
func setEnv(t *testing.T, env map[string]string) {
	t.Helper()
	for k, v := range env {
		t.Setenv(k, v)
	}
}

// validEnv returns the minimum set of valid environment variables.
func validEnv() map[string]string {
	return map[string]string{
		"REDIS_URL":   "redis://localhost:6379",
		"APIFY_TOKEN": "apify_api_test",
		"AI_PROVIDER": "mock",
	}
}

func TestLoad_ValidConfig(t *testing.T) {
	setEnv(t, validEnv())

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "development", cfg.Server.Env)
	assert.Equal(t, slog.LevelInfo, cfg.Server.LogLevel)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSAllowedOrigins)
	assert.Equal(t, "redis://localhost:6379", cfg.Redis.URL)
	assert.Equal(t, "apify_api_test", cfg.Apify.Token)
	assert.Equal(t, "mock", cfg.AI.Provider)
}

func TestLoad_CustomPort(t *testing.T) {
	setEnv(t, validEnv())
	t.Setenv("KONTRATEGY_PORT", "9090")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoad_InvalidPortFallsBackToDefault(t *testing.T) {
	setEnv(t, validEnv())
	t.Setenv("KONTRATEGY_PORT", "eighty")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoad_LogLevel(t *testing.T) {
	setEnv(t, validEnv())
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, cfg.Server.LogLevel)
}

func TestLoad_CORSOrigins(t *testing.T) {
	setEnv(t, validEnv())
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://kontrategy.com, https://app.kontrategy.com ,")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://kontrategy.com", "https://app.kontrategy.com"}, cfg.Server.CORSAllowedOrigins)
}

func TestLoad_TrustForwardedHeaders(t *testing.T) {
	setEnv(t, validEnv())

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.False(t, cfg.Server.TrustForwardedHeaders)

	t.Setenv("TRUST_FORWARDED_HEADERS", "true")
	cfg, err = config.Load()
	require.NoError(t, err)
	assert.True(t, cfg.Server.TrustForwardedHeaders)

	t.Setenv("TRUST_FORWARDED_HEADERS", "maybe")
	cfg, err = config.Load()
	require.NoError(t, err)
	assert.False(t, cfg.Server.TrustForwardedHeaders)
}

func TestLoad_MissingRedisURL(t *testing.T) {
	env := validEnv()
	delete(env, "REDIS_URL")
	setEnv(t, env)
	t.Setenv("REDIS_URL", "")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REDIS_URL")
}

func TestLoad_MissingApifyToken(t *testing.T) {
	setEnv(t, validEnv())
	t.Setenv("APIFY_TOKEN", "")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "APIFY_TOKEN")
}

func TestLoad_ApifyBaseURLMustStartWithHTTP(t *testing.T) {
	setEnv(t, validEnv())
	t.Setenv("APIFY_BASE_URL", "ftp://api.apify.com")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "APIFY_BASE_URL")
}

func TestLoad_ApifyDefaults(t *testing.T) {
	setEnv(t, validEnv())

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.apify.com", cfg.Apify.BaseURL)
	assert.Equal(t, "apify~instagram-profile-scraper", cfg.Apify.ProfileActor)
	assert.Equal(t, "apify~instagram-post-scraper", cfg.Apify.PostsActor)
	assert.Equal(t, 5*time.Second, cfg.Apify.PollInterval)
	assert.Equal(t, 180*time.Second, cfg.Apify.PollTimeout)
	assert.Equal(t, 30*time.Second, cfg.Apify.HTTPTimeout)
	assert.Equal(t, 10.0, cfg.Apify.RequestsPerSecond)
}

func TestLoad_ApifyBaseURLTrailingSlashTrimmed(t *testing.T) {
	setEnv(t, validEnv())
	t.Setenv("APIFY_BASE_URL", "https://apify.internal/")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "https://apify.internal", cfg.Apify.BaseURL)
}

func TestLoad_PollTimeoutShorterThanInterval(t *testing.T) {
	setEnv(t, validEnv())
	t.Setenv("APIFY_POLL_INTERVAL", "10s")
	t.Setenv("APIFY_POLL_TIMEOUT", "5s")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "APIFY_POLL_TIMEOUT")
}

func TestLoad_DefaultProviderRequiresOpenAIKey(t *testing.T) {
	setEnv(t, validEnv())
	t.Setenv("AI_PROVIDER", "")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}

func TestLoad_InvalidAIProvider(t *testing.T) {
	setEnv(t, validEnv())
	t.Setenv("AI_PROVIDER", "ollama")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AI_PROVIDER")
}

func TestLoad_AllValidAIProviders(t *testing.T) {
	providers := []string{"openai", "vllm", "anthropic", "mock"}

	for _, provider := range providers {
		t.Run(provider, func(t *testing.T) {
			env := validEnv()
			env["AI_PROVIDER"] = provider

			switch provider {
			case "openai":
				env["OPENAI_API_KEY"] = "sk-test-key"
			case "vllm":
				env["VLLM_MODEL"] = "qwen2-vl-7b"
			case "anthropic":
				env["ANTHROPIC_API_KEY"] = "sk-ant-test-key"
			}
			setEnv(t, env)

			cfg, err := config.Load()
			require.NoError(t, err)
			assert.Equal(t, provider, cfg.AI.Provider)
		})
	}
}

func TestLoad_OpenAIProviderMissingAPIKey(t *testing.T) {
	setEnv(t, validEnv())
	t.Setenv("AI_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}

func TestLoad_VLLMProviderMissingModel(t *testing.T) {
	setEnv(t, validEnv())
	t.Setenv("AI_PROVIDER", "vllm")
	t.Setenv("VLLM_MODEL", "")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VLLM_MODEL")
}

func TestLoad_AnthropicProviderMissingAPIKey(t *testing.T) {
	setEnv(t, validEnv())
	t.Setenv("AI_PROVIDER", "anthropic")
	t.Setenv("ANTHROPIC_API_KEY", "")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ANTHROPIC_API_KEY")
}

func TestLoad_AIDefaults(t *testing.T) {
	setEnv(t, validEnv())

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 90*time.Second, cfg.AI.InferenceTimeout)
	assert.Equal(t, "https://api.openai.com/v1", cfg.AI.OpenAI.BaseURL)
	assert.Equal(t, "gpt-4o-mini", cfg.AI.OpenAI.Model)
}

func TestLoad_CustomInferenceTimeout(t *testing.T) {
	setEnv(t, validEnv())
	t.Setenv("AI_INFERENCE_TIMEOUT_SECS", "120")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 120*time.Second, cfg.AI.InferenceTimeout)
}

func TestLoad_RateLimitDefaults(t *testing.T) {
	setEnv(t, validEnv())

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.RateLimit.Max)
	assert.Equal(t, time.Hour, cfg.RateLimit.Window)
}

func TestLoad_RateLimitMustBePositive(t *testing.T) {
	setEnv(t, validEnv())
	t.Setenv("RATE_LIMIT_MAX", "0")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RATE_LIMIT_MAX")
}

func TestLoad_JobsDefaults(t *testing.T) {
	setEnv(t, validEnv())

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, time.Hour, cfg.Jobs.TTL)
	assert.Equal(t, 8, cfg.Jobs.Workers)
	assert.Equal(t, 32, cfg.Jobs.QueueDepth)
	assert.Equal(t, 8*time.Minute, cfg.Jobs.Timeout)
}

func TestLoad_JobsWorkersMustBePositive(t *testing.T) {
	setEnv(t, validEnv())
	t.Setenv("JOBS_WORKERS", "-1")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JOBS_WORKERS")
}

func TestLoad_AnalysisDefaults(t *testing.T) {
	setEnv(t, validEnv())

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 15, cfg.Analysis.PostsLimit)
	assert.Equal(t, 8, cfg.Analysis.MaxImages)
}

func TestLoad_MaxImagesCapped(t *testing.T) {
	setEnv(t, validEnv())
	t.Setenv("ANALYSIS_MAX_IMAGES", "12")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ANALYSIS_MAX_IMAGES")
}
