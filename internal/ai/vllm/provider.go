package vllm

import (
	"github.com/kontrategy/kontrategy-api/internal/ai/openai"
	"github.com/kontrategy/kontrategy-api/internal/config"
)

// NewProvider returns a scorer for a self-hosted vLLM server, which exposes the
// OpenAI Chat Completions API.
func NewProvider(cfg config.VLLMConfig) *openai.Provider {
	return openai.NewNamedProvider("vllm", config.OpenAIConfig(cfg))
}
