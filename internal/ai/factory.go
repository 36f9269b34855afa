package ai

import (
	"fmt"

	"github.com/kontrategy/kontrategy-api/internal/ai/anthropic"
	"github.com/kontrategy/kontrategy-api/internal/ai/mock"
	"github.com/kontrategy/kontrategy-api/internal/ai/openai"
	"github.com/kontrategy/kontrategy-api/internal/ai/vllm"
	"github.com/kontrategy/kontrategy-api/internal/config"
	"github.com/kontrategy/kontrategy-api/pkg/models"
)

// NewProvider constructs the appropriate scoring provider based on config.
// Called once at server startup.
func NewProvider(cfg config.AIConfig) (models.Scorer, error) {
	switch cfg.Provider {
	case "openai":
		return openai.NewProvider(cfg.OpenAI), nil
	case "vllm":
		return vllm.NewProvider(cfg.VLLM), nil
	case "anthropic":
		return anthropic.NewProvider(cfg.Anthropic), nil
	case "mock":
		return mock.NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q: must be one of openai, vllm, anthropic, mock", cfg.Provider)
	}
}
